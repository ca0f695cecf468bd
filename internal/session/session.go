// Package session holds the state a panel works against: the request
// draft, the last replay response, the capture buffer and the last scan.
package session

import (
	"sync"
	"time"

	"github.com/dgnsrekt/repplus/internal/capture"
	"github.com/dgnsrekt/repplus/internal/replay"
	"github.com/dgnsrekt/repplus/internal/signature"
)

// State is a point-in-time copy of a Session.
type State struct {
	Draft     replay.Draft        `json:"draft"`
	Response  *replay.Response    `json:"response,omitempty"`
	Captures  []capture.Request   `json:"captures"`
	Verdicts  []signature.Verdict `json:"verdicts"`
	ScannedAt *time.Time          `json:"scanned_at,omitempty"`
}

// Session owns panel state. Writers replace whole values; the last writer wins.
type Session struct {
	buffer *capture.Buffer

	mu        sync.RWMutex
	draft     replay.Draft
	response  *replay.Response
	verdicts  []signature.Verdict
	scannedAt time.Time
}

// New returns a Session backed by buffer, starting from the default draft.
func New(buffer *capture.Buffer) *Session {
	return &Session{
		buffer:   buffer,
		draft:    replay.DefaultDraft(),
		verdicts: []signature.Verdict{},
	}
}

// Buffer returns the capture buffer.
func (s *Session) Buffer() *capture.Buffer {
	return s.buffer
}

func (s *Session) Draft() replay.Draft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draft
}

func (s *Session) SetDraft(d replay.Draft) {
	s.mu.Lock()
	s.draft = d
	s.mu.Unlock()
}

// Response returns the last replay response, if any.
func (s *Session) Response() (replay.Response, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.response == nil {
		return replay.Response{}, false
	}
	return *s.response, true
}

func (s *Session) SetResponse(r replay.Response) {
	s.mu.Lock()
	s.response = &r
	s.mu.Unlock()
}

// ClearResponse forgets the last replay response.
func (s *Session) ClearResponse() {
	s.mu.Lock()
	s.response = nil
	s.mu.Unlock()
}

// Verdicts returns the last scan result and when it was produced.
func (s *Session) Verdicts() ([]signature.Verdict, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]signature.Verdict, len(s.verdicts))
	copy(out, s.verdicts)
	return out, s.scannedAt
}

// SetVerdicts replaces the scan result.
func (s *Session) SetVerdicts(v []signature.Verdict, at time.Time) {
	if v == nil {
		v = []signature.Verdict{}
	}
	s.mu.Lock()
	s.verdicts = v
	s.scannedAt = at
	s.mu.Unlock()
}

// State returns a copy of the whole session.
func (s *Session) State() State {
	s.mu.RLock()
	st := State{Draft: s.draft}
	if s.response != nil {
		r := *s.response
		st.Response = &r
	}
	st.Verdicts = make([]signature.Verdict, len(s.verdicts))
	copy(st.Verdicts, s.verdicts)
	if !s.scannedAt.IsZero() {
		at := s.scannedAt
		st.ScannedAt = &at
	}
	s.mu.RUnlock()

	st.Captures = s.buffer.List()
	return st
}
