package capture

import (
	"net/url"
	"sync"
	"time"

	"github.com/dgnsrekt/repplus/internal/fanout"
	"github.com/dgnsrekt/repplus/internal/headers"
	"github.com/google/uuid"
)

// Capacity is the maximum number of captured requests kept in a Buffer.
const Capacity = 50

// Observed is one finished network transaction as reported by the host.
type Observed struct {
	Method  string
	URL     string
	Headers headers.Map
	Payload string
}

// Request is the summary of an observed request kept in the buffer.
type Request struct {
	ID           string    `json:"id"`
	Method       string    `json:"method"`
	URL          string    `json:"url"`
	HeaderCount  int       `json:"header_count"`
	PayloadBytes int       `json:"payload_bytes"`
	ObservedAt   time.Time `json:"observed_at"`
}

// Host returns the host part of the request URL, or "" if it does not parse.
func (r Request) Host() string {
	u, err := url.Parse(r.URL)
	if err != nil {
		return ""
	}
	return u.Host
}

// Path returns the path part of the request URL, or "" if it does not parse.
func (r Request) Path() string {
	u, err := url.Parse(r.URL)
	if err != nil {
		return ""
	}
	return u.Path
}

// Buffer is a fixed-capacity store of captured requests, newest first.
type Buffer struct {
	mu      sync.Mutex
	entries []Request
	now     func() time.Time
	newID   func() string

	captured fanout.Set[Request]
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{
		entries: make([]Request, 0, Capacity),
		now:     time.Now,
		newID:   newRequestID,
	}
}

// newRequestID returns a UUIDv7, which sorts by creation time.
func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Record stores a summary of obs at the front of the buffer, dropping the
// oldest entry when the buffer is full, then notifies subscribers in the
// order they registered.
func (b *Buffer) Record(obs Observed) Request {
	req := Request{
		ID:           b.newID(),
		Method:       obs.Method,
		URL:          obs.URL,
		HeaderCount:  obs.Headers.Len(),
		PayloadBytes: len(obs.Payload),
		ObservedAt:   b.now(),
	}

	b.mu.Lock()
	b.entries = append(b.entries, Request{})
	copy(b.entries[1:], b.entries)
	b.entries[0] = req
	if len(b.entries) > Capacity {
		b.entries = b.entries[:Capacity]
	}
	b.mu.Unlock()

	b.captured.Dispatch(req)
	return req
}

// Clear removes every entry.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.entries = b.entries[:0]
	b.mu.Unlock()
}

// List returns a copy of the entries, newest first.
func (b *Buffer) List() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Request, len(b.entries))
	copy(out, b.entries)
	return out
}

// Len returns the number of entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Get looks up an entry by ID.
func (b *Buffer) Get(id string) (Request, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.entries {
		if r.ID == id {
			return r, true
		}
	}
	return Request{}, false
}

// OnCaptured registers fn to run after each Record. The returned function
// removes the registration.
func (b *Buffer) OnCaptured(fn func(Request)) func() {
	return b.captured.Add(fn)
}
