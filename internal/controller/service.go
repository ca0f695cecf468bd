// Package controller wires the inspected-page host to the capture buffer,
// replay engine, signature scanner and session, and publishes what happens
// to the event relay.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/repplus/internal/capture"
	"github.com/dgnsrekt/repplus/internal/relay"
	"github.com/dgnsrekt/repplus/internal/replay"
	"github.com/dgnsrekt/repplus/internal/session"
	"github.com/dgnsrekt/repplus/internal/signature"
)

// Host is the inspected page.
type Host interface {
	OnRequestFinished(fn func(capture.Observed)) (unsubscribe func())
	OnNavigated(fn func()) (unsubscribe func())
	Scripts(ctx context.Context) ([]signature.Source, error)
}

// Notifier delivers scan alerts.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// ScanResult is the outcome of one signature scan.
type ScanResult struct {
	Verdicts  []signature.Verdict `json:"verdicts"`
	Summary   signature.Summary   `json:"summary"`
	ScannedAt *time.Time          `json:"scanned_at,omitempty"`
}

// ReplaySummary is published after every replay.
type ReplaySummary struct {
	Method     string `json:"method"`
	URL        string `json:"url"`
	Status     int    `json:"status"`
	StatusText string `json:"status_text"`
	ElapsedMS  int64  `json:"elapsed_ms"`
}

// Health reports service readiness.
type Health struct {
	Status         string `json:"status"`
	HostConnected  bool   `json:"host_connected"`
	Captures       int    `json:"captures"`
	Subscribers    int    `json:"subscribers"`
	ReplaysRunning int64  `json:"replays_running"`
	DroppedEvents  int64  `json:"dropped_events"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
}

// Service implements the panel operations.
type Service struct {
	host     Host
	engine   *replay.Engine
	scanner  *signature.Scanner
	sess     *session.Session
	broker   *relay.Broker
	notifier Notifier
	now      func() time.Time
	started  time.Time

	// scans are serialized so each result replaces the previous one in order.
	scanMu sync.Mutex

	unsubMu sync.Mutex
	unsubs  []func()

	alerts sync.WaitGroup
}

// alertTimeout bounds one scan alert delivery.
const alertTimeout = 10 * time.Second

// NewService builds a Service. notifier may be nil.
func NewService(host Host, engine *replay.Engine, scanner *signature.Scanner, sess *session.Session, broker *relay.Broker, notifier Notifier) *Service {
	return &Service{
		host:     host,
		engine:   engine,
		scanner:  scanner,
		sess:     sess,
		broker:   broker,
		notifier: notifier,
		now:      time.Now,
		started:  time.Now(),
	}
}

// Start subscribes to host events and runs the initial scan.
func (s *Service) Start(ctx context.Context) error {
	if s.host == nil {
		return newError(CodeHostUnavailable, "no host attached", nil)
	}

	buffer := s.sess.Buffer()
	unsubs := []func(){
		buffer.OnCaptured(func(r capture.Request) {
			s.broker.Publish(relay.KindCaptured, r)
		}),
		s.host.OnRequestFinished(func(obs capture.Observed) {
			buffer.Record(obs)
		}),
		s.host.OnNavigated(func() {
			s.broker.Publish(relay.KindNavigated, nil)
			if _, err := s.Scan(ctx); err != nil {
				slog.Warn("rescan after navigation failed", "error", err)
			}
		}),
	}

	s.unsubMu.Lock()
	s.unsubs = append(s.unsubs, unsubs...)
	s.unsubMu.Unlock()

	if _, err := s.Scan(ctx); err != nil {
		slog.Warn("initial scan failed", "error", err)
	}
	return nil
}

// Stop detaches from host and buffer events and waits for alerts that are
// still being delivered.
func (s *Service) Stop() {
	defer s.alerts.Wait()

	s.unsubMu.Lock()
	unsubs := s.unsubs
	s.unsubs = nil
	s.unsubMu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

func (s *Service) ListCaptures() []capture.Request {
	return s.sess.Buffer().List()
}

func (s *Service) ClearCaptures() {
	s.sess.Buffer().Clear()
	s.broker.Publish(relay.KindCleared, nil)
}

// LoadCaptured copies a captured request into the session draft.
func (s *Service) LoadCaptured(id string) (replay.Draft, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return replay.Draft{}, newError(CodeValidation, "id is required", nil)
	}
	req, ok := s.sess.Buffer().Get(id)
	if !ok {
		return replay.Draft{}, newError(CodeCaptureNotFound, fmt.Sprintf("capture %q not found", id), nil)
	}
	d := replay.LoadCaptured(req)
	s.sess.SetDraft(d)
	return d, nil
}

func (s *Service) Draft() replay.Draft {
	return s.sess.Draft()
}

// SetDraft replaces the session draft.
func (s *Service) SetDraft(d replay.Draft) (replay.Draft, error) {
	d.Method = strings.ToUpper(strings.TrimSpace(d.Method))
	if !slices.Contains(replay.Methods, d.Method) {
		return replay.Draft{}, newError(CodeValidation, fmt.Sprintf("method must be one of %s", strings.Join(replay.Methods, ", ")), nil)
	}
	s.sess.SetDraft(d)
	return d, nil
}

// Replay sends d, or the session draft when d is nil, and stores the
// response. Transport failures come back as a failed Response, not an error.
func (s *Service) Replay(ctx context.Context, d *replay.Draft) (replay.Response, error) {
	draft := s.sess.Draft()
	if d != nil {
		var err error
		if draft, err = s.SetDraft(*d); err != nil {
			return replay.Response{}, err
		}
	}

	res := s.engine.Send(ctx, draft)
	s.sess.SetResponse(res)
	s.broker.Publish(relay.KindReplayed, ReplaySummary{
		Method:     draft.Method,
		URL:        draft.URL,
		Status:     res.Status,
		StatusText: res.StatusText,
		ElapsedMS:  res.ElapsedMS,
	})
	slog.Info("replay settled", "method", draft.Method, "url", draft.URL, "status", res.Status, "elapsed_ms", res.ElapsedMS)
	return res, nil
}

// Response returns the last replay response.
func (s *Service) Response() (replay.Response, error) {
	res, ok := s.sess.Response()
	if !ok {
		return replay.Response{}, newError(CodeResponseNotFound, "no request has been sent yet", nil)
	}
	return res, nil
}

func (s *Service) ClearResponse() {
	s.sess.ClearResponse()
}

// Scan enumerates the host's scripts, classifies them and replaces the
// stored result.
func (s *Service) Scan(ctx context.Context) (ScanResult, error) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	sources, err := s.host.Scripts(ctx)
	if err != nil {
		return ScanResult{}, newError(CodeHostUnavailable, "list scripts", err)
	}

	verdicts := s.scanner.Scan(ctx, sources)
	at := s.now()
	s.sess.SetVerdicts(verdicts, at)

	result := ScanResult{Verdicts: verdicts, Summary: signature.Summarize(verdicts), ScannedAt: &at}
	s.broker.Publish(relay.KindScanned, result)
	slog.Info("scan complete", "scripts", result.Summary.Scripts, "sketchy", result.Summary.Sketchy)

	if result.Summary.Sketchy > 0 && s.notifier != nil {
		s.alert(ctx, alertMessage(verdicts))
	}
	return result, nil
}

// alert delivers msg in the background so a slow notifier never holds the
// scan lock. Delivery outlives ctx but is bounded by alertTimeout.
func (s *Service) alert(ctx context.Context, msg string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
	s.alerts.Add(1)
	go func() {
		defer s.alerts.Done()
		defer cancel()
		if err := s.notifier.Notify(ctx, msg); err != nil {
			slog.Warn("scan alert failed", "error", err)
		}
	}()
}

// LastScan returns the stored scan result without rescanning.
func (s *Service) LastScan() ScanResult {
	verdicts, at := s.sess.Verdicts()
	result := ScanResult{Verdicts: verdicts, Summary: signature.Summarize(verdicts)}
	if !at.IsZero() {
		result.ScannedAt = &at
	}
	return result
}

func (s *Service) State() session.State {
	return s.sess.State()
}

func (s *Service) Signatures() []signature.Signature {
	return slices.Clone(signature.Table)
}

func (s *Service) Health() Health {
	h := Health{
		Status:         "ok",
		HostConnected:  s.host != nil,
		Captures:       s.sess.Buffer().Len(),
		Subscribers:    s.broker.ClientCount(),
		ReplaysRunning: s.engine.InFlight(),
		DroppedEvents:  s.broker.Dropped(),
		UptimeSeconds:  int64(s.now().Sub(s.started).Seconds()),
	}
	if c, ok := s.host.(interface{ Connected() bool }); ok {
		h.HostConnected = c.Connected()
	}
	if !h.HostConnected {
		h.Status = "degraded"
	}
	return h
}

func alertMessage(verdicts []signature.Verdict) string {
	var b strings.Builder
	n := 0
	for _, v := range verdicts {
		if v.Classification != signature.Sketchy {
			continue
		}
		n++
		findings := make([]string, len(v.Findings))
		for i, f := range v.Findings {
			findings[i] = string(f)
		}
		fmt.Fprintf(&b, "\n%s: %s", v.DisplayName, strings.Join(findings, ", "))
	}
	return fmt.Sprintf("REP+ flagged %d sketchy script(s)%s", n, b.String())
}
