// Package capture keeps the bounded list of requests observed in the
// inspected page and turns raw CDP network events into finished-request
// notifications.
package capture

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/dgnsrekt/repplus/internal/headers"
)

const (
	staleAfter    = 5 * time.Minute
	sweepInterval = time.Minute
)

type pendingRequest struct {
	observed Observed
	started  time.Time
}

// Listener correlates requestWillBeSent and loadingFinished events and hands
// each finished request to a sink. Requests that fail or never finish are
// dropped.
type Listener struct {
	sink            func(Observed)
	maxPayloadBytes int

	pending   map[network.RequestID]*pendingRequest
	pendingMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
}

// NewListener starts a Listener that delivers finished requests to sink.
// Request payloads longer than maxPayloadBytes are truncated; zero or less
// keeps them whole.
func NewListener(sink func(Observed), maxPayloadBytes int) *Listener {
	l := &Listener{
		sink:            sink,
		maxPayloadBytes: maxPayloadBytes,
		pending:         make(map[network.RequestID]*pendingRequest),
		done:            make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Close stops the stale-entry sweeper.
func (l *Listener) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}

func (l *Listener) OnRequestWillBeSent(ev *network.EventRequestWillBeSent) {
	if ev.Request == nil {
		return
	}
	payload, truncated, originalSize, sum := truncateStringBytes(requestPayload(ev.Request), l.maxPayloadBytes)
	if truncated {
		slog.Debug("request payload truncated", "request_id", ev.RequestID, "original_size", originalSize, "sha256", sum)
	}

	l.pendingMu.Lock()
	// Redirects reuse the request ID; the latest hop replaces the previous one.
	l.pending[ev.RequestID] = &pendingRequest{
		observed: Observed{
			Method:  ev.Request.Method,
			URL:     ev.Request.URL,
			Headers: headerMap(ev.Request.Headers),
			Payload: payload,
		},
		started: time.Now(),
	}
	l.pendingMu.Unlock()
}

func (l *Listener) OnLoadingFinished(ev *network.EventLoadingFinished) {
	l.pendingMu.Lock()
	p, ok := l.pending[ev.RequestID]
	if ok {
		delete(l.pending, ev.RequestID)
	}
	l.pendingMu.Unlock()

	if !ok {
		return
	}
	l.sink(p.observed)
}

func (l *Listener) OnLoadingFailed(ev *network.EventLoadingFailed) {
	l.pendingMu.Lock()
	delete(l.pending, ev.RequestID)
	l.pendingMu.Unlock()
}

// PendingCount returns the number of requests still waiting to finish.
func (l *Listener) PendingCount() int {
	l.pendingMu.Lock()
	defer l.pendingMu.Unlock()
	return len(l.pending)
}

func (l *Listener) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep(time.Now().Add(-staleAfter))
		case <-l.done:
			return
		}
	}
}

func (l *Listener) sweep(threshold time.Time) {
	l.pendingMu.Lock()
	defer l.pendingMu.Unlock()

	for id, p := range l.pending {
		if p.started.Before(threshold) {
			delete(l.pending, id)
		}
	}
}

func requestPayload(req *network.Request) string {
	if !req.HasPostData || len(req.PostDataEntries) == 0 {
		return ""
	}
	var decoded []byte
	for _, entry := range req.PostDataEntries {
		if entry.Bytes == "" {
			continue
		}
		part, err := base64.StdEncoding.DecodeString(entry.Bytes)
		if err != nil {
			decoded = append(decoded, entry.Bytes...)
			continue
		}
		decoded = append(decoded, part...)
	}
	return string(decoded)
}

func headerMap(h network.Headers) headers.Map {
	var m headers.Map
	for _, name := range sortedKeys(h) {
		switch v := h[name].(type) {
		case string:
			m.Set(name, v)
		case nil:
		default:
			m.Set(name, fmt.Sprint(v))
		}
	}
	return m
}
