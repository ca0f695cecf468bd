// Package replay issues ad-hoc HTTP requests built from an editable draft and
// normalizes every outcome into a Response.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/repplus/internal/capture"
	"github.com/dgnsrekt/repplus/internal/classify"
	"github.com/dgnsrekt/repplus/internal/headers"
)

// DefaultHeaderText is the header block every fresh or promoted draft starts with.
const DefaultHeaderText = "User-Agent: Mozilla/5.0\nAccept: application/json"

// DefaultURL is the target of a fresh draft.
const DefaultURL = "https://httpbin.org/get"

// StatusTextError is the status text of a failed replay.
const StatusTextError = "Error"

// Methods lists the methods a draft may use.
var Methods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete,
	http.MethodPatch, http.MethodOptions, http.MethodHead,
}

// ErrUnsupportedMethod is returned for a draft method outside Methods.
var ErrUnsupportedMethod = errors.New("unsupported method")

// Draft is an editable request.
type Draft struct {
	Method     string `json:"method" enum:"GET,POST,PUT,DELETE,PATCH,OPTIONS,HEAD" doc:"HTTP method"`
	URL        string `json:"url" doc:"Absolute request URL"`
	HeaderText string `json:"header_text" doc:"Newline-delimited Name: value lines"`
	Body       string `json:"body" doc:"Request body, sent only for POST, PUT and PATCH"`
}

// DefaultDraft returns the draft a new session starts with.
func DefaultDraft() Draft {
	return Draft{Method: http.MethodGet, URL: DefaultURL, HeaderText: DefaultHeaderText}
}

// LoadCaptured turns a captured request into a draft. Only the method and URL
// carry over; headers and body are reset to the defaults.
func LoadCaptured(req capture.Request) Draft {
	return Draft{Method: req.Method, URL: req.URL, HeaderText: DefaultHeaderText}
}

// SendsBody reports whether a draft with this method transmits its body.
func SendsBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

func validMethod(method string) bool {
	for _, m := range Methods {
		if m == method {
			return true
		}
	}
	return false
}

// Response is the settled result of one Send.
type Response struct {
	Status     int         `json:"status" doc:"HTTP status, 0 when the exchange failed"`
	StatusText string      `json:"status_text"`
	Headers    headers.Map `json:"headers"`
	Body       string      `json:"body"`
	ElapsedMS  int64       `json:"elapsed_ms"`
}

// Failed reports whether the response represents a failed exchange.
func (r Response) Failed() bool {
	return r.Status == 0
}

func failure(err error) Response {
	return Response{Status: 0, StatusText: StatusTextError, Body: err.Error()}
}

// Engine sends drafts over an HTTP client.
type Engine struct {
	client   *http.Client
	now      func() time.Time
	inFlight atomic.Int64
}

// NewEngine returns an Engine using client, or http.DefaultClient when nil.
func NewEngine(client *http.Client) *Engine {
	if client == nil {
		client = http.DefaultClient
	}
	return &Engine{client: client, now: time.Now}
}

// InFlight returns the number of sends that have not settled yet.
func (e *Engine) InFlight() int64 {
	return e.inFlight.Load()
}

// Send issues the request described by d. It never returns an error: any
// failure is reported as a Response with status 0.
func (e *Engine) Send(ctx context.Context, d Draft) Response {
	resp, err := e.send(ctx, d)
	if err != nil {
		slog.Debug("replay failed", "method", d.Method, "url", d.URL, "error", err)
		return failure(err)
	}
	slog.Debug("replay settled", "method", d.Method, "url", d.URL, "status", resp.Status, "elapsed_ms", resp.ElapsedMS)
	return resp
}

func (e *Engine) send(ctx context.Context, d Draft) (Response, error) {
	if !validMethod(d.Method) {
		return Response{}, fmt.Errorf("%w: %q", ErrUnsupportedMethod, d.Method)
	}

	var body io.Reader
	if SendsBody(d.Method) && d.Body != "" {
		body = strings.NewReader(d.Body)
	}

	req, err := http.NewRequestWithContext(ctx, d.Method, d.URL, body)
	if err != nil {
		return Response{}, err
	}
	headers.Decode(d.HeaderText).Each(func(name, value string) {
		req.Header.Set(name, value)
	})

	e.inFlight.Add(1)
	defer e.inFlight.Add(-1)

	start := e.now()
	res, err := e.client.Do(req)
	end := e.now()
	if err != nil {
		return Response{}, err
	}
	defer func() { _ = res.Body.Close() }()

	formatted, err := classify.Body(res.Header.Get("Content-Type"), res.Body)
	if err != nil {
		return Response{}, err
	}

	return Response{
		Status:     res.StatusCode,
		StatusText: statusText(res),
		Headers:    responseHeaders(res.Header),
		Body:       formatted,
		ElapsedMS:  elapsedMS(start, end),
	}, nil
}

func elapsedMS(start, end time.Time) int64 {
	ms := math.Round(float64(end.Sub(start)) / float64(time.Millisecond))
	if ms < 0 {
		return 0
	}
	return int64(ms)
}

// statusText returns the reason phrase sent by the server, falling back to
// the standard text for the code.
func statusText(res *http.Response) string {
	prefix := fmt.Sprintf("%d ", res.StatusCode)
	if text := strings.TrimPrefix(res.Status, prefix); text != res.Status {
		return text
	}
	return http.StatusText(res.StatusCode)
}

// responseHeaders lists headers the way the Fetch API exposes them: lower-case
// names in sorted order, repeated values joined by ", ".
func responseHeaders(h http.Header) headers.Map {
	joined := make(map[string]string, len(h))
	names := make([]string, 0, len(h))
	for name, values := range h {
		lower := strings.ToLower(name)
		if prev, ok := joined[lower]; ok {
			joined[lower] = prev + ", " + strings.Join(values, ", ")
			continue
		}
		joined[lower] = strings.Join(values, ", ")
		names = append(names, lower)
	}
	sort.Strings(names)

	var m headers.Map
	for _, name := range names {
		m.Set(name, joined[name])
	}
	return m
}
