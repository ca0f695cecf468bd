package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/repplus/internal/capture"
	"github.com/dgnsrekt/repplus/internal/controller"
	"github.com/dgnsrekt/repplus/internal/headers"
	"github.com/dgnsrekt/repplus/internal/relay"
	"github.com/dgnsrekt/repplus/internal/replay"
	"github.com/dgnsrekt/repplus/internal/session"
	"github.com/dgnsrekt/repplus/internal/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	captures  []capture.Request
	cleared   bool
	draft     replay.Draft
	sent      *replay.Draft
	response  *replay.Response
	scanErr   error
	lastScan  controller.ScanResult
	setDraftE error
}

func (s *stubService) ListCaptures() []capture.Request { return s.captures }
func (s *stubService) ClearCaptures() {
	s.cleared = true
	s.captures = nil
}
func (s *stubService) LoadCaptured(id string) (replay.Draft, error) {
	for _, c := range s.captures {
		if c.ID == id {
			s.draft = replay.LoadCaptured(c)
			return s.draft, nil
		}
	}
	return replay.Draft{}, &controller.CodedError{Code: controller.CodeCaptureNotFound, Message: "capture \"" + id + "\" not found"}
}
func (s *stubService) Draft() replay.Draft { return s.draft }
func (s *stubService) SetDraft(d replay.Draft) (replay.Draft, error) {
	if s.setDraftE != nil {
		return replay.Draft{}, s.setDraftE
	}
	s.draft = d
	return d, nil
}
func (s *stubService) Replay(ctx context.Context, d *replay.Draft) (replay.Response, error) {
	if d == nil {
		d = &s.draft
	}
	s.sent = d
	h := headers.Map{}
	h.Set("content-type", "application/json")
	res := replay.Response{Status: 200, StatusText: "OK", Headers: h, Body: "{\n  \"ok\": true\n}", ElapsedMS: 12}
	s.response = &res
	return res, nil
}
func (s *stubService) Response() (replay.Response, error) {
	if s.response == nil {
		return replay.Response{}, &controller.CodedError{Code: controller.CodeResponseNotFound, Message: "no request has been sent yet"}
	}
	return *s.response, nil
}
func (s *stubService) ClearResponse() { s.response = nil }
func (s *stubService) Scan(ctx context.Context) (controller.ScanResult, error) {
	if s.scanErr != nil {
		return controller.ScanResult{}, s.scanErr
	}
	return s.lastScan, nil
}
func (s *stubService) LastScan() controller.ScanResult { return s.lastScan }
func (s *stubService) State() session.State {
	return session.State{Draft: s.draft, Response: s.response, Captures: s.captures, Verdicts: s.lastScan.Verdicts}
}
func (s *stubService) Signatures() []signature.Signature { return signature.Table }
func (s *stubService) Health() controller.Health {
	return controller.Health{Status: "ok", HostConnected: true, Captures: len(s.captures)}
}

func newStub() *stubService {
	return &stubService{
		draft: replay.DefaultDraft(),
		captures: []capture.Request{
			{ID: "c2", Method: "POST", URL: "https://api.test/v1/items?x=1", HeaderCount: 3, PayloadBytes: 12, ObservedAt: time.Date(2026, 1, 1, 0, 0, 2, 0, time.UTC)},
			{ID: "c1", Method: "GET", URL: "https://api.test/v1/items", ObservedAt: time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC)},
		},
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestDocsDarkMode(t *testing.T) {
	w := do(t, NewServer(newStub(), nil), http.MethodGet, "/docs", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `data-theme="dark"`)
	assert.Contains(t, w.Body.String(), `href="/docs/events"`)
}

func TestEventsDocs(t *testing.T) {
	w := do(t, NewServer(newStub(), nil), http.MethodGet, "/docs/events", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1/events/ws")
}

func TestListCaptures(t *testing.T) {
	w := do(t, NewServer(newStub(), nil), http.MethodGet, "/api/v1/captures", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got := decode[struct {
		Captures []captureItem `json:"captures"`
		Count    int           `json:"count"`
		Capacity int           `json:"capacity"`
	}](t, w)

	assert.Equal(t, 2, got.Count)
	assert.Equal(t, capture.Capacity, got.Capacity)
	require.Len(t, got.Captures, 2)
	first := got.Captures[0]
	assert.Equal(t, "c2", first.ID)
	assert.Equal(t, "api.test", first.Host)
	assert.Equal(t, "/v1/items", first.Path)
	assert.Equal(t, "https://api.test/v1/items?x=1", first.URL)
	assert.Equal(t, 3, first.HeaderCount)
	assert.Equal(t, 12, first.PayloadBytes)
}

func TestClearCaptures(t *testing.T) {
	svc := newStub()
	w := do(t, NewServer(svc, nil), http.MethodDelete, "/api/v1/captures", "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, svc.cleared)
	assert.Equal(t, "cleared", decode[map[string]string](t, w)["status"])
}

func TestLoadCapture(t *testing.T) {
	h := NewServer(newStub(), nil)

	w := do(t, h, http.MethodPost, "/api/v1/captures/c2/load", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	d := decode[replay.Draft](t, w)
	assert.Equal(t, "POST", d.Method)
	assert.Equal(t, "https://api.test/v1/items?x=1", d.URL)
	assert.Equal(t, replay.DefaultHeaderText, d.HeaderText)
	assert.Empty(t, d.Body)

	w = do(t, h, http.MethodPost, "/api/v1/captures/nope/load", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDraftRoundTrip(t *testing.T) {
	h := NewServer(newStub(), nil)

	w := do(t, h, http.MethodGet, "/api/v1/draft", "")
	assert.Equal(t, replay.DefaultDraft(), decode[replay.Draft](t, w))

	body := `{"method":"PUT","url":"https://api.test/x","header_text":"X-A: 1","body":"{}"}`
	w = do(t, h, http.MethodPut, "/api/v1/draft", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, http.MethodGet, "/api/v1/draft", "")
	got := decode[replay.Draft](t, w)
	assert.Equal(t, "PUT", got.Method)
	assert.Equal(t, "X-A: 1", got.HeaderText)
}

func TestSetDraftValidationError(t *testing.T) {
	svc := newStub()
	svc.setDraftE = &controller.CodedError{Code: controller.CodeValidation, Message: "bad draft"}

	body := `{"method":"GET","url":"https://api.test","header_text":"","body":""}`
	w := do(t, NewServer(svc, nil), http.MethodPut, "/api/v1/draft", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReplayAndResponse(t *testing.T) {
	svc := newStub()
	h := NewServer(svc, nil)

	w := do(t, h, http.MethodGet, "/api/v1/response", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/replay", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, svc.sent, "replay did not reach the service")
	assert.Equal(t, replay.DefaultURL, svc.sent.URL)

	got := decode[struct {
		Status     int               `json:"status"`
		StatusText string            `json:"status_text"`
		Headers    map[string]string `json:"headers"`
		Body       string            `json:"body"`
		ElapsedMS  int64             `json:"elapsed_ms"`
	}](t, w)
	assert.Equal(t, 200, got.Status)
	assert.Equal(t, "application/json", got.Headers["content-type"])
	assert.Equal(t, int64(12), got.ElapsedMS)

	w = do(t, h, http.MethodGet, "/api/v1/response", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodDelete, "/api/v1/response", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, svc.response)
}

func TestReplayWithDraftBody(t *testing.T) {
	svc := newStub()
	body := `{"method":"POST","url":"https://api.test/echo","header_text":"Content-Type: application/json","body":"{\"a\":1}"}`
	w := do(t, NewServer(svc, nil), http.MethodPost, "/api/v1/replay", body)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, svc.sent)
	assert.Equal(t, "https://api.test/echo", svc.sent.URL)
	assert.Equal(t, `{"a":1}`, svc.sent.Body)
}

func TestScanEndpoints(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := newStub()
	svc.lastScan = controller.ScanResult{
		Verdicts:  []signature.Verdict{signature.NewVerdict("https://a.test/app.js", "document.write(x)")},
		Summary:   signature.Summary{Scripts: 1, Sketchy: 1},
		ScannedAt: &at,
	}
	h := NewServer(svc, nil)

	for _, method := range []string{http.MethodPost, http.MethodGet} {
		t.Run(method, func(t *testing.T) {
			w := do(t, h, method, "/api/v1/scan", "")
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			got := decode[controller.ScanResult](t, w)
			require.Len(t, got.Verdicts, 1)
			assert.Equal(t, signature.Sketchy, got.Verdicts[0].Classification)
			assert.Equal(t, "app.js", got.Verdicts[0].DisplayName)
			assert.Equal(t, signature.SeverityWarning, got.Verdicts[0].Severity)
		})
	}
}

func TestScanHostUnavailable(t *testing.T) {
	svc := newStub()
	svc.scanErr = &controller.CodedError{Code: controller.CodeHostUnavailable, Message: "list scripts", Cause: errors.New("target closed")}

	w := do(t, NewServer(svc, nil), http.MethodPost, "/api/v1/scan", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSignatures(t *testing.T) {
	w := do(t, NewServer(newStub(), nil), http.MethodGet, "/api/v1/signatures", "")
	got := decode[struct {
		Signatures []signatureItem `json:"signatures"`
	}](t, w)

	require.Len(t, got.Signatures, len(signature.Table))
	assert.Equal(t, signature.OpenAIKeyLeak, got.Signatures[3].Finding)
	assert.Equal(t, `sk-[a-zA-Z0-9]{48}`, got.Signatures[3].Pattern)
}

func TestSessionAndHealth(t *testing.T) {
	h := NewServer(newStub(), nil)

	w := do(t, h, http.MethodGet, "/api/v1/session", "")
	st := decode[session.State](t, w)
	assert.Len(t, st.Captures, 2)
	assert.Equal(t, replay.DefaultURL, st.Draft.URL)

	w = do(t, h, http.MethodGet, "/api/v1/health", "")
	health := decode[controller.Health](t, w)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 2, health.Captures)
}

func TestEventsRoutesMounted(t *testing.T) {
	broker := relay.NewBroker()
	srv := httptest.NewServer(NewServer(newStub(), broker))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream"), resp.Header.Get("Content-Type"))
}

func TestMapErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &controller.CodedError{Code: controller.CodeValidation, Message: "x"}, http.StatusBadRequest},
		{"capture", &controller.CodedError{Code: controller.CodeCaptureNotFound, Message: "x"}, http.StatusNotFound},
		{"response", &controller.CodedError{Code: controller.CodeResponseNotFound, Message: "x"}, http.StatusNotFound},
		{"host", &controller.CodedError{Code: controller.CodeHostUnavailable, Message: "x"}, http.StatusBadGateway},
		{"unknown code", &controller.CodedError{Code: "OTHER", Message: "x"}, http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var se interface{ GetStatus() int }
			require.True(t, errors.As(mapErr(tt.err), &se), "mapErr() does not carry a status")
			assert.Equal(t, tt.want, se.GetStatus())
		})
	}
	assert.NoError(t, mapErr(nil))
}
