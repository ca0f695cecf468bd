package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/dgnsrekt/repplus/internal/capture"
	"github.com/dgnsrekt/repplus/internal/controller"
	"github.com/dgnsrekt/repplus/internal/relay"
	"github.com/dgnsrekt/repplus/internal/replay"
	"github.com/dgnsrekt/repplus/internal/session"
	"github.com/dgnsrekt/repplus/internal/signature"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Service interface {
	ListCaptures() []capture.Request
	ClearCaptures()
	LoadCaptured(id string) (replay.Draft, error)
	Draft() replay.Draft
	SetDraft(d replay.Draft) (replay.Draft, error)
	Replay(ctx context.Context, d *replay.Draft) (replay.Response, error)
	Response() (replay.Response, error)
	ClearResponse()
	Scan(ctx context.Context) (controller.ScanResult, error)
	LastScan() controller.ScanResult
	State() session.State
	Signatures() []signature.Signature
	Health() controller.Health
}

type statusOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

func newStatusOutput(status string) *statusOutput {
	out := &statusOutput{}
	out.Body.Status = status
	return out
}

type draftOutput struct {
	Body replay.Draft
}

type responseOutput struct {
	Body replay.Response
}

func NewServer(svc Service, broker *relay.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("REP+ Replay API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Get("/docs/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(eventsDocsHTML)); err != nil {
			slog.Debug("events docs response write failed", "error", err)
		}
	})

	if broker != nil {
		router.Get("/api/v1/events", relay.SSEHandler(broker))
		router.Get("/api/v1/events/ws", relay.WebSocketHandler(broker))
	}

	registerCaptureHandlers(api, svc)
	registerReplayHandlers(api, svc)
	registerScanHandlers(api, svc)
	registerSessionHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *controller.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case controller.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case controller.CodeCaptureNotFound, controller.CodeResponseNotFound:
			return huma.Error404NotFound(coded.Message)
		case controller.CodeHostUnavailable:
			return huma.Error502BadGateway(coded.Error())
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
