package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/repplus/internal/controller"
	"github.com/dgnsrekt/repplus/internal/session"
)

func registerSessionHandlers(api huma.API, svc Service) {
	type sessionOutput struct {
		Body session.State
	}
	huma.Register(api, huma.Operation{OperationID: "get-session", Method: http.MethodGet, Path: "/api/v1/session", Summary: "Snapshot of captures, draft, response and scan", Tags: []string{"Session"}},
		func(ctx context.Context, input *struct{}) (*sessionOutput, error) {
			return &sessionOutput{Body: svc.State()}, nil
		})

	type healthOutput struct {
		Body controller.Health
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/api/v1/health", Summary: "Service health", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			return &healthOutput{Body: svc.Health()}, nil
		})
}
