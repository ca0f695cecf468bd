package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/repplus/internal/replay"
)

func registerReplayHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "get-draft", Method: http.MethodGet, Path: "/api/v1/draft", Summary: "Get the editable request draft", Tags: []string{"Replay"}},
		func(ctx context.Context, input *struct{}) (*draftOutput, error) {
			return &draftOutput{Body: svc.Draft()}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "set-draft", Method: http.MethodPut, Path: "/api/v1/draft", Summary: "Replace the request draft", Tags: []string{"Replay"}},
		func(ctx context.Context, input *struct {
			Body replay.Draft
		}) (*draftOutput, error) {
			d, err := svc.SetDraft(input.Body)
			if err != nil {
				return nil, mapErr(err)
			}
			return &draftOutput{Body: d}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "send-replay", Method: http.MethodPost, Path: "/api/v1/replay", Summary: "Send the draft and return the response", Description: "Sends the request body when given, otherwise the stored draft. Transport failures return status 0 with the error text as body.", Tags: []string{"Replay"}},
		func(ctx context.Context, input *struct {
			Body *replay.Draft
		}) (*responseOutput, error) {
			res, err := svc.Replay(ctx, input.Body)
			if err != nil {
				return nil, mapErr(err)
			}
			return &responseOutput{Body: res}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-response", Method: http.MethodGet, Path: "/api/v1/response", Summary: "Get the last replay response", Tags: []string{"Replay"}},
		func(ctx context.Context, input *struct{}) (*responseOutput, error) {
			res, err := svc.Response()
			if err != nil {
				return nil, mapErr(err)
			}
			return &responseOutput{Body: res}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "reset-response", Method: http.MethodDelete, Path: "/api/v1/response", Summary: "Reset the response view", Tags: []string{"Replay"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			svc.ClearResponse()
			return newStatusOutput("reset"), nil
		})
}
