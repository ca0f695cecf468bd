package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/repplus/internal/capture"
)

type captureItem struct {
	ID           string    `json:"id"`
	Method       string    `json:"method"`
	URL          string    `json:"url"`
	Host         string    `json:"host" doc:"Host part of the URL, for list display"`
	Path         string    `json:"path" doc:"URL path without the query string, for list display"`
	HeaderCount  int       `json:"header_count" doc:"Number of request headers the page sent"`
	PayloadBytes int       `json:"payload_bytes" doc:"Size of the captured request body after truncation"`
	ObservedAt   time.Time `json:"observed_at"`
}

func toCaptureItem(r capture.Request) captureItem {
	return captureItem{
		ID:           r.ID,
		Method:       r.Method,
		URL:          r.URL,
		Host:         r.Host(),
		Path:         r.Path(),
		HeaderCount:  r.HeaderCount,
		PayloadBytes: r.PayloadBytes,
		ObservedAt:   r.ObservedAt,
	}
}

func registerCaptureHandlers(api huma.API, svc Service) {
	type captureListOutput struct {
		Body struct {
			Captures []captureItem `json:"captures"`
			Count    int           `json:"count"`
			Capacity int           `json:"capacity"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-captures", Method: http.MethodGet, Path: "/api/v1/captures", Summary: "List captured requests, newest first", Tags: []string{"Captures"}},
		func(ctx context.Context, input *struct{}) (*captureListOutput, error) {
			reqs := svc.ListCaptures()
			out := &captureListOutput{}
			out.Body.Captures = make([]captureItem, len(reqs))
			for i, r := range reqs {
				out.Body.Captures[i] = toCaptureItem(r)
			}
			out.Body.Count = len(reqs)
			out.Body.Capacity = capture.Capacity
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "clear-captures", Method: http.MethodDelete, Path: "/api/v1/captures", Summary: "Clear the capture list", Tags: []string{"Captures"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			svc.ClearCaptures()
			return newStatusOutput("cleared"), nil
		})

	huma.Register(api, huma.Operation{OperationID: "load-capture", Method: http.MethodPost, Path: "/api/v1/captures/{id}/load", Summary: "Load a captured request into the draft", Tags: []string{"Captures"}},
		func(ctx context.Context, input *struct {
			ID string `path:"id"`
		}) (*draftOutput, error) {
			d, err := svc.LoadCaptured(input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &draftOutput{Body: d}, nil
		})
}
