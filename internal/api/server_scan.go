package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/repplus/internal/controller"
	"github.com/dgnsrekt/repplus/internal/signature"
)

type scanOutput struct {
	Body controller.ScanResult
}

type signatureItem struct {
	Finding  signature.Finding  `json:"finding"`
	Severity signature.Severity `json:"severity"`
	Pattern  string             `json:"pattern"`
}

func registerScanHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "run-scan", Method: http.MethodPost, Path: "/api/v1/scan", Summary: "Rescan the page's scripts", Tags: []string{"Scan"}},
		func(ctx context.Context, input *struct{}) (*scanOutput, error) {
			result, err := svc.Scan(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &scanOutput{Body: result}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-scan", Method: http.MethodGet, Path: "/api/v1/scan", Summary: "Get the last scan result", Tags: []string{"Scan"}},
		func(ctx context.Context, input *struct{}) (*scanOutput, error) {
			return &scanOutput{Body: svc.LastScan()}, nil
		})

	type signaturesOutput struct {
		Body struct {
			Signatures []signatureItem `json:"signatures"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-signatures", Method: http.MethodGet, Path: "/api/v1/signatures", Summary: "List the signature table in evaluation order", Tags: []string{"Scan"}},
		func(ctx context.Context, input *struct{}) (*signaturesOutput, error) {
			sigs := svc.Signatures()
			out := &signaturesOutput{}
			out.Body.Signatures = make([]signatureItem, len(sigs))
			for i, s := range sigs {
				out.Body.Signatures[i] = signatureItem{Finding: s.Finding, Severity: s.Severity, Pattern: s.Pattern.String()}
			}
			return out, nil
		})
}
