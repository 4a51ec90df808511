package http

import (
	"github.com/fyrsmithlabs/pacer/internal/extraction"
	"github.com/fyrsmithlabs/pacer/internal/prediction"
)

// TextRequest is the request body for extract and estimate.
type TextRequest struct {
	Text string `json:"text"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// ExtractResponse is the response body for POST /api/v1/extract.
type ExtractResponse struct {
	Result  extraction.Result         `json:"result"`
	Missing []extraction.MissingField `json:"missing"`
	Path    string                    `json:"path"`
}

// NewExtractResponse builds the response for an extraction outcome. Missing
// is never null.
func NewExtractResponse(out extraction.Outcome) ExtractResponse {
	missing := out.Result.Missing()
	if missing == nil {
		missing = []extraction.MissingField{}
	}
	return ExtractResponse{
		Result:  out.Result,
		Missing: missing,
		Path:    out.Path(),
	}
}

// EstimateResponse is the response body for POST /api/v1/estimate.
type EstimateResponse struct {
	Extraction ExtractResponse   `json:"extraction"`
	Prediction prediction.Result `json:"prediction"`
}

// CacheClearResponse is the response body for DELETE /api/v1/cache.
type CacheClearResponse struct {
	Removed int `json:"removed"`
}
