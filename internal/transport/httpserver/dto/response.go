package dto

import (
	"docquery-service/internal/app/service"
	"docquery-service/internal/domain"
)

// SearchResponse is one page of search results. Count is null when the
// total could not be computed.
type SearchResponse struct {
	Count   *int64            `json:"count"`
	Content []domain.Document `json:"content"`
	Page    int               `json:"page"`
	PerPage int               `json:"per_page"`
}

// FromResultPage converts domain.ResultPage to SearchResponse.
func FromResultPage(page *domain.ResultPage) SearchResponse {
	content := page.Items
	if content == nil {
		content = []domain.Document{}
	}

	return SearchResponse{
		Count:   page.TotalCount,
		Content: content,
		Page:    page.Page,
		PerPage: page.PageSize,
	}
}

// JobsResponse wraps the open parcels around a carrier's position.
type JobsResponse struct {
	Message string         `json:"message"`
	Jobs    SearchResponse `json:"jobs"`
}

// IngestResultResponse represents the response for one feed ingest.
type IngestResultResponse struct {
	Feed       string `json:"feed"`
	Collection string `json:"collection"`
	Count      int    `json:"count"`
	Duration   string `json:"duration"`
	Error      string `json:"error,omitempty"`
}

// IngestResponse represents the response for an ingest of every feed.
type IngestResponse struct {
	Results []IngestResultResponse `json:"results"`
	Summary IngestSummary          `json:"summary"`
}

// IngestSummary holds summary of an ingest run.
type IngestSummary struct {
	TotalIngested int `json:"total_ingested"`
	FeedsOK       int `json:"feeds_ok"`
	FeedsFailed   int `json:"feeds_failed"`
}

// FromIngestResult converts a single service.IngestResult.
func FromIngestResult(r service.IngestResult) IngestResultResponse {
	resp := IngestResultResponse{
		Feed:       r.Feed,
		Collection: r.Collection,
		Count:      r.Count,
		Duration:   r.Duration.String(),
	}
	if r.Error != nil {
		resp.Error = r.Error.Error()
	}
	return resp
}

// FromIngestResults converts service.IngestResult slice to IngestResponse.
func FromIngestResults(results []service.IngestResult) IngestResponse {
	resp := IngestResponse{
		Results: make([]IngestResultResponse, len(results)),
	}

	for i, r := range results {
		if r.Error != nil {
			resp.Summary.FeedsFailed++
		} else {
			resp.Summary.TotalIngested += r.Count
			resp.Summary.FeedsOK++
		}
		resp.Results[i] = FromIngestResult(r)
	}

	return resp
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Details []string `json:"details,omitempty"`
}

// EntityStats is one row of the dashboard.
type EntityStats struct {
	Entity     string
	Collection string
	Documents  int
	Filters    int
	Sorts      int
}
