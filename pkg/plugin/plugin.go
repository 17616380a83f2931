// Package plugin defines the public types and collaborator interfaces of capwatch.
// External tools can import this package to plug in their own fetchers,
// renderers, or result writers without forking the project.
package plugin

import (
	"context"
	"net/http"
	"time"
)

// ---------- Core Data Types ----------

// CapacityResult is the normalized registration state of one competition.
// Nil numeric fields mean "unknown".
type CapacityResult struct {
	Registered *int   `json:"registered"`
	Limit      *int   `json:"limit"`
	Remaining  *int   `json:"remaining"`
	Queued     *int   `json:"queued,omitempty"`
	Note       Note   `json:"note"`
	Start      string `json:"start,omitempty"`
}

// HasData reports whether any field beyond the note is populated.
func (r CapacityResult) HasData() bool {
	return r.Registered != nil || r.Limit != nil || r.Remaining != nil || r.Queued != nil || r.Start != ""
}

// Empty returns a result with every numeric field unknown.
func Empty(note Note) CapacityResult {
	return CapacityResult{Note: note}
}

// Counts builds a result from a registered count and a limit, deriving
// remaining when both are known. Either argument may be negative to mean unknown.
func Counts(registered, limit int, note Note) CapacityResult {
	r := CapacityResult{Note: note}
	if registered >= 0 {
		r.Registered = Int(registered)
	}
	if limit >= 0 {
		r.Limit = Int(limit)
	}
	if r.Registered != nil && r.Limit != nil {
		r.Remaining = Int(limit - registered)
	}
	return r
}

// RemainingOnly builds a result that only knows how many spots are left.
func RemainingOnly(remaining int, note Note) CapacityResult {
	return CapacityResult{Remaining: Int(remaining), Note: note}
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// PageData is a fetched page as handed to the extraction strategies.
type PageData struct {
	URL           string        `json:"url"`
	FinalURL      string        `json:"final_url"`
	StatusCode    int           `json:"status_code"`
	Headers       http.Header   `json:"-"`
	Body          string        `json:"-"`
	Encoding      string        `json:"encoding"`
	ContentType   string        `json:"content_type"`
	FetchedAt     time.Time     `json:"fetched_at"`
	FetchDuration time.Duration `json:"fetch_duration"`
}

// RenderedPage is the output of a headless render: the settled DOM and
// whatever client-side state object the page exposed globally (nil if none).
type RenderedPage struct {
	URL   string `json:"url"`
	HTML  string `json:"-"`
	State any    `json:"-"`
}

// Summary is the aggregate of one batch run.
type Summary struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
	Total      int           `json:"total"`
	Resolved   int           `json:"resolved"`
	NoData     int           `json:"no_data"`
	NearlyFull int           `json:"nearly_full"`
}

// ---------- Collaborator Interfaces ----------

// Fetcher retrieves raw page text.
type Fetcher interface {
	// Name returns a human-readable identifier for this fetcher.
	Name() string

	// Fetch performs a single GET bounded by timeout. Non-2xx responses are
	// reported as errors carrying the status code.
	Fetch(ctx context.Context, url string, timeout time.Duration) (*PageData, error)

	// Close releases any resources held by the fetcher.
	Close() error
}

// Renderer loads a page in a headless browser. A nil Renderer means the
// capability is unavailable in this deployment.
type Renderer interface {
	// Render navigates to url, waits for the page to settle and captures the DOM.
	Render(ctx context.Context, url string, timeout time.Duration) (*RenderedPage, error)

	// Close shuts the browser down.
	Close() error
}

// ResultWriter defines how batch results are reported.
type ResultWriter interface {
	// Name returns a human-readable identifier for this writer.
	Name() string

	// WriteResult records one competition's result (called incrementally).
	WriteResult(name, url string, result CapacityResult, nearlyFull bool) error

	// Finalize writes the final summary and closes resources.
	Finalize(summary *Summary) error
}
