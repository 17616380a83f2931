package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/ramkansal/capwatch/pkg/plugin"
	"golang.org/x/net/html/charset"
)

// DefaultUserAgent identifies capwatch to the sites it polls.
const DefaultUserAgent = "capwatch/1.0 (+disc golf competition capacity monitor)"

// ErrHTTPStatus is matched by every *StatusError.
var ErrHTTPStatus = errors.New("unexpected http status")

// StatusError is returned by Fetch for non-2xx responses.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d fetching %s", e.Status, e.URL)
}

func (e *StatusError) Is(target error) bool { return target == ErrHTTPStatus }

// HTTPFetcher uses Colly for plain HTTP page fetching.
type HTTPFetcher struct {
	collector *colly.Collector
	userAgent string
	headers   []string
	timeout   time.Duration
}

// HTTPFetcherConfig holds configuration for the HTTP fetcher.
type HTTPFetcherConfig struct {
	UserAgent       string
	Timeout         time.Duration
	MaxResponseSize int
	Proxy           string
	CustomHeaders   []string
}

// NewHTTPFetcher creates a new Colly-based HTTP fetcher.
func NewHTTPFetcher(cfg HTTPFetcherConfig) *HTTPFetcher {
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
	)

	c.UserAgent = DefaultUserAgent
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}

	c.IgnoreRobotsTxt = true
	// Status handling is ours: a 404 must reach OnResponse so it can be reported as "http 404".
	c.ParseHTTPErrorResponse = true
	// Charset handling is ours too (see decodeBody), so colly leaves undeclared bodies untouched.
	c.DetectCharset = false

	// Deadlines come from the per-call context; a client timeout would cap them.
	c.SetRequestTimeout(0)

	if cfg.Proxy != "" {
		_ = c.SetProxy(cfg.Proxy)
	}

	if cfg.MaxResponseSize > 0 {
		c.MaxBodySize = cfg.MaxResponseSize
	}

	return &HTTPFetcher{
		collector: c,
		userAgent: c.UserAgent,
		headers:   cfg.CustomHeaders,
		timeout:   cfg.Timeout,
	}
}

func (f *HTTPFetcher) Name() string { return "http" }

// Fetch performs a single GET. Transport failures are returned as-is, non-2xx
// responses as *StatusError; in both cases the returned page carries whatever
// was learned.
func (f *HTTPFetcher) Fetch(ctx context.Context, targetURL string, timeout time.Duration) (*plugin.PageData, error) {
	start := time.Now()

	page := &plugin.PageData{
		URL:       targetURL,
		FinalURL:  targetURL,
		FetchedAt: start,
	}

	if timeout <= 0 {
		timeout = f.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Clone the collector for this individual fetch so callbacks and context stay per-call.
	c := f.collector.Clone()
	c.Context = ctx

	var fetchErr error

	// Clone drops request callbacks, so headers are attached per fetch.
	if len(f.headers) > 0 {
		c.OnRequest(func(r *colly.Request) {
			for _, h := range f.headers {
				parts := strings.SplitN(h, ":", 2)
				if len(parts) == 2 {
					r.Headers.Set(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
				}
			}
		})
	}

	c.OnResponse(func(r *colly.Response) {
		page.StatusCode = r.StatusCode
		page.FinalURL = r.Request.URL.String()
		page.ContentType = r.Headers.Get("Content-Type")

		page.Headers = make(http.Header)
		for key, values := range *r.Headers {
			for _, v := range values {
				page.Headers.Add(key, v)
			}
		}

		body, enc := decodeBody(r.Body, page.ContentType)
		page.Body = body
		page.Encoding = enc
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		if r != nil && r.Request != nil {
			page.StatusCode = r.StatusCode
			page.FinalURL = r.Request.URL.String()
		}
	})

	if err := c.Visit(targetURL); err != nil && fetchErr == nil {
		fetchErr = err
	}
	c.Wait()

	page.FetchDuration = time.Since(start)

	if fetchErr != nil {
		return page, fetchErr
	}
	if page.StatusCode < 200 || page.StatusCode > 299 {
		return page, &StatusError{URL: targetURL, Status: page.StatusCode}
	}
	return page, nil
}

func (f *HTTPFetcher) Close() error {
	return nil
}

// decodeBody converts body to UTF-8 using the encoding the page declares
// (Content-Type, BOM or <meta charset>), sniffing when nothing is declared.
// It returns the text and the name of the encoding that was applied.
//
// When the Content-Type header names a charset colly has already transcoded
// the body, so only the name is reported.
func decodeBody(body []byte, contentType string) (string, string) {
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if strings.Contains(strings.ToLower(contentType), "charset") {
		return string(body), name
	}
	if name == "utf-8" || enc == nil {
		return string(body), name
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return string(body), "utf-8"
	}
	return string(decoded), name
}
