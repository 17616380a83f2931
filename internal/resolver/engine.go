// Package resolver turns a competition URL into a normalized capacity record.
//
// Resolution is synchronous: a call performs at most a handful of sequential
// fetches (the Metrix page, an optional Tjing page, an optional headless
// render) and never returns an error. Every failure is folded into the
// result's note.
package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/ramkansal/capwatch/internal/extractor"
	"github.com/ramkansal/capwatch/internal/fetcher"
	"github.com/ramkansal/capwatch/pkg/plugin"
)

// Engine resolves competition capacity across DiscGolfMetrix and Tjing.
// It holds no mutable state and may be shared between goroutines.
type Engine struct {
	cfg      *Config
	fetch    plugin.Fetcher
	renderer plugin.Renderer
	log      zerolog.Logger
	now      func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithFetcher replaces the default colly fetcher.
func WithFetcher(f plugin.Fetcher) Option {
	return func(e *Engine) { e.fetch = f }
}

// WithRenderer enables the headless render fallback. Without it the fallback
// steps are skipped.
func WithRenderer(r plugin.Renderer) Option {
	return func(e *Engine) { e.renderer = r }
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock sets the time source used for registration-date comparisons.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine.
func New(cfg *Config, opts ...Option) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	e := &Engine{
		cfg: cfg,
		log: zerolog.Nop(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.fetch == nil {
		e.fetch = fetcher.NewHTTPFetcher(fetcher.HTTPFetcherConfig{
			UserAgent:       cfg.UserAgent,
			Timeout:         cfg.Timeout,
			MaxResponseSize: cfg.MaxResponseSize,
			Proxy:           cfg.Proxy,
			CustomHeaders:   cfg.CustomHeaders,
		})
	}
	return e
}

// Resolve reads the capacity of the Metrix competition at url, deferring to a
// linked Tjing registration when there is one. A non-positive timeout uses
// the configured default.
func (e *Engine) Resolve(ctx context.Context, url string, timeout time.Duration) plugin.CapacityResult {
	return extractor.Sanitize(e.resolveMetrix(ctx, url, e.timeout(timeout), e.now()))
}

// ResolveTjing reads the capacity of a Tjing event directly.
func (e *Engine) ResolveTjing(ctx context.Context, url string, timeout time.Duration) plugin.CapacityResult {
	return extractor.Sanitize(e.resolveTjing(ctx, url, e.timeout(timeout), e.now()))
}

func (e *Engine) resolveMetrix(ctx context.Context, url string, timeout time.Duration, now time.Time) plugin.CapacityResult {
	page, failed := e.load(ctx, url, timeout, now)
	if failed != nil {
		return *failed
	}

	gate, rest := extractor.MetrixChain[:1], extractor.MetrixChain[1:]
	if res, name := gate.Run(page); res != nil {
		e.logMatch(url, name, *res)
		return *res
	}

	pr := &pageRender{url: url}
	if res, ok := e.delegate(ctx, page, pr, timeout, now); ok {
		return res
	}

	if res, name := rest.Run(page); res != nil {
		e.logMatch(url, name, *res)
		return *res
	}

	if res := e.renderFallback(ctx, pr, now); res != nil {
		return *res
	}
	return plugin.Empty(plugin.NoteOf(plugin.NoteNoData))
}

func (e *Engine) resolveTjing(ctx context.Context, url string, timeout time.Duration, now time.Time) plugin.CapacityResult {
	if !extractor.IsTjingURL(url) {
		return plugin.Empty(plugin.NoteOf(plugin.NoteNotTjingURL))
	}
	target := extractor.ConfirmedURL(url)

	page, failed := e.load(ctx, target, timeout, now)
	if failed != nil {
		return *failed
	}

	if res, name := extractor.TjingChain.Run(page); res != nil {
		e.logMatch(target, name, *res)
		return *res
	}

	if res := e.renderFallback(ctx, &pageRender{url: target}, now); res != nil {
		return *res
	}
	return plugin.Empty(plugin.NoteOf(plugin.NoteNoData))
}

// load fetches and parses url. On failure it returns the result to report instead.
func (e *Engine) load(ctx context.Context, url string, timeout time.Duration, now time.Time) (*extractor.Page, *plugin.CapacityResult) {
	data, err := e.fetch.Fetch(ctx, url, timeout)
	if err != nil {
		var statusErr *fetcher.StatusError
		if errors.As(err, &statusErr) {
			e.log.Debug().Str("url", url).Int("status", statusErr.Status).Msg("fetch returned non-2xx")
			res := plugin.Empty(plugin.HTTPStatusNote(statusErr.Status))
			return nil, &res
		}
		e.log.Warn().Err(err).Str("url", url).Msg("fetch failed")
		res := plugin.Empty(plugin.FetchErrorNote(err))
		return nil, &res
	}

	base := data.FinalURL
	if base == "" {
		base = url
	}
	page, err := extractor.NewPage(base, data.Body, now, e.cfg.Location)
	if err != nil {
		res := plugin.Empty(plugin.FetchErrorNote(err))
		return nil, &res
	}
	e.log.Debug().Str("url", url).Str("encoding", data.Encoding).Dur("took", data.FetchDuration).Msg("page fetched")
	return page, nil
}

// pageRender holds the headless render of one URL so a resolution renders it
// at most once.
type pageRender struct {
	url  string
	done bool
	page *plugin.RenderedPage
}

func (e *Engine) renderOnce(ctx context.Context, pr *pageRender) *plugin.RenderedPage {
	if !pr.done {
		pr.done = true
		pr.page = e.render(ctx, pr.url)
	}
	return pr.page
}

// renderFallback renders the page headlessly and tries the client-side state
// object, then the reduced DOM chain. It returns nil when rendering is
// unavailable or found nothing.
func (e *Engine) renderFallback(ctx context.Context, pr *pageRender, now time.Time) *plugin.CapacityResult {
	url := pr.url
	rendered := e.renderOnce(ctx, pr)
	if rendered == nil {
		return nil
	}

	if res := extractor.FromState(rendered.State); res != nil {
		e.logMatch(url, "render-state", *res)
		return res
	}

	page, err := extractor.NewPage(rendered.URL, rendered.HTML, now, e.cfg.Location)
	if err != nil {
		return nil
	}
	res, name := extractor.RenderChain.Run(page)
	if res != nil {
		e.logMatch(url, name, *res)
	}
	return res
}

func (e *Engine) render(ctx context.Context, url string) *plugin.RenderedPage {
	if e.renderer == nil || e.cfg.DisableRender {
		return nil
	}
	rendered, err := e.renderer.Render(ctx, url, e.cfg.RenderTimeout)
	if err != nil || rendered == nil {
		e.log.Debug().Err(err).Str("url", url).Msg("render skipped")
		return nil
	}
	if rendered.URL == "" {
		rendered.URL = url
	}
	return rendered
}

func (e *Engine) timeout(t time.Duration) time.Duration {
	if t > 0 {
		return t
	}
	return e.cfg.Timeout
}

func (e *Engine) logMatch(url, strategy string, res plugin.CapacityResult) {
	e.log.Debug().
		Str("url", url).
		Str("strategy", strategy).
		Stringer("note", res.Note).
		Msg("strategy matched")
}

// Close releases the fetcher and renderer.
func (e *Engine) Close() error {
	var errs []error
	if e.fetch != nil {
		errs = append(errs, e.fetch.Close())
	}
	if e.renderer != nil {
		errs = append(errs, e.renderer.Close())
	}
	return errors.Join(errs...)
}
