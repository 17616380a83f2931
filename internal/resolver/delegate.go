package resolver

import (
	"context"
	"time"

	"github.com/ramkansal/capwatch/internal/extractor"
	"github.com/ramkansal/capwatch/pkg/plugin"
)

// delegate decides whether a Metrix page hands registration off to Tjing and,
// if so, resolves the Tjing side. ok is true when the returned result must be
// used as-is: either Tjing produced data, or the page names Tjing without any
// resolvable link.
func (e *Engine) delegate(ctx context.Context, page *extractor.Page, pr *pageRender, timeout time.Duration, now time.Time) (plugin.CapacityResult, bool) {
	link := extractor.FindTjingLink(page)

	target := link.URL
	switch {
	case link.URL != "" && !link.RootOnly:
	case link.RootOnly:
		if deeper := e.discoverTjing(ctx, pr); deeper != "" {
			target = deeper
		}
	case link.Mentioned:
		target = e.discoverTjing(ctx, pr)
		if target == "" {
			e.log.Debug().Str("url", page.URL).Msg("page mentions tjing but links nowhere")
			return plugin.Empty(plugin.NoteOf(plugin.NoteMetrixMentionsTjing)), true
		}
	default:
		return plugin.CapacityResult{}, false
	}

	e.log.Debug().Str("url", page.URL).Str("tjing", target).Msg("delegating to tjing")
	res := e.resolveTjing(ctx, target, timeout, now)
	if !res.HasData() {
		return plugin.CapacityResult{}, false
	}
	return res, true
}

// discoverTjing renders the page and looks for an event-specific Tjing anchor
// in the final DOM. It returns "" when rendering is unavailable or finds none.
func (e *Engine) discoverTjing(ctx context.Context, pr *pageRender) string {
	rendered := e.renderOnce(ctx, pr)
	if rendered == nil {
		return ""
	}
	page, err := extractor.NewPage(rendered.URL, rendered.HTML, e.now(), e.cfg.Location)
	if err != nil {
		return ""
	}
	event, _ := extractor.TjingAnchors(page.Doc, page.URL)
	return event
}
