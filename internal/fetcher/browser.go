package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ramkansal/capwatch/pkg/plugin"
)

// ErrBrowserUnavailable is returned when Chrome could not be launched.
var ErrBrowserUnavailable = errors.New("headless browser unavailable")

// stateGlobals are the window properties pages commonly park their client-side state in.
var stateGlobals = []string{
	"__NEXT_DATA__",
	"__NUXT__",
	"__INITIAL_STATE__",
	"__PRELOADED_STATE__",
	"__APOLLO_STATE__",
	"__APP_STATE__",
	"__STATE__",
	"__DATA__",
}

// BrowserRenderer uses Rod (headless Chrome) to render JS-heavy pages.
// The browser is launched on first use; a failed launch is remembered and
// every later Render returns ErrBrowserUnavailable.
type BrowserRenderer struct {
	settle    time.Duration
	userAgent string
	bin       string

	once      sync.Once
	browser   *rod.Browser
	launchErr error
}

// BrowserRendererConfig holds configuration for the browser renderer.
type BrowserRendererConfig struct {
	// Settle bounds how long to wait for the DOM to stop changing.
	Settle    time.Duration
	UserAgent string
	// Bin overrides the Chrome binary; empty lets rod find or download one.
	Bin string
}

// NewBrowserRenderer creates a Rod-based renderer. Nothing is launched yet.
func NewBrowserRenderer(cfg BrowserRendererConfig) *BrowserRenderer {
	settle := cfg.Settle
	if settle == 0 {
		settle = 5 * time.Second
	}
	return &BrowserRenderer{
		settle:    settle,
		userAgent: cfg.UserAgent,
		bin:       cfg.Bin,
	}
}

func (r *BrowserRenderer) launch() {
	l := launcher.New().
		Headless(true).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-dev-shm-usage")
	if r.bin != "" {
		l = l.Bin(r.bin)
	}
	u, err := l.Launch()
	if err != nil {
		r.launchErr = fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
		return
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		r.launchErr = fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
		return
	}
	r.browser = browser
}

// Render navigates to targetURL, waits for it to settle and captures the DOM
// together with the first global state object found.
func (r *BrowserRenderer) Render(ctx context.Context, targetURL string, timeout time.Duration) (*plugin.RenderedPage, error) {
	r.once.Do(r.launch)
	if r.launchErr != nil {
		return nil, r.launchErr
	}

	rodPage, err := r.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer rodPage.Close()

	rodPage = rodPage.Context(ctx)
	if timeout > 0 {
		rodPage = rodPage.Timeout(timeout)
	}

	if r.userAgent != "" {
		_ = rodPage.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent: r.userAgent,
		})
	}

	if err := rodPage.Navigate(targetURL); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", targetURL, err)
	}

	// A page that never fully settles is still worth reading.
	_ = rodPage.WaitStable(r.settle)

	out := &plugin.RenderedPage{URL: targetURL}
	if info, err := rodPage.Info(); err == nil {
		out.URL = info.URL
	}

	html, err := rodPage.HTML()
	if err != nil {
		return nil, fmt.Errorf("read rendered html: %w", err)
	}
	out.HTML = html
	out.State = probeState(rodPage)

	return out, nil
}

// probeState returns the first non-empty global state object, decoded from JSON.
func probeState(page *rod.Page) any {
	js := `(names) => {
		for (const n of names) {
			try {
				const v = window[n];
				if (v) return JSON.stringify(v);
			} catch (e) {}
		}
		return "";
	}`
	res, err := page.Eval(js, stateGlobals)
	if err != nil || res == nil {
		return nil
	}
	raw := strings.TrimSpace(res.Value.Str())
	if raw == "" {
		return nil
	}
	var state any
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil
	}
	return state
}

func (r *BrowserRenderer) Close() error {
	if r.browser != nil {
		return r.browser.Close()
	}
	return nil
}
