package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TjingLink is what a Metrix page tells us about a Tjing registration.
type TjingLink struct {
	// URL is the best Tjing address found, empty if none.
	URL string
	// RootOnly is set when URL is just the platform root, not an event.
	RootOnly bool
	// Mentioned is set when the prose names Tjing, link or not.
	Mentioned bool
}

var (
	// The leading class keeps hosts such as notjing.se out; group 1 is the address.
	tjingURLRe     = regexp.MustCompile(`(?i)(?:^|[^a-z0-9.-])((?:https?://)?(?:[a-z0-9-]+\.)*tjing\.se(?:/[^\s"'<>()\[\]{},;]*)?)`)
	tjingMentionRe = regexp.MustCompile(`(?i)\btjing`)

	linkAttrs = []string{"onclick", "data-href", "data-url", "data-registration", "data-target"}

	// genericTjingPaths are first path segments that do not identify an event.
	genericTjingPaths = map[string]bool{
		"": true, "en": true, "sv": true, "fi": true, "events": true, "login": true,
		"signup": true, "register": true, "about": true, "contact": true,
	}
)

// FindTjingLink scans anchors, then link-carrying attributes and visible
// text, for a Tjing address. An event-specific link wins over a root link.
func FindTjingLink(p *Page) TjingLink {
	var link TjingLink
	event, root := TjingAnchors(p.Doc, p.URL)
	link.URL = event

	if event == "" {
		var candidates []string
		p.Doc.Find("[" + strings.Join(linkAttrs, "], [") + "]").Each(func(_ int, s *goquery.Selection) {
			for _, attr := range linkAttrs {
				if val, ok := s.Attr(attr); ok {
					candidates = append(candidates, tjingURLs(val)...)
				}
			}
		})
		candidates = append(candidates, tjingURLs(p.Text)...)

		for _, c := range candidates {
			abs := absoluteTjing(c)
			if IsTjingEvent(abs) {
				link.URL = abs
				break
			}
			if root == "" {
				root = abs
			}
		}
	}

	if link.URL == "" && root != "" {
		link.URL = root
		link.RootOnly = true
	}
	link.Mentioned = tjingMentionRe.MatchString(p.Text)
	return link
}

func tjingURLs(s string) []string {
	var out []string
	for _, m := range tjingURLRe.FindAllStringSubmatch(s, -1) {
		out = append(out, m[1])
	}
	return out
}

// TjingAnchors returns the first event-specific Tjing anchor and the first
// root-only one, resolving relative hrefs against base.
func TjingAnchors(doc *goquery.Document, base string) (event, root string) {
	baseURL, _ := url.Parse(base)
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		resolved := resolveURL(baseURL, strings.TrimSpace(href))
		if resolved == "" || !IsTjingURL(resolved) {
			return true
		}
		if IsTjingEvent(resolved) {
			event = resolved
			return false
		}
		if root == "" {
			root = resolved
		}
		return true
	})
	return event, root
}

// IsTjingEvent reports whether raw is a Tjing URL with an event-specific path.
func IsTjingEvent(raw string) bool {
	if !IsTjingURL(raw) {
		return false
	}
	u, err := parseLoose(raw)
	if err != nil {
		return false
	}
	first, _, _ := strings.Cut(strings.Trim(u.Path, "/"), "/")
	return !genericTjingPaths[strings.ToLower(first)]
}

func absoluteTjing(raw string) string {
	u, err := parseLoose(strings.TrimRight(raw, ".:"))
	if err != nil {
		return raw
	}
	if u.Scheme == "http" {
		u.Scheme = "https"
	}
	return u.String()
}

// resolveURL resolves a potentially relative URL against a base URL.
func resolveURL(base *url.URL, raw string) string {
	if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, "javascript:") ||
		strings.HasPrefix(raw, "mailto:") || strings.HasPrefix(raw, "tel:") {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
