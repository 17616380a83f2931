package extractor

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"github.com/ramkansal/capwatch/pkg/plugin"
)

var remainingJSONRe = regexp.MustCompile(`"(?:remaining|remainingSlots|available)"\s*:\s*"?(-?\d{1,5})\b`)

var remainingAttrs = []string{"data-remaining", "data-spots", "data-available"}

// embeddedRemaining reads a remaining count from JSON keys in the raw markup.
func embeddedRemaining(p *Page, note plugin.Note) *plugin.CapacityResult {
	m := remainingJSONRe.FindStringSubmatch(p.Raw)
	if m == nil {
		return nil
	}
	n, ok := signedInt(m[1])
	if !ok {
		return nil
	}
	return found(plugin.RemainingOnly(n, note))
}

// dataAttrRemaining reads a remaining count from data-* attributes.
func dataAttrRemaining(p *Page, note plugin.Note) *plugin.CapacityResult {
	var res *plugin.CapacityResult
	p.Doc.Find("[data-remaining], [data-spots], [data-available]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, attr := range remainingAttrs {
			if val, exists := s.Attr(attr); exists {
				if n, ok := signedInt(val); ok {
					res = found(plugin.RemainingOnly(n, note))
					return false
				}
			}
		}
		return true
	})
	return res
}

// signedInt parses an integer that may be negative (an over-full event).
func signedInt(s string) (int, bool) {
	if len(s) > 0 && s[0] == '-' {
		n := atoi(s[1:])
		return -n, n >= 0
	}
	n := atoi(s)
	return n, n >= 0
}
