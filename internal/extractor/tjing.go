package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ramkansal/capwatch/pkg/plugin"
	"golang.org/x/net/html"
)

// TjingChain is the strategy order for Tjing registration pages.
var TjingChain = Chain{
	{Name: "registration-not-open", Run: RegistrationNotOpen},
	{Name: "json-fields", Run: TjingJSON},
	{Name: "labelled-bold", Run: TjingLabelled},
	{Name: "free-text", Run: TjingText},
	{Name: "embedded-json", Run: TjingEmbedded},
	{Name: "remaining-text", Run: TjingRemainingText},
	{Name: "data-attributes", Run: TjingDataAttr},
}

// ConfirmedPath is the Tjing sub-page listing confirmed players.
const ConfirmedPath = "/players/confirmed"

var (
	confirmedJSONRe = regexp.MustCompile(`"confirmed"\s*:\s*(\d{1,5})\b`)
	capacityJSONRe  = regexp.MustCompile(`"(?:capacity|maxPlayers)"\s*:\s*(\d{1,5})\b`)

	confirmedTextRe = regexp.MustCompile(`(?i)` +
		`(\d{1,4})\s+(?:confirmed(?:\s+players)?|bekräftade(?:\s+spelare)?|vahvistettu\p{L}*(?:\s+pelaaj\p{L}*)?)`)
	limitTextRe = regexp.MustCompile(`(?i)(\d{1,4})\s+(max(?:imum)?|capacity|spots|platser|paikkaa)\b([^\n]{0,16})`)
	leftWordRe  = regexp.MustCompile(`(?i)^\s*(?:left|remaining|available|kvar|lediga|jäljellä|vapaana)`)

	boldRemainingRe = regexp.MustCompile(`(?i)available|left|remaining|lediga|kvar|vapaa|jäljellä`)
	boldLimitRe     = regexp.MustCompile(`(?i)max|capacity|kapacitet|total|totalt|maksimi|yhteensä`)
)

// IsTjingURL reports whether raw points at tjing.se or one of its subdomains.
func IsTjingURL(raw string) bool {
	u, err := parseLoose(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "tjing.se" || strings.HasSuffix(host, ".tjing.se")
}

// ConfirmedURL returns the confirmed-players sub-page of a Tjing event URL.
func ConfirmedURL(raw string) string {
	u, err := parseLoose(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	p := strings.TrimRight(u.Path, "/")
	if !strings.HasSuffix(p, ConfirmedPath) {
		p += ConfirmedPath
	}
	u.Path = p
	return u.String()
}

// TjingJSON reads "confirmed" together with "capacity"/"maxPlayers" from
// inline JSON. A confirmed count alone is not enough.
func TjingJSON(p *Page) *plugin.CapacityResult {
	registered := firstInt(confirmedJSONRe, p.Raw)
	limit := firstInt(capacityJSONRe, p.Raw)
	if registered < 0 || limit < 0 {
		return nil
	}
	return found(plugin.Counts(registered, limit, plugin.NoteOf(plugin.NoteTjingJSON)))
}

// TjingLabelled classifies "<b>N</b> label" blocks into limit and remaining
// roles and derives the registered count from both.
func TjingLabelled(p *Page) *plugin.CapacityResult {
	limit, remaining := boldRoles(p.Doc, 0)
	if limit < 0 || remaining < 0 || remaining > limit {
		return nil
	}
	return found(plugin.Counts(limit-remaining, limit, plugin.NoteOf(plugin.NoteTjingLabelled)))
}

// TjingText reads "N confirmed players" and "N max" style phrases. A
// registered count without a limit is returned as-is.
func TjingText(p *Page) *plugin.CapacityResult {
	registered := firstInt(confirmedTextRe, p.Text)
	if registered < 0 {
		return nil
	}
	return found(plugin.Counts(registered, limitFromText(p.Text, 0), plugin.NoteOf(plugin.NoteTjingText)))
}

// TjingEmbedded reads a remaining count from inline JSON keys.
func TjingEmbedded(p *Page) *plugin.CapacityResult {
	return embeddedRemaining(p, plugin.NoteOf(plugin.NoteTjingEmbedded))
}

// TjingRemainingText reads "N slots left" style phrases.
func TjingRemainingText(p *Page) *plugin.CapacityResult {
	left := firstInt(placesLeftRe, p.Text)
	if left < 0 {
		return nil
	}
	return found(plugin.RemainingOnly(left, plugin.NoteOf(plugin.NoteTjingRemainingText)))
}

// TjingDataAttr reads a remaining count from data-* attributes.
func TjingDataAttr(p *Page) *plugin.CapacityResult {
	return dataAttrRemaining(p, plugin.NoteOf(plugin.NoteTjingDataAttr))
}

// limitFromText returns the first "N max/capacity/spots" number that is not
// a "spots left" phrase, or -1. A positive bound rejects values >= bound.
func limitFromText(text string, bound int) int {
	for _, m := range limitTextRe.FindAllStringSubmatch(text, -1) {
		if leftWordRe.MatchString(m[3]) {
			continue
		}
		n := atoi(m[1])
		if n > 0 && (bound <= 0 || n < bound) {
			return n
		}
	}
	return -1
}

// boldRoles scans bold numbers followed by an inline label. It returns the
// first limit and first remaining value found, -1 for a role not seen. A
// positive bound rejects values >= bound.
func boldRoles(doc *goquery.Document, bound int) (limit, remaining int) {
	limit, remaining = -1, -1
	doc.Find("b, strong").Each(func(_ int, s *goquery.Selection) {
		n := cellInt(s.Text())
		if n < 0 || (bound > 0 && n >= bound) {
			return
		}
		label := labelAfter(s)
		switch {
		case boldRemainingRe.MatchString(label):
			if remaining < 0 {
				remaining = n
			}
		case boldLimitRe.MatchString(label):
			if limit < 0 {
				limit = n
			}
		}
	})
	return limit, remaining
}

// labelAfter collects the text that follows s up to the next bold element.
func labelAfter(s *goquery.Selection) string {
	if len(s.Nodes) == 0 {
		return ""
	}
	var b strings.Builder
	for n := s.Nodes[0].NextSibling; n != nil && b.Len() < 60; n = n.NextSibling {
		if n.Type == html.ElementNode && (n.Data == "b" || n.Data == "strong") {
			break
		}
		b.WriteString(goquery.NewDocumentFromNode(n).Text())
		b.WriteByte(' ')
	}
	label := strings.TrimSpace(b.String())
	if label == "" {
		// <div><b>72</b></div><div>Max spots</div>
		label = strings.TrimSpace(s.Parent().Next().Text())
	}
	return label
}

// parseLoose parses a URL that may lack a scheme.
func parseLoose(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + strings.TrimPrefix(raw, "//")
	}
	return url.Parse(raw)
}
