// Package extractor holds the capacity extraction strategies for both
// platforms. Every strategy is a pure function of a parsed Page; the order in
// which they are tried is spelled out by the chain literals in metrix.go,
// tjing.go and render.go.
package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// Page is one parsed document as seen by the strategies.
type Page struct {
	// URL is the address the markup was loaded from; relative links resolve against it.
	URL string
	Doc *goquery.Document
	// Text is the visible text: one line per block element, NFC-normalized.
	Text string
	// Raw is the markup as fetched, including scripts.
	Raw string
	// Now is the resolution time used for registration-date comparisons.
	Now time.Time
	// Loc interprets dates printed on the page.
	Loc *time.Location
}

// NewPage parses raw markup.
func NewPage(pageURL, raw string, now time.Time, loc *time.Location) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Page{
		URL:  pageURL,
		Doc:  doc,
		Text: VisibleText(doc.Selection),
		Raw:  raw,
		Now:  now,
		Loc:  loc,
	}, nil
}

var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true, "head": true, "svg": true,
}

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true, "dd": true,
	"div": true, "dl": true, "dt": true, "footer": true, "form": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "header": true, "hr": true, "li": true,
	"main": true, "nav": true, "ol": true, "p": true, "section": true, "table": true,
	"tbody": true, "thead": true, "tr": true, "ul": true,
}

var spaceRun = regexp.MustCompile(`[ \t\r\f\v\x{00a0}]+`)

// VisibleText returns the human-visible text under sel, with block elements on
// their own lines and table cells separated by spaces.
func VisibleText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if skipTags[n.Data] {
				return
			}
		case html.CommentNode:
			return
		}
		block := n.Type == html.ElementNode && blockTags[n.Data]
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		switch {
		case block:
			b.WriteByte('\n')
		case n.Type == html.ElementNode && (n.Data == "td" || n.Data == "th"):
			b.WriteByte(' ')
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}

	var lines []string
	for _, line := range strings.Split(norm.NFC.String(b.String()), "\n") {
		line = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// atoi parses a small non-negative integer, returning -1 on failure.
func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return -1
	}
	return n
}

var intOnly = regexp.MustCompile(`^\s*(\d{1,5})\s*$`)

// cellInt returns the integer a table cell consists of, or -1.
func cellInt(s string) int {
	m := intOnly.FindStringSubmatch(s)
	if m == nil {
		return -1
	}
	return atoi(m[1])
}

// firstInt returns the first capture of re in s as an integer, or -1.
func firstInt(re *regexp.Regexp, s string) int {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return -1
	}
	for _, g := range m[1:] {
		if g != "" {
			return atoi(g)
		}
	}
	return -1
}
