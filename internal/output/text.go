package output

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/ramkansal/capwatch/pkg/plugin"
)

// TextWriter writes a watch run to a plain text file,
// mirroring the terminal output (without ANSI color codes).
type TextWriter struct {
	path  string
	lines []string
	mu    sync.Mutex
}

// NewTextWriter creates a new plain-text report writer.
func NewTextWriter(path string) *TextWriter {
	return &TextWriter{path: path}
}

func (w *TextWriter) Name() string { return "text" }

func (w *TextWriter) WriteResult(name, url string, result plugin.CapacityResult, nearlyFull bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	flag := "  "
	if nearlyFull {
		flag = "!!"
	}
	w.lines = append(w.lines, fmt.Sprintf("  %s %s %s %s", flag, Cell(name, 32), Cell(FormatCounts(result), 22), result.Note))
	w.lines = append(w.lines, fmt.Sprintf("      +-- %s", url))
	if result.Start != "" {
		w.lines = append(w.lines, fmt.Sprintf("      +-- registration opens %s", result.Start))
	}
	return nil
}

func (w *TextWriter) Finalize(summary *plugin.Summary) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var b strings.Builder

	// Banner
	b.WriteString("\n  CAPWATCH v1.0.0\n")
	b.WriteString("  Disc golf competition capacity monitor\n")
	b.WriteString("  " + strings.Repeat("-", 58) + "\n\n")

	b.WriteString(fmt.Sprintf("  Started: %s\n\n", summary.StartedAt.Format(time.RFC1123)))

	for _, line := range w.lines {
		b.WriteString(line + "\n")
	}

	// Summary
	b.WriteString("\n  " + strings.Repeat("-", 50) + "\n")
	b.WriteString("  Watch complete\n")
	b.WriteString(fmt.Sprintf("    Competitions: %d checked in %s\n", summary.Total, FmtDur(summary.Duration)))
	b.WriteString(fmt.Sprintf("    Results:      %d resolved, %d no data, %d nearly full\n",
		summary.Resolved, summary.NoData, summary.NearlyFull))
	b.WriteString("\n")

	return os.WriteFile(w.path, []byte(b.String()), 0644)
}

// ---------- helpers ----------

// FormatCounts renders the numeric part of a result, e.g. "24/30 (6 left)".
func FormatCounts(r plugin.CapacityResult) string {
	reg, lim := "?", "?"
	if r.Registered != nil {
		reg = fmt.Sprintf("%d", *r.Registered)
	}
	if r.Limit != nil {
		lim = fmt.Sprintf("%d", *r.Limit)
	}
	if r.Registered == nil && r.Limit == nil {
		if r.Remaining != nil {
			return fmt.Sprintf("%d left", *r.Remaining)
		}
		return "-"
	}
	s := reg + "/" + lim
	switch {
	case r.Queued != nil && *r.Queued > 0:
		s += fmt.Sprintf(" (+%d queued)", *r.Queued)
	case r.Remaining != nil:
		s += fmt.Sprintf(" (%d left)", *r.Remaining)
	}
	return s
}

// Cell pads or truncates s to exactly w terminal columns.
func Cell(s string, w int) string {
	return runewidth.FillRight(runewidth.Truncate(s, w, "..."), w)
}

// FmtDur formats a duration compactly: 850ms, 3.2s, 2m5s.
func FmtDur(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}
