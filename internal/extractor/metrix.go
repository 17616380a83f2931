package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ramkansal/capwatch/pkg/plugin"
)

// MetrixChain is the strategy order for DiscGolfMetrix competition pages.
// RegistrationNotOpen comes first and is also consulted before delegation.
var MetrixChain = Chain{
	{Name: "registration-not-open", Run: RegistrationNotOpen},
	{Name: "header-metadata", Run: MetrixHeader},
	{Name: "labelled-phrase", Run: MetrixLabelled},
	{Name: "stats-table", Run: MetrixStatsTable},
	{Name: "generic-pattern", Run: MetrixGeneric},
	{Name: "embedded-json", Run: MetrixEmbedded},
}

// headerSelector is the competition header block that carries the explicit
// player cap when the organizer set one.
const headerSelector = ".main-header-meta"

var (
	maxPlayersRe = regexp.MustCompile(`(?i)` +
		`(?:max(?:imum)?\.?\s*(?:number\s+of\s+)?(?:players|participants|competitors)` +
		`|maksimi\s*(?:pelaaja|osallistuja)?määrä` +
		`|pelaajien\s+(?:maksimi|enimmäis)määrä` +
		`|enimmäismäärä` +
		`|max(?:imalt)?\s+antal\s+(?:spelare|deltagare))` +
		`\s*[:=]?\s*(\d{1,4})`)

	registeredRe = regexp.MustCompile(`(?i)` +
		`(?:registered\s+players|registered` +
		`|ilmoittautuneet(?:\s+pelaajat)?|ilmoittautuneita|rekisteröityneet` +
		`|registrerade(?:\s+spelare)?|anmälda(?:\s+spelare)?)` +
		`\s*[:=]\s*(\d{1,4})`)

	maxGenericRe = regexp.MustCompile(`(?i)` +
		`(?:max(?:imum)?|maksimi|limit|capacity|kapasiteetti|enimmäismäärä|kapacitet)` +
		`[^\d\n:]{0,30}:\s*(\d{1,4})`)

	slashRe = regexp.MustCompile(`(?:^|[^\d./:])(\d{1,4})\s*/\s*(\d{1,4})(?:[^\d./]|$)`)

	placesLeftRe = regexp.MustCompile(`(?i)` +
		`(\d{1,4})\s+(?:free\s+)?(?:places?|spots?|slots?|paikkaa?|paikkoja|platser?)\s+` +
		`(?:left|remaining|available|jäljellä|vapaana|kvar|lediga)`)

	nameHeaderRe   = regexp.MustCompile(`(?i)\b(?:name|nimi|namn)\b`)
	countHeaderRe  = regexp.MustCompile(`(?i)määrä|lkm|count|antal|players|pelaajia|registered|ilmoittautuneet`)
	maxHeaderRe    = regexp.MustCompile(`(?i)\bmax|maks|limit|enimm`)
	summaryLabelRe = regexp.MustCompile(`(?i)yhteensä|total|summa|ilmoittautuneet|registered|registration|anmälda`)
)

// MetrixHeader reads the explicit cap from the competition header. A header
// without a cap means the event has no stated limit, which is itself an
// answer: the weaker text heuristics must not guess one.
func MetrixHeader(p *Page) *plugin.CapacityResult {
	header := p.Doc.Find(headerSelector).First()
	if header.Length() == 0 {
		return nil
	}

	registered := CountRegistered(p)

	limit := firstInt(maxPlayersRe, VisibleText(header))
	if limit < 0 {
		return found(plugin.Counts(registered, -1, plugin.NoteOf(plugin.NoteMetrixHeaderNoLimit)))
	}
	if registered < 0 {
		return nil
	}
	return found(plugin.Counts(registered, limit, plugin.NoteOf(plugin.NoteMetrixHeader)))
}

// MetrixLabelled pairs a "maximum players" phrase with a registered count.
func MetrixLabelled(p *Page) *plugin.CapacityResult {
	limit := firstInt(maxPlayersRe, p.Text)
	if limit < 0 {
		return nil
	}
	registered := CountRegistered(p)
	if registered < 0 {
		return nil
	}
	return found(plugin.Counts(registered, limit, plugin.NoteOf(plugin.NoteMetrixLabelled)))
}

// MetrixStatsTable reads the registration summary row of a statistics table.
// The trailing numeric cells are (registered, limit, waiting) when there are
// three or more, (registered, limit) when there are exactly two.
func MetrixStatsTable(p *Page) *plugin.CapacityResult {
	var res *plugin.CapacityResult
	p.Doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		headers := tableHeaders(table)
		if !countHeaderRe.MatchString(headers) || !maxHeaderRe.MatchString(headers) {
			return true
		}
		table.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
			if row.Find("td").Length() == 0 || !summaryLabelRe.MatchString(VisibleText(row)) {
				return true
			}
			registered, limit, ok := positionalCounts(rowInts(row))
			if !ok {
				return true
			}
			res = found(plugin.Counts(registered, limit, plugin.NoteOf(plugin.NoteMetrixTable)))
			return false
		})
		return res == nil
	})
	return res
}

// MetrixGeneric is the speculative text fallback: "N / M", paired
// registered/maximum phrases, or "N places left".
func MetrixGeneric(p *Page) *plugin.CapacityResult {
	for _, m := range slashRe.FindAllStringSubmatch(p.Text, -1) {
		registered, limit := atoi(m[1]), atoi(m[2])
		if limit > 0 && registered >= 0 {
			return found(plugin.Counts(registered, limit, plugin.NoteOf(plugin.NoteMetrixGeneric)))
		}
	}

	limit := firstInt(maxPlayersRe, p.Text)
	if limit < 0 {
		limit = firstInt(maxGenericRe, p.Text)
	}
	if limit >= 0 {
		registered := firstInt(registeredRe, p.Text)
		if registered < 0 {
			registered = CountRegistered(p)
		}
		if registered >= 0 {
			return found(plugin.Counts(registered, limit, plugin.NoteOf(plugin.NoteMetrixGeneric)))
		}
	}

	if left := firstInt(placesLeftRe, p.Text); left >= 0 {
		return found(plugin.RemainingOnly(left, plugin.NoteOf(plugin.NoteMetrixGeneric)))
	}
	return nil
}

// MetrixEmbedded looks for a remaining count in inline JSON or data attributes.
func MetrixEmbedded(p *Page) *plugin.CapacityResult {
	note := plugin.NoteOf(plugin.NoteMetrixEmbedded)
	if res := embeddedRemaining(p, note); res != nil {
		return res
	}
	return dataAttrRemaining(p, note)
}

// CountRegistered finds the number of registered players, first from an
// explicit "registered: N" phrase, then by counting the rows of the players
// table. It returns -1 when neither exists.
func CountRegistered(p *Page) int {
	if n := firstInt(registeredRe, p.Text); n >= 0 {
		return n
	}
	n := -1
	p.Doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		if !nameHeaderRe.MatchString(tableHeaders(table)) {
			return true
		}
		n = 0
		rows := table.Find("tr")
		if table.Find("th").Length() == 0 {
			rows = rows.Slice(1, goquery.ToEnd)
		}
		rows.Each(func(_ int, row *goquery.Selection) {
			if row.Find("td").Length() > 0 && strings.TrimSpace(row.Text()) != "" {
				n++
			}
		})
		return false
	})
	return n
}

// tableHeaders returns the text of the th cells, or of the first row when the
// table has none.
func tableHeaders(table *goquery.Selection) string {
	if th := table.Find("th"); th.Length() > 0 {
		return VisibleText(th)
	}
	return VisibleText(table.Find("tr").First())
}

// rowInts returns the integers of the row's purely numeric cells, in order.
func rowInts(row *goquery.Selection) []int {
	var nums []int
	row.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
		if n := cellInt(cell.Text()); n >= 0 {
			nums = append(nums, n)
		}
	})
	return nums
}

func positionalCounts(nums []int) (registered, limit int, ok bool) {
	switch {
	case len(nums) >= 3:
		return nums[len(nums)-3], nums[len(nums)-2], true
	case len(nums) == 2:
		return nums[0], nums[1], true
	}
	return -1, -1, false
}
