package extractor

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ramkansal/capwatch/pkg/plugin"
)

// RenderLimitBound rejects implausible caps picked out of rendered pages,
// which carry far more unrelated numbers than the static markup.
const RenderLimitBound = 1000

// RenderChain is the reduced strategy set run against a rendered DOM once the
// client-side state object (see FromState) gave nothing.
var RenderChain = Chain{
	{Name: "render-phrases", Run: RenderPhrases},
	{Name: "render-table", Run: RenderTable},
}

var (
	registeredStateKeys = []string{
		"confirmed", "confirmedCount", "confirmedPlayers",
		"registered", "registeredCount", "registeredPlayers",
		"playerCount", "participantCount", "numPlayers",
	}
	limitStateKeys = []string{
		"capacity", "maxPlayers", "max_players", "maxParticipants",
		"playerLimit", "limit", "maxSlots", "slots",
	}

	registrationRowRe = regexp.MustCompile(`(?i)total|yhteensä|rekister|ilmoittau|registr|anmäl|confirmed|max`)
)

// FromState reads registered/limit counts out of a client-side state object
// by a recursive key search. A limit without a registered count is not used.
func FromState(state any) *plugin.CapacityResult {
	if state == nil {
		return nil
	}
	// An object carrying both counts is preferred over counts found apart.
	if registered, limit, ok := findPair(state); ok {
		return found(plugin.Counts(registered, limit, plugin.NoteOf(plugin.NoteRenderState)))
	}
	registered := findKey(state, registeredStateKeys)
	if registered < 0 {
		return nil
	}
	return found(plugin.Counts(registered, findKey(state, limitStateKeys), plugin.NoteOf(plugin.NoteRenderState)))
}

// RenderPhrases re-runs the phrase heuristics against rendered text with the
// limit sanity bound applied.
func RenderPhrases(p *Page) *plugin.CapacityResult {
	note := plugin.NoteOf(plugin.NoteRenderText)

	if limit, remaining := boldRoles(p.Doc, RenderLimitBound); limit > 0 && remaining >= 0 && remaining <= limit {
		return found(plugin.Counts(limit-remaining, limit, note))
	}

	limit := firstInt(maxPlayersRe, p.Text)
	if limit <= 0 || limit >= RenderLimitBound {
		limit = limitFromText(p.Text, RenderLimitBound)
	}
	registered := firstInt(confirmedTextRe, p.Text)
	if registered < 0 {
		registered = CountRegistered(p)
	}
	if limit > 0 && registered >= 0 {
		return found(plugin.Counts(registered, limit, note))
	}
	return nil
}

// RenderTable picks the registration summary row of a rendered table. Rows
// naming a registration keyword win over rows that merely hold two or more
// bold numbers; among the latter the one with the largest second number is
// taken as the most plausible limit column.
func RenderTable(p *Page) *plugin.CapacityResult {
	var keyword []int
	var candidates [][]int
	p.Doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		bold := boldInts(row)
		if registrationRowRe.MatchString(VisibleText(row)) {
			nums := bold
			if len(nums) < 2 {
				nums = rowInts(row)
			}
			if keyword == nil && len(nums) >= 2 {
				keyword = nums
			}
			return
		}
		if len(bold) >= 2 {
			candidates = append(candidates, bold)
		}
	})

	note := plugin.NoteOf(plugin.NoteRenderTable)
	if keyword != nil {
		if registered, limit, ok := positionalCounts(keyword); ok && limit > 0 && limit < RenderLimitBound {
			return found(plugin.Counts(registered, limit, note))
		}
	}

	best := -1
	for i, nums := range candidates {
		if nums[1] <= 0 || nums[1] >= RenderLimitBound {
			continue
		}
		if best < 0 || nums[1] > candidates[best][1] {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	return found(plugin.Counts(candidates[best][0], candidates[best][1], note))
}

func boldInts(row *goquery.Selection) []int {
	var nums []int
	row.Find("b, strong").Each(func(_ int, s *goquery.Selection) {
		if n := cellInt(s.Text()); n >= 0 {
			nums = append(nums, n)
		}
	})
	return nums
}

// findPair searches depth-first for an object carrying both a registered and
// a limit key. Keys are visited in sorted order so the result is deterministic.
func findPair(v any) (registered, limit int, ok bool) {
	switch t := v.(type) {
	case map[string]any:
		registered, limit = lookup(t, registeredStateKeys), lookup(t, limitStateKeys)
		if registered >= 0 && limit >= 0 {
			return registered, limit, true
		}
		for _, k := range sortedKeys(t) {
			if r, l, ok := findPair(t[k]); ok {
				return r, l, true
			}
		}
	case []any:
		for _, e := range t {
			if r, l, ok := findPair(e); ok {
				return r, l, true
			}
		}
	}
	return -1, -1, false
}

// findKey returns the first integer value stored under one of keys anywhere in v.
func findKey(v any, keys []string) int {
	switch t := v.(type) {
	case map[string]any:
		if n := lookup(t, keys); n >= 0 {
			return n
		}
		for _, k := range sortedKeys(t) {
			if n := findKey(t[k], keys); n >= 0 {
				return n
			}
		}
	case []any:
		for _, e := range t {
			if n := findKey(e, keys); n >= 0 {
				return n
			}
		}
	}
	return -1
}

func lookup(m map[string]any, keys []string) int {
	for _, k := range keys {
		if n := stateInt(m[k]); n >= 0 {
			return n
		}
	}
	return -1
}

// stateInt converts a decoded JSON scalar to a non-negative int, or -1.
func stateInt(v any) int {
	switch t := v.(type) {
	case float64:
		if t >= 0 && t == math.Trunc(t) && t < math.MaxInt32 {
			return int(t)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil && n >= 0 {
			return n
		}
	}
	return -1
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
