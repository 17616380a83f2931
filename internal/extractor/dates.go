package extractor

import (
	"regexp"
	"time"

	"github.com/ramkansal/capwatch/pkg/plugin"
)

// StartLayout is the ISO layout used for CapacityResult.Start.
const StartLayout = "2006-01-02T15:04:05"

// registrationStartRe matches "registration opens <date> [time]" in English,
// Finnish and Swedish. The date may sit on the line after the phrase, as in
// label/value layouts. Groups: d.m.y (1-3), y-m-d (4-6), hh:mm (7-8).
var registrationStartRe = regexp.MustCompile(`(?i)` +
	`(?:registration\s+(?:starts|opens|begins|will\s+open)(?:\s+on)?` +
	`|ilmoittautuminen\s+(?:alkaa|avautuu|aukeaa)` +
	`|anmälan\s+(?:öppnar|startar|börjar)` +
	`|registreringen\s+(?:öppnar|startar|börjar))` +
	`[^\d\n]{0,24}?(?:\n[^\d\n]{0,24}?)?` +
	`(?:(\d{1,2})[./](\d{1,2})[./](\d{4})|(\d{4})-(\d{1,2})-(\d{1,2}))` +
	`(?:[ \t,T]*(?:klo|kl\.?|at|@)?[ \t]*(\d{1,2})[:.](\d{2}))?`)

// RegistrationNotOpen detects a registration opening date that lies in the
// future. It outranks every other strategy, delegation included.
func RegistrationNotOpen(p *Page) *plugin.CapacityResult {
	start, ok := RegistrationStart(p.Text, p.Loc)
	if !ok || !start.After(p.Now) {
		return nil
	}
	return &plugin.CapacityResult{
		Note:  plugin.NoteOf(plugin.NoteRegistrationNotOpen),
		Start: start.Format(StartLayout),
	}
}

// RegistrationStart returns the first parseable registration opening time in text.
func RegistrationStart(text string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	for _, m := range registrationStartRe.FindAllStringSubmatch(text, -1) {
		var day, month, year int
		if m[1] != "" {
			day, month, year = atoi(m[1]), atoi(m[2]), atoi(m[3])
		} else {
			year, month, day = atoi(m[4]), atoi(m[5]), atoi(m[6])
		}
		hour, minute := 0, 0
		if m[7] != "" {
			hour, minute = atoi(m[7]), atoi(m[8])
		}
		if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 {
			continue
		}
		t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
		// time.Date normalizes 31.2. into March; reject instead.
		if t.Day() != day || int(t.Month()) != month {
			continue
		}
		return t, true
	}
	return time.Time{}, false
}
