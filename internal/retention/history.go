// Package retention turns a student history log into outreach messages and
// highlight directives for report rows.
package retention

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"ldaengine/domain/roster"
	"ldaengine/internal/namekey"
)

// Engagement is a scheduled re-engagement parsed from a history tag.
type Engagement struct {
	Date    time.Time
	RawText string
}

// TagMaps are built once per run from the history log.
type TagMaps struct {
	DNC        map[string]string
	Engagement map[string]Engagement
}

// KeyFunc derives the person key a history row and a report row share.
type KeyFunc func(v any) string

// IDKey keys by the trimmed student identifier text.
func IDKey(v any) string { return roster.Text(v) }

// NameKey keys by the normalized student name.
func NameKey(v any) string { return namekey.Normalize(roster.Text(v)) }

var engagementRe = regexp.MustCompile(`(?i)\blda\b.*?\b(\d{1,2})[/-](\d{1,2})[/-](\d{2}|\d{4})\b`)

// BuildTagMaps scans history newest-first (bottom row first).
//
// The two maps accumulate differently. A DNC mention overwrites on every
// hit, so the value kept is the last one met in the reverse scan. An
// engagement entry is kept from the first qualifying hit only, which is the
// newest tag whose date is today or later.
func BuildTagMaps(history *roster.Snapshot, keyCol, tagCol int, key KeyFunc, now time.Time) TagMaps {
	maps := TagMaps{
		DNC:        make(map[string]string),
		Engagement: make(map[string]Engagement),
	}
	if history == nil || keyCol < 0 || tagCol < 0 {
		return maps
	}
	today := dateOnly(now)

	for r := len(history.Rows) - 1; r >= 0; r-- {
		person := key(history.Cell(r, keyCol))
		if person == "" {
			continue
		}
		tag := roster.Text(history.Cell(r, tagCol))
		if tag == "" {
			continue
		}

		if strings.Contains(strings.ToLower(tag), "dnc") {
			maps.DNC[person] = tag
		}

		if _, seen := maps.Engagement[person]; seen {
			continue
		}
		if d, ok := ParseEngagementDate(tag, now.Location()); ok && !d.Before(today) {
			maps.Engagement[person] = Engagement{Date: d, RawText: tag}
		}
	}
	return maps
}

// ParseEngagementDate finds "lda ... M/D/YY[YY]" in tag and returns the date
// when it is a real calendar day.
func ParseEngagementDate(tag string, loc *time.Location) (time.Time, bool) {
	m := engagementRe.FindStringSubmatch(tag)
	if m == nil {
		return time.Time{}, false
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if len(m[3]) == 2 {
		year += 2000
	}
	if loc == nil {
		loc = time.Local
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
