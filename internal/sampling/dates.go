package sampling

import (
	"regexp"

	"ldaengine/domain/roster"
)

// DateDisplayFormat is applied to columns detected as dates.
const DateDisplayFormat = "mm-dd-yy"

// Serial day numbers (1900 date system) for 1930-01-01 and 2099-12-31.
const (
	minDateSerial = 10959
	maxDateSerial = 73050
)

var nonDateHeaderRe = regexp.MustCompile(`(?i)(id|number|num|code|zip|grade|score|days|count|phone|%)`)

// DetectDateColumns returns the output indexes whose sampled numeric cells
// mostly fall inside the plausible date-serial range. Headers that look like
// identifiers, scores or counts are never considered.
func DetectDateColumns(headers []string, rows []roster.Row, sampleLimit int) []int {
	if sampleLimit <= 0 {
		sampleLimit = DefaultDateSampleRows
	}
	n := len(rows)
	if n > sampleLimit {
		n = sampleLimit
	}

	var out []int
	for c, h := range headers {
		if nonDateHeaderRe.MatchString(h) {
			continue
		}
		numeric, dates := 0, 0
		for r := 0; r < n; r++ {
			if c >= len(rows[r]) {
				continue
			}
			v, ok := rows[r][c].(float64)
			if !ok {
				continue
			}
			numeric++
			if v >= minDateSerial && v <= maxDateSerial {
				dates++
			}
		}
		if numeric > 0 && dates*2 > numeric {
			out = append(out, c)
		}
	}
	return out
}
