// Package sampling holds the bounded-prefix heuristics used to reproduce
// manual highlighting and to guess column types. The limits trade accuracy
// for speed and are deliberately not whole-sheet scans.
package sampling

import (
	"ldaengine/domain/roster"
)

// Default sample sizes.
const (
	DefaultColorSampleRows = 500
	DefaultDateSampleRows  = 100
	DefaultScaleSampleRows = 10
)

// ColorMap maps source column -> cell text -> fill color.
type ColorMap map[int]map[string]string

// BuildColorMap records value->color pairs from the first sampleLimit rows.
// Cells without a value, without a fill, or with an excluded fill are
// skipped. For repeated values the last sampled color wins.
func BuildColorMap(snap *roster.Snapshot, sampleLimit int, excluded []string) ColorMap {
	out := make(ColorMap)
	if snap == nil {
		return out
	}
	if sampleLimit <= 0 {
		sampleLimit = DefaultColorSampleRows
	}
	skip := roster.ColorSet(excluded)

	n := len(snap.Rows)
	if n > sampleLimit {
		n = sampleLimit
	}
	for r := 0; r < n; r++ {
		for c := range snap.Rows[r] {
			color := roster.NormalizeColor(snap.Fill(r, c))
			if color == "" || skip[color] {
				continue
			}
			text := roster.Text(snap.Cell(r, c))
			if text == "" {
				continue
			}
			if out[c] == nil {
				out[c] = make(map[string]string)
			}
			out[c][text] = color
		}
	}
	return out
}

// ForOutput re-keys a source color map by output column index.
func (m ColorMap) ForOutput(cols roster.OutputColumnSet) map[int]map[string]string {
	out := make(map[int]map[string]string)
	for i, c := range cols {
		if c.SourceIndex < 0 {
			continue
		}
		if byValue, ok := m[c.SourceIndex]; ok {
			out[i] = byValue
		}
	}
	return out
}
