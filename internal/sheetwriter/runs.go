package sheetwriter

import (
	"sort"

	"ldaengine/domain/roster"
)

// Coalesce merges one row's highlights into contiguous same-color runs.
//
// A run grows while the color matches, the next column is exactly one past
// the run end, and neither cell is struck through. Struck cells always get
// their own operation. Cells with neither color nor strike are dropped.
func Coalesce(row int, hs []roster.CellHighlight) []roster.RangeFill {
	if len(hs) == 0 {
		return nil
	}
	sorted := make([]roster.CellHighlight, 0, len(hs))
	for _, h := range hs {
		if h.Color == "" && !h.Strikethrough {
			continue
		}
		sorted = append(sorted, h)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Col < sorted[j].Col })

	var out []roster.RangeFill
	var cur *roster.RangeFill
	for _, h := range sorted {
		if cur != nil &&
			!cur.Strikethrough && !h.Strikethrough &&
			cur.Color == h.Color &&
			h.Col == cur.EndCol+1 {
			cur.EndCol = h.Col
			continue
		}
		out = append(out, roster.RangeFill{
			Row:           row,
			StartCol:      h.Col,
			EndCol:        h.Col,
			Color:         h.Color,
			Strikethrough: h.Strikethrough,
		})
		cur = &out[len(out)-1]
	}
	return out
}
