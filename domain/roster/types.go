// Package roster holds the in-memory shapes the retention core works on:
// sheet snapshots, column declarations and the write descriptions handed
// back to a spreadsheet host.
package roster

import (
	"strconv"
	"strings"
)

// Row is one data row. Cells are string, float64 or nil.
type Row []any

// Snapshot is everything read from one sheet in a single host round trip.
type Snapshot struct {
	Name     string
	Headers  []string
	Rows     []Row
	Formulas [][]string // parallel to Rows; "" when the cell holds a plain value
	Fills    [][]string // parallel to the first len(Fills) rows; "#RRGGBB" or ""

	ConditionalFormats []ConditionalFormat
}

// ConditionalFormat is a host rule attached to one source column. Rules is
// host-specific and only ever handed back to the port that produced it.
type ConditionalFormat struct {
	Column int
	Rules  any
}

// Cell returns the value at row r, column c or nil when out of range.
func (s *Snapshot) Cell(r, c int) any {
	if r < 0 || r >= len(s.Rows) || c < 0 || c >= len(s.Rows[r]) {
		return nil
	}
	return s.Rows[r][c]
}

// Formula returns the formula at row r, column c or "".
func (s *Snapshot) Formula(r, c int) string {
	if r < 0 || r >= len(s.Formulas) || c < 0 || c >= len(s.Formulas[r]) {
		return ""
	}
	return s.Formulas[r][c]
}

// Fill returns the fill color at row r, column c or "" when not sampled.
func (s *Snapshot) Fill(r, c int) string {
	if r < 0 || r >= len(s.Fills) || c < 0 || c >= len(s.Fills[r]) {
		return ""
	}
	return s.Fills[r][c]
}

// ColumnSpec declares a logical output column.
type ColumnSpec struct {
	Name    string   `json:"name" yaml:"name"`
	Aliases []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Hidden  bool     `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	// Static columns are always emitted, even when the source sheet lacks them.
	Static bool `json:"static,omitempty" yaml:"static,omitempty"`
}

// Candidates returns the name followed by every alias.
func (c ColumnSpec) Candidates() []string {
	out := make([]string, 0, len(c.Aliases)+1)
	out = append(out, c.Name)
	return append(out, c.Aliases...)
}

// OutputColumn is a ColumnSpec bound to a source header index (-1 if absent).
type OutputColumn struct {
	Spec        ColumnSpec
	SourceIndex int
	Implicit    bool
}

// OutputColumnSet is the ordered column layout of a written table.
type OutputColumnSet []OutputColumn

// Headers returns the output header row.
func (s OutputColumnSet) Headers() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.Spec.Name
	}
	return out
}

// IndexOf returns the output index of the column whose name matches any
// candidate of spec, or -1.
func (s OutputColumnSet) IndexOf(spec ColumnSpec) int {
	for _, cand := range spec.Candidates() {
		for i, c := range s {
			if strings.EqualFold(strings.TrimSpace(c.Spec.Name), strings.TrimSpace(cand)) {
				return i
			}
		}
	}
	return -1
}

// HiddenIndexes lists output indexes that must be hidden.
func (s OutputColumnSet) HiddenIndexes() []int {
	var out []int
	for i, c := range s {
		if c.Spec.Hidden {
			out = append(out, i)
		}
	}
	return out
}

// IsEmpty reports whether a cell value carries no data.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

// Text renders a cell value the way it would be compared as a category.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// Number converts a cell to float64. Percent strings ("85%") are read as 85.
func Number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "%"))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
