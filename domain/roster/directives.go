package roster

// ColorClass names the highlight family a directive belongs to.
type ColorClass string

const (
	ColorNone      ColorClass = ""
	ColorRetention ColorClass = "retention"
	ColorDNC       ColorClass = "dnc"
)

// Default palette. Excluded colors are never captured by color sampling.
const (
	RetentionColor = "#FFF2CC"
	DNCColor       = "#FFC7CE"
	NewRowColor    = "#ADD8E6"
	WhiteColor     = "#FFFFFF"
)

// DefaultExcludedColors are fills that color sampling ignores.
var DefaultExcludedColors = []string{WhiteColor, NewRowColor}

// CellHighlight is one per-cell formatting instruction.
type CellHighlight struct {
	Col           int
	Color         string
	Strikethrough bool
}

// OutreachDirective is the per-row outcome of the retention rules.
type OutreachDirective struct {
	Message        string
	ColorClass     ColorClass
	RowColor       string
	CellHighlights []CellHighlight
}

// HasMessage reports whether the directive carries an outreach message.
func (d OutreachDirective) HasMessage() bool { return d.Message != "" }

// OutputRow is a fully built row ready to be written.
type OutputRow struct {
	Values     Row
	Formulas   []string
	Highlights []CellHighlight
}

// CellRef addresses a cell by zero-based row and column.
type CellRef struct {
	Row int
	Col int
}

// ValueBatch is one flush of values and formulas starting at Origin.
type ValueBatch struct {
	Origin   CellRef
	Values   [][]any
	Formulas [][]string
}

// RangeFill paints columns StartCol..EndCol of one row. A Clear fill
// removes any fill and strikethrough the cells had; Color and
// Strikethrough are ignored on it.
type RangeFill struct {
	Row           int
	StartCol      int
	EndCol        int
	Color         string
	Strikethrough bool
	Clear         bool
}

// FormatBatch is one flush of fill and font operations.
type FormatBatch struct {
	Fills []RangeFill
}

// Range is a rectangular block of cells, bounds inclusive.
type Range struct {
	StartRow int
	StartCol int
	EndRow   int
	EndCol   int
}

// TableSpec describes a structured table over a written range.
type TableSpec struct {
	Name  string
	Range Range
}

// ColumnFormat applies a number format to one column range.
type ColumnFormat struct {
	Range  Range
	Format string
}

// ColumnWidth sets the width of one column.
type ColumnWidth struct {
	Col   int
	Width float64
}

// ConditionalApply re-applies a copied conditional format to a range.
type ConditionalApply struct {
	Range Range
	Rules any
}

// Cosmetics are formatting operations whose failure never aborts a run.
type Cosmetics struct {
	HiddenColumns      []int
	NumberFormats      []ColumnFormat
	Widths             []ColumnWidth
	ConditionalFormats []ConditionalApply
}
