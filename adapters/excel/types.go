package excel

// File types accepted as imports.
const (
	FileTypeXLSX = "xlsx"
	FileTypeCSV  = "csv"
)

// DefaultTableStyle is applied to tables the engine creates.
const DefaultTableStyle = "TableStyleMedium2"

// solidPattern is the excelize pattern id of a solid fill.
const solidPattern = 1

// styleKey identifies a derived cell style: the style a cell had plus the
// change applied to it.
type styleKey struct {
	base   int
	change string
}
