package excel

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ldaengine/domain/roster"
	"ldaengine/ports"
)

func newBook(t *testing.T) *Workbook {
	t.Helper()
	wb := NewWorkbook(excelize.NewFile(), "", nil)
	t.Cleanup(func() { _ = wb.Close() })
	return wb
}

func seed(t *testing.T, wb *Workbook, sheet string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, wb.CreateSheet(ctx, sheet))
	require.NoError(t, wb.WriteValues(ctx, sheet, roster.ValueBatch{
		Values: [][]any{
			{"Student Name", "Student ID", "Days Out", "Gradebook"},
			{"Smith, John", "1001", 10.0, "Gradebook"},
			{"Doe, Jane", "1002", 2.0, nil},
		},
		Formulas: [][]string{nil, {"", "", "", `=HYPERLINK("http://x","Gradebook")`}},
	}))
}

func TestWorkbookRoundTrip(t *testing.T) {
	wb := newBook(t)
	ctx := context.Background()
	seed(t, wb, "Master List")

	sheets, err := wb.ListSheets(ctx)
	require.NoError(t, err)
	assert.Contains(t, sheets, "Master List")

	snap, err := wb.Read(ctx, "Master List", ports.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Student Name", "Student ID", "Days Out", "Gradebook"}, snap.Headers)
	require.Len(t, snap.Rows, 2)
	assert.Equal(t, "Smith, John", snap.Cell(0, 0))
	assert.Equal(t, "1001", snap.Cell(0, 1))
	assert.Equal(t, 10.0, snap.Cell(0, 2))
	assert.Equal(t, `=HYPERLINK("http://x","Gradebook")`, snap.Formula(0, 3))
	assert.Empty(t, snap.Formula(1, 3))
	assert.Nil(t, snap.Cell(1, 3))
	assert.Empty(t, snap.Fills)
}

func TestWorkbookValuesAtOrigin(t *testing.T) {
	wb := newBook(t)
	ctx := context.Background()
	require.NoError(t, wb.CreateSheet(ctx, "LDA"))
	require.NoError(t, wb.WriteValues(ctx, "LDA", roster.ValueBatch{
		Origin: roster.CellRef{Row: 4, Col: 1},
		Values: [][]any{{"Failing Students"}},
	}))
	v, err := wb.File().GetCellValue("LDA", "B5")
	require.NoError(t, err)
	assert.Equal(t, "Failing Students", v)
}

func TestWorkbookFormats(t *testing.T) {
	wb := newBook(t)
	ctx := context.Background()
	seed(t, wb, "Master List")

	require.NoError(t, wb.WriteFormats(ctx, "Master List", roster.FormatBatch{Fills: []roster.RangeFill{
		{Row: 1, StartCol: 0, EndCol: 2, Color: roster.DNCColor},
		{Row: 1, StartCol: 3, EndCol: 3, Color: roster.DNCColor, Strikethrough: true},
		{Row: 2, StartCol: 1, EndCol: 1, Strikethrough: true},
	}}))

	snap, err := wb.Read(ctx, "Master List", ports.ReadOptions{FillRows: -1})
	require.NoError(t, err)
	require.Len(t, snap.Fills, 2)
	assert.Equal(t, roster.DNCColor, snap.Fill(0, 0))
	assert.Equal(t, roster.DNCColor, snap.Fill(0, 3))
	assert.Empty(t, snap.Fill(1, 0))

	id, err := wb.File().GetCellStyle("Master List", "D2")
	require.NoError(t, err)
	style, err := wb.File().GetStyle(id)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Strike)

	// the fill survives a later number format on the same cell
	require.NoError(t, wb.ApplyCosmetics(ctx, "Master List", roster.Cosmetics{
		NumberFormats: []roster.ColumnFormat{{Range: roster.Range{StartRow: 1, StartCol: 2, EndRow: 2, EndCol: 2}, Format: "0.0"}},
	}))
	snap, err = wb.Read(ctx, "Master List", ports.ReadOptions{FillRows: 1})
	require.NoError(t, err)
	assert.Equal(t, roster.DNCColor, snap.Fill(0, 2))
	assert.Len(t, snap.Fills, 1)
}

func TestWorkbookClearFill(t *testing.T) {
	wb := newBook(t)
	ctx := context.Background()
	seed(t, wb, "Master List")

	require.NoError(t, wb.WriteFormats(ctx, "Master List", roster.FormatBatch{Fills: []roster.RangeFill{
		{Row: 1, StartCol: 0, EndCol: 3, Color: roster.NewRowColor, Strikethrough: true},
		{Row: 2, StartCol: 0, EndCol: 3, Color: roster.DNCColor},
	}}))
	require.NoError(t, wb.WriteFormats(ctx, "Master List", roster.FormatBatch{Fills: []roster.RangeFill{
		{Row: 1, StartCol: 0, EndCol: 3, Clear: true},
	}}))

	snap, err := wb.Read(ctx, "Master List", ports.ReadOptions{FillRows: -1})
	require.NoError(t, err)
	for c := 0; c < 4; c++ {
		assert.Empty(t, snap.Fill(0, c), "col %d", c)
		assert.Equal(t, roster.DNCColor, snap.Fill(1, c), "col %d", c)
	}

	id, err := wb.File().GetCellStyle("Master List", "B2")
	require.NoError(t, err)
	style, err := wb.File().GetStyle(id)
	require.NoError(t, err)
	if style.Font != nil {
		assert.False(t, style.Font.Strike)
	}
}

func TestWorkbookClearRange(t *testing.T) {
	wb := newBook(t)
	ctx := context.Background()
	seed(t, wb, "Master List")

	require.NoError(t, wb.ClearRange(ctx, "Master List", roster.Range{StartRow: 1, StartCol: 0, EndRow: 1, EndCol: 3}))

	for _, cell := range []string{"A2", "C2", "D2"} {
		v, err := wb.File().GetCellValue("Master List", cell)
		require.NoError(t, err)
		assert.Empty(t, v, cell)
		f, err := wb.File().GetCellFormula("Master List", cell)
		require.NoError(t, err)
		assert.Empty(t, f, cell)
	}
	v, err := wb.File().GetCellValue("Master List", "A3")
	require.NoError(t, err)
	assert.Equal(t, "Doe, Jane", v)
}

func TestWorkbookCreateSheetTwice(t *testing.T) {
	wb := newBook(t)
	ctx := context.Background()
	require.NoError(t, wb.CreateSheet(ctx, "LDA 1-2-2026"))
	assert.Error(t, wb.CreateSheet(ctx, "LDA 1-2-2026"))
	assert.Error(t, wb.WriteValues(ctx, "missing", roster.ValueBatch{Values: [][]any{{"x"}}}))
	_, err := wb.Read(ctx, "missing", ports.ReadOptions{})
	assert.Error(t, err)
}

func TestWorkbookAddTable(t *testing.T) {
	wb := newBook(t)
	ctx := context.Background()
	seed(t, wb, "LDA")

	require.NoError(t, wb.AddTable(ctx, "LDA", roster.TableSpec{
		Name:  "LDA_Table_0123456789ab",
		Range: roster.Range{StartRow: 0, StartCol: 0, EndRow: 2, EndCol: 3},
	}))
	tables, err := wb.File().GetTables("LDA")
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "LDA_Table_0123456789ab", tables[0].Name)
	assert.Equal(t, "A1:D3", tables[0].Range)
}

func TestWorkbookCosmetics(t *testing.T) {
	wb := newBook(t)
	ctx := context.Background()
	seed(t, wb, "LDA")

	err := wb.ApplyCosmetics(ctx, "LDA", roster.Cosmetics{
		HiddenColumns: []int{1},
		Widths:        []roster.ColumnWidth{{Col: 0, Width: 24}},
	})
	require.NoError(t, err)

	visible, err := wb.File().GetColVisible("LDA", "B")
	require.NoError(t, err)
	assert.False(t, visible)
	width, err := wb.File().GetColWidth("LDA", "A")
	require.NoError(t, err)
	assert.InDelta(t, 24, width, 0.01)
}

func TestWorkbookCosmeticsReportsBadRules(t *testing.T) {
	wb := newBook(t)
	ctx := context.Background()
	seed(t, wb, "LDA")

	err := wb.ApplyCosmetics(ctx, "LDA", roster.Cosmetics{
		ConditionalFormats: []roster.ConditionalApply{{Range: roster.Range{EndRow: 2}, Rules: "nope"}},
		HiddenColumns:      []int{2},
	})
	assert.Error(t, err)

	// the other cosmetics still ran
	visible, verr := wb.File().GetColVisible("LDA", "C")
	require.NoError(t, verr)
	assert.False(t, visible)
}

func TestOpenMissingFileAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.xlsx")
	ctx := context.Background()

	book, err := Opener{}.Open(ctx, path)
	require.NoError(t, err)
	seed(t, book.(*Workbook), "Master List")
	require.NoError(t, book.Save(ctx))
	require.NoError(t, book.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	defer reopened.Close()
	snap, err := reopened.Read(ctx, "Master List", ports.ReadOptions{})
	require.NoError(t, err)
	assert.Len(t, snap.Rows, 2)
}

func TestSaveWithoutPath(t *testing.T) {
	assert.Error(t, newBook(t).Save(context.Background()))
}

func TestParseRange(t *testing.T) {
	rng, err := parseRange("B2:D9")
	require.NoError(t, err)
	assert.Equal(t, roster.Range{StartRow: 1, StartCol: 1, EndRow: 8, EndCol: 3}, rng)

	rng, err = parseRange("C3")
	require.NoError(t, err)
	assert.Equal(t, roster.Range{StartRow: 2, StartCol: 2, EndRow: 2, EndCol: 2}, rng)

	_, err = parseRange("")
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	in := "\ufeffStudent Name, Student Number ,Days Out\n\"Smith, John\",1001,10\nDoe,,\nLee,1003\n"
	snap, err := ReadCSV(strings.NewReader(in), "grades.csv")
	require.NoError(t, err)
	assert.Equal(t, "grades.csv", snap.Name)
	assert.Equal(t, []string{"Student Name", "Student Number", "Days Out"}, snap.Headers)
	require.Len(t, snap.Rows, 3)
	assert.Equal(t, roster.Row{"Smith, John", "1001", "10"}, snap.Rows[0])
	assert.Equal(t, roster.Row{"Doe", nil, nil}, snap.Rows[1])
	assert.Equal(t, roster.Row{"Lee", "1003", nil}, snap.Rows[2])

	_, err = ReadCSV(strings.NewReader(""), "empty.csv")
	assert.Error(t, err)
}

func TestImportReader(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "import.CSV")
	require.NoError(t, os.WriteFile(csvPath, []byte("Name,Days Out\nSmith,4\n"), 0o644))

	snap, err := NewImportReader(csvPath, "", nil).Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Days Out"}, snap.Headers)

	xlsxPath := filepath.Join(dir, "import.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Name", "Days Out"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"Smith", 4}))
	require.NoError(t, f.SaveAs(xlsxPath))
	require.NoError(t, f.Close())

	snap, err = NewImportReader(xlsxPath, "", nil).Read(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Rows, 1)
	assert.Equal(t, 4.0, snap.Cell(0, 1))

	_, err = NewImportReader(filepath.Join(dir, "nope.csv"), "", nil).Read(context.Background())
	assert.Error(t, err)
}
