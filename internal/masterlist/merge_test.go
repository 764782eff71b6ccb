package masterlist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ldaengine/domain/roster"
	"ldaengine/internal/errors"
	"ldaengine/internal/testkit"
)

const link = `=HYPERLINK("http://x","Gradebook")`

func importSnapshot(rows ...roster.Row) *roster.Snapshot {
	return &roster.Snapshot{
		Name:    "grades.csv",
		Headers: []string{"Student Name", "Student Number", "Days Out", "Grade", "Gradebook"},
		Rows:    rows,
	}
}

func existingMaster(book *testkit.MemorySheets) {
	book.Put(roster.DefaultMasterSheet, testkit.MasterHeaders, []roster.Row{
		{"Smith, John", "1001", 3.0, 0.8, "555-0001", "john@example.edu", "Gradebook", "Reyes", "called 10/1"},
	})
	book.SetFormula(roster.DefaultMasterSheet, 0, 6, link)
}

func TestMergePreservesHyperlink(t *testing.T) {
	book := testkit.NewMemorySheets()
	existingMaster(book)

	res, err := NewMerger(book, DefaultOptions(), nil, nil).Merge(context.Background(), roster.DefaultSettings(), importSnapshot(
		roster.Row{"John Smith", "1001", 6.0, 0.7, ""},
		roster.Row{"Doe, Jane", "1002", 1.0, 0.9, nil},
	))
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewRows)
	assert.Equal(t, 1, res.ExistingRows)
	assert.False(t, res.Created)

	sheet := roster.DefaultMasterSheet
	// new rows first
	assert.Equal(t, "Doe, Jane", book.Get(sheet, 1, 0).Value)
	assert.Equal(t, "John Smith", book.Get(sheet, 2, 0).Value)

	gb := book.Get(sheet, 2, 6)
	assert.Equal(t, link, gb.Formula)
	assert.Equal(t, "Gradebook", gb.Value)
	assert.Equal(t, "Reyes", book.Get(sheet, 2, 7).Value)
	assert.Equal(t, "1001", book.Get(sheet, 2, 1).Value)
	assert.Equal(t, 6.0, book.Get(sheet, 2, 2).Value)
}

func TestMergeIncomingValueWins(t *testing.T) {
	book := testkit.NewMemorySheets()
	existingMaster(book)

	in := importSnapshot(roster.Row{"Smith, John", "1001", 2.0, 0.8, "Portal"})
	_, err := NewMerger(book, DefaultOptions(), nil, nil).Merge(context.Background(), roster.DefaultSettings(), in)
	require.NoError(t, err)

	gb := book.Get(roster.DefaultMasterSheet, 1, 6)
	assert.Equal(t, "Portal", gb.Value)
	assert.Empty(t, gb.Formula)
}

func TestMergeRowColors(t *testing.T) {
	book := testkit.NewMemorySheets()
	existingMaster(book)
	book.SetFill(roster.DefaultMasterSheet, 0, 0, "FFFFFF00")
	book.SetFill(roster.DefaultMasterSheet, 0, 7, "FF00B050")

	_, err := NewMerger(book, DefaultOptions(), nil, nil).Merge(context.Background(), roster.DefaultSettings(), importSnapshot(
		roster.Row{"Smith, John", "1001", 2.0, 0.8, nil},
		roster.Row{"Doe, Jane", "1002", 1.0, 0.9, nil},
	))
	require.NoError(t, err)

	sheet := roster.DefaultMasterSheet
	assert.Equal(t, roster.NewRowColor, book.Get(sheet, 1, 0).Fill)
	assert.Equal(t, roster.NewRowColor, book.Get(sheet, 1, 8).Fill)
	assert.Equal(t, "#FFFF00", book.Get(sheet, 2, 3).Fill)
	// the sampled value color beats the row color
	assert.Equal(t, "#00B050", book.Get(sheet, 2, 7).Fill)
}

func TestMergeDoesNotCarryNewRowColor(t *testing.T) {
	book := testkit.NewMemorySheets()
	existingMaster(book)
	for c := range testkit.MasterHeaders {
		book.SetFill(roster.DefaultMasterSheet, 0, c, "FFADD8E6")
	}

	_, err := NewMerger(book, DefaultOptions(), nil, nil).Merge(context.Background(), roster.DefaultSettings(), importSnapshot(
		roster.Row{"Smith, John", "1001", 2.0, 0.8, nil},
	))
	require.NoError(t, err)
	for c := range testkit.MasterHeaders {
		assert.NotEqual(t, roster.NewRowColor, book.Get(roster.DefaultMasterSheet, 1, c).Fill, "col %d", c)
		assert.Empty(t, book.Get(roster.DefaultMasterSheet, 1, c).Fill, "col %d", c)
	}
}

func TestMergeNewRowColorFadesOnNextImport(t *testing.T) {
	book := testkit.NewMemorySheets()
	merger := NewMerger(book, DefaultOptions(), nil, nil)
	in := importSnapshot(roster.Row{"Doe, Jane", "1002", 1.0, 0.9, nil})

	_, err := merger.Merge(context.Background(), roster.DefaultSettings(), in)
	require.NoError(t, err)
	require.Equal(t, roster.NewRowColor, book.Get(roster.DefaultMasterSheet, 1, 0).Fill)

	res, err := merger.Merge(context.Background(), roster.DefaultSettings(), in)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExistingRows)
	for c := range res.Columns {
		assert.Empty(t, book.Get(roster.DefaultMasterSheet, 1, c).Fill, "col %d", c)
	}
}

func TestMergeRowColorFollowsStudent(t *testing.T) {
	book := testkit.NewMemorySheets()
	book.Put(roster.DefaultMasterSheet, testkit.MasterHeaders, []roster.Row{
		{"Smith, John", "1001", 3.0, 0.8},
		{"Doe, Jane", "1002", 5.0, 0.6},
	})
	for c := 0; c < 4; c++ {
		book.SetFill(roster.DefaultMasterSheet, 0, c, "FFFFFF00")
	}

	_, err := NewMerger(book, DefaultOptions(), nil, nil).Merge(context.Background(), roster.DefaultSettings(), importSnapshot(
		roster.Row{"Doe, Jane", "1002", 1.0, 0.9, nil},
		roster.Row{"Smith, John", "1001", 2.0, 0.8, nil},
	))
	require.NoError(t, err)

	sheet := roster.DefaultMasterSheet
	require.Equal(t, "Doe, Jane", book.Get(sheet, 1, 0).Value)
	require.Equal(t, "Smith, John", book.Get(sheet, 2, 0).Value)
	for c := range testkit.MasterHeaders {
		assert.Empty(t, book.Get(sheet, 1, c).Fill, "Doe col %d", c)
		assert.Equal(t, "#FFFF00", book.Get(sheet, 2, c).Fill, "Smith col %d", c)
	}
}

func TestMergeKeepsBlankHeaderPositions(t *testing.T) {
	book := testkit.NewMemorySheets()
	book.Put(roster.DefaultMasterSheet, []string{"Student Name", "", "Days Out", "Grade"}, []roster.Row{
		{"Smith, John", nil, 3.0, 0.8},
	})

	res, err := NewMerger(book, DefaultOptions(), nil, nil).Merge(context.Background(), roster.DefaultSettings(), importSnapshot(
		roster.Row{"Smith, John", "1001", 2.0, 0.7, nil},
	))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(res.Columns), 4)
	assert.Equal(t, []string{"Student Name", "", "Days Out", "Grade"}, res.Columns[:4])

	sheet := roster.DefaultMasterSheet
	assert.Equal(t, "Days Out", book.Get(sheet, 0, 2).Value)
	assert.Equal(t, "Grade", book.Get(sheet, 0, 3).Value)
	assert.Equal(t, 2.0, book.Get(sheet, 1, 2).Value)
	assert.Equal(t, 0.7, book.Get(sheet, 1, 3).Value)
	assert.Nil(t, book.Get(sheet, 1, 1).Value)
}

func TestMergeClearsLeftoverRows(t *testing.T) {
	book := testkit.NewMemorySheets()
	book.Put(roster.DefaultMasterSheet, testkit.MasterHeaders, []roster.Row{
		{"Smith, John", "1001"},
		{"Doe, Jane", "1002"},
		{"Lee, Kim", "1003"},
	})

	res, err := NewMerger(book, DefaultOptions(), nil, nil).Merge(context.Background(), roster.DefaultSettings(), importSnapshot(
		roster.Row{"Lee, Kim", "1003", 4.0, 0.5, nil},
	))
	require.NoError(t, err)
	assert.Equal(t, 2, res.ClearedRows)
	require.Len(t, book.Clears, 1)
	assert.Equal(t, roster.Range{StartRow: 2, StartCol: 0, EndRow: 3, EndCol: len(testkit.MasterHeaders) - 1}, book.Clears[0])

	assert.Equal(t, "Lee, Kim", book.Get(roster.DefaultMasterSheet, 1, 0).Value)
	assert.Nil(t, book.Get(roster.DefaultMasterSheet, 2, 0).Value)
	assert.Nil(t, book.Get(roster.DefaultMasterSheet, 3, 1).Value)
}

func TestMergeCreatesMissingMasterList(t *testing.T) {
	book := testkit.NewMemorySheets()

	res, err := NewMerger(book, DefaultOptions(), nil, nil).Merge(context.Background(), roster.DefaultSettings(), importSnapshot(
		roster.Row{"Smith, John", "1001", 2.0, 0.8, nil},
		roster.Row{"Doe, Jane", "1002", 1.0, 0.9, nil},
	))
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 2, res.NewRows)
	assert.Equal(t, []string{roster.DefaultMasterSheet}, book.SheetNames())

	// configured layout: unmatched configured columns drop, static ones stay
	assert.Equal(t, []string{"Student Name", "Student ID", "Days Out", "Grade", "Gradebook", "Outreach"}, res.Columns)
	assert.Equal(t, "1001", book.Get(roster.DefaultMasterSheet, 1, 1).Value)
}

func TestMergeAppendsNewColumns(t *testing.T) {
	book := testkit.NewMemorySheets()
	existingMaster(book)

	in := &roster.Snapshot{
		Headers: []string{"Name", "Campus"},
		Rows:    []roster.Row{{"Smith, John", "North"}},
	}
	res, err := NewMerger(book, DefaultOptions(), nil, nil).Merge(context.Background(), roster.DefaultSettings(), in)
	require.NoError(t, err)

	last := len(testkit.MasterHeaders)
	require.Len(t, res.Columns, last+1)
	assert.Equal(t, "Campus", res.Columns[last])
	assert.Equal(t, "Campus", book.Get(roster.DefaultMasterSheet, 0, last).Value)
	assert.Equal(t, "North", book.Get(roster.DefaultMasterSheet, 1, last).Value)
	assert.Equal(t, "Smith, John", book.Get(roster.DefaultMasterSheet, 1, 0).Value)
	assert.Empty(t, book.Sheet(roster.DefaultMasterSheet).Hidden)
}

func TestMergeSkipsBlankImportRows(t *testing.T) {
	book := testkit.NewMemorySheets()
	res, err := NewMerger(book, DefaultOptions(), nil, nil).Merge(context.Background(), roster.DefaultSettings(), importSnapshot(
		roster.Row{"Smith, John", "1001"},
		roster.Row{"", nil, " "},
	))
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewRows)
}

func TestMergeBlankKeyIsNew(t *testing.T) {
	book := testkit.NewMemorySheets()
	existingMaster(book)

	res, err := NewMerger(book, DefaultOptions(), nil, nil).Merge(context.Background(), roster.DefaultSettings(), importSnapshot(
		roster.Row{"", "1001", 2.0},
	))
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewRows)
	assert.Equal(t, 0, res.ExistingRows)
}

func TestMergePreconditions(t *testing.T) {
	book := testkit.NewMemorySheets()
	m := NewMerger(book, DefaultOptions(), nil, nil)

	_, err := m.Merge(context.Background(), roster.DefaultSettings(), &roster.Snapshot{Headers: []string{"Days Out"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeMissingColumn))

	_, err = m.Merge(context.Background(), roster.DefaultSettings(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeInvalidInput))
	assert.Empty(t, book.ValueFlushes)
}

func TestMergeHostFailure(t *testing.T) {
	book := testkit.NewMemorySheets()
	book.FailCreate = assert.AnError

	_, err := NewMerger(book, DefaultOptions(), nil, nil).Merge(context.Background(), roster.DefaultSettings(), importSnapshot(
		roster.Row{"Smith, John", "1001"},
	))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeHostWrite))
}
