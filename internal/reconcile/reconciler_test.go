package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ldaengine/domain/roster"
)

// dest layout: Name | Gradebook | Assigned
func destSnapshot() *roster.Snapshot {
	return &roster.Snapshot{
		Headers: []string{"Student Name", "Gradebook", "Assigned"},
		Rows: []roster.Row{
			{"Smith, John", "Gradebook", "Ms. Ortiz"},
			{"Doe, Jane", nil, nil},
			{"", "orphan", "nobody"},
		},
		Formulas: [][]string{
			{"", `=HYPERLINK("http://x","Gradebook")`, ""},
			{"", "", ""},
			{"", `=HYPERLINK("http://orphan","Orphan")`, ""},
		},
		Fills: [][]string{
			{"FFFFC000", "", ""},
			{"#ADD8E6", "", ""},
		},
	}
}

func preserveSpecs() []PreserveSpec {
	return []PreserveSpec{
		{Name: "Gradebook", Kind: roster.PreserveLink, DestIndex: 1, OutputIndex: 1, Label: "Gradebook"},
		{Name: "Assigned", Kind: roster.PreserveScalar, DestIndex: 2, OutputIndex: 2},
	}
}

func TestReconcileCompletenessAndOrdering(t *testing.T) {
	incoming := []InputRow{
		{Key: "John Smith", Values: roster.Row{"John Smith", nil, nil}},
		{Key: "New Student", Values: roster.Row{"New Student", nil, nil}},
		{Key: "jane doe", Values: roster.Row{"jane doe", nil, nil}},
		{Key: "", Values: roster.Row{"", nil, nil}},
		{Key: "Another New", Values: roster.Row{"Another New", nil, nil}},
	}

	res := Reconcile(destSnapshot(), 0, incoming, preserveSpecs(), Options{ExcludedColors: roster.DefaultExcludedColors})

	assert.Equal(t, len(incoming), len(res.NewRows)+len(res.ExistingRows))

	var order []string
	for _, r := range res.Ordered() {
		order = append(order, roster.Text(r.Values[0]))
	}
	assert.Equal(t, []string{"New Student", "", "Another New", "John Smith", "jane doe"}, order)
	for _, r := range res.NewRows {
		assert.True(t, r.IsNew)
	}
}

func TestReconcileBlankDestKeyNeverIndexed(t *testing.T) {
	res := Reconcile(destSnapshot(), 0, nil, preserveSpecs(), Options{})
	assert.Len(t, res.PreservedByKey, 2)
	_, ok := res.PreservedByKey[""]
	assert.False(t, ok)
}

func TestReconcileRestoresHyperlink(t *testing.T) {
	incoming := []InputRow{{Key: "Smith, John", Values: roster.Row{"Smith, John", "", nil}}}

	res := Reconcile(destSnapshot(), 0, incoming, preserveSpecs(), Options{ExcludedColors: roster.DefaultExcludedColors})

	require.Len(t, res.ExistingRows, 1)
	row := res.ExistingRows[0]
	assert.Equal(t, `=HYPERLINK("http://x","Gradebook")`, row.Formulas[1])
	assert.Equal(t, "Gradebook", row.Values[1])
	assert.Equal(t, "Ms. Ortiz", row.Values[2])
	assert.Equal(t, "#FFC000", row.RowColor)
}

func TestReconcileSuppliedValueWins(t *testing.T) {
	incoming := []InputRow{{
		Key:      "John Smith",
		Values:   roster.Row{"John Smith", "Gradebook", "Mr. Lee"},
		Formulas: []string{"", `=HYPERLINK("http://new","Gradebook")`, ""},
	}}

	res := Reconcile(destSnapshot(), 0, incoming, preserveSpecs(), Options{})

	require.Len(t, res.ExistingRows, 1)
	row := res.ExistingRows[0]
	assert.Equal(t, `=HYPERLINK("http://new","Gradebook")`, row.Formulas[1])
	assert.Equal(t, "Mr. Lee", row.Values[2])
}

func TestReconcileExcludedColorNotPreserved(t *testing.T) {
	incoming := []InputRow{{Key: "Jane Doe", Values: roster.Row{"Jane Doe", nil, nil}}}
	res := Reconcile(destSnapshot(), 0, incoming, preserveSpecs(), Options{ExcludedColors: roster.DefaultExcludedColors})
	require.Len(t, res.ExistingRows, 1)
	assert.Empty(t, res.ExistingRows[0].RowColor)
}

func TestReconcileWithoutDestination(t *testing.T) {
	incoming := []InputRow{{Key: "A B", Values: roster.Row{"A B"}}, {Key: "C D", Values: roster.Row{"C D"}}}
	res := Reconcile(nil, -1, incoming, nil, Options{})
	assert.Len(t, res.NewRows, 2)
	assert.Empty(t, res.ExistingRows)
}

func TestLinkLabel(t *testing.T) {
	tests := []struct {
		formula, fallback, want string
	}{
		{`=HYPERLINK("http://x","Gradebook")`, "", "Gradebook"},
		{`=hyperlink( "http://x" ; "Grades" )`, "", "Grades"},
		{`=HYPERLINK("http://x","Say ""hi""")`, "", `Say "hi"`},
		{`=HYPERLINK("http://x")`, "Gradebook", "Gradebook"},
		{`=HYPERLINK("http://x","")`, "", DefaultLinkLabel},
		{`=SUM(A1:A2)`, "", DefaultLinkLabel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LinkLabel(tt.formula, tt.fallback), tt.formula)
	}
}

func TestIsHyperlink(t *testing.T) {
	assert.True(t, IsHyperlink(`=HYPERLINK("a","b")`))
	assert.True(t, IsHyperlink(` hyperlink("a")`))
	assert.False(t, IsHyperlink(`=SUM(1)`))
	assert.False(t, IsHyperlink(""))
}
