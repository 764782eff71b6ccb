package sampling

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ldaengine/domain/roster"
)

func TestBuildColorMap(t *testing.T) {
	snap := &roster.Snapshot{
		Headers: []string{"Name", "Advisor"},
		Rows: []roster.Row{
			{"Ann", "Ortiz"},
			{"Bob", "Lee"},
			{"Cy", ""},
			{"Di", "Ortiz"},
			{"Ed", "Kim"},
		},
		Fills: [][]string{
			{"", "FFFFC000"},
			{"#ffffff", "#ADD8E6"},
			{"", "#00FF00"},
			{"", "#FFC000"},
			{"", "#123456"},
		},
	}

	m := BuildColorMap(snap, 4, roster.DefaultExcludedColors)

	assert.Equal(t, map[string]string{"Ortiz": "#FFC000"}, m[1])
	_, hasName := m[0]
	assert.False(t, hasName, "white fill must not be captured")
	_, hasKim := m[1]["Kim"]
	assert.False(t, hasKim, "rows past the sample limit are not scanned")
}

func TestColorMapForOutput(t *testing.T) {
	m := ColorMap{3: {"Ortiz": "#FFC000"}}
	cols := roster.OutputColumnSet{
		{Spec: roster.ColumnSpec{Name: "Advisor"}, SourceIndex: 3},
		{Spec: roster.ColumnSpec{Name: "Outreach"}, SourceIndex: -1},
	}
	assert.Equal(t, map[int]map[string]string{0: {"Ortiz": "#FFC000"}}, m.ForOutput(cols))
}

func TestDetectDateColumns(t *testing.T) {
	headers := []string{"Last LDA", "Student ID", "Notes", "Sparse"}
	rows := []roster.Row{
		{45000.0, 45000.0, "x", 5.0},
		{45100.0, 45001.0, "y", 45000.0},
		{"", 45002.0, "z", 7.0},
	}
	assert.Equal(t, []int{0}, DetectDateColumns(headers, rows, 100))
}

func TestDetectDateColumnsRespectsSampleLimit(t *testing.T) {
	headers := []string{"Enrolled"}
	rows := []roster.Row{{1.0}, {2.0}, {45000.0}, {45000.0}, {45000.0}}
	assert.Empty(t, DetectDateColumns(headers, rows, 2))
	assert.Equal(t, []int{0}, DetectDateColumns(headers, rows, 5))
}

func TestDetectGradeScale(t *testing.T) {
	fraction := []roster.Row{{0.55}, {0.9}, {"1"}}
	assert.True(t, DetectGradeScale(fraction, 0, 10).Fraction)

	percent := []roster.Row{{55.0}, {"90%"}}
	assert.False(t, DetectGradeScale(percent, 0, 10).Fraction)

	p, ok := GradeScale{Fraction: true}.Percent(0.5)
	assert.True(t, ok)
	assert.InDelta(t, 50.0, p, 1e-9)

	_, ok = GradeScale{}.Percent("n/a")
	assert.False(t, ok)
}
