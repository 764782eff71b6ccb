package sampling

import (
	"github.com/montanaflynn/stats"

	"ldaengine/domain/roster"
)

// GradeScale converts raw grade cells to percentages.
type GradeScale struct {
	Fraction bool // grades are stored 0-1 rather than 0-100
}

// DetectGradeScale looks at the first sampleLimit numeric grades. When none
// exceeds 1 the column is read as fractions.
func DetectGradeScale(rows []roster.Row, col, sampleLimit int) GradeScale {
	if col < 0 {
		return GradeScale{}
	}
	if sampleLimit <= 0 {
		sampleLimit = DefaultScaleSampleRows
	}
	sample := make(stats.Float64Data, 0, sampleLimit)
	for _, row := range rows {
		if len(sample) >= sampleLimit {
			break
		}
		if col >= len(row) {
			continue
		}
		if v, ok := roster.Number(row[col]); ok {
			sample = append(sample, v)
		}
	}
	if len(sample) == 0 {
		return GradeScale{}
	}
	maxGrade, err := stats.Max(sample)
	if err != nil {
		return GradeScale{}
	}
	return GradeScale{Fraction: maxGrade <= 1}
}

// Percent returns v on a 0-100 scale.
func (s GradeScale) Percent(v any) (float64, bool) {
	f, ok := roster.Number(v)
	if !ok {
		return 0, false
	}
	if s.Fraction {
		return f * 100, true
	}
	return f, true
}
