package lda

import (
	"sort"

	"ldaengine/domain/roster"
	"ldaengine/internal/sampling"
)

// FailingGradeCutoff is the percent grade below which a student is failing.
const FailingGradeCutoff = 60.0

// FailingMaxDaysOut keeps the failing list to students still attending.
const FailingMaxDaysOut = 4.0

// SelectOutOfAttendance returns indexes of rows whose days-out value is at
// least threshold, sorted by days-out descending. Ties keep sheet order.
func SelectOutOfAttendance(rows []roster.Row, daysCol int, threshold float64) []int {
	type pick struct {
		idx  int
		days float64
	}
	var picks []pick
	for i, row := range rows {
		if daysCol >= len(row) {
			continue
		}
		days, ok := roster.Number(row[daysCol])
		if !ok || days < threshold {
			continue
		}
		picks = append(picks, pick{idx: i, days: days})
	}
	sort.SliceStable(picks, func(a, b int) bool { return picks[a].days > picks[b].days })

	out := make([]int, len(picks))
	for i, p := range picks {
		out[i] = p.idx
	}
	return out
}

// SelectFailing returns indexes of rows graded below the cutoff with at most
// FailingMaxDaysOut days out, sorted by grade ascending.
func SelectFailing(rows []roster.Row, daysCol, gradeCol int, scale sampling.GradeScale) []int {
	type pick struct {
		idx   int
		grade float64
	}
	var picks []pick
	for i, row := range rows {
		if daysCol >= len(row) || gradeCol >= len(row) {
			continue
		}
		days, ok := roster.Number(row[daysCol])
		if !ok || days > FailingMaxDaysOut {
			continue
		}
		grade, ok := scale.Percent(row[gradeCol])
		if !ok || grade >= FailingGradeCutoff {
			continue
		}
		picks = append(picks, pick{idx: i, grade: grade})
	}
	sort.SliceStable(picks, func(a, b int) bool { return picks[a].grade < picks[b].grade })

	out := make([]int, len(picks))
	for i, p := range picks {
		out[i] = p.idx
	}
	return out
}
