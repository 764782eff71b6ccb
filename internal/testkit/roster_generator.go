package testkit

import (
	"fmt"
	"math/rand"

	"ldaengine/domain/roster"
)

// MasterHeaders is the column layout of generated rosters.
var MasterHeaders = []string{"Student Name", "Student ID", "Days Out", "Grade", "Phone", "Email", "Gradebook", "Assigned", "Outreach"}

// GenerateRoster builds n deterministic Master List rows from seed.
func GenerateRoster(n int, seed int64) []roster.Row {
	rng := rand.New(rand.NewSource(seed))
	first := []string{"Ana", "Ben", "Cara", "Dev", "Eli", "Fay", "Gus", "Hana"}
	last := []string{"Ortiz", "Lee", "Kim", "Smith", "Nguyen", "Patel", "Brown", "Diaz"}

	rows := make([]roster.Row, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("%s, %s %d", last[rng.Intn(len(last))], first[rng.Intn(len(first))], i)
		rows[i] = roster.Row{
			name,
			fmt.Sprintf("%d", 100000+i),
			float64(rng.Intn(30)),
			float64(rng.Intn(100)) / 100,
			fmt.Sprintf("555-%04d", i),
			fmt.Sprintf("student%d@example.edu", i),
			nil,
			nil,
			nil,
		}
	}
	return rows
}
