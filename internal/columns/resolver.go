// Package columns binds logical column declarations to physical header
// positions.
package columns

import (
	"strings"
	"unicode"

	"ldaengine/domain/roster"
)

// NotFound is returned by ResolveIndex when no header matches.
const NotFound = -1

// ResolveIndex returns the header index for spec, or NotFound.
//
// Pass one compares case-insensitively against the name and every alias.
// Only when it finds nothing does pass two compare with all whitespace
// removed. Within a pass the first matching header wins.
func ResolveIndex(headers []string, spec roster.ColumnSpec) int {
	candidates := spec.Candidates()

	for i, h := range headers {
		header := strings.ToLower(strings.TrimSpace(h))
		if header == "" {
			continue
		}
		for _, c := range candidates {
			if header == strings.ToLower(strings.TrimSpace(c)) {
				return i
			}
		}
	}

	for i, h := range headers {
		header := squash(h)
		if header == "" {
			continue
		}
		for _, c := range candidates {
			if header == squash(c) {
				return i
			}
		}
	}
	return NotFound
}

// squash lower-cases s and drops every whitespace rune.
func squash(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// BuildOutputColumns lays out declared columns in configured order, then
// appends every unclaimed non-blank source header as an implicit hidden
// column, in source order.
//
// A declared column that the source lacks is kept only when it is static;
// its SourceIndex is NotFound and its cells are written blank.
func BuildOutputColumns(headers []string, declared []roster.ColumnSpec) roster.OutputColumnSet {
	out := make(roster.OutputColumnSet, 0, len(declared)+len(headers))
	claimed := make(map[int]bool, len(headers))

	for _, spec := range declared {
		idx := ResolveIndex(headers, spec)
		if idx != NotFound && claimed[idx] {
			// Two declarations resolved to one header; the first keeps it.
			idx = NotFound
		}
		if idx == NotFound && !spec.Static {
			continue
		}
		if idx != NotFound {
			claimed[idx] = true
		}
		out = append(out, roster.OutputColumn{Spec: spec, SourceIndex: idx})
	}

	for i, h := range headers {
		name := strings.TrimSpace(h)
		if claimed[i] || name == "" {
			continue
		}
		out = append(out, roster.OutputColumn{
			Spec:        roster.ColumnSpec{Name: name, Hidden: true},
			SourceIndex: i,
			Implicit:    true,
		})
	}
	return out
}

// Missing lists declared non-static columns the source headers cannot
// resolve. It is used for logging, not to fail a run.
func Missing(headers []string, declared []roster.ColumnSpec) []string {
	var out []string
	for _, spec := range declared {
		if !spec.Static && ResolveIndex(headers, spec) == NotFound {
			out = append(out, spec.Name)
		}
	}
	return out
}
