package lda

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ldaengine/domain/roster"
)

// maxSheetName is the host's sheet-name length limit.
const maxSheetName = 31

// BaseSheetName returns "LDA M-D-YYYY", or "LDA <Campus> M-D-YYYY" in campus
// mode when a campus name is set.
func BaseSheetName(settings roster.Settings, now time.Time) string {
	date := fmt.Sprintf("%d-%d-%d", int(now.Month()), now.Day(), now.Year())
	campus := strings.TrimSpace(settings.CampusName)
	if settings.SheetNamingMode == roster.NamingByCampus && campus != "" {
		campus = sanitizeSheetName(campus)
		room := maxSheetName - len("LDA  ") - len(date) - len(" (99)")
		if room < 1 {
			return "LDA " + date
		}
		if r := []rune(campus); len(r) > room {
			campus = strings.TrimSpace(string(r[:room]))
		}
		return "LDA " + campus + " " + date
	}
	return "LDA " + date
}

// UniqueSheetName appends " (2)", " (3)", … until base is free. Sheet names
// compare case-insensitively.
func UniqueSheetName(base string, existing []string) string {
	taken := make(map[string]bool, len(existing))
	for _, name := range existing {
		taken[strings.ToLower(name)] = true
	}
	if !taken[strings.ToLower(base)] {
		return base
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", base, n)
		if !taken[strings.ToLower(candidate)] {
			return candidate
		}
	}
}

// UniqueTableName returns prefix plus a random suffix; table names must be
// unique across the whole workbook.
func UniqueTableName(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "_" + id[:12]
}

func sanitizeSheetName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, s)
}
