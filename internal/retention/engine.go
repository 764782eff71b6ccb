package retention

import (
	"sort"
	"strings"

	"ldaengine/domain/roster"
)

// DNCMessage is written for students tagged exactly "DNC".
const DNCMessage = "[Retention] Do not contact (DNC)"

// Contact kinds a DNC tag can restrict.
const (
	ContactPhone = "phone"
	ContactEmail = "email"
)

// Rules toggles the individual rules of the chain.
type Rules struct {
	IncludeDNC        bool
	IncludeEngagement bool
}

// Decision is the outcome of the rule chain for one student.
type Decision struct {
	Message string
	Class   roster.ColorClass
	// Strike lists the contact kinds whose columns are struck through.
	Strike []string
}

// Classify runs the prioritized rule chain; the first match wins.
//
//  1. a DNC tag equal to "dnc" (trimmed, any case): fixed message, DNC color,
//     every contact column struck
//  2. a scheduled engagement: dated message, retention color
//  3. nothing
//
// A tag that merely mentions DNC ("DNC - phone only") does not stop the
// chain; it only strikes the contact columns it names.
func Classify(person string, maps TagMaps, rules Rules) Decision {
	var partial []string
	if rules.IncludeDNC {
		if tag, ok := maps.DNC[person]; ok {
			if strings.EqualFold(strings.TrimSpace(tag), "dnc") {
				return Decision{
					Message: DNCMessage,
					Class:   roster.ColorDNC,
					Strike:  []string{ContactPhone, ContactEmail},
				}
			}
			partial = partialContacts(tag)
		}
	}
	if rules.IncludeEngagement {
		if e, ok := maps.Engagement[person]; ok && !e.Date.IsZero() {
			return Decision{
				Message: "[Retention] Student plans to engage on " + e.Date.Format("01-02-06"),
				Class:   roster.ColorRetention,
				Strike:  partial,
			}
		}
	}
	return Decision{Strike: partial}
}

func partialContacts(tag string) []string {
	t := strings.ToLower(tag)
	var out []string
	if strings.Contains(t, "phone") || strings.Contains(t, "call") || strings.Contains(t, "text") {
		out = append(out, ContactPhone)
	}
	if strings.Contains(t, "email") || strings.Contains(t, "e-mail") {
		out = append(out, ContactEmail)
	}
	if len(out) == 0 {
		out = append(out, ContactPhone)
	}
	return out
}

// Layout tells the highlighter where things sit in the output row.
type Layout struct {
	Width    int
	Outreach int // -1 when the report has no outreach column
	Contacts map[string][]int
}

// NewLayout derives contact columns from header names.
func NewLayout(headers []string, outreach int) Layout {
	l := Layout{Width: len(headers), Outreach: outreach, Contacts: map[string][]int{}}
	for i, h := range headers {
		lh := strings.ToLower(h)
		switch {
		case strings.Contains(lh, "phone"):
			l.Contacts[ContactPhone] = append(l.Contacts[ContactPhone], i)
		case strings.Contains(lh, "email"):
			l.Contacts[ContactEmail] = append(l.Contacts[ContactEmail], i)
		}
	}
	return l
}

// ClassColor maps a color class to its fill.
func ClassColor(c roster.ColorClass) string {
	switch c {
	case roster.ColorDNC:
		return roster.DNCColor
	case roster.ColorRetention:
		return roster.RetentionColor
	}
	return ""
}

// Direct turns a decision into a per-cell directive.
//
// With a message, cells 0..Outreach get the class color, or the whole row
// when there is no outreach column.
func Direct(d Decision, layout Layout) roster.OutreachDirective {
	dir := roster.OutreachDirective{Message: d.Message, ColorClass: d.Class}
	cells := make(map[int]*roster.CellHighlight)

	if d.HasMessage() {
		color := ClassColor(d.Class)
		end := layout.Width - 1
		if layout.Outreach >= 0 && layout.Outreach < layout.Width {
			end = layout.Outreach
		} else {
			dir.RowColor = color
		}
		for c := 0; c <= end; c++ {
			cells[c] = &roster.CellHighlight{Col: c, Color: color}
		}
	}
	for _, kind := range d.Strike {
		for _, c := range layout.Contacts[kind] {
			if h, ok := cells[c]; ok {
				h.Strikethrough = true
				continue
			}
			cells[c] = &roster.CellHighlight{Col: c, Strikethrough: true}
		}
	}

	dir.CellHighlights = flatten(cells)
	return dir
}

// HasMessage reports whether the decision carries a message.
func (d Decision) HasMessage() bool { return d.Message != "" }

// ValueColors maps output column -> cell text -> fill.
type ValueColors map[int]map[string]string

// Override applies value colors on top of hs. A value color replaces any
// retention color on the same cell and keeps its strikethrough flag.
func Override(hs []roster.CellHighlight, values roster.Row, colors ValueColors) []roster.CellHighlight {
	if len(colors) == 0 {
		return hs
	}
	cells := make(map[int]*roster.CellHighlight, len(hs))
	for i := range hs {
		h := hs[i]
		cells[h.Col] = &h
	}
	for col, byValue := range colors {
		if col < 0 || col >= len(values) {
			continue
		}
		text := roster.Text(values[col])
		if text == "" {
			continue
		}
		color, ok := byValue[text]
		if !ok {
			continue
		}
		if h, exists := cells[col]; exists {
			h.Color = color
			continue
		}
		cells[col] = &roster.CellHighlight{Col: col, Color: color}
	}
	return flatten(cells)
}

func flatten(cells map[int]*roster.CellHighlight) []roster.CellHighlight {
	out := make([]roster.CellHighlight, 0, len(cells))
	for _, h := range cells {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Col < out[j].Col })
	return out
}
