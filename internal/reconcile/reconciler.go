// Package reconcile partitions an incoming roster into new and existing
// students against a destination sheet and carries hand-entered fields
// forward from the rows being replaced.
package reconcile

import (
	"ldaengine/domain/roster"
	"ldaengine/internal/namekey"
)

// PreserveSpec binds one preserved field to its position in the
// destination and in the emitted rows.
type PreserveSpec struct {
	Name        string
	Kind        roster.PreserveKind
	DestIndex   int
	OutputIndex int
	Label       string
}

// PreservedValue is a captured field. Formula is set for links.
type PreservedValue struct {
	Value   any
	Formula string
}

// Preserved is everything kept for one student key.
type Preserved struct {
	Fields   map[string]PreservedValue
	RowColor string
}

// InputRow is an incoming row already laid out in output column order.
type InputRow struct {
	Key      string
	Values   roster.Row
	Formulas []string
}

// MergedRow is an emitted row with preserved fields applied.
type MergedRow struct {
	Key      string
	IsNew    bool
	Values   roster.Row
	Formulas []string
	RowColor string
}

// Result of one reconciliation.
type Result struct {
	NewRows        []MergedRow
	ExistingRows   []MergedRow
	PreservedByKey map[string]*Preserved
}

// Ordered returns new rows followed by existing rows.
func (r *Result) Ordered() []MergedRow {
	out := make([]MergedRow, 0, len(r.NewRows)+len(r.ExistingRows))
	out = append(out, r.NewRows...)
	return append(out, r.ExistingRows...)
}

// Options configure a reconciliation.
type Options struct {
	// ExcludedColors are fills never captured as a preserved row color.
	ExcludedColors []string
}

// Reconcile classifies every incoming row exactly once.
//
// dest rows with a blank key are never indexed and so never match. Keys are
// compared after namekey.Normalize, with no fuzzy matching.
func Reconcile(dest *roster.Snapshot, destKey int, incoming []InputRow, preserve []PreserveSpec, opts Options) *Result {
	res := &Result{PreservedByKey: make(map[string]*Preserved)}
	excluded := roster.ColorSet(opts.ExcludedColors)

	if dest != nil && destKey >= 0 {
		for r := range dest.Rows {
			key := namekey.Normalize(roster.Text(dest.Cell(r, destKey)))
			if key == "" {
				continue
			}
			p := res.PreservedByKey[key]
			if p == nil {
				p = &Preserved{Fields: make(map[string]PreservedValue)}
				res.PreservedByKey[key] = p
			}
			capture(p, dest, r, destKey, preserve, excluded)
		}
	}

	for _, in := range incoming {
		key := namekey.Normalize(in.Key)
		row := MergedRow{
			Key:      key,
			Values:   append(roster.Row(nil), in.Values...),
			Formulas: padFormulas(in.Formulas, len(in.Values)),
		}
		p, ok := res.PreservedByKey[key]
		if key == "" || !ok {
			row.IsNew = true
			res.NewRows = append(res.NewRows, row)
			continue
		}
		apply(&row, p, preserve)
		res.ExistingRows = append(res.ExistingRows, row)
	}
	return res
}

// capture records the first non-empty value of each preserved field.
func capture(p *Preserved, dest *roster.Snapshot, r, destKey int, preserve []PreserveSpec, excluded map[string]bool) {
	for _, spec := range preserve {
		if spec.DestIndex < 0 {
			continue
		}
		if _, seen := p.Fields[spec.Name]; seen {
			continue
		}
		switch spec.Kind {
		case roster.PreserveLink:
			if f := dest.Formula(r, spec.DestIndex); IsHyperlink(f) {
				p.Fields[spec.Name] = PreservedValue{Formula: f, Value: roster.Text(dest.Cell(r, spec.DestIndex))}
			}
		default:
			if v := dest.Cell(r, spec.DestIndex); !roster.IsEmpty(v) {
				p.Fields[spec.Name] = PreservedValue{Value: v, Formula: dest.Formula(r, spec.DestIndex)}
			}
		}
	}
	if p.RowColor == "" {
		if c := roster.NormalizeColor(dest.Fill(r, destKey)); c != "" && !excluded[c] {
			p.RowColor = c
		}
	}
}

// apply fills empty fields of row from p; supplied values always win.
func apply(row *MergedRow, p *Preserved, preserve []PreserveSpec) {
	for _, spec := range preserve {
		i := spec.OutputIndex
		if i < 0 || i >= len(row.Values) {
			continue
		}
		if !roster.IsEmpty(row.Values[i]) || row.Formulas[i] != "" {
			continue
		}
		pv, ok := p.Fields[spec.Name]
		if !ok {
			continue
		}
		if spec.Kind == roster.PreserveLink {
			row.Formulas[i] = pv.Formula
			row.Values[i] = LinkLabel(pv.Formula, spec.Label)
			continue
		}
		row.Values[i] = pv.Value
		row.Formulas[i] = pv.Formula
	}
	row.RowColor = p.RowColor
}

func padFormulas(f []string, n int) []string {
	out := make([]string, n)
	copy(out, f)
	return out
}
