// Package masterlist merges an imported roster into the Master List sheet,
// keeping hand-entered links, assignments and row highlights of students who
// were already there.
package masterlist

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"ldaengine/domain/roster"
	"ldaengine/internal/columns"
	"ldaengine/internal/errors"
	"ldaengine/internal/logging"
	"ldaengine/internal/reconcile"
	"ldaengine/internal/retention"
	"ldaengine/internal/sampling"
	"ldaengine/internal/sheetwriter"
	"ldaengine/ports"
)

// Progress step identifiers.
const (
	StepReadDestination = "read-destination"
	StepReconcile       = "reconcile"
	StepWrite           = "write-master"
	StepFormat          = "format"
)

// Options tune sampling and chunking.
type Options struct {
	ColorSampleRows int
	DateSampleRows  int
	Writer          sheetwriter.Config
	ExcludedColors  []string
}

// DefaultOptions returns the documented limits.
func DefaultOptions() Options {
	return Options{
		ColorSampleRows: sampling.DefaultColorSampleRows,
		DateSampleRows:  sampling.DefaultDateSampleRows,
		Writer:          sheetwriter.DefaultConfig(),
		ExcludedColors:  roster.DefaultExcludedColors,
	}
}

// Result summarizes one merge.
type Result struct {
	Sheet        string
	NewRows      int
	ExistingRows int
	ClearedRows  int
	Created      bool
	Columns      []string
}

// Merger writes imports into one SheetPort.
type Merger struct {
	port     ports.SheetPort
	opts     Options
	progress ports.ProgressSink
	writer   *sheetwriter.Writer
	logger   *zap.Logger
}

// NewMerger wires a merger. Zero-valued options fall back to defaults.
func NewMerger(port ports.SheetPort, opts Options, progress ports.ProgressSink, logger *zap.Logger) *Merger {
	def := DefaultOptions()
	if opts.ColorSampleRows <= 0 {
		opts.ColorSampleRows = def.ColorSampleRows
	}
	if opts.DateSampleRows <= 0 {
		opts.DateSampleRows = def.DateSampleRows
	}
	if opts.ExcludedColors == nil {
		opts.ExcludedColors = def.ExcludedColors
	}
	if progress == nil {
		progress = ports.NopProgress{}
	}
	logger = logging.OrNop(logger).Named("MasterListMerge")
	return &Merger{
		port:     port,
		opts:     opts,
		progress: progress,
		writer:   sheetwriter.New(port, opts.Writer, progress, logger),
		logger:   logger,
	}
}

// Merge reconciles incoming against the Master List and rewrites it: new
// students first, painted with the new-row color, then returning students
// with preserved fields restored. Rows past the new end are cleared.
func (m *Merger) Merge(ctx context.Context, settings roster.Settings, incoming *roster.Snapshot) (*Result, error) {
	if incoming == nil || len(incoming.Headers) == 0 {
		return nil, errors.InvalidInput("import has no header row")
	}
	importName := incoming.Name
	if importName == "" {
		importName = "import"
	}
	inKey := columns.ResolveIndex(incoming.Headers, roster.StudentNameColumn)
	if inKey == columns.NotFound {
		return nil, errors.MissingColumn(roster.StudentNameColumn.Name, importName)
	}

	sheet := settings.MasterSheetName()
	res := &Result{Sheet: sheet}

	m.progress.Step(StepReadDestination, ports.StepActive)
	dest, err := m.readDestination(ctx, sheet)
	if err != nil {
		return nil, err
	}
	m.progress.Step(StepReadDestination, ports.StepCompleted)

	m.progress.Step(StepReconcile, ports.StepActive)
	declared := layout(dest, settings)
	cols := columns.BuildOutputColumns(incoming.Headers, declared)
	for i := range cols {
		// columns new to the roster stay visible there
		if cols[i].Implicit {
			cols[i].Spec.Hidden = false
		}
	}
	headers := cols.Headers()
	res.Columns = headers

	destKey := columns.NotFound
	if dest != nil {
		if destKey = columns.ResolveIndex(dest.Headers, roster.StudentNameColumn); destKey == columns.NotFound {
			m.logger.Warn("master list has no name column; every import row is new", zap.String("sheet", sheet))
		}
	}

	inputs := make([]reconcile.InputRow, 0, len(incoming.Rows))
	for r := range incoming.Rows {
		key := roster.Text(incoming.Cell(r, inKey))
		values := make(roster.Row, len(cols))
		formulas := make([]string, len(cols))
		empty := true
		for i, c := range cols {
			if c.SourceIndex < 0 {
				continue
			}
			values[i] = incoming.Cell(r, c.SourceIndex)
			formulas[i] = incoming.Formula(r, c.SourceIndex)
			if !roster.IsEmpty(values[i]) {
				empty = false
			}
		}
		if empty {
			continue
		}
		inputs = append(inputs, reconcile.InputRow{Key: key, Values: values, Formulas: formulas})
	}

	preserve := preserveSpecs(settings, dest, headers)
	merged := reconcile.Reconcile(dest, destKey, inputs, preserve, reconcile.Options{ExcludedColors: m.opts.ExcludedColors})
	res.NewRows = len(merged.NewRows)
	res.ExistingRows = len(merged.ExistingRows)
	rows := m.outputRows(merged.Ordered(), dest, cols)
	m.progress.Step(StepReconcile, ports.StepCompleted)

	prevRows, prevCols := 0, 0
	if dest == nil {
		if err := m.port.CreateSheet(ctx, sheet); err != nil {
			return nil, errors.HostWrite(sheet, "creating", err)
		}
		res.Created = true
	} else {
		prevRows, prevCols = len(dest.Rows), len(dest.Headers)
	}
	if prevRows > len(rows) {
		res.ClearedRows = prevRows - len(rows)
	}

	m.progress.Step(StepWrite, ports.StepActive)
	table := sheetwriter.Table{Label: sheet, Headers: headers, Rows: rows}
	if err := m.writer.ReconcileAndWrite(ctx, sheet, table, prevRows, prevCols); err != nil {
		return nil, err
	}
	m.progress.Step(StepWrite, ports.StepCompleted)

	m.progress.Step(StepFormat, ports.StepActive)
	m.writer.ApplyCosmetics(ctx, sheet, m.cosmetics(table))
	m.progress.Step(StepFormat, ports.StepCompleted)

	m.logger.Info("master list merged",
		zap.String("sheet", sheet),
		zap.Int("new_rows", res.NewRows),
		zap.Int("existing_rows", res.ExistingRows),
		zap.Int("cleared_rows", res.ClearedRows))
	return res, nil
}

func (m *Merger) readDestination(ctx context.Context, sheet string) (*roster.Snapshot, error) {
	names, err := m.port.ListSheets(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing sheets")
	}
	found := false
	for _, n := range names {
		if n == sheet {
			found = true
			break
		}
	}
	if !found {
		return nil, nil
	}
	// row colors are preserved for every student, so every fill is read
	dest, err := m.port.Read(ctx, sheet, ports.ReadOptions{FillRows: -1})
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", sheet)
	}
	m.progress.Batch(1, 1, ports.PhaseReading, sheet)
	return dest, nil
}

// layout returns the declared columns of the rewritten sheet: the existing
// Master List headers in place when there are any, else the configured
// columns. Existing headers know the aliases of the logical columns so an
// import saying "Student Number" still lands under "Student ID". Blank
// existing headers are kept as empty placeholder columns.
func layout(dest *roster.Snapshot, settings roster.Settings) []roster.ColumnSpec {
	known := knownColumns(settings)
	if dest == nil || !hasHeaders(dest.Headers) {
		if len(settings.OutputColumns) > 0 {
			return settings.OutputColumns
		}
		return roster.DefaultOutputColumns()
	}
	out := make([]roster.ColumnSpec, 0, len(dest.Headers))
	for _, h := range dest.Headers {
		name := strings.TrimSpace(h)
		if name == "" {
			// a blank header never resolves, so the column is rewritten
			// empty and the columns after it keep their positions
			out = append(out, roster.ColumnSpec{Static: true})
			continue
		}
		spec := roster.ColumnSpec{Name: name, Static: true}
		for _, k := range known {
			if columns.ResolveIndex([]string{name}, k) != columns.NotFound {
				spec.Aliases = k.Candidates()
				break
			}
		}
		out = append(out, spec)
	}
	return out
}

func knownColumns(settings roster.Settings) []roster.ColumnSpec {
	known := []roster.ColumnSpec{
		roster.StudentNameColumn,
		roster.StudentIDColumn,
		roster.DaysOutColumn,
		roster.GradeColumn,
		roster.OutreachColumn,
	}
	known = append(known, settings.OutputColumns...)
	for _, p := range preserveColumns(settings) {
		known = append(known, p.Column)
	}
	return known
}

func preserveColumns(settings roster.Settings) []roster.PreserveColumn {
	if len(settings.PreserveColumns) > 0 {
		return settings.PreserveColumns
	}
	return roster.DefaultPreserveColumns()
}

func preserveSpecs(settings roster.Settings, dest *roster.Snapshot, headers []string) []reconcile.PreserveSpec {
	var out []reconcile.PreserveSpec
	for _, p := range preserveColumns(settings) {
		spec := reconcile.PreserveSpec{
			Name:        p.Column.Name,
			Kind:        p.Kind,
			DestIndex:   columns.NotFound,
			OutputIndex: columns.ResolveIndex(headers, p.Column),
			Label:       p.Label,
		}
		if dest != nil {
			spec.DestIndex = columns.ResolveIndex(dest.Headers, p.Column)
		}
		out = append(out, spec)
	}
	return out
}

// outputRows paints row colors and then per-value colors sampled from the
// destination.
func (m *Merger) outputRows(merged []reconcile.MergedRow, dest *roster.Snapshot, cols roster.OutputColumnSet) []roster.OutputRow {
	colors := destinationColors(sampling.BuildColorMap(dest, m.opts.ColorSampleRows, m.opts.ExcludedColors), dest, cols)
	out := make([]roster.OutputRow, len(merged))
	for i, row := range merged {
		color := row.RowColor
		if row.IsNew {
			color = roster.NewRowColor
		}
		var hs []roster.CellHighlight
		if color != "" {
			hs = make([]roster.CellHighlight, len(cols))
			for c := range cols {
				hs[c] = roster.CellHighlight{Col: c, Color: color}
			}
		}
		out[i] = roster.OutputRow{
			Values:     row.Values,
			Formulas:   row.Formulas,
			Highlights: retention.Override(hs, row.Values, colors),
		}
	}
	return out
}

// destinationColors re-keys a destination color map by output column.
func destinationColors(cmap sampling.ColorMap, dest *roster.Snapshot, cols roster.OutputColumnSet) retention.ValueColors {
	out := make(retention.ValueColors)
	if dest == nil || len(cmap) == 0 {
		return out
	}
	for i, c := range cols {
		idx := columns.ResolveIndex(dest.Headers, c.Spec)
		if idx == columns.NotFound {
			continue
		}
		if byValue, ok := cmap[idx]; ok {
			out[i] = byValue
		}
	}
	return out
}

func (m *Merger) cosmetics(t sheetwriter.Table) roster.Cosmetics {
	var c roster.Cosmetics
	if len(t.Rows) == 0 {
		return c
	}
	sample := make([]roster.Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		sample = append(sample, r.Values)
	}
	data := t.DataRange()
	for _, col := range sampling.DetectDateColumns(t.Headers, sample, m.opts.DateSampleRows) {
		c.NumberFormats = append(c.NumberFormats, roster.ColumnFormat{
			Range:  roster.Range{StartRow: data.StartRow, StartCol: col, EndRow: data.EndRow, EndCol: col},
			Format: sampling.DateDisplayFormat,
		})
	}
	return c
}

func hasHeaders(headers []string) bool {
	for _, h := range headers {
		if strings.TrimSpace(h) != "" {
			return true
		}
	}
	return false
}
