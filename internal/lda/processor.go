// Package lda generates the last-date-of-attendance report sheet from the
// Master List: out-of-attendance students first, an optional failing list
// beneath, with retention messages and highlights applied.
package lda

import (
	"context"
	"math"
	"sort"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"ldaengine/domain/roster"
	"ldaengine/internal/columns"
	"ldaengine/internal/errors"
	"ldaengine/internal/logging"
	"ldaengine/internal/retention"
	"ldaengine/internal/sampling"
	"ldaengine/internal/sheetwriter"
	"ldaengine/ports"
)

// Progress step identifiers.
const (
	StepReadMaster   = "read-master"
	StepReadHistory  = "read-history"
	StepBuildRows    = "build-rows"
	StepCreateSheet  = "create-sheet"
	StepWritePrimary = "write-primary"
	StepWriteFailing = "write-failing"
	StepFormat       = "format"
)

// FailingTitle heads the secondary table.
const FailingTitle = "Failing Students"

// gap between the primary table and the failing-list title.
const failingGapRows = 2

// Options tune sampling and chunking.
type Options struct {
	ColorSampleRows int
	DateSampleRows  int
	ScaleSampleRows int
	Writer          sheetwriter.Config
	ExcludedColors  []string
	Now             func() time.Time
}

// DefaultOptions returns the documented heuristic limits.
func DefaultOptions() Options {
	return Options{
		ColorSampleRows: sampling.DefaultColorSampleRows,
		DateSampleRows:  sampling.DefaultDateSampleRows,
		ScaleSampleRows: sampling.DefaultScaleSampleRows,
		Writer:          sheetwriter.DefaultConfig(),
		ExcludedColors:  roster.DefaultExcludedColors,
		Now:             time.Now,
	}
}

// Report summarizes a generated LDA sheet.
type Report struct {
	SheetName   string
	PrimaryRows int
	FailingRows int
	Messages    int
	Tables      []string
	Columns     []string
}

// Processor generates LDA reports against one SheetPort.
type Processor struct {
	port     ports.SheetPort
	opts     Options
	progress ports.ProgressSink
	writer   *sheetwriter.Writer
	logger   *zap.Logger
}

// NewProcessor wires a processor. Zero-valued options fall back to defaults.
func NewProcessor(port ports.SheetPort, opts Options, progress ports.ProgressSink, logger *zap.Logger) *Processor {
	def := DefaultOptions()
	if opts.ColorSampleRows <= 0 {
		opts.ColorSampleRows = def.ColorSampleRows
	}
	if opts.DateSampleRows <= 0 {
		opts.DateSampleRows = def.DateSampleRows
	}
	if opts.ScaleSampleRows <= 0 {
		opts.ScaleSampleRows = def.ScaleSampleRows
	}
	if opts.ExcludedColors == nil {
		opts.ExcludedColors = def.ExcludedColors
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	if progress == nil {
		progress = ports.NopProgress{}
	}
	logger = logging.OrNop(logger).Named("LDAProcessor")
	return &Processor{
		port:     port,
		opts:     opts,
		progress: progress,
		writer:   sheetwriter.New(port, opts.Writer, progress, logger),
		logger:   logger,
	}
}

// source bundles what was read up front, before any write.
type source struct {
	master   *roster.Snapshot
	daysCol  int
	cols     roster.OutputColumnSet
	keyCol   int
	keyFn    retention.KeyFunc
	tags     retention.TagMaps
	colors   retention.ValueColors
	existing []string
}

// Generate builds and writes a new LDA sheet. Precondition failures return
// before anything is written; a write failure leaves the partial sheet.
func (p *Processor) Generate(ctx context.Context, settings roster.Settings) (*Report, error) {
	now := p.opts.Now()

	src, err := p.load(ctx, settings, now)
	if err != nil {
		return nil, err
	}

	p.progress.Step(StepBuildRows, ports.StepActive)
	primaryIdx := SelectOutOfAttendance(src.master.Rows, src.daysCol, settings.DaysOutThreshold)
	var failingIdx []int
	if settings.IncludeFailingList {
		failingIdx = p.selectFailing(src, settings)
	}
	rules := retention.Rules{IncludeDNC: settings.IncludeDncTag, IncludeEngagement: settings.IncludeEngagementTag}
	primary, primaryMsgs := p.buildRows(src, primaryIdx, rules)
	failing, failingMsgs := p.buildRows(src, failingIdx, rules)
	p.progress.Step(StepBuildRows, ports.StepCompleted)

	report := &Report{
		SheetName:   UniqueSheetName(BaseSheetName(settings, now), src.existing),
		PrimaryRows: len(primary),
		FailingRows: len(failing),
		Messages:    primaryMsgs + failingMsgs,
		Columns:     src.cols.Headers(),
	}

	p.progress.Step(StepCreateSheet, ports.StepActive)
	if err := p.port.CreateSheet(ctx, report.SheetName); err != nil {
		return nil, errors.HostWrite(report.SheetName, "creating", err)
	}
	p.progress.Step(StepCreateSheet, ports.StepCompleted)

	headers := src.cols.Headers()
	tables := []sheetwriter.Table{{Label: "LDA", Headers: headers, Rows: primary}}

	p.progress.Step(StepWritePrimary, ports.StepActive)
	name, err := p.writeTable(ctx, report.SheetName, tables[0], "LDA_Table")
	if err != nil {
		return nil, err
	}
	report.Tables = append(report.Tables, name)
	p.progress.Step(StepWritePrimary, ports.StepCompleted)

	if settings.IncludeFailingList {
		p.progress.Step(StepWriteFailing, ports.StepActive)
		titleRow := tables[0].Origin.Row + len(primary) + 1 + failingGapRows
		title := roster.ValueBatch{Origin: roster.CellRef{Row: titleRow}, Values: [][]any{{FailingTitle}}}
		if err := p.port.WriteValues(ctx, report.SheetName, title); err != nil {
			return nil, errors.HostWrite(report.SheetName, ports.PhaseWriting, err)
		}
		fail := sheetwriter.Table{
			Label:   "Failing",
			Origin:  roster.CellRef{Row: titleRow + 1},
			Headers: headers,
			Rows:    failing,
		}
		name, err := p.writeTable(ctx, report.SheetName, fail, "Failing_Table")
		if err != nil {
			return nil, err
		}
		tables = append(tables, fail)
		report.Tables = append(report.Tables, name)
		p.progress.Step(StepWriteFailing, ports.StepCompleted)
	}

	p.progress.Step(StepFormat, ports.StepActive)
	p.writer.ApplyCosmetics(ctx, report.SheetName, p.cosmetics(src, tables))
	p.progress.Step(StepFormat, ports.StepCompleted)

	p.logger.Info("LDA report generated",
		zap.String("sheet", report.SheetName),
		zap.Int("primary_rows", report.PrimaryRows),
		zap.Int("failing_rows", report.FailingRows),
		zap.Int("messages", report.Messages))
	return report, nil
}

func (p *Processor) load(ctx context.Context, settings roster.Settings, now time.Time) (*source, error) {
	masterName := settings.MasterSheetName()

	p.progress.Step(StepReadMaster, ports.StepActive)
	existing, err := p.port.ListSheets(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing sheets")
	}
	if !contains(existing, masterName) {
		return nil, errors.MissingSheet(masterName)
	}
	master, err := p.port.Read(ctx, masterName, ports.ReadOptions{FillRows: p.opts.ColorSampleRows, ConditionalFormats: true})
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", masterName)
	}
	p.progress.Batch(1, 1, ports.PhaseReading, masterName)

	daysCol := columns.ResolveIndex(master.Headers, roster.DaysOutColumn)
	if daysCol == columns.NotFound {
		return nil, errors.MissingColumn(roster.DaysOutColumn.Name, masterName)
	}
	declared := settings.OutputColumns
	if len(declared) == 0 {
		declared = roster.DefaultOutputColumns()
	}
	if missing := columns.Missing(master.Headers, declared); len(missing) > 0 {
		p.logger.Info("declared columns absent from master list", zap.Strings("columns", missing))
	}
	cols := columns.BuildOutputColumns(master.Headers, declared)
	p.progress.Step(StepReadMaster, ports.StepCompleted)

	src := &source{
		master:   master,
		daysCol:  daysCol,
		cols:     cols,
		keyCol:   columns.NotFound,
		colors:   sampling.BuildColorMap(master, p.opts.ColorSampleRows, p.opts.ExcludedColors).ForOutput(cols),
		existing: existing,
	}

	if settings.IncludeDncTag || settings.IncludeEngagementTag {
		if err := p.loadHistory(ctx, settings, src, now); err != nil {
			return nil, err
		}
	}
	return src, nil
}

func (p *Processor) loadHistory(ctx context.Context, settings roster.Settings, src *source, now time.Time) error {
	name := settings.HistorySheetName()
	p.progress.Step(StepReadHistory, ports.StepActive)
	defer p.progress.Step(StepReadHistory, ports.StepCompleted)

	if !contains(src.existing, name) {
		p.logger.Info("no history sheet; retention tags skipped", zap.String("sheet", name))
		return nil
	}
	hist, err := p.port.Read(ctx, name, ports.ReadOptions{})
	if err != nil {
		return errors.Wrapf(err, "reading %q", name)
	}
	p.progress.Batch(1, 1, ports.PhaseReading, name)

	tagCol := columns.ResolveIndex(hist.Headers, roster.HistoryTagColumn)
	histKey, masterKey, keyFn := PersonKeyColumns(hist.Headers, src.master.Headers)
	if tagCol == columns.NotFound || histKey == columns.NotFound {
		p.logger.Warn("history sheet lacks tag or student columns", zap.String("sheet", name))
		return nil
	}
	src.keyCol = masterKey
	src.keyFn = keyFn
	src.tags = retention.BuildTagMaps(hist, histKey, tagCol, keyFn, now)
	p.logger.Debug("history tags built",
		zap.Int("dnc", len(src.tags.DNC)),
		zap.Int("engagement", len(src.tags.Engagement)))
	return nil
}

// PersonKeyColumns picks how history rows are matched to master rows: by
// student ID when both sheets have one, otherwise by normalized name.
func PersonKeyColumns(historyHeaders, masterHeaders []string) (int, int, retention.KeyFunc) {
	hID := columns.ResolveIndex(historyHeaders, roster.StudentIDColumn)
	mID := columns.ResolveIndex(masterHeaders, roster.StudentIDColumn)
	if hID != columns.NotFound && mID != columns.NotFound {
		return hID, mID, retention.IDKey
	}
	hName := columns.ResolveIndex(historyHeaders, roster.StudentNameColumn)
	mName := columns.ResolveIndex(masterHeaders, roster.StudentNameColumn)
	if hName != columns.NotFound && mName != columns.NotFound {
		return hName, mName, retention.NameKey
	}
	return columns.NotFound, columns.NotFound, nil
}

func (p *Processor) selectFailing(src *source, settings roster.Settings) []int {
	gradeCol := columns.ResolveIndex(src.master.Headers, roster.GradeColumn)
	if gradeCol == columns.NotFound {
		p.logger.Warn("failing list requested but no grade column", zap.String("sheet", src.master.Name))
		return nil
	}
	scale := sampling.DetectGradeScale(src.master.Rows, gradeCol, p.opts.ScaleSampleRows)
	return SelectFailing(src.master.Rows, src.daysCol, gradeCol, scale)
}

// buildRows lays selected master rows out in output order and attaches
// retention directives. It returns the rows and how many got a message.
func (p *Processor) buildRows(src *source, idx []int, rules retention.Rules) ([]roster.OutputRow, int) {
	outreach := src.cols.IndexOf(roster.OutreachColumn)
	layout := retention.NewLayout(src.cols.Headers(), outreach)
	out := make([]roster.OutputRow, 0, len(idx))
	messages := 0

	for _, r := range idx {
		values := make(roster.Row, len(src.cols))
		formulas := make([]string, len(src.cols))
		for i, c := range src.cols {
			if c.SourceIndex < 0 {
				continue
			}
			values[i] = src.master.Cell(r, c.SourceIndex)
			formulas[i] = src.master.Formula(r, c.SourceIndex)
		}

		var dir roster.OutreachDirective
		if src.keyFn != nil && src.keyCol >= 0 {
			person := src.keyFn(src.master.Cell(r, src.keyCol))
			dir = retention.Direct(retention.Classify(person, src.tags, rules), layout)
		}
		if dir.HasMessage() {
			messages++
			if outreach >= 0 {
				values[outreach] = dir.Message
				formulas[outreach] = ""
			}
		}

		out = append(out, roster.OutputRow{
			Values:     values,
			Formulas:   formulas,
			Highlights: retention.Override(dir.CellHighlights, values, src.colors),
		})
	}
	return out, messages
}

func (p *Processor) writeTable(ctx context.Context, sheet string, t sheetwriter.Table, prefix string) (string, error) {
	if err := p.writer.WriteTable(ctx, sheet, t); err != nil {
		return "", err
	}
	name := UniqueTableName(prefix)
	if err := p.port.AddTable(ctx, sheet, roster.TableSpec{Name: name, Range: t.FullRange()}); err != nil {
		return "", errors.HostWrite(sheet, "creating table on", err)
	}
	return name, nil
}

func (p *Processor) cosmetics(src *source, tables []sheetwriter.Table) roster.Cosmetics {
	c := roster.Cosmetics{HiddenColumns: src.cols.HiddenIndexes()}

	var sample []roster.Row
	for _, t := range tables {
		for _, row := range t.Rows {
			sample = append(sample, row.Values)
		}
	}
	dateCols := sampling.DetectDateColumns(src.cols.Headers(), sample, p.opts.DateSampleRows)

	for _, t := range tables {
		if len(t.Rows) == 0 {
			continue
		}
		data := t.DataRange()
		for _, col := range dateCols {
			c.NumberFormats = append(c.NumberFormats, roster.ColumnFormat{
				Range:  columnRange(data, t.Origin.Col+col),
				Format: sampling.DateDisplayFormat,
			})
		}
		for _, cf := range src.master.ConditionalFormats {
			for i, col := range src.cols {
				if col.SourceIndex == cf.Column {
					c.ConditionalFormats = append(c.ConditionalFormats, roster.ConditionalApply{
						Range: columnRange(data, t.Origin.Col+i),
						Rules: cf.Rules,
					})
				}
			}
		}
	}

	c.Widths = estimateWidths(src.cols.Headers(), sample, p.opts.DateSampleRows)
	return c
}

func columnRange(data roster.Range, col int) roster.Range {
	return roster.Range{StartRow: data.StartRow, StartCol: col, EndRow: data.EndRow, EndCol: col}
}

// widthQuantile ignores the occasional overlong cell when sizing a column.
const widthQuantile = 0.95

// estimateWidths sizes columns from the header and a row sample.
func estimateWidths(headers []string, rows []roster.Row, sampleLimit int) []roster.ColumnWidth {
	const minWidth, maxWidth = 8.0, 60.0
	out := make([]roster.ColumnWidth, len(headers))
	lengths := make([]float64, 0, sampleLimit)
	for c, h := range headers {
		lengths = lengths[:0]
		for r := 0; r < len(rows) && r < sampleLimit; r++ {
			if c < len(rows[r]) {
				lengths = append(lengths, float64(utf8.RuneCountInString(roster.Text(rows[r][c]))))
			}
		}
		w := float64(utf8.RuneCountInString(h))
		if len(lengths) > 0 {
			sort.Float64s(lengths)
			w = math.Max(w, stat.Quantile(widthQuantile, stat.Empirical, lengths, nil))
		}
		w = math.Min(math.Max(w+2, minWidth), maxWidth)
		out[c] = roster.ColumnWidth{Col: c, Width: w}
	}
	return out
}

func contains(list []string, name string) bool {
	for _, s := range list {
		if s == name {
			return true
		}
	}
	return false
}
