package excel

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"ldaengine/domain/roster"
	"ldaengine/internal/logging"
	"ldaengine/ports"
)

// Workbook is an .xlsx file exposed as a SheetPort. Every call works on the
// in-memory document; Save writes it back to Path.
type Workbook struct {
	mu     sync.Mutex
	f      *excelize.File
	path   string
	styles map[styleKey]int
	logger *zap.Logger
}

// NewWorkbook wraps an open excelize file. path may be empty for documents
// that are only written with SaveAs.
func NewWorkbook(f *excelize.File, path string, logger *zap.Logger) *Workbook {
	return &Workbook{
		f:      f,
		path:   path,
		styles: make(map[styleKey]int),
		logger: logging.OrNop(logger).Named("ExcelWorkbook"),
	}
}

// Open opens path, creating an empty workbook when the file does not exist.
func Open(path string, logger *zap.Logger) (*Workbook, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logging.OrNop(logger).Info("workbook not found, starting a new one", zap.String("path", path))
		return NewWorkbook(excelize.NewFile(), path, logger), nil
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	return NewWorkbook(f, path, logger), nil
}

// Opener opens workbooks from the local filesystem.
type Opener struct {
	Logger *zap.Logger
}

func (o Opener) Open(ctx context.Context, path string) (ports.Workbook, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wb, err := Open(path, o.Logger)
	if err != nil {
		return nil, err
	}
	return wb, nil
}

// File exposes the underlying document.
func (w *Workbook) File() *excelize.File { return w.f }

func (w *Workbook) ListSheets(ctx context.Context) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.GetSheetList(), nil
}

func (w *Workbook) Read(ctx context.Context, sheet string, opts ports.ReadOptions) (*roster.Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.hasSheet(sheet) {
		return nil, fmt.Errorf("sheet %q does not exist", sheet)
	}
	raw, err := w.f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	snap := &roster.Snapshot{Name: sheet}
	if len(raw) == 0 {
		return snap, nil
	}
	snap.Headers = make([]string, len(raw[0]))
	for i, h := range raw[0] {
		snap.Headers[i] = strings.TrimSpace(h)
	}
	width := len(snap.Headers)
	for _, r := range raw[1:] {
		if len(r) > width {
			width = len(r)
		}
	}
	for len(snap.Headers) < width {
		snap.Headers = append(snap.Headers, "")
	}

	for r := 1; r < len(raw); r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := make(roster.Row, width)
		formulas := make([]string, width)
		for c := 0; c < width; c++ {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			if c < len(raw[r]) && raw[r][c] != "" {
				row[c] = w.typed(sheet, cell, raw[r][c])
			}
			if f, err := w.f.GetCellFormula(sheet, cell); err == nil && f != "" {
				formulas[c] = "=" + f
			}
		}
		snap.Rows = append(snap.Rows, row)
		snap.Formulas = append(snap.Formulas, formulas)
	}

	fillRows := opts.FillRows
	if fillRows < 0 || fillRows > len(snap.Rows) {
		fillRows = len(snap.Rows)
	}
	for r := 0; r < fillRows; r++ {
		fills := make([]string, width)
		for c := 0; c < width; c++ {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			fills[c] = w.fillColor(sheet, cell)
		}
		snap.Fills = append(snap.Fills, fills)
	}

	if opts.ConditionalFormats {
		cfs, err := w.f.GetConditionalFormats(sheet)
		if err != nil {
			w.logger.Warn("could not read conditional formats", zap.String("sheet", sheet), zap.Error(err))
		}
		for ref, rules := range cfs {
			rng, err := parseRange(ref)
			if err != nil {
				continue
			}
			for c := rng.StartCol; c <= rng.EndCol; c++ {
				snap.ConditionalFormats = append(snap.ConditionalFormats, roster.ConditionalFormat{Column: c, Rules: rules})
			}
		}
	}
	return snap, nil
}

// typed converts a raw cell string to float64 for numeric cells.
func (w *Workbook) typed(sheet, cell, raw string) any {
	ct, err := w.f.GetCellType(sheet, cell)
	if err != nil {
		return raw
	}
	switch ct {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		return raw
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true")
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

func (w *Workbook) fillColor(sheet, cell string) string {
	id, err := w.f.GetCellStyle(sheet, cell)
	if err != nil || id == 0 {
		return ""
	}
	style, err := w.f.GetStyle(id)
	if err != nil || style == nil {
		return ""
	}
	if style.Fill.Type != "pattern" || style.Fill.Pattern != solidPattern || len(style.Fill.Color) == 0 {
		return ""
	}
	return roster.NormalizeColor(style.Fill.Color[0])
}

func (w *Workbook) CreateSheet(ctx context.Context, sheet string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.hasSheet(sheet) {
		return fmt.Errorf("sheet %q already exists", sheet)
	}
	if _, err := w.f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", sheet, err)
	}
	return nil
}

func (w *Workbook) WriteValues(ctx context.Context, sheet string, batch roster.ValueBatch) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.hasSheet(sheet) {
		return fmt.Errorf("sheet %q does not exist", sheet)
	}
	for r, values := range batch.Values {
		start, err := cellName(batch.Origin.Row+r, batch.Origin.Col)
		if err != nil {
			return err
		}
		row := make([]interface{}, len(values))
		copy(row, values)
		if err := w.f.SetSheetRow(sheet, start, &row); err != nil {
			return fmt.Errorf("failed to write row %s: %w", start, err)
		}
		for c := range values {
			var formula string
			if r < len(batch.Formulas) && c < len(batch.Formulas[r]) {
				formula = strings.TrimPrefix(strings.TrimSpace(batch.Formulas[r][c]), "=")
			}
			cell, _ := cellName(batch.Origin.Row+r, batch.Origin.Col+c)
			if formula == "" {
				if existing, _ := w.f.GetCellFormula(sheet, cell); existing == "" {
					continue
				}
			}
			if err := w.f.SetCellFormula(sheet, cell, formula); err != nil {
				return fmt.Errorf("failed to write formula %s: %w", cell, err)
			}
		}
	}
	return nil
}

func (w *Workbook) WriteFormats(ctx context.Context, sheet string, batch roster.FormatBatch) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, fill := range batch.Fills {
		rng := roster.Range{StartRow: fill.Row, StartCol: fill.StartCol, EndRow: fill.Row, EndCol: fill.EndCol}
		if fill.Clear {
			if err := w.restyle(sheet, rng, "clear", clearFill); err != nil {
				return err
			}
			continue
		}
		color := strings.TrimPrefix(roster.NormalizeColor(fill.Color), "#")
		strike := fill.Strikethrough
		change := fmt.Sprintf("fill=%s;strike=%t", color, strike)
		err := w.restyle(sheet, rng, change, func(s *excelize.Style) {
			if color != "" {
				s.Fill = excelize.Fill{Type: "pattern", Pattern: solidPattern, Color: []string{color}}
			}
			if strike {
				if s.Font == nil {
					s.Font = &excelize.Font{}
				}
				s.Font.Strike = true
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// clearFill drops the pattern fill and strikethrough, keeping the rest of
// the style (number format, borders, other font settings).
func clearFill(s *excelize.Style) {
	s.Fill = excelize.Fill{}
	if s.Font != nil {
		s.Font.Strike = false
	}
}

func (w *Workbook) ClearRange(ctx context.Context, sheet string, rng roster.Range) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.hasSheet(sheet) {
		return fmt.Errorf("sheet %q does not exist", sheet)
	}
	for r := rng.StartRow; r <= rng.EndRow; r++ {
		for c := rng.StartCol; c <= rng.EndCol; c++ {
			cell, err := cellName(r, c)
			if err != nil {
				return err
			}
			if f, _ := w.f.GetCellFormula(sheet, cell); f != "" {
				if err := w.f.SetCellFormula(sheet, cell, ""); err != nil {
					return err
				}
			}
			if err := w.f.SetCellValue(sheet, cell, nil); err != nil {
				return err
			}
		}
	}
	from, _ := cellName(rng.StartRow, rng.StartCol)
	to, _ := cellName(rng.EndRow, rng.EndCol)
	return w.f.SetCellStyle(sheet, from, to, 0)
}

func (w *Workbook) AddTable(ctx context.Context, sheet string, table roster.TableSpec) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	rng := table.Range
	if rng.EndRow <= rng.StartRow {
		// a table needs at least one data row
		rng.EndRow = rng.StartRow + 1
	}
	ref, err := rangeRef(rng)
	if err != nil {
		return err
	}
	return w.f.AddTable(sheet, &excelize.Table{
		Range:     ref,
		Name:      table.Name,
		StyleName: DefaultTableStyle,
	})
}

// ApplyCosmetics applies every cosmetic it can and reports the first
// failure, so one bad rule does not hide the rest.
func (w *Workbook) ApplyCosmetics(ctx context.Context, sheet string, c roster.Cosmetics) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	for _, col := range c.HiddenColumns {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			keep(err)
			continue
		}
		keep(w.f.SetColVisible(sheet, name, false))
	}
	for _, cw := range c.Widths {
		name, err := excelize.ColumnNumberToName(cw.Col + 1)
		if err != nil {
			keep(err)
			continue
		}
		keep(w.f.SetColWidth(sheet, name, name, cw.Width))
	}
	for _, nf := range c.NumberFormats {
		format := nf.Format
		keep(w.restyle(sheet, nf.Range, "numfmt="+format, func(s *excelize.Style) {
			s.CustomNumFmt = &format
		}))
	}
	for _, cf := range c.ConditionalFormats {
		rules, ok := cf.Rules.([]excelize.ConditionalFormatOptions)
		if !ok {
			keep(fmt.Errorf("unsupported conditional format rules %T", cf.Rules))
			continue
		}
		ref, err := rangeRef(cf.Range)
		if err != nil {
			keep(err)
			continue
		}
		keep(w.f.SetConditionalFormat(sheet, ref, rules))
	}
	return first
}

func (w *Workbook) Save(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.path == "" {
		return fmt.Errorf("workbook has no path")
	}
	if err := w.f.SaveAs(w.path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", w.path, err)
	}
	w.logger.Debug("workbook saved", zap.String("path", w.path))
	return nil
}

func (w *Workbook) Close() error {
	return w.f.Close()
}

// restyle derives a new style for every cell in rng from the style it
// already has, so fills never wipe number formats and vice versa. Cells
// sharing a base style are styled as one run.
func (w *Workbook) restyle(sheet string, rng roster.Range, change string, apply func(*excelize.Style)) error {
	for r := rng.StartRow; r <= rng.EndRow; r++ {
		runStart, runStyle := -1, 0
		flush := func(end int) error {
			if runStart < 0 {
				return nil
			}
			from, _ := cellName(r, runStart)
			to, _ := cellName(r, end)
			return w.f.SetCellStyle(sheet, from, to, runStyle)
		}
		for c := rng.StartCol; c <= rng.EndCol; c++ {
			cell, err := cellName(r, c)
			if err != nil {
				return err
			}
			base, err := w.f.GetCellStyle(sheet, cell)
			if err != nil {
				return fmt.Errorf("failed to read style of %s: %w", cell, err)
			}
			id, err := w.derive(base, change, apply)
			if err != nil {
				return err
			}
			if id != runStyle || runStart < 0 {
				if err := flush(c - 1); err != nil {
					return err
				}
				runStart, runStyle = c, id
			}
		}
		if err := flush(rng.EndCol); err != nil {
			return err
		}
	}
	return nil
}

func (w *Workbook) derive(base int, change string, apply func(*excelize.Style)) (int, error) {
	key := styleKey{base: base, change: change}
	if id, ok := w.styles[key]; ok {
		return id, nil
	}
	style := &excelize.Style{}
	if base != 0 {
		existing, err := w.f.GetStyle(base)
		if err != nil {
			return 0, fmt.Errorf("failed to read style %d: %w", base, err)
		}
		if existing != nil {
			style = existing
		}
	}
	apply(style)
	id, err := w.f.NewStyle(style)
	if err != nil {
		return 0, fmt.Errorf("failed to create style: %w", err)
	}
	w.styles[key] = id
	return id, nil
}

func (w *Workbook) hasSheet(sheet string) bool {
	idx, err := w.f.GetSheetIndex(sheet)
	return err == nil && idx >= 0
}

func cellName(row, col int) (string, error) {
	return excelize.CoordinatesToCellName(col+1, row+1)
}

func rangeRef(rng roster.Range) (string, error) {
	from, err := cellName(rng.StartRow, rng.StartCol)
	if err != nil {
		return "", err
	}
	to, err := cellName(rng.EndRow, rng.EndCol)
	if err != nil {
		return "", err
	}
	return from + ":" + to, nil
}

// parseRange reads "A1:C9" (or a single cell) into zero-based coordinates.
func parseRange(ref string) (roster.Range, error) {
	first := strings.Fields(ref)
	if len(first) == 0 {
		return roster.Range{}, fmt.Errorf("empty range")
	}
	parts := strings.SplitN(first[0], ":", 2)
	c1, r1, err := excelize.CellNameToCoordinates(parts[0])
	if err != nil {
		return roster.Range{}, err
	}
	c2, r2 := c1, r1
	if len(parts) == 2 {
		if c2, r2, err = excelize.CellNameToCoordinates(parts[1]); err != nil {
			return roster.Range{}, err
		}
	}
	return roster.Range{StartRow: r1 - 1, StartCol: c1 - 1, EndRow: r2 - 1, EndCol: c2 - 1}, nil
}

var _ ports.Workbook = (*Workbook)(nil)
