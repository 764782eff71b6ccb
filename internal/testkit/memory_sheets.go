// Package testkit provides an in-memory spreadsheet host for tests and
// dry runs.
package testkit

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ldaengine/domain/roster"
	"ldaengine/ports"
)

// Cell is one stored cell.
type Cell struct {
	Value   any
	Formula string
	Fill    string
	Strike  bool
	Format  string
}

// Sheet is a sparse grid keyed by zero-based row and column.
type Sheet struct {
	Cells  map[roster.CellRef]*Cell
	Hidden map[int]bool
	Widths map[int]float64
	Tables []roster.TableSpec
	CFs    []roster.ConditionalApply
	Rules  []roster.ConditionalFormat
}

// MemorySheets implements ports.Workbook in memory and records every flush.
type MemorySheets struct {
	mu     sync.Mutex
	order  []string
	sheets map[string]*Sheet

	ValueFlushes  []roster.ValueBatch
	FormatFlushes []roster.FormatBatch
	Clears        []roster.Range
	Saves         int

	// Fail* inject host errors.
	FailValuesAfter int // fail the n+1th value flush when > 0
	FailCosmetics   error
	FailCreate      error
}

// NewMemorySheets creates an empty workbook.
func NewMemorySheets() *MemorySheets {
	return &MemorySheets{sheets: make(map[string]*Sheet)}
}

// Put loads a sheet from a header row and data rows.
func (m *MemorySheets) Put(name string, headers []string, rows []roster.Row) *Sheet {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.ensure(name)
	for c, h := range headers {
		s.Cells[roster.CellRef{Row: 0, Col: c}] = &Cell{Value: h}
	}
	for r, row := range rows {
		for c, v := range row {
			s.Cells[roster.CellRef{Row: r + 1, Col: c}] = &Cell{Value: v}
		}
	}
	return s
}

// SetFormula stores a formula at a data cell (row 0 is the first data row).
func (m *MemorySheets) SetFormula(sheet string, dataRow, col int, formula string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cell(sheet, dataRow+1, col).Formula = formula
}

// SetFill stores a fill at a data cell.
func (m *MemorySheets) SetFill(sheet string, dataRow, col int, color string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cell(sheet, dataRow+1, col).Fill = color
}

// AddRule attaches a conditional format rule to a source column.
func (m *MemorySheets) AddRule(sheet string, col int, rules any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.ensure(sheet)
	s.Rules = append(s.Rules, roster.ConditionalFormat{Column: col, Rules: rules})
}

// Sheet returns a stored sheet or nil.
func (m *MemorySheets) Sheet(name string) *Sheet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sheets[name]
}

// Get returns the cell at a zero-based sheet row (row 0 is the header).
func (m *MemorySheets) Get(sheet string, row, col int) Cell {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sheets[sheet]
	if s == nil {
		return Cell{}
	}
	if c := s.Cells[roster.CellRef{Row: row, Col: col}]; c != nil {
		return *c
	}
	return Cell{}
}

func (m *MemorySheets) ListSheets(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...), nil
}

func (m *MemorySheets) Read(ctx context.Context, sheet string, opts ports.ReadOptions) (*roster.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sheets[sheet]
	if s == nil {
		return nil, fmt.Errorf("sheet %q does not exist", sheet)
	}
	maxRow, maxCol := -1, -1
	for ref := range s.Cells {
		if ref.Row > maxRow {
			maxRow = ref.Row
		}
		if ref.Col > maxCol {
			maxCol = ref.Col
		}
	}

	snap := &roster.Snapshot{Name: sheet}
	if maxRow < 0 {
		return snap, nil
	}
	width := maxCol + 1
	snap.Headers = make([]string, width)
	for c := 0; c < width; c++ {
		snap.Headers[c] = roster.Text(s.value(0, c))
	}
	for r := 1; r <= maxRow; r++ {
		row := make(roster.Row, width)
		formulas := make([]string, width)
		for c := 0; c < width; c++ {
			if cell := s.Cells[roster.CellRef{Row: r, Col: c}]; cell != nil {
				row[c] = cell.Value
				formulas[c] = cell.Formula
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
			if cell := s.Cells[roster.CellRef{Row: r + 1, Col: c}]; cell != nil {
				fills[c] = cell.Fill
			}
		}
		snap.Fills = append(snap.Fills, fills)
	}
	if opts.ConditionalFormats {
		snap.ConditionalFormats = append(snap.ConditionalFormats, s.Rules...)
	}
	return snap, nil
}

func (m *MemorySheets) CreateSheet(ctx context.Context, sheet string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCreate != nil {
		return m.FailCreate
	}
	if _, ok := m.sheets[sheet]; ok {
		return fmt.Errorf("sheet %q already exists", sheet)
	}
	m.ensure(sheet)
	return nil
}

func (m *MemorySheets) WriteValues(ctx context.Context, sheet string, batch roster.ValueBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailValuesAfter > 0 && len(m.ValueFlushes) >= m.FailValuesAfter {
		return fmt.Errorf("request payload size exceeds the limit")
	}
	if _, ok := m.sheets[sheet]; !ok {
		return fmt.Errorf("sheet %q does not exist", sheet)
	}
	for r, values := range batch.Values {
		for c, v := range values {
			cell := m.cell(sheet, batch.Origin.Row+r, batch.Origin.Col+c)
			cell.Value = v
			cell.Formula = ""
			if r < len(batch.Formulas) && c < len(batch.Formulas[r]) {
				cell.Formula = batch.Formulas[r][c]
			}
		}
	}
	m.ValueFlushes = append(m.ValueFlushes, batch)
	return nil
}

func (m *MemorySheets) WriteFormats(ctx context.Context, sheet string, batch roster.FormatBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range batch.Fills {
		for c := f.StartCol; c <= f.EndCol; c++ {
			cell := m.cell(sheet, f.Row, c)
			if f.Clear {
				cell.Fill = ""
				cell.Strike = false
				continue
			}
			if f.Color != "" {
				cell.Fill = f.Color
			}
			if f.Strikethrough {
				cell.Strike = true
			}
		}
	}
	m.FormatFlushes = append(m.FormatFlushes, batch)
	return nil
}

func (m *MemorySheets) ClearRange(ctx context.Context, sheet string, rng roster.Range) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sheets[sheet]
	if s == nil {
		return fmt.Errorf("sheet %q does not exist", sheet)
	}
	for ref := range s.Cells {
		if ref.Row >= rng.StartRow && ref.Row <= rng.EndRow && ref.Col >= rng.StartCol && ref.Col <= rng.EndCol {
			delete(s.Cells, ref)
		}
	}
	m.Clears = append(m.Clears, rng)
	return nil
}

func (m *MemorySheets) AddTable(ctx context.Context, sheet string, table roster.TableSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sheets[sheet]
	if s == nil {
		return fmt.Errorf("sheet %q does not exist", sheet)
	}
	for _, sh := range m.sheets {
		for _, t := range sh.Tables {
			if t.Name == table.Name {
				return fmt.Errorf("table name %q already in use", table.Name)
			}
		}
	}
	s.Tables = append(s.Tables, table)
	return nil
}

func (m *MemorySheets) ApplyCosmetics(ctx context.Context, sheet string, c roster.Cosmetics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCosmetics != nil {
		return m.FailCosmetics
	}
	s := m.ensure(sheet)
	for _, col := range c.HiddenColumns {
		s.Hidden[col] = true
	}
	for _, w := range c.Widths {
		s.Widths[w.Col] = w.Width
	}
	for _, nf := range c.NumberFormats {
		for r := nf.Range.StartRow; r <= nf.Range.EndRow; r++ {
			for col := nf.Range.StartCol; col <= nf.Range.EndCol; col++ {
				m.cell(sheet, r, col).Format = nf.Format
			}
		}
	}
	s.CFs = append(s.CFs, c.ConditionalFormats...)
	return nil
}

func (m *MemorySheets) Save(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saves++
	return nil
}

func (m *MemorySheets) Close() error { return nil }

// SheetNames returns sheet names sorted, for assertions.
func (m *MemorySheets) SheetNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]string(nil), m.order...)
	sort.Strings(out)
	return out
}

func (m *MemorySheets) ensure(name string) *Sheet {
	s, ok := m.sheets[name]
	if !ok {
		s = &Sheet{
			Cells:  make(map[roster.CellRef]*Cell),
			Hidden: make(map[int]bool),
			Widths: make(map[int]float64),
		}
		m.sheets[name] = s
		m.order = append(m.order, name)
	}
	return s
}

func (m *MemorySheets) cell(sheet string, row, col int) *Cell {
	s := m.ensure(sheet)
	ref := roster.CellRef{Row: row, Col: col}
	c := s.Cells[ref]
	if c == nil {
		c = &Cell{}
		s.Cells[ref] = c
	}
	return c
}

func (s *Sheet) value(row, col int) any {
	if c := s.Cells[roster.CellRef{Row: row, Col: col}]; c != nil {
		return c.Value
	}
	return nil
}

// StaticOpener hands out the same in-memory workbook for any path.
type StaticOpener struct {
	Book *MemorySheets
	Err  error
}

func (o StaticOpener) Open(ctx context.Context, path string) (ports.Workbook, error) {
	if o.Err != nil {
		return nil, o.Err
	}
	return o.Book, nil
}

var _ ports.Workbook = (*MemorySheets)(nil)
