// Package sheetwriter writes large tables to a SheetPort in bounded chunks,
// flushing after each chunk and reporting progress as it goes.
package sheetwriter

import (
	"context"

	"go.uber.org/zap"

	"ldaengine/domain/roster"
	"ldaengine/internal/errors"
	"ldaengine/internal/logging"
	"ldaengine/ports"
)

// Default chunk sizes. Formatting costs more per cell than values.
const (
	DefaultValueChunkRows  = 500
	DefaultFormatChunkRows = 100
)

// Config tunes chunking.
type Config struct {
	ValueChunkRows  int
	FormatChunkRows int
}

// DefaultConfig returns the default chunk sizes.
func DefaultConfig() Config {
	return Config{ValueChunkRows: DefaultValueChunkRows, FormatChunkRows: DefaultFormatChunkRows}
}

// Writer is the sole mutator of its destination for the length of a call.
type Writer struct {
	port     ports.SheetPort
	config   Config
	progress ports.ProgressSink
	logger   *zap.Logger
}

// New creates a writer. A nil progress sink discards progress.
func New(port ports.SheetPort, config Config, progress ports.ProgressSink, logger *zap.Logger) *Writer {
	if config.ValueChunkRows <= 0 {
		config.ValueChunkRows = DefaultValueChunkRows
	}
	if config.FormatChunkRows <= 0 {
		config.FormatChunkRows = DefaultFormatChunkRows
	}
	if progress == nil {
		progress = ports.NopProgress{}
	}
	return &Writer{
		port:     port,
		config:   config,
		progress: progress,
		logger:   logging.OrNop(logger).Named("SheetWriter"),
	}
}

// Table is one table to write at Origin: a header row followed by Rows.
type Table struct {
	Label   string
	Origin  roster.CellRef
	Headers []string
	Rows    []roster.OutputRow
}

// DataRange returns the range of the data rows (header excluded). When the
// table has no rows the range covers only the header row.
func (t Table) DataRange() roster.Range {
	end := t.Origin.Row + len(t.Rows)
	start := t.Origin.Row + 1
	if len(t.Rows) == 0 {
		start = t.Origin.Row
	}
	return roster.Range{
		StartRow: start,
		StartCol: t.Origin.Col,
		EndRow:   end,
		EndCol:   t.Origin.Col + len(t.Headers) - 1,
	}
}

// FullRange returns the header plus data range.
func (t Table) FullRange() roster.Range {
	r := t.DataRange()
	r.StartRow = t.Origin.Row
	return r
}

// WriteTable writes values in value chunks, then highlights in format
// chunks. The header travels with the first value chunk, so N data rows
// take ceil(N/ValueChunkRows) value flushes, except that a table with no
// data rows still takes one flush for its header. Any host error aborts
// the call; nothing already written is rolled back.
func (w *Writer) WriteTable(ctx context.Context, sheet string, t Table) error {
	if err := w.writeValues(ctx, sheet, t); err != nil {
		return err
	}
	return w.writeFormats(ctx, sheet, t, 0)
}

func (w *Writer) writeValues(ctx context.Context, sheet string, t Table) error {
	size := w.config.ValueChunkRows
	total := chunkCount(len(t.Rows), size)
	if total == 0 {
		total = 1
	}

	for chunk := 0; chunk < total; chunk++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		start, end := bounds(chunk, size, len(t.Rows))

		batch := roster.ValueBatch{Origin: roster.CellRef{Row: t.Origin.Row + 1 + start, Col: t.Origin.Col}}
		if chunk == 0 {
			batch.Origin.Row = t.Origin.Row
			batch.Values = append(batch.Values, headerValues(t.Headers))
			batch.Formulas = append(batch.Formulas, nil)
		}
		for _, row := range t.Rows[start:end] {
			batch.Values = append(batch.Values, fit(row.Values, len(t.Headers)))
			batch.Formulas = append(batch.Formulas, row.Formulas)
		}

		if err := w.port.WriteValues(ctx, sheet, batch); err != nil {
			return errors.HostWrite(sheet, ports.PhaseWriting, err)
		}
		w.logger.Debug("value chunk flushed",
			zap.String("sheet", sheet),
			zap.String("table", t.Label),
			zap.Int("chunk", chunk+1),
			zap.Int("total", total),
			zap.Int("rows", end-start))
		w.progress.Batch(chunk+1, total, ports.PhaseWriting, t.Label)
	}
	return nil
}

// writeFormats flushes highlights. When clearCols is positive every data
// row first gets a Clear fill that wide, so rows rewritten in place drop
// the fills of whatever was there before.
func (w *Writer) writeFormats(ctx context.Context, sheet string, t Table, clearCols int) error {
	size := w.config.FormatChunkRows
	total := chunkCount(len(t.Rows), size)

	for chunk := 0; chunk < total; chunk++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		start, end := bounds(chunk, size, len(t.Rows))

		var batch roster.FormatBatch
		for i := start; i < end; i++ {
			row := t.Origin.Row + 1 + i
			if clearCols > 0 {
				batch.Fills = append(batch.Fills, roster.RangeFill{
					Row:      row,
					StartCol: t.Origin.Col,
					EndCol:   t.Origin.Col + clearCols - 1,
					Clear:    true,
				})
			}
			for _, f := range Coalesce(row, t.Rows[i].Highlights) {
				f.StartCol += t.Origin.Col
				f.EndCol += t.Origin.Col
				batch.Fills = append(batch.Fills, f)
			}
		}

		if len(batch.Fills) > 0 {
			if err := w.port.WriteFormats(ctx, sheet, batch); err != nil {
				return errors.HostWrite(sheet, ports.PhaseFormatting, err)
			}
		}
		w.progress.Batch(chunk+1, total, ports.PhaseFormatting, t.Label)
	}
	return nil
}

// ReconcileAndWrite overwrites a table in place. Every rewritten row has
// its fill and strikethrough reset before its own highlights are painted,
// and rows the previous content had beyond the new end are cleared.
func (w *Writer) ReconcileAndWrite(ctx context.Context, sheet string, t Table, previousRows, previousCols int) error {
	cols := len(t.Headers)
	if previousCols > cols {
		cols = previousCols
	}
	if err := w.writeValues(ctx, sheet, t); err != nil {
		return err
	}
	if err := w.writeFormats(ctx, sheet, t, cols); err != nil {
		return err
	}
	if previousRows <= len(t.Rows) {
		return nil
	}
	leftover := roster.Range{
		StartRow: t.Origin.Row + 1 + len(t.Rows),
		StartCol: t.Origin.Col,
		EndRow:   t.Origin.Row + previousRows,
		EndCol:   t.Origin.Col + cols - 1,
	}
	if err := w.port.ClearRange(ctx, sheet, leftover); err != nil {
		return errors.HostWrite(sheet, "clearing", err)
	}
	w.logger.Debug("cleared leftover rows",
		zap.String("sheet", sheet),
		zap.Int("rows", previousRows-len(t.Rows)))
	return nil
}

// ApplyCosmetics applies formatting whose failure is logged, never fatal.
func (w *Writer) ApplyCosmetics(ctx context.Context, sheet string, c roster.Cosmetics) {
	if err := w.port.ApplyCosmetics(ctx, sheet, c); err != nil {
		w.logger.Warn("cosmetic formatting failed",
			zap.String("sheet", sheet),
			zap.Error(err))
	}
}

func chunkCount(n, size int) int {
	if n <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

func bounds(chunk, size, n int) (int, int) {
	start := chunk * size
	end := start + size
	if end > n {
		end = n
	}
	if start > n {
		start = n
	}
	return start, end
}

func headerValues(headers []string) []any {
	out := make([]any, len(headers))
	for i, h := range headers {
		out[i] = h
	}
	return out
}

// fit pads or truncates values to width.
func fit(values roster.Row, width int) []any {
	out := make([]any, width)
	copy(out, values)
	return out
}
