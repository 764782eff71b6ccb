// Package excel adapts .xlsx workbooks (via excelize) and CSV exports to the
// engine's SheetPort and import snapshots.
package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"ldaengine/domain/roster"
	"ldaengine/internal/logging"
	"ldaengine/ports"
)

// ImportReader loads a roster export (xlsx or csv) as a snapshot.
type ImportReader struct {
	filePath string
	fileType string
	sheet    string
	logger   *zap.Logger
}

// NewImportReader picks the file type from the extension. sheet selects the
// worksheet of an xlsx import; empty means the first sheet.
func NewImportReader(filePath, sheet string, logger *zap.Logger) *ImportReader {
	fileType := FileTypeXLSX
	if strings.EqualFold(filepath.Ext(filePath), ".csv") {
		fileType = FileTypeCSV
	}
	return &ImportReader{
		filePath: filePath,
		fileType: fileType,
		sheet:    sheet,
		logger:   logging.OrNop(logger).Named("ImportReader"),
	}
}

// Read loads the import.
func (r *ImportReader) Read(ctx context.Context) (*roster.Snapshot, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	var (
		snap *roster.Snapshot
		err  error
	)
	switch r.fileType {
	case FileTypeCSV:
		snap, err = r.readCSV()
	default:
		snap, err = r.readXLSX(ctx)
	}
	if err != nil {
		return nil, err
	}
	r.logger.Info("import read",
		zap.String("file", r.filePath),
		zap.String("type", r.fileType),
		zap.Int("columns", len(snap.Headers)),
		zap.Int("rows", len(snap.Rows)))
	return snap, nil
}

func (r *ImportReader) readCSV() (*roster.Snapshot, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()
	return ReadCSV(file, filepath.Base(r.filePath))
}

func (r *ImportReader) readXLSX(ctx context.Context) (*roster.Snapshot, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	wb := NewWorkbook(f, r.filePath, r.logger)
	defer wb.Close()

	sheet := r.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("Excel file has no sheets")
		}
		sheet = sheets[0]
	}
	return wb.Read(ctx, sheet, ports.ReadOptions{})
}

// ReadCSV parses a CSV export. The first record is the header row; cells
// are trimmed and blank cells become nil. Ragged rows are allowed.
func ReadCSV(in io.Reader, name string) (*roster.Snapshot, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV file must have a header row")
	}

	snap := &roster.Snapshot{Name: name}
	snap.Headers = make([]string, len(records[0]))
	for i, h := range records[0] {
		snap.Headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	for _, rec := range records[1:] {
		row := make(roster.Row, len(snap.Headers))
		for c, cell := range rec {
			if c >= len(row) {
				break
			}
			if v := strings.TrimSpace(cell); v != "" {
				row[c] = v
			}
		}
		snap.Rows = append(snap.Rows, row)
	}
	return snap, nil
}
