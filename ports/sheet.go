package ports

import (
	"context"

	"ldaengine/domain/roster"
)

// ReadOptions tunes a sheet read.
type ReadOptions struct {
	// FillRows bounds how many data rows have their fill colors read.
	// Zero reads none, a negative value reads every row.
	FillRows int
	// ConditionalFormats requests the sheet's conditional format rules.
	ConditionalFormats bool
}

// SheetPort is the only way the core touches a spreadsheet host. Every
// write call is one flush: it returns after the host acknowledged it.
type SheetPort interface {
	ListSheets(ctx context.Context) ([]string, error)
	Read(ctx context.Context, sheet string, opts ReadOptions) (*roster.Snapshot, error)
	CreateSheet(ctx context.Context, sheet string) error
	WriteValues(ctx context.Context, sheet string, batch roster.ValueBatch) error
	WriteFormats(ctx context.Context, sheet string, batch roster.FormatBatch) error
	ClearRange(ctx context.Context, sheet string, rng roster.Range) error
	AddTable(ctx context.Context, sheet string, table roster.TableSpec) error
	ApplyCosmetics(ctx context.Context, sheet string, c roster.Cosmetics) error
}

// Workbook is an opened spreadsheet document.
type Workbook interface {
	SheetPort
	Save(ctx context.Context) error
	Close() error
}

// WorkbookOpener opens a workbook by path.
type WorkbookOpener interface {
	Open(ctx context.Context, path string) (Workbook, error)
}

// Step statuses for coarse progress.
const (
	StepActive    = "active"
	StepCompleted = "completed"
)

// Batch phases for fine progress.
const (
	PhaseReading    = "reading"
	PhaseWriting    = "writing"
	PhaseFormatting = "formatting"
)

// ProgressSink receives fire-and-forget progress notifications.
type ProgressSink interface {
	Step(stepID, status string)
	Batch(current, total int, phase, tableLabel string)
}

// NopProgress discards progress.
type NopProgress struct{}

func (NopProgress) Step(string, string)            {}
func (NopProgress) Batch(int, int, string, string) {}

// ProgressFuncs adapts two callbacks to ProgressSink. Nil funcs are skipped.
type ProgressFuncs struct {
	OnStep  func(stepID, status string)
	OnBatch func(current, total int, phase, tableLabel string)
}

func (p ProgressFuncs) Step(stepID, status string) {
	if p.OnStep != nil {
		p.OnStep(stepID, status)
	}
}

func (p ProgressFuncs) Batch(current, total int, phase, tableLabel string) {
	if p.OnBatch != nil {
		p.OnBatch(current, total, phase, tableLabel)
	}
}
