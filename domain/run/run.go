package run

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ID identifies one report or merge run.
type ID string

// NewID returns a time-ordered identifier (UUID v7, v4 fallback).
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

func (id ID) String() string { return string(id) }

// Kind of work a run performed.
type Kind string

const (
	KindLDAReport Kind = "lda_report"
	KindMerge     Kind = "master_merge"
)

// Status of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is one ledger entry.
type Run struct {
	ID          ID         `json:"id" db:"id"`
	Kind        Kind       `json:"kind" db:"kind"`
	Workbook    string     `json:"workbook" db:"workbook"`
	Sheet       string     `json:"sheet" db:"sheet"`
	Status      Status     `json:"status" db:"status"`
	RowsWritten int        `json:"rows_written" db:"rows_written"`
	NewRows     int        `json:"new_rows" db:"new_rows"`
	Error       string     `json:"error,omitempty" db:"error"`
	Summary     string     `json:"summary,omitempty" db:"summary"`
	StartedAt   time.Time  `json:"started_at" db:"-"`
	FinishedAt  *time.Time `json:"finished_at,omitempty" db:"-"`
}

// New starts a run record.
func New(kind Kind, workbook, sheet string, now time.Time) *Run {
	return &Run{
		ID:        NewID(),
		Kind:      kind,
		Workbook:  workbook,
		Sheet:     sheet,
		Status:    StatusRunning,
		StartedAt: now.UTC(),
	}
}

// Complete marks the run finished successfully.
func (r *Run) Complete(now time.Time) {
	t := now.UTC()
	r.Status = StatusCompleted
	r.FinishedAt = &t
}

// Fail marks the run failed with err's message.
func (r *Run) Fail(err error, now time.Time) {
	t := now.UTC()
	r.Status = StatusFailed
	r.FinishedAt = &t
	if err != nil {
		r.Error = strings.TrimSpace(err.Error())
	}
}

// Duration is zero while the run is in flight.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
