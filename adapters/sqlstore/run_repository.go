package sqlstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"ldaengine/domain/run"
	"ldaengine/internal/errors"
	"ldaengine/ports"
)

// runRow is the stored form of a run. Timestamps are fixed-width RFC 3339 text so the
// schema is the same on both drivers.
type runRow struct {
	ID          string         `db:"id"`
	Kind        string         `db:"kind"`
	Workbook    string         `db:"workbook"`
	Sheet       string         `db:"sheet"`
	Status      string         `db:"status"`
	RowsWritten int            `db:"rows_written"`
	NewRows     int            `db:"new_rows"`
	Error       string         `db:"error"`
	Summary     string         `db:"summary"`
	StartedAt   string         `db:"started_at"`
	FinishedAt  sql.NullString `db:"finished_at"`
}

// timeLayout is fixed width so text order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = `id, kind, workbook, sheet, status, rows_written, new_rows, error, summary, started_at, finished_at`

// runRepository implements ports.RunRepository
type runRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &runRepository{db: db}
}

// Create inserts a new run
func (r *runRepository) Create(ctx context.Context, rn *run.Run) error {
	row := toRow(rn)
	query := r.db.Rebind(`INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		row.ID, row.Kind, row.Workbook, row.Sheet, row.Status, row.RowsWritten, row.NewRows,
		row.Error, row.Summary, row.StartedAt, row.FinishedAt,
	)
	if err != nil {
		return errors.DatabaseError("failed to create run", err)
	}
	return nil
}

// Update stores the mutable fields of a run
func (r *runRepository) Update(ctx context.Context, rn *run.Run) error {
	row := toRow(rn)
	query := r.db.Rebind(`UPDATE runs SET
		status = ?, rows_written = ?, new_rows = ?, error = ?, summary = ?, finished_at = ?
	WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query,
		row.Status, row.RowsWritten, row.NewRows, row.Error, row.Summary, row.FinishedAt, row.ID,
	)
	if err != nil {
		return errors.DatabaseError("failed to update run", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NotFound(fmt.Sprintf("run %s", rn.ID))
	}
	return nil
}

// GetByID retrieves a run by its ID
func (r *runRepository) GetByID(ctx context.Context, id run.ID) (*run.Run, error) {
	var row runRow
	query := r.db.Rebind(`SELECT ` + runColumns + ` FROM runs WHERE id = ?`)
	if err := r.db.GetContext(ctx, &row, query, string(id)); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound(fmt.Sprintf("run %s", id))
		}
		return nil, errors.DatabaseError("failed to get run", err)
	}
	return fromRow(row)
}

// List returns runs newest first with pagination
func (r *runRepository) List(ctx context.Context, limit, offset int) ([]*run.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var rows []runRow
	query := r.db.Rebind(`SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?`)
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, errors.DatabaseError("failed to list runs", err)
	}
	out := make([]*run.Run, 0, len(rows))
	for _, row := range rows {
		rn, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rn)
	}
	return out, nil
}

func toRow(rn *run.Run) runRow {
	row := runRow{
		ID:          string(rn.ID),
		Kind:        string(rn.Kind),
		Workbook:    rn.Workbook,
		Sheet:       rn.Sheet,
		Status:      string(rn.Status),
		RowsWritten: rn.RowsWritten,
		NewRows:     rn.NewRows,
		Error:       rn.Error,
		Summary:     rn.Summary,
		StartedAt:   rn.StartedAt.UTC().Format(timeLayout),
	}
	if rn.FinishedAt != nil {
		row.FinishedAt = sql.NullString{String: rn.FinishedAt.UTC().Format(timeLayout), Valid: true}
	}
	return row
}

func fromRow(row runRow) (*run.Run, error) {
	started, err := time.Parse(time.RFC3339Nano, row.StartedAt)
	if err != nil {
		return nil, errors.DatabaseError("failed to parse started_at", err)
	}
	rn := &run.Run{
		ID:          run.ID(row.ID),
		Kind:        run.Kind(row.Kind),
		Workbook:    row.Workbook,
		Sheet:       row.Sheet,
		Status:      run.Status(row.Status),
		RowsWritten: row.RowsWritten,
		NewRows:     row.NewRows,
		Error:       row.Error,
		Summary:     row.Summary,
		StartedAt:   started,
	}
	if row.FinishedAt.Valid && row.FinishedAt.String != "" {
		finished, err := time.Parse(time.RFC3339Nano, row.FinishedAt.String)
		if err != nil {
			return nil, errors.DatabaseError("failed to parse finished_at", err)
		}
		rn.FinishedAt = &finished
	}
	return rn, nil
}
