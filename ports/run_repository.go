package ports

import (
	"context"

	"ldaengine/domain/run"
)

// RunRepository persists the run ledger.
type RunRepository interface {
	Create(ctx context.Context, r *run.Run) error
	Update(ctx context.Context, r *run.Run) error
	GetByID(ctx context.Context, id run.ID) (*run.Run, error)
	List(ctx context.Context, limit, offset int) ([]*run.Run, error)
}
