package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// FileSequence is the counter namespace backing file unique ids.
const FileSequence = "file_unique_id"

// SequenceRepository hands out monotonically increasing numbers per namespace.
type SequenceRepository struct {
	db *sqlx.DB
}

// NewSequenceRepository constructs the repository.
func NewSequenceRepository(db *sqlx.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

func (r *SequenceRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Next increments the named counter and returns the new value. The first
// call for a namespace returns 1.
func (r *SequenceRepository) Next(ctx context.Context, exec sqlx.ExtContext, name string) (int64, error) {
	const query = `INSERT INTO counters (name, seq) VALUES ($1, 1)
ON CONFLICT (name) DO UPDATE SET seq = counters.seq + 1
RETURNING seq`
	var seq int64
	if err := sqlx.GetContext(ctx, r.exec(exec), &seq, query, name); err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", name, err)
	}
	return seq, nil
}
