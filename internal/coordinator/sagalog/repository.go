package sagalog

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("sagalog: saga not found")

// Repository persists journal entries. The table is append-only: Save
// never updates an earlier row.
type Repository interface {
	Save(ctx context.Context, entry *Entry) error
	// History returns every entry of a saga in the order it was written.
	History(ctx context.Context, sagaID string) ([]Entry, error)
	// Latest returns ErrNotFound for an unknown saga.
	Latest(ctx context.Context, sagaID string) (*Entry, error)
}
