package inbox

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Append(ctx context.Context, e *Entry) error
	// List returns the owner's entries in insertion order.
	List(ctx context.Context, owner Owner) ([]*Entry, error)
	MarkRead(ctx context.Context, owner Owner, id uuid.UUID) error
	PurgeRead(ctx context.Context, owner Owner) (int64, error)
}
