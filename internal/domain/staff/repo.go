package staff

import (
	"context"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/auth"
)

type Repository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	// ListPending returns unapproved accounts of approval-gated roles.
	ListPending(ctx context.Context) ([]*Account, error)
	ListNonAdmin(ctx context.Context) ([]*Account, error)
	ListByRole(ctx context.Context, role auth.Role) ([]*Account, error)
	SetApproval(ctx context.Context, id uuid.UUID, approved bool, status Status) error
	// DeletePending removes an unapproved account and its inbox entries.
	// ErrNotFound when no unapproved account has the id.
	DeletePending(ctx context.Context, id uuid.UUID) error
}
