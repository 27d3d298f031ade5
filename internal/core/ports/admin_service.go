package ports

import (
	"context"
	"time"

	"github.com/contentforge/studio-api/internal/core/domain"
)

// UpdateUserInput carries the admin-editable fields; nil pointers leave the
// field unchanged.
type UpdateUserInput struct {
	ID        string
	Role      *string
	ExpiresAt *time.Time
}

type AdminService interface {
	ListUsers(ctx context.Context, filter ListUsersFilter) ([]*domain.User, int64, error)
	Approve(ctx context.Context, id string) (*domain.User, error)
	UpdateUser(ctx context.Context, input UpdateUserInput) (*domain.User, error)
	// CreditTokens grants tokens through the ledger (feature tag
	// "admin-grant"), never by touching the balance directly.
	CreditTokens(ctx context.Context, id string, amount int64) (newBalance int64, err error)
	// DeleteUser removes the account and cascades its usage records,
	// artifacts, and transcripts.
	DeleteUser(ctx context.Context, id string) error
}
