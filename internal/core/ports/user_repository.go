package ports

import (
	"context"
	"time"

	"github.com/contentforge/studio-api/internal/core/domain"
)

// ListUsersFilter carries query parameters for the admin user listing.
type ListUsersFilter struct {
	Role     string // optional: filter by role
	Approved *bool  // optional: filter by approval flag
	Search   string // optional: partial match on username or email
	Page     int    // 1-based
	Limit    int    // capped at 100 by the service
}

// UserRepository defines persistence operations for user accounts.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context, filter ListUsersFilter) ([]*domain.User, int64, error)
	// Update overwrites the mutable fields of an existing user.
	Update(ctx context.Context, u *domain.User) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	// Delete removes the user; usage records and artifacts cascade.
	Delete(ctx context.Context, id string) error
}
