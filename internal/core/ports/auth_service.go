package ports

import (
	"context"

	"github.com/contentforge/studio-api/internal/core/domain"
)

type AuthService interface {
	// Register creates an unapproved standard account with the configured
	// initial token grant.
	Register(ctx context.Context, username, password, email string) (*domain.User, error)
	// Login verifies credentials and returns a signed bearer token.
	Login(ctx context.Context, username, password string) (string, *domain.User, error)
}
