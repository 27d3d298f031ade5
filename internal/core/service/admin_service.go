package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/contentforge/studio-api/internal/core/domain"
	"github.com/contentforge/studio-api/internal/core/ports"
)

const maxListLimit = 100

// AdminService implements account administration: approval, role and expiry
// edits, token grants, and cascading deletion.
type AdminService struct {
	users       ports.UserRepository
	usage       ports.UsageRepository
	artifacts   ports.ArtifactRepository
	transcripts ports.TranscriptRepository
	ledger      ports.LedgerService
	logger      zerolog.Logger
}

func NewAdminService(
	users ports.UserRepository,
	usage ports.UsageRepository,
	artifacts ports.ArtifactRepository,
	transcripts ports.TranscriptRepository,
	ledger ports.LedgerService,
	logger zerolog.Logger,
) *AdminService {
	return &AdminService{
		users:       users,
		usage:       usage,
		artifacts:   artifacts,
		transcripts: transcripts,
		ledger:      ledger,
		logger:      logger,
	}
}

func (s *AdminService) ListUsers(ctx context.Context, filter ports.ListUsersFilter) ([]*domain.User, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 || filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	return s.users.List(ctx, filter)
}

func (s *AdminService) Approve(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Approved {
		return user, nil
	}

	user.Approved = true
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", id).Str("username", user.Username).Msg("user approved")
	return user, nil
}

func (s *AdminService) UpdateUser(ctx context.Context, input ports.UpdateUserInput) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if input.Role != nil {
		if !domain.ValidRole(*input.Role) {
			return nil, fmt.Errorf("invalid role %q", *input.Role)
		}
		user.Role = *input.Role
	}
	if input.ExpiresAt != nil {
		user.ExpiresAt = *input.ExpiresAt
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreditTokens grants tokens through the ledger so the grant shows up in the
// user's usage history like any other balance change.
func (s *AdminService) CreditTokens(ctx context.Context, id string, amount int64) (int64, error) {
	if _, err := s.users.FindByID(ctx, id); err != nil {
		return 0, err
	}
	return s.ledger.Credit(ctx, id, FeatureAdminGrant, amount)
}

// DeleteUser removes the account and everything it owns. Usage records are
// only ever deleted here, as part of the cascade.
func (s *AdminService) DeleteUser(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.usage.DeleteByUser(ctx, id); err != nil {
		return fmt.Errorf("cascade usage records: %w", err)
	}
	if err := s.artifacts.DeleteByUser(ctx, id); err != nil {
		return fmt.Errorf("cascade artifacts: %w", err)
	}
	if err := s.transcripts.DeleteByUser(ctx, id); err != nil {
		return fmt.Errorf("cascade transcripts: %w", err)
	}

	s.logger.Info().Str("user_id", id).Msg("user deleted with cascade")
	return nil
}
