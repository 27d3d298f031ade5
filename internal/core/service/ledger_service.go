package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/contentforge/studio-api/internal/api/metrics"
	"github.com/contentforge/studio-api/internal/core/domain"
	"github.com/contentforge/studio-api/internal/core/ports"
)

const maxHistoryLimit = 100

// LedgerService fronts the usage repository. All balance mutations go
// through here; callers never read-modify-write a balance themselves.
type LedgerService struct {
	usage  ports.UsageRepository
	logger zerolog.Logger
}

func NewLedgerService(usage ports.UsageRepository, logger zerolog.Logger) *LedgerService {
	return &LedgerService{usage: usage, logger: logger}
}

// Debit reduces the balance by amount and appends the record atomically.
// amount zero is legal: it logs access without cost. No floor is applied,
// so balances may go negative.
func (s *LedgerService) Debit(ctx context.Context, userID, feature string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("ledger: debit amount must be >= 0, got %d", amount)
	}

	balance, rec, err := s.usage.ApplyDelta(ctx, userID, feature, -amount)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("feature", feature).Msg("ledger debit failed")
		return 0, fmt.Errorf("ledger debit: %w", err)
	}

	metrics.TokensDebitedTotal.WithLabelValues(feature).Add(float64(amount))
	s.logger.Info().
		Str("user_id", userID).
		Str("feature", feature).
		Int64("delta", rec.TokenDelta).
		Int64("balance", balance).
		Msg("ledger debit")
	return balance, nil
}

// Credit increases the balance by amount and appends the record atomically.
func (s *LedgerService) Credit(ctx context.Context, userID, feature string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("ledger: credit amount must be > 0, got %d", amount)
	}

	balance, _, err := s.usage.ApplyDelta(ctx, userID, feature, amount)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("feature", feature).Msg("ledger credit failed")
		return 0, fmt.Errorf("ledger credit: %w", err)
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("feature", feature).
		Int64("delta", amount).
		Int64("balance", balance).
		Msg("ledger credit")
	return balance, nil
}

// History returns the user's usage records newest first.
func (s *LedgerService) History(ctx context.Context, filter ports.UsageFilter) ([]*domain.UsageRecord, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 || filter.Limit > maxHistoryLimit {
		filter.Limit = maxHistoryLimit
	}
	return s.usage.List(ctx, filter)
}
