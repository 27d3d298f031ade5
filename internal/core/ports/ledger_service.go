package ports

import (
	"context"

	"github.com/contentforge/studio-api/internal/core/domain"
)

// LedgerService is the single entry point for token accounting. No floor is
// enforced here; quota policy, if any, belongs to callers.
type LedgerService interface {
	// Debit atomically reduces the user's balance by amount (>= 0) and
	// appends a usage record with delta -amount. A zero amount is legal and
	// still produces a record.
	Debit(ctx context.Context, userID, feature string, amount int64) (newBalance int64, err error)
	// Credit atomically increases the user's balance by amount (> 0).
	Credit(ctx context.Context, userID, feature string, amount int64) (newBalance int64, err error)
	// History returns usage records newest first.
	History(ctx context.Context, filter UsageFilter) ([]*domain.UsageRecord, error)
}
