package ports

import (
	"context"
	"time"

	"github.com/contentforge/studio-api/internal/core/domain"
)

// UsageFilter carries query parameters for ledger history.
type UsageFilter struct {
	UserID   string
	Feature  string    // optional: filter by feature tag
	DateFrom time.Time // optional: created_at >= DateFrom
	DateTo   time.Time // optional: created_at <= DateTo
	Page     int       // 1-based
	Limit    int       // capped at 100 by the service
}

// UsageRepository is the ledger's backing store. ApplyDelta is the only way
// any component mutates a balance; it must adjust the balance and append the
// usage record atomically, serializing concurrent deltas for the same user
// so no update is ever lost.
type UsageRepository interface {
	ApplyDelta(ctx context.Context, userID, feature string, delta int64) (newBalance int64, rec *domain.UsageRecord, err error)
	// List returns usage records newest first.
	List(ctx context.Context, filter UsageFilter) ([]*domain.UsageRecord, error)
	DeleteByUser(ctx context.Context, userID string) error
}
