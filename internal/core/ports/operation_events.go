package ports

import (
	"context"
	"time"
)

// OperationEvent is emitted after every completed (or failed) provider-backed
// operation, carrying what the audit trail needs.
type OperationEvent struct {
	UserID    string
	Feature   string
	TokenCost int64
	Duration  time.Duration
	Err       string
}

// OperationSink consumes operation events. Events for the same user are
// delivered in order by the dispatcher.
type OperationSink interface {
	Record(ctx context.Context, ev OperationEvent) error
}
