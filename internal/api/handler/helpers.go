package handler

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/contentforge/studio-api/internal/core/domain"
	"github.com/contentforge/studio-api/internal/core/ports"
)

const headerIdempotencyKey = "Idempotency-Key"

// IdempotencyChecker guards debit-bearing requests against replays. A nil
// checker disables the guard (degraded mode without Redis).
type IdempotencyChecker interface {
	Claim(ctx context.Context, userID, key string) (bool, error)
	Release(ctx context.Context, userID, key string) error
}

// AuditSink accepts completed operation events for asynchronous recording.
type AuditSink interface {
	Enqueue(ev ports.OperationEvent)
}

// claimIdempotency claims the request's Idempotency-Key when one is present.
// It returns a release func for the failure path, so a request that never
// reached the debit can be retried with the same key. A checker outage fails
// open: replay protection is lost, operations are not.
func claimIdempotency(c echo.Context, checker IdempotencyChecker, userID string, log zerolog.Logger) (release func(), err error) {
	noop := func() {}
	if checker == nil {
		return noop, nil
	}
	key := c.Request().Header.Get(headerIdempotencyKey)
	if key == "" {
		return noop, nil
	}

	ctx := c.Request().Context()
	ok, err := checker.Claim(ctx, userID, key)
	if err != nil {
		log.Warn().Err(err).Msg("idempotency claim failed, continuing without guard")
		return noop, nil
	}
	if !ok {
		return nil, domain.ErrDuplicateRequest
	}
	return func() {
		if err := checker.Release(ctx, userID, key); err != nil {
			log.Warn().Err(err).Msg("idempotency release failed")
		}
	}, nil
}

// audit enqueues the operation event when a sink is wired.
func audit(sink AuditSink, userID, feature string, cost int64, start time.Time, err error) {
	if sink == nil {
		return
	}
	ev := ports.OperationEvent{
		UserID:    userID,
		Feature:   feature,
		TokenCost: cost,
		Duration:  time.Since(start),
	}
	if err != nil {
		ev.Err = err.Error()
	}
	sink.Enqueue(ev)
}
