package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/contentforge/studio-api/internal/api/metrics"
	"github.com/contentforge/studio-api/internal/core/ports"
)

// AuditRecorder is the operation-event sink behind the dispatcher. It turns
// completed operations into metrics and a structured audit line.
type AuditRecorder struct {
	logger zerolog.Logger
}

func NewAuditRecorder(logger zerolog.Logger) *AuditRecorder {
	return &AuditRecorder{logger: logger}
}

func (a *AuditRecorder) Record(_ context.Context, ev ports.OperationEvent) error {
	outcome := "ok"
	if ev.Err != "" {
		outcome = "error"
	}

	metrics.OperationsTotal.WithLabelValues(ev.Feature, outcome).Inc()
	metrics.OperationDuration.WithLabelValues(ev.Feature).Observe(ev.Duration.Seconds())

	entry := a.logger.Info()
	if ev.Err != "" {
		entry = a.logger.Warn().Str("error", ev.Err)
	}
	entry.
		Str("user_id", ev.UserID).
		Str("feature", ev.Feature).
		Int64("token_cost", ev.TokenCost).
		Dur("duration", ev.Duration).
		Msg("operation recorded")
	return nil
}
