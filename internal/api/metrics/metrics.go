// Package metrics defines and registers all custom Prometheus metrics for
// the studio API. It is the single source of truth for metric names, labels,
// and help strings; registration happens at import time via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "studio"

// ── Provider metrics ─────────────────────────────────────────────────────────

// ProviderRequestsTotal counts gateway invocations.
// Labels:
//   - mode: "generate", "stream", "upload", "file_state"
//   - outcome: "ok" or "error"
var ProviderRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_requests_total",
		Help:      "Total number of provider gateway invocations, by mode and outcome.",
	},
	[]string{"mode", "outcome"},
)

// OperationDuration measures a logical operation end-to-end, from request
// validation to ledger debit.
// Label:
//   - feature: the ledger feature tag (e.g. "chat", "infographic")
var OperationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Duration of a logical operation from request to debit.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	},
	[]string{"feature"},
)

// ── Ledger metrics ───────────────────────────────────────────────────────────

// TokensDebitedTotal counts tokens debited from user balances.
// Label:
//   - feature: ledger feature tag
var TokensDebitedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_debited_total",
		Help:      "Total number of tokens debited through the ledger, by feature.",
	},
	[]string{"feature"},
)

// ── Relay metrics ────────────────────────────────────────────────────────────

// ActiveStreams tracks the number of in-flight relay sessions.
var ActiveStreams = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_streams",
		Help:      "Number of relay sessions currently streaming to clients.",
	},
)

// StreamOutcomesTotal counts finished relay sessions.
// Label:
//   - outcome: "ok", "error", "client_gone"
var StreamOutcomesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_outcomes_total",
		Help:      "Total number of finished relay sessions, by outcome.",
	},
	[]string{"outcome"},
)

// ── Audit metrics ────────────────────────────────────────────────────────────

// OperationsTotal counts completed operations as seen by the audit sink.
// Labels:
//   - feature: ledger feature tag
//   - outcome: "ok" or "error"
var OperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Total number of completed operations, by feature and outcome.",
	},
	[]string{"feature", "outcome"},
)
