package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Evaluations counts trend-engine verdicts by timeframe and resulting state.
var Evaluations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "lotus",
		Subsystem: "engine",
		Name:      "evaluations_total",
		Help:      "Total number of position evaluations",
	},
	[]string{"timeframe", "state"},
)

// Decisions counts derived decisions by type before execution.
var Decisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "lotus",
		Subsystem: "engine",
		Name:      "decisions_total",
		Help:      "Total number of derived decisions",
	},
	[]string{"timeframe", "type"},
)

// ExecutionOutcomes counts audit outcomes (executed, dry_run, failed,
// skipped_duplicate).
var ExecutionOutcomes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "lotus",
		Subsystem: "engine",
		Name:      "execution_outcomes_total",
		Help:      "Execution outcomes by type",
	},
	[]string{"timeframe", "outcome"},
)

// TickDuration observes full per-timeframe tick latency.
var TickDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "lotus",
		Subsystem: "engine",
		Name:      "tick_duration_seconds",
		Help:      "Duration of one decision tick",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	},
	[]string{"timeframe"},
)

// AuditQueueDepth is the current depth of the async audit buffer.
var AuditQueueDepth = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "lotus",
		Subsystem: "audit",
		Name:      "queue_depth",
		Help:      "Buffered audit records awaiting insert",
	},
)

// AuditSpills counts enqueues that bypassed the full buffer.
var AuditSpills = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "lotus",
		Subsystem: "audit",
		Name:      "spills_total",
		Help:      "Audit enqueues that spilled past a full buffer",
	},
)

// InvariantViolations counts status/holdings invariant breaks caught before
// execution.
var InvariantViolations = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "lotus",
		Subsystem: "engine",
		Name:      "invariant_violations_total",
		Help:      "Position invariant violations detected",
	},
)

// Promotions counts dormant positions promoted to watchlist.
var Promotions = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "lotus",
		Subsystem: "lifecycle",
		Name:      "promotions_total",
		Help:      "Dormant positions promoted to watchlist",
	},
)
