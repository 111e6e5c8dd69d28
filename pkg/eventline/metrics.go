package eventline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/watch"
)

// ReconcileOutcome labels the result of a single reconciliation.
type ReconcileOutcome string

const (
	// OutcomeSuccess indicates the reconciliation completed successfully.
	OutcomeSuccess ReconcileOutcome = "success"

	// OutcomeConflict indicates an optimistic-lock conflict during
	// persistence. Tracked separately because generation-aware retry
	// refresh is the designed remedy.
	OutcomeConflict ReconcileOutcome = "conflict"

	// OutcomeError indicates any other reconciliation failure.
	OutcomeError ReconcileOutcome = "error"
)

// outcomeFor classifies a dispatch error for metrics and logging.
func outcomeFor(err error) ReconcileOutcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case apierrors.IsConflict(err):
		return OutcomeConflict
	default:
		return OutcomeError
	}
}

// Skip reasons for the events_skipped_total counter.
const (
	skipReasonMalformed        = "malformed"
	skipReasonErrorAction      = "error_action"
	skipReasonGenerationFilter = "generation_filter"
	skipReasonRetryExhausted   = "retry_exhausted"
	skipReasonFinalizerHonored = "finalizer_honored_delete"
)

// Metrics is the engine's Prometheus instrumentation bundle. All record
// methods are safe on a nil receiver, so an unmetered engine simply passes
// nil around.
type Metrics struct {
	eventsReceived    *prometheus.CounterVec
	eventsCoalesced   prometheus.Counter
	eventsSkipped     *prometheus.CounterVec
	retriesScheduled  prometheus.Counter
	reconciles        *prometheus.CounterVec
	reconcileDuration *prometheus.HistogramVec
}

// NewMetrics creates the metrics bundle and registers every collector on
// reg. Registering twice on the same registry panics, as usual with
// Prometheus collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventline",
			Subsystem: "scheduler",
			Name:      "events_received_total",
			Help:      "Watch events received, by action.",
		}, []string{"action"}),
		eventsCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventline",
			Subsystem: "scheduler",
			Name:      "events_coalesced_total",
			Help:      "Events that replaced an older pending event for the same resource.",
		}),
		eventsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventline",
			Subsystem: "scheduler",
			Name:      "events_skipped_total",
			Help:      "Events dropped without dispatch, by reason.",
		}, []string{"reason"}),
		retriesScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventline",
			Subsystem: "scheduler",
			Name:      "retries_scheduled_total",
			Help:      "Failed dispatches rescheduled with backoff.",
		}),
		reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventline",
			Subsystem: "dispatcher",
			Name:      "reconciliations_total",
			Help:      "Completed reconciliations, by outcome.",
		}, []string{"outcome"}),
		reconcileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "eventline",
			Subsystem: "dispatcher",
			Name:      "reconcile_duration_seconds",
			Help:      "Reconciliation duration, by outcome.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.eventsReceived,
		m.eventsCoalesced,
		m.eventsSkipped,
		m.retriesScheduled,
		m.reconciles,
		m.reconcileDuration,
	)
	return m
}

func (m *Metrics) recordEventReceived(action watch.EventType) {
	if m == nil {
		return
	}
	m.eventsReceived.WithLabelValues(string(action)).Inc()
}

func (m *Metrics) recordEventCoalesced() {
	if m == nil {
		return
	}
	m.eventsCoalesced.Inc()
}

func (m *Metrics) recordEventSkipped(reason string) {
	if m == nil {
		return
	}
	m.eventsSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) recordRetryScheduled() {
	if m == nil {
		return
	}
	m.retriesScheduled.Inc()
}

func (m *Metrics) recordReconcile(duration time.Duration, outcome ReconcileOutcome) {
	if m == nil {
		return
	}
	m.reconciles.WithLabelValues(string(outcome)).Inc()
	m.reconcileDuration.WithLabelValues(string(outcome)).Observe(duration.Seconds())
}
