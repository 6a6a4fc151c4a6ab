package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records ledger recompute activity and consistency failures.
type LedgerMetrics struct {
	recomputeDuration   *prometheus.HistogramVec
	invariantViolations *prometheus.CounterVec
	auditEntries        *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	recomputeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_recompute_duration_seconds",
		Help:    "Duration of allocated-quantity recomputes in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	invariantViolations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_invariant_violations",
		Help: "Times the stored allocated quantity disagreed with the reservation sum.",
	}, []string{"item"})
	auditEntries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_audit_entries",
		Help: "Audit rows appended per change type.",
	}, []string{"change_type"})
	reg.MustRegister(recomputeDuration, invariantViolations, auditEntries)
	return &LedgerMetrics{
		recomputeDuration:   recomputeDuration,
		invariantViolations: invariantViolations,
		auditEntries:        auditEntries,
	}
}

// ObserveRecompute records the duration of one ledger recompute.
func (l *LedgerMetrics) ObserveRecompute(operation string, duration time.Duration) {
	if l == nil || l.recomputeDuration == nil {
		return
	}
	l.recomputeDuration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncInvariantViolation counts a detected ledger inconsistency for an item.
func (l *LedgerMetrics) IncInvariantViolation(item string) {
	if l == nil || l.invariantViolations == nil {
		return
	}
	l.invariantViolations.WithLabelValues(normalizeLabel(item)).Inc()
}

// IncAuditEntry counts an appended audit row.
func (l *LedgerMetrics) IncAuditEntry(changeType string) {
	if l == nil || l.auditEntries == nil {
		return
	}
	l.auditEntries.WithLabelValues(normalizeLabel(changeType)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
