package tenancy

import (
	"time"

	"github.com/dalemusser/tenanthub/internal/domain/apperr"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tenanthub"

// Metrics holds the Prometheus collectors for lifecycle operations.
// A nil *Metrics records nothing.
type Metrics struct {
	ops              *prometheus.CounterVec
	opDuration       *prometheus.HistogramVec
	migratedDocs     prometheus.Counter
	reconcileActions *prometheus.CounterVec
	orphans          prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_ops_total",
			Help:      "Lifecycle operations by kind and outcome.",
		}, []string{"op", "outcome"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lifecycle_op_duration_seconds",
			Help:      "Duration of lifecycle operations.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 30, 120, 600},
		}, []string{"op"}),
		migratedDocs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migrated_documents_total",
			Help:      "Documents copied by successful collection migrations.",
		}),
		reconcileActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_actions_total",
			Help:      "Repairs applied by the reconciliation pass.",
		}, []string{"kind", "action"}),
		orphans: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "orphan_collections",
			Help:      "Tenant collections no organization references, as of the last sweep.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ops, m.opDuration, m.migratedDocs, m.reconcileActions, m.orphans)
	}
	return m
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.Code(err)
}

func (m *Metrics) observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(op, outcome(err)).Inc()
	m.opDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) migrated(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.migratedDocs.Add(float64(n))
}

func (m *Metrics) reconciled(kind, action string) {
	if m == nil {
		return
	}
	m.reconcileActions.WithLabelValues(kind, action).Inc()
}

func (m *Metrics) setOrphans(n int) {
	if m == nil {
		return
	}
	m.orphans.Set(float64(n))
}
