package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngineMetrics exposes the engine's own operational counters on /metrics.
type EngineMetrics struct {
	CollectionsTotal  prometheus.Counter
	EvaluationsTotal  prometheus.Counter
	AlertsFiredTotal  *prometheus.CounterVec
	ActiveAlerts      prometheus.Gauge
	DeliveriesTotal   *prometheus.CounterVec
	EscalationsTotal  prometheus.Counter
	SnapshotField     *prometheus.GaugeVec
	HealthStatus      *prometheus.GaugeVec
	DispatchDurations prometheus.Histogram
}

// NewEngineMetrics registers the engine metric set under the given prefix.
func NewEngineMetrics(prefix string) *EngineMetrics {
	if prefix == "" {
		prefix = "sentinel"
	}

	return &EngineMetrics{
		CollectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_collections_total",
			Help: "Total number of metric collection cycles",
		}),
		EvaluationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_evaluations_total",
			Help: "Total number of rule evaluation cycles",
		}),
		AlertsFiredTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_alerts_fired_total",
			Help: "Total number of alerts fired, by severity",
		}, []string{"severity"}),
		ActiveAlerts: promauto.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_active_alerts",
			Help: "Current number of unresolved alerts",
		}),
		DeliveriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_deliveries_total",
			Help: "Total notification delivery attempts, by channel type and status",
		}, []string{"channel_type", "status"}),
		EscalationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_escalations_total",
			Help: "Total number of escalation events",
		}),
		SnapshotField: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: prefix + "_snapshot_value",
			Help: "Latest collected value per snapshot field",
		}, []string{"field"}),
		HealthStatus: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: prefix + "_service_health",
			Help: "Dependent service health (1 healthy, 0.5 degraded, 0 unhealthy)",
		}, []string{"service"}),
		DispatchDurations: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "_dispatch_duration_seconds",
			Help:    "Time spent fanning out one alert to its channels",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveSnapshot mirrors a snapshot's fields into the prometheus gauges.
// Degraded sentinel values are skipped so dashboards do not graph -1.
func (m *EngineMetrics) ObserveSnapshot(snap Snapshot) {
	m.CollectionsTotal.Inc()
	for field, value := range snap.Fields {
		if value == SentinelDegraded {
			continue
		}
		m.SnapshotField.WithLabelValues(field).Set(value)
	}
}
