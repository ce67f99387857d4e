// Package metrics exposes engine counters on a private Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the engine updates. A nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	usageEvents       *prometheus.CounterVec
	insufficientStock prometheus.Counter
	wasteEvents       *prometheus.CounterVec
	sweepItems        *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	deduplicated      *prometheus.CounterVec
	batchDuration     *prometheus.HistogramVec
	procurement       *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		usageEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_usage_events_total",
			Help: "Usage events recorded, by reason",
		}, []string{"reason"}),
		insufficientStock: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inventory_insufficient_stock_total",
			Help: "Usages rejected for insufficient stock",
		}),
		wasteEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_waste_events_total",
			Help: "Waste events recorded, by reason",
		}, []string{"reason"}),
		sweepItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_sweep_items_total",
			Help: "Items processed by sweeps, by sweep and result",
		}, []string{"sweep", "result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_notifications_created_total",
			Help: "Notifications persisted, by type",
		}, []string{"type"}),
		deduplicated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_notifications_deduplicated_total",
			Help: "Notification candidates dropped as duplicates, by type",
		}, []string{"type"}),
		batchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inventory_batch_duration_seconds",
			Help:    "Duration of scheduled batches",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"batch"}),
		procurement: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_procurement_events_total",
			Help: "Procurement events consumed, by result",
		}, []string{"result"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.usageEvents, m.insufficientStock, m.wasteEvents, m.sweepItems,
		m.notifications, m.deduplicated, m.batchDuration, m.procurement,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) UsageRecorded(reason string) {
	if m != nil {
		m.usageEvents.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) InsufficientStock() {
	if m != nil {
		m.insufficientStock.Inc()
	}
}

func (m *Metrics) WasteRecorded(reason string) {
	if m != nil {
		m.wasteEvents.WithLabelValues(reason).Inc()
	}
}

// SweepItem counts one processed item; result is "ok", "failed" or "skipped".
func (m *Metrics) SweepItem(sweep, result string) {
	if m != nil {
		m.sweepItems.WithLabelValues(sweep, result).Inc()
	}
}

func (m *Metrics) NotificationCreated(ntype string) {
	if m != nil {
		m.notifications.WithLabelValues(ntype).Inc()
	}
}

func (m *Metrics) NotificationDeduplicated(ntype string) {
	if m != nil {
		m.deduplicated.WithLabelValues(ntype).Inc()
	}
}

// ObserveBatch records how long a named batch ran since start.
func (m *Metrics) ObserveBatch(batch string, start time.Time) {
	if m != nil {
		m.batchDuration.WithLabelValues(batch).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) ProcurementEvent(result string) {
	if m != nil {
		m.procurement.WithLabelValues(result).Inc()
	}
}
