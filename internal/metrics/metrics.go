// Package metrics exposes Prometheus metrics for tavola statements.
package metrics

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/coregx/tavola/internal/core"
)

// DefaultNamespace prefixes every metric unless another one is given.
const DefaultNamespace = "tavola"

// QueryMetrics collects statement counts, durations and row counts.
// Install Hook with core.WithQueryHook.
type QueryMetrics struct {
	// QueriesTotal counts statements by entity, operation and status
	QueriesTotal *prometheus.CounterVec

	// QueryDuration tracks statement duration in seconds
	QueryDuration *prometheus.HistogramVec

	// RowsTotal counts rows returned or affected
	RowsTotal *prometheus.CounterVec

	// DatabaseUp is 1 when the last health probe succeeded
	DatabaseUp prometheus.Gauge
}

// NewQueryMetrics registers the collectors on reg. A nil reg uses the
// default registerer.
func NewQueryMetrics(reg prometheus.Registerer, namespace string) *QueryMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &QueryMetrics{
		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "queries_total",
				Help:      "Total number of statements by entity, operation and status",
			},
			[]string{"entity", "operation", "status"},
		),
		QueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "query_duration_seconds",
				Help:      "Duration of statements in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"entity", "operation"},
		),
		RowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "rows_total",
				Help:      "Total number of rows returned or affected",
			},
			[]string{"entity", "operation"},
		),
		DatabaseUp: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "up",
				Help:      "Whether the last database health probe succeeded",
			},
		),
	}
}

// Hook records one statement. Raw queries are labelled with entity "raw".
func (m *QueryMetrics) Hook(_ context.Context, e core.QueryEvent) {
	entity := e.Entity
	if entity == "" {
		entity = "raw"
	}
	op := strings.ToLower(e.Operation)
	status := "ok"
	if e.Error != nil {
		status = "error"
	}

	m.QueriesTotal.WithLabelValues(entity, op, status).Inc()
	m.QueryDuration.WithLabelValues(entity, op).Observe(e.Duration.Seconds())
	if e.Rows > 0 {
		m.RowsTotal.WithLabelValues(entity, op).Add(float64(e.Rows))
	}
}

// ObserveHealth sets DatabaseUp from a probe result.
func (m *QueryMetrics) ObserveHealth(h core.Health) {
	if h.Healthy {
		m.DatabaseUp.Set(1)
		return
	}
	m.DatabaseUp.Set(0)
}
