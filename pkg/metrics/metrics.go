// Package metrics exposes Prometheus instrumentation for statement
// processing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the reconciliation counters.
type Metrics struct {
	registry *prometheus.Registry

	StatementsProcessed *prometheus.CounterVec
	TransactionsTotal   *prometheus.CounterVec
	BatchDuration       prometheus.Histogram
}

// New creates a metrics set on its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		StatementsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolpay_statements_processed_total",
			Help: "Statements processed, by file kind.",
		}, []string{"kind"}),
		TransactionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolpay_transactions_total",
			Help: "Reconciled transactions, by result bucket.",
		}, []string{"category"}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "schoolpay_batch_duration_seconds",
			Help:    "Wall time spent processing one statement batch.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
