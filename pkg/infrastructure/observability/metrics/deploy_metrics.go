// Package metrics provides Prometheus metrics for deploy and validate requests
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/forcekit/deploy-assist/pkg/domain/analysis"
)

const namespace = "deploy_assist"

// DeployMetrics records request outcomes and the categories of analyzed failures. It owns a
// private registry so several instances can coexist in one process.
type DeployMetrics struct {
	registry *prometheus.Registry

	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	failuresTotal     *prometheus.CounterVec
	failuresPerReport prometheus.Histogram
}

// NewDeployMetrics creates the collector and registers the Go and process collectors next to it.
func NewDeployMetrics() *DeployMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(registry)

	return &DeployMetrics{
		registry: registry,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of deploy_metadata requests by mode and outcome",
		}, []string{"mode", "outcome"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of deploy_metadata requests in seconds",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"mode", "outcome"}),
		failuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyzed_failures_total",
			Help:      "Total number of analyzed deployment failures by category",
		}, []string{"category"}),
		failuresPerReport: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "failures_per_report",
			Help:      "Number of failures in each error report",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		}),
	}
}

// RecordRequest records one finished request.
func (m *DeployMetrics) RecordRequest(mode, outcome string, duration time.Duration) {
	labels := prometheus.Labels{"mode": mode, "outcome": outcome}
	m.requestsTotal.With(labels).Inc()
	m.requestDuration.With(labels).Observe(duration.Seconds())
}

// RecordAnalysis records the categories of an error report.
func (m *DeployMetrics) RecordAnalysis(a *analysis.Analysis) {
	if a == nil {
		return
	}
	for _, g := range a.ByCategory {
		m.failuresTotal.WithLabelValues(string(g.Category)).Add(float64(len(g.Records)))
	}
	m.failuresPerReport.Observe(float64(a.TotalCount))
}

// Registry returns the registry the metrics are registered with.
func (m *DeployMetrics) Registry() *prometheus.Registry {
	return m.registry
}
