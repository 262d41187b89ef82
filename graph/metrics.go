package graph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics provides Prometheus metrics for graph execution.
//
// Metrics exposed (all namespaced with "shopagent_"):
//
// 1. step_latency_ms (histogram): node execution duration in milliseconds.
// Labels: node_id, status (success/error/timeout).
//
// 2. steps_total (counter): completed super-steps.
// Labels: node_id, status.
//
// 3. runs_total (counter): finished runs.
// Labels: outcome (completed/failed/stopped).
//
// 4. active_runs (gauge): runs currently executing.
//
// 5. checkpoint_failures_total (counter): failed checkpoint operations.
// Labels: op (load/save).
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := graph.NewPrometheusMetrics(registry)
//	engine, _ := graph.New(compiled, reducer, st, emitter, graph.WithMetrics(metrics))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// A nil *PrometheusMetrics is valid and records nothing.
type PrometheusMetrics struct {
	stepLatency        *prometheus.HistogramVec
	steps              *prometheus.CounterVec
	runs               *prometheus.CounterVec
	activeRuns         prometheus.Gauge
	checkpointFailures *prometheus.CounterVec
}

// NewPrometheusMetrics creates and registers all graph execution metrics
// with the provided registry (prometheus.DefaultRegisterer when nil).
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusMetrics{
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shopagent",
			Name:      "step_latency_ms",
			Help:      "Node execution duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000},
		}, []string{"node_id", "status"}),
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopagent",
			Name:      "steps_total",
			Help:      "Super-steps executed, by node and outcome",
		}, []string{"node_id", "status"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopagent",
			Name:      "runs_total",
			Help:      "Finished runs by outcome",
		}, []string{"outcome"}),
		activeRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "shopagent",
			Name:      "active_runs",
			Help:      "Runs currently executing",
		}),
		checkpointFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopagent",
			Name:      "checkpoint_failures_total",
			Help:      "Failed checkpoint store operations",
		}, []string{"op"}),
	}
}

// RecordStep records one node execution.
func (pm *PrometheusMetrics) RecordStep(nodeID string, latency time.Duration, status string) {
	if pm == nil {
		return
	}
	pm.stepLatency.WithLabelValues(nodeID, status).Observe(float64(latency.Milliseconds()))
	pm.steps.WithLabelValues(nodeID, status).Inc()
}

// RunStarted increments the active run gauge.
func (pm *PrometheusMetrics) RunStarted() {
	if pm == nil {
		return
	}
	pm.activeRuns.Inc()
}

// RunFinished decrements the active run gauge and counts the outcome.
func (pm *PrometheusMetrics) RunFinished(outcome string) {
	if pm == nil {
		return
	}
	pm.activeRuns.Dec()
	pm.runs.WithLabelValues(outcome).Inc()
}

// CheckpointFailed counts a failed checkpoint operation.
func (pm *PrometheusMetrics) CheckpointFailed(op string) {
	if pm == nil {
		return
	}
	pm.checkpointFailures.WithLabelValues(op).Inc()
}
