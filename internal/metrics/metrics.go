// Package metrics exposes the engine's Prometheus instrumentation:
// workflow-run and node-run counters/histograms, the HttpRequest node's
// outbound call metrics, and the formula evaluator's compile-cache hit
// rate. Scope is deliberately narrow — no queue depth, worker pool, or
// database pool gauges, since none of those exist in this engine; a
// surrounding service that adds its own job queue or storage layer
// registers its own collectors alongside this one.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector the engine records to.
type Metrics struct {
	// Workflow run metrics
	WorkflowExecutionsTotal   *prometheus.CounterVec
	WorkflowExecutionDuration *prometheus.HistogramVec
	WorkflowExecutionsActive  *prometheus.GaugeVec

	// Node run metrics
	NodeExecutionsTotal   *prometheus.CounterVec
	NodeExecutionDuration *prometheus.HistogramVec

	// HTTP metrics, recorded by the HttpRequest node
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Formula evaluation metrics
	FormulaEvaluationsTotal   *prometheus.CounterVec
	FormulaEvaluationDuration *prometheus.HistogramVec
	FormulaCacheHitsTotal     prometheus.Counter
	FormulaCacheMissesTotal   prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all collectors initialized.
func NewMetrics() *Metrics {
	return &Metrics{
		WorkflowExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowgraph_workflow_executions_total",
				Help: "Total number of workflow executions by trigger type and status",
			},
			[]string{"workflow_id", "trigger_type", "status"},
		),
		WorkflowExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowgraph_workflow_execution_duration_seconds",
				Help:    "Workflow execution duration in seconds by trigger type",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"workflow_id", "trigger_type"},
		),
		WorkflowExecutionsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flowgraph_workflow_executions_active",
				Help: "Number of currently active workflow executions",
			},
			[]string{"workflow_id", "trigger_type"},
		),
		NodeExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowgraph_node_executions_total",
				Help: "Total number of node executions by node type and status",
			},
			[]string{"workflow_id", "node_type", "status"},
		),
		NodeExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowgraph_node_execution_duration_seconds",
				Help:    "Node execution duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"workflow_id", "node_type"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowgraph_http_requests_total",
				Help: "Total number of outbound HTTP requests issued by HttpRequest nodes",
			},
			[]string{"method", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowgraph_http_request_duration_seconds",
				Help:    "Outbound HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		FormulaEvaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowgraph_formula_evaluations_total",
				Help: "Total number of formula evaluations by status",
			},
			[]string{"status"},
		),
		FormulaEvaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowgraph_formula_evaluation_duration_seconds",
				Help:    "Formula evaluation duration in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{},
		),
		FormulaCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "flowgraph_formula_cache_hits_total",
				Help: "Total number of compiled-expression cache hits",
			},
		),
		FormulaCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "flowgraph_formula_cache_misses_total",
				Help: "Total number of compiled-expression cache misses",
			},
		),
	}
}

// Register registers every collector with registry.
func (m *Metrics) Register(registry *prometheus.Registry) error {
	collectors := []prometheus.Collector{
		m.WorkflowExecutionsTotal,
		m.WorkflowExecutionDuration,
		m.WorkflowExecutionsActive,
		m.NodeExecutionsTotal,
		m.NodeExecutionDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.FormulaEvaluationsTotal,
		m.FormulaEvaluationDuration,
		m.FormulaCacheHitsTotal,
		m.FormulaCacheMissesTotal,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}

	return nil
}

// RecordWorkflowExecution records one finished workflow run.
func (m *Metrics) RecordWorkflowExecution(workflowID, triggerType, status string, durationSeconds float64) {
	m.WorkflowExecutionsTotal.WithLabelValues(workflowID, triggerType, status).Inc()
	m.WorkflowExecutionDuration.WithLabelValues(workflowID, triggerType).Observe(durationSeconds)
}

// IncActiveWorkflowExecutions increments the active workflow executions gauge.
func (m *Metrics) IncActiveWorkflowExecutions(workflowID, triggerType string) {
	m.WorkflowExecutionsActive.WithLabelValues(workflowID, triggerType).Inc()
}

// DecActiveWorkflowExecutions decrements the active workflow executions gauge.
func (m *Metrics) DecActiveWorkflowExecutions(workflowID, triggerType string) {
	m.WorkflowExecutionsActive.WithLabelValues(workflowID, triggerType).Dec()
}

// RecordNodeExecution records one finished node run.
func (m *Metrics) RecordNodeExecution(workflowID, nodeType, status string, durationSeconds float64) {
	m.NodeExecutionsTotal.WithLabelValues(workflowID, nodeType, status).Inc()
	m.NodeExecutionDuration.WithLabelValues(workflowID, nodeType).Observe(durationSeconds)
}

// RecordHTTPRequest records one outbound request issued by an HttpRequest node.
func (m *Metrics) RecordHTTPRequest(method, status string, durationSeconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordFormulaEvaluation records one formula evaluation.
func (m *Metrics) RecordFormulaEvaluation(status string, durationSeconds float64) {
	m.FormulaEvaluationsTotal.WithLabelValues(status).Inc()
	m.FormulaEvaluationDuration.WithLabelValues().Observe(durationSeconds)
}

// RecordFormulaCacheHit records a compiled-expression cache hit.
func (m *Metrics) RecordFormulaCacheHit() {
	m.FormulaCacheHitsTotal.Inc()
}

// RecordFormulaCacheMiss records a compiled-expression cache miss.
func (m *Metrics) RecordFormulaCacheMiss() {
	m.FormulaCacheMissesTotal.Inc()
}
