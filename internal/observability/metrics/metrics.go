package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "gridflow_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	workflowExecutions *prometheus.CounterVec
	executionLatency   *prometheus.HistogramVec

	thresholdEvaluations *prometheus.CounterVec
	workflowsTriggered   prometheus.Counter

	analysisTotal   *prometheus.CounterVec
	analysisLatency *prometheus.HistogramVec

	reportExportTotal *prometheus.CounterVec
)

// Init registers engine metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total telemetry ingest requests by result",
			},
			[]string{"result"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Telemetry ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		workflowExecutions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "workflow_executions_total",
				Help: "Total workflow executions by final status",
			},
			[]string{"status"},
		)
		executionLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "workflow_execution_latency_seconds",
				Help:    "Workflow execution latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		)

		thresholdEvaluations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "threshold_evaluations_total",
				Help: "Total threshold evaluations by result (matched, unmatched, error)",
			},
			[]string{"result"},
		)
		workflowsTriggered = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "workflows_triggered_total",
				Help: "Total workflow executions started by threshold triggers",
			},
		)

		analysisTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "analysis_total",
				Help: "Total telemetry analyses by kind and result",
			},
			[]string{"kind", "result"},
		)
		analysisLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "analysis_latency_seconds",
				Help:    "Telemetry analysis latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind", "result"},
		)

		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total analysis report exports by format and result",
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestLatency,
			workflowExecutions,
			executionLatency,
			thresholdEvaluations,
			workflowsTriggered,
			analysisTotal,
			analysisLatency,
			reportExportTotal,
		)
	})
}

// ObserveIngest records one ingest request.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveWorkflowExecution records one workflow execution.
func ObserveWorkflowExecution(status string, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	if workflowExecutions != nil {
		workflowExecutions.WithLabelValues(status).Inc()
	}
	if executionLatency != nil {
		executionLatency.WithLabelValues(status).Observe(duration.Seconds())
	}
}

// IncThresholdEvaluation counts one threshold evaluation outcome.
func IncThresholdEvaluation(result string) {
	if result == "" {
		result = "unknown"
	}
	if thresholdEvaluations != nil {
		thresholdEvaluations.WithLabelValues(result).Inc()
	}
}

// IncWorkflowTriggered counts one threshold-started execution.
func IncWorkflowTriggered() {
	if workflowsTriggered != nil {
		workflowsTriggered.Inc()
	}
}

// ObserveAnalysis records one analytics or spatial analysis run.
func ObserveAnalysis(kind, result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if analysisTotal != nil {
		analysisTotal.WithLabelValues(kind, result).Inc()
	}
	if analysisLatency != nil {
		analysisLatency.WithLabelValues(kind, result).Observe(duration.Seconds())
	}
}

// IncReportExport counts one report export.
func IncReportExport(format, result string) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
}

// Exported result constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	EvaluationMatched   = "matched"
	EvaluationUnmatched = "unmatched"
	EvaluationError     = resultError
)
