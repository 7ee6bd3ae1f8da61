package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/garyjia/emission-workflow/internal/domain/sla"
	domainwf "github.com/garyjia/emission-workflow/internal/domain/workflow"
)

// Metrics provides observability for the emission workflow. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// Orchestrator operation latency by operation and outcome
	OperationLatency *prometheus.HistogramVec

	// State changes by edge and whether the orchestrator made them
	Transitions *prometheus.CounterVec

	// Missing item churn: opened, closed, conflict
	MissingItems *prometheus.CounterVec

	// SLA assessments by severity
	SLAAssessments *prometheus.CounterVec

	SweepDuration  prometheus.Histogram
	SweepEvaluated prometheus.Gauge
	SweepFailed    prometheus.Gauge

	// Event handler deliveries by event type and outcome
	Deliveries *prometheus.CounterVec

	// HTTP requests by method, route and status
	RequestLatency *prometheus.HistogramVec
}

// New creates a Metrics instance registered with reg. A nil reg uses the
// default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "emission_operation_duration_seconds",
			Help:    "Duration of orchestrator operations including their transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation", "outcome"}), // outcome: "ok", "error"

		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emission_transitions_total",
			Help: "Total lifecycle transitions by edge",
		}, []string{"from", "to", "automatic"}),

		MissingItems: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emission_missing_items_total",
			Help: "Missing items opened, closed and healed conflicts",
		}, []string{"change"}),

		SLAAssessments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emission_sla_assessments_total",
			Help: "SLA assessments produced by sweeps, by severity",
		}, []string{"severity"}),

		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "emission_sla_sweep_duration_seconds",
			Help:    "Duration of a full SLA sweep",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),

		SweepEvaluated: factory.NewGauge(prometheus.GaugeOpts{
			Name: "emission_sla_sweep_evaluated_cases",
			Help: "Cases evaluated by the last SLA sweep",
		}),

		SweepFailed: factory.NewGauge(prometheus.GaugeOpts{
			Name: "emission_sla_sweep_failed_cases",
			Help: "Cases that could not be evaluated by the last SLA sweep",
		}),

		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emission_event_deliveries_total",
			Help: "Event handler executions by event type, handler and outcome",
		}, []string{"event_type", "handler", "outcome"}),

		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "emission_http_request_duration_seconds",
			Help:    "HTTP request duration by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// ObserveOperation records one orchestrator operation
func (m *Metrics) ObserveOperation(op string, elapsed time.Duration, err error) {
	if m != nil {
		m.OperationLatency.WithLabelValues(op, outcome(err)).Observe(elapsed.Seconds())
	}
}

// IncTransition records a committed state change
func (m *Metrics) IncTransition(from, to domainwf.State, automatic bool) {
	if m != nil {
		m.Transitions.WithLabelValues(from.String(), to.String(), strconv.FormatBool(automatic)).Inc()
	}
}

// AddMissingItems records reconciliation churn
func (m *Metrics) AddMissingItems(opened, closed, conflicts int) {
	if m == nil {
		return
	}
	m.MissingItems.WithLabelValues("opened").Add(float64(opened))
	m.MissingItems.WithLabelValues("closed").Add(float64(closed))
	m.MissingItems.WithLabelValues("conflict").Add(float64(conflicts))
}

// IncSLAAssessment records one graded case
func (m *Metrics) IncSLAAssessment(severity sla.Severity) {
	if m != nil {
		m.SLAAssessments.WithLabelValues(string(severity)).Inc()
	}
}

// ObserveSweep records the totals of a finished sweep
func (m *Metrics) ObserveSweep(evaluated, failed int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(elapsed.Seconds())
	m.SweepEvaluated.Set(float64(evaluated))
	m.SweepFailed.Set(float64(failed))
}

// ObserveDelivery records one event handler execution
func (m *Metrics) ObserveDelivery(eventType string, handler string, elapsed time.Duration, err error) {
	if m != nil {
		m.Deliveries.WithLabelValues(eventType, handler, outcome(err)).Inc()
	}
}

// ObserveRequest records one HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m != nil {
		m.RequestLatency.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
