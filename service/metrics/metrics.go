// Package metrics exposes Prometheus instrumentation for runs, steps and
// approval decisions.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "booking"

// Recorder receives orchestration measurements. A nil *Metrics is a valid
// no-op Recorder.
type Recorder interface {
	RunStarted(topology string)
	RunFinished(topology, result string, duration time.Duration)
	StepFinished(worker, outcome string, duration time.Duration)
	Decision(action string, auto bool)
}

// Metrics is a Prometheus backed Recorder with its own registry.
type Metrics struct {
	registry     *prometheus.Registry
	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	activeRuns   prometheus.Gauge
	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	decisions    *prometheus.CounterVec
	checkpoints  *prometheus.CounterVec
}

// New creates and registers the collectors. Process and Go runtime
// collectors are included when withRuntime is set.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished workflow runs by topology and result.",
		}, []string{"topology", "result"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Workflow run duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"topology"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Workflow runs currently in progress.",
		}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Worker steps by worker and outcome.",
		}, []string{"worker", "outcome"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Worker step duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 15},
		}, []string{"worker"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approval_decisions_total",
			Help:      "Approval checkpoint decisions by action and origin.",
		}, []string{"action", "auto"}),
		checkpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approval_checkpoint_events_total",
			Help:      "Approval checkpoint lifecycle events by topic.",
		}, []string{"topic"}),
	}
	m.registry.MustRegister(m.runs, m.runDuration, m.activeRuns, m.steps, m.stepDuration, m.decisions, m.checkpoints)
	if withRuntime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RunStarted(string) {
	if m == nil {
		return
	}
	m.activeRuns.Inc()
}

func (m *Metrics) RunFinished(topology, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.activeRuns.Dec()
	m.runs.WithLabelValues(topology, result).Inc()
	m.runDuration.WithLabelValues(topology).Observe(duration.Seconds())
}

func (m *Metrics) StepFinished(worker, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(worker, outcome).Inc()
	m.stepDuration.WithLabelValues(worker).Observe(duration.Seconds())
}

func (m *Metrics) Decision(action string, auto bool) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(action, strconv.FormatBool(auto)).Inc()
}

// CheckpointEvent counts one approval lifecycle event.
func (m *Metrics) CheckpointEvent(topic string) {
	if m == nil {
		return
	}
	m.checkpoints.WithLabelValues(topic).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

var _ Recorder = (*Metrics)(nil)
