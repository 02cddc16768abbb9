package telemetry

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for dbxdeploy.
type Metrics struct {
	config MetricsConfig

	// Deployment metrics
	deploysStarted   *prometheus.CounterVec
	deploysCompleted *prometheus.CounterVec
	deployDuration   *prometheus.HistogramVec

	// Stage metrics
	stagesExecuted *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec

	// External command metrics
	commandInvocations *prometheus.CounterVec
	commandDuration    *prometheus.HistogramVec
	commandFailures    *prometheus.CounterVec

	// Poll loop metrics
	pollIterations prometheus.Counter

	// Error metrics
	errorsByKind *prometheus.CounterVec

	// System metrics
	activeDeploys prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// No-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		deploysStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deploys_started_total",
				Help:      "Total number of deployment runs started",
			},
			[]string{"mode"},
		),
		deploysCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deploys_completed_total",
				Help:      "Total number of deployment runs completed",
			},
			[]string{"status"},
		),
		deployDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "deploy_duration_seconds",
				Help:      "Duration of deployment runs in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		stagesExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stages_executed_total",
				Help:      "Total number of workflow stages executed",
			},
			[]string{"stage", "status"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of workflow stages in seconds",
				Buckets:   buckets,
			},
			[]string{"stage"},
		),

		commandInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "command_invocations_total",
				Help:      "Total number of external command invocations",
			},
			[]string{"tool"},
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Duration of external command invocations in seconds",
				Buckets:   buckets,
			},
			[]string{"tool"},
		),
		commandFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "command_failures_total",
				Help:      "Total number of non-zero external command exits",
			},
			[]string{"tool", "exit_code"},
		),

		pollIterations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "poll_iterations_total",
				Help:      "Total number of deletion poll loop iterations",
			},
		),

		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_kind_total",
				Help:      "Total number of errors by classification",
			},
			[]string{"kind"},
		),

		activeDeploys: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_deploys",
				Help:      "Current number of active deployment runs",
			},
		),
	}

	registry.MustRegister(
		m.deploysStarted,
		m.deploysCompleted,
		m.deployDuration,
		m.stagesExecuted,
		m.stageDuration,
		m.commandInvocations,
		m.commandDuration,
		m.commandFailures,
		m.pollIterations,
		m.errorsByKind,
		m.activeDeploys,
	)

	return m, nil
}

// RecordDeployStarted increments the started counter for a run mode.
func (m *Metrics) RecordDeployStarted(mode string) {
	if m.deploysStarted == nil {
		return
	}
	m.deploysStarted.WithLabelValues(mode).Inc()
	m.activeDeploys.Inc()
}

// RecordDeployCompleted records a completed run with status and duration.
func (m *Metrics) RecordDeployCompleted(status string, duration time.Duration) {
	if m.deploysCompleted == nil {
		return
	}
	m.deploysCompleted.WithLabelValues(status).Inc()
	m.deployDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeDeploys.Dec()
}

// RecordStage records one workflow stage execution.
func (m *Metrics) RecordStage(stage, status string, duration time.Duration) {
	if m.stagesExecuted == nil {
		return
	}
	m.stagesExecuted.WithLabelValues(stage, status).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordCommand records one external command invocation.
func (m *Metrics) RecordCommand(tool string, duration time.Duration, exitCode int) {
	if m.commandInvocations == nil {
		return
	}
	m.commandInvocations.WithLabelValues(tool).Inc()
	m.commandDuration.WithLabelValues(tool).Observe(duration.Seconds())
	if exitCode != 0 {
		m.commandFailures.WithLabelValues(tool, strconv.Itoa(exitCode)).Inc()
	}
}

// RecordPollIteration counts one deletion poll loop check.
func (m *Metrics) RecordPollIteration() {
	if m.pollIterations == nil {
		return
	}
	m.pollIterations.Inc()
}

// RecordError records an error by kind.
func (m *Metrics) RecordError(kind string) {
	if m.errorsByKind == nil {
		return
	}
	m.errorsByKind.WithLabelValues(kind).Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
