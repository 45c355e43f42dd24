// Package instrument exposes engine activity to standard observability
// backends: a Prometheus observer for metrics and an OpenTelemetry observer
// for per-run tracing. Both attach through strand.SetObserver; combine them
// with strand.CombineObservers when more than one is in play.
package instrument

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/strand-dev/strand/pkg/strand"
)

// MetricsConfig configures the Prometheus observer.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "strand").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for effect run duration.
	// Default: prometheus.DefBuckets.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus observer.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the run-duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "strand",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// metricsObserver implements strand.Observer over promauto metrics.
type metricsObserver struct {
	effectRuns    prometheus.Counter
	runDuration   prometheus.Histogram
	triggersTotal *prometheus.CounterVec
	ownersStopped prometheus.Counter

	mu        sync.Mutex
	runStarts map[uint64]time.Time
}

// Prometheus builds an observer that publishes engine activity as
// Prometheus metrics:
//
//   - strand_effect_runs_total: counter of effect runs
//   - strand_effect_run_duration_seconds: histogram of run durations
//   - strand_triggers_total: counter of dirty transitions by operation type
//   - strand_owners_stopped_total: counter of scope teardowns
//
// Example:
//
//	strand.SetObserver(instrument.Prometheus(
//	    instrument.WithNamespace("myapp"),
//	))
func Prometheus(opts ...MetricsOption) strand.Observer {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &metricsObserver{
		effectRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_runs_total",
			Help:        "Total number of effect runs",
			ConstLabels: config.ConstLabels,
		}),

		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_run_duration_seconds",
			Help:        "Effect run duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		triggersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "triggers_total",
			Help:        "Total number of dirty transitions by operation type",
			ConstLabels: config.ConstLabels,
		}, []string{"op"}),

		ownersStopped: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "owners_stopped_total",
			Help:        "Total number of owner scopes stopped",
			ConstLabels: config.ConstLabels,
		}),

		runStarts: make(map[uint64]time.Time),
	}
}

func (m *metricsObserver) EffectRunStarted(e *strand.Effect) {
	m.mu.Lock()
	if _, nested := m.runStarts[e.ID()]; !nested {
		m.runStarts[e.ID()] = time.Now()
	}
	m.mu.Unlock()
}

func (m *metricsObserver) EffectRunFinished(e *strand.Effect) {
	m.effectRuns.Inc()

	m.mu.Lock()
	start, ok := m.runStarts[e.ID()]
	delete(m.runStarts, e.ID())
	m.mu.Unlock()

	if ok {
		m.runDuration.Observe(time.Since(start).Seconds())
	}
}

func (m *metricsObserver) Triggered(ev strand.DebugEvent) {
	m.triggersTotal.WithLabelValues(ev.Type.String()).Inc()
}

func (m *metricsObserver) OwnerStopped(*strand.Owner) {
	m.ownersStopped.Inc()
}
