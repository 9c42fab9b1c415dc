// Package prom provides a tether.MetricsProvider backed by Prometheus.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/zoobzio/tether"
)

// Config configures the Prometheus provider.
type Config struct {
	// Namespace is the metrics namespace (default: "tether").
	Namespace string

	// Subsystem is the metrics subsystem (default: "feed").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for apply duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the Prometheus provider.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// defaultConfig returns the default provider configuration.
func defaultConfig() Config {
	return Config{
		Namespace:   "tether",
		Subsystem:   "feed",
		ConstLabels: nil,
		Buckets:     prometheus.DefBuckets,
		Registry:    prometheus.DefaultRegisterer,
	}
}

// Provider implements tether.MetricsProvider using Prometheus metrics.
//
// Metrics collected:
//   - tether_feed_state_changes_total: Counter of state transitions by from and to
//   - tether_feed_applies_total: Counter of processed updates by status
//   - tether_feed_apply_failures_total: Counter of failures by stage
//   - tether_feed_apply_duration_seconds: Histogram of processing duration
//   - tether_feed_updates_received_total: Counter of raw updates received
//
// Metric names are registered on construction, so create one Provider per
// registry and share it between feeds.
//
// Example:
//
//	provider := prom.New(prom.WithNamespace("myapp"))
//
//	feed := tether.NewFeed(prop, source).Metrics(provider)
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
type Provider struct {
	stateChanges  *prometheus.CounterVec
	applies       *prometheus.CounterVec
	applyFailures *prometheus.CounterVec
	applyDuration prometheus.Histogram
	updates       prometheus.Counter
}

// New creates a Provider with its metrics registered on the configured
// registry.
func New(opts ...Option) *Provider {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Provider{
		stateChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "state_changes_total",
			Help:        "Total number of feed state transitions",
			ConstLabels: config.ConstLabels,
		}, []string{"from", "to"}),

		applies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "applies_total",
			Help:        "Total number of processed updates by status",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		applyFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "apply_failures_total",
			Help:        "Total number of processing failures by stage",
			ConstLabels: config.ConstLabels,
		}, []string{"stage"}),

		applyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "apply_duration_seconds",
			Help:        "Update processing duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		updates: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "updates_received_total",
			Help:        "Total number of raw updates received from sources",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// OnStateChange records a feed state transition.
func (p *Provider) OnStateChange(from, to tether.State) {
	p.stateChanges.WithLabelValues(from.String(), to.String()).Inc()
}

// OnApplySuccess records a successfully processed update.
func (p *Provider) OnApplySuccess(duration time.Duration) {
	p.applies.WithLabelValues("success").Inc()
	p.applyDuration.Observe(duration.Seconds())
}

// OnApplyFailure records a failed update with the stage that failed.
func (p *Provider) OnApplyFailure(stage string, duration time.Duration) {
	p.applies.WithLabelValues("failure").Inc()
	p.applyFailures.WithLabelValues(stage).Inc()
	p.applyDuration.Observe(duration.Seconds())
}

// OnUpdateReceived records a raw update arriving from a source.
func (p *Provider) OnUpdateReceived() {
	p.updates.Inc()
}

// Ensure Provider implements tether.MetricsProvider.
var _ tether.MetricsProvider = (*Provider)(nil)
