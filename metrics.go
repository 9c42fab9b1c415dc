package tether

import "time"

// MetricsProvider allows integration with metrics systems like Prometheus, StatsD, etc.
// Implement this interface to receive callbacks on key feed events.
type MetricsProvider interface {
	// OnStateChange is called when the feed transitions between states.
	OnStateChange(from, to State)

	// OnApplySuccess is called when an update is successfully applied.
	// Duration is the time taken to process (decode, pipeline, apply).
	OnApplySuccess(duration time.Duration)

	// OnApplyFailure is called when processing fails at any stage.
	// Stage indicates where the failure occurred: "decode", "pipeline",
	// "reduce", or "apply".
	OnApplyFailure(stage string, duration time.Duration)

	// OnUpdateReceived is called when raw data is received from the source.
	OnUpdateReceived()
}

// NoOpMetricsProvider is a no-op implementation of MetricsProvider.
// Use this as an embedded type to implement only the methods you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnStateChange(_, _ State)                 {}
func (NoOpMetricsProvider) OnApplySuccess(_ time.Duration)           {}
func (NoOpMetricsProvider) OnApplyFailure(_ string, _ time.Duration) {}
func (NoOpMetricsProvider) OnUpdateReceived()                        {}
