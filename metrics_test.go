package tether

import (
	"testing"
	"time"
)

func TestNoOpMetricsProvider_DoesNotPanic(_ *testing.T) {
	var m NoOpMetricsProvider

	// These should not panic
	m.OnStateChange(StateLoading, StateHealthy)
	m.OnApplySuccess(100 * time.Millisecond)
	m.OnApplyFailure("apply", 50*time.Millisecond)
	m.OnUpdateReceived()
}
