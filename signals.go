package tether

import "github.com/zoobzio/capitan"

// Property signals.
var (
	// PropertyChanged is emitted when an assignment commits a new value.
	PropertyChanged = capitan.NewSignal(
		"tether.property.changed",
		"Property value changed",
	)

	// PropertyRejected is emitted when a validator refuses a value.
	PropertyRejected = capitan.NewSignal(
		"tether.property.rejected",
		"Property value rejected by validator",
	)

	// PropertyPropagated is emitted when a bound property applies a value
	// pushed from its source.
	PropertyPropagated = capitan.NewSignal(
		"tether.property.propagated",
		"Bound property received a propagated value",
	)

	// PropertyBound is emitted when a binding edge is added.
	PropertyBound = capitan.NewSignal(
		"tether.property.bound",
		"Binding added between properties",
	)

	// PropertyUnbound is emitted when a binding edge is removed.
	PropertyUnbound = capitan.NewSignal(
		"tether.property.unbound",
		"Binding removed between properties",
	)
)

// Feed lifecycle signals.
var (
	// FeedStarted is emitted when a Feed begins watching its source.
	FeedStarted = capitan.NewSignal(
		"tether.feed.started",
		"Feed watching started",
	)

	// FeedStopped is emitted when a Feed stops watching.
	FeedStopped = capitan.NewSignal(
		"tether.feed.stopped",
		"Feed watching stopped",
	)

	// FeedStateChanged is emitted when a Feed transitions between states.
	FeedStateChanged = capitan.NewSignal(
		"tether.feed.state.changed",
		"Feed state transition",
	)
)

// Feed update processing signals.
var (
	// FeedUpdateReceived is emitted when raw data is received from the source.
	FeedUpdateReceived = capitan.NewSignal(
		"tether.feed.update.received",
		"Raw update received from source",
	)

	// FeedDecodeFailed is emitted when the codec fails to decode an update.
	FeedDecodeFailed = capitan.NewSignal(
		"tether.feed.decode.failed",
		"Codec failed to decode update",
	)

	// FeedPipelineFailed is emitted when the processing pipeline fails.
	FeedPipelineFailed = capitan.NewSignal(
		"tether.feed.pipeline.failed",
		"Processing pipeline failed",
	)

	// FeedApplyFailed is emitted when applying an update to the property fails.
	FeedApplyFailed = capitan.NewSignal(
		"tether.feed.apply.failed",
		"Update rejected by property",
	)

	// FeedApplySucceeded is emitted when an update is successfully applied.
	FeedApplySucceeded = capitan.NewSignal(
		"tether.feed.apply.succeeded",
		"Update applied to property",
	)
)
