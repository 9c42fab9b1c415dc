package tether

import "github.com/zoobzio/capitan"

// Field keys for property events.
var (
	// KeyProperty is the label of the property emitting the event.
	KeyProperty = capitan.NewStringKey("property")

	// KeySource is the label of the source side of a binding.
	KeySource = capitan.NewStringKey("source")

	// KeyTarget is the label of the target side of a binding.
	KeyTarget = capitan.NewStringKey("target")

	// KeyOutcome is the outcome of an assignment attempt.
	KeyOutcome = capitan.NewStringKey("outcome")
)

// Field keys for feed events.
var (
	// KeyState is the current state of the Feed.
	KeyState = capitan.NewStringKey("state")

	// KeyOldState is the previous state before a transition.
	KeyOldState = capitan.NewStringKey("old_state")

	// KeyNewState is the new state after a transition.
	KeyNewState = capitan.NewStringKey("new_state")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyStage is the processing stage where a failure occurred.
	KeyStage = capitan.NewStringKey("stage")

	// KeyDebounce is the configured debounce duration.
	KeyDebounce = capitan.NewDurationKey("debounce")

	// KeySourceIndex is the index of a source in a MultiFeed.
	KeySourceIndex = capitan.NewIntKey("source_index")
)
