package tether

// State represents the current state of a Feed.
type State int32

const (
	// StateLoading indicates the Feed is initializing and has not yet
	// processed any update.
	StateLoading State = iota

	// StateHealthy indicates the Feed has applied a valid value to its
	// property.
	StateHealthy

	// StateDegraded indicates the last update failed decoding, processing,
	// or validation. The previously applied value remains active.
	StateDegraded

	// StateEmpty indicates the initial update failed and no valid value
	// has ever been applied. The Feed continues watching for valid updates.
	StateEmpty
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateEmpty:
		return "empty"
	default:
		return "unknown"
	}
}
