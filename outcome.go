package tether

// Outcome reports the result of an assignment attempt on a Property.
type Outcome int32

const (
	// OutcomeApplied indicates the value passed coercion and validation
	// and was stored. Callbacks were invoked and bound targets updated.
	OutcomeApplied Outcome = iota

	// OutcomeUnchanged indicates the value compared equal to the current
	// value. Nothing ran: no coercion, no validation, no callbacks, no
	// propagation.
	OutcomeUnchanged

	// OutcomeRejected indicates the validator refused the coerced value.
	// The stored value is untouched and no observers were notified.
	OutcomeRejected
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
