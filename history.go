package tether

import "time"

// Change records a single committed transition on a Property.
type Change[T any] struct {
	// Old is the value before the transition.
	Old T

	// New is the stored value after the transition, with coercion applied.
	New T

	// At is the time the transition committed.
	At time.Time
}

// History returns the recent committed transitions, oldest first.
// Both direct assignments and values received through bindings are
// recorded. Returns nil unless history is enabled via WithHistory.
func (p *Property[T]) History() []Change[T] {
	return p.history.all()
}

// record appends a transition to the history ring. Caller holds p.mu.
func (p *Property[T]) record(old, next T) {
	if p.history == nil {
		return
	}
	p.history.push(Change[T]{Old: old, New: next, At: p.clock.Now()})
}
