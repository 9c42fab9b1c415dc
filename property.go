// Package tether provides observable property cells with validation,
// coercion, and declarative binding between instances.
//
// The core type is Property, a container for a single typed value that
// notifies registered callbacks when the value changes and pushes accepted
// values to bound peer properties.
//
// # Assignment Protocol
//
// Every assignment runs the same protocol:
//
//	Equality check → Coerce → Validate → Store → Notify → Propagate
//
// A value equal to the current one short-circuits before coercion and
// nothing runs. Otherwise the coercer may rewrite the value in place, the
// validator may reject it, and only an accepted value is stored, reported
// to callbacks, and pushed one hop to bound targets. The result is
// reported as an Outcome: applied, unchanged, or rejected.
//
// # Bindings
//
// Bindings are one-way edges between properties. BindTo(target) pushes
// every accepted value to the target; Bind(other) adds edges in both
// directions. A propagated value passes through the receiving property's
// own coercer and validator but does not trigger its callbacks or
// continue to its own targets. Propagation is strictly one hop: in a
// chain A→B→C, setting A updates B only.
//
// # Feeds
//
// A Feed drives a property from an external source such as a file, a
// NATS KV key, or a ZooKeeper node. Raw bytes are decoded by a Codec,
// processed through a pipz pipeline, and applied through the normal
// assignment protocol with automatic rollback on failure. See Feed.
//
// # Example
//
//	port := tether.New(8080,
//	    tether.WithValidator(func(v int) bool { return v > 0 && v < 65536 }),
//	)
//
//	id := port.OnChange(func(oldValue, newValue int) {
//	    log.Printf("port %d -> %d", oldValue, newValue)
//	})
//	defer port.RemoveCallback(id)
//
//	port.Set(9090)           // applied, callback fires
//	port.Set(9090)           // unchanged, nothing runs
//	if port.Set(-1) == tether.OutcomeRejected {
//	    // stored value still 9090
//	}
package tether

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// ChangeCallback observes committed value transitions on a Property.
// It receives the value before and after the transition.
type ChangeCallback[T any] func(oldValue, newValue T)

// Validator reports whether a candidate value is acceptable.
// It runs after coercion; returning false rejects the assignment.
type Validator[T any] func(T) bool

// Coercer rewrites a candidate value in place before validation.
// Typical uses are clamping, rounding, and normalization.
type Coercer[T any] func(*T)

// CallbackID identifies a registered change callback.
// IDs are recycled: removing a callback returns its ID to a free queue
// and the oldest freed ID is reused before a new one is allocated.
type CallbackID uint64

// propertyID is the source of unique IDs for observability labels.
var propertyID atomic.Uint64

// Property is an observable container for a single value of type T.
//
// All exported methods are safe for concurrent use. Callbacks and
// propagation run outside the instance lock, so a callback may call back
// into the same property and concurrent assignments to two-way bound
// properties cannot deadlock.
type Property[T any] struct {
	mu sync.RWMutex

	value     T
	validator Validator[T]
	coercer   Coercer[T]
	equals    func(a, b T) bool

	callbacks map[CallbackID]ChangeCallback[T]
	freeIDs   []CallbackID
	nextID    CallbackID

	// targets are outgoing one-way binding edges, in insertion order.
	targets []*Property[T]

	history *ring[Change[T]]
	clock   clockz.Clock

	id   uint64
	name string
}

// Option configures a Property at construction.
type Option[T any] func(*Property[T])

// WithValidator sets the validator. At most one validator is active;
// the last one set wins. A nil validator accepts every value.
func WithValidator[T any](v Validator[T]) Option[T] {
	return func(p *Property[T]) {
		p.validator = v
	}
}

// WithCoercer sets the coercer. At most one coercer is active;
// the last one set wins.
func WithCoercer[T any](c Coercer[T]) Option[T] {
	return func(p *Property[T]) {
		p.coercer = c
	}
}

// WithEquals sets the equality function used by the short-circuit check.
// Use this for types where reflect.DeepEqual is too expensive or has
// incorrect semantics.
func WithEquals[T any](fn func(a, b T) bool) Option[T] {
	return func(p *Property[T]) {
		p.equals = fn
	}
}

// WithName sets a label used in emitted events. Defaults to
// "property-<id>" with a process-unique id.
func WithName[T any](name string) Option[T] {
	return func(p *Property[T]) {
		p.name = name
	}
}

// WithHistory enables transition history, retaining the last n committed
// changes. Disabled by default.
func WithHistory[T any](n int) Option[T] {
	return func(p *Property[T]) {
		p.history = newRing[Change[T]](n)
	}
}

// WithClock sets the clock used for history timestamps.
// Defaults to clockz.RealClock.
func WithClock[T any](clock clockz.Clock) Option[T] {
	return func(p *Property[T]) {
		p.clock = clock
	}
}

// New creates a Property holding initial.
//
// The initial value is stored raw: no coercion, no validation, no
// callbacks. If an out-of-domain initial value matters, validate it
// before construction.
func New[T any](initial T, opts ...Option[T]) *Property[T] {
	p := &Property[T]{
		value:     initial,
		equals:    defaultEquals[T],
		callbacks: make(map[CallbackID]ChangeCallback[T]),
		clock:     clockz.RealClock,
		id:        propertyID.Add(1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Value returns a snapshot of the current value.
func (p *Property[T]) Value() T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Raw returns a pointer to the stored value.
//
// This is an escape hatch: writes through the pointer bypass the lock,
// coercion, validation, callbacks, and propagation entirely. Reads race
// with concurrent assignments. Use Value and Set unless you are certain
// you need this.
func (p *Property[T]) Raw() *T {
	return &p.value
}

// Set assigns v through the full protocol and reports the outcome.
func (p *Property[T]) Set(v T) Outcome {
	return p.SetContext(context.Background(), v)
}

// SetContext assigns v through the full protocol and reports the outcome.
// The context is attached to emitted events and passed through to bound
// targets.
func (p *Property[T]) SetContext(ctx context.Context, v T) Outcome {
	p.mu.Lock()
	return p.commit(ctx, v)
}

// Update atomically transforms the current value through the full
// protocol. fn runs under the instance lock and must not call back into
// the property.
func (p *Property[T]) Update(fn func(T) T) Outcome {
	return p.UpdateContext(context.Background(), fn)
}

// UpdateContext atomically transforms the current value through the full
// protocol. fn runs under the instance lock and must not call back into
// the property.
func (p *Property[T]) UpdateContext(ctx context.Context, fn func(T) T) Outcome {
	p.mu.Lock()
	return p.commit(ctx, fn(p.value))
}

// SetValidator replaces the validator. The last write wins; nil clears.
// Replacing the validator does not re-check the stored value.
func (p *Property[T]) SetValidator(v Validator[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.validator = v
}

// SetCoercer replaces the coercer. The last write wins; nil clears.
// Replacing the coercer does not rewrite the stored value.
func (p *Property[T]) SetCoercer(c Coercer[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.coercer = c
}

// commit runs the assignment protocol for v. The caller must hold p.mu;
// commit releases it before callbacks and propagation run, so no lock is
// held while observer code executes.
func (p *Property[T]) commit(ctx context.Context, v T) Outcome {
	// Equality short-circuits before coercion. The coerced form of an
	// incoming value is never compared against the stored value.
	if p.equals(p.value, v) {
		p.mu.Unlock()
		return OutcomeUnchanged
	}

	if p.coercer != nil {
		p.coercer(&v)
	}

	if p.validator != nil && !p.validator(v) {
		p.mu.Unlock()
		capitan.Emit(ctx, PropertyRejected,
			KeyProperty.Field(p.label()),
		)
		return OutcomeRejected
	}

	old := p.value
	p.value = v
	p.record(old, v)
	callbacks := p.snapshotCallbacks()
	var targets []*Property[T]
	if len(p.targets) > 0 {
		targets = make([]*Property[T], len(p.targets))
		copy(targets, p.targets)
	}
	p.mu.Unlock()

	capitan.Emit(ctx, PropertyChanged,
		KeyProperty.Field(p.label()),
	)

	// The value is committed before callbacks run: a panicking callback
	// propagates to the caller but leaves the property consistent.
	for _, fn := range callbacks {
		fn(old, v)
	}

	for _, t := range targets {
		t.receive(ctx, v, p)
	}

	return OutcomeApplied
}

// receive applies a value pushed from a bound source property.
//
// The value passes through this property's own coercer and validator
// against its own copy, but acceptance neither triggers this property's
// callbacks nor continues to its own targets. Propagation is one hop.
func (p *Property[T]) receive(ctx context.Context, v T, from *Property[T]) {
	p.mu.Lock()
	if p.equals(p.value, v) {
		p.mu.Unlock()
		return
	}

	if p.coercer != nil {
		p.coercer(&v)
	}

	if p.validator != nil && !p.validator(v) {
		p.mu.Unlock()
		capitan.Emit(ctx, PropertyRejected,
			KeyProperty.Field(p.label()),
			KeySource.Field(from.label()),
		)
		return
	}

	old := p.value
	p.value = v
	p.record(old, v)
	p.mu.Unlock()

	capitan.Emit(ctx, PropertyPropagated,
		KeyProperty.Field(p.label()),
		KeySource.Field(from.label()),
	)
}

// snapshotCallbacks returns the registered callbacks in ascending ID
// order. Caller holds p.mu.
func (p *Property[T]) snapshotCallbacks() []ChangeCallback[T] {
	if len(p.callbacks) == 0 {
		return nil
	}
	ids := make([]CallbackID, 0, len(p.callbacks))
	for id := range p.callbacks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]ChangeCallback[T], len(ids))
	for i, id := range ids {
		fns[i] = p.callbacks[id]
	}
	return fns
}

// label returns the observability label for this property.
func (p *Property[T]) label() string {
	if p.name != "" {
		return p.name
	}
	return "property-" + strconv.FormatUint(p.id, 10)
}
