package tether

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/pipz"
)

// DefaultDebounce is the default debounce duration for update processing.
const DefaultDebounce = 100 * time.Millisecond

// Feed drives a Property from an external source. It watches the source
// for changes, decodes the raw bytes, runs them through a processing
// pipeline, and applies the result through the property's normal
// assignment protocol, with automatic rollback on failure.
type Feed[T any] struct {
	prop           *Property[T]
	source         Source
	pipeline       pipz.Chainable[*Delivery[T]]
	debounce       time.Duration
	startupTimeout time.Duration
	syncMode       bool
	clock          clockz.Clock
	codec          Codec
	metrics        MetricsProvider
	onStop         func(State)

	state        atomic.Int32
	applied      atomic.Bool
	lastError    atomic.Pointer[error]
	errorHistory *ring[error]

	mu      sync.Mutex
	started bool

	// For sync mode: channel to receive updates
	updates <-chan []byte
}

// NewFeed creates a Feed that watches a source for updates to the given
// property.
//
// The source emits raw bytes when it changes. Bytes are decoded to type T
// using the configured codec and applied to the property through its
// normal protocol, so the property's coercer, validator, callbacks, and
// bindings all take effect. A rejected value leaves the property on its
// previous value and degrades the feed.
//
// Pipeline options (With*) configure the processing pipeline. Instance
// configuration uses chainable methods before calling Start().
//
// Example:
//
//	limits := tether.New(Limits{},
//	    tether.WithValidator(tether.StructValidator[Limits]()),
//	)
//
//	feed := tether.NewFeed(limits, tether.NewFileSource("limits.json"),
//	    tether.WithRetry[Limits](3),
//	).Debounce(200 * time.Millisecond)
func NewFeed[T any](p *Property[T], source Source, opts ...FeedOption[T]) *Feed[T] {
	terminal := pipz.Apply(applyID, func(ctx context.Context, d *Delivery[T]) (*Delivery[T], error) {
		d.Outcome = p.SetContext(ctx, d.Current)
		if d.Outcome == OutcomeRejected {
			return d, ErrRejected
		}
		return d, nil
	})
	pipeline := buildPipeline(terminal, opts)

	f := &Feed[T]{
		prop:         p,
		source:       source,
		pipeline:     pipeline,
		debounce:     DefaultDebounce,
		clock:        clockz.RealClock,
		codec:        JSONCodec{},
		errorHistory: newRing[error](0),
	}
	f.state.Store(int32(StateLoading))

	return f
}

// -----------------------------------------------------------------------------
// Chainable Instance Configuration
// -----------------------------------------------------------------------------

// Debounce sets the debounce duration for update processing.
// Updates arriving within this duration are coalesced into a single apply.
// Default: 100ms. Must be called before Start().
func (f *Feed[T]) Debounce(d time.Duration) *Feed[T] {
	f.debounce = d
	return f
}

// SyncMode enables synchronous processing for testing.
// In sync mode, updates are processed immediately without debouncing
// or async goroutines, making tests deterministic. Must be called before Start().
func (f *Feed[T]) SyncMode() *Feed[T] {
	f.syncMode = true
	return f
}

// Clock sets a custom clock for time operations.
// Use this with clockz.FakeClock for deterministic debounce testing.
// Must be called before Start().
func (f *Feed[T]) Clock(clock clockz.Clock) *Feed[T] {
	f.clock = clock
	return f
}

// Codec sets the codec for decoding update data.
// Default: JSONCodec. Must be called before Start().
func (f *Feed[T]) Codec(codec Codec) *Feed[T] {
	f.codec = codec
	return f
}

// StartupTimeout sets the maximum duration to wait for the initial
// value from the source. If the source fails to emit within this
// duration, Start() returns an error.
// Default: no timeout (wait indefinitely). Must be called before Start().
func (f *Feed[T]) StartupTimeout(d time.Duration) *Feed[T] {
	f.startupTimeout = d
	return f
}

// Metrics sets a metrics provider for observability integration.
// The provider receives callbacks on state changes, apply success/failure,
// and update events. Must be called before Start().
func (f *Feed[T]) Metrics(provider MetricsProvider) *Feed[T] {
	f.metrics = provider
	return f
}

// OnStop sets a callback that is invoked when the feed stops watching.
// The callback receives the final state of the feed. This is useful for
// graceful shutdown scenarios where cleanup is needed. Must be called before Start().
func (f *Feed[T]) OnStop(fn func(State)) *Feed[T] {
	f.onStop = fn
	return f
}

// ErrorHistorySize sets the number of recent errors to retain.
// When set, ErrorHistory() returns up to this many recent errors.
// Use 0 (default) to only retain the most recent error via LastError().
// Must be called before Start().
func (f *Feed[T]) ErrorHistorySize(n int) *Feed[T] {
	f.errorHistory = newRing[error](n)
	return f
}

// Property returns the property this feed drives.
func (f *Feed[T]) Property() *Property[T] {
	return f.prop
}

// State returns the current state of the Feed.
func (f *Feed[T]) State() State {
	return State(f.state.Load())
}

// Current returns the property's value and true once the feed has applied
// at least one update, or the property's value and false before that.
func (f *Feed[T]) Current() (T, bool) {
	return f.prop.Value(), f.applied.Load()
}

// LastError returns the last error encountered, or nil if no error occurred.
func (f *Feed[T]) LastError() error {
	ptr := f.lastError.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// ErrorHistory returns the recent error history, oldest first.
// Returns nil if error history is not enabled (see ErrorHistorySize).
func (f *Feed[T]) ErrorHistory() []error {
	return f.errorHistory.all()
}

// Start begins watching for updates. It blocks until the first update
// is processed (success or failure), then continues watching asynchronously.
//
// If the initial update fails, Start returns the error but continues
// watching in the background for valid updates.
//
// In sync mode, Start only processes the initial value. Use Process() to
// manually trigger processing of subsequent values.
//
// Start can only be called once. Subsequent calls return an error.
func (f *Feed[T]) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return fmt.Errorf("feed already started")
	}
	f.started = true
	f.mu.Unlock()

	capitan.Emit(ctx, FeedStarted,
		KeyProperty.Field(f.prop.label()),
		KeyDebounce.Field(f.debounce),
	)

	updates, err := f.source.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start source: %w", err)
	}

	// Wait for first value and process synchronously
	var initialErr error

	// Wrap context with startup timeout if configured
	startupCtx := ctx
	if f.startupTimeout > 0 {
		var cancel context.CancelFunc
		startupCtx, cancel = f.clock.WithTimeout(ctx, f.startupTimeout)
		defer cancel()
	}

	select {
	case <-startupCtx.Done():
		if f.startupTimeout > 0 && startupCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("startup timeout: source did not emit initial value within %v", f.startupTimeout)
		}
		return startupCtx.Err()
	case raw, ok := <-updates:
		if !ok {
			return fmt.Errorf("source closed before emitting initial value")
		}
		capitan.Emit(ctx, FeedUpdateReceived)
		if f.metrics != nil {
			f.metrics.OnUpdateReceived()
		}
		initialErr = f.process(ctx, raw)
	}

	if f.syncMode {
		// In sync mode, store channel for manual processing
		f.updates = updates
		return initialErr
	}

	// Continue watching asynchronously
	go f.watch(ctx, updates)

	return initialErr
}

// Process reads and processes the next value from the source.
// This is only available in sync mode and is used for deterministic testing.
// Returns false if no value is available or the channel is closed.
func (f *Feed[T]) Process(ctx context.Context) bool {
	if !f.syncMode {
		return false
	}

	select {
	case raw, ok := <-f.updates:
		if !ok {
			return false
		}
		capitan.Emit(ctx, FeedUpdateReceived)
		if f.metrics != nil {
			f.metrics.OnUpdateReceived()
		}
		_ = f.process(ctx, raw) //nolint:errcheck // Errors stored via setError
		return true
	default:
		return false
	}
}

// process decodes, pipelines, and applies a single update.
func (f *Feed[T]) process(ctx context.Context, raw []byte) error {
	start := f.clock.Now()
	oldState := f.State()

	// Decode
	var result T
	if err := f.codec.Unmarshal(raw, &result); err != nil {
		f.setError(err)
		f.transitionState(ctx, oldState, f.failureState())
		capitan.Emit(ctx, FeedDecodeFailed,
			KeyError.Field(err.Error()),
		)
		if f.metrics != nil {
			f.metrics.OnApplyFailure("decode", f.clock.Since(start))
		}
		return fmt.Errorf("decode failed: %w", err)
	}

	// Build delivery and process through pipeline; the terminal stage
	// applies the result to the property.
	d := &Delivery[T]{Previous: f.prop.Value(), Current: result, Raw: raw}
	processed, err := f.pipeline.Process(ctx, d)
	if err != nil {
		f.setError(err)
		f.transitionState(ctx, oldState, f.failureState())
		if errors.Is(err, ErrRejected) {
			capitan.Emit(ctx, FeedApplyFailed,
				KeyProperty.Field(f.prop.label()),
				KeyError.Field(err.Error()),
			)
			if f.metrics != nil {
				f.metrics.OnApplyFailure("apply", f.clock.Since(start))
			}
			return fmt.Errorf("apply failed: %w", err)
		}
		capitan.Emit(ctx, FeedPipelineFailed,
			KeyError.Field(err.Error()),
		)
		if f.metrics != nil {
			f.metrics.OnApplyFailure("pipeline", f.clock.Since(start))
		}
		return fmt.Errorf("pipeline failed: %w", err)
	}

	// Success - record and clear error history. OutcomeUnchanged still
	// counts: the source delivered a value the property already holds.
	f.applied.Store(true)
	f.lastError.Store(nil)
	f.errorHistory.clear()
	f.transitionState(ctx, oldState, StateHealthy)
	capitan.Emit(ctx, FeedApplySucceeded,
		KeyProperty.Field(f.prop.label()),
		KeyOutcome.Field(processed.Outcome.String()),
	)
	if f.metrics != nil {
		f.metrics.OnApplySuccess(f.clock.Since(start))
	}

	return nil
}

// failureState returns the appropriate failure state based on whether
// an update has ever been applied.
func (f *Feed[T]) failureState() State {
	if !f.applied.Load() {
		return StateEmpty
	}
	return StateDegraded
}

// transitionState updates the state and emits a state change event if changed.
func (f *Feed[T]) transitionState(ctx context.Context, oldState, newState State) {
	if oldState == newState {
		return
	}
	f.state.Store(int32(newState))
	capitan.Emit(ctx, FeedStateChanged,
		KeyOldState.Field(oldState.String()),
		KeyNewState.Field(newState.String()),
	)
	if f.metrics != nil {
		f.metrics.OnStateChange(oldState, newState)
	}
}

// setError stores an error atomically and adds it to the error history.
func (f *Feed[T]) setError(err error) {
	e := err
	f.lastError.Store(&e)
	f.errorHistory.push(err)
}

// watch processes updates from the source channel with debouncing.
func (f *Feed[T]) watch(ctx context.Context, updates <-chan []byte) {
	defer func() {
		finalState := f.State()
		capitan.Emit(ctx, FeedStopped,
			KeyState.Field(finalState.String()),
		)
		if f.onStop != nil {
			f.onStop(finalState)
		}
	}()

	var (
		timer      clockz.Timer
		pending    []byte
		hasPending bool
	)

	for {
		// Get timer channel or nil if no timer
		var timerC <-chan time.Time
		if timer != nil {
			timerC = timer.C()
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case raw, ok := <-updates:
			if !ok {
				// Channel closed, process any pending update
				if hasPending {
					_ = f.process(ctx, pending) //nolint:errcheck // Errors stored via setError
				}
				return
			}

			capitan.Emit(ctx, FeedUpdateReceived)
			if f.metrics != nil {
				f.metrics.OnUpdateReceived()
			}
			pending = raw
			hasPending = true

			// Reset or start debounce timer
			if timer == nil {
				timer = f.clock.NewTimer(f.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C():
					default:
					}
				}
				timer.Reset(f.debounce)
			}

		case <-timerC:
			if hasPending {
				_ = f.process(ctx, pending) //nolint:errcheck // Errors stored via setError
				hasPending = false
			}
		}
	}
}
