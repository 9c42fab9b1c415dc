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

// SourceError represents an error from a specific source in a MultiFeed.
type SourceError struct {
	Index int
	Error error
}

// MultiFeed drives a Property from multiple sources. Each source's bytes
// are decoded separately and the slice of decoded values is merged by a
// reducer into the single value applied to the property.
type MultiFeed[T any] struct {
	prop           *Property[T]
	sources        []Source
	reducer        Reducer[T]
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
	sourceErrors atomic.Pointer[[]SourceError]

	mu      sync.Mutex
	started bool

	// For sync mode
	sourceChans []<-chan []byte
	latest      [][]byte

	// Track decoded values for the reducer's prev argument
	latestParsed atomic.Pointer[[]T]
}

// ComposeFeed creates a MultiFeed merging several sources into one
// property.
//
// Each source emits raw bytes when it changes. Bytes from each source are
// decoded to type T using the configured codec. When all sources are
// ready, the reducer receives the previous and new slices of decoded
// values in the same order as the sources; on initial load, prev is nil.
// The merged value is applied to the property through its normal
// assignment protocol.
//
// Pipeline options (With*) configure the processing pipeline. Instance
// configuration uses chainable methods before calling Start().
//
// Example:
//
//	merged := tether.ComposeFeed(prop,
//	    func(ctx context.Context, prev, curr []Config) (Config, error) {
//	        out := curr[0]  // defaults
//	        if curr[1].Port != 0 {
//	            out.Port = curr[1].Port  // file overrides
//	        }
//	        return out, nil
//	    },
//	    []tether.Source{defaultsSource, fileSource},
//	).Debounce(200 * time.Millisecond)
func ComposeFeed[T any](p *Property[T], reducer Reducer[T], sources []Source, opts ...FeedOption[T]) *MultiFeed[T] {
	terminal := pipz.Apply(applyID, func(ctx context.Context, d *Delivery[T]) (*Delivery[T], error) {
		d.Outcome = p.SetContext(ctx, d.Current)
		if d.Outcome == OutcomeRejected {
			return d, ErrRejected
		}
		return d, nil
	})
	pipeline := buildPipeline(terminal, opts)

	f := &MultiFeed[T]{
		prop:         p,
		sources:      sources,
		reducer:      reducer,
		pipeline:     pipeline,
		debounce:     DefaultDebounce,
		clock:        clockz.RealClock,
		codec:        JSONCodec{},
		errorHistory: newRing[error](0),
		latest:       make([][]byte, len(sources)),
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
func (f *MultiFeed[T]) Debounce(d time.Duration) *MultiFeed[T] {
	f.debounce = d
	return f
}

// SyncMode enables synchronous processing for testing.
// In sync mode, updates are processed immediately without debouncing
// or async goroutines, making tests deterministic. Must be called before Start().
func (f *MultiFeed[T]) SyncMode() *MultiFeed[T] {
	f.syncMode = true
	return f
}

// Clock sets a custom clock for time operations.
// Use this with clockz.FakeClock for deterministic debounce testing.
// Must be called before Start().
func (f *MultiFeed[T]) Clock(clock clockz.Clock) *MultiFeed[T] {
	f.clock = clock
	return f
}

// Codec sets the codec for decoding update data.
// Default: JSONCodec. Must be called before Start().
func (f *MultiFeed[T]) Codec(codec Codec) *MultiFeed[T] {
	f.codec = codec
	return f
}

// StartupTimeout sets the maximum duration to wait for the initial
// value from each source. If any source fails to emit within this
// duration, Start() returns an error.
// Default: no timeout (wait indefinitely). Must be called before Start().
func (f *MultiFeed[T]) StartupTimeout(d time.Duration) *MultiFeed[T] {
	f.startupTimeout = d
	return f
}

// Metrics sets a metrics provider for observability integration.
// The provider receives callbacks on state changes, apply success/failure,
// and update events. Must be called before Start().
func (f *MultiFeed[T]) Metrics(provider MetricsProvider) *MultiFeed[T] {
	f.metrics = provider
	return f
}

// OnStop sets a callback that is invoked when the feed stops watching.
// The callback receives the final state of the feed. Must be called before Start().
func (f *MultiFeed[T]) OnStop(fn func(State)) *MultiFeed[T] {
	f.onStop = fn
	return f
}

// ErrorHistorySize sets the number of recent errors to retain.
// When set, ErrorHistory() returns up to this many recent errors.
// Use 0 (default) to only retain the most recent error via LastError().
// Must be called before Start().
func (f *MultiFeed[T]) ErrorHistorySize(n int) *MultiFeed[T] {
	f.errorHistory = newRing[error](n)
	return f
}

// Property returns the property this feed drives.
func (f *MultiFeed[T]) Property() *Property[T] {
	return f.prop
}

// State returns the current state of the MultiFeed.
func (f *MultiFeed[T]) State() State {
	return State(f.state.Load())
}

// Current returns the property's value and true once the feed has applied
// at least one merged update, or the property's value and false before that.
func (f *MultiFeed[T]) Current() (T, bool) {
	return f.prop.Value(), f.applied.Load()
}

// LastError returns the last error encountered.
func (f *MultiFeed[T]) LastError() error {
	ptr := f.lastError.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// ErrorHistory returns the recent error history, oldest first.
// Returns nil if error history is not enabled (see ErrorHistorySize).
func (f *MultiFeed[T]) ErrorHistory() []error {
	return f.errorHistory.all()
}

// SourceErrors returns errors from individual sources, if any.
// This provides granular insight into which sources are failing.
func (f *MultiFeed[T]) SourceErrors() []SourceError {
	ptr := f.sourceErrors.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// Start begins watching all sources.
func (f *MultiFeed[T]) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return fmt.Errorf("feed already started")
	}
	f.started = true
	f.mu.Unlock()

	if len(f.sources) == 0 {
		return fmt.Errorf("compose requires at least one source")
	}

	capitan.Emit(ctx, FeedStarted,
		KeyProperty.Field(f.prop.label()),
		KeyDebounce.Field(f.debounce),
	)

	// Start all source watchers
	f.sourceChans = make([]<-chan []byte, len(f.sources))
	for i, src := range f.sources {
		ch, err := src.Watch(ctx)
		if err != nil {
			return fmt.Errorf("failed to start source %d: %w", i, err)
		}
		f.sourceChans[i] = ch
	}

	// Wait for initial value from each source
	// Wrap context with startup timeout if configured
	startupCtx := ctx
	if f.startupTimeout > 0 {
		var cancel context.CancelFunc
		startupCtx, cancel = f.clock.WithTimeout(ctx, f.startupTimeout)
		defer cancel()
	}

	for i, ch := range f.sourceChans {
		select {
		case <-startupCtx.Done():
			if f.startupTimeout > 0 && startupCtx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("startup timeout: source %d did not emit initial value within %v", i, f.startupTimeout)
			}
			return startupCtx.Err()
		case raw, ok := <-ch:
			if !ok {
				return fmt.Errorf("source %d closed before emitting initial value", i)
			}
			f.latest[i] = raw
		}
	}

	capitan.Emit(ctx, FeedUpdateReceived)
	if f.metrics != nil {
		f.metrics.OnUpdateReceived()
	}

	// Process initial merged value
	initialErr := f.process(ctx)

	if f.syncMode {
		return initialErr
	}

	// Continue watching asynchronously
	go f.watch(ctx)

	return initialErr
}

// Process manually processes pending updates in sync mode.
func (f *MultiFeed[T]) Process(ctx context.Context) bool {
	if !f.syncMode {
		return false
	}

	// Check each source for new value (non-blocking)
	changed := false
	for i, ch := range f.sourceChans {
		select {
		case raw, ok := <-ch:
			if !ok {
				continue
			}
			f.latest[i] = raw
			changed = true
		default:
		}
	}

	if changed {
		capitan.Emit(ctx, FeedUpdateReceived)
		if f.metrics != nil {
			f.metrics.OnUpdateReceived()
		}
		_ = f.process(ctx) //nolint:errcheck // Errors stored via setError
		return true
	}
	return false
}

// process decodes each source, reduces, and applies the merged value.
func (f *MultiFeed[T]) process(ctx context.Context) error {
	start := f.clock.Now()
	oldState := f.State()

	// Decode each source, collecting any errors
	results := make([]T, len(f.latest))
	var sourceErrs []SourceError

	for i, raw := range f.latest {
		var result T
		if err := f.codec.Unmarshal(raw, &result); err != nil {
			sourceErrs = append(sourceErrs, SourceError{Index: i, Error: err})
			f.setError(err)
			f.setSourceErrors(sourceErrs)
			f.transitionState(ctx, oldState, f.failureState())
			capitan.Emit(ctx, FeedDecodeFailed,
				KeySourceIndex.Field(i),
				KeyError.Field(err.Error()),
			)
			if f.metrics != nil {
				f.metrics.OnApplyFailure("decode", f.clock.Since(start))
			}
			return fmt.Errorf("decode source %d failed: %w", i, err)
		}
		results[i] = result
	}

	// Get previous decoded values for reducer (nil on first call)
	var prev []T
	if ptr := f.latestParsed.Load(); ptr != nil {
		prev = *ptr
	}

	// Reduce all decoded values to the final merged value
	merged, err := f.reducer(ctx, prev, results)
	if err != nil {
		f.setError(err)
		f.transitionState(ctx, oldState, f.failureState())
		capitan.Emit(ctx, FeedPipelineFailed,
			KeyStage.Field("reduce"),
			KeyError.Field(err.Error()),
		)
		if f.metrics != nil {
			f.metrics.OnApplyFailure("reduce", f.clock.Since(start))
		}
		return fmt.Errorf("reducer failed: %w", err)
	}

	// Build delivery and process through pipeline; the terminal stage
	// applies the merged value to the property.
	d := &Delivery[T]{Previous: f.prop.Value(), Current: merged}
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

	// Success - record merged result and clear errors
	f.applied.Store(true)
	f.latestParsed.Store(&results)
	f.lastError.Store(nil)
	f.errorHistory.clear()
	f.sourceErrors.Store(nil)
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

func (f *MultiFeed[T]) failureState() State {
	if !f.applied.Load() {
		return StateEmpty
	}
	return StateDegraded
}

func (f *MultiFeed[T]) transitionState(ctx context.Context, oldState, newState State) {
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

func (f *MultiFeed[T]) setError(err error) {
	e := err
	f.lastError.Store(&e)
	f.errorHistory.push(err)
}

func (f *MultiFeed[T]) setSourceErrors(errs []SourceError) {
	f.sourceErrors.Store(&errs)
}

// watch processes updates from all sources with debouncing.
func (f *MultiFeed[T]) watch(ctx context.Context) {
	defer func() {
		finalState := f.State()
		capitan.Emit(ctx, FeedStopped,
			KeyState.Field(finalState.String()),
		)
		if f.onStop != nil {
			f.onStop(finalState)
		}
	}()

	// Fan-in channel: source goroutines signal when data arrives
	changed := make(chan int, len(f.sourceChans))

	// Start a goroutine for each source
	var wg sync.WaitGroup
	wg.Add(len(f.sourceChans))

	for i, ch := range f.sourceChans {
		go func(idx int, ch <-chan []byte) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case raw, ok := <-ch:
					if !ok {
						return
					}
					f.latest[idx] = raw
					select {
					case changed <- idx:
					case <-ctx.Done():
						return
					}
				}
			}
		}(i, ch)
	}

	// Single goroutine handles debouncing and processing
	go func() {
		var (
			timer      clockz.Timer
			timerC     <-chan time.Time
			hasPending bool
		)

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case _, ok := <-changed:
				if !ok {
					// All sources closed, process any pending update
					if timer != nil {
						timer.Stop()
					}
					if hasPending {
						_ = f.process(ctx) //nolint:errcheck // Errors stored via setError
					}
					return
				}

				capitan.Emit(ctx, FeedUpdateReceived)
				if f.metrics != nil {
					f.metrics.OnUpdateReceived()
				}
				hasPending = true

				// Reset or start debounce timer
				if timer == nil {
					timer = f.clock.NewTimer(f.debounce)
					timerC = timer.C()
				} else {
					if !timer.Stop() {
						select {
						case <-timerC:
						default:
						}
					}
					timer.Reset(f.debounce)
				}

			case <-timerC:
				if hasPending {
					_ = f.process(ctx) //nolint:errcheck // Errors stored via setError
					hasPending = false
				}
			}
		}
	}()

	wg.Wait()
	close(changed)
}
