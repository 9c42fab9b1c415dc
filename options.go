package tether

import (
	"context"
	"time"

	"github.com/zoobzio/pipz"
)

// FeedOption configures the processing pipeline for a Feed or MultiFeed.
// Pipeline options wrap the apply stage with middleware for retry,
// timeout, circuit breaking, and other reliability patterns.
//
// Instance configuration (debounce, sync mode, codec, etc.) is handled via
// chainable methods on the Feed/MultiFeed before calling Start().
type FeedOption[T any] func(pipz.Chainable[*Delivery[T]]) pipz.Chainable[*Delivery[T]]

// buildPipeline wraps a terminal with pipeline options.
func buildPipeline[T any](terminal pipz.Chainable[*Delivery[T]], opts []FeedOption[T]) pipz.Chainable[*Delivery[T]] {
	pipeline := terminal
	for _, opt := range opts {
		pipeline = opt(pipeline)
	}
	return pipeline
}

// -----------------------------------------------------------------------------
// Pipeline Options - Wrapping (With*)
// -----------------------------------------------------------------------------
// These options wrap the entire pipeline, providing protection at the boundary.
// Use for resilience patterns that should apply to all processing.

// WithRetry wraps the pipeline with retry logic.
// Failed operations are retried immediately up to maxAttempts times.
// For exponential backoff between retries, use WithBackoff instead.
func WithRetry[T any](maxAttempts int) FeedOption[T] {
	return func(p pipz.Chainable[*Delivery[T]]) pipz.Chainable[*Delivery[T]] {
		return pipz.NewRetry("retry", p, maxAttempts)
	}
}

// WithBackoff wraps the pipeline with exponential backoff retry logic.
// Failed operations are retried with increasing delays: baseDelay, 2*baseDelay, 4*baseDelay, etc.
func WithBackoff[T any](maxAttempts int, baseDelay time.Duration) FeedOption[T] {
	return func(p pipz.Chainable[*Delivery[T]]) pipz.Chainable[*Delivery[T]] {
		return pipz.NewBackoff("backoff", p, maxAttempts, baseDelay)
	}
}

// WithTimeout wraps the pipeline with a timeout.
// If processing takes longer than the specified duration, the operation
// fails with a timeout error.
func WithTimeout[T any](d time.Duration) FeedOption[T] {
	return func(p pipz.Chainable[*Delivery[T]]) pipz.Chainable[*Delivery[T]] {
		return pipz.NewTimeout("timeout", p, d)
	}
}

// WithFallback wraps the pipeline with fallback processors.
// If the primary pipeline fails, each fallback is tried in order until one
// succeeds. A fallback rewrites the delivery and feeds it back through the
// pipeline, so a fallback value still reaches the property through the
// normal assignment protocol.
func WithFallback[T any](fallbacks ...pipz.Chainable[*Delivery[T]]) FeedOption[T] {
	return func(p pipz.Chainable[*Delivery[T]]) pipz.Chainable[*Delivery[T]] {
		all := make([]pipz.Chainable[*Delivery[T]], 0, len(fallbacks)+1)
		all = append(all, p)
		for _, fb := range fallbacks {
			all = append(all, pipz.NewSequence("fallback-path", fb, p))
		}
		return pipz.NewFallback("fallback", all...)
	}
}

// WithCircuitBreaker wraps the pipeline with circuit breaker protection.
// After 'failures' consecutive failures, the circuit opens and rejects
// further updates until 'recovery' time has passed.
//
// The circuit breaker has three states:
//   - Closed: Normal operation, updates pass through
//   - Open: After threshold failures, updates are rejected immediately
//   - Half-Open: After recovery timeout, one update is allowed to test recovery
//
// Note: Circuit breaker is stateful and protects the entire pipeline.
// There is no Use* equivalent - it only makes sense as a wrapper.
func WithCircuitBreaker[T any](failures int, recovery time.Duration) FeedOption[T] {
	return func(p pipz.Chainable[*Delivery[T]]) pipz.Chainable[*Delivery[T]] {
		return pipz.NewCircuitBreaker("circuit-breaker", p, failures, recovery)
	}
}

// WithErrorHandler adds error observation to the pipeline.
// Errors are passed to the handler for logging, metrics, or alerting,
// but the error still propagates. Use this for observability, not recovery.
//
// Note: There is no Use* equivalent - error handling wraps the pipeline.
func WithErrorHandler[T any](handler pipz.Chainable[*pipz.Error[*Delivery[T]]]) FeedOption[T] {
	return func(p pipz.Chainable[*Delivery[T]]) pipz.Chainable[*Delivery[T]] {
		return pipz.NewHandle("error-handler", p, handler)
	}
}

// -----------------------------------------------------------------------------
// Pipeline Options - Middleware Composition
// -----------------------------------------------------------------------------

// WithMiddleware wraps the pipeline with a sequence of processors.
// Processors execute in order, with the wrapped pipeline (apply) last.
//
// Use the Use* functions to create processors for common patterns,
// or provide custom pipz.Chainable implementations directly.
//
// Example:
//
//	tether.NewFeed(prop, source,
//	    tether.WithMiddleware(
//	        tether.UseEffect[Config]("log", logFn),
//	        tether.UseApply[Config]("enrich", enrichFn),
//	        tether.UseRateLimit[Config](10, 5),
//	    ),
//	    tether.WithCircuitBreaker[Config](5, 30*time.Second),
//	).Debounce(200 * time.Millisecond)
func WithMiddleware[T any](processors ...pipz.Chainable[*Delivery[T]]) FeedOption[T] {
	return func(p pipz.Chainable[*Delivery[T]]) pipz.Chainable[*Delivery[T]] {
		all := make([]pipz.Chainable[*Delivery[T]], 0, len(processors)+1)
		all = append(all, processors...)
		all = append(all, p)
		return pipz.NewSequence("middleware", all...)
	}
}

// -----------------------------------------------------------------------------
// Middleware Processors - Adapters (Use*)
// -----------------------------------------------------------------------------
// These create processors for use inside WithMiddleware.
// They transform or observe the delivery as it flows through the pipeline.

// UseTransform creates a processor that transforms the delivery.
// Cannot fail. Use for pure transformations that always succeed.
func UseTransform[T any](name string, fn func(context.Context, *Delivery[T]) *Delivery[T]) pipz.Chainable[*Delivery[T]] {
	return pipz.Transform(pipz.Name(name), fn)
}

// UseApply creates a processor that can transform the delivery and fail.
// Use for operations like enrichment, validation, or transformation
// that may produce errors.
func UseApply[T any](name string, fn func(context.Context, *Delivery[T]) (*Delivery[T], error)) pipz.Chainable[*Delivery[T]] {
	return pipz.Apply(pipz.Name(name), fn)
}

// UseEffect creates a processor that performs a side effect.
// The delivery passes through unchanged. Use for logging, metrics,
// or notifications that should not affect the delivered value.
func UseEffect[T any](name string, fn func(context.Context, *Delivery[T]) error) pipz.Chainable[*Delivery[T]] {
	return pipz.Effect(pipz.Name(name), fn)
}

// UseMutate creates a processor that conditionally transforms the delivery.
// The transformer is only applied if the condition returns true.
func UseMutate[T any](name string, transformer func(context.Context, *Delivery[T]) *Delivery[T], condition func(context.Context, *Delivery[T]) bool) pipz.Chainable[*Delivery[T]] {
	return pipz.Mutate(pipz.Name(name), transformer, condition)
}

// UseEnrich creates a processor that attempts optional enhancement.
// If the enrichment fails, the error is logged but processing continues
// with the original delivery. Use for non-critical enhancements.
func UseEnrich[T any](name string, fn func(context.Context, *Delivery[T]) (*Delivery[T], error)) pipz.Chainable[*Delivery[T]] {
	return pipz.Enrich(pipz.Name(name), fn)
}

// -----------------------------------------------------------------------------
// Middleware Processors - Wrapping (Use*)
// -----------------------------------------------------------------------------
// These wrap another processor with reliability logic.

// UseRetry wraps a processor with retry logic.
// Failed operations are retried immediately up to maxAttempts times.
func UseRetry[T any](maxAttempts int, processor pipz.Chainable[*Delivery[T]]) pipz.Chainable[*Delivery[T]] {
	return pipz.NewRetry("retry", processor, maxAttempts)
}

// UseBackoff wraps a processor with exponential backoff retry logic.
// Failed operations are retried with increasing delays.
func UseBackoff[T any](maxAttempts int, baseDelay time.Duration, processor pipz.Chainable[*Delivery[T]]) pipz.Chainable[*Delivery[T]] {
	return pipz.NewBackoff("backoff", processor, maxAttempts, baseDelay)
}

// UseTimeout wraps a processor with a deadline.
// If processing takes longer than the specified duration, the operation fails.
func UseTimeout[T any](d time.Duration, processor pipz.Chainable[*Delivery[T]]) pipz.Chainable[*Delivery[T]] {
	return pipz.NewTimeout("timeout", processor, d)
}

// UseFallback wraps a processor with fallback alternatives.
// If the primary fails, each fallback is tried in order.
func UseFallback[T any](primary pipz.Chainable[*Delivery[T]], fallbacks ...pipz.Chainable[*Delivery[T]]) pipz.Chainable[*Delivery[T]] {
	all := append([]pipz.Chainable[*Delivery[T]]{primary}, fallbacks...)
	return pipz.NewFallback("fallback", all...)
}

// UseFilter wraps a processor with a condition.
// If the condition returns false, the delivery passes through unchanged.
func UseFilter[T any](name string, condition func(context.Context, *Delivery[T]) bool, processor pipz.Chainable[*Delivery[T]]) pipz.Chainable[*Delivery[T]] {
	return pipz.NewFilter(pipz.Name(name), condition, processor)
}

// -----------------------------------------------------------------------------
// Middleware Processors - Standalone (Use*)
// -----------------------------------------------------------------------------
// These create standalone processors that don't wrap anything.

// UseRateLimit creates a rate limiting processor.
// Uses a token bucket algorithm with the specified rate (tokens per second)
// and burst size. When tokens are exhausted, updates wait for availability.
func UseRateLimit[T any](rate float64, burst int) pipz.Chainable[*Delivery[T]] {
	return pipz.NewRateLimiter[*Delivery[T]]("rate-limiter", rate, burst)
}
