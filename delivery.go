package tether

import "context"

// Delivery carries a decoded update through the processing pipeline.
// It provides access to both the previous and incoming values, allowing
// pipeline stages to make decisions based on what changed.
type Delivery[T any] struct {
	// Previous is the property value before this update.
	// On initial load, this is the property's construction value.
	Previous T

	// Current is the newly decoded value. Pipeline stages may modify
	// this value before it is applied to the property.
	Current T

	// Raw contains the original bytes received from the source.
	// This is useful for debugging or logging purposes.
	Raw []byte

	// Outcome is the result of applying the update to the property.
	// It is set by the terminal apply stage and is meaningful only after
	// the pipeline has run.
	Outcome Outcome
}

// Reducer merges values from multiple sources into a single value.
// It receives the previously merged per-source values (nil on first call)
// and the current decoded values in the same order as the sources were
// provided.
type Reducer[T any] func(ctx context.Context, prev, curr []T) (T, error)
