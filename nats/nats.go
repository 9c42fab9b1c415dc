// Package nats provides a tether.Source implementation for NATS KV
// using the native Watch API.
package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Source watches a NATS KV key for changes using the Watch API.
type Source struct {
	kv          jetstream.KeyValue
	key         string
	deleteValue []byte
}

// Option configures a Source.
type Option func(*Source)

// WithDeleteValue sets the bytes emitted when the key is deleted or
// purged. The fed property re-runs its normal decode and validation on
// these bytes, so a serialized default here reverts the property when
// the key disappears. Without this option delete operations are skipped
// and the property keeps its last applied value.
func WithDeleteValue(data []byte) Option {
	return func(s *Source) {
		s.deleteValue = data
	}
}

// New creates a new Source for the given NATS KV key.
func New(kv jetstream.KeyValue, key string, opts ...Option) *Source {
	s := &Source{
		kv:  kv,
		key: key,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Watch begins watching the NATS KV key and returns a channel that emits
// the key's value whenever it changes. The current value is emitted
// immediately to support initial loading.
func (s *Source) Watch(ctx context.Context) (<-chan []byte, error) {
	watcher, err := s.kv.Watch(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to watch key: %w", err)
	}

	out := make(chan []byte)

	go func() {
		defer close(out)
		defer watcher.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				// nil entry signals end of initial values
				if entry == nil {
					continue
				}

				value := entry.Value()
				if entry.Operation() == jetstream.KeyValueDelete || entry.Operation() == jetstream.KeyValuePurge {
					if s.deleteValue == nil {
						continue
					}
					value = s.deleteValue
				}

				select {
				case out <- value:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
