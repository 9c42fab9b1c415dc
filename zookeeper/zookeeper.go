// Package zookeeper provides a tether.Source implementation for ZooKeeper
// nodes using the native Watch API.
package zookeeper

import (
	"context"

	"github.com/go-zookeeper/zk"
)

// Source watches a ZooKeeper node for changes.
type Source struct {
	conn        *zk.Conn
	path        string
	deleteValue []byte
}

// Option configures a Source.
type Option func(*Source)

// WithDeleteValue sets the bytes emitted when the node is deleted. The
// fed property re-runs its normal decode and validation on these bytes,
// so a serialized default here reverts the property when the node
// disappears. Without this option deletion is silent and the property
// keeps its last applied value until the node is recreated.
func WithDeleteValue(data []byte) Option {
	return func(s *Source) {
		s.deleteValue = data
	}
}

// New creates a new Source for the given ZooKeeper path.
func New(conn *zk.Conn, path string, opts ...Option) *Source {
	s := &Source{
		conn: conn,
		path: path,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Watch begins watching the ZooKeeper node and returns a channel that emits
// the node's data whenever it changes. The current value is emitted
// immediately to support initial loading. A missing node is watched for
// creation rather than treated as an error.
func (s *Source) Watch(ctx context.Context) (<-chan []byte, error) {
	out := make(chan []byte)

	go func() {
		defer close(out)

		for {
			// Get current value and set watch
			data, _, eventCh, err := s.conn.GetW(s.path)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				// Node doesn't exist yet, watch for creation
				exists, _, eventCh, err := s.conn.ExistsW(s.path)
				if err != nil {
					return
				}
				if !exists {
					select {
					case <-ctx.Done():
						return
					case <-eventCh:
						continue // Re-loop to get the value
					}
				}
				continue
			}

			// Emit current value
			select {
			case out <- data:
			case <-ctx.Done():
				return
			}

			// Wait for change
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if event.Type == zk.EventNodeDeleted {
					if s.deleteValue != nil {
						select {
						case out <- s.deleteValue:
						case <-ctx.Done():
							return
						}
					}
					continue
				}
				// Loop back to get new value and set new watch
			}
		}
	}()

	return out, nil
}
