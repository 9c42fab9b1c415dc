package tether

import (
	"context"
	"slices"

	"github.com/zoobzio/capitan"
)

// BindTo adds a one-way binding edge from p to target: every value
// accepted by p is pushed to target through target's own coercer and
// validator. Adding an existing edge, a nil target, or p itself is a
// no-op.
//
// Propagation is one hop. The pushed value does not trigger target's
// callbacks and does not continue to target's own bound targets.
//
// Edges hold plain references: a bound target is kept alive by the edge
// and keeps receiving pushes until unbound. Unbind before discarding
// either side.
func (p *Property[T]) BindTo(target *Property[T]) {
	if target == nil || target == p {
		return
	}

	p.mu.Lock()
	if slices.Contains(p.targets, target) {
		p.mu.Unlock()
		return
	}
	p.targets = append(p.targets, target)
	p.mu.Unlock()

	capitan.Emit(context.Background(), PropertyBound,
		KeySource.Field(p.label()),
		KeyTarget.Field(target.label()),
	)
}

// UnbindTo removes the one-way binding edge from p to target.
// An absent edge or a nil target is a no-op.
func (p *Property[T]) UnbindTo(target *Property[T]) {
	if target == nil {
		return
	}

	p.mu.Lock()
	i := slices.Index(p.targets, target)
	if i < 0 {
		p.mu.Unlock()
		return
	}
	p.targets = slices.Delete(p.targets, i, i+1)
	p.mu.Unlock()

	capitan.Emit(context.Background(), PropertyUnbound,
		KeySource.Field(p.label()),
		KeyTarget.Field(target.label()),
	)
}

// BindFrom adds a one-way binding edge from source to p, so that values
// accepted by source are pushed to p. Equivalent to source.BindTo(p).
func (p *Property[T]) BindFrom(source *Property[T]) {
	if source == nil {
		return
	}
	source.BindTo(p)
}

// UnbindFrom removes the one-way binding edge from source to p.
func (p *Property[T]) UnbindFrom(source *Property[T]) {
	if source == nil {
		return
	}
	source.UnbindTo(p)
}

// Bind adds binding edges in both directions between p and other.
// Two-way binding is exactly two independent one-way edges: values
// accepted by either side are pushed to the other, one hop, without
// echo. Removing one direction leaves the other intact.
func (p *Property[T]) Bind(other *Property[T]) {
	p.BindTo(other)
	p.BindFrom(other)
}

// Unbind removes the binding edges in both directions between p and
// other.
func (p *Property[T]) Unbind(other *Property[T]) {
	p.UnbindTo(other)
	p.UnbindFrom(other)
}

// Bindings returns the number of outgoing binding edges.
func (p *Property[T]) Bindings() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.targets)
}
