package tether

import "reflect"

// OnChange registers fn to be invoked after every committed transition.
// Callbacks run in ascending CallbackID order, outside the instance lock,
// after the new value is stored.
//
// The returned ID removes the callback via RemoveCallback. Freed IDs are
// recycled oldest-first, so an ID only identifies a callback until it is
// removed.
func (p *Property[T]) OnChange(fn ChangeCallback[T]) CallbackID {
	p.mu.Lock()
	defer p.mu.Unlock()

	var id CallbackID
	if len(p.freeIDs) > 0 {
		id = p.freeIDs[0]
		p.freeIDs = p.freeIDs[1:]
	} else {
		id = p.nextID
		p.nextID++
	}
	p.callbacks[id] = fn
	return id
}

// RemoveCallback removes the callback registered under id and returns
// the ID to the free queue. An unknown id is a no-op.
func (p *Property[T]) RemoveCallback(id CallbackID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.callbacks[id]; !ok {
		return
	}
	delete(p.callbacks, id)
	p.freeIDs = append(p.freeIDs, id)
}

// RemoveCallbackFunc removes at most one callback whose function matches
// fn, preferring the smallest ID when several match.
//
// Matching is best effort, by code pointer: reliable for named functions
// and method values, but every closure created from the same function
// literal shares a code pointer and is indistinguishable here. Prefer
// RemoveCallback with the ID returned by OnChange.
func (p *Property[T]) RemoveCallbackFunc(fn ChangeCallback[T]) {
	if fn == nil {
		return
	}
	ptr := reflect.ValueOf(fn).Pointer()

	p.mu.Lock()
	defer p.mu.Unlock()

	var match CallbackID
	found := false
	for id, cb := range p.callbacks {
		if reflect.ValueOf(cb).Pointer() != ptr {
			continue
		}
		if !found || id < match {
			match = id
			found = true
		}
	}
	if !found {
		return
	}
	delete(p.callbacks, match)
	p.freeIDs = append(p.freeIDs, match)
}

// Callbacks returns the number of registered callbacks.
func (p *Property[T]) Callbacks() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.callbacks)
}
