package cache

import "slices"

// Mutation is an applied optimistic change awaiting the server's verdict.
// Exactly one of Commit or Rollback must be called.
type Mutation[T any] struct {
	key     string
	prev    []T
	version uint64 // entry version right after apply
	epoch   uint64
	undo    func([]T) []T
	done    bool
}

// Previous returns the list as it was before the mutation
func (m *Mutation[T]) Previous() []T {
	return slices.Clone(m.prev)
}

// MutateOptimistic applies apply to key's list immediately and returns
// the mutation for later Commit or Rollback. undo reverses only this
// mutation's effect; it is used when other writes landed on key in the
// meantime and may be nil.
func (c *Cache[T]) MutateOptimistic(key string, apply, undo func([]T) []T) *Mutation[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(key)
	prev := slices.Clone(e.data)
	e.data = slices.Clone(apply(slices.Clone(e.data)))
	e.version++
	e.pending++
	e.mutatedAt = c.now()

	return &Mutation[T]{key: key, prev: prev, version: e.version, epoch: e.epoch, undo: undo}
}

// Rollback reverts m. If nothing else touched the entry since m was
// applied, the previous list is restored exactly. After a Reset the list
// no longer carries m's change and is left as is.
func (c *Cache[T]) Rollback(m *Mutation[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m == nil || m.done {
		return
	}
	m.done = true

	e, ok := c.entries[m.key]
	if !ok {
		return
	}
	e.pending--
	switch {
	case e.epoch != m.epoch:
		return
	case e.version == m.version || m.undo == nil:
		e.data = slices.Clone(m.prev)
	default:
		e.data = slices.Clone(m.undo(slices.Clone(e.data)))
	}
	e.version++
}

// Commit resolves m as accepted. reconcile, if non-nil, folds the
// server's answer into the current list.
func (c *Cache[T]) Commit(m *Mutation[T], reconcile func([]T) []T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m == nil || m.done {
		return
	}
	m.done = true

	e, ok := c.entries[m.key]
	if !ok {
		return
	}
	e.pending--
	if reconcile != nil {
		e.data = slices.Clone(reconcile(slices.Clone(e.data)))
		e.version++
	}
}
