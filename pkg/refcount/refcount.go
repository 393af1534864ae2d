// Package refcount implements a mutex-protected reference counter with a
// release callback, used by every shared structure in the versioned tree
// (versions, nodes, leaves, trees) to decide when it is safe to free them.
package refcount

import "sync"

// Counter is a locked 32-bit reference count. The zero value is not usable;
// construct one with New or initialize an embedded Counter with Init.
type Counter struct {
	mu sync.Mutex
	n  int32
}

// New returns a Counter initialized to n.
func New(n int32) *Counter {
	c := &Counter{}
	c.Init(n)
	return c
}

// Init (re)initializes the counter to n. Used when a Counter is embedded in
// a pooled object that gets reused after a Dec reaches zero.
func (c *Counter) Init(n int32) {
	c.mu.Lock()
	c.n = n
	c.mu.Unlock()
}

// Inc increments the counter. It panics if the counter is not currently
// positive: incrementing a released object is always a programming error.
func (c *Counter) Inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n <= 0 {
		panic("refcount: Inc on a released counter")
	}
	c.n++
}

// Dec decrements the counter. If it reaches zero, release is invoked before
// Dec returns, and Dec returns true; release runs without the lock being
// released first, since the object is being destroyed and no further
// Inc/Dec on it is legal. Dec unlocks once release has returned, so a
// later Inc panics and a later Init can reuse the counter. If the counter
// is still positive after the decrement, Dec unlocks and returns false.
func (c *Counter) Dec(release func()) bool {
	c.mu.Lock()
	c.n--
	switch {
	case c.n < 0:
		panic("refcount: Dec below zero")
	case c.n == 0:
		if release != nil {
			release()
		}
		c.mu.Unlock()
		return true
	default:
		c.mu.Unlock()
		return false
	}
}

// TryGet attempts to take a reference without blocking. It fails (returns
// false) if the counter is already zero or if the lock is currently held by
// a concurrent Inc/Dec; callers must tolerate both outcomes, typically by
// retrying through a different path (e.g. re-reading a version pointer
// under its owner's lock).
func (c *Counter) TryGet() bool {
	if !c.mu.TryLock() {
		return false
	}
	defer c.mu.Unlock()
	if c.n <= 0 {
		return false
	}
	c.n++
	return true
}

// Get returns the current count. Intended for assertions and tests; the
// value may be stale the instant it is read under concurrent use.
func (c *Counter) Get() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
