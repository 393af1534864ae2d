// Package memcache implements thread-local free-lists decoupled from the
// general allocator, used by the versioned B+-tree to recycle nodes and
// leaves across copy-on-write churn. A Pool is owned by exactly one
// goroutine (conventionally, one per transaction); it is never shared, so
// it needs no locking of its own.
package memcache

// Pool is a free list of objects of type T. alloc constructs a fresh
// object when the free list is empty; recycle, if non-nil, is invoked on
// an object popped from the free list before it is handed back to the
// caller, so the previous user's outgoing references (e.g. a tree node's
// children) can be released and co-located with reuse rather than left
// for a separate sweep.
type Pool[T any] struct {
	free    []T
	alloc   func() T
	recycle func(T)
}

// NewPool creates a Pool with the given allocator and recycle hook.
func NewPool[T any](alloc func() T, recycle func(T)) *Pool[T] {
	if alloc == nil {
		panic("memcache: NewPool requires a non-nil alloc func")
	}
	return &Pool[T]{alloc: alloc, recycle: recycle}
}

// Prealloc fills the free list with n freshly allocated objects, matching
// spec.md's compile-time "prealloc counts for the cache" configuration
// knob: a transaction that knows its expected working set size can pay
// the allocation cost once, up front, instead of on the first churn.
func (p *Pool[T]) Prealloc(n int) {
	for i := 0; i < n; i++ {
		p.free = append(p.free, p.alloc())
	}
}

// Get pops an object from the free list, running the recycle hook on it
// first, or allocates a new one if the free list is empty.
func (p *Pool[T]) Get() T {
	n := len(p.free)
	if n == 0 {
		return p.alloc()
	}
	obj := p.free[n-1]
	p.free[n-1] = *new(T)
	p.free = p.free[:n-1]
	if p.recycle != nil {
		p.recycle(obj)
	}
	return obj
}

// Put pushes obj onto the free list for later reuse. Put does not itself
// release obj's outgoing references -- that happens lazily, in Get's
// recycle hook, the next time obj is reused.
func (p *Pool[T]) Put(obj T) {
	p.free = append(p.free, obj)
}

// Len reports how many objects are currently parked in the free list.
func (p *Pool[T]) Len() int {
	return len(p.free)
}
