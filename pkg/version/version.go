// Package version implements the version DAG: parent-linked version nodes,
// branching, joining (nearest common ancestor with distance metrics),
// rebasing, pinning, and chain garbage collection.
//
// A Version is a unique object for its lifetime; pointer identity is
// version identity (spec.md's "pointer identity is version identity").
// VRef wraps a *Version for use inside tree node/leaf headers.
package version

import (
	"errors"
	"sync"

	"vtree/pkg/refcount"
)

// JoinLimit bounds how deep Join walks each chain before giving up. The
// protocol requires a transaction to commit only after all of its nested
// children have committed, so in normal operation the join point is within
// two steps; a deeper join signals an unsupported nesting pattern.
const JoinLimit = 3

// DebugChecks gates the debug-only child-count bookkeeping described by
// original_source/ver.c. It defaults to false so ordinary branch/join/GC
// traffic does not pay for assertions that only matter while developing
// against this package.
var DebugChecks = false

// ErrJoinFail is returned by Join when no common ancestor is found within
// JoinLimit steps of either chain.
var ErrJoinFail = errors.New("version: no common ancestor within JoinLimit")

// Version is a node in the version DAG. Root versions have a nil parent.
// If v.parent == p, v holds exactly one reference on p; that reference is
// released when v itself is released (Put reaching zero).
type Version struct {
	mu       sync.Mutex
	parent   *Version
	ref      *refcount.Counter
	children int // debug-only, guarded by mu; counts live branches off this version
}

// Create allocates a new parentless root version with refcount 1.
func Create() *Version {
	return &Version{ref: refcount.New(1)}
}

// Branch allocates a new version whose parent is parent, taking a
// reference on parent on the new version's behalf. parent must not be nil;
// use Create for a root.
func Branch(parent *Version) *Version {
	if parent == nil {
		panic("version: Branch requires a non-nil parent")
	}
	Get(parent)
	if DebugChecks {
		parent.mu.Lock()
		parent.children++
		parent.mu.Unlock()
	}
	return &Version{parent: parent, ref: refcount.New(1)}
}

// Get takes a reference on v.
func Get(v *Version) {
	v.ref.Inc()
}

// Put releases a reference on v. If it was the last reference, v's parent
// reference (if any) is released in turn, which may cascade.
func Put(v *Version) {
	v.ref.Dec(func() {
		if v.parent != nil {
			if DebugChecks {
				v.parent.mu.Lock()
				v.parent.children--
				v.parent.mu.Unlock()
			}
			Put(v.parent)
		}
	})
}

// Eq reports whether a and b are the same version object.
func Eq(a, b *Version) bool {
	return a == b
}

// Parent returns v's parent, or nil for a root version.
func Parent(v *Version) *Version {
	return v.parent
}

// Ancestor reports whether a is encountered while walking up from b,
// inclusive of b == a.
func Ancestor(a, b *Version) bool {
	for cur := b; cur != nil; cur = cur.parent {
		if cur == a {
			return true
		}
	}
	return false
}

// AncestorLimit is Ancestor bounded to at most d parent-steps from b.
func AncestorLimit(a, b *Version, d int) bool {
	cur := b
	for i := 0; i <= d; i++ {
		if cur == nil {
			return false
		}
		if cur == a {
			return true
		}
		cur = cur.parent
	}
	return false
}

// AncestorStrictLimit is AncestorLimit excluding the b == a case.
func AncestorStrictLimit(a, b *Version, d int) bool {
	if a == b {
		return false
	}
	return AncestorLimit(a, b, d)
}

// JoinResult is the outcome of a successful Join.
type JoinResult struct {
	Join  *Version // the nearest common ancestor
	HPVer *Version // child of Join on the path toward p; nil if p itself is Join
	GDist int       // distance from g to Join
	PDist int       // distance from p to Join
}

// Join finds the nearest common ancestor of g and p. On the fast path, if
// g and p share a parent, that parent is returned immediately. Otherwise
// both chains are walked up to JoinLimit steps in a nested loop; each chain
// holds its starting version plus up to JoinLimit ancestors, so if no match
// is found within (JoinLimit+1) x (JoinLimit+1) comparisons, ErrJoinFail is
// returned.
func Join(g, p *Version) (JoinResult, error) {
	if g == p {
		return JoinResult{Join: g}, nil
	}
	if g.parent != nil && g.parent == p.parent {
		return JoinResult{Join: g.parent, HPVer: p, GDist: 1, PDist: 1}, nil
	}

	gchain := chain(g, JoinLimit)
	pchain := chain(p, JoinLimit)
	for pj, pv := range pchain {
		for gi, gv := range gchain {
			if gv == pv {
				var hp *Version
				if pj > 0 {
					hp = pchain[pj-1]
				}
				return JoinResult{Join: gv, HPVer: hp, GDist: gi, PDist: pj}, nil
			}
		}
	}
	return JoinResult{}, ErrJoinFail
}

func chain(v *Version, limit int) []*Version {
	out := make([]*Version, 0, limit+1)
	for cur, i := v, 0; cur != nil && i <= limit; cur, i = cur.parent, i+1 {
		out = append(out, cur)
	}
	return out
}

// RebasePrepare marks intent to reparent a descendant chain under
// newParent, taking a reference that keeps newParent alive for the
// duration of the merge window. Pair with RebaseCommit or RebaseAbort.
func RebasePrepare(newParent *Version) {
	Get(newParent)
}

// RebaseCommit swaps hpver's parent from its old ancestor to newParent,
// consuming the reference taken by RebasePrepare as hpver's new parent
// reference and releasing the old one.
func RebaseCommit(hpver, newParent *Version) {
	hpver.mu.Lock()
	old := hpver.parent
	hpver.parent = newParent
	hpver.mu.Unlock()
	if old != nil {
		Put(old)
	}
}

// RebaseAbort undoes a RebasePrepare whose merge did not succeed,
// releasing the reference taken on newParent without reparenting anything.
func RebaseAbort(newParent *Version) {
	Put(newParent)
}

// Pin atomically promotes newVer to be the mtree's committed version,
// taking an extra reference on it, and releases the pin previously held on
// oldVer (nil if there was none).
func Pin(newVer, oldVer *Version) {
	Get(newVer)
	if oldVer != nil {
		Unpin(oldVer)
	}
}

// Unpin releases a pin reference held on v.
func Unpin(v *Version) {
	Put(v)
}

// VerTreeGC walks v's parent chain starting at v.parent, collecting any
// ancestor whose refcount has dropped to 1 -- meaning only the child-link
// being walked keeps it alive -- and splices it out of the chain. Callers
// run this under their own GC-serializing lock (spec.md's gc_lock) to
// avoid racing with a concurrent rebase.
func VerTreeGC(v *Version) {
	if v == nil {
		return
	}
	for {
		p := v.parent
		if p == nil {
			return
		}
		if p.ref.Get() != 1 {
			v = p
			continue
		}
		next := p.parent
		if next != nil {
			Get(next)
		}
		v.mu.Lock()
		v.parent = next
		v.mu.Unlock()
		Put(p)
	}
}
