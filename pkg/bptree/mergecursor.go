package bptree

// Range is an inclusive key span a MergeCursor's current position covers,
// the unit the structural merge engine reasons about instead of
// individual keys. Grounded on original_source/merge/vbpt_merge.c's
// vbpt_range.
type Range struct {
	Key uint64
	Len uint64
}

// High returns r's inclusive upper bound.
func (r Range) High() uint64 {
	if r.Len == 0 {
		return r.Key
	}
	return r.Key + r.Len - 1
}

var rangeFull = Range{Key: 0, Len: KeyMax}

// MergeCursor walks a tree structurally for the merge engine: each step
// covers the Range of keys the current position spans, which may be a
// NULL range (no leaf exists over that span) whenever two numerically
// adjacent leaf keys in the tree are not consecutive integers -- an
// ordinary, expected occurrence for any sparse key set, not a rare
// cross-tree artifact. Grounded on vbpt_cur's down/next/sync/replace
// family in the same file.
type MergeCursor struct {
	tree    *Tree
	path    Path
	rng     Range
	null    bool
	nullMax uint64 // the true end of the current/most recent gap; valid once null has ever been set

	// leafResolved marks that down has already narrowed the current
	// (node, slot) position down to its exact leaf-level range (a unit key
	// or a gap bounded by nullMax). A further Down at the same position
	// would recompute the identical range from an unchanged node/slot, so
	// once resolved Down refuses rather than spin Sync in place; it is
	// cleared whenever the cursor actually moves to a new position.
	leafResolved bool
}

// NewMergeCursor creates a cursor positioned at tree's root, covering the
// full key space and not (yet) NULL, per spec.md's cursor init contract.
// An empty tree has no root to position at; its cursor starts already at
// End.
func NewMergeCursor(t *Tree) *MergeCursor {
	c := &MergeCursor{tree: t, rng: rangeFull}
	if t.Root == nil {
		c.null = true
		c.nullMax = KeyMax
		c.rng = Range{Key: 0, Len: 0}
		return c
	}
	c.path.Entries[0] = Entry{Node: t.Root.(*Node), Slot: 0}
	c.path.Height = 1
	return c
}

// Range returns c's current position's key span.
func (c *MergeCursor) Range() Range { return c.rng }

// IsNull reports whether c's current position is a gap rather than real
// tree content.
func (c *MergeCursor) IsNull() bool { return c.null }

// End reports whether c has been walked past the last key in the tree:
// height unwound to 0 and the trailing NULL range reaches KeyMax.
func (c *MergeCursor) End() bool {
	return c.path.Height == 0 && c.null && c.nullMax == KeyMax
}

func (c *MergeCursor) canDescend() bool {
	if c.null || c.path.Height == 0 {
		return false
	}
	e := c.path.Entries[c.path.Height-1]
	if _, ok := e.Node.Items[e.Slot].Child.(*Node); ok {
		return true
	}
	return !c.leafResolved
}

// Down descends c to the subtree at its current slot, narrowing the
// range to the child's coverage (or introducing a NULL range, if the
// child is a leaf whose key is past the range's start). Requires a
// non-NULL current position that has not already been narrowed to leaf
// precision; a no-op otherwise.
func (c *MergeCursor) Down() {
	if !c.canDescend() {
		return
	}
	c.down()
}

func (c *MergeCursor) down() {
	e := c.path.Entries[c.path.Height-1]
	switch ch := e.Node.Items[e.Slot].Child.(type) {
	case *Node:
		key0 := ch.Items[0].Key
		c.rng = Range{Key: c.rng.Key, Len: key0 - c.rng.Key + 1}
		c.null = false
		c.path.Entries[c.path.Height] = Entry{Node: ch, Slot: 0}
		c.path.Height++
		c.leafResolved = false
	case *Leaf:
		key0 := e.Node.Items[e.Slot].Key
		if key0 > c.rng.Key {
			c.rng = Range{Key: c.rng.Key, Len: key0 - c.rng.Key}
			c.null = true
			c.nullMax = key0 - 1
		} else {
			c.rng = Range{Key: key0, Len: 1}
			c.null = false
		}
		c.leafResolved = true
	}
}

// shrinkNullTo clamps a NULL range down to length n, leaving nullMax
// (the gap's true end) untouched so a later Next resumes consuming the
// remaining tail rather than skipping past it.
func (c *MergeCursor) shrinkNullTo(n uint64) {
	if !c.null || n >= c.rng.Len {
		return
	}
	c.rng = Range{Key: c.rng.Key, Len: n}
}

// Sync aligns a and b to the same Range: whichever side is coarser
// descends until they match, except a NULL side (which cannot be
// subdivided further) simply has its reported range clamped down to the
// other's length instead. Grounded on vbpt_cur_sync.
func Sync(a, b *MergeCursor) {
	for {
		switch {
		case a.rng.Len > b.rng.Len && a.canDescend():
			a.down()
		case b.rng.Len > a.rng.Len && b.canDescend():
			b.down()
		case a.rng.Len > b.rng.Len && a.null:
			a.shrinkNullTo(b.rng.Len)
			return
		case b.rng.Len > a.rng.Len && b.null:
			b.shrinkNullTo(a.rng.Len)
			return
		default:
			return
		}
	}
}

// Next advances c to the next sibling range: shrinking a partially
// consumed NULL range to its remaining tail, landing exactly on the leaf
// that ends a gap, or ascending the path to the next sibling slot (itself
// possibly introducing a fresh NULL range, if the next key is not
// immediately adjacent). Grounded on vbpt_cur_next/vbpt_cur_next_leaf.
func (c *MergeCursor) Next() {
	if c.End() {
		return
	}
	if c.null {
		next := c.rng.High() + 1
		if c.nullMax != KeyMax && next <= c.nullMax {
			c.rng = Range{Key: next, Len: c.nullMax - next + 1}
			return
		}
		if c.nullMax == KeyMax {
			c.rng = Range{Key: next, Len: 0}
			return
		}
		c.rng = Range{Key: c.nullMax + 1, Len: 1}
		c.null = false
		return
	}

	for lvl := c.path.Height - 1; lvl >= 0; lvl-- {
		e := c.path.Entries[lvl]
		if e.Slot+1 < e.Node.ItemsNr {
			newSlot := e.Slot + 1
			c.path.Entries[lvl] = Entry{Node: e.Node, Slot: newSlot}
			c.path.Height = lvl + 1
			c.leafResolved = false
			start := c.rng.High() + 1
			key := e.Node.Items[newSlot].Key
			if key > start {
				c.rng = Range{Key: start, Len: key - start}
				c.null = true
				c.nullMax = key - 1
			} else {
				c.rng = Range{Key: key, Len: 1}
				c.null = false
			}
			return
		}
	}

	high := c.rng.High()
	c.path.Height = 0
	c.leafResolved = false
	if high == KeyMax {
		c.null = true
		c.nullMax = KeyMax
		c.rng = Range{Key: high, Len: 0}
		return
	}
	c.rng = Range{Key: high + 1, Len: KeyMax - high}
	c.null = true
	c.nullMax = KeyMax
}

// makeMutable ensures every node on c.path down to and including level
// is private to c.tree.Ver, copy-on-writing and rewiring parent pointers
// top-down where needed, and returns the (now mutable) node at level.
func (c *MergeCursor) makeMutable(level int) *Node {
	n := c.path.Entries[level].Node
	mutable := c.tree.ensureMutable(n)
	if mutable != n {
		if level == 0 {
			putChild(c.tree.Cache, c.tree.Root)
			c.tree.Root = mutable
		} else {
			parent := c.makeMutable(level - 1)
			slot := c.path.Entries[level].Slot
			old := parent.Items[slot].Child
			parent.Items[slot].Child = mutable
			putChild(c.tree.Cache, old)
		}
		c.path.Entries[level] = Entry{Node: mutable, Slot: c.path.Entries[level].Slot}
	}
	return c.path.Entries[level].Node
}

// deleteSlot removes parent's slot-th item, the mark-delete half of the
// merge's replace primitive (the "G deleted this, adopt the deletion into
// P" case). Refuses if parent would be left empty, or if slot is parent's
// rightmost item (avoids needing a high-key cascade into parent's own
// parent), matching spec.md's mark_delete contract. Executed eagerly
// rather than deferred to the cursor's next Next call: nothing observes
// cursor state between this decision and the driver's subsequent Next.
// The item after the removed one slides into slot, so Replace steps the
// cursor's slot back by one after a successful delete; the following Next
// then lands on that item instead of skipping it.
func (dst *MergeCursor) deleteSlot(parent *Node, slot int) bool {
	if parent.ItemsNr <= 1 {
		return false
	}
	if slot == parent.ItemsNr-1 {
		return false
	}
	old := parent.Items[slot].Child
	dst.tree.removeSlotAt(parent, slot)
	putChild(dst.tree.Cache, old)
	return true
}

// Replace adopts src's current content into dst's tree at dst's cursor
// position: an in-place child-pointer swap or insert (plus a refcount
// transfer), never a copy or a re-executed insert/delete, per spec.md
// §4.8's "replace" contract. src being NULL means adopt a deletion
// instead.
//
// Whether this overwrites dst's current slot or inserts a fresh one
// depends on whether that slot's key already equals the range's high
// key: a NULL dst range sits on the slot immediately after the gap, not
// on a placeholder for it, so introducing new content there must shift
// the array rather than clobber that unrelated neighbor. Mirrors the
// original source's insert_ptr, which makes the same overwrite-or-shift
// choice by comparing keys rather than trusting a null flag.
//
// Refuses (reports false, which the merge engine treats as CONFLICT) if
// dst has no current slot to act on, if the insertion would be a
// past-the-end append into a non-root node (changing that node's own
// high key, which would need propagating to its ancestors — a cascade
// this cursor does not implement), if dst's parent has no spare
// capacity, or if dst's and src's positions sit at different remaining
// heights. The original source's do_replace only half-handles the
// height mismatch: it explicitly refuses when G's subtree is taller,
// and its other direction is an unfinished assert. This port also
// declines to build the "chain of single-slot nodes" spec.md describes
// for the taller-G case, because pkg/bptree enforces a single tree-wide
// Height -- every leaf equidistant from the root, relied on by Get and
// Search -- and grafting a locally taller branch would break that
// invariant for every other reader of the tree, not just this slot.
func (dst *MergeCursor) Replace(src *MergeCursor) bool {
	if dst.path.Height == 0 {
		return false
	}
	if !src.null {
		dstHeight := dst.tree.Height - dst.path.Height
		srcHeight := src.tree.Height - src.path.Height
		if dstHeight != srcHeight {
			return false
		}
	}

	level := dst.path.Height - 1
	slot := dst.path.Entries[level].Slot

	var newChild Child
	if !src.null {
		se := src.path.Entries[src.path.Height-1]
		newChild = se.Node.Items[se.Slot].Child
	}

	parent := dst.makeMutable(level)
	if newChild == nil {
		if !dst.deleteSlot(parent, slot) {
			return false
		}
		dst.path.Entries[level] = Entry{Node: parent, Slot: slot - 1}
		return true
	}

	pKey := dst.rng.High()
	if slot < parent.ItemsNr && parent.Items[slot].Key == pKey {
		old := parent.Items[slot].Child
		getChildRef(newChild)
		parent.Items[slot].Child = newChild
		putChild(dst.tree.Cache, old)
		return true
	}

	if slot == parent.ItemsNr && level > 0 {
		return false
	}
	if parent.ItemsNr >= NodeCapacity {
		return false
	}
	getChildRef(newChild)
	dst.tree.shiftInsertSlot(parent, slot, pKey, newChild)
	dst.null = false
	return true
}
