package bptree

import "vtree/pkg/version"

// Tree is a single versioned B+-tree handle: a root pointer (nil for an
// empty tree), an owned version reference, a height (0 for an empty tree,
// otherwise the number of internal node levels above the leaves), and a
// private node/leaf cache.
//
// A Tree is not safe for concurrent use; spec.md's mutable-handle/
// transaction layer (pkg/txtree) is what serializes mutation across
// goroutines.
type Tree struct {
	Root   Child
	Ver    *version.Version
	Height int
	Cache  *Cache
}

// Create allocates a fresh, empty tree at a new root version.
func Create() *Tree {
	return &Tree{Ver: version.Create(), Cache: NewCache()}
}

// Alloc allocates an empty tree at ver, taking a reference on it.
func Alloc(ver *version.Version) *Tree {
	version.Get(ver)
	return &Tree{Ver: ver, Cache: NewCache()}
}

// Dealloc releases t's root (if any) and its version reference. t must not
// be used afterward.
func Dealloc(t *Tree) {
	if t.Root != nil {
		putChild(t.Cache, t.Root)
	}
	version.Put(t.Ver)
}

// Branch creates a new tree at a child version of parent's, sharing
// parent's root structure via a donated reference (copy-on-write: nothing
// is copied until a mutation forces it).
func Branch(parent *Tree) *Tree {
	nt := &Tree{
		Ver:    version.Branch(parent.Ver),
		Height: parent.Height,
		Cache:  NewCache(),
	}
	if parent.Root != nil {
		getChildRef(parent.Root)
		nt.Root = parent.Root
	}
	return nt
}

// Copy replaces dst's root and height with src's, taking a fresh reference
// on src's root and releasing dst's previous one. dst and src must share
// compatible versions (dst.Ver must already equal, or be prepared to adopt,
// src's lineage).
func Copy(dst, src *Tree) {
	if src.Root != nil {
		getChildRef(src.Root)
	}
	old := dst.Root
	dst.Root = src.Root
	dst.Height = src.Height
	if old != nil {
		putChild(dst.Cache, old)
	}
}

func (t *Tree) ensureMutable(n *Node) *Node {
	if n.Vref.IsVersion(t.Ver) {
		return n
	}
	return t.cowNode(n)
}

// cowNode clones n's slot array into a freshly allocated node at t.Ver,
// taking a fresh reference on each child (the original node still owns its
// own reference to each child; it is the caller's job to drop the
// original's incoming reference once it replaces it in a parent slot).
func (t *Tree) cowNode(n *Node) *Node {
	nn := t.Cache.newNode(t.Ver)
	nn.ItemsNr = n.ItemsNr
	for i := 0; i < n.ItemsNr; i++ {
		nn.Items[i] = n.Items[i]
		getChildRef(nn.Items[i].Child)
	}
	return nn
}

func (t *Tree) shiftInsertSlot(node *Node, idx int, key uint64, child Child) {
	if node.ItemsNr+1 > len(node.Items) {
		panic("bptree: node grew past transient capacity")
	}
	copy(node.Items[idx+1:node.ItemsNr+1], node.Items[idx:node.ItemsNr])
	node.Items[idx] = slot{Key: key, Child: child}
	node.ItemsNr++
}

func (t *Tree) removeSlotAt(node *Node, idx int) {
	copy(node.Items[idx:node.ItemsNr-1], node.Items[idx+1:node.ItemsNr])
	node.Items[node.ItemsNr-1] = slot{}
	node.ItemsNr--
}

type splitResult struct {
	Key   uint64 // the left half's new (smaller) high key
	Right *Node
}

// maybeSplit splits node if it has grown past NodeCapacity, moving the
// upper half into a new sibling. Ties favor the left half: mid =
// (itemsNr+1)/2, so the right half gets the smaller share when itemsNr is
// odd.
func (t *Tree) maybeSplit(node *Node) *splitResult {
	if node.ItemsNr <= NodeCapacity {
		return nil
	}
	mid := (node.ItemsNr + 1) / 2
	rightCount := node.ItemsNr - mid

	right := t.Cache.newNode(t.Ver)
	copy(right.Items[:rightCount], node.Items[mid:node.ItemsNr])
	right.ItemsNr = rightCount

	for i := mid; i < node.ItemsNr; i++ {
		node.Items[i] = slot{}
	}
	node.ItemsNr = mid

	return &splitResult{Key: node.Items[mid-1].Key, Right: right}
}

// absorbSplit installs split as the result of node.Items[idx].Child having
// split: the left half stays at idx under its new (smaller) high key, and
// the right half is inserted as a new slot at idx+1.
func (t *Tree) absorbSplit(node *Node, idx int, split *splitResult) {
	node.Items[idx].Key = split.Key
	t.shiftInsertSlot(node, idx+1, highKeyOf(split.Right), split.Right)
}

func (t *Tree) buildChain(depth int, key uint64, value []byte) Child {
	leaf := t.Cache.newLeaf(t.Ver, value)
	var cur Child = leaf
	for i := 0; i < depth; i++ {
		n := t.Cache.newNode(t.Ver)
		n.ItemsNr = 1
		n.Items[0] = slot{Key: key, Child: cur}
		cur = n
	}
	return cur
}

// Get performs a read-only lookup, never mutating the tree.
func Get(t *Tree, key uint64) ([]byte, bool) {
	if t.Root == nil {
		return nil, false
	}
	node := t.Root.(*Node)
	for depth := t.Height - 1; ; depth-- {
		i := node.findSlot(key)
		if i == node.ItemsNr {
			return nil, false
		}
		if depth == 0 {
			if node.Items[i].Key != key {
				return nil, false
			}
			return node.Items[i].Child.(*Leaf).Value, true
		}
		node = node.Items[i].Child.(*Node)
	}
}

// Insert sets key's value, copying-on-write any shared structure along the
// path. It returns the previous value and true if key already existed.
func Insert(t *Tree, key uint64, value []byte) ([]byte, bool) {
	if t.Root == nil {
		root := t.Cache.newNode(t.Ver)
		root.ItemsNr = 1
		root.Items[0] = slot{Key: key, Child: t.Cache.newLeaf(t.Ver, value)}
		t.Root = root
		t.Height = 1
		return nil, false
	}

	root := t.Root.(*Node)
	mutable := t.ensureMutable(root)
	if mutable != root {
		putChild(t.Cache, root)
		t.Root = mutable
	}
	root = mutable

	split, old := t.insertInto(root, t.Height-1, key, value)
	if split != nil {
		newRoot := t.Cache.newNode(t.Ver)
		newRoot.ItemsNr = 2
		newRoot.Items[0] = slot{Key: split.Key, Child: root}
		newRoot.Items[1] = slot{Key: highKeyOf(split.Right), Child: split.Right}
		t.Root = newRoot
		t.Height++
	}
	if old != nil {
		return old.Value, true
	}
	return nil, false
}

// insertInto inserts (key, value) under node, which must already be
// mutable at t.Ver. depth is the number of internal levels strictly below
// node's own children (0 means node's children are leaves). It returns a
// split to absorb into node's parent, if node overflowed, and the leaf
// previously holding key, if this was an update.
func (t *Tree) insertInto(node *Node, depth int, key uint64, value []byte) (*splitResult, *Leaf) {
	i := node.findSlot(key)
	if i == node.ItemsNr {
		return t.insertPastEnd(node, depth, key, value)
	}

	if depth == 0 {
		if node.Items[i].Key == key {
			old := node.Items[i].Child.(*Leaf)
			node.Items[i].Child = t.Cache.newLeaf(t.Ver, value)
			putChild(t.Cache, old)
			return nil, old
		}
		t.shiftInsertSlot(node, i, key, t.Cache.newLeaf(t.Ver, value))
		return t.maybeSplit(node), nil
	}

	child := node.Items[i].Child.(*Node)
	mutable := t.ensureMutable(child)
	if mutable != child {
		putChild(t.Cache, child)
		node.Items[i].Child = mutable
	}

	split, old := t.insertInto(mutable, depth-1, key, value)
	if split != nil {
		t.absorbSplit(node, i, split)
	}
	return t.maybeSplit(node), old
}

// insertPastEnd handles a key greater than every key node currently
// covers. At the leaf-parent level this is a plain append. Above that, if
// the rightmost child is already private to this transaction, the
// insertion extends into it directly; if the rightmost child still
// belongs to an older version, a minimal fresh chain is grafted as a new
// rightmost sibling instead, so the old (shared) subtree is never touched.
func (t *Tree) insertPastEnd(node *Node, depth int, key uint64, value []byte) (*splitResult, *Leaf) {
	if depth == 0 {
		t.shiftInsertSlot(node, node.ItemsNr, key, t.Cache.newLeaf(t.Ver, value))
		return t.maybeSplit(node), nil
	}

	lastIdx := node.ItemsNr - 1
	lastChild := node.Items[lastIdx].Child.(*Node)

	if !lastChild.Vref.IsVersion(t.Ver) {
		chain := t.buildChain(depth, key, value)
		t.shiftInsertSlot(node, node.ItemsNr, key, chain)
		return t.maybeSplit(node), nil
	}

	split, old := t.insertInto(lastChild, depth-1, key, value)
	if split != nil {
		t.absorbSplit(node, lastIdx, split)
	} else {
		node.Items[lastIdx].Key = key
	}
	return t.maybeSplit(node), old
}

// Delete removes key, returning its value and true if it was present.
func Delete(t *Tree, key uint64) ([]byte, bool) {
	if t.Root == nil {
		return nil, false
	}
	root := t.Root.(*Node)
	mutable := t.ensureMutable(root)
	if mutable != root {
		putChild(t.Cache, root)
		t.Root = mutable
	}
	root = mutable

	found, val := t.deleteFrom(root, t.Height-1, key)
	if !found {
		return nil, false
	}
	t.shrinkRoot()
	return val, true
}

// shrinkRoot collapses single-child root levels, and empties the tree once
// the root itself runs out of items.
func (t *Tree) shrinkRoot() {
	for {
		root := t.Root.(*Node)
		if root.ItemsNr == 0 {
			putChild(t.Cache, root)
			t.Root = nil
			t.Height = 0
			return
		}
		if root.ItemsNr > 1 || t.Height == 1 {
			return
		}
		only := root.Items[0].Child
		getChildRef(only)
		t.Root = only
		putChild(t.Cache, root)
		t.Height--
	}
}

// deleteFrom removes key from the subtree rooted at node (already mutable
// at t.Ver), rebalancing any child it descends through that falls at or
// below ImbalanceLimit afterward.
func (t *Tree) deleteFrom(node *Node, depth int, key uint64) (bool, []byte) {
	i := node.findSlot(key)
	if i == node.ItemsNr {
		return false, nil
	}

	if depth == 0 {
		if node.Items[i].Key != key {
			return false, nil
		}
		leaf := node.Items[i].Child.(*Leaf)
		val := leaf.Value
		t.removeSlotAt(node, i)
		putChild(t.Cache, leaf)
		return true, val
	}

	child := node.Items[i].Child.(*Node)
	mutable := t.ensureMutable(child)
	if mutable != child {
		putChild(t.Cache, child)
		node.Items[i].Child = mutable
	}

	found, val := t.deleteFrom(mutable, depth-1, key)
	if !found {
		return false, nil
	}

	if mutable.ItemsNr > 0 {
		node.Items[i].Key = mutable.Items[mutable.ItemsNr-1].Key
	}
	t.balanceChild(node, i, depth-1)
	return true, val
}

// balanceChild restores node.Items[idx].Child above ImbalanceLimit items,
// trying each rebalancing strategy in turn: merge whole into a sibling
// that has room, drain it across both siblings at once when neither alone
// has room but their combined room does, and only if the child survives
// all three at a single item, steal half of the left sibling's items (or
// of the right sibling's, when there is no left one).
// Grounded on original_source/vbpt.c's try_balance_node_nocow (the three
// move_items_* strategies) and try_balance_level's balance_left/
// balance_right fallback.
func (t *Tree) balanceChild(node *Node, idx int, childDepth int) {
	child := node.Items[idx].Child.(*Node)
	if child.ItemsNr == 0 {
		t.removeSlotAt(node, idx)
		putChild(t.Cache, child)
		return
	}
	if child.ItemsNr > ImbalanceLimit {
		return
	}

	hasLeft := idx > 0
	hasRight := idx+1 < node.ItemsNr

	if hasLeft {
		left := t.mutableSibling(node, idx-1)
		if left.ItemsNr+child.ItemsNr <= NodeCapacity {
			copy(left.Items[left.ItemsNr:left.ItemsNr+child.ItemsNr], child.Items[:child.ItemsNr])
			left.ItemsNr += child.ItemsNr
			node.Items[idx-1].Key = node.Items[idx].Key
			t.removeSlotAt(node, idx)
			putChild(t.Cache, child)
			return
		}
	}
	if hasRight {
		right := t.mutableSibling(node, idx+1)
		if right.ItemsNr+child.ItemsNr <= NodeCapacity {
			copy(right.Items[child.ItemsNr:child.ItemsNr+right.ItemsNr], right.Items[:right.ItemsNr])
			copy(right.Items[:child.ItemsNr], child.Items[:child.ItemsNr])
			right.ItemsNr += child.ItemsNr
			t.removeSlotAt(node, idx)
			putChild(t.Cache, child)
			return
		}
	}
	if hasLeft && hasRight {
		left := t.mutableSibling(node, idx-1)
		right := t.mutableSibling(node, idx+1)
		leftRoom := NodeCapacity - left.ItemsNr
		rightRoom := NodeCapacity - right.ItemsNr
		if leftRoom+rightRoom >= child.ItemsNr {
			t.drainIntoBoth(node, idx, left, child, right, leftRoom)
			return
		}
	}

	// Every sibling is already too full for a merge or a combined drain:
	// the child survives at a single item, so steal half of whichever
	// neighbor exists.
	if child.ItemsNr == 1 {
		if hasLeft {
			left := t.mutableSibling(node, idx-1)
			t.stealHalfFromLeft(node, idx, left, child)
		} else if hasRight {
			right := t.mutableSibling(node, idx+1)
			t.stealHalfFromRight(node, idx, child, right)
		}
	}
}

// drainIntoBoth splits child's items across left and right when neither
// alone has room for the whole child but their combined room does, then
// removes child's now-empty slot entirely (move_items_left_right in the
// original source).
func (t *Tree) drainIntoBoth(node *Node, idx int, left, child, right *Node, leftRoom int) {
	toLeft := child.ItemsNr
	if toLeft > leftRoom {
		toLeft = leftRoom
	}
	toRight := child.ItemsNr - toLeft

	if toLeft > 0 {
		copy(left.Items[left.ItemsNr:left.ItemsNr+toLeft], child.Items[:toLeft])
		left.ItemsNr += toLeft
		node.Items[idx-1].Key = left.Items[left.ItemsNr-1].Key
	}
	if toRight > 0 {
		copy(right.Items[toRight:toRight+right.ItemsNr], right.Items[:right.ItemsNr])
		copy(right.Items[:toRight], child.Items[toLeft:toLeft+toRight])
		right.ItemsNr += toRight
	}
	t.removeSlotAt(node, idx)
	putChild(t.Cache, child)
}

// mutableSibling fetches node.Items[idx].Child, copying it on write if it
// does not already belong to t.Ver: balancing always mutates siblings, so
// they must be private regardless of which version they were shared from.
func (t *Tree) mutableSibling(node *Node, idx int) *Node {
	sib := node.Items[idx].Child.(*Node)
	mutable := t.ensureMutable(sib)
	if mutable != sib {
		putChild(t.Cache, sib)
		node.Items[idx].Child = mutable
	}
	return mutable
}

// stealHalfFromLeft moves half of left's items into child's front, used
// only when child still holds a single item after every merge and drain
// attempt failed (every sibling already at capacity). Mirrors the
// original source's balance_left.
func (t *Tree) stealHalfFromLeft(node *Node, idx int, left, child *Node) {
	half := left.ItemsNr / 2
	if half == 0 {
		return
	}
	n := left.ItemsNr - half
	copy(child.Items[half:half+child.ItemsNr], child.Items[:child.ItemsNr])
	copy(child.Items[:half], left.Items[n:left.ItemsNr])
	child.ItemsNr += half
	for i := n; i < left.ItemsNr; i++ {
		left.Items[i] = slot{}
	}
	left.ItemsNr = n
	node.Items[idx-1].Key = left.Items[left.ItemsNr-1].Key
}

// stealHalfFromRight moves half of right's items into child's tail.
// Mirrors the original source's balance_right.
func (t *Tree) stealHalfFromRight(node *Node, idx int, child, right *Node) {
	half := right.ItemsNr / 2
	if half == 0 {
		return
	}
	copy(child.Items[child.ItemsNr:child.ItemsNr+half], right.Items[:half])
	child.ItemsNr += half
	copy(right.Items[:right.ItemsNr-half], right.Items[half:right.ItemsNr])
	for i := right.ItemsNr - half; i < right.ItemsNr; i++ {
		right.Items[i] = slot{}
	}
	right.ItemsNr -= half
	node.Items[idx].Key = child.Items[child.ItemsNr-1].Key
}
