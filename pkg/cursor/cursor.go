// Package cursor provides ordered, read-only iteration over a
// pkg/bptree.Tree using an explicit root-to-leaf path, so advancing to the
// next key does not require a fresh search from the root.
package cursor

import "vtree/pkg/bptree"

// Cursor walks a tree's keys in ascending order. The zero value is not
// usable; create one with New.
type Cursor struct {
	tree *bptree.Tree
	path bptree.Path
	done bool
}

// New creates a Cursor over tree. It has no current key yet: call First
// or Seek before Key, Value or Next.
func New(tree *bptree.Tree) *Cursor {
	return &Cursor{tree: tree, done: tree.Root == nil}
}

// Seek positions the cursor at the smallest existing key >= key. It
// reports whether that key equals key exactly.
func (c *Cursor) Seek(key uint64) bool {
	path, ok := bptree.Search(c.tree, key)
	c.path = path
	c.done = path.Height == 0
	return ok
}

// First positions the cursor at the tree's smallest key, if any, and
// reports whether there is one.
func (c *Cursor) First() bool {
	c.Seek(0)
	return !c.done
}

// Done reports whether the cursor has no current key (either the tree is
// empty or Next has walked past the last key).
func (c *Cursor) Done() bool {
	return c.done
}

// Key returns the current key. Done must be false.
func (c *Cursor) Key() uint64 {
	return c.path.Key()
}

// Value returns the current leaf's value. Done must be false.
func (c *Cursor) Value() []byte {
	return c.path.Leaf().Value
}

// Next advances the cursor to the next key in ascending order, ascending
// the path stack to find the next sibling slot whenever the current node
// is exhausted.
func (c *Cursor) Next() bool {
	if c.done {
		return false
	}
	for lvl := c.path.Height - 1; lvl >= 0; lvl-- {
		e := c.path.Entries[lvl]
		if e.Slot+1 < e.Node.ItemsNr {
			c.path.Entries[lvl] = bptree.Entry{Node: e.Node, Slot: e.Slot + 1}
			c.path.Height = lvl + 1
			c.descendToLeaf()
			return true
		}
	}
	c.done = true
	return false
}

// descendToLeaf walks down from the current deepest path entry's child,
// always taking slot 0, until it reaches the leaf level.
func (c *Cursor) descendToLeaf() {
	for {
		e := c.path.Entries[c.path.Height-1]
		child, ok := e.Node.Items[e.Slot].Child.(*bptree.Node)
		if !ok {
			return
		}
		c.path.Entries[c.path.Height] = bptree.Entry{Node: child, Slot: 0}
		c.path.Height++
	}
}
