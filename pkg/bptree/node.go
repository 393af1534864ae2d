// Package bptree implements the versioned, copy-on-write B+-tree core:
// COW search/insert/delete, node splitting, imbalance-driven rebalancing,
// and height shrink/grow, over 64-bit integer keys and opaque leaf values.
package bptree

import (
	"vtree/pkg/memcache"
	"vtree/pkg/refcount"
	"vtree/pkg/version"
)

// KeyMax is the sentinel denoting "past-the-end" in range-based contexts
// built on top of this package (rangelog, cursor).
const KeyMax = ^uint64(0)

// NodeCapacity is the steady-state slot count of an internal node, derived
// from a compile-time node byte size target of 512 bytes (~21 {key,
// child-pointer} slots, per spec). The backing array holds one extra slot
// so an insert can push a node transiently over capacity before split
// trims it back down.
const NodeCapacity = 21

// ImbalanceLimit triggers rebalancing: a node with at most this many items
// is imbalanced.
const ImbalanceLimit = NodeCapacity / 2

// MaxDepth bounds how many internal levels a tree may have.
const MaxDepth = 64

type headerType uint8

const (
	typeNode headerType = iota
	typeLeaf
)

// Header is embedded in every Node and Leaf: a version reference, a
// reference count, and a type tag distinguishing the two.
type Header struct {
	Vref version.VRef
	Refs refcount.Counter
	kind headerType
}

// Child is implemented by *Node and *Leaf. The interface is deliberately
// unexported-method-sealed to this package: nothing outside bptree may
// supply its own node/leaf shape.
type Child interface {
	header() *Header
	IsLeaf() bool
}

type slot struct {
	Key   uint64
	Child Child
}

// Node is a fixed-capacity internal node. Items are a dense array of
// {key, child} pairs sorted ascending by key; slot i covers every key k
// with Items[i-1].Key < k <= Items[i].Key (Items[-1].Key conceptually -inf).
type Node struct {
	Header
	ItemsNr int
	Items   [NodeCapacity + 1]slot
}

func (n *Node) header() *Header { return &n.Header }

// IsLeaf reports false: Node is always an internal node.
func (n *Node) IsLeaf() bool { return false }

// Leaf holds a single key's opaque value. A leaf has no intra-leaf
// ordering duties: one key, one value.
type Leaf struct {
	Header
	Value []byte
}

func (l *Leaf) header() *Header { return &l.Header }

// IsLeaf reports true: Leaf is always a leaf.
func (l *Leaf) IsLeaf() bool { return true }

// findSlot returns the smallest index i such that Items[i].Key >= key, or
// n.ItemsNr if key exceeds every key currently covered by n (the
// "past-the-end" case, see insertPastEnd in tree.go).
func (n *Node) findSlot(key uint64) int {
	lo, hi := 0, n.ItemsNr
	for lo < hi {
		mid := (lo + hi) / 2
		if n.Items[mid].Key < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func highKeyOf(c Child) uint64 {
	n, ok := c.(*Node)
	if !ok {
		panic("bptree: highKeyOf called on a leaf")
	}
	return n.Items[n.ItemsNr-1].Key
}

// Cache bundles the per-tree free lists for nodes and leaves (spec.md's
// memory cache component). It is owned by exactly one Tree/transaction and
// must never be shared across goroutines; see pkg/memcache.
type Cache struct {
	Nodes  *memcache.Pool[*Node]
	Leaves *memcache.Pool[*Leaf]
}

// NewCache creates a Cache whose recycle hooks release a reused object's
// outgoing references before handing it back, co-locating refcount
// decrement with reuse on the hot path.
func NewCache() *Cache {
	cache := &Cache{}
	cache.Nodes = memcache.NewPool(
		func() *Node { return &Node{} },
		func(n *Node) {
			for i := 0; i < n.ItemsNr; i++ {
				putChild(cache, n.Items[i].Child)
				n.Items[i] = slot{}
			}
			n.ItemsNr = 0
		},
	)
	cache.Leaves = memcache.NewPool(
		func() *Leaf { return &Leaf{} },
		func(l *Leaf) { l.Value = nil },
	)
	return cache
}

func (c *Cache) newNode(ver *version.Version) *Node {
	n := c.Nodes.Get()
	version.Get(ver)
	n.Vref = version.RefOf(ver)
	n.Refs.Init(1)
	n.kind = typeNode
	return n
}

func (c *Cache) newLeaf(ver *version.Version, value []byte) *Leaf {
	l := c.Leaves.Get()
	version.Get(ver)
	l.Vref = version.RefOf(ver)
	l.Refs.Init(1)
	l.kind = typeLeaf
	l.Value = append([]byte(nil), value...)
	return l
}

func getChildRef(c Child) {
	if c == nil {
		return
	}
	c.header().Refs.Inc()
}

// putChild releases a reference on c, recycling it through cache when the
// last reference goes away.
func putChild(cache *Cache, c Child) {
	if c == nil {
		return
	}
	c.header().Refs.Dec(func() {
		version.Put(c.header().Vref.Version())
		switch v := c.(type) {
		case *Node:
			cache.Nodes.Put(v)
		case *Leaf:
			cache.Leaves.Put(v)
		}
	})
}
