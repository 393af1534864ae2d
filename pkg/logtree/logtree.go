// Package logtree composes pkg/bptree and pkg/rangelog: every mutation
// that touches the tree also records the affected key in the
// transaction's range log before (and regardless of) the tree operation's
// outcome, so a later merge can reason about what a transaction observed
// and changed without re-diffing the whole tree.
package logtree

import (
	"vtree/pkg/bptree"
	"vtree/pkg/rangelog"
)

// Tree pairs a bptree.Tree with the rangelog.Log recording a
// transaction's access footprint against it.
type Tree struct {
	Tree *bptree.Tree
	Log  *rangelog.Log
}

// New wraps t with a fresh STARTED log.
func New(t *bptree.Tree) *Tree {
	return &Tree{Tree: t, Log: rangelog.New()}
}

// Get records a read of key and returns its value.
func Get(lt *Tree, key uint64) ([]byte, bool) {
	lt.Log.Read(rangelog.Range{Key: key, Len: 1})
	return bptree.Get(lt.Tree, key)
}

// Insert records a write of key and inserts it, returning the previous
// value if any.
func Insert(lt *Tree, key uint64, value []byte) ([]byte, bool) {
	lt.Log.Write(rangelog.Range{Key: key, Len: 1})
	return bptree.Insert(lt.Tree, key, value)
}

// Delete records a delete of key and removes it, returning its prior
// value if any.
func Delete(lt *Tree, key uint64) ([]byte, bool) {
	lt.Log.Delete(rangelog.Range{Key: key, Len: 1})
	return bptree.Delete(lt.Tree, key)
}

// Finalize freezes lt's log: no further reads, writes or deletes may be
// recorded through this handle. Called once a transaction has finished
// its body and is about to attempt commit.
func Finalize(lt *Tree) {
	lt.Log.Finalize()
}
