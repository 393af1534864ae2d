// Package tree defines a small interface layer over the versioned tree
// packages, the way the teacher's pkg/tree let callers depend on
// Tree/Cursor without committing to btree.BTree or cowbtree.CowBTree.
// Here the only implementation is txtree.Handle, but keeping it behind
// an interface is what let the teacher swap tree backends in turdb
// without touching callers.
package tree

import (
	"vtree/pkg/bptree"
	"vtree/pkg/cursor"
	"vtree/pkg/txtree"
)

// Tree is a mutable key/value store that commits each call as its own
// transaction.
type Tree interface {
	Insert(key uint64, value []byte) ([]byte, bool)
	Get(key uint64) ([]byte, bool)
	Delete(key uint64) ([]byte, bool)
	Cursor() Cursor
}

// Cursor iterates a tree's keys in ascending order. It matches
// pkg/cursor.Cursor's signature exactly so that type satisfies it with
// no adapter needed.
type Cursor interface {
	First() bool
	Seek(key uint64) bool
	Next() bool
	Done() bool
	Key() uint64
	Value() []byte
}

var _ Cursor = (*cursor.Cursor)(nil)

// SnapshotableTree is a Tree that can also hand out a consistent
// read-only view independent of later writes against the handle.
type SnapshotableTree interface {
	Tree
	Snapshot() Snapshot
}

// Snapshot is a read-only view of a tree at a fixed version.
type Snapshot interface {
	Get(key uint64) ([]byte, bool)
	Cursor() Cursor
}

// handleTree adapts a *txtree.Handle to SnapshotableTree, auto-committing
// each Insert/Delete as its own transaction. A concurrent transaction
// opened directly against the handle can still force this one into a
// retry-merge; a conflict there is surfaced as ok=false rather than an
// error, matching Tree's no-error signature.
type handleTree struct {
	h *txtree.Handle
}

// Wrap adapts h to the Tree/SnapshotableTree interfaces.
func Wrap(h *txtree.Handle) SnapshotableTree {
	return &handleTree{h: h}
}

func (t *handleTree) Insert(key uint64, value []byte) ([]byte, bool) {
	tx := txtree.Begin(t.h)
	old, had := tx.Insert(key, value)
	switch tx.Commit() {
	case txtree.OK, txtree.Merged:
		return old, had
	default:
		return nil, false
	}
}

func (t *handleTree) Delete(key uint64) ([]byte, bool) {
	tx := txtree.Begin(t.h)
	old, had := tx.Delete(key)
	switch tx.Commit() {
	case txtree.OK, txtree.Merged:
		return old, had
	default:
		return nil, false
	}
}

func (t *handleTree) Get(key uint64) ([]byte, bool) {
	return t.Snapshot().Get(key)
}

func (t *handleTree) Cursor() Cursor {
	return t.Snapshot().Cursor()
}

func (t *handleTree) Snapshot() Snapshot {
	return treeSnapshot{tr: t.h.Snapshot()}
}

type treeSnapshot struct {
	tr *bptree.Tree
}

func (s treeSnapshot) Get(key uint64) ([]byte, bool) { return bptree.Get(s.tr, key) }
func (s treeSnapshot) Cursor() Cursor                { return cursor.New(s.tr) }
