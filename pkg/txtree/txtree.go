// Package txtree implements the mutable tree handle and transaction
// lifecycle sitting on top of pkg/bptree, pkg/logtree, pkg/merge and
// pkg/version: a single committed-version pointer guarded by a commit
// lock, transactions that branch off it, and a bounded retry-with-merge
// protocol when a transaction's base has fallen behind by the time it
// tries to commit.
package txtree

import (
	"sync"

	"vtree/pkg/bptree"
	"vtree/pkg/logtree"
	"vtree/pkg/merge"
	"vtree/pkg/rangelog"
	"vtree/pkg/version"
)

// Outcome is the result of a transaction's Commit attempt.
type Outcome int

const (
	// OK means the transaction's base was still current: its tree was
	// installed directly, no merge needed.
	OK Outcome = iota
	// Merged means another transaction landed first, but a structural
	// three-way merge against it succeeded with no conflicts.
	Merged
	// Failed means Commit was called on a transaction that was already
	// committed or aborted.
	Failed
	// MergeFailed means either a real conflict was found, or the
	// transaction's base is too far behind the handle's retained commit
	// history (beyond version.JoinLimit) to attempt a merge at all.
	MergeFailed
)

type commitRecord struct {
	baseVer *version.Version
	ver     *version.Version
	log     *rangelog.Log
}

// historyRetention bounds how many past commits a Handle keeps logs for;
// older records are dropped, so a transaction that stalls past this many
// intervening commits gets MergeFailed rather than growing the history
// forever. Sized generously relative to version.JoinLimit.
const historyRetention = version.JoinLimit * 4

// Handle is the single mutable pointer to a tree's currently committed
// version, the mt_lock/gc_lock pair that serializes commits and chain GC
// against it, and enough recent commit history to merge a lagging
// transaction back in.
type Handle struct {
	mu    sync.Mutex // mt_lock: serializes Commit attempts
	gcMu  sync.Mutex // gc_lock: serializes version.VerTreeGC against rebase
	cur   *version.Version
	tree  *bptree.Tree
	history []commitRecord
}

// NewHandle creates a Handle over a fresh, empty tree.
func NewHandle() *Handle {
	t := bptree.Create()
	version.Get(t.Ver)
	return &Handle{cur: t.Ver, tree: t}
}

// Snapshot returns a read-only branch of the handle's currently committed
// tree, for callers that just want to read without opening a transaction.
func (h *Handle) Snapshot() *bptree.Tree {
	h.mu.Lock()
	defer h.mu.Unlock()
	return bptree.Branch(h.tree)
}

// GC runs version chain collection against the handle's current version
// under gc_lock, serialized against any in-flight rebase.
func (h *Handle) GC() {
	h.gcMu.Lock()
	defer h.gcMu.Unlock()
	version.VerTreeGC(h.cur)
}

// Transaction is one attempt to mutate a Handle's tree: a private
// log-tracked working copy branched from the handle's version at Begin
// time, plus that version itself, recorded as the base Commit compares
// against the handle's current version.
type Transaction struct {
	handle *Handle
	base   *version.Version
	tree   *logtree.Tree
	done   bool
}

// Begin opens a transaction against h's currently committed tree.
func Begin(h *Handle) *Transaction {
	h.mu.Lock()
	defer h.mu.Unlock()

	base := h.cur
	workTree := bptree.Branch(h.tree)

	return &Transaction{
		handle: h,
		base:   base,
		tree:   logtree.New(workTree),
	}
}

// Tree exposes the transaction's working tree for reads and writes.
func (tx *Transaction) Tree() *logtree.Tree { return tx.tree }

// Get reads key through the transaction, recording it in the read set.
func (tx *Transaction) Get(key uint64) ([]byte, bool) { return logtree.Get(tx.tree, key) }

// Insert writes key through the transaction, recording it in the write set.
func (tx *Transaction) Insert(key uint64, value []byte) ([]byte, bool) {
	return logtree.Insert(tx.tree, key, value)
}

// Delete removes key through the transaction, recording it in the delete set.
func (tx *Transaction) Delete(key uint64) ([]byte, bool) { return logtree.Delete(tx.tree, key) }

// Commit attempts to land the transaction. See Outcome for the possible
// results.
func (tx *Transaction) Commit() Outcome {
	tx.handle.mu.Lock()
	defer tx.handle.mu.Unlock()

	if tx.done {
		return Failed
	}
	tx.done = true
	logtree.Finalize(tx.tree)

	if tx.base == tx.handle.cur {
		version.Pin(tx.tree.Tree.Ver, tx.handle.cur)
		tx.handle.installLocked(tx.tree.Tree.Ver, tx.base, tx.tree.Tree, tx.tree.Log)
		return OK
	}

	if !version.AncestorLimit(tx.base, tx.handle.cur, version.JoinLimit) {
		return MergeFailed
	}
	p := tx.handle.pendingSinceLocked(tx.base)
	if p == nil {
		return MergeFailed
	}

	// p here is everything already committed while tx was away: the
	// read-only, granted side of the merge. tx.tree is rebased onto it in
	// place and becomes the installed result.
	res := merge.Merge(p, tx.tree)
	if !res.OK() {
		return MergeFailed
	}

	tx.handle.gcMu.Lock()
	version.RebasePrepare(tx.handle.cur)
	version.RebaseCommit(tx.tree.Tree.Ver, tx.handle.cur)
	tx.handle.gcMu.Unlock()
	version.Pin(tx.tree.Tree.Ver, tx.handle.cur)

	combined := unionLog(tx.tree.Log, p.Log)
	tx.handle.installLocked(tx.tree.Tree.Ver, tx.base, tx.tree.Tree, combined)
	return Merged
}

// Abort discards the transaction's working tree without committing.
func (tx *Transaction) Abort() {
	if tx.done {
		return
	}
	tx.done = true
	bptree.Dealloc(tx.tree.Tree)
}

// installLocked replaces h's committed tree and version, recording the
// commit in history and trimming it to historyRetention. Callers must
// hold h.mu.
func (h *Handle) installLocked(newVer, baseVer *version.Version, newTree *bptree.Tree, log *rangelog.Log) {
	old := h.tree
	h.tree = newTree
	h.cur = newVer
	bptree.Dealloc(old)

	h.history = append(h.history, commitRecord{baseVer: baseVer, ver: newVer, log: log})
	if len(h.history) > historyRetention {
		h.history = h.history[len(h.history)-historyRetention:]
	}
}

// pendingSinceLocked reconstructs a synthetic transaction representing
// everything committed between base and h.cur, so a lagging transaction's
// Commit can merge against it. It returns nil if base is no longer found
// in the retained history (the caller must then report MergeFailed).
func (h *Handle) pendingSinceLocked(base *version.Version) *logtree.Tree {
	combined := rangelog.New()
	found := false
	for i := len(h.history) - 1; i >= 0; i-- {
		rec := h.history[i]
		unionInto(combined, rec.log)
		if rec.baseVer == base {
			found = true
			break
		}
	}
	if !found {
		return nil
	}
	return &logtree.Tree{Tree: h.tree, Log: combined}
}

func unionInto(dst, src *rangelog.Log) {
	for _, r := range src.WriteRanges() {
		dst.Write(r)
	}
	for _, r := range src.DeleteRanges() {
		dst.Delete(r)
	}
	for _, r := range src.ReadRanges() {
		dst.Read(r)
	}
}

func unionLog(a, b *rangelog.Log) *rangelog.Log {
	out := rangelog.New()
	unionInto(out, a)
	unionInto(out, b)
	return out
}
