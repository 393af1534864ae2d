package txtree

import (
	"testing"

	"vtree/pkg/bptree"
)

func lookup(h *Handle, key uint64) ([]byte, bool) {
	return bptree.Get(h.Snapshot(), key)
}

func TestFastPathCommit(t *testing.T) {
	h := NewHandle()
	tx := Begin(h)
	tx.Insert(1, []byte("a"))
	if outcome := tx.Commit(); outcome != OK {
		t.Fatalf("Commit() = %v, want OK", outcome)
	}
	if got, found := lookup(h, 1); !found || string(got) != "a" {
		t.Fatalf("lookup after commit = %v, %v, want a, true", got, found)
	}
}

func TestSequentialCommitsBothLand(t *testing.T) {
	h := NewHandle()

	tx1 := Begin(h)
	tx1.Insert(1, []byte("a"))
	if outcome := tx1.Commit(); outcome != OK {
		t.Fatalf("tx1 Commit() = %v, want OK", outcome)
	}

	tx2 := Begin(h)
	tx2.Insert(2, []byte("b"))
	if outcome := tx2.Commit(); outcome != OK {
		t.Fatalf("tx2 Commit() = %v, want OK", outcome)
	}

	if got, ok := lookup(h, 1); !ok || string(got) != "a" {
		t.Fatalf("key 1 = %v, %v, want a, true", got, ok)
	}
	if got, ok := lookup(h, 2); !ok || string(got) != "b" {
		t.Fatalf("key 2 = %v, %v, want b, true", got, ok)
	}
}

func TestConcurrentDisjointTransactionsMerge(t *testing.T) {
	h := NewHandle()

	tx1 := Begin(h)
	tx2 := Begin(h)

	tx1.Insert(1, []byte("from-tx1"))
	tx2.Insert(2, []byte("from-tx2"))

	if outcome := tx1.Commit(); outcome != OK {
		t.Fatalf("tx1 Commit() = %v, want OK", outcome)
	}
	if outcome := tx2.Commit(); outcome != Merged {
		t.Fatalf("tx2 Commit() = %v, want Merged", outcome)
	}

	if got, ok := lookup(h, 1); !ok || string(got) != "from-tx1" {
		t.Fatalf("key 1 = %v, %v, want from-tx1, true", got, ok)
	}
	if got, ok := lookup(h, 2); !ok || string(got) != "from-tx2" {
		t.Fatalf("key 2 = %v, %v, want from-tx2, true", got, ok)
	}
}

func TestConcurrentConflictingTransactionsFailToMerge(t *testing.T) {
	h := NewHandle()

	tx1 := Begin(h)
	tx2 := Begin(h)

	tx1.Insert(1, []byte("winner"))
	// tx2 reads key 1 before writing it, so its write depends on content
	// tx1 has since changed; a blind write alone would merge.
	tx2.Get(1)
	tx2.Insert(1, []byte("loser"))

	if outcome := tx1.Commit(); outcome != OK {
		t.Fatalf("tx1 Commit() = %v, want OK", outcome)
	}
	if outcome := tx2.Commit(); outcome != MergeFailed {
		t.Fatalf("tx2 Commit() = %v, want MergeFailed", outcome)
	}

	if got, ok := lookup(h, 1); !ok || string(got) != "winner" {
		t.Fatalf("key 1 = %v, %v, want winner, true (tx1's commit must survive)", got, ok)
	}
}

func TestAbortDiscardsChanges(t *testing.T) {
	h := NewHandle()
	tx := Begin(h)
	tx.Insert(1, []byte("never-committed"))
	tx.Abort()

	if _, ok := lookup(h, 1); ok {
		t.Fatalf("aborted transaction's write should not be visible")
	}
}
