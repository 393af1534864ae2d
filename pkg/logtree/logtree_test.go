package logtree

import (
	"testing"

	"vtree/pkg/bptree"
	"vtree/pkg/rangelog"
)

func TestInsertGetDeleteRecordLog(t *testing.T) {
	lt := New(bptree.Create())

	Insert(lt, 1, []byte("a"))
	if !lt.Log.WriteSetHasKey(1, 0) {
		t.Fatalf("write set should record key 1")
	}

	if v, ok := Get(lt, 1); !ok || string(v) != "a" {
		t.Fatalf("Get(1) = %v, %v, want a, true", v, ok)
	}
	if !lt.Log.ReadSetHasKey(1, 0) {
		t.Fatalf("read set should record key 1")
	}

	Delete(lt, 1)
	if !lt.Log.DeleteSetHasKey(1, 0) {
		t.Fatalf("delete set should record key 1")
	}
	if _, ok := Get(lt, 1); ok {
		t.Fatalf("key 1 should be gone after Delete")
	}
}

func TestFinalizeStopsFurtherLogging(t *testing.T) {
	lt := New(bptree.Create())
	Finalize(lt)
	if lt.Log.State() != rangelog.Finalized {
		t.Fatalf("Log.State() = %v, want Finalized", lt.Log.State())
	}
	if err := lt.Log.Write(rangelog.Range{Key: 1, Len: 1}); err != rangelog.ErrFinalized {
		t.Fatalf("Write after Finalize = %v, want ErrFinalized", err)
	}
}
