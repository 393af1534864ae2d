package tree

import (
	"testing"

	"vtree/pkg/txtree"
)

func TestHandleTreeInsertGetDelete(t *testing.T) {
	tr := Wrap(txtree.NewHandle())

	if _, had := tr.Insert(1, []byte("a")); had {
		t.Fatalf("Insert on empty tree reported an existing value")
	}
	if v, ok := tr.Get(1); !ok || string(v) != "a" {
		t.Fatalf("Get(1) = %v, %v, want a, true", v, ok)
	}

	old, had := tr.Insert(1, []byte("b"))
	if !had || string(old) != "a" {
		t.Fatalf("Insert replacing 1 = %v, %v, want a, true", old, had)
	}

	old, had = tr.Delete(1)
	if !had || string(old) != "b" {
		t.Fatalf("Delete(1) = %v, %v, want b, true", old, had)
	}
	if _, ok := tr.Get(1); ok {
		t.Fatalf("Get(1) after delete should miss")
	}
}

func TestHandleTreeCursorIteratesInOrder(t *testing.T) {
	st := Wrap(txtree.NewHandle())
	st.Insert(3, []byte("c"))
	st.Insert(1, []byte("a"))
	st.Insert(2, []byte("b"))

	c := st.Cursor()
	var got []uint64
	for ok := c.First(); ok; ok = c.Next() {
		got = append(got, c.Key())
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("cursor order = %v, want [1 2 3]", got)
	}
}

func TestSnapshotIsIndependentOfLaterWrites(t *testing.T) {
	h := txtree.NewHandle()
	st := Wrap(h).(SnapshotableTree)
	st.Insert(1, []byte("a"))

	snap := st.Snapshot()
	st.Insert(2, []byte("b"))

	if _, ok := snap.Get(2); ok {
		t.Fatalf("snapshot should not observe a write made after it was taken")
	}
	if v, ok := snap.Get(1); !ok || string(v) != "a" {
		t.Fatalf("snapshot Get(1) = %v, %v, want a, true", v, ok)
	}
}
