package bptree

import "testing"

func mustGet(t *testing.T, tr *Tree, key uint64) []byte {
	t.Helper()
	v, ok := Get(tr, key)
	if !ok {
		t.Fatalf("Get(%d): not found", key)
	}
	return v
}

func TestInsertAndGetEmptyTree(t *testing.T) {
	tr := Create()
	if _, ok := Get(tr, 1); ok {
		t.Fatalf("Get on empty tree found a value")
	}
	old, had := Insert(tr, 42, []byte("hello"))
	if had {
		t.Fatalf("Insert on empty tree reported an existing value")
	}
	if old != nil {
		t.Fatalf("Insert on empty tree returned non-nil old value")
	}
	if got := mustGet(t, tr, 42); string(got) != "hello" {
		t.Fatalf("Get(42) = %q, want hello", got)
	}
	if tr.Height != 1 {
		t.Fatalf("Height = %d, want 1", tr.Height)
	}
}

func TestInsertUpdatesExistingKey(t *testing.T) {
	tr := Create()
	Insert(tr, 1, []byte("a"))
	old, had := Insert(tr, 1, []byte("b"))
	if !had || string(old) != "a" {
		t.Fatalf("Insert update: old=%q had=%v, want a/true", old, had)
	}
	if got := mustGet(t, tr, 1); string(got) != "b" {
		t.Fatalf("Get(1) = %q, want b", got)
	}
}

func TestInsertCausesSplitAndGrowsHeight(t *testing.T) {
	tr := Create()
	const n = NodeCapacity*3 + 5
	for i := uint64(0); i < n; i++ {
		Insert(tr, i, []byte{byte(i)})
	}
	if tr.Height < 2 {
		t.Fatalf("Height = %d, want >= 2 after %d inserts", tr.Height, n)
	}
	for i := uint64(0); i < n; i++ {
		got := mustGet(t, tr, i)
		if len(got) != 1 || got[0] != byte(i) {
			t.Fatalf("Get(%d) = %v, want [%d]", i, got, byte(i))
		}
	}
}

func TestInsertPastEndPreservesSharedSpine(t *testing.T) {
	v0 := Create()
	const n = NodeCapacity*2 + 1
	for i := uint64(0); i < n; i++ {
		Insert(v0, i, []byte{byte(i)})
	}

	v1 := Branch(v0)
	// v0's root must stay untouched by the branch and by v1's own inserts.
	v0Root := v0.Root

	Insert(v1, n, []byte("new"))

	if v0.Root != v0Root {
		t.Fatalf("v0's root pointer changed after v1 mutated")
	}
	for i := uint64(0); i < n; i++ {
		got := mustGet(t, v0, i)
		if len(got) != 1 || got[0] != byte(i) {
			t.Fatalf("v0 Get(%d) = %v, want [%d]", i, got, byte(i))
		}
	}
	if _, ok := Get(v0, n); ok {
		t.Fatalf("v0 should not see v1's insert of key %d", n)
	}
	if got := mustGet(t, v1, n); string(got) != "new" {
		t.Fatalf("v1 Get(%d) = %q, want new", n, got)
	}
}

func TestDeleteRemovesKeyAndShrinksHeight(t *testing.T) {
	tr := Create()
	const n = NodeCapacity*3 + 5
	for i := uint64(0); i < n; i++ {
		Insert(tr, i, []byte{byte(i)})
	}
	for i := uint64(0); i < n; i++ {
		val, ok := Delete(tr, i)
		if !ok || len(val) != 1 || val[0] != byte(i) {
			t.Fatalf("Delete(%d) = %v, %v, want [%d], true", i, val, ok, byte(i))
		}
	}
	if tr.Root != nil || tr.Height != 0 {
		t.Fatalf("tree not empty after deleting every key: root=%v height=%d", tr.Root, tr.Height)
	}
}

func TestDeleteMissingKeyIsNoop(t *testing.T) {
	tr := Create()
	Insert(tr, 1, []byte("a"))
	if _, ok := Delete(tr, 2); ok {
		t.Fatalf("Delete of missing key reported success")
	}
	if got := mustGet(t, tr, 1); string(got) != "a" {
		t.Fatalf("Get(1) = %q after unrelated delete, want a", got)
	}
}

func TestBranchSharesStructureUntilWrite(t *testing.T) {
	v0 := Create()
	for i := uint64(0); i < 50; i++ {
		Insert(v0, i, []byte{byte(i)})
	}
	v1 := Branch(v0)
	if v1.Root != v0.Root {
		t.Fatalf("Branch did not share the root pointer before any write")
	}
	Insert(v1, 5, []byte("changed"))
	if got := mustGet(t, v0, 5); len(got) != 1 || got[0] != 5 {
		t.Fatalf("v0's key 5 was mutated by v1's write: %v", got)
	}
	if got := mustGet(t, v1, 5); string(got) != "changed" {
		t.Fatalf("v1 Get(5) = %q, want changed", got)
	}
}

func TestDeleteAcrossManyKeysPreservesRemainder(t *testing.T) {
	tr := Create()
	const n = NodeCapacity * 5
	for i := uint64(0); i < n; i++ {
		Insert(tr, i, []byte{byte(i % 256)})
	}
	for i := uint64(0); i < n; i += 2 {
		if _, ok := Delete(tr, i); !ok {
			t.Fatalf("Delete(%d) failed", i)
		}
	}
	for i := uint64(0); i < n; i++ {
		v, ok := Get(tr, i)
		if i%2 == 0 {
			if ok {
				t.Fatalf("Get(%d) found a deleted key", i)
			}
			continue
		}
		if !ok || v[0] != byte(i%256) {
			t.Fatalf("Get(%d) = %v, %v, want [%d], true", i, v, ok, byte(i%256))
		}
	}
}
