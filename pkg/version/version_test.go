package version

import "testing"

func TestBranchAndPut(t *testing.T) {
	root := Create()
	child := Branch(root)
	if root.ref.Get() != 2 {
		t.Fatalf("root refcount = %d, want 2", root.ref.Get())
	}
	if !Ancestor(root, child) {
		t.Fatalf("root should be an ancestor of child")
	}
	Put(child)
	if root.ref.Get() != 1 {
		t.Fatalf("root refcount after child release = %d, want 1", root.ref.Get())
	}
}

func TestAncestorLimit(t *testing.T) {
	v0 := Create()
	v1 := Branch(v0)
	v2 := Branch(v1)
	if !AncestorLimit(v0, v2, 2) {
		t.Fatalf("v0 should be within 2 steps of v2")
	}
	if AncestorLimit(v0, v2, 1) {
		t.Fatalf("v0 should not be within 1 step of v2")
	}
	if AncestorStrictLimit(v2, v2, 5) {
		t.Fatalf("AncestorStrictLimit should exclude v2 == v2")
	}
}

func TestJoinFastPath(t *testing.T) {
	base := Create()
	g := Branch(base)
	p := Branch(base)
	res, err := Join(g, p)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if res.Join != base || res.HPVer != p || res.GDist != 1 || res.PDist != 1 {
		t.Fatalf("unexpected join result: %+v", res)
	}
}

func TestJoinDeep(t *testing.T) {
	base := Create()
	gMid := Branch(base)
	g := Branch(gMid)
	pMid := Branch(base)
	p := Branch(pMid)
	res, err := Join(g, p)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if res.Join != base {
		t.Fatalf("join point = %v, want base", res.Join)
	}
	if res.HPVer != pMid {
		t.Fatalf("hpver = %v, want pMid", res.HPVer)
	}
	if res.GDist != 2 || res.PDist != 2 {
		t.Fatalf("unexpected distances: g=%d p=%d", res.GDist, res.PDist)
	}
}

func TestJoinFailBeyondLimit(t *testing.T) {
	base := Create()
	g := base
	for i := 0; i < JoinLimit+2; i++ {
		g = Branch(g)
	}
	p := Branch(base)
	if _, err := Join(g, p); err != ErrJoinFail {
		t.Fatalf("Join err = %v, want ErrJoinFail", err)
	}
}

func TestRebaseReleasesOldParent(t *testing.T) {
	base := Create()
	mid := Branch(base)
	leaf := Branch(mid)

	newBase := Create()
	RebasePrepare(newBase)
	RebaseCommit(mid, newBase)

	if Parent(mid) != newBase {
		t.Fatalf("mid's parent was not rebased")
	}
	if !Ancestor(newBase, leaf) {
		t.Fatalf("leaf should now descend from newBase")
	}

	// base has no more descendants through mid; its refcount should have
	// dropped to 1 (its own creation reference) once mid stopped holding one.
	if got := base.ref.Get(); got != 1 {
		t.Fatalf("base refcount = %d, want 1", got)
	}
}

func TestVerTreeGC(t *testing.T) {
	base := Create()
	mid := Branch(base)
	leaf := Branch(mid)

	// mid's refcount is 2 here: its own creation reference (owned by
	// whoever called Branch, e.g. a tree that still points at mid) plus
	// leaf's parent-link. It must not be collected yet.
	VerTreeGC(leaf)
	if Parent(leaf) != mid {
		t.Fatalf("mid was collected despite refcount > 1")
	}

	Put(mid) // the owning tree moved on; only leaf's parent-link remains
	VerTreeGC(leaf)
	if Parent(leaf) != base {
		t.Fatalf("mid should have been collected, leaf.parent = %v", Parent(leaf))
	}
}
