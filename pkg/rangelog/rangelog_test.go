package rangelog

import "testing"

func TestRangeHighSaturates(t *testing.T) {
	r := Range{Key: keyMax - 2, Len: 10}
	if r.High() != keyMax {
		t.Fatalf("High() = %d, want %d", r.High(), keyMax)
	}
}

func TestWidenOnlyGrows(t *testing.T) {
	l := New()
	if err := l.Read(Range{Key: 10, Len: 5}); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !l.ReadSetHasKey(12, 0) {
		t.Fatalf("expected key 12 to be recorded")
	}
	if l.ReadSetHasKey(20, 0) {
		t.Fatalf("key 20 should not be recorded yet")
	}
	if err := l.Read(Range{Key: 15, Len: 5}); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !l.ReadSetHasKey(12, 0) || !l.ReadSetHasKey(19, 0) {
		t.Fatalf("widened read set should cover the merged span")
	}
}

func TestFinalizeRejectsFurtherRecording(t *testing.T) {
	l := New()
	l.Finalize()
	if err := l.Write(Range{Key: 1, Len: 1}); err != ErrFinalized {
		t.Fatalf("Write after Finalize = %v, want ErrFinalized", err)
	}
}

func TestParentChainIsConsulted(t *testing.T) {
	parent := New()
	parent.Write(Range{Key: 100, Len: 1})
	child := NewChild(parent)
	if !child.WriteSetHasKey(100, 1) {
		t.Fatalf("child should see parent's write set within depth 1")
	}
	if child.WriteSetHasKey(100, 0) {
		t.Fatalf("child should not see parent's write set at depth 0")
	}
}

func TestDeleteSetRangeQuery(t *testing.T) {
	l := New()
	l.Delete(Range{Key: 50, Len: 10})
	if !l.DeleteSetHasRange(Range{Key: 55, Len: 2}, 0) {
		t.Fatalf("overlapping range should be found in the delete set")
	}
	if l.DeleteSetHasRange(Range{Key: 61, Len: 5}, 0) {
		t.Fatalf("disjoint range should not be found in the delete set")
	}
}
