package refcount

import "testing"

func TestIncDec(t *testing.T) {
	c := New(1)
	c.Inc()
	if got := c.Get(); got != 2 {
		t.Fatalf("Get() = %d, want 2", got)
	}
	released := false
	if c.Dec(func() { released = true }) {
		t.Fatalf("Dec reported release too early")
	}
	if released {
		t.Fatalf("release called too early")
	}
	if !c.Dec(func() { released = true }) {
		t.Fatalf("Dec should report release at zero")
	}
	if !released {
		t.Fatalf("release callback was not invoked")
	}
}

func TestIncOnReleasedPanics(t *testing.T) {
	c := New(1)
	c.Dec(nil)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic incrementing a released counter")
		}
	}()
	c.Inc()
}

func TestTryGet(t *testing.T) {
	c := New(1)
	if !c.TryGet() {
		t.Fatalf("TryGet should succeed on a live counter")
	}
	if got := c.Get(); got != 2 {
		t.Fatalf("Get() = %d, want 2", got)
	}
	c.Dec(nil)
	c.Dec(nil)
	if c.TryGet() {
		t.Fatalf("TryGet should fail on a released counter")
	}
}
