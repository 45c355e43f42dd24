package strand

import "testing"

func TestOwnerTeardown(t *testing.T) {
	counter := NewRef(0)
	runs1, runs2 := 0, 0
	var disposed []string

	s := NewOwner()
	s.Run(func() any {
		CreateEffect(func() { _ = counter.Get(); runs1++ })
		CreateEffect(func() { _ = counter.Get(); runs2++ })
		OnDispose(func() { disposed = append(disposed, "first") })
		OnDispose(func() { disposed = append(disposed, "second") })
		return nil
	})

	counter.Set(1)
	if runs1 != 2 || runs2 != 2 {
		t.Fatalf("expected both effects to fire, got %d and %d", runs1, runs2)
	}

	s.Stop()
	if s.Active() {
		t.Error("stopped owner should report inactive")
	}

	counter.Set(2)
	if runs1 != 2 || runs2 != 2 {
		t.Errorf("no effect of a stopped owner may fire, got %d and %d", runs1, runs2)
	}

	if len(disposed) != 2 || disposed[0] != "first" || disposed[1] != "second" {
		t.Errorf("cleanups must run exactly once in registration order, got %v", disposed)
	}

	// Idempotent.
	s.Stop()
	if len(disposed) != 2 {
		t.Errorf("second Stop must not re-run cleanups, got %v", disposed)
	}
}

func TestOwnerStopsNestedChildren(t *testing.T) {
	counter := NewRef(0)
	childRuns := 0

	parent := NewOwner()
	var child *Owner
	parent.Run(func() any {
		child = NewOwner()
		child.Run(func() any {
			CreateEffect(func() { _ = counter.Get(); childRuns++ })
			return nil
		})
		return nil
	})

	parent.Stop()
	if child.Active() {
		t.Error("stopping the parent must stop attached children")
	}

	counter.Set(1)
	if childRuns != 1 {
		t.Errorf("child effects must not fire after parent stop, got %d runs", childRuns)
	}
}

func TestDetachedChildSurvivesParentStop(t *testing.T) {
	counter := NewRef(0)
	detachedRuns := 0

	parent := NewOwner()
	var child *Owner
	parent.Run(func() any {
		child = NewDetachedOwner()
		child.Run(func() any {
			CreateEffect(func() { _ = counter.Get(); detachedRuns++ })
			return nil
		})
		return nil
	})

	parent.Stop()
	if !child.Active() {
		t.Fatal("detached child must survive parent stop")
	}

	counter.Set(1)
	if detachedRuns != 2 {
		t.Errorf("detached child's effects must still respond, got %d runs", detachedRuns)
	}

	child.Stop()
	counter.Set(2)
	if detachedRuns != 2 {
		t.Errorf("explicitly stopped child must go quiet, got %d runs", detachedRuns)
	}
}

func TestOwnerSiblingDetachKeepsIndexes(t *testing.T) {
	parent := NewOwner()
	var a, b, c *Owner
	parent.Run(func() any {
		a = NewOwner()
		b = NewOwner()
		c = NewOwner()
		return nil
	})

	// Stopping the middle child swaps the last child into its slot.
	b.Stop()
	if len(parent.children) != 2 {
		t.Fatalf("expected 2 children after middle stop, got %d", len(parent.children))
	}
	if parent.children[a.index] != a || parent.children[c.index] != c {
		t.Error("swap-removal must fix the moved child's index")
	}

	// The survivors still stop cleanly through the parent.
	parent.Stop()
	if a.Active() || c.Active() {
		t.Error("all children must stop with the parent")
	}
}

func TestOwnerRunInactiveWarns(t *testing.T) {
	DebugMode = true
	defer func() { DebugMode = false; SetWarnHandler(nil) }()

	var codes []string
	SetWarnHandler(func(code, msg string) { codes = append(codes, code) })

	s := NewOwner()
	s.Stop()

	ran := false
	result := s.Run(func() any { ran = true; return 1 })
	if ran || result != nil {
		t.Error("running a stopped owner must not call fn")
	}
	if len(codes) != 1 || codes[0] != "W004" {
		t.Errorf("expected a single W004 warning, got %v", codes)
	}
}

func TestOnDisposeOutsideOwnerWarns(t *testing.T) {
	DebugMode = true
	defer func() { DebugMode = false; SetWarnHandler(nil) }()

	var codes []string
	SetWarnHandler(func(code, msg string) { codes = append(codes, code) })

	called := false
	OnDispose(func() { called = true })
	if called {
		t.Error("dropped callback must never run")
	}
	if len(codes) != 1 || codes[0] != "W005" {
		t.Errorf("expected a single W005 warning, got %v", codes)
	}
}

func TestOwnerOnOff(t *testing.T) {
	s := NewOwner()

	s.On()
	if CurrentOwner() != s {
		t.Error("On must install the owner")
	}
	e := CreateEffect(func() {})
	s.Off()
	if CurrentOwner() == s {
		t.Error("Off must uninstall the owner")
	}

	s.Stop()
	if e.Active() {
		t.Error("effect created under On/Off must be owned and stopped")
	}
}

func TestOwnerRunRestoresPrevious(t *testing.T) {
	outer := NewOwner()
	inner := NewOwner()

	outer.Run(func() any {
		inner.Run(func() any {
			if CurrentOwner() != inner {
				t.Error("inner owner should be current")
			}
			return nil
		})
		if CurrentOwner() != outer {
			t.Error("outer owner should be restored")
		}
		return nil
	})
	if CurrentOwner() != nil {
		t.Error("no owner should remain installed")
	}
}

func TestOwnerStopsMemos(t *testing.T) {
	a := NewRef(1)
	calls := 0

	s := NewOwner()
	var m *Memo
	s.Run(func() any {
		m = NewMemo(func() any { calls++; return a.Get() })
		return nil
	})

	_ = m.Get()
	s.Stop()
	a.Set(2)
	_ = m.Get()

	if calls != 1 {
		t.Errorf("a memo owned by a stopped scope must not recompute, got %d calls", calls)
	}
}
