package strand

import (
	"fmt"
	"testing"
)

func TestMemoLazyCompute(t *testing.T) {
	v := NewRef(map[string]any{})
	calls := 0
	c := NewMemo(func() any {
		calls++
		return v.Get().(*Proxy).Get("foo")
	})

	if calls != 0 {
		t.Fatalf("getter must not run before the first read, got %d calls", calls)
	}

	if got := c.Get(); got != nil {
		t.Errorf("expected nil for missing key, got %v", got)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call after first read, got %d", calls)
	}

	_ = c.Get()
	if calls != 1 {
		t.Fatalf("second read must hit the cache, got %d calls", calls)
	}

	v.Get().(*Proxy).Set("foo", 1)
	if calls != 1 {
		t.Fatalf("a write alone must not recompute, got %d calls", calls)
	}

	if got := c.Get(); got != 1 {
		t.Errorf("expected 1 after write, got %v", got)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls after read-past-write, got %d", calls)
	}
}

func TestMemoDepOrderStability(t *testing.T) {
	a := NewRef(0)
	b := NewMemo(func() any { return a.Get().(int)%3 != 0 })
	d := NewMemo(func() any { return a.Get().(int)%3 == 2 })

	cCalls := 0
	c := NewMemo(func() any {
		cCalls++
		return "expensive"
	})

	e := NewMemo(func() any {
		if b.Get().(bool) {
			if d.Get().(bool) {
				return "avoid"
			}
			return c.Get()
		}
		return c.Get()
	})

	_ = e.Get()
	a.Set(a.Peek().(int) + 1)
	_ = e.Get()

	// The dep list mirrors the read order of the latest run: b, then d,
	// then c.
	eff := e.Effect()
	if eff.depsLen != 3 {
		t.Fatalf("expected 3 deps, got %d", eff.depsLen)
	}
	if eff.deps[0] != b.dep || eff.deps[1] != d.dep || eff.deps[2] != c.dep {
		t.Error("dep list must equal the latest run's access order [b, d, c]")
	}

	if cCalls > 2 {
		t.Errorf("expensive getter must run at most twice, ran %d times", cCalls)
	}
}

func TestMemoSelfInvalidatingChain(t *testing.T) {
	v := NewRef(0)
	c1 := NewMemo(func() any {
		if v.Get().(int) == 0 {
			v.Set(1)
		}
		return "foo"
	})
	c2 := NewMemo(func() any {
		return fmt.Sprintf("%v%v", v.Get(), c1.Get())
	})

	if got := c2.Get(); got != "0foo" {
		t.Errorf(`expected "0foo" on first read, got %q`, got)
	}
	if got := c2.Get(); got != "1foo" {
		t.Errorf(`expected "1foo" on second read, got %q`, got)
	}
	if got := c2.Get(); got != "1foo" {
		t.Errorf(`expected a stable "1foo" once converged, got %q`, got)
	}
}

func TestMemoUnchangedValueDoesNotPropagate(t *testing.T) {
	a := NewRef(0)
	parity := NewMemo(func() any { return a.Get().(int) % 2 })

	downstreamCalls := 0
	downstream := NewMemo(func() any {
		downstreamCalls++
		return parity.Get().(int) + 10
	})

	if downstream.Get() != 10 {
		t.Fatalf("expected 10, got %v", downstream.Get())
	}

	// 0 -> 2 keeps parity at 0: downstream must resolve MaybeDirty back to
	// Clean without recomputing.
	a.Set(2)
	if downstream.Get() != 10 {
		t.Errorf("expected 10, got %v", downstream.Get())
	}
	if downstreamCalls != 1 {
		t.Errorf("downstream must not recompute on an unchanged upstream, got %d calls", downstreamCalls)
	}

	a.Set(3)
	if downstream.Get() != 11 {
		t.Errorf("expected 11, got %v", downstream.Get())
	}
	if downstreamCalls != 2 {
		t.Errorf("expected exactly one more recompute, got %d calls", downstreamCalls)
	}
}

func TestMemoCachedAcrossEffectReads(t *testing.T) {
	a := NewRef(1)
	calls := 0
	double := NewMemo(func() any {
		calls++
		return a.Get().(int) * 2
	})

	var seen []int
	CreateEffect(func() {
		seen = append(seen, double.Get().(int))
	})

	a.Set(2)
	a.Set(2) // no change, no run

	if calls != 2 {
		t.Errorf("expected 2 computations, got %d", calls)
	}
	if len(seen) != 2 || seen[0] != 2 || seen[1] != 4 {
		t.Errorf("expected effect to see [2 4], got %v", seen)
	}
}

func TestWritableMemo(t *testing.T) {
	celsius := NewRef(0.0)
	fahrenheit := NewWritableMemo(
		func() any { return celsius.Get().(float64)*9/5 + 32 },
		func(v any) { celsius.Set((v.(float64) - 32) * 5 / 9) },
	)

	if fahrenheit.Get() != 32.0 {
		t.Errorf("expected 32, got %v", fahrenheit.Get())
	}
	if fahrenheit.ReadOnly() {
		t.Error("writable memo must not report read-only")
	}

	fahrenheit.Set(212.0)
	if celsius.Get() != 100.0 {
		t.Errorf("expected setter write-through to give 100, got %v", celsius.Get())
	}
	if fahrenheit.Get() != 212.0 {
		t.Errorf("expected 212 after write-through, got %v", fahrenheit.Get())
	}
}

func TestReadOnlyMemoIgnoresWrites(t *testing.T) {
	DebugMode = true
	defer func() { DebugMode = false; SetWarnHandler(nil) }()

	var codes []string
	SetWarnHandler(func(code, msg string) { codes = append(codes, code) })

	a := NewRef(1)
	m := NewMemo(func() any { return a.Get() })
	if !m.ReadOnly() || !IsReadonly(m) {
		t.Error("memo without setter must report read-only")
	}

	_ = m.Get()
	m.Set(99)
	if m.Get() != 1 {
		t.Errorf("write must not change a read-only memo, got %v", m.Get())
	}
	if len(codes) != 1 || codes[0] != "W003" {
		t.Errorf("expected a single W003 warning, got %v", codes)
	}
}

func TestMemoNoCacheRecomputesEveryRead(t *testing.T) {
	a := NewRef(1)
	calls := 0
	m := NewMemo(func() any {
		calls++
		return a.Get()
	}, NoCache())

	_ = m.Get()
	_ = m.Get()
	if calls != 2 {
		t.Errorf("NoCache memo must recompute per read, got %d calls", calls)
	}
}

func TestMemoStoppedEffectServesCache(t *testing.T) {
	a := NewRef(1)
	m := NewMemo(func() any { return a.Get().(int) * 10 })

	if m.Get() != 10 {
		t.Fatalf("expected 10, got %v", m.Get())
	}

	m.Effect().Stop()
	a.Set(2)

	// A stopped memo is detached from its sources: it serves the last
	// cached value and never recomputes.
	if m.Get() != 10 {
		t.Errorf("expected a stopped memo to keep serving 10, got %v", m.Get())
	}
}
