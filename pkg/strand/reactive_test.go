package strand

import "testing"

func TestReactiveKeyedTracking(t *testing.T) {
	state := Reactive(map[string]any{"a": 1, "b": 2})
	aRuns, bRuns := 0, 0

	CreateEffect(func() { _ = state.Get("a"); aRuns++ })
	CreateEffect(func() { _ = state.Get("b"); bRuns++ })

	state.Set("a", 10)
	if aRuns != 2 || bRuns != 1 {
		t.Errorf("only the touched key's readers may run, got a=%d b=%d", aRuns, bRuns)
	}

	// Equal value: silent.
	state.Set("a", 10)
	if aRuns != 2 {
		t.Errorf("equal write must not trigger, got %d runs", aRuns)
	}
}

func TestReactiveSameProxyForSameTarget(t *testing.T) {
	m := map[string]any{"x": 1}
	p1 := Reactive(m)
	p2 := Reactive(m)
	if p1 != p2 {
		t.Error("wrapping the same target twice must return the same wrapper")
	}
	if Reactive(p1) != p1 {
		t.Error("wrapping a wrapper must return it unchanged")
	}
	if ToRaw(p1) == nil || len(ToRaw(p1).(map[string]any)) != 1 {
		t.Error("ToRaw must return the underlying target")
	}
}

func TestReactiveDeepWrapOnRead(t *testing.T) {
	state := Reactive(map[string]any{
		"nested": map[string]any{"x": 1},
	})

	nested, ok := state.Get("nested").(*Proxy)
	if !ok {
		t.Fatalf("expected nested aggregate to wrap, got %T", state.Get("nested"))
	}

	runs := 0
	CreateEffect(func() { _ = state.Get("nested").(*Proxy).Get("x"); runs++ })

	nested.Set("x", 2)
	if runs != 2 {
		t.Errorf("nested write must reach the reader, got %d runs", runs)
	}

	// The nested wrapper is cached: same proxy every read.
	if state.Get("nested") != any(nested) {
		t.Error("nested wrap must be stable across reads")
	}
}

func TestShallowReactiveSkipsNestedWrap(t *testing.T) {
	state := ShallowReactive(map[string]any{
		"nested": map[string]any{"x": 1},
	})
	if _, ok := state.Get("nested").(*Proxy); ok {
		t.Error("shallow wrapper must return nested values as stored")
	}
	if !IsShallow(state) {
		t.Error("shallow wrapper must report shallow")
	}
}

func TestReactiveAddDeleteIterate(t *testing.T) {
	state := Reactive(map[string]any{"a": 1})
	lenRuns := 0

	CreateEffect(func() { _ = state.Len(); lenRuns++ })

	// Overwriting an existing key is not a structural change.
	state.Set("a", 2)
	if lenRuns != 1 {
		t.Errorf("value overwrite must not rerun iteration readers, got %d", lenRuns)
	}

	state.Set("b", 3)
	if lenRuns != 2 {
		t.Errorf("add must rerun iteration readers, got %d", lenRuns)
	}

	if !state.Delete("b") {
		t.Error("expected delete to report presence")
	}
	if lenRuns != 3 {
		t.Errorf("delete must rerun iteration readers, got %d", lenRuns)
	}

	if state.Delete("missing") {
		t.Error("deleting an absent key must report false")
	}
	if lenRuns != 3 {
		t.Errorf("absent delete must not trigger, got %d", lenRuns)
	}
}

func TestReactiveHasTracksKey(t *testing.T) {
	state := Reactive(map[string]any{})
	runs := 0

	CreateEffect(func() { _ = state.Has("flag"); runs++ })

	state.Set("flag", true)
	if runs != 2 {
		t.Errorf("adding a watched key must rerun the has-reader, got %d", runs)
	}
}

func TestReactiveRefUnwrapAndForward(t *testing.T) {
	inner := NewRef(1)
	state := Reactive(map[string]any{"r": inner})

	if state.Get("r") != 1 {
		t.Errorf("cell under a mapping key must unwrap on read, got %v", state.Get("r"))
	}

	// A plain write over a stored cell forwards into the cell.
	state.Set("r", 5)
	if inner.Get() != 5 {
		t.Errorf("expected forwarded write, cell holds %v", inner.Get())
	}
	if state.Get("r") != 5 {
		t.Errorf("expected 5 through the wrapper, got %v", state.Get("r"))
	}

	runs := 0
	CreateEffect(func() { _ = state.Get("r"); runs++ })
	inner.Set(6)
	if runs != 2 {
		t.Errorf("direct cell write must reach wrapper readers, got %d runs", runs)
	}
}

func TestReadonlyWrapperRejectsWrites(t *testing.T) {
	DebugMode = true
	defer func() { DebugMode = false; SetWarnHandler(nil) }()

	var codes []string
	SetWarnHandler(func(code, msg string) { codes = append(codes, code) })

	ro := Readonly(map[string]any{"a": 1})
	if !IsReadonly(ro) || IsReactive(ro) {
		t.Error("readonly wrapper flags are wrong")
	}

	ro.Set("a", 2)
	ro.Delete("a")
	if ro.Get("a") != 1 {
		t.Errorf("readonly target must be unchanged, got %v", ro.Get("a"))
	}
	if len(codes) != 2 || codes[0] != "W001" || codes[1] != "W002" {
		t.Errorf("expected W001 then W002, got %v", codes)
	}
}

func TestReadonlyOverSameTargetSeesWrites(t *testing.T) {
	m := map[string]any{"a": 1}
	rw := Reactive(m)
	ro := Readonly(m)

	if ro.Get("a") != 1 {
		t.Fatalf("expected 1, got %v", ro.Get("a"))
	}

	// Writes through the mutable wrapper are visible through the readonly
	// view.
	rw.Set("a", 2)
	if ro.Get("a") != 2 {
		t.Errorf("expected readonly view to see 2, got %v", ro.Get("a"))
	}
}

func TestMarkRawOptsOut(t *testing.T) {
	m := MarkRaw(map[string]any{"a": 1}).(map[string]any)
	if Reactive(m) != nil {
		t.Error("a raw-marked target must not wrap")
	}

	// Nested raw-marked values pass through deep wrapping untouched.
	state := Reactive(map[string]any{"raw": m})
	if _, ok := state.Get("raw").(*Proxy); ok {
		t.Error("nested raw-marked value must not wrap")
	}
}

func TestKeyedContainerIteration(t *testing.T) {
	m := Reactive(map[any]any{1: "one"})
	keyRuns, valueRuns := 0, 0

	CreateEffect(func() { _ = m.Keys(); keyRuns++ })
	CreateEffect(func() { m.ForEach(func(_, _ any) {}); valueRuns++ })

	// Value overwrite: value iteration reruns, key iteration does not.
	m.Set(1, "uno")
	if keyRuns != 1 {
		t.Errorf("value overwrite must not rerun key iteration, got %d", keyRuns)
	}
	if valueRuns != 2 {
		t.Errorf("value overwrite must rerun value iteration, got %d", valueRuns)
	}

	// Structural change: both rerun.
	m.Set(2, "two")
	if keyRuns != 2 || valueRuns != 3 {
		t.Errorf("add must rerun both, got keys=%d values=%d", keyRuns, valueRuns)
	}
}

func TestKeyedContainerClear(t *testing.T) {
	m := Reactive(map[any]any{"a": 1, "b": 2})
	aRuns := 0

	CreateEffect(func() { _ = m.Get("a"); aRuns++ })

	m.Clear()
	if aRuns != 2 {
		t.Errorf("clear must reach every key reader, got %d runs", aRuns)
	}
	if m.Len() != 0 {
		t.Errorf("expected empty container, got %d", m.Len())
	}
}

func TestSetMembership(t *testing.T) {
	s := Reactive(NewSet("a"))
	sizeRuns, hasRuns := 0, 0

	CreateEffect(func() { _ = s.Len(); sizeRuns++ })
	CreateEffect(func() { _ = s.Has("b"); hasRuns++ })

	s.Add("b")
	if sizeRuns != 2 {
		t.Errorf("add must rerun size readers, got %d", sizeRuns)
	}
	if hasRuns != 2 {
		t.Errorf("add must rerun the member's has-reader, got %d", hasRuns)
	}

	// Duplicate add is silent.
	s.Add("b")
	if sizeRuns != 2 {
		t.Errorf("duplicate add must not trigger, got %d", sizeRuns)
	}

	s.Delete("b")
	if sizeRuns != 3 || !s.Has("a") || s.Has("b") {
		t.Errorf("delete must trigger and remove, got sizeRuns=%d", sizeRuns)
	}
}

func TestIsProxyFlags(t *testing.T) {
	p := Reactive(map[string]any{})
	if !IsProxy(p) || !IsReactive(p) || IsReadonly(p) || IsShallow(p) {
		t.Error("mutable deep wrapper flags are wrong")
	}
	sr := ShallowReadonly(map[string]any{})
	if !IsProxy(sr) || IsReactive(sr) || !IsReadonly(sr) || !IsShallow(sr) {
		t.Error("shallow readonly wrapper flags are wrong")
	}
	if IsProxy(map[string]any{}) {
		t.Error("plain values are not proxies")
	}
}

func TestReactiveUnsupportedWarns(t *testing.T) {
	DebugMode = true
	defer func() { DebugMode = false; SetWarnHandler(nil) }()

	var codes []string
	SetWarnHandler(func(code, msg string) { codes = append(codes, code) })

	if Reactive(42) != nil {
		t.Error("scalar must not wrap")
	}
	if len(codes) != 1 || codes[0] != "W007" {
		t.Errorf("expected a single W007 warning, got %v", codes)
	}
}
