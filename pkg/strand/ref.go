package strand

// Signal is the common surface of every reactive cell: plain refs, memos,
// custom refs, property projections, and getter refs. Get subscribes the
// running effect; Peek reads without subscribing; Set writes (read-only
// cells warn in DebugMode and ignore the write).
type Signal interface {
	Get() any
	Set(v any)
	Peek() any

	// isSignal brands the cell so IsSignal cannot be satisfied by
	// accident.
	isSignal()
}

// forceTriggerable is implemented by cells that can retrigger without a
// value change.
type forceTriggerable interface {
	forceTrigger()
}

// readonlyCell is implemented by cells that reject writes.
type readonlyCell interface {
	isReadonlyCell() bool
}

// IsSignal reports whether x is a reactive cell.
func IsSignal(x any) bool {
	_, ok := x.(Signal)
	return ok
}

// Unref returns x's value if x is a cell (subscribing the running effect),
// or x itself otherwise.
func Unref(x any) any {
	if s, ok := x.(Signal); ok {
		return s.Get()
	}
	return x
}

// ToValue normalizes a value, cell, or zero-arg getter into a plain value.
func ToValue(x any) any {
	if fn, ok := x.(func() any); ok {
		return fn()
	}
	return Unref(x)
}

// TriggerRef forces a Dirty trigger on a cell without a value change. Used
// to refresh subscribers of a shallow ref after its inner value was mutated
// in place.
func TriggerRef(s Signal) {
	if f, ok := s.(forceTriggerable); ok {
		f.forceTrigger()
	}
}

// =============================================================================
// refBase: shared dep bookkeeping for Ref, Memo, and CustomRef
// =============================================================================

// refBase carries the lazily-created dep of a single-value cell.
type refBase struct {
	dep *Dep

	// memo is set when the cell is a memo, giving the dep its owner
	// back-pointer for MaybeDirty resolution.
	memo *Memo
}

// trackValue subscribes the running effect to the cell's dep.
func (b *refBase) trackValue(cell any) {
	tc := getTrackingContext()
	if !tc.shouldTrack || tc.activeEffect == nil {
		return
	}
	if b.dep == nil {
		b.dep = newDep(func() { b.dep = nil }, b.memo)
	}
	tc.activeEffect.track(b.dep, func() DebugEvent {
		return DebugEvent{Target: cell, Type: OpGet, Key: "value"}
	})
}

// triggerValue raises the cell's subscribers to level.
func (b *refBase) triggerValue(level DirtyLevel, cell, newValue, oldValue any) {
	if b.dep == nil {
		return
	}
	b.dep.trigger(level, func() DebugEvent {
		return DebugEvent{
			Target:   cell,
			Type:     OpSet,
			Key:      "value",
			NewValue: newValue,
			OldValue: oldValue,
		}
	})
}

// =============================================================================
// Ref
// =============================================================================

// Ref is the standard single-slot cell. Deep refs pass aggregate values
// through the proxy layer, so reads return a reactive view; shallow refs
// store values as given.
type Ref struct {
	refBase

	// raw is the last-set underlying value; view is its reactive wrapper,
	// or the same value when no wrapping applies.
	raw     any
	view    any
	shallow bool
}

// NewRef creates a deep ref. An aggregate initial value is wrapped
// reactively. Passing an existing Ref returns it unchanged.
func NewRef(v any) *Ref {
	if existing, ok := v.(*Ref); ok {
		return existing
	}
	r := &Ref{}
	r.raw = ToRaw(v)
	r.view = toReactive(v)
	return r
}

// NewShallowRef creates a ref that never wraps its value. Only replacing the
// value itself triggers; in-place mutation of the inner value is invisible
// until TriggerRef.
func NewShallowRef(v any) *Ref {
	return &Ref{raw: v, view: v, shallow: true}
}

// Get returns the reactive view, subscribing the running effect.
func (r *Ref) Get() any {
	r.trackValue(r)
	return r.view
}

// Peek returns the view without subscribing.
func (r *Ref) Peek() any {
	return r.view
}

// Set replaces the value. The new value is unwrapped to its raw form unless
// this ref is shallow or the value is itself shallow or read-only; the write
// triggers only if the raw value actually changed (NaN-aware).
func (r *Ref) Set(v any) {
	useDirect := r.shallow || IsShallow(v) || IsReadonly(v)
	if !useDirect {
		v = ToRaw(v)
	}
	if !hasChanged(v, r.raw) {
		return
	}
	old := r.raw
	r.raw = v
	if useDirect {
		r.view = v
	} else {
		r.view = toReactive(v)
	}
	r.triggerValue(Dirty, r, v, old)
}

// Update applies fn to the current value and sets the result.
func (r *Ref) Update(fn func(any) any) {
	r.Set(fn(r.view))
}

// Raw returns the unwrapped stored value.
func (r *Ref) Raw() any {
	return r.raw
}

func (r *Ref) isSignal() {}

func (r *Ref) forceTrigger() {
	r.triggerValue(Dirty, r, r.raw, r.raw)
}

// =============================================================================
// CustomRef
// =============================================================================

// CustomRefFactory builds the getter and setter of a custom ref. The track
// and trigger hooks it receives are bound to the cell's dep: call track
// inside the getter and trigger inside the setter.
type CustomRefFactory func(track func(), trigger func()) (get func() any, set func(v any))

// CustomRef is a cell whose read and write behavior is user-supplied, with
// explicit control over when it tracks and triggers. The classic use is
// debouncing writes.
type CustomRef struct {
	refBase
	get func() any
	set func(v any)
}

// NewCustomRef creates a cell from a factory.
func NewCustomRef(factory CustomRefFactory) *CustomRef {
	r := &CustomRef{}
	r.get, r.set = factory(
		func() { r.trackValue(r) },
		func() { r.triggerValue(Dirty, r, nil, nil) },
	)
	return r
}

// Get invokes the user getter.
func (r *CustomRef) Get() any {
	return r.get()
}

// Peek invokes the user getter with tracking paused.
func (r *CustomRef) Peek() any {
	PauseTracking()
	defer ResetTracking()
	return r.get()
}

// Set invokes the user setter.
func (r *CustomRef) Set(v any) {
	r.set(v)
}

func (r *CustomRef) isSignal() {}

func (r *CustomRef) forceTrigger() {
	r.triggerValue(Dirty, r, nil, nil)
}

// =============================================================================
// Property projection
// =============================================================================

// propRef projects one key of a wrapped aggregate as a two-way cell. It has
// no dep of its own; reads and writes flow through the source wrapper, so
// the projection stays live in both directions.
type propRef struct {
	source *Proxy
	key    any
	def    any
}

// ToRef projects key of a wrapped aggregate as a cell.
func ToRef(source *Proxy, key any) Signal {
	return &propRef{source: source, key: key}
}

// ToRefDefault projects key of a wrapped aggregate as a cell that yields def
// while the key is absent.
func ToRefDefault(source *Proxy, key any, def any) Signal {
	return &propRef{source: source, key: key, def: def}
}

func (r *propRef) Get() any {
	v := r.source.Get(r.key)
	if r.def != nil && !r.source.hasRaw(r.key) {
		return r.def
	}
	return v
}

func (r *propRef) Peek() any {
	PauseTracking()
	defer ResetTracking()
	return r.Get()
}

func (r *propRef) Set(v any) {
	r.source.Set(r.key, v)
}

func (r *propRef) isSignal() {}

// ToRefs fans a wrapped aggregate out into one projection cell per key. The
// key set is a snapshot: keys added later do not grow the result, but every
// returned cell stays live against the source.
//
// A non-reactive aggregate warns in DebugMode and yields snapshot cells
// seeded with the current values.
func ToRefs(source any) map[any]Signal {
	out := make(map[any]Signal)
	switch src := source.(type) {
	case *Proxy:
		for _, k := range src.rawKeys() {
			out[k] = ToRef(src, k)
		}
	case map[string]any:
		warn(codeRefsNonReactive, "ToRefs expects a reactive value; producing snapshot cells")
		for k, v := range src {
			out[k] = NewRef(v)
		}
	case map[any]any:
		warn(codeRefsNonReactive, "ToRefs expects a reactive value; producing snapshot cells")
		for k, v := range src {
			out[k] = NewRef(v)
		}
	case *List:
		warn(codeRefsNonReactive, "ToRefs expects a reactive value; producing snapshot cells")
		for i, v := range src.items {
			out[i] = NewRef(v)
		}
	default:
		warn(codeRefsNonReactive, "ToRefs expects a reactive value, got %T", source)
	}
	return out
}

// =============================================================================
// Getter ref
// =============================================================================

// getterRef wraps a zero-arg function as a read-only cell.
type getterRef struct {
	get func() any
}

// NewGetterRef wraps fn as a read-only cell; each Get invokes fn.
func NewGetterRef(fn func() any) Signal {
	return &getterRef{get: fn}
}

func (r *getterRef) Get() any {
	return r.get()
}

func (r *getterRef) Peek() any {
	PauseTracking()
	defer ResetTracking()
	return r.get()
}

func (r *getterRef) Set(any) {
	warn(codeReadonlyCell, "write to a getter ref ignored")
}

func (r *getterRef) isSignal() {}

func (r *getterRef) isReadonlyCell() bool { return true }
