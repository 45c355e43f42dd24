package strand

// Memo is a lazy, cached derivation that behaves as a cell over other cells.
// The getter runs only when the value is read while stale; if the recompute
// yields the same value, downstream subscribers are left untouched.
//
// A memo's upstream changes arrive as MaybeDirty, which the memo forwards to
// its own subscribers through its announce hook. Only an actual value change
// escalates to Dirty.
type Memo struct {
	refBase

	effect *Effect
	value  any

	// cacheable is false when the host wants every read recomputed, e.g.
	// while rendering a server-side snapshot.
	cacheable bool

	setter func(any)
}

// MemoOption configures NewMemo.
type MemoOption interface {
	isMemoOption()
	apply(*memoSettings)
}

type memoSettings struct {
	noCache   bool
	owner     *Owner
	onTrack   func(DebugEvent)
	onTrigger func(DebugEvent)
}

type memoOptionFunc func(*memoSettings)

func (f memoOptionFunc) isMemoOption()         {}
func (f memoOptionFunc) apply(s *memoSettings) { f(s) }

// NoCache disables memoization: every read re-runs the getter. Dependency
// tracking still works as usual.
func NoCache() MemoOption {
	return memoOptionFunc(func(s *memoSettings) { s.noCache = true })
}

// MemoInOwner records the memo's effect into o instead of the current owner.
func MemoInOwner(o *Owner) MemoOption {
	return memoOptionFunc(func(s *memoSettings) { s.owner = o })
}

// MemoOnTrack registers a DebugMode hook fired for each dependency the
// getter records.
func MemoOnTrack(fn func(DebugEvent)) MemoOption {
	return memoOptionFunc(func(s *memoSettings) { s.onTrack = fn })
}

// MemoOnTrigger registers a DebugMode hook fired when an upstream write
// invalidates the memo.
func MemoOnTrigger(fn func(DebugEvent)) MemoOption {
	return memoOptionFunc(func(s *memoSettings) { s.onTrigger = fn })
}

// NewMemo creates a read-only memo over getter. The getter does not run
// until the first Get.
func NewMemo(getter func() any, opts ...MemoOption) *Memo {
	return newMemo(getter, nil, opts)
}

// NewWritableMemo creates a memo whose Set invokes setter; the setter
// usually writes through to the sources the getter reads.
func NewWritableMemo(getter func() any, setter func(any), opts ...MemoOption) *Memo {
	return newMemo(getter, setter, opts)
}

func newMemo(getter func() any, setter func(any), opts []MemoOption) *Memo {
	var s memoSettings
	for _, opt := range opts {
		opt.apply(&s)
	}

	m := &Memo{
		cacheable: !s.noCache,
		setter:    setter,
	}
	m.refBase.memo = m
	m.effect = newEffect(
		func() any {
			statMemoRecomputes.Add(1)
			return getter()
		},
		func() { m.triggerValue(MaybeDirty, m, nil, nil) },
		nil,
		s.owner,
	)
	m.effect.onTrack = s.onTrack
	m.effect.onTrigger = s.onTrigger
	return m
}

// Get returns the memo's value, recomputing if a dependency changed, and
// subscribes the running effect.
//
// When the recompute produces a different value (NaN-aware), subscribers are
// raised to Dirty so downstream memos know to re-evaluate. If the memo's own
// effect is still at least MaybeDirty after the recompute -- the getter
// invalidated a dependency it also reads -- MaybeDirty is forwarded so
// chained readers converge on the next read.
func (m *Memo) Get() any {
	if !m.cacheable || m.effect.Dirty() {
		old := m.value
		m.value = m.effect.Run()
		if hasChanged(m.value, old) {
			m.triggerValue(Dirty, m, m.value, old)
		}
	}
	m.trackValue(m)
	if m.effect.dirtyLevel >= MaybeDirty {
		m.triggerValue(MaybeDirty, m, nil, nil)
	}
	return m.value
}

// Peek returns the memo's value, recomputing if stale, without subscribing.
func (m *Memo) Peek() any {
	PauseTracking()
	defer ResetTracking()
	return m.Get()
}

// Set invokes the setter of a writable memo. Read-only memos warn in
// DebugMode and ignore the write.
func (m *Memo) Set(v any) {
	if m.setter == nil {
		warn(codeReadonlyCell, "write to a read-only memo ignored")
		return
	}
	m.setter(v)
}

// ReadOnly reports whether the memo has no setter.
func (m *Memo) ReadOnly() bool {
	return m.setter == nil
}

// Effect exposes the memo's inner effect, mainly for stopping it directly:
// Stop detaches the memo from its sources for good.
func (m *Memo) Effect() *Effect {
	return m.effect
}

func (m *Memo) isSignal() {}

func (m *Memo) isReadonlyCell() bool { return m.setter == nil }

// refresh forces the memo current; used by the MaybeDirty resolution walk.
// Tracking is paused by the caller, so the read subscribes nothing.
func (m *Memo) refresh() {
	_ = m.Get()
}
