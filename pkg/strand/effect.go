package strand

// Effect is the unit of re-execution: a user function plus the list of deps
// it read on its latest run. Writes to any of those deps raise the effect's
// dirty level; the effect's scheduler then decides when (or whether) to
// re-run.
//
// Effects are created with CreateEffect, or implicitly by NewMemo. A stopped
// effect keeps working as a plain function but no longer tracks or reacts.
type Effect struct {
	id uint64

	// fn is the user function; its return value is surfaced by Run.
	fn func() any

	// announce fires when a trigger raises this effect out of Clean. It is
	// the cheap notification hook: memos use it to forward MaybeDirty to
	// their own subscribers. User-visible work belongs in scheduler.
	announce func()

	// scheduler is queued on trigger and drained at the end of the
	// outermost scheduling bracket. Plain effects default to run-if-dirty.
	scheduler func()

	// deps are the dep tables this effect is subscribed to, in the order
	// they were first read on the latest run. Slots past depsLen are
	// leftovers from the previous run awaiting the post-run sweep.
	deps    []*Dep
	depsLen int

	// trackID is the current run epoch. A dep entry recorded under an
	// older epoch is stale.
	trackID int

	// runnings counts nested invocations; scheduling is suppressed while
	// non-zero unless allowRecurse is set.
	runnings int

	shouldSchedule bool
	dirtyLevel     DirtyLevel
	active         bool
	allowRecurse   bool

	onStop    func()
	onTrack   func(DebugEvent)
	onTrigger func(DebugEvent)
}

// newEffect wires an effect and records it into owner (or the current owner
// when owner is nil). The effect starts Dirty so a lazy first Run always
// computes.
func newEffect(fn func() any, announce, scheduler func(), owner *Owner) *Effect {
	e := &Effect{
		id:         nextID(),
		fn:         fn,
		announce:   announce,
		scheduler:  scheduler,
		dirtyLevel: Dirty,
		active:     true,
	}
	statEffectsCreated.Add(1)

	if owner == nil {
		owner = CurrentOwner()
	}
	if owner != nil {
		owner.adopt(e)
	}
	return e
}

// ID returns the unique identifier for this effect.
func (e *Effect) ID() uint64 {
	return e.id
}

// Active reports whether the effect still tracks and reacts.
func (e *Effect) Active() bool {
	return e.active
}

// DirtyLevel returns the effect's current staleness marker without
// resolving MaybeDirty.
func (e *Effect) DirtyLevel() DirtyLevel {
	return e.dirtyLevel
}

// Dirty reports whether the effect needs a re-run, resolving MaybeDirty by
// recomputing the memos among its deps in recorded-read order. The walk
// stops as soon as one recompute reports an actual change; if none does, the
// effect settles back to Clean.
func (e *Effect) Dirty() bool {
	if e.dirtyLevel == MaybeDirty {
		PauseTracking()
		for i := 0; i < e.depsLen; i++ {
			if d := e.deps[i]; d.memo != nil {
				d.memo.refresh()
				if e.dirtyLevel >= Dirty {
					break
				}
			}
		}
		if e.dirtyLevel == MaybeDirty {
			e.dirtyLevel = Clean
		}
		ResetTracking()
	}
	return e.dirtyLevel >= Dirty
}

// Run executes the effect's function with tracking installed and returns its
// result. The dep list is rebuilt in read order: deps re-read keep their
// slot, deps no longer read are swept off the tail afterwards. Ambient state
// is restored on every exit path, including panics out of fn.
func (e *Effect) Run() any {
	statEffectRuns.Add(1)
	e.dirtyLevel = Clean
	if !e.active {
		return e.fn()
	}

	if observer != nil {
		observer.EffectRunStarted(e)
	}

	tc := getTrackingContext()
	lastShouldTrack := tc.shouldTrack
	lastEffect := tc.activeEffect
	tc.shouldTrack = true
	tc.activeEffect = e
	e.runnings++
	e.preClean()

	defer func() {
		e.postClean()
		e.runnings--
		tc.activeEffect = lastEffect
		tc.shouldTrack = lastShouldTrack
		if observer != nil {
			observer.EffectRunFinished(e)
		}
	}()

	return e.fn()
}

// Stop severs all dep memberships, fires the stop hook, and deactivates the
// effect. Idempotent; later triggers skip the effect because its epoch no
// longer matches any table entry.
func (e *Effect) Stop() {
	if !e.active {
		return
	}
	e.preClean()
	e.postClean()
	if e.onStop != nil {
		e.onStop()
	}
	e.active = false
}

// preClean opens a new run epoch and resets the dep high-water mark.
func (e *Effect) preClean() {
	e.trackID++
	e.depsLen = 0
}

// postClean sweeps dep slots beyond the high-water mark: anything left there
// was read on a previous run but not this one.
func (e *Effect) postClean() {
	if len(e.deps) > e.depsLen {
		for i := e.depsLen; i < len(e.deps); i++ {
			e.deps[i].release(e)
		}
		e.deps = e.deps[:e.depsLen]
	}
}

// track records d as the next dependency of this run. Re-reads within the
// same run are deduplicated by epoch. A dep evicted from its slot is
// released immediately, which keeps the dep list equal to the latest run's
// read order at all times.
func (e *Effect) track(d *Dep, ev func() DebugEvent) {
	if id, ok := d.ids[e]; ok && id == e.trackID {
		return
	}
	if _, ok := d.ids[e]; !ok {
		d.order = append(d.order, e)
	}
	d.ids[e] = e.trackID

	var old *Dep
	if e.depsLen < len(e.deps) {
		old = e.deps[e.depsLen]
	}
	if old != d {
		if old != nil {
			old.release(e)
		}
		if e.depsLen < len(e.deps) {
			e.deps[e.depsLen] = d
		} else {
			e.deps = append(e.deps, d)
		}
	}
	e.depsLen++

	if DebugMode && e.onTrack != nil && ev != nil {
		event := ev()
		event.Effect = e
		e.onTrack(event)
	}
}

// =============================================================================
// Public constructor
// =============================================================================

// EffectOption configures CreateEffect.
type EffectOption interface {
	isEffectOption()
	apply(*effectSettings)
}

type effectSettings struct {
	lazy         bool
	scheduler    func()
	owner        *Owner
	allowRecurse bool
	onStop       func()
	onTrack      func(DebugEvent)
	onTrigger    func(DebugEvent)
}

type effectOptionFunc func(*effectSettings)

func (f effectOptionFunc) isEffectOption()         {}
func (f effectOptionFunc) apply(s *effectSettings) { f(s) }

// Lazy defers the first run; the caller invokes Run when ready.
func Lazy() EffectOption {
	return effectOptionFunc(func(s *effectSettings) { s.lazy = true })
}

// Scheduler replaces the default run-if-dirty behavior. When a dependency
// changes, fn is queued instead of re-running the effect; the effect re-runs
// only when fn (or other user code) calls Run.
func Scheduler(fn func()) EffectOption {
	return effectOptionFunc(func(s *effectSettings) { s.scheduler = fn })
}

// InOwner records the effect into o instead of the current owner.
func InOwner(o *Owner) EffectOption {
	return effectOptionFunc(func(s *effectSettings) { s.owner = o })
}

// AllowRecurse lets the effect schedule itself from within its own run.
// Without it, self-triggering while running is suppressed to prevent storms.
func AllowRecurse() EffectOption {
	return effectOptionFunc(func(s *effectSettings) { s.allowRecurse = true })
}

// OnStop registers a hook that runs once when the effect stops.
func OnStop(fn func()) EffectOption {
	return effectOptionFunc(func(s *effectSettings) { s.onStop = fn })
}

// OnTrack registers a DebugMode hook fired for every dependency this effect
// records.
func OnTrack(fn func(DebugEvent)) EffectOption {
	return effectOptionFunc(func(s *effectSettings) { s.onTrack = fn })
}

// OnTrigger registers a DebugMode hook fired when a write raises this effect
// out of Clean.
func OnTrigger(fn func(DebugEvent)) EffectOption {
	return effectOptionFunc(func(s *effectSettings) { s.onTrigger = fn })
}

// CreateEffect creates an effect around fn and, unless Lazy is given, runs it
// immediately. The effect re-runs whenever a cell, memo, or wrapped aggregate
// it read during its latest run changes.
//
// Example:
//
//	count := NewRef(0)
//	CreateEffect(func() {
//	    fmt.Println("count is", count.Get())
//	})
//	count.Set(1) // prints again
func CreateEffect(fn func(), opts ...EffectOption) *Effect {
	var s effectSettings
	for _, opt := range opts {
		opt.apply(&s)
	}

	e := newEffect(func() any { fn(); return nil }, nil, nil, s.owner)
	if s.scheduler != nil {
		e.scheduler = s.scheduler
	} else {
		e.scheduler = func() {
			if e.Dirty() {
				e.Run()
			}
		}
	}
	e.allowRecurse = s.allowRecurse
	e.onStop = s.onStop
	e.onTrack = s.onTrack
	e.onTrigger = s.onTrigger

	if !s.lazy {
		e.Run()
	}
	return e
}
