package strand

// Dep is the subscriber table of one observable key: a cell's value, a memo's
// output, or one key of a wrapped aggregate.
//
// Each entry pairs a subscribed effect with the track epoch it subscribed
// under. An entry whose epoch no longer matches the effect's current epoch is
// stale: the effect did not read this dep on its latest run, and triggers
// skip it. Stale entries are removed either by the effect's post-run sweep or
// lazily here.
type Dep struct {
	// ids maps each subscriber to the track epoch recorded at
	// subscription.
	ids map[*Effect]int

	// order preserves subscriber insertion order; triggers fan out in this
	// order.
	order []*Effect

	// cleanup runs exactly once each time the table empties, letting the
	// owner of the dep drop its reference.
	cleanup func()

	// memo points back to the memo whose output this dep guards, nil for
	// plain values. Used by the MaybeDirty resolution walk.
	memo *Memo
}

// newDep creates a dep with the given empty-table callback and optional
// owning memo.
func newDep(cleanup func(), memo *Memo) *Dep {
	return &Dep{
		ids:     make(map[*Effect]int),
		cleanup: cleanup,
		memo:    memo,
	}
}

// size returns the number of live subscriptions.
func (d *Dep) size() int {
	return len(d.ids)
}

// release removes a stale subscription of e, running cleanup if the table
// empties. A subscription recorded under e's current epoch is live and left
// alone.
func (d *Dep) release(e *Effect) {
	id, ok := d.ids[e]
	if !ok || id == e.trackID {
		return
	}
	delete(d.ids, e)
	for i, s := range d.order {
		if s == e {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	if len(d.ids) == 0 && d.cleanup != nil {
		d.cleanup()
	}
}

// trigger raises every live subscriber to at least level.
//
// Subscribers are visited in insertion order. A Clean subscriber crossing
// into a dirty state is announced (its trigger callback fires) and flagged
// for scheduling; its scheduler callback is then queued unless the effect is
// mid-run without AllowRecurse. Schedulers never run inline here: the whole
// fan-out sits inside a scheduling bracket and the queue drains when the
// outermost bracket closes.
//
// ev lazily builds the debug event; it is only invoked when a hook or the
// observer will see it.
func (d *Dep) trigger(level DirtyLevel, ev func() DebugEvent) {
	statTriggers.Add(1)
	PauseScheduling()

	// Copy before notify: announce hooks may re-enter and reshape the
	// table.
	subs := make([]*Effect, len(d.order))
	copy(subs, d.order)

	for _, e := range subs {
		if id, ok := d.ids[e]; !ok || id != e.trackID {
			continue
		}
		if e.dirtyLevel < level {
			last := e.dirtyLevel
			e.dirtyLevel = level
			if last == Clean {
				e.shouldSchedule = true
				if (DebugMode && e.onTrigger != nil) || observer != nil {
					event := DebugEvent{}
					if ev != nil {
						event = ev()
					}
					event.Effect = e
					if DebugMode && e.onTrigger != nil {
						e.onTrigger(event)
					}
					if observer != nil {
						observer.Triggered(event)
					}
				}
				if e.announce != nil {
					e.announce()
				}
			}
		}
		if e.scheduler != nil && e.shouldSchedule && (e.runnings == 0 || e.allowRecurse) {
			e.shouldSchedule = false
			queueScheduler(e.scheduler)
		}
	}

	ResetScheduling()
}
