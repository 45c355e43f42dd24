// Package strand is a fine-grained, pull-based reactivity engine.
//
// The engine turns mutable data into observable cells, lets user code declare
// derived (memoized) values and effects (side-effectful subscribers), and
// re-executes effects when, and only when, observed data has actually changed.
//
// # Core Types
//
// Ref is a single-slot reactive value:
//
//	count := NewRef(0)
//	value := count.Get()  // read (subscribes the running effect)
//	count.Set(5)          // write (triggers subscribers)
//
// Memo is a lazy, cached derivation:
//
//	doubled := NewMemo(func() any { return count.Get().(int) * 2 })
//	value := doubled.Get()  // recomputes only if a dependency changed
//
// Effect re-runs when its dependencies change:
//
//	CreateEffect(func() {
//	    fmt.Println("count is", count.Get())
//	})
//
// Reactive wraps plain aggregates (maps, lists, sets) so that keyed reads and
// writes are tracked per key:
//
//	state := Reactive(map[string]any{"done": false})
//	CreateEffect(func() { fmt.Println(state.Get("done")) })
//	state.Set("done", true)  // effect re-runs
//
// Owner scopes batch the teardown of everything created inside them:
//
//	scope := NewOwner()
//	scope.Run(func() any { CreateEffect(...); return nil })
//	scope.Stop()  // stops the effect, runs cleanups
//
// # Dirty Levels
//
// Change propagation is three-valued. Direct writes mark subscribers Dirty; a
// memo whose upstream changed is only MaybeDirty, because its own output may
// not change. A MaybeDirty effect resolves itself on demand by recomputing the
// memos it read, in read order, and only stays dirty if one of them actually
// produced a new value. This keeps diamond-shaped graphs from recomputing
// expensive derivations that cannot have changed.
//
// # Concurrency
//
// The engine assumes a single mutator. Ambient state (the running effect, the
// tracking switch, the active owner, the scheduler queue) is per-goroutine, so
// independent graphs may live on separate goroutines, but a single graph must
// not be mutated from two goroutines at once.
package strand
