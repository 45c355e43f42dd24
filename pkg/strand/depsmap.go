package strand

import "sync"

// sentinelKey marks the reserved dep keys that stand for whole-container
// iteration rather than a concrete key.
type sentinelKey uint8

const (
	// iterateKey is read by value/entry iteration and size reads.
	iterateKey sentinelKey = iota

	// mapKeyIterateKey is read by key-only iteration over keyed
	// containers; value-only writes do not disturb it.
	mapKeyIterateKey
)

// lengthKey is the dep key for a sequence's length. Length-shrinking writes
// trigger it together with every index dep at or past the new length.
const lengthKey = "length"

// targetMap holds the key→Dep tables of every wrapped aggregate, keyed by
// target identity. depsMu guards only the table shape; dep internals follow
// the engine's single-mutator assumption.
var (
	depsMu    sync.Mutex
	targetMap = map[any]map[any]*Dep{}
)

// track records a keyed read of target against the running effect.
func track(target any, op OpType, key any) {
	tc := getTrackingContext()
	if !tc.shouldTrack || tc.activeEffect == nil {
		return
	}

	id := identity(target)

	depsMu.Lock()
	keyDeps := targetMap[id]
	if keyDeps == nil {
		keyDeps = make(map[any]*Dep)
		targetMap[id] = keyDeps
	}
	d := keyDeps[key]
	if d == nil {
		d = newDep(func() {
			depsMu.Lock()
			delete(keyDeps, key)
			if len(keyDeps) == 0 {
				delete(targetMap, id)
			}
			depsMu.Unlock()
		}, nil)
		keyDeps[key] = d
	}
	depsMu.Unlock()

	tc.activeEffect.track(d, func() DebugEvent {
		return DebugEvent{Target: target, Type: op, Key: key}
	})
}

// trigger fans a keyed write of target out to the affected deps:
//
//   - the key's own dep, always;
//   - adds and deletes on non-sequences reach the iterate dep, plus the
//     map-key iterate dep on keyed containers;
//   - adds at integer keys on sequences reach the length dep;
//   - value overwrites on keyed containers reach the iterate dep;
//   - clears reach every dep of the target;
//   - length writes on sequences reach the length dep and every index dep at
//     or past the new length.
//
// The whole fan-out runs inside one scheduling bracket so each affected
// effect's scheduler drains once, after all announce hooks fired.
func trigger(target any, op OpType, key any, newValue, oldValue, oldTarget any) {
	id := identity(target)

	depsMu.Lock()
	keyDeps := targetMap[id]
	depsMu.Unlock()
	if keyDeps == nil {
		return
	}

	kind := kindOf(target)
	var deps []*Dep
	add := func(d *Dep) {
		if d != nil {
			deps = append(deps, d)
		}
	}

	switch {
	case op == OpClear:
		for _, d := range keyDeps {
			add(d)
		}

	case kind == kindList && key == any(lengthKey):
		newLen := newValue.(int)
		for k, d := range keyDeps {
			if k == any(lengthKey) {
				add(d)
			} else if i, ok := k.(int); ok && i >= newLen {
				add(d)
			}
		}

	default:
		add(keyDeps[key])
		switch op {
		case OpAdd:
			if kind != kindList {
				add(keyDeps[iterateKey])
				if kind == kindMap {
					add(keyDeps[mapKeyIterateKey])
				}
			} else if _, ok := key.(int); ok {
				add(keyDeps[lengthKey])
			}
		case OpDelete:
			if kind != kindList {
				add(keyDeps[iterateKey])
				if kind == kindMap {
					add(keyDeps[mapKeyIterateKey])
				}
			}
		case OpSet:
			if kind == kindMap {
				add(keyDeps[iterateKey])
			}
		}
	}

	if len(deps) == 0 {
		return
	}

	ev := func() DebugEvent {
		return DebugEvent{
			Target:    target,
			Type:      op,
			Key:       key,
			NewValue:  newValue,
			OldValue:  oldValue,
			OldTarget: oldTarget,
		}
	}

	PauseScheduling()
	for _, d := range deps {
		d.trigger(Dirty, ev)
	}
	ResetScheduling()
}
