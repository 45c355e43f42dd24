package strand

import (
	"reflect"
	"sort"
)

// Proxy is the reactive view of a wrapped aggregate. All four variants
// (mutable/read-only × deep/shallow) share this one operation set; the flags
// select the variant behavior.
//
// Reads through a mutable variant inside a running effect subscribe it to the
// accessed key; read-only variants record no keyed reads. Writes trigger
// exactly the subscribers of the touched keys. Deep variants wrap
// aggregate results on the way out and unwrap written values to their raw
// form on the way in.
type Proxy struct {
	kind     targetKind
	target   any
	readonly bool
	shallow  bool
}

// Raw returns the underlying aggregate.
func (p *Proxy) Raw() any {
	return p.target
}

// Readonly reports whether this is a read-only variant.
func (p *Proxy) Readonly() bool {
	return p.readonly
}

// Shallow reports whether this is a shallow variant.
func (p *Proxy) Shallow() bool {
	return p.shallow
}

// wrapNested applies the variant's deep-wrap rule to a read result.
func (p *Proxy) wrapNested(v any) any {
	if p.readonly {
		return toReadonly(v)
	}
	return toReactive(v)
}

// storeValue applies the variant's unwrap rule to a written value.
func (p *Proxy) storeValue(v any) any {
	if !p.shallow && !IsShallow(v) && !IsReadonly(v) {
		return ToRaw(v)
	}
	return v
}

// =============================================================================
// Keyed access
// =============================================================================

// Get reads the value under key: a string for mappings, any comparable key
// for keyed containers, an int index for sequences. Mutable variants track
// the read under the key. On non-sequences a stored cell is unwrapped to its value;
// deep variants wrap aggregate results reactively on the way out.
func (p *Proxy) Get(key any) any {
	switch p.kind {
	case kindRecord:
		k, ok := key.(string)
		if !ok {
			warn(codeBadKey, "mapping keys are strings, got %T", key)
			return nil
		}
		m := p.target.(map[string]any)
		if !p.readonly {
			track(p.target, OpGet, k)
		}
		return p.readResult(m[k])

	case kindMap:
		k := ToRaw(key)
		m := p.target.(map[any]any)
		if !p.readonly {
			track(p.target, OpGet, k)
		}
		return p.readResult(m[k])

	case kindList:
		i, ok := key.(int)
		if !ok {
			warn(codeBadKey, "sequence keys are ints, got %T", key)
			return nil
		}
		l := p.target.(*List)
		if !p.readonly {
			track(p.target, OpGet, i)
		}
		if i < 0 || i >= len(l.items) {
			return nil
		}
		if p.shallow {
			return l.items[i]
		}
		// Sequences never unwrap stored cells: a list of refs keeps its
		// cell semantics.
		return p.wrapNested(l.items[i])

	default:
		warn(codeBadKey, "Get is not defined for sets; use Has")
		return nil
	}
}

// readResult applies the non-sequence read rules: shallow variants return as
// stored, cells unwrap, aggregates deep-wrap.
func (p *Proxy) readResult(v any) any {
	if p.shallow {
		return v
	}
	if s, ok := v.(Signal); ok {
		return s.Get()
	}
	return p.wrapNested(v)
}

// Set writes value under key. The old and new values are unwrapped to raw
// form unless the variant is shallow or the value is itself shallow or
// read-only. On non-sequences, writing a plain value over a stored cell
// forwards the write into the cell instead of replacing it. Absent keys
// emit an add, changed values a set; equal values (NaN-aware) are silent.
func (p *Proxy) Set(key, value any) {
	if p.readonly {
		warn(codeReadonlyWrite, "set %v on read-only wrapper ignored", key)
		return
	}

	switch p.kind {
	case kindRecord:
		k, ok := key.(string)
		if !ok {
			warn(codeBadKey, "mapping keys are strings, got %T", key)
			return
		}
		m := p.target.(map[string]any)
		old, had := m[k]
		value, done := p.prepareWrite(old, value)
		if done {
			return
		}
		m[k] = value
		if !had {
			trigger(p.target, OpAdd, k, value, nil, nil)
		} else if hasChanged(value, old) {
			trigger(p.target, OpSet, k, value, old, nil)
		}

	case kindMap:
		k := ToRaw(key)
		m := p.target.(map[any]any)
		old, had := m[k]
		value, done := p.prepareWrite(old, value)
		if done {
			return
		}
		m[k] = value
		if !had {
			trigger(p.target, OpAdd, k, value, nil, nil)
		} else if hasChanged(value, old) {
			trigger(p.target, OpSet, k, value, old, nil)
		}

	case kindList:
		i, ok := key.(int)
		if !ok {
			warn(codeBadKey, "sequence keys are ints, got %T", key)
			return
		}
		l := p.target.(*List)
		value = p.storeValue(value)
		switch {
		case i >= 0 && i < len(l.items):
			old := l.items[i]
			if !p.shallow {
				old = ToRaw(old)
			}
			l.items[i] = value
			if hasChanged(value, old) {
				trigger(p.target, OpSet, i, value, old, nil)
			}
		case i == len(l.items):
			l.items = append(l.items, value)
			trigger(p.target, OpAdd, i, value, nil, nil)
		default:
			warn(codeBadKey, "index %d out of range for length %d", i, len(l.items))
		}

	default:
		warn(codeBadKey, "Set is not defined for sets; use Add")
	}
}

// prepareWrite applies the deep-variant unwrap and ref-forwarding rules for
// non-sequence writes. It returns the value to store, and done=true when the
// write was forwarded into an existing cell (or rejected) and nothing should
// be stored.
func (p *Proxy) prepareWrite(old, value any) (any, bool) {
	if p.shallow {
		return value, false
	}
	if !IsShallow(value) && !IsReadonly(value) {
		old = ToRaw(old)
		value = ToRaw(value)
	}
	if oldCell, ok := old.(Signal); ok {
		if _, newIsCell := value.(Signal); !newIsCell {
			if IsReadonly(oldCell) {
				warn(codeReadonlyCell, "write through to a read-only cell ignored")
				return nil, true
			}
			oldCell.Set(value)
			return nil, true
		}
	}
	return value, false
}

// Has reports key presence, tracked under the key. Set membership keys are
// unwrapped to raw form first.
func (p *Proxy) Has(key any) bool {
	switch p.kind {
	case kindRecord:
		k, ok := key.(string)
		if !ok {
			return false
		}
		if !p.readonly {
			track(p.target, OpHas, k)
		}
		_, present := p.target.(map[string]any)[k]
		return present

	case kindMap:
		k := ToRaw(key)
		if !p.readonly {
			track(p.target, OpHas, k)
		}
		_, present := p.target.(map[any]any)[k]
		return present

	case kindList:
		i, ok := key.(int)
		if !ok {
			return false
		}
		if !p.readonly {
			track(p.target, OpHas, i)
		}
		return i >= 0 && i < len(p.target.(*List).items)

	default:
		k := ToRaw(key)
		if !p.readonly {
			track(p.target, OpHas, k)
		}
		_, present := p.target.(*Set).items[k]
		return present
	}
}

// Delete removes key, emitting a delete trigger when it was present.
func (p *Proxy) Delete(key any) bool {
	if p.readonly {
		warn(codeReadonlyDelete, "delete %v on read-only wrapper ignored", key)
		return false
	}

	switch p.kind {
	case kindRecord:
		k, ok := key.(string)
		if !ok {
			return false
		}
		m := p.target.(map[string]any)
		old, had := m[k]
		if had {
			delete(m, k)
			trigger(p.target, OpDelete, k, nil, old, nil)
		}
		return had

	case kindMap:
		k := ToRaw(key)
		m := p.target.(map[any]any)
		old, had := m[k]
		if had {
			delete(m, k)
			trigger(p.target, OpDelete, k, nil, old, nil)
		}
		return had

	case kindSet:
		k := ToRaw(key)
		s := p.target.(*Set)
		_, had := s.items[k]
		if had {
			delete(s.items, k)
			trigger(p.target, OpDelete, k, nil, k, nil)
		}
		return had

	default:
		warn(codeBadKey, "Delete is not defined for sequences")
		return false
	}
}

// Add inserts a member into a wrapped set.
func (p *Proxy) Add(v any) {
	if p.readonly {
		warn(codeReadonlyWrite, "add on read-only wrapper ignored")
		return
	}
	if p.kind != kindSet {
		warn(codeBadKey, "Add is only defined for sets")
		return
	}
	member := p.storeValue(v)
	if member == nil || !reflect.TypeOf(member).Comparable() {
		warn(codeBadKey, "set members must be comparable, got %T", member)
		return
	}
	s := p.target.(*Set)
	if _, ok := s.items[member]; ok {
		return
	}
	s.items[member] = struct{}{}
	trigger(p.target, OpAdd, member, member, nil, nil)
}

// Clear empties a keyed container or set, triggering every dep registered on
// the target.
func (p *Proxy) Clear() {
	if p.readonly {
		warn(codeReadonlyWrite, "clear on read-only wrapper ignored")
		return
	}

	switch p.kind {
	case kindMap:
		m := p.target.(map[any]any)
		if len(m) == 0 {
			return
		}
		var oldTarget any
		if DebugMode {
			snap := make(map[any]any, len(m))
			for k, v := range m {
				snap[k] = v
			}
			oldTarget = snap
		}
		for k := range m {
			delete(m, k)
		}
		trigger(p.target, OpClear, nil, nil, nil, oldTarget)

	case kindSet:
		s := p.target.(*Set)
		if len(s.items) == 0 {
			return
		}
		var oldTarget any
		if DebugMode {
			snap := make(map[any]struct{}, len(s.items))
			for k := range s.items {
				snap[k] = struct{}{}
			}
			oldTarget = snap
		}
		for k := range s.items {
			delete(s.items, k)
		}
		trigger(p.target, OpClear, nil, nil, nil, oldTarget)

	default:
		warn(codeBadKey, "Clear is only defined for keyed containers and sets")
	}
}

// =============================================================================
// Iteration
// =============================================================================

// Len returns the element count, tracked so effects re-run when it changes:
// sequences subscribe to the length dep, everything else to the iterate dep.
func (p *Proxy) Len() int {
	switch p.kind {
	case kindRecord:
		if !p.readonly {
			track(p.target, OpIterate, iterateKey)
		}
		return len(p.target.(map[string]any))
	case kindMap:
		if !p.readonly {
			track(p.target, OpIterate, iterateKey)
		}
		return len(p.target.(map[any]any))
	case kindList:
		if !p.readonly {
			track(p.target, OpGet, lengthKey)
		}
		return len(p.target.(*List).items)
	default:
		if !p.readonly {
			track(p.target, OpIterate, iterateKey)
		}
		return len(p.target.(*Set).items)
	}
}

// Keys returns the key set, tracked under the iterate dep (the map-key
// iterate dep for keyed containers, the length dep for sequences). Mapping
// keys come back sorted for determinism; keyed-container and set orders are
// unspecified.
func (p *Proxy) Keys() []any {
	switch p.kind {
	case kindRecord:
		if !p.readonly {
			track(p.target, OpIterate, iterateKey)
		}
		m := p.target.(map[string]any)
		ks := make([]string, 0, len(m))
		for k := range m {
			ks = append(ks, k)
		}
		sort.Strings(ks)
		out := make([]any, len(ks))
		for i, k := range ks {
			out[i] = k
		}
		return out

	case kindMap:
		if !p.readonly {
			track(p.target, OpIterate, mapKeyIterateKey)
		}
		m := p.target.(map[any]any)
		out := make([]any, 0, len(m))
		for k := range m {
			out = append(out, k)
		}
		return out

	case kindList:
		if !p.readonly {
			track(p.target, OpGet, lengthKey)
		}
		n := len(p.target.(*List).items)
		out := make([]any, n)
		for i := range out {
			out[i] = i
		}
		return out

	default:
		if !p.readonly {
			track(p.target, OpIterate, iterateKey)
		}
		return p.target.(*Set).Items()
	}
}

// Values returns the values in key order (sorted keys for mappings, index
// order for sequences), tracked like ForEach.
func (p *Proxy) Values() []any {
	var out []any
	p.ForEach(func(_, v any) {
		out = append(out, v)
	})
	return out
}

// ForEach visits every entry. Mappings and sequences track the iterate/
// length dep plus each visited key, so both structural and value changes
// re-run the reader; keyed containers and sets track the iterate dep, which
// their value writes fan out to.
func (p *Proxy) ForEach(fn func(key, value any)) {
	switch p.kind {
	case kindRecord:
		for _, k := range p.Keys() {
			fn(k, p.Get(k))
		}

	case kindMap:
		if !p.readonly {
			track(p.target, OpIterate, iterateKey)
		}
		for k, v := range p.target.(map[any]any) {
			fn(k, p.readResult(v))
		}

	case kindList:
		l := p.target.(*List)
		if !p.readonly {
			track(p.target, OpGet, lengthKey)
		}
		for i := range l.items {
			fn(i, p.Get(i))
		}

	default:
		if !p.readonly {
			track(p.target, OpIterate, iterateKey)
		}
		for v := range p.target.(*Set).items {
			val := v
			if !p.shallow {
				val = p.wrapNested(v)
			}
			fn(val, val)
		}
	}
}

// hasRaw reports key presence without tracking; used by property
// projections with defaults.
func (p *Proxy) hasRaw(key any) bool {
	switch p.kind {
	case kindRecord:
		k, ok := key.(string)
		if !ok {
			return false
		}
		_, present := p.target.(map[string]any)[k]
		return present
	case kindMap:
		_, present := p.target.(map[any]any)[ToRaw(key)]
		return present
	case kindList:
		i, ok := key.(int)
		return ok && i >= 0 && i < len(p.target.(*List).items)
	default:
		_, present := p.target.(*Set).items[ToRaw(key)]
		return present
	}
}

// rawKeys returns the key snapshot without tracking; used by ToRefs.
func (p *Proxy) rawKeys() []any {
	PauseTracking()
	defer ResetTracking()
	return p.Keys()
}

// =============================================================================
// Sequence search
// =============================================================================

// Includes reports whether a sequence contains v. Every index is tracked as
// a read; when the first scan misses and v is a wrapper, the scan retries
// with v's raw form so searches are transparent over wrapped elements.
func (p *Proxy) Includes(v any) bool {
	return p.search(v, false) >= 0
}

// IndexOf returns the first index holding v, or -1. Tracks like Includes.
func (p *Proxy) IndexOf(v any) int {
	return p.search(v, false)
}

// LastIndexOf returns the last index holding v, or -1. Tracks like Includes.
func (p *Proxy) LastIndexOf(v any) int {
	return p.search(v, true)
}

func (p *Proxy) search(v any, last bool) int {
	if p.kind != kindList {
		warn(codeBadKey, "sequence search on a non-sequence wrapper")
		return -1
	}
	l := p.target.(*List)
	if !p.readonly {
		track(p.target, OpGet, lengthKey)
		for i := range l.items {
			track(p.target, OpGet, i)
		}
	}

	scan := func(x any) int {
		if last {
			for i := len(l.items) - 1; i >= 0; i-- {
				if sameValue(l.items[i], x) {
					return i
				}
			}
			return -1
		}
		for i, it := range l.items {
			if sameValue(it, x) {
				return i
			}
		}
		return -1
	}

	if idx := scan(v); idx >= 0 {
		return idx
	}
	if IsProxy(v) {
		return scan(ToRaw(v))
	}
	return -1
}

// =============================================================================
// Sequence mutation
// =============================================================================

// listMutate applies a raw mutation and converts the before/after diff into
// triggers: overwritten indices emit sets, appended indices emit adds (which
// fan out to the length dep), and a shrink emits a length write covering the
// dropped indices. The whole mutation runs with tracking and scheduling
// paused, so internal length reads do not self-subscribe and each affected
// effect runs once when the bracket closes.
func (p *Proxy) listMutate(mut func(l *List)) {
	l := p.target.(*List)
	old := make([]any, len(l.items))
	copy(old, l.items)

	PauseTracking()
	PauseScheduling()

	mut(l)

	oldLen, newLen := len(old), len(l.items)
	minLen := oldLen
	if newLen < minLen {
		minLen = newLen
	}
	for i := 0; i < minLen; i++ {
		if hasChanged(l.items[i], old[i]) {
			trigger(p.target, OpSet, i, l.items[i], old[i], nil)
		}
	}
	if newLen > oldLen {
		for i := oldLen; i < newLen; i++ {
			trigger(p.target, OpAdd, i, l.items[i], nil, nil)
		}
	} else if newLen < oldLen {
		trigger(p.target, OpSet, lengthKey, newLen, oldLen, nil)
	}

	ResetScheduling()
	ResetTracking()
}

// guardList rejects sequence mutators on wrong kinds and read-only variants.
func (p *Proxy) guardList(opName string) *List {
	if p.kind != kindList {
		warn(codeBadKey, "%s is only defined for sequences", opName)
		return nil
	}
	if p.readonly {
		warn(codeReadonlyWrite, "%s on read-only wrapper ignored", opName)
		return nil
	}
	return p.target.(*List)
}

// Push appends items and returns the new length.
func (p *Proxy) Push(items ...any) int {
	l := p.guardList("Push")
	if l == nil {
		return 0
	}
	p.listMutate(func(l *List) {
		for _, it := range items {
			l.items = append(l.items, p.storeValue(it))
		}
	})
	return len(l.items)
}

// Pop removes and returns the last item, or nil on an empty sequence.
func (p *Proxy) Pop() any {
	l := p.guardList("Pop")
	if l == nil {
		return nil
	}
	var removed any
	p.listMutate(func(l *List) {
		if n := len(l.items); n > 0 {
			removed = l.items[n-1]
			l.items = l.items[:n-1]
		}
	})
	return removed
}

// Shift removes and returns the first item, or nil on an empty sequence.
func (p *Proxy) Shift() any {
	l := p.guardList("Shift")
	if l == nil {
		return nil
	}
	var removed any
	p.listMutate(func(l *List) {
		if len(l.items) > 0 {
			removed = l.items[0]
			l.items = append(l.items[:0], l.items[1:]...)
		}
	})
	return removed
}

// Unshift prepends items and returns the new length.
func (p *Proxy) Unshift(items ...any) int {
	l := p.guardList("Unshift")
	if l == nil {
		return 0
	}
	p.listMutate(func(l *List) {
		head := make([]any, 0, len(items)+len(l.items))
		for _, it := range items {
			head = append(head, p.storeValue(it))
		}
		l.items = append(head, l.items...)
	})
	return len(l.items)
}

// Splice removes deleteCount items at start, inserts items in their place,
// and returns the removed items. Out-of-range arguments clamp.
func (p *Proxy) Splice(start, deleteCount int, items ...any) []any {
	l := p.guardList("Splice")
	if l == nil {
		return nil
	}
	var removed []any
	p.listMutate(func(l *List) {
		n := len(l.items)
		if start < 0 {
			start += n
		}
		if start < 0 {
			start = 0
		}
		if start > n {
			start = n
		}
		if deleteCount < 0 {
			deleteCount = 0
		}
		if deleteCount > n-start {
			deleteCount = n - start
		}

		removed = make([]any, deleteCount)
		copy(removed, l.items[start:start+deleteCount])

		inserted := make([]any, 0, len(items))
		for _, it := range items {
			inserted = append(inserted, p.storeValue(it))
		}

		next := make([]any, 0, n-deleteCount+len(inserted))
		next = append(next, l.items[:start]...)
		next = append(next, inserted...)
		next = append(next, l.items[start+deleteCount:]...)
		l.items = next
	})
	return removed
}

// SetLen resizes a sequence: shrinking drops tail items and triggers their
// index deps along with the length dep; growing pads with nil.
func (p *Proxy) SetLen(n int) {
	l := p.guardList("SetLen")
	if l == nil || n < 0 {
		return
	}
	p.listMutate(func(l *List) {
		switch {
		case n < len(l.items):
			l.items = l.items[:n]
		case n > len(l.items):
			for len(l.items) < n {
				l.items = append(l.items, nil)
			}
		}
	})
}
