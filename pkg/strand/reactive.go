package strand

import (
	"reflect"
	"sync"
)

// targetKind classifies the aggregates the proxy layer can wrap.
type targetKind uint8

const (
	kindInvalid targetKind = iota
	kindRecord             // map[string]any: a plain string-keyed mapping
	kindMap                // map[any]any: a keyed container with arbitrary keys
	kindList               // *List: an ordered sequence
	kindSet                // *Set: a membership set
)

// List is the ordered-sequence target. Go slices have no stable identity and
// their headers are copied on assignment, so sequences meant to be wrapped
// are held behind this pointer type: length-changing mutations through the
// wrapper stay visible to every holder.
type List struct {
	items []any
}

// NewList creates a sequence target from the given items.
func NewList(items ...any) *List {
	l := &List{items: make([]any, len(items))}
	copy(l.items, items)
	return l
}

// Len returns the raw length, without tracking.
func (l *List) Len() int {
	return len(l.items)
}

// At returns the raw item at i, without tracking. Out-of-range reads yield
// nil.
func (l *List) At(i int) any {
	if i < 0 || i >= len(l.items) {
		return nil
	}
	return l.items[i]
}

// Items returns the backing slice. Mutating it bypasses reactivity.
func (l *List) Items() []any {
	return l.items
}

// Set is the membership-set target. Members must be comparable.
type Set struct {
	items map[any]struct{}
}

// NewSet creates a set target from the given members.
func NewSet(items ...any) *Set {
	s := &Set{items: make(map[any]struct{}, len(items))}
	for _, it := range items {
		s.items[it] = struct{}{}
	}
	return s
}

// Len returns the raw member count, without tracking.
func (s *Set) Len() int {
	return len(s.items)
}

// Has reports raw membership, without tracking.
func (s *Set) Has(v any) bool {
	_, ok := s.items[v]
	return ok
}

// Items returns the members in unspecified order.
func (s *Set) Items() []any {
	out := make([]any, 0, len(s.items))
	for v := range s.items {
		out = append(out, v)
	}
	return out
}

// kindOf classifies a candidate target.
func kindOf(target any) targetKind {
	switch target.(type) {
	case map[string]any:
		return kindRecord
	case map[any]any:
		return kindMap
	case *List:
		return kindList
	case *Set:
		return kindSet
	default:
		return kindInvalid
	}
}

// identity returns a comparable identity token for a target. Pointer targets
// are their own identity; maps borrow their header pointer via reflect, the
// same reach-in the equality helper uses.
func identity(target any) any {
	switch t := target.(type) {
	case *List:
		return t
	case *Set:
		return t
	case map[string]any:
		return reflect.ValueOf(t).Pointer()
	case map[any]any:
		return reflect.ValueOf(t).Pointer()
	default:
		return target
	}
}

// =============================================================================
// Wrapper caches
// =============================================================================

// The four caches hold one wrapper per target per variant, so wrapping the
// same target twice yields the same proxy. They live for the process; the
// engine assumes wrapped targets do too.
var (
	proxyMu     sync.Mutex
	proxyCaches = [4]map[any]*Proxy{}
	rawMarks    = map[any]struct{}{}
)

func cacheIndex(readonly, shallow bool) int {
	i := 0
	if readonly {
		i |= 1
	}
	if shallow {
		i |= 2
	}
	return i
}

// MarkRaw excludes a target from wrapping for good: Reactive and friends
// return nil for it, and deep wrapping passes it through untouched. Returns x
// for chaining.
func MarkRaw(x any) any {
	if kindOf(x) == kindInvalid {
		return x
	}
	proxyMu.Lock()
	rawMarks[identity(x)] = struct{}{}
	proxyMu.Unlock()
	return x
}

func isMarkedRaw(x any) bool {
	proxyMu.Lock()
	_, ok := rawMarks[identity(x)]
	proxyMu.Unlock()
	return ok
}

// createProxy returns the cached wrapper for target under the given variant,
// creating it on first use. Returns nil for unwrappable or raw-marked
// targets.
func createProxy(target any, readonly, shallow bool) *Proxy {
	if p, ok := target.(*Proxy); ok {
		// A wrapper of any variant satisfies a mutable request, and a
		// read-only wrapper satisfies a read-only one. Only wrapping a
		// mutable wrapper read-only produces a new view, over the same
		// raw target so writes through the mutable view show through the
		// read-only one.
		if !readonly || p.readonly {
			return p
		}
		target = p.target
	}
	if kindOf(target) == kindInvalid || isMarkedRaw(target) {
		return nil
	}

	id := identity(target)
	idx := cacheIndex(readonly, shallow)

	proxyMu.Lock()
	defer proxyMu.Unlock()

	cache := proxyCaches[idx]
	if cache == nil {
		cache = make(map[any]*Proxy)
		proxyCaches[idx] = cache
	}
	if existing, ok := cache[id]; ok {
		return existing
	}
	p := &Proxy{
		kind:     kindOf(target),
		target:   target,
		readonly: readonly,
		shallow:  shallow,
	}
	cache[id] = p
	return p
}

// =============================================================================
// Public constructors and flags
// =============================================================================

// Reactive wraps a plain aggregate (map[string]any, map[any]any, *List,
// *Set) in a deep mutable wrapper. Keyed reads inside effects subscribe per
// key; nested aggregates wrap on the way out. Wrapping the same target again
// returns the same wrapper; unwrappable values warn in DebugMode and yield
// nil.
func Reactive(target any) *Proxy {
	return makeProxy(target, false, false)
}

// ShallowReactive wraps only the root: nested values return as stored.
func ShallowReactive(target any) *Proxy {
	return makeProxy(target, false, true)
}

// Readonly wraps an aggregate in a deep read-only view. Writes and deletes
// warn in DebugMode and change nothing.
func Readonly(target any) *Proxy {
	return makeProxy(target, true, false)
}

// ShallowReadonly wraps only the root read-only; nested values return as
// stored and stay writable.
func ShallowReadonly(target any) *Proxy {
	return makeProxy(target, true, true)
}

func makeProxy(target any, readonly, shallow bool) *Proxy {
	if isMarkedRaw(target) {
		return nil
	}
	p := createProxy(target, readonly, shallow)
	if p == nil {
		warn(codeNotWrappable, "value of type %T cannot be made reactive", target)
	}
	return p
}

// toReactive wraps v deeply if it is a wrappable aggregate, passing
// everything else (including raw-marked targets) through unchanged.
func toReactive(v any) any {
	if p := createProxy(v, false, false); p != nil {
		return p
	}
	return v
}

// toReadonly is toReactive's read-only counterpart.
func toReadonly(v any) any {
	if p := createProxy(v, true, false); p != nil {
		return p
	}
	return v
}

// ToRaw returns the underlying aggregate of a wrapper, or x unchanged.
func ToRaw(x any) any {
	if p, ok := x.(*Proxy); ok {
		return p.target
	}
	return x
}

// IsReactive reports whether x is a mutable wrapper.
func IsReactive(x any) bool {
	p, ok := x.(*Proxy)
	return ok && !p.readonly
}

// IsReadonly reports whether x is a read-only wrapper or read-only cell.
func IsReadonly(x any) bool {
	if p, ok := x.(*Proxy); ok {
		return p.readonly
	}
	if c, ok := x.(readonlyCell); ok {
		return c.isReadonlyCell()
	}
	return false
}

// IsShallow reports whether x is a shallow wrapper or shallow ref.
func IsShallow(x any) bool {
	if p, ok := x.(*Proxy); ok {
		return p.shallow
	}
	if r, ok := x.(*Ref); ok {
		return r.shallow
	}
	return false
}

// IsProxy reports whether x is any wrapper.
func IsProxy(x any) bool {
	_, ok := x.(*Proxy)
	return ok
}
