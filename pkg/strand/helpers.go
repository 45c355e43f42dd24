package strand

import (
	"math"
	"reflect"
)

// sameValue reports identity equality with NaN-awareness: NaN is the same
// value as NaN, so re-setting NaN does not retrigger. Non-comparable
// aggregates (maps, slices, funcs) compare by reference; distinct instances
// always count as changed.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if !ta.Comparable() {
		va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
		switch va.Kind() {
		case reflect.Map, reflect.Slice, reflect.Func:
			return va.Pointer() == vb.Pointer()
		default:
			return false
		}
	}
	if a == b {
		return true
	}

	switch x := a.(type) {
	case float64:
		return math.IsNaN(x) && math.IsNaN(b.(float64))
	case float32:
		return math.IsNaN(float64(x)) && math.IsNaN(float64(b.(float32)))
	}
	return false
}

// hasChanged reports whether a write from old to new should trigger.
func hasChanged(newValue, oldValue any) bool {
	return !sameValue(newValue, oldValue)
}
