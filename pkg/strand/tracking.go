package strand

import (
	"runtime"
	"sync"
)

// trackingContext holds the ambient reactive state for one goroutine: which
// effect is running, whether reads should register dependencies, which owner
// adopts new primitives, and the pending scheduler queue.
//
// Each goroutine gets its own context, so independent graphs can live on
// separate goroutines without interfering. A single graph still assumes a
// single mutator.
type trackingContext struct {
	// activeEffect is the effect currently running, or nil.
	activeEffect *Effect

	// shouldTrack gates dependency registration. Saved and restored as a
	// stack by PauseTracking/EnableTracking/ResetTracking.
	shouldTrack bool
	trackStack  []bool

	// activeOwner adopts effects, memos, and child owners created while it
	// is installed.
	activeOwner *Owner

	// schedulePause counts nested PauseScheduling calls. Scheduler
	// callbacks queue while it is non-zero and drain when it returns to
	// zero.
	schedulePause int

	// queue holds pending scheduler callbacks in enqueue order.
	queue []func()
}

// trackingContexts stores per-goroutine tracking contexts.
var trackingContexts sync.Map

// getGoroutineID returns a unique identifier for the current goroutine,
// parsed from the runtime stack header. Implementation detail; not exposed.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	// The stack starts with "goroutine <id> ".
	var id uint64
	for i := 10; i < n; i++ {
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// getTrackingContext returns the tracking context for the current goroutine,
// creating one on first use. New contexts track by default.
func getTrackingContext() *trackingContext {
	gid := getGoroutineID()

	if ctx, ok := trackingContexts.Load(gid); ok {
		return ctx.(*trackingContext)
	}

	ctx := &trackingContext{shouldTrack: true}
	trackingContexts.Store(gid, ctx)
	return ctx
}

// =============================================================================
// Tracking control
// =============================================================================

// PauseTracking disables dependency registration until the matching
// ResetTracking. Reads inside the bracket do not subscribe the running
// effect. Brackets nest.
func PauseTracking() {
	tc := getTrackingContext()
	tc.trackStack = append(tc.trackStack, tc.shouldTrack)
	tc.shouldTrack = false
}

// EnableTracking re-enables dependency registration until the matching
// ResetTracking, regardless of any enclosing PauseTracking.
func EnableTracking() {
	tc := getTrackingContext()
	tc.trackStack = append(tc.trackStack, tc.shouldTrack)
	tc.shouldTrack = true
}

// ResetTracking restores the tracking state saved by the most recent
// PauseTracking or EnableTracking. An unmatched call resets to tracking.
func ResetTracking() {
	tc := getTrackingContext()
	n := len(tc.trackStack)
	if n == 0 {
		tc.shouldTrack = true
		return
	}
	tc.shouldTrack = tc.trackStack[n-1]
	tc.trackStack = tc.trackStack[:n-1]
}

// Untracked runs fn with dependency registration paused and returns its
// result. Reads inside fn do not subscribe the running effect.
func Untracked(fn func() any) any {
	PauseTracking()
	defer ResetTracking()
	return fn()
}

// =============================================================================
// Scheduling control
// =============================================================================

// PauseScheduling defers scheduler callbacks until the matching
// ResetScheduling. Triggers inside the bracket still raise dirty levels and
// fire announce hooks; only the user-visible schedulers wait.
func PauseScheduling() {
	getTrackingContext().schedulePause++
}

// ResetScheduling closes the most recent PauseScheduling bracket and, once
// no bracket remains open, drains the pending scheduler queue in enqueue
// order. An unmatched call drains immediately.
func ResetScheduling() {
	tc := getTrackingContext()
	if tc.schedulePause > 0 {
		tc.schedulePause--
	}
	for tc.schedulePause == 0 && len(tc.queue) > 0 {
		cb := tc.queue[0]
		tc.queue = tc.queue[1:]
		statSchedulerRuns.Add(1)
		cb()
	}
}

// Batch runs fn with scheduling paused, so effects triggered by any number
// of writes inside fn run at most once, when the batch closes.
func Batch(fn func()) {
	PauseScheduling()
	defer ResetScheduling()
	fn()
}

// queueScheduler enqueues an effect's scheduler callback. Called from
// trigger fan-out, always inside a scheduling bracket.
func queueScheduler(cb func()) {
	tc := getTrackingContext()
	tc.queue = append(tc.queue, cb)
}
