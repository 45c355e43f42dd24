package strand

import "sync/atomic"

// Engine-wide counters, kept as bare atomics so the hot path never takes a
// lock. Consumed by the inspect package and the CLI.
var (
	statEffectsCreated atomic.Uint64
	statEffectRuns     atomic.Uint64
	statTriggers       atomic.Uint64
	statMemoRecomputes atomic.Uint64
	statOwnersStopped  atomic.Uint64
	statSchedulerRuns  atomic.Uint64
)

// EngineStats is a point-in-time snapshot of the engine counters.
type EngineStats struct {
	// EffectsCreated counts effects constructed, including the inner
	// effects of memos.
	EffectsCreated uint64

	// EffectRuns counts calls into effect functions, initial runs included.
	EffectRuns uint64

	// Triggers counts dep fan-outs: one per dep triggered, not one per
	// subscriber. A write that reaches several deps, or that memos forward
	// downstream, counts once for each dep.
	Triggers uint64

	// MemoRecomputes counts memo getter evaluations.
	MemoRecomputes uint64

	// OwnersStopped counts owner scopes torn down.
	OwnersStopped uint64

	// SchedulerRuns counts scheduler callbacks drained from the queue.
	SchedulerRuns uint64
}

// Stats returns a snapshot of the engine counters. Counters are monotonic
// over the life of the process.
func Stats() EngineStats {
	return EngineStats{
		EffectsCreated: statEffectsCreated.Load(),
		EffectRuns:     statEffectRuns.Load(),
		Triggers:       statTriggers.Load(),
		MemoRecomputes: statMemoRecomputes.Load(),
		OwnersStopped:  statOwnersStopped.Load(),
		SchedulerRuns:  statSchedulerRuns.Load(),
	}
}
