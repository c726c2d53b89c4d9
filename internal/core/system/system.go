package system

import "context"

// Phase orders systems within a single tick.
type Phase int

const (
	PhasePreUpdate  Phase = iota // 0: deliver last tick's events
	PhaseArrival                 // 1: admit new agents, start shifts
	PhaseUpdate                  // 2: per-agent schedulers
	PhasePostUpdate              // 3: spatial reindex
	PhaseReport                  // 4: census
	PhaseCleanup                 // 5: destroy queued entities
)

// System is the interface every tick system implements. Update receives the
// tick being simulated and the run's context for blocking work.
type System interface {
	Phase() Phase
	Update(ctx context.Context, tick int)
}
