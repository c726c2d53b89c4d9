package system

import (
	"context"
	"sort"
)

// Runner executes systems in phase order each tick. Systems sharing a phase
// run in registration order.
type Runner struct {
	systems []System
	sorted  bool
	tick    int
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 8),
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Tick runs every system for the current tick and advances the clock.
func (r *Runner) Tick(ctx context.Context) {
	r.ensureSorted()
	for _, s := range r.systems {
		s.Update(ctx, r.tick)
	}
	r.tick++
}

// Now returns the tick the next call to Tick will simulate.
func (r *Runner) Now() int { return r.tick }

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
