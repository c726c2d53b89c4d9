package system

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/wardsim/wardsim/internal/core/ecs"
	"github.com/wardsim/wardsim/internal/core/event"
	coresys "github.com/wardsim/wardsim/internal/core/system"
	"github.com/wardsim/wardsim/internal/nav"
	"github.com/wardsim/wardsim/internal/sched"
	"github.com/wardsim/wardsim/internal/world"
)

// SchedulerSystem runs every person's task scheduler once per tick, in
// ascending entity order. People added during the tick start on the next one.
// A failed task is logged and reported on the bus; the run continues.
// Phase 2 (Update).
type SchedulerSystem struct {
	ward *world.Ward
	bus  *event.Bus
	log  *zap.Logger
}

func NewSchedulerSystem(ward *world.Ward, bus *event.Bus, log *zap.Logger) *SchedulerSystem {
	return &SchedulerSystem{ward: ward, bus: bus, log: log}
}

func (s *SchedulerSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *SchedulerSystem) Update(ctx context.Context, tick int) {
	state := s.ward.State()
	ecs.Each2(state.Persons, state.Schedulers, func(id ecs.EntityID, p *world.Person, _ *sched.Scheduler) {
		err := s.ward.Step(ctx, id, tick)
		if err == nil {
			return
		}
		fields := []zap.Field{zap.Int("tick", tick), zap.String("agent", p.Name), zap.Error(err)}
		switch {
		case errors.Is(err, nav.ErrPathNotFound):
			s.log.Warn("task dropped: destination unreachable", fields...)
		case errors.Is(err, sched.ErrInvalidTaskReference):
			s.log.Debug("task dropped: stale reference", fields...)
		default:
			s.log.Error("task failed", fields...)
		}
		event.Emit(s.bus, event.TaskFailed{Entity: id, Tick: tick, Err: err})
	})
}
