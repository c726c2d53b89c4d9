package system

import (
	"context"

	"github.com/wardsim/wardsim/internal/core/event"
	coresys "github.com/wardsim/wardsim/internal/core/system"
)

// EventDispatchSystem delivers the events emitted during the previous tick.
// Phase 0 (PreUpdate).
type EventDispatchSystem struct {
	bus *event.Bus
}

func NewEventDispatchSystem(bus *event.Bus) *EventDispatchSystem {
	return &EventDispatchSystem{bus: bus}
}

func (s *EventDispatchSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *EventDispatchSystem) Update(_ context.Context, _ int) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
