package system

import (
	"context"

	"github.com/wardsim/wardsim/internal/core/ecs"
	coresys "github.com/wardsim/wardsim/internal/core/system"
)

// CleanupSystem flushes the deferred entity destruction queue at tick end.
// Phase 5 (Cleanup).
type CleanupSystem struct {
	world     *ecs.World
	destroyed int
}

func NewCleanupSystem(world *ecs.World) *CleanupSystem {
	return &CleanupSystem{world: world}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ context.Context, _ int) {
	s.destroyed += s.world.FlushDestroyQueue()
}

// Destroyed returns the number of entities removed so far.
func (s *CleanupSystem) Destroyed() int { return s.destroyed }
