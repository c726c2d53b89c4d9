package system

import (
	"context"

	coresys "github.com/wardsim/wardsim/internal/core/system"
	"github.com/wardsim/wardsim/internal/world"
)

// SpatialSystem re-indexes positions after everyone has moved.
// Phase 3 (PostUpdate).
type SpatialSystem struct {
	state *world.State
	moved int
}

func NewSpatialSystem(state *world.State) *SpatialSystem {
	return &SpatialSystem{state: state}
}

func (s *SpatialSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *SpatialSystem) Update(_ context.Context, _ int) {
	s.moved += s.state.Spatial().Reindex()
}

// Moved returns the number of cell changes applied so far.
func (s *SpatialSystem) Moved() int { return s.moved }
