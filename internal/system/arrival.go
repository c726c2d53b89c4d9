package system

import (
	"context"

	"go.uber.org/zap"

	coresys "github.com/wardsim/wardsim/internal/core/system"
	"github.com/wardsim/wardsim/internal/world"
)

// ArrivalSystem admits the patients booked for the current tick.
// Phase 1 (Arrival).
type ArrivalSystem struct {
	ward *world.Ward
	log  *zap.Logger
}

func NewArrivalSystem(ward *world.Ward, log *zap.Logger) *ArrivalSystem {
	return &ArrivalSystem{ward: ward, log: log}
}

func (s *ArrivalSystem) Phase() coresys.Phase { return coresys.PhaseArrival }

func (s *ArrivalSystem) Update(_ context.Context, tick int) {
	n := s.ward.DueArrivals(tick)
	if n == 0 {
		return
	}
	ids, err := s.ward.AdmitPatients(n)
	if err != nil {
		// turned away; the booking is not retried
		s.log.Warn("patients turned away", zap.Int("tick", tick), zap.Int("count", n), zap.Error(err))
		return
	}
	s.log.Debug("patients arrived", zap.Int("tick", tick), zap.Int("count", len(ids)))
}
