package system

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/wardsim/wardsim/internal/core/ecs"
	"github.com/wardsim/wardsim/internal/core/event"
	coresys "github.com/wardsim/wardsim/internal/core/system"
	"github.com/wardsim/wardsim/internal/world"
)

// Census is a snapshot of the ward: how many people are in each activity and
// role, bed occupancy, and running task counters.
type Census struct {
	Tick     int
	States   map[string]int
	Roles    map[string]int
	Empty    int // beds
	Occupied int // beds

	Added    int
	Removed  int
	Started  int
	Finished int
	Failed   int
}

// CensusSystem counts activity labels every tick and logs a summary every
// interval ticks. Task and arrival counters come from the event bus.
// Phase 4 (Report).
type CensusSystem struct {
	state    *world.State
	interval int
	log      *zap.Logger
	last     Census
	totals   Census
}

func NewCensusSystem(state *world.State, bus *event.Bus, interval int, log *zap.Logger) *CensusSystem {
	s := &CensusSystem{state: state, interval: interval, log: log}
	event.Subscribe(bus, func(event.AgentAdded) { s.totals.Added++ })
	event.Subscribe(bus, func(event.AgentRemoved) { s.totals.Removed++ })
	event.Subscribe(bus, func(event.TaskStarted) { s.totals.Started++ })
	event.Subscribe(bus, func(event.TaskFinished) { s.totals.Finished++ })
	event.Subscribe(bus, func(event.TaskFailed) { s.totals.Failed++ })
	return s
}

func (s *CensusSystem) Phase() coresys.Phase { return coresys.PhaseReport }

func (s *CensusSystem) Update(_ context.Context, tick int) {
	s.last = s.count(tick)
	if s.interval > 0 && tick%s.interval == 0 {
		s.Log("census")
	}
}

// Last returns the most recent snapshot.
func (s *CensusSystem) Last() Census { return s.last }

func (s *CensusSystem) count(tick int) Census {
	c := s.totals
	c.Tick = tick
	c.States = make(map[string]int)
	c.Roles = make(map[string]int)
	// people leaving this tick are already replaced or discharged
	leaving := s.state.World().Pending
	s.state.Persons.Each(func(id ecs.EntityID, p *world.Person) {
		if leaving(id) {
			return
		}
		c.States[p.State]++
		c.Roles[p.Role.String()]++
	})
	for _, bed := range s.state.Beds() {
		occupied := false
		for _, id := range s.state.Relation(bed, world.Contains, world.RolePatient.String()) {
			if !leaving(id) {
				occupied = true
				break
			}
		}
		if occupied {
			c.Occupied++
		} else {
			c.Empty++
		}
	}
	return c
}

// Log writes the latest snapshot at info level.
func (s *CensusSystem) Log(msg string) {
	c := s.last
	fields := []zap.Field{
		zap.Int("tick", c.Tick),
		zap.Int("patients", c.Roles[world.RolePatient.String()]),
		zap.Int("nurses", c.Roles[world.RoleNurse.String()]),
		zap.Int("doctors", c.Roles[world.RoleDoctor.String()]),
		zap.Int("beds_occupied", c.Occupied),
		zap.Int("beds_empty", c.Empty),
		zap.Int("tasks_started", c.Started),
		zap.Int("tasks_finished", c.Finished),
		zap.Int("tasks_failed", c.Failed),
	}
	labels := make([]string, 0, len(c.States))
	for k := range c.States {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	for _, k := range labels {
		fields = append(fields, zap.Int("state."+k, c.States[k]))
	}
	s.log.Info(msg, fields...)
}
