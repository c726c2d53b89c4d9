package system

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wardsim/wardsim/internal/core/event"
	coresys "github.com/wardsim/wardsim/internal/core/system"
	"github.com/wardsim/wardsim/internal/data"
	"github.com/wardsim/wardsim/internal/grid"
	"github.com/wardsim/wardsim/internal/nav"
	"github.com/wardsim/wardsim/internal/sched"
	"github.com/wardsim/wardsim/internal/world"
)

const testFloor = `
name: test-ward
boundary: [{x: 0, y: 0}, {x: 20, y: 0}, {x: 20, y: 12}, {x: 0, y: 12}]
locations:
  - {name: nurse-station, type: nurse_station, polygon: [{x: 2, y: 9}, {x: 4, y: 9}, {x: 4, y: 11}, {x: 2, y: 11}]}
  - {name: medication-station, type: medication_station, polygon: [{x: 8, y: 9}, {x: 10, y: 9}, {x: 10, y: 11}, {x: 8, y: 11}]}
  - {name: room-1, type: room, polygon: [{x: 1, y: 1}, {x: 9, y: 1}, {x: 9, y: 6}, {x: 1, y: 6}]}
  - {name: bed-1a, type: bed, polygon: [{x: 2, y: 2}, {x: 4, y: 2}, {x: 4, y: 4}, {x: 2, y: 4}]}
  - {name: bed-1b, type: bed, polygon: [{x: 6, y: 2}, {x: 8, y: 2}, {x: 8, y: 4}, {x: 6, y: 4}]}
  - {name: room-2, type: room, polygon: [{x: 11, y: 1}, {x: 19, y: 1}, {x: 19, y: 6}, {x: 11, y: 6}]}
  - {name: bed-2a, type: bed, polygon: [{x: 12, y: 2}, {x: 14, y: 2}, {x: 14, y: 4}, {x: 12, y: 4}]}
`

type fixedSampler map[string]int

func (s fixedSampler) Ticks(key string, fallback int, _ ...float64) int {
	if v, ok := s[key]; ok {
		return v
	}
	return fallback
}

type sim struct {
	runner  *coresys.Runner
	ward    *world.Ward
	grid    *grid.Grid
	planner *nav.Planner
	census  *CensusSystem
	cleanup *CleanupSystem
	spatial *SpatialSystem
}

func newSim(t *testing.T, shift int) *sim {
	t.Helper()
	log := zap.NewNop()
	fp, err := data.ParseFloorPlan([]byte(testFloor))
	require.NoError(t, err)
	state, err := world.NewState(fp, 4)
	require.NoError(t, err)
	g, err := grid.Build(fp.Boundary, 5, 1)
	require.NoError(t, err)
	planner := nav.NewPlanner(g, 8)
	router := nav.NewRouter(g, planner, nav.NewCache(nil, 0.2, log), log)

	runner := coresys.NewRunner()
	bus := event.NewBus()
	sampler := fixedSampler{
		"informative_meeting":  3,
		"inventory":            2,
		"documentation":        1,
		"admission":            4,
		"evaluation":           4,
		"medication":           2,
		"evaluation_frequency": 50,
		"patient_stay":         40,
		"between_patients":     10,
		"initial_arrival":      2,
	}
	opts := world.Options{WalkingSpeed: 15, ShiftLength: shift, MedicationRound: 30, Tolerance: 0.2}
	ward := world.NewWard(state, router, sampler, sched.DefaultActions(), runner, bus, opts, log)

	s := &sim{
		runner:  runner,
		ward:    ward,
		grid:    g,
		planner: planner,
		census:  NewCensusSystem(state, bus, 0, log),
		cleanup: NewCleanupSystem(state.World()),
		spatial: NewSpatialSystem(state),
	}
	runner.Register(s.cleanup)
	runner.Register(s.census)
	runner.Register(NewSchedulerSystem(ward, bus, log))
	runner.Register(s.spatial)
	runner.Register(NewArrivalSystem(ward, log))
	runner.Register(NewEventDispatchSystem(bus))
	return s
}

func (s *sim) run(ticks int) {
	for i := 0; i < ticks; i++ {
		s.runner.Tick(context.Background())
	}
}

func TestWardRunsPatientsThrough(t *testing.T) {
	s := newSim(t, 1000)
	assert.Equal(t, 3, s.ward.Populate(1, 1, 100))
	s.run(120)

	c := s.census.Last()
	assert.Equal(t, s.runner.Now()-1, c.Tick)
	assert.Equal(t, 1, c.Roles["nurse"])
	assert.Equal(t, 1, c.Roles["doctor"])
	assert.Equal(t, 3, c.Empty+c.Occupied)
	assert.Equal(t, c.Roles["patient"], c.Occupied)

	assert.GreaterOrEqual(t, c.Removed, 3, "first patients discharged")
	assert.GreaterOrEqual(t, c.Added, 2+6, "replacements arrived")
	assert.Positive(t, c.Started)
	assert.Positive(t, c.Finished)
	assert.Zero(t, c.Failed)
	assert.GreaterOrEqual(t, s.cleanup.Destroyed(), 3)
	assert.Positive(t, s.spatial.Moved())

	total := 0
	for _, n := range c.States {
		total += n
	}
	assert.Equal(t, c.Roles["patient"]+2, total)
}

func TestShiftChangeKeepsStaffing(t *testing.T) {
	s := newSim(t, 25)
	s.ward.Populate(1, 2, 67)
	s.run(25)

	// tick 24: the first shift retires and its replacements arrive
	c := s.census.Last()
	require.Equal(t, 24, c.Tick)
	assert.Equal(t, 2, c.Roles["nurse"])
	assert.Equal(t, 1, c.Roles["doctor"])

	s.run(65)
	c = s.census.Last()
	assert.Equal(t, 2, c.Roles["nurse"])
	assert.Equal(t, 1, c.Roles["doctor"])
	assert.Len(t, s.ward.State().Staff(world.RoleNurse), 2)
	assert.GreaterOrEqual(t, c.Removed, 9, "three shift changes for three staff")
}

func TestUnreachableStationFailsTask(t *testing.T) {
	s := newSim(t, 1000)
	station, ok := s.ward.State().Point(s.ward.State().MedicationStation())
	require.True(t, ok)
	s.planner.SetObstacle(s.grid.Forward(station), true)
	s.ward.AddStaff(world.RoleNurse)
	s.run(20)

	assert.Equal(t, 1, s.census.Last().Failed, "inventory dropped once")
	sch, ok := s.ward.State().Scheduler(s.ward.State().Staff(world.RoleNurse)[0])
	require.True(t, ok)
	for _, task := range sch.Pending() {
		assert.NotEqual(t, sched.ActionInventory, task.Action)
	}
}
