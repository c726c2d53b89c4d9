package sched

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardsim/wardsim/internal/core/ecs"
	"github.com/wardsim/wardsim/internal/geom"
	"github.com/wardsim/wardsim/internal/nav"
)

type clock struct{ now int }

func (c *clock) Now() int { return c.now }

// fakeActor walks a straight line of unit steps to the task target's x
// coordinate, read from targets.
type fakeActor struct {
	pos      geom.Point
	targets  map[ecs.EntityID]geom.Point
	travel   error
	begin    error
	log      []string
	moves    int
	finishes int
}

func (a *fakeActor) Travel(_ context.Context, t Task) (geom.Path, error) {
	if a.travel != nil {
		return nil, a.travel
	}
	id, ok := t.Target()
	if !ok {
		return nil, nil
	}
	dest := a.targets[id]
	var path geom.Path
	for x := a.pos.X + 1; x <= dest.X; x++ {
		path = append(path, geom.Pt(x, a.pos.Y))
	}
	return path, nil
}

func (a *fakeActor) Move(p geom.Point) {
	a.pos = p
	a.moves++
}

func (a *fakeActor) Begin(t Task) error {
	if a.begin != nil {
		return a.begin
	}
	a.log = append(a.log, "begin:"+t.Action.String())
	return nil
}

func (a *fakeActor) Finish(t Task, walked bool) {
	a.finishes++
	if walked {
		a.log = append(a.log, "arrived:"+t.Action.String())
		return
	}
	a.log = append(a.log, "finish:"+t.Action.String())
}

func newTestScheduler(speed int) (*Scheduler, *fakeActor, *clock) {
	a := &fakeActor{targets: map[ecs.EntityID]geom.Point{}}
	c := &clock{}
	return NewScheduler(a, c, DefaultActions(), speed), a, c
}

func tick(t *testing.T, s *Scheduler, c *clock, now int) {
	t.Helper()
	c.now = now
	require.NoError(t, s.Tick(context.Background(), now))
}

func TestLifecycleInPlace(t *testing.T) {
	s, a, c := newTestScheduler(15)
	s.AddTask(ActionDocument, nil, 5, 0, 0)

	raised := 0
	for now := 0; now < 5; now++ {
		tick(t, s, c, now)
		if s.Finishing() {
			raised++
			assert.Equal(t, 4, now, "finishing raised on the fifth tick")
		}
	}
	assert.Equal(t, 1, raised)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, StateFinishing, s.State())
	assert.Equal(t, 0, a.finishes, "completion hook runs on the next tick")

	tick(t, s, c, 5)
	assert.Equal(t, []string{"begin:document", "finish:document"}, a.log)
	assert.Equal(t, StateIdle, s.State())
	_, ok := s.Current()
	assert.False(t, ok)
}

func TestRecurrenceRenewsOnce(t *testing.T) {
	s, a, c := newTestScheduler(15)
	s.AddTask(ActionDocument, nil, 2, 10, 0)

	tick(t, s, c, 0)
	pending := s.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 10, pending[0].Eligible)

	for now := 1; now < 10; now++ {
		tick(t, s, c, now)
	}
	pending = s.Pending()
	require.Len(t, pending, 1, "no duplicate renewal")
	assert.Equal(t, 10, pending[0].Eligible)
	assert.Equal(t, []string{"begin:document", "finish:document"}, a.log)

	tick(t, s, c, 10)
	pending = s.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 20, pending[0].Eligible)
	assert.Equal(t, "begin:document", a.log[len(a.log)-1])
}

func TestPriorityDominates(t *testing.T) {
	s, a, c := newTestScheduler(15)
	s.AddTask(ActionDocument, nil, 1, 0, 0)
	s.AddTask(ActionAdmit, nil, 1, 0, 0)

	tick(t, s, c, 0)
	assert.Equal(t, []string{"begin:admit"}, a.log)

	tick(t, s, c, 1)
	assert.Equal(t, []string{"begin:admit", "finish:admit", "begin:document"}, a.log)
}

func TestUrgentHeadBlocksUntilEligible(t *testing.T) {
	s, a, c := newTestScheduler(15)
	s.AddTask(ActionDocument, nil, 1, 0, 0)
	s.AddTask(ActionAdmit, nil, 1, 0, 3)

	for now := 0; now < 3; now++ {
		tick(t, s, c, now)
	}
	assert.Empty(t, a.log)
	head, ok := s.Peek()
	require.True(t, ok)
	assert.Equal(t, ActionAdmit, head.Action)

	tick(t, s, c, 3)
	assert.Equal(t, []string{"begin:admit"}, a.log)
}

func TestSchedulingIsDeterministic(t *testing.T) {
	run := func() []string {
		s, a, c := newTestScheduler(15)
		for i := 0; i < 4; i++ {
			s.AddTask(ActionDocument, nil, 2, 0, 0)
			s.AddTask(ActionInventory, nil, 1, 0, i)
			s.AddTask(ActionMedicate, nil, 3, 7, 1)
		}
		for now := 0; now < 60; now++ {
			c.now = now
			_ = s.Tick(context.Background(), now)
		}
		return a.log
	}
	first := run()
	require.NotEmpty(t, first)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, run())
	}
}

func TestTiesRunInInsertionOrder(t *testing.T) {
	s, _, _ := newTestScheduler(15)
	a := s.AddTask(ActionDocument, []ecs.EntityID{1}, 1, 0, 0)
	b := s.AddTask(ActionDocument, []ecs.EntityID{2}, 1, 0, 0)
	require.Less(t, a.Seq, b.Seq)

	pending := s.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, []ecs.EntityID{1}, pending[0].Route)
	assert.Equal(t, a.Seq, pending[0].Seq)
	assert.Equal(t, b.Seq, pending[1].Seq)
}

func TestAddTaskReturnsPrivateCopy(t *testing.T) {
	s, _, _ := newTestScheduler(15)
	route := []ecs.EntityID{3, 4}
	got := s.AddTask(ActionMedicate, route, 1, 0, 0)

	route[0] = 98
	got.Route[1] = 99
	assert.Equal(t, []ecs.EntityID{3, 4}, s.Pending()[0].Route)
}

func TestWalkBeforeBegin(t *testing.T) {
	s, a, c := newTestScheduler(15)
	a.targets[7] = geom.Pt(40, 0)
	s.AddTask(ActionInventory, []ecs.EntityID{7}, 2, 0, 0)

	tick(t, s, c, 0)
	assert.Equal(t, StateWalking, s.State())
	assert.Equal(t, 15, a.moves)
	assert.Equal(t, 1, s.Len(), "task stays queued while walking")

	tick(t, s, c, 1)
	assert.Equal(t, 30, a.moves)
	tick(t, s, c, 2)
	assert.Equal(t, 40, a.moves)
	assert.True(t, s.Finishing())
	assert.Empty(t, a.log)

	// arrival hook, then the task begins in place on the same tick
	tick(t, s, c, 3)
	assert.Equal(t, []string{"arrived:inventory", "begin:inventory"}, a.log)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 1, s.Hold())

	tick(t, s, c, 4)
	assert.True(t, s.Finishing())
	tick(t, s, c, 5)
	assert.Equal(t, "finish:inventory", a.log[len(a.log)-1])
}

func TestPathNotFoundDropsOccurrence(t *testing.T) {
	s, a, c := newTestScheduler(15)
	a.travel = fmt.Errorf("route: %w", nav.ErrPathNotFound)
	s.AddTask(ActionMedicate, []ecs.EntityID{3}, 5, 120, 0)
	s.AddTask(ActionDocument, nil, 1, 0, 0)

	err := s.Tick(context.Background(), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, nav.ErrPathNotFound)
	assert.Equal(t, 1, s.Len(), "failing task and its recurrence dropped")

	a.travel = nil
	tick(t, s, c, 1)
	assert.Equal(t, []string{"begin:document"}, a.log)
}

func TestInvalidReferenceDiscardsTask(t *testing.T) {
	s, a, c := newTestScheduler(15)
	a.begin = fmt.Errorf("patient 9: %w", ErrInvalidTaskReference)
	s.AddTask(ActionEvaluate, nil, 5, 60, 0)

	c.now = 0
	err := s.Tick(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidTaskReference)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, StateIdle, s.State())
}

func TestAwaitingPartnerRelease(t *testing.T) {
	s, a, c := newTestScheduler(15)
	s.AddTask(ActionRequestAdmission, nil, 0, 0, 0)

	for now := 0; now < 50; now++ {
		tick(t, s, c, now)
		require.Equal(t, 1, s.Hold())
		require.False(t, s.Finishing())
	}
	assert.True(t, s.Awaiting())

	assert.True(t, s.Release())
	assert.False(t, s.Release())
	assert.True(t, s.Finishing())

	tick(t, s, c, 50)
	assert.Equal(t, []string{"begin:request-admission", "finish:request-admission"}, a.log)
	assert.Equal(t, StateIdle, s.State())
}

func TestAbandonReturnsToIdle(t *testing.T) {
	s, a, c := newTestScheduler(15)
	s.AddTask(ActionAdmit, nil, 30, 0, 0)
	tick(t, s, c, 0)
	assert.Equal(t, StateHolding, s.State())

	s.Abandon()
	tick(t, s, c, 1)
	assert.Equal(t, []string{"begin:admit", "finish:admit"}, a.log)
	assert.Equal(t, StateIdle, s.State())

	// nothing in flight
	s.Abandon()
	assert.False(t, s.Finishing())
}

func TestHandoverPreservesOrder(t *testing.T) {
	from, _, c := newTestScheduler(15)
	to, _, _ := newTestScheduler(15)
	c.now = 0
	from.AddTask(ActionDocument, nil, 5, 0, 0)
	from.AddTask(ActionAdmit, []ecs.EntityID{4}, 20, 0, 0)
	from.AddTask(ActionMedicate, []ecs.EntityID{2, 4}, 5, 120, 30)
	to.AddTask(ActionInformativeMeeting, nil, 30, 0, 0)

	want := from.Pending()
	assert.Equal(t, 3, from.Handover(to))
	assert.Equal(t, 0, from.Len())

	got := to.Pending()
	require.Len(t, got, 4)
	assert.Equal(t, ActionInformativeMeeting, got[0].Action)
	for i, w := range want {
		assert.Equal(t, w.Action, got[i+1].Action)
		assert.Equal(t, w.Route, got[i+1].Route)
		assert.Equal(t, w.Eligible, got[i+1].Eligible)
	}
}

func TestActionNames(t *testing.T) {
	for _, a := range Actions() {
		parsed, err := ParseAction(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
	}
	_, err := ParseAction("none")
	assert.Error(t, err)
	_, err = ParseAction("dance")
	assert.Error(t, err)

	var a Action
	require.NoError(t, a.UnmarshalText([]byte("medicate")))
	assert.Equal(t, ActionMedicate, a)

	assert.NoError(t, DefaultActions().Validate())
	partial := DefaultActions()
	delete(partial, ActionAdmit)
	assert.Error(t, partial.Validate())
}
