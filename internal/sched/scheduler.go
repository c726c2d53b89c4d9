package sched

import (
	"context"
	"errors"
	"fmt"

	"github.com/wardsim/wardsim/internal/core/ecs"
	"github.com/wardsim/wardsim/internal/geom"
)

// ErrInvalidTaskReference is returned when a task names an entity that no
// longer exists. The task is discarded.
var ErrInvalidTaskReference = errors.New("invalid task reference")

// Clock reports the tick being simulated.
type Clock interface {
	Now() int
}

// Actor is the agent side of the task lifecycle.
type Actor interface {
	// Travel returns the route to walk before t can begin. An empty route
	// means the agent is already in place.
	Travel(ctx context.Context, t Task) (geom.Path, error)
	// Move places the agent on the next route point.
	Move(p geom.Point)
	// Begin runs the side effects of starting t.
	Begin(t Task) error
	// Finish is the completion hook. walked is true when the phase that just
	// ended was travel, in which case t is still pending.
	Finish(t Task, walked bool)
}

// State is the owner's current lifecycle phase.
type State uint8

const (
	StateIdle State = iota
	StateWalking
	StateHolding
	StateFinishing
)

func (s State) String() string {
	switch s {
	case StateWalking:
		return "walking"
	case StateHolding:
		return "holding"
	case StateFinishing:
		return "finishing"
	default:
		return "idle"
	}
}

// Scheduler is one agent's task queue and lifecycle driver. It is not safe for
// concurrent use; the tick loop is single threaded.
type Scheduler struct {
	actor   Actor
	clock   Clock
	actions ActionTable
	speed   int

	queue   queue
	nextSeq uint64

	hold      int
	walking   bool
	awaiting  bool
	finishing bool
	walked    bool // finishing phase was travel
	current   Task
	active    bool

	route  geom.Path
	cursor int
}

// NewScheduler creates a scheduler driving actor. speed is the number of route
// points consumed per walking tick.
func NewScheduler(actor Actor, clock Clock, actions ActionTable, speed int) *Scheduler {
	if speed < 1 {
		speed = 1
	}
	return &Scheduler{
		actor:   actor,
		clock:   clock,
		actions: actions,
		speed:   speed,
	}
}

// AddTask enqueues an action becoming eligible startOffset ticks from now.
// Other agents call this to hand work to the owner.
func (s *Scheduler) AddTask(action Action, route []ecs.EntityID, duration, frequency, startOffset int) Task {
	t := Task{
		Action:    action,
		Route:     append([]ecs.EntityID(nil), route...),
		Duration:  duration,
		Frequency: frequency,
		Priority:  s.actions.Lookup(action).Priority,
		Eligible:  s.clock.Now() + startOffset,
	}
	return s.enqueue(t).clone()
}

// enqueue stamps t with the next sequence number and returns the queued copy.
func (s *Scheduler) enqueue(t Task) Task {
	t.Seq = s.nextSeq
	s.nextSeq++
	s.queue.push(t)
	return t
}

// Tick advances the owner by one simulation step. A returned error concerns a
// single dropped task; the scheduler stays usable.
func (s *Scheduler) Tick(ctx context.Context, now int) error {
	if s.finishing {
		s.finishing = false
		t, walked := s.current, s.walked
		s.active, s.walked = false, false
		s.actor.Finish(t, walked)
	}

	if s.hold > 0 || s.walking {
		s.step()
		return nil
	}

	head, ok := s.queue.peek()
	if !ok || head.Eligible > now {
		return nil
	}
	if err := s.prepare(ctx, now, head); err != nil {
		return err
	}
	s.step()
	return nil
}

func (s *Scheduler) prepare(ctx context.Context, now int, head Task) error {
	route, err := s.actor.Travel(ctx, head)
	if err != nil {
		s.queue.pop()
		return fmt.Errorf("%s: %w", head.Action, err)
	}
	if len(route) > 0 {
		// stays queued until travel completes
		s.current, s.active = head, true
		s.walking = true
		s.route, s.cursor = route, 0
		return nil
	}

	t := s.queue.pop()
	if err := s.actor.Begin(t); err != nil {
		return fmt.Errorf("%s: %w", t.Action, err)
	}
	s.current, s.active = t, true
	s.hold = t.Duration
	s.awaiting = s.actions.Lookup(t.Action).AwaitsPartner
	if s.awaiting && s.hold < 1 {
		s.hold = 1
	}
	if t.Frequency > 0 {
		renewed := t.clone()
		renewed.Eligible = now + t.Frequency
		s.enqueue(renewed)
	}
	return nil
}

func (s *Scheduler) step() {
	if !s.active {
		return
	}
	if s.walking {
		for n := 0; n < s.speed && s.cursor < len(s.route); n++ {
			s.actor.Move(s.route[s.cursor])
			s.cursor++
		}
		if s.cursor >= len(s.route) {
			s.walking = false
			s.route, s.cursor = nil, 0
			s.walked = true
			s.finishing = true
		}
		return
	}
	if s.awaiting {
		s.hold = 1
		return
	}
	if s.hold > 0 {
		s.hold--
	}
	if s.hold == 0 {
		s.finishing = true
	}
}

// Release ends an action that is waiting on its interaction partner. The
// completion hook runs on the owner's next tick. It reports whether anything
// was waiting.
func (s *Scheduler) Release() bool {
	if !s.awaiting {
		return false
	}
	s.awaiting = false
	s.hold = 0
	s.finishing = true
	return true
}

// Abandon drops the in-flight action so the owner returns to idle on its next
// tick. Queued tasks are kept; a task whose travel is abandoned stays queued.
func (s *Scheduler) Abandon() {
	if !s.active || s.finishing {
		return
	}
	s.awaiting = false
	s.hold = 0
	s.walked = s.walking
	s.walking = false
	s.route, s.cursor = nil, 0
	s.finishing = true
}

// Handover moves every queued task to other, preserving run order. The
// in-flight action, if any, stays with s.
func (s *Scheduler) Handover(other *Scheduler) int {
	tasks := s.queue.drain()
	if s.walking {
		// the walked-for task has just been handed over
		s.walking = false
		s.route, s.cursor = nil, 0
		s.active = false
	}
	for _, t := range tasks {
		other.enqueue(t)
	}
	return len(tasks)
}

// Reset discards all queued and in-flight work without running hooks.
func (s *Scheduler) Reset() {
	s.queue.drain()
	s.hold = 0
	s.walking, s.awaiting, s.finishing, s.walked, s.active = false, false, false, false, false
	s.route, s.cursor = nil, 0
	s.current = Task{}
}

// Pending returns the queued tasks in run order.
func (s *Scheduler) Pending() []Task { return s.queue.sorted() }

// Len returns the number of queued tasks.
func (s *Scheduler) Len() int { return s.queue.len() }

// Peek returns the queue head.
func (s *Scheduler) Peek() (Task, bool) {
	t, ok := s.queue.peek()
	if !ok {
		return Task{}, false
	}
	return t.clone(), true
}

// Current returns the task being walked for or executed.
func (s *Scheduler) Current() (Task, bool) {
	if !s.active {
		return Task{}, false
	}
	return s.current.clone(), true
}

func (s *Scheduler) Hold() int            { return s.hold }
func (s *Scheduler) Walking() bool        { return s.walking }
func (s *Scheduler) Awaiting() bool       { return s.awaiting }
func (s *Scheduler) Finishing() bool      { return s.finishing }
func (s *Scheduler) Remaining() int       { return len(s.route) - s.cursor }
func (s *Scheduler) Actions() ActionTable { return s.actions }

// State reports the lifecycle phase.
func (s *Scheduler) State() State {
	switch {
	case s.finishing:
		return StateFinishing
	case s.walking:
		return StateWalking
	case s.hold > 0:
		return StateHolding
	default:
		return StateIdle
	}
}
