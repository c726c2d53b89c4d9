package world

import (
	"context"
	"fmt"

	"github.com/wardsim/wardsim/internal/core/ecs"
	"github.com/wardsim/wardsim/internal/core/event"
	"github.com/wardsim/wardsim/internal/geom"
	"github.com/wardsim/wardsim/internal/sched"
)

// agent is the sched.Actor of one person.
type agent struct {
	w  *Ward
	id ecs.EntityID
}

func (a *agent) person() *Person {
	p, _ := a.w.state.Persons.Get(a.id)
	return p
}

// Travel links the legs to every stop of the task's route. It returns nil
// when the person already stands at the last stop.
func (a *agent) Travel(ctx context.Context, t sched.Task) (geom.Path, error) {
	if len(t.Route) == 0 {
		return nil, nil
	}
	stops := make([]geom.Point, 0, len(t.Route))
	for _, id := range t.Route {
		p, ok := a.w.state.Point(id)
		if !ok {
			return nil, fmt.Errorf("%w: stop %d", sched.ErrInvalidTaskReference, id)
		}
		stops = append(stops, p)
	}
	here, _ := a.w.state.Point(a.id)
	dest := stops[len(stops)-1]
	if here.Within(dest, a.w.opts.Tolerance) {
		return nil, nil
	}

	var route geom.Path
	from := here
	for _, stop := range stops {
		leg, err := a.w.paths.GetPath(ctx, from, stop)
		if err != nil {
			return nil, err
		}
		route = append(route, leg...)
		from = stop
	}

	p := a.person()
	if len(route) == 0 {
		// same grid cell as the destination
		a.w.state.SetPosition(a.id, dest)
		return nil, nil
	}
	p.walkTo = dest
	p.State = StateWalking
	return route, nil
}

func (a *agent) Move(pt geom.Point) {
	a.w.state.SetPosition(a.id, pt)
}

// Begin applies the side effects of starting t.
func (a *agent) Begin(t sched.Task) error {
	w := a.w
	p := a.person()
	station := w.state.NurseStation()

	switch t.Action {
	case sched.ActionRequestAdmission:
		if err := w.register(a.id, p); err != nil {
			return err
		}
		nurse, _ := w.state.Scheduler(p.Nurse)
		nurse.AddTask(sched.ActionAdmit, []ecs.EntityID{a.id}, w.ticks(keyAdmission), 0, 0)

	case sched.ActionRequestEvaluation:
		doctor, ok := w.state.Scheduler(p.Doctor)
		if !ok {
			return fmt.Errorf("%w: %s has no doctor", sched.ErrInvalidTaskReference, p.Name)
		}
		doctor.AddTask(sched.ActionEvaluate, []ecs.EntityID{a.id}, w.ticks(keyEvaluation), 0, 0)
		doctor.AddTask(sched.ActionDocument, []ecs.EntityID{station}, w.ticks(keyDocumentation), 0, 0)

	case sched.ActionRequestMedication:
		nurse, ok := w.state.Scheduler(p.Nurse)
		if !ok {
			return fmt.Errorf("%w: %s has no nurse", sched.ErrInvalidTaskReference, p.Name)
		}
		route := []ecs.EntityID{w.state.MedicationStation(), a.id}
		nurse.AddTask(sched.ActionMedicate, route, w.ticks(keyMedication), 0, 0)
		nurse.AddTask(sched.ActionDocument, []ecs.EntityID{station}, w.ticks(keyDocumentation), 0, 0)

	case sched.ActionAdmit, sched.ActionEvaluate, sched.ActionMedicate:
		target, _ := t.Target()
		other, ok := w.state.Person(target)
		if !ok {
			return fmt.Errorf("%w: patient %d", sched.ErrInvalidTaskReference, target)
		}
		p.Partner, other.Partner = target, a.id
		if label := w.actions.Lookup(t.Action).PartnerState; label != "" {
			other.State = label
		}
	}

	p.State = w.actions.Lookup(t.Action).State
	event.Emit(w.bus, event.TaskStarted{Entity: a.id, Action: t.Action.String(), Tick: w.clock.Now()})
	return nil
}

// Finish ends travel by stepping onto the destination, or ends an action by
// closing its interaction. Either way the person goes idle.
func (a *agent) Finish(t sched.Task, walked bool) {
	w := a.w
	p := a.person()
	if walked {
		w.state.SetPosition(a.id, p.walkTo)
		p.State = p.Role.IdleState()
		return
	}

	if !p.Partner.IsZero() {
		if other, ok := w.state.Person(p.Partner); ok && other.Partner == a.id {
			if w.actions.Lookup(t.Action).PartnerState != "" {
				other.State = other.Role.IdleState()
				if s, ok := w.state.Scheduler(p.Partner); ok {
					s.Release()
				}
			}
			other.Partner = 0
		}
		p.Partner = 0
	}
	p.State = p.Role.IdleState()
	event.Emit(w.bus, event.TaskFinished{Entity: a.id, Action: t.Action.String(), Tick: w.clock.Now()})
}
