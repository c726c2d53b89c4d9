package world

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/wardsim/wardsim/internal/core/ecs"
	"github.com/wardsim/wardsim/internal/core/event"
	"github.com/wardsim/wardsim/internal/geom"
	"github.com/wardsim/wardsim/internal/sched"
)

// Sampler draws task durations and intervals in ticks.
type Sampler interface {
	Ticks(key string, fallback int, args ...float64) int
}

// Pather answers point-to-point route requests.
type Pather interface {
	GetPath(ctx context.Context, origin, dest geom.Point) (geom.Path, error)
}

// Sampler keys and the values used when a script cannot answer.
const (
	keyPatientStay         = "patient_stay"
	keyBetweenPatients     = "between_patients"
	keyInitialArrival      = "initial_arrival"
	keyMeeting             = "informative_meeting"
	keyInventory           = "inventory"
	keyDocumentation       = "documentation"
	keyMedication          = "medication"
	keyAdmission           = "admission"
	keyEvaluation          = "evaluation"
	keyEvaluationFrequency = "evaluation_frequency"
)

var fallbackTicks = map[string]int{
	keyPatientStay:         18 * 60,
	keyBetweenPatients:     210,
	keyInitialArrival:      0,
	keyMeeting:             35,
	keyInventory:           35,
	keyDocumentation:       7,
	keyMedication:          7,
	keyAdmission:           25,
	keyEvaluation:          25,
	keyEvaluationFrequency: 5 * 60,
}

// Options are the ward's fixed timings.
type Options struct {
	WalkingSpeed    int     // route points per tick
	ShiftLength     int     // ticks
	MedicationRound int     // ticks between medication rounds
	Tolerance       float64 // co-location radius
}

// Ward runs the people of the ward: it creates patients and staff, drives
// their schedulers and applies the side effects of their tasks.
type Ward struct {
	state   *State
	paths   Pather
	sampler Sampler
	actions sched.ActionTable
	clock   sched.Clock
	bus     *event.Bus
	opts    Options
	log     *zap.Logger

	arrivals []int // pending patient arrival ticks, ascending
	named    map[Role]int
}

func NewWard(state *State, paths Pather, sampler Sampler, actions sched.ActionTable,
	clock sched.Clock, bus *event.Bus, opts Options, log *zap.Logger) *Ward {
	w := &Ward{
		state:   state,
		paths:   paths,
		sampler: sampler,
		actions: actions,
		clock:   clock,
		bus:     bus,
		opts:    opts,
		log:     log,
		named:   make(map[Role]int),
	}
	state.World().OnDestroy(w.abandonPartner)
	return w
}

func (w *Ward) State() *State { return w.state }

func (w *Ward) ticks(key string, args ...float64) int {
	return w.sampler.Ticks(key, fallbackTicks[key], args...)
}

// Populate puts the initial staff on duty and schedules the arrival of
// occupancy percent of the ward's patient places over the first shift.
func (w *Ward) Populate(doctors, nurses, occupancy int) int {
	for i := 0; i < doctors; i++ {
		w.AddStaff(RoleDoctor)
	}
	for i := 0; i < nurses; i++ {
		w.AddStaff(RoleNurse)
	}
	n := occupancy * w.capacity() / 100
	now := w.clock.Now()
	for i := 0; i < n; i++ {
		w.ScheduleArrival(now + w.ticks(keyInitialArrival, float64(w.opts.ShiftLength)))
	}
	return n
}

func (w *Ward) capacity() int {
	total := 0
	for _, bed := range w.state.beds {
		if b, ok := w.state.Locations.Get(bed); ok {
			total += b.Capacity
		}
	}
	return total
}

// ScheduleArrival books one patient arrival at tick.
func (w *Ward) ScheduleArrival(tick int) {
	i := sort.SearchInts(w.arrivals, tick+1)
	w.arrivals = append(w.arrivals, 0)
	copy(w.arrivals[i+1:], w.arrivals[i:])
	w.arrivals[i] = tick
}

// Arrivals returns the pending arrival ticks.
func (w *Ward) Arrivals() []int { return append([]int(nil), w.arrivals...) }

// DueArrivals removes and counts the arrivals booked at or before now.
func (w *Ward) DueArrivals(now int) int {
	n := sort.SearchInts(w.arrivals, now+1)
	w.arrivals = w.arrivals[n:]
	return n
}

// AdmitPatients places n new patients on empty beds.
func (w *Ward) AdmitPatients(n int) ([]ecs.EntityID, error) {
	beds, err := w.state.EmptyBeds(n)
	if err != nil {
		return nil, err
	}
	ids := make([]ecs.EntityID, 0, n)
	for _, bed := range beds {
		ids = append(ids, w.AddPatient(bed))
	}
	return ids, nil
}

func (w *Ward) newPerson(role Role, at geom.Point, life int) (ecs.EntityID, *Person, *sched.Scheduler) {
	w.named[role]++
	p := &Person{
		Name:  fmt.Sprintf("%s-%d", role, w.named[role]),
		Role:  role,
		State: role.IdleState(),
		Life:  life,
	}
	id := w.state.AddPerson(p, at)
	s := sched.NewScheduler(&agent{w: w, id: id}, w.clock, w.actions, w.opts.WalkingSpeed)
	w.state.Schedulers.Set(id, s)
	event.Emit(w.bus, event.AgentAdded{Entity: id, Kind: role.String(), Tick: w.clock.Now()})
	return id, p, s
}

// AddStaff puts a nurse or doctor on duty at the nurse station for one shift.
func (w *Ward) AddStaff(role Role) ecs.EntityID {
	station := w.state.NurseStation()
	at, _ := w.state.Point(station)
	id, _, s := w.newPerson(role, at, w.opts.ShiftLength)

	s.AddTask(sched.ActionInformativeMeeting, []ecs.EntityID{station}, w.ticks(keyMeeting), 0, 0)
	if role == RoleNurse {
		s.AddTask(sched.ActionInventory, []ecs.EntityID{w.state.MedicationStation()}, w.ticks(keyInventory), 0, 0)
		s.AddTask(sched.ActionDocument, []ecs.EntityID{station}, w.ticks(keyDocumentation), 0, 0)
	}
	return id
}

// AddPatient places a patient on bed and books their requests.
func (w *Ward) AddPatient(bed ecs.EntityID) ecs.EntityID {
	at, _ := w.state.Point(bed)
	id, p, s := w.newPerson(RolePatient, at, w.ticks(keyPatientStay))
	p.Bed = bed

	now := w.clock.Now()
	s.AddTask(sched.ActionRequestAdmission, nil, 0, 0, 0)
	s.AddTask(sched.ActionRequestEvaluation, nil, 0, w.ticks(keyEvaluationFrequency), 0)
	if round := w.opts.MedicationRound; round > 0 {
		next := now - now%round + round
		s.AddTask(sched.ActionRequestMedication, nil, 0, round, next-now)
	}
	return id
}

// Step advances one person by a tick: their scheduler runs, then their time
// on the ward counts down.
func (w *Ward) Step(ctx context.Context, id ecs.EntityID, now int) error {
	s, ok := w.state.Scheduler(id)
	if !ok {
		return nil
	}
	err := s.Tick(ctx, now)

	if p, ok := w.state.Person(id); ok && p.Life > 0 {
		p.Life--
		if p.Life == 0 {
			w.Retire(id)
		}
	}
	return err
}

// Retire takes a person off the ward. Staff hand their queue and patients to
// a replacement; patients free their bed and book the next arrival. The
// entity itself is destroyed at the end of the tick.
func (w *Ward) Retire(id ecs.EntityID) {
	p, ok := w.state.Person(id)
	if !ok || w.state.World().Pending(id) {
		return
	}
	now := w.clock.Now()
	switch p.Role {
	case RolePatient:
		w.unregister(id, p)
		w.state.Vacate(p.Bed)
		w.ScheduleArrival(now + w.ticks(keyBetweenPatients))
	default:
		w.handover(id, p)
	}
	w.state.World().MarkForDestruction(id)
	event.Emit(w.bus, event.AgentRemoved{Entity: id, Kind: p.Role.String(), Tick: now})
}

func (w *Ward) handover(id ecs.EntityID, p *Person) {
	w.state.OffDuty(id)
	next := w.AddStaff(p.Role)
	np, _ := w.state.Person(next)
	from, _ := w.state.Scheduler(id)
	to, _ := w.state.Scheduler(next)
	moved := from.Handover(to)

	np.Patients = append(np.Patients, p.Patients...)
	for _, pid := range p.Patients {
		patient, ok := w.state.Person(pid)
		if !ok {
			continue
		}
		if patient.Nurse == id {
			patient.Nurse = next
		}
		if patient.Doctor == id {
			patient.Doctor = next
		}
	}
	p.Patients = nil
	w.log.Debug("shift handover",
		zap.String("from", p.Name), zap.String("to", np.Name),
		zap.Int("tasks", moved), zap.Int("patients", len(np.Patients)))
}

func (w *Ward) unregister(id ecs.EntityID, p *Person) {
	for _, staff := range []ecs.EntityID{p.Nurse, p.Doctor} {
		sp, ok := w.state.Person(staff)
		if !ok {
			continue
		}
		sp.Patients = removeID(sp.Patients, id)
	}
}

// register assigns a new patient to the nurse and the doctor with the fewest
// patients.
func (w *Ward) register(id ecs.EntityID, p *Person) error {
	nurse, ok := w.leastLoaded(RoleNurse)
	if !ok {
		return fmt.Errorf("%w: no nurse on duty", sched.ErrInvalidTaskReference)
	}
	doctor, ok := w.leastLoaded(RoleDoctor)
	if !ok {
		return fmt.Errorf("%w: no doctor on duty", sched.ErrInvalidTaskReference)
	}
	for _, staff := range []ecs.EntityID{nurse, doctor} {
		sp, _ := w.state.Person(staff)
		sp.Patients = append(sp.Patients, id)
	}
	p.Nurse, p.Doctor = nurse, doctor
	return nil
}

func (w *Ward) leastLoaded(role Role) (ecs.EntityID, bool) {
	var best ecs.EntityID
	load := -1
	for _, id := range w.state.Staff(role) {
		p, ok := w.state.Person(id)
		if !ok {
			continue
		}
		if load < 0 || len(p.Patients) < load {
			best, load = id, len(p.Patients)
		}
	}
	return best, load >= 0
}

// abandonPartner releases whoever was interacting with a departing person.
func (w *Ward) abandonPartner(id ecs.EntityID) {
	p, ok := w.state.Persons.Get(id)
	if !ok || p.Partner.IsZero() {
		return
	}
	partner, ok := w.state.Person(p.Partner)
	if ok && partner.Partner == id {
		partner.Partner = 0
		if s, ok := w.state.Scheduler(p.Partner); ok {
			s.Abandon()
		}
	}
	p.Partner = 0
}

func removeID(ids []ecs.EntityID, id ecs.EntityID) []ecs.EntityID {
	for i, other := range ids {
		if other == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
