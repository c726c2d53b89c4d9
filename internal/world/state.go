package world

import (
	"errors"
	"fmt"
	"sort"

	"github.com/wardsim/wardsim/internal/core/ecs"
	"github.com/wardsim/wardsim/internal/data"
	"github.com/wardsim/wardsim/internal/geom"
	"github.com/wardsim/wardsim/internal/sched"
)

// ErrNotEnoughBeds is returned when more patients arrive than there are free beds.
var ErrNotEnoughBeds = errors.New("not enough beds")

// Relation is a spatial predicate between two entities.
type Relation uint8

const (
	// Within: the entity's reference point lies inside the other's area.
	Within Relation = iota
	// Contains: the other's reference point lies inside the entity's area.
	Contains
)

// State holds every entity on the ward: people, their schedulers and the
// areas of the floor plan. Single-goroutine access only (tick loop).
type State struct {
	ecs        *ecs.World
	Persons    *ecs.PtrComponentStore[Person]
	Locations  *ecs.PtrComponentStore[Location]
	Positions  *ecs.PtrComponentStore[geom.Point]
	Schedulers *ecs.PtrComponentStore[sched.Scheduler]

	spatial   *SpatialIndex
	maxRadius float64
	byName    map[string]ecs.EntityID

	nurseStation      ecs.EntityID
	medicationStation ecs.EntityID
	rooms             []ecs.EntityID
	beds              []ecs.EntityID

	staff map[Role][]ecs.EntityID // on-duty order
}

// NewState creates the location entities of fp and links beds to the rooms
// enclosing them.
func NewState(fp *data.FloorPlan, cellSize float64) (*State, error) {
	s := &State{
		ecs:        ecs.NewWorld(),
		Persons:    ecs.NewPtrComponentStore[Person](),
		Locations:  ecs.NewPtrComponentStore[Location](),
		Positions:  ecs.NewPtrComponentStore[geom.Point](),
		Schedulers: ecs.NewPtrComponentStore[sched.Scheduler](),
		spatial:    NewSpatialIndex(cellSize),
		byName:     make(map[string]ecs.EntityID),
		staff:      make(map[Role][]ecs.EntityID),
	}
	reg := s.ecs.Registry()
	reg.Register(s.Persons)
	reg.Register(s.Locations)
	reg.Register(s.Positions)
	reg.Register(s.Schedulers)
	s.ecs.OnDestroy(s.forget)

	for _, entry := range fp.Locations {
		loc := &Location{
			Name:     entry.Name,
			Kind:     entry.Kind,
			Polygon:  entry.Polygon,
			Centroid: entry.Centroid(),
		}
		for _, v := range loc.Polygon {
			loc.Radius = max(loc.Radius, v.Dist(loc.Centroid))
		}
		s.maxRadius = max(s.maxRadius, loc.Radius)

		id := s.ecs.CreateEntity()
		s.Locations.Set(id, loc)
		s.spatial.Insert(id, loc.Centroid)
		s.byName[loc.Name] = id
		switch loc.Kind {
		case data.KindNurseStation:
			s.nurseStation = id
		case data.KindMedicationStation:
			s.medicationStation = id
		case data.KindRoom:
			s.rooms = append(s.rooms, id)
		case data.KindBed:
			loc.Capacity = 1
			s.beds = append(s.beds, id)
		}
	}
	if s.nurseStation.IsZero() || s.medicationStation.IsZero() {
		return nil, fmt.Errorf("floor plan %q: missing station", fp.Name)
	}

	for _, bed := range s.beds {
		rooms := s.Relation(bed, Within, data.KindRoom)
		if len(rooms) == 0 {
			continue
		}
		b, _ := s.Locations.Get(bed)
		room, _ := s.Locations.Get(rooms[0])
		b.Parent = rooms[0]
		room.Inner = append(room.Inner, bed)
		room.Capacity += b.Capacity
	}
	return s, nil
}

// World exposes the entity pool and destroy queue.
func (s *State) World() *ecs.World { return s.ecs }

// Spatial exposes the position index.
func (s *State) Spatial() *SpatialIndex { return s.spatial }

func (s *State) NurseStation() ecs.EntityID      { return s.nurseStation }
func (s *State) MedicationStation() ecs.EntityID { return s.medicationStation }

// Beds returns all beds in floor-plan order.
func (s *State) Beds() []ecs.EntityID { return append([]ecs.EntityID(nil), s.beds...) }

// Lookup returns the location with the given name.
func (s *State) Lookup(name string) (ecs.EntityID, bool) {
	id, ok := s.byName[name]
	return id, ok
}

// AddPerson creates a person at p. Staff join the end of the on-duty list.
func (s *State) AddPerson(person *Person, p geom.Point) ecs.EntityID {
	id := s.ecs.CreateEntity()
	pos := p
	s.Persons.Set(id, person)
	s.Positions.Set(id, &pos)
	s.spatial.Insert(id, p)
	if person.Role != RolePatient {
		s.staff[person.Role] = append(s.staff[person.Role], id)
	}
	return id
}

// Person returns the live person id.
func (s *State) Person(id ecs.EntityID) (*Person, bool) {
	if !s.ecs.Alive(id) {
		return nil, false
	}
	return s.Persons.Get(id)
}

// Scheduler returns the task scheduler of a live person.
func (s *State) Scheduler(id ecs.EntityID) (*sched.Scheduler, bool) {
	if !s.ecs.Alive(id) {
		return nil, false
	}
	return s.Schedulers.Get(id)
}

// Staff returns the on-duty staff of one role in joining order.
func (s *State) Staff(role Role) []ecs.EntityID {
	return append([]ecs.EntityID(nil), s.staff[role]...)
}

// Point returns the reference point of an entity: a person's position or a
// location's centroid.
func (s *State) Point(id ecs.EntityID) (geom.Point, bool) {
	if !s.ecs.Alive(id) {
		return geom.Point{}, false
	}
	if p, ok := s.Positions.Get(id); ok {
		return *p, true
	}
	if loc, ok := s.Locations.Get(id); ok {
		return loc.Centroid, true
	}
	return geom.Point{}, false
}

// SetPosition moves a person. The spatial index sees the move after Reindex.
func (s *State) SetPosition(id ecs.EntityID, p geom.Point) {
	pos, ok := s.Positions.Get(id)
	if !ok {
		return
	}
	*pos = p
	s.spatial.Move(id, p)
}

// Kind returns the location kind or the role name of id.
func (s *State) Kind(id ecs.EntityID) string {
	if loc, ok := s.Locations.Get(id); ok {
		return loc.Kind
	}
	if p, ok := s.Persons.Get(id); ok {
		return p.Role.String()
	}
	return ""
}

// Relation returns the entities of the given kind that stand in rel to id,
// in ascending ID order.
func (s *State) Relation(id ecs.EntityID, rel Relation, kind string) []ecs.EntityID {
	ref, ok := s.Point(id)
	if !ok {
		return nil
	}
	var out []ecs.EntityID
	switch rel {
	case Within:
		for _, other := range s.spatial.Near(ref, s.maxRadius) {
			if other == id || s.Kind(other) != kind {
				continue
			}
			if loc, ok := s.Locations.Get(other); ok && geom.Contains(loc.Polygon, ref) {
				out = append(out, other)
			}
		}
	case Contains:
		loc, ok := s.Locations.Get(id)
		if !ok {
			return nil
		}
		for _, other := range s.spatial.Near(loc.Centroid, loc.Radius) {
			if other == id || s.Kind(other) != kind {
				continue
			}
			if p, ok := s.Point(other); ok && geom.Contains(loc.Polygon, p) {
				out = append(out, other)
			}
		}
	}
	return out
}

// EmptyBeds reserves n beds, each taken from the room with the most free
// places at the time. Beds outside any room are used last.
func (s *State) EmptyBeds(n int) ([]ecs.EntityID, error) {
	free := 0
	for _, bed := range s.beds {
		if b, _ := s.Locations.Get(bed); b.Free() > 0 {
			free++
		}
	}
	if n > free {
		return nil, fmt.Errorf("%w: want %d, have %d", ErrNotEnoughBeds, n, free)
	}

	out := make([]ecs.EntityID, 0, n)
	for len(out) < n {
		bed := s.pickBed()
		s.Occupy(bed)
		out = append(out, bed)
	}
	return out, nil
}

func (s *State) pickBed() ecs.EntityID {
	rooms := append([]ecs.EntityID(nil), s.rooms...)
	sort.SliceStable(rooms, func(i, j int) bool {
		a, _ := s.Locations.Get(rooms[i])
		b, _ := s.Locations.Get(rooms[j])
		return a.Free() > b.Free()
	})
	for _, room := range rooms {
		r, _ := s.Locations.Get(room)
		for _, bed := range r.Inner {
			if b, _ := s.Locations.Get(bed); b.Free() > 0 {
				return bed
			}
		}
	}
	for _, bed := range s.beds {
		if b, _ := s.Locations.Get(bed); b.Free() > 0 {
			return bed
		}
	}
	return 0
}

// Occupy marks one place of bed taken, propagating to its room.
func (s *State) Occupy(bed ecs.EntityID) {
	for id := bed; !id.IsZero(); {
		loc, ok := s.Locations.Get(id)
		if !ok {
			return
		}
		loc.Occupied++
		id = loc.Parent
	}
}

// Vacate frees one place of bed, propagating to its room.
func (s *State) Vacate(bed ecs.EntityID) {
	for id := bed; !id.IsZero(); {
		loc, ok := s.Locations.Get(id)
		if !ok || loc.Occupied == 0 {
			return
		}
		loc.Occupied--
		id = loc.Parent
	}
}

// OffDuty takes a staff member out of the on-duty list so no new patients are
// assigned to them.
func (s *State) OffDuty(id ecs.EntityID) {
	p, ok := s.Persons.Get(id)
	if !ok || p.Role == RolePatient {
		return
	}
	list := s.staff[p.Role]
	for i, other := range list {
		if other == id {
			s.staff[p.Role] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// forget drops id from the indexes that live outside component stores.
func (s *State) forget(id ecs.EntityID) {
	s.spatial.Remove(id)
	s.OffDuty(id)
}
