package world

import (
	"github.com/wardsim/wardsim/internal/core/ecs"
	"github.com/wardsim/wardsim/internal/geom"
)

// Role distinguishes the kinds of people on the ward.
type Role uint8

const (
	RolePatient Role = iota
	RoleNurse
	RoleDoctor
)

func (r Role) String() string {
	switch r {
	case RoleNurse:
		return "nurse"
	case RoleDoctor:
		return "doctor"
	default:
		return "patient"
	}
}

// IdleState is the activity label of a person with nothing to do.
func (r Role) IdleState() string {
	switch r {
	case RoleNurse:
		return "idle_nurse"
	case RoleDoctor:
		return "idle_doctor"
	default:
		return "resting"
	}
}

// StateWalking is the activity label while travelling to a task.
const StateWalking = "walking"

// Person is the component of every mobile agent.
type Person struct {
	Name    string
	Role    Role
	State   string
	Partner ecs.EntityID // interaction partner, zero when none
	Life    int          // ticks left on the ward; 0 = unlimited

	// staff
	Patients []ecs.EntityID

	// patients
	Nurse  ecs.EntityID
	Doctor ecs.EntityID
	Bed    ecs.EntityID

	walkTo geom.Point
}

// Location is the component of a named area of the floor plan.
type Location struct {
	Name     string
	Kind     string
	Polygon  []geom.Point
	Centroid geom.Point
	Radius   float64 // farthest vertex from the centroid

	Parent   ecs.EntityID   // enclosing area: bed → room
	Inner    []ecs.EntityID // enclosed areas: room → beds
	Capacity int            // patient places, 1 per bed summed upward
	Occupied int
}

// Free returns the number of unoccupied patient places.
func (l *Location) Free() int { return l.Capacity - l.Occupied }
