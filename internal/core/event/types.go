package event

import "github.com/wardsim/wardsim/internal/core/ecs"

// AgentAdded is emitted when a patient arrives or a staff member starts a shift.
type AgentAdded struct {
	Entity ecs.EntityID
	Kind   string
	Tick   int
}

// AgentRemoved is emitted when an agent leaves the ward.
type AgentRemoved struct {
	Entity ecs.EntityID
	Kind   string
	Tick   int
}

// TaskStarted is emitted when a task's timed portion begins.
type TaskStarted struct {
	Entity ecs.EntityID
	Action string
	Tick   int
}

// TaskFinished is emitted on a task's terminal tick.
type TaskFinished struct {
	Entity ecs.EntityID
	Action string
	Tick   int
}

// TaskFailed is emitted when a task occurrence is dropped.
type TaskFailed struct {
	Entity ecs.EntityID
	Action string
	Tick   int
	Err    error
}
