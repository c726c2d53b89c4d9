package sched

import (
	"container/heap"
	"sort"

	"github.com/wardsim/wardsim/internal/core/ecs"
)

// Task is one scheduled occurrence of an action.
type Task struct {
	Action Action
	// Route lists the entities to visit in order; the last one is where the
	// action happens. Empty for stationary actions.
	Route     []ecs.EntityID
	Duration  int
	Frequency int // 0 = one-shot
	Priority  int
	Eligible  int
	Seq       uint64
}

// Target returns the final route entity, or false for a stationary task.
func (t Task) Target() (ecs.EntityID, bool) {
	if len(t.Route) == 0 {
		return 0, false
	}
	return t.Route[len(t.Route)-1], true
}

func (t Task) clone() Task {
	if t.Route != nil {
		t.Route = append([]ecs.EntityID(nil), t.Route...)
	}
	return t
}

// before orders tasks by priority descending, then eligible tick, then
// sequence number.
func before(a, b *Task) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.Eligible != b.Eligible {
		return a.Eligible < b.Eligible
	}
	return a.Seq < b.Seq
}

type taskHeap []Task

func (h taskHeap) Len() int           { return len(h) }
func (h taskHeap) Less(i, j int) bool { return before(&h[i], &h[j]) }
func (h taskHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)        { *h = append(*h, x.(Task)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = Task{}
	*h = old[:n-1]
	return t
}

// queue is the per-agent pending task queue.
type queue struct {
	h taskHeap
}

func (q *queue) push(t Task) { heap.Push(&q.h, t) }

func (q *queue) peek() (Task, bool) {
	if len(q.h) == 0 {
		return Task{}, false
	}
	return q.h[0], true
}

func (q *queue) pop() Task { return heap.Pop(&q.h).(Task) }

func (q *queue) len() int { return len(q.h) }

// sorted returns the pending tasks in run order.
func (q *queue) sorted() []Task {
	out := make([]Task, len(q.h))
	for i, t := range q.h {
		out[i] = t.clone()
	}
	sort.Slice(out, func(i, j int) bool { return before(&out[i], &out[j]) })
	return out
}

// drain empties the queue and returns its tasks in run order.
func (q *queue) drain() []Task {
	out := q.sorted()
	q.h = q.h[:0]
	return out
}
