package nav

import (
	"errors"
	"fmt"

	"github.com/wardsim/wardsim/internal/grid"
)

// ErrPathNotFound is returned when the goal cannot be reached from the start.
var ErrPathNotFound = errors.New("path not found")

// neighbour order is part of the tie-break contract: E, N, W, S.
var (
	stepDX = [4]int{1, 0, -1, 0}
	stepDY = [4]int{0, 1, 0, -1}
)

// Planner computes shortest 4-connected routes over a rasterized grid.
//
// Distances are computed backwards from the goal, as D* Lite does, and kept per
// goal so later requests towards the same goal only walk the stored field.
// SetObstacle invalidates stored fields. Accessed only from the simulation
// goroutine.
type Planner struct {
	grid    *grid.Grid
	blocked map[grid.Cell]bool
	fields  map[grid.Cell][]int32
	maxKept int
	order   []grid.Cell // goals in insertion order, for eviction
	plans   int
}

// NewPlanner creates a planner over g keeping at most maxFields distance
// fields (0 keeps none).
func NewPlanner(g *grid.Grid, maxFields int) *Planner {
	return &Planner{
		grid:    g,
		blocked: make(map[grid.Cell]bool),
		fields:  make(map[grid.Cell][]int32),
		maxKept: maxFields,
	}
}

// Plans returns how many searches the planner has run.
func (p *Planner) Plans() int { return p.plans }

// SetObstacle marks or clears a dynamic obstacle on top of the wall set.
func (p *Planner) SetObstacle(c grid.Cell, blocked bool) {
	if p.blocked[c] == blocked {
		return
	}
	if blocked {
		p.blocked[c] = true
	} else {
		delete(p.blocked, c)
	}
	clear(p.fields)
	p.order = p.order[:0]
}

// Walkable reports whether c is inside the grid and neither wall nor obstacle.
func (p *Planner) Walkable(c grid.Cell) bool {
	return p.grid.InBounds(c) && !p.grid.IsWall(c) && !p.blocked[c]
}

// Plan returns the cells of a shortest route from start to end, both inclusive.
// The result for (b, a) is always the reverse of the result for (a, b).
func (p *Planner) Plan(start, end grid.Cell) ([]grid.Cell, error) {
	p.plans++
	if !p.Walkable(start) || !p.Walkable(end) {
		return nil, fmt.Errorf("%w: %v -> %v: endpoint not walkable", ErrPathNotFound, start, end)
	}
	if start == end {
		return []grid.Cell{start}, nil
	}

	// search from the canonical endpoint so both directions pick the same route
	from, to, flip := start, end, false
	if less(end, start) {
		from, to, flip = end, start, true
	}

	dist := p.field(to)
	if dist[p.index(from)] < 0 {
		return nil, fmt.Errorf("%w: %v -> %v", ErrPathNotFound, start, end)
	}

	route := make([]grid.Cell, 0, dist[p.index(from)]+1)
	cur := from
	route = append(route, cur)
	for cur != to {
		d := dist[p.index(cur)]
		next := cur
		for i := range stepDX {
			n := grid.Cell{X: cur.X + stepDX[i], Y: cur.Y + stepDY[i]}
			if p.grid.InBounds(n) && dist[p.index(n)] == d-1 {
				next = n
				break
			}
		}
		if next == cur {
			// unreachable with a consistent field
			return nil, fmt.Errorf("%w: broken distance field at %v", ErrPathNotFound, cur)
		}
		cur = next
		route = append(route, cur)
	}

	if flip {
		for i, j := 0, len(route)-1; i < j; i, j = i+1, j-1 {
			route[i], route[j] = route[j], route[i]
		}
	}
	return route, nil
}

// field returns the step distance of every cell to goal, -1 for unreachable.
func (p *Planner) field(goal grid.Cell) []int32 {
	if f, ok := p.fields[goal]; ok {
		return f
	}

	w, h := p.grid.Size()
	dist := make([]int32, w*h)
	for i := range dist {
		dist[i] = -1
	}
	dist[p.index(goal)] = 0
	queue := []grid.Cell{goal}
	for head := 0; head < len(queue); head++ {
		c := queue[head]
		d := dist[p.index(c)]
		for i := range stepDX {
			n := grid.Cell{X: c.X + stepDX[i], Y: c.Y + stepDY[i]}
			if !p.Walkable(n) {
				continue
			}
			idx := p.index(n)
			if dist[idx] >= 0 {
				continue
			}
			dist[idx] = d + 1
			queue = append(queue, n)
		}
	}

	if p.maxKept > 0 {
		if len(p.order) >= p.maxKept {
			delete(p.fields, p.order[0])
			p.order = p.order[1:]
		}
		p.fields[goal] = dist
		p.order = append(p.order, goal)
	}
	return dist
}

func (p *Planner) index(c grid.Cell) int {
	lo, _ := p.grid.Bounds()
	_, h := p.grid.Size()
	return (c.X-lo.X)*h + (c.Y - lo.Y)
}

func less(a, b grid.Cell) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	return a.Y < b.Y
}
