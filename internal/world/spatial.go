package world

import (
	"math"
	"sort"

	"github.com/wardsim/wardsim/internal/core/ecs"
	"github.com/wardsim/wardsim/internal/geom"
)

// SpatialIndex hashes continuous positions into square cells so radius
// queries only touch nearby cells. Positions written with Move take effect
// in queries after the next Reindex. Accessed only from the tick loop.
type SpatialIndex struct {
	cellSize float64
	cells    map[cellKey]map[ecs.EntityID]struct{}
	indexed  map[ecs.EntityID]geom.Point // position the cell hash reflects
	pending  map[ecs.EntityID]geom.Point // moved since last Reindex
}

type cellKey struct {
	cx, cy int
}

func NewSpatialIndex(cellSize float64) *SpatialIndex {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &SpatialIndex{
		cellSize: cellSize,
		cells:    make(map[cellKey]map[ecs.EntityID]struct{}),
		indexed:  make(map[ecs.EntityID]geom.Point),
		pending:  make(map[ecs.EntityID]geom.Point),
	}
}

func (s *SpatialIndex) key(p geom.Point) cellKey {
	return cellKey{
		cx: int(math.Floor(p.X / s.cellSize)),
		cy: int(math.Floor(p.Y / s.cellSize)),
	}
}

// Insert places id at p immediately.
func (s *SpatialIndex) Insert(id ecs.EntityID, p geom.Point) {
	if _, ok := s.indexed[id]; ok {
		s.unlink(id)
	}
	s.link(id, p)
	delete(s.pending, id)
}

// Remove takes id out of the index.
func (s *SpatialIndex) Remove(id ecs.EntityID) {
	if _, ok := s.indexed[id]; ok {
		s.unlink(id)
	}
	delete(s.pending, id)
}

// Move records a new position for id; queries see it after Reindex.
func (s *SpatialIndex) Move(id ecs.EntityID, p geom.Point) {
	if _, ok := s.indexed[id]; !ok {
		return
	}
	s.pending[id] = p
}

// Reindex applies all moves recorded since the last call and returns how many
// entities changed cell.
func (s *SpatialIndex) Reindex() int {
	changed := 0
	for id, p := range s.pending {
		old := s.indexed[id]
		if s.key(old) != s.key(p) {
			changed++
		}
		s.unlink(id)
		s.link(id, p)
	}
	clear(s.pending)
	return changed
}

// Near returns the entities whose indexed position lies within r of p, in
// ascending ID order.
func (s *SpatialIndex) Near(p geom.Point, r float64) []ecs.EntityID {
	lo := s.key(geom.Pt(p.X-r, p.Y-r))
	hi := s.key(geom.Pt(p.X+r, p.Y+r))
	var out []ecs.EntityID
	for cx := lo.cx; cx <= hi.cx; cx++ {
		for cy := lo.cy; cy <= hi.cy; cy++ {
			for id := range s.cells[cellKey{cx, cy}] {
				if s.indexed[id].Within(p, r) {
					out = append(out, id)
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of indexed entities.
func (s *SpatialIndex) Len() int { return len(s.indexed) }

func (s *SpatialIndex) link(id ecs.EntityID, p geom.Point) {
	k := s.key(p)
	cell := s.cells[k]
	if cell == nil {
		cell = make(map[ecs.EntityID]struct{})
		s.cells[k] = cell
	}
	cell[id] = struct{}{}
	s.indexed[id] = p
}

func (s *SpatialIndex) unlink(id ecs.EntityID) {
	k := s.key(s.indexed[id])
	if cell := s.cells[k]; cell != nil {
		delete(cell, id)
		if len(cell) == 0 {
			delete(s.cells, k)
		}
	}
	delete(s.indexed, id)
}
