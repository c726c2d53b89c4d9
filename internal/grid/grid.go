package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/wardsim/wardsim/internal/geom"
)

var (
	// ErrDegenerateGeometry is returned when a boundary cannot be rasterized:
	// fewer than two distinct vertices, or zero span on an axis.
	ErrDegenerateGeometry = errors.New("degenerate geometry")
	// ErrGridTooLarge is returned when the scale factors blow the grid past MaxCells.
	ErrGridTooLarge = errors.New("grid too large")
)

// MaxCells caps the rasterized bounding box.
const MaxCells = 1 << 26

// Cell is an integer grid coordinate.
type Cell struct {
	X, Y int
}

// Grid is the rasterized floor boundary. Immutable after Build.
// Accessed only from the simulation goroutine.
type Grid struct {
	zoom    float64
	factorX int64
	factorY int64

	// inverse transform: continuous = (cell - minCell) / scale + minGeo
	minGeo  geom.Point
	scaleX  float64
	scaleY  float64
	minCell Cell
	maxCell Cell

	width  int
	height int
	walls  []bool // flat [x * height + y], same layout as map tiles
	wallN  int

	vertices []Cell
	outline  []Cell
}

// Build rasterizes a polygon boundary. maxDenom bounds the denominators used to
// express each scaled coordinate as a rational; zoom scales the floor before
// rasterizing. An open ring is closed by repeating its first vertex.
func Build(boundary []geom.Point, maxDenom int, zoom float64) (*Grid, error) {
	if maxDenom < 1 {
		return nil, fmt.Errorf("%w: max denominator %d", ErrDegenerateGeometry, maxDenom)
	}
	if zoom <= 0 || math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		return nil, fmt.Errorf("%w: zoom factor %v", ErrDegenerateGeometry, zoom)
	}
	if len(boundary) < 2 {
		return nil, fmt.Errorf("%w: %d vertices", ErrDegenerateGeometry, len(boundary))
	}

	nodes := make([]geom.Point, 0, len(boundary)+1)
	nodes = append(nodes, boundary...)
	if nodes[0] != nodes[len(nodes)-1] {
		nodes = append(nodes, nodes[0])
	}

	xs := make([]float64, len(nodes))
	ys := make([]float64, len(nodes))
	minGeo := geom.Pt(math.Inf(1), math.Inf(1))
	maxGeo := geom.Pt(math.Inf(-1), math.Inf(-1))
	for i, p := range nodes {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return nil, fmt.Errorf("%w: vertex %d is not finite", ErrDegenerateGeometry, i)
		}
		xs[i], ys[i] = p.X*zoom, p.Y*zoom
		minGeo.X = math.Min(minGeo.X, p.X)
		minGeo.Y = math.Min(minGeo.Y, p.Y)
		maxGeo.X = math.Max(maxGeo.X, p.X)
		maxGeo.Y = math.Max(maxGeo.Y, p.Y)
	}
	if maxGeo.X == minGeo.X || maxGeo.Y == minGeo.Y {
		return nil, fmt.Errorf("%w: zero span (%v..%v)", ErrDegenerateGeometry, minGeo, maxGeo)
	}

	fx, ok := axisFactor(xs, int64(maxDenom))
	if !ok {
		return nil, fmt.Errorf("%w: x scale factor overflows", ErrGridTooLarge)
	}
	fy, ok := axisFactor(ys, int64(maxDenom))
	if !ok {
		return nil, fmt.Errorf("%w: y scale factor overflows", ErrGridTooLarge)
	}

	g := &Grid{zoom: zoom, factorX: fx, factorY: fy, minGeo: minGeo}

	g.vertices = make([]Cell, len(nodes))
	g.minCell = Cell{X: math.MaxInt, Y: math.MaxInt}
	g.maxCell = Cell{X: math.MinInt, Y: math.MinInt}
	for i, p := range nodes {
		c := g.Forward(p)
		g.vertices[i] = c
		g.minCell.X = min(g.minCell.X, c.X)
		g.minCell.Y = min(g.minCell.Y, c.Y)
		g.maxCell.X = max(g.maxCell.X, c.X)
		g.maxCell.Y = max(g.maxCell.Y, c.Y)
	}
	if g.maxCell.X == g.minCell.X || g.maxCell.Y == g.minCell.Y {
		return nil, fmt.Errorf("%w: boundary collapses to a line at this scale", ErrDegenerateGeometry)
	}

	g.width = g.maxCell.X - g.minCell.X + 1
	g.height = g.maxCell.Y - g.minCell.Y + 1
	if g.width*g.height > MaxCells {
		return nil, fmt.Errorf("%w: %dx%d cells", ErrGridTooLarge, g.width, g.height)
	}
	g.scaleX = float64(g.maxCell.X-g.minCell.X) / (maxGeo.X - minGeo.X)
	g.scaleY = float64(g.maxCell.Y-g.minCell.Y) / (maxGeo.Y - minGeo.Y)

	g.walls = make([]bool, g.width*g.height)
	for i := 1; i < len(g.vertices); i++ {
		start := len(g.outline)
		g.outline = lineNoDiag(g.outline, g.vertices[i-1], g.vertices[i])
		// the shared vertex is emitted by both segments
		if start > 0 && g.outline[start] == g.outline[start-1] {
			g.outline = append(g.outline[:start], g.outline[start+1:]...)
		}
	}
	for _, c := range g.outline {
		idx := g.index(c)
		if !g.walls[idx] {
			g.walls[idx] = true
			g.wallN++
		}
	}
	return g, nil
}

// Forward maps a continuous point to its grid cell.
func (g *Grid) Forward(p geom.Point) Cell {
	return Cell{
		X: int(math.RoundToEven(p.X * float64(g.factorX) * g.zoom)),
		Y: int(math.RoundToEven(p.Y * float64(g.factorY) * g.zoom)),
	}
}

// InverseCell maps a single cell back to continuous space.
func (g *Grid) InverseCell(c Cell) geom.Point {
	return geom.Point{
		X: float64(c.X-g.minCell.X)/g.scaleX + g.minGeo.X,
		Y: float64(c.Y-g.minCell.Y)/g.scaleY + g.minGeo.Y,
	}
}

// Inverse maps a grid path back to continuous space.
func (g *Grid) Inverse(cells []Cell) geom.Path {
	out := make(geom.Path, len(cells))
	for i, c := range cells {
		out[i] = g.InverseCell(c)
	}
	return out
}

func (g *Grid) index(c Cell) int {
	return (c.X-g.minCell.X)*g.height + (c.Y - g.minCell.Y)
}

// InBounds reports whether c lies inside the rasterized bounding box.
func (g *Grid) InBounds(c Cell) bool {
	return c.X >= g.minCell.X && c.X <= g.maxCell.X &&
		c.Y >= g.minCell.Y && c.Y <= g.maxCell.Y
}

// IsWall reports whether c is a rasterized boundary cell. Out-of-bounds cells
// are not walls; callers check InBounds first.
func (g *Grid) IsWall(c Cell) bool {
	if !g.InBounds(c) {
		return false
	}
	return g.walls[g.index(c)]
}

// Bounds returns the inclusive min and max cells.
func (g *Grid) Bounds() (Cell, Cell) { return g.minCell, g.maxCell }

// Size returns the bounding box dimensions in cells.
func (g *Grid) Size() (int, int) { return g.width, g.height }

// Factors returns the per-axis integer scale factors.
func (g *Grid) Factors() (int64, int64) { return g.factorX, g.factorY }

// WallCount returns the number of distinct wall cells.
func (g *Grid) WallCount() int { return g.wallN }

// Outline returns the wall cells in drawing order.
func (g *Grid) Outline() []Cell {
	out := make([]Cell, len(g.outline))
	copy(out, g.outline)
	return out
}

// Resolution returns the continuous size of one cell on each axis.
func (g *Grid) Resolution() geom.Point {
	return geom.Point{X: 1 / g.scaleX, Y: 1 / g.scaleY}
}
