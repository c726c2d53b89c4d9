package geom

import "math"

// Point is a position in continuous floor-plan coordinates.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Within reports whether p lies inside the closed disc of radius tol around q.
func (p Point) Within(q Point, tol float64) bool {
	return p.Dist(q) <= tol
}

// Path is an ordered sequence of continuous points.
type Path []Point

// Clone returns an independent copy; a nil path stays nil.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Reverse returns a reversed copy of p.
func (p Path) Reverse() Path {
	out := make(Path, len(p))
	for i, pt := range p {
		out[len(p)-1-i] = pt
	}
	return out
}

// Last returns the final point, or false for an empty path.
func (p Path) Last() (Point, bool) {
	if len(p) == 0 {
		return Point{}, false
	}
	return p[len(p)-1], true
}

// Centroid returns the vertex average of a polygon ring. A closing vertex equal
// to the first one is ignored.
func Centroid(ring []Point) Point {
	n := len(ring)
	if n == 0 {
		return Point{}
	}
	if n > 1 && ring[0] == ring[n-1] {
		n--
	}
	var c Point
	for _, p := range ring[:n] {
		c.X += p.X
		c.Y += p.Y
	}
	c.X /= float64(n)
	c.Y /= float64(n)
	return c
}

// Contains reports whether pt lies inside the polygon ring (even-odd rule).
func Contains(ring []Point, pt Point) bool {
	in := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := ring[i], ring[j]
		if (a.Y > pt.Y) != (b.Y > pt.Y) &&
			pt.X < (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y)+a.X {
			in = !in
		}
	}
	return in
}
