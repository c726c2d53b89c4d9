package grid

// lineNoDiag appends the cells on the segment a→b to dst, endpoints included.
// It is Bresenham's algorithm restricted to axis steps: each iteration moves
// along x or along y, never both, so consecutive cells always share an edge.
func lineNoDiag(dst []Cell, a, b Cell) []Cell {
	x0, y0 := a.X, a.Y
	dx := abs(b.X - x0)
	dy := -abs(b.Y - y0)
	xstep, ystep := 1, 1
	if b.X < x0 {
		xstep = -1
	}
	if b.Y < y0 {
		ystep = -1
	}
	e := dx + dy

	for x0 != b.X || y0 != b.Y {
		dst = append(dst, Cell{X: x0, Y: y0})
		if 2*e-dy > dx-2*e {
			e += dy
			x0 += xstep
		} else {
			e += dx
			y0 += ystep
		}
	}
	return append(dst, Cell{X: x0, Y: y0})
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
