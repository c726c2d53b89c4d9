package grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardsim/wardsim/internal/geom"
)

func square(side float64) []geom.Point {
	return []geom.Point{
		geom.Pt(0, 0), geom.Pt(side, 0), geom.Pt(side, side), geom.Pt(0, side),
	}
}

func TestLimitDenominator(t *testing.T) {
	for _, tc := range []struct {
		v    float64
		max  int64
		want int64
	}{
		{2, 5, 1},
		{0.5, 5, 2},
		{0.75, 5, 4},
		{1.2, 5, 5},
		{0.3333, 5, 3},
		{3.14159, 10, 7},
		{-2.5, 5, 2},
	} {
		assert.Equal(t, tc.want, limitDenominator(tc.v, tc.max), "v=%v max=%d", tc.v, tc.max)
	}
}

func TestBuildSquare(t *testing.T) {
	g, err := Build(square(10), 5, 1)
	require.NoError(t, err)

	fx, fy := g.Factors()
	assert.Equal(t, int64(1), fx)
	assert.Equal(t, int64(1), fy)

	lo, hi := g.Bounds()
	assert.Equal(t, Cell{0, 0}, lo)
	assert.Equal(t, Cell{10, 10}, hi)
	assert.Equal(t, 40, g.WallCount())

	assert.True(t, g.IsWall(Cell{0, 5}))
	assert.True(t, g.IsWall(Cell{10, 10}))
	assert.False(t, g.IsWall(Cell{5, 5}))
	assert.False(t, g.IsWall(Cell{20, 20}))
}

func TestBuildFractionalScale(t *testing.T) {
	g, err := Build([]geom.Point{
		geom.Pt(0, 0), geom.Pt(2.5, 0), geom.Pt(2.5, 1.25), geom.Pt(0, 1.25),
	}, 5, 1)
	require.NoError(t, err)

	fx, fy := g.Factors()
	assert.Equal(t, int64(2), fx)
	assert.Equal(t, int64(4), fy)
	assert.Equal(t, Cell{5, 5}, g.Forward(geom.Pt(2.5, 1.25)))
}

func TestBuildZoom(t *testing.T) {
	g, err := Build(square(100), 5, 0.1)
	require.NoError(t, err)
	assert.Equal(t, Cell{10, 10}, g.Forward(geom.Pt(100, 100)))
	assert.InDelta(t, 10.0, g.Resolution().X, 1e-9)
}

func TestRoundTripBoundaryVertices(t *testing.T) {
	boundary := []geom.Point{
		geom.Pt(1.5, 0.25), geom.Pt(12.75, 0.25), geom.Pt(12.75, 7),
		geom.Pt(6.2, 9.4), geom.Pt(1.5, 7),
	}
	g, err := Build(boundary, 5, 1)
	require.NoError(t, err)

	res := g.Resolution()
	for _, p := range boundary {
		back := g.InverseCell(g.Forward(p))
		assert.InDelta(t, p.X, back.X, res.X/2+1e-9, "x of %v", p)
		assert.InDelta(t, p.Y, back.Y, res.Y/2+1e-9, "y of %v", p)
	}

	// vertices representable with denominator <= 5 come back exactly
	for _, p := range boundary {
		back := g.Inverse([]Cell{g.Forward(p)})[0]
		assert.InDelta(t, p.X, back.X, 1e-9)
		assert.InDelta(t, p.Y, back.Y, 1e-9)
	}
}

func TestRoundTripBoundedByDenominator(t *testing.T) {
	boundary := []geom.Point{
		geom.Pt(0, 0), geom.Pt(3.3333, 0), geom.Pt(3.3333, 2.6667), geom.Pt(0, 2.6667),
	}
	const maxDenom = 3
	g, err := Build(boundary, maxDenom, 1)
	require.NoError(t, err)
	for _, p := range boundary {
		back := g.InverseCell(g.Forward(p))
		assert.LessOrEqual(t, math.Abs(back.X-p.X), 1.0/maxDenom)
		assert.LessOrEqual(t, math.Abs(back.Y-p.Y), 1.0/maxDenom)
	}
}

func TestOutlineIsFourConnected(t *testing.T) {
	boundary := []geom.Point{
		geom.Pt(0, 0), geom.Pt(17, 3), geom.Pt(20, 15), geom.Pt(9, 22),
		geom.Pt(-4, 11),
	}
	g, err := Build(boundary, 5, 1)
	require.NoError(t, err)

	outline := g.Outline()
	require.NotEmpty(t, outline)
	for i := 1; i < len(outline); i++ {
		a, b := outline[i-1], outline[i]
		d := abs(a.X-b.X) + abs(a.Y-b.Y)
		assert.Equal(t, 1, d, "cells %v and %v are not edge-adjacent", a, b)
	}
	assert.Equal(t, outline[0], outline[len(outline)-1], "ring must close")
	for _, c := range outline {
		assert.True(t, g.IsWall(c))
	}
}

func TestLineNoDiag(t *testing.T) {
	cells := lineNoDiag(nil, Cell{0, 0}, Cell{1, 5})
	assert.Equal(t, Cell{0, 0}, cells[0])
	assert.Equal(t, Cell{1, 5}, cells[len(cells)-1])
	assert.Len(t, cells, 7)

	cells = lineNoDiag(nil, Cell{3, 3}, Cell{3, 3})
	assert.Equal(t, []Cell{{3, 3}}, cells)

	cells = lineNoDiag(nil, Cell{4, 2}, Cell{-2, -1})
	assert.Len(t, cells, 10)
	assert.Equal(t, Cell{-2, -1}, cells[len(cells)-1])
}

func TestBuildDegenerate(t *testing.T) {
	for name, pts := range map[string][]geom.Point{
		"empty":      nil,
		"one vertex": {geom.Pt(1, 1)},
		"flat":       {geom.Pt(0, 0), geom.Pt(5, 0), geom.Pt(9, 0)},
		"vertical":   {geom.Pt(2, 0), geom.Pt(2, 5)},
		"nan":        {geom.Pt(0, 0), geom.Pt(math.NaN(), 3), geom.Pt(4, 4)},
	} {
		_, err := Build(pts, 5, 1)
		assert.ErrorIs(t, err, ErrDegenerateGeometry, name)
	}

	_, err := Build(square(10), 0, 1)
	assert.ErrorIs(t, err, ErrDegenerateGeometry)
	_, err = Build(square(10), 5, 0)
	assert.ErrorIs(t, err, ErrDegenerateGeometry)
	_, err = Build(square(0.01), 5, 1)
	assert.ErrorIs(t, err, ErrDegenerateGeometry, "collapses after rounding")
}

func TestBuildTooLarge(t *testing.T) {
	_, err := Build(square(1e5), 5, 1)
	assert.ErrorIs(t, err, ErrGridTooLarge)
}
