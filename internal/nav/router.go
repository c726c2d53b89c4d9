package nav

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wardsim/wardsim/internal/geom"
	"github.com/wardsim/wardsim/internal/grid"
)

// storeTimeout bounds one synchronous cache append.
const storeTimeout = 5 * time.Second

// Stats counts router activity.
type Stats struct {
	Hits    int
	Misses  int
	Plans   int
	Failed  int
	IOFails int
}

// Router answers continuous point-to-point route requests, consulting the
// cache before planning on the grid.
type Router struct {
	grid    *grid.Grid
	planner *Planner
	cache   *Cache
	log     *zap.Logger
	stats   Stats
}

func NewRouter(g *grid.Grid, planner *Planner, cache *Cache, log *zap.Logger) *Router {
	return &Router{grid: g, planner: planner, cache: cache, log: log}
}

// GetPath returns the route from origin to dest, origin excluded and the
// destination cell included. The caller owns the returned slice.
//
// A cache store failure is logged and does not fail the request.
func (r *Router) GetPath(ctx context.Context, origin, dest geom.Point) (geom.Path, error) {
	if full, ok := r.cache.Lookup(origin, dest); ok {
		r.stats.Hits++
		return dropOrigin(full), nil
	}
	r.stats.Misses++

	r.stats.Plans++
	cells, err := r.planner.Plan(r.grid.Forward(origin), r.grid.Forward(dest))
	if err != nil {
		r.stats.Failed++
		return nil, fmt.Errorf("route %v -> %v: %w", origin, dest, err)
	}
	full := r.grid.Inverse(cells)

	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := r.cache.Insert(sctx, origin, dest, full); err != nil {
		r.stats.IOFails++
		r.log.Warn("path cache write failed, continuing in memory", zap.Error(err))
	}
	r.log.Debug("route planned",
		zap.Float64("from_x", origin.X), zap.Float64("from_y", origin.Y),
		zap.Float64("to_x", dest.X), zap.Float64("to_y", dest.Y),
		zap.Int("cells", len(cells)))
	return dropOrigin(full), nil
}

// Stats returns a snapshot of the counters.
func (r *Router) Stats() Stats { return r.stats }

// Cache returns the backing cache.
func (r *Router) Cache() *Cache { return r.cache }

func dropOrigin(full geom.Path) geom.Path {
	if len(full) == 0 {
		return geom.Path{}
	}
	return full[1:]
}
