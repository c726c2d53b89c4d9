package nav

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wardsim/wardsim/internal/geom"
)

// ErrCacheIO wraps failures of the durable path-cache store.
var ErrCacheIO = errors.New("path cache io")

// Record is one cached route: the continuous endpoints it was planned for and
// the full continuous path, both endpoint cells included.
type Record struct {
	Origin geom.Point `json:"origin"`
	Dest   geom.Point `json:"dest"`
	Path   geom.Path  `json:"path"`
}

// Store persists cache records. Load returns records in insertion order;
// Append must be durable when it returns nil.
type Store interface {
	Load(ctx context.Context) ([]Record, error)
	Append(ctx context.Context, recs []Record) error
}

// Cache memoizes planned routes by approximate endpoint match.
type Cache struct {
	tolerance float64
	entries   []Record
	store     Store // nil = memory only
	log       *zap.Logger
}

// NewCache creates an empty cache matching endpoints within tolerance.
func NewCache(store Store, tolerance float64, log *zap.Logger) *Cache {
	return &Cache{
		tolerance: tolerance,
		store:     store,
		log:       log,
	}
}

// Load replaces the in-memory index with the store's records. On failure the
// cache starts empty and the wrapped ErrCacheIO is returned.
func (c *Cache) Load(ctx context.Context) error {
	c.entries = c.entries[:0]
	if c.store == nil {
		return nil
	}
	recs, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: load: %v", ErrCacheIO, err)
	}
	c.entries = append(c.entries, recs...)
	return nil
}

// Lookup returns the first cached path whose origin lies within tolerance of
// origin and whose destination lies within tolerance of dest. The returned
// path is a private copy.
func (c *Cache) Lookup(origin, dest geom.Point) (geom.Path, bool) {
	for i := range c.entries {
		e := &c.entries[i]
		if origin.Within(e.Origin, c.tolerance) && dest.Within(e.Dest, c.tolerance) {
			return e.Path.Clone(), true
		}
	}
	return nil, false
}

// Insert stores path for (origin, dest) and its reverse for (dest, origin),
// then persists both before returning. A persistence failure leaves the
// in-memory entries in place and returns the wrapped ErrCacheIO.
func (c *Cache) Insert(ctx context.Context, origin, dest geom.Point, path geom.Path) error {
	recs := []Record{
		{Origin: origin, Dest: dest, Path: path.Clone()},
		{Origin: dest, Dest: origin, Path: path.Reverse()},
	}
	c.entries = append(c.entries, recs...)
	if c.store == nil {
		return nil
	}
	if err := c.store.Append(ctx, recs); err != nil {
		return fmt.Errorf("%w: append: %v", ErrCacheIO, err)
	}
	return nil
}

// Len returns the number of cached directed routes.
func (c *Cache) Len() int { return len(c.entries) }

// Records returns a copy of the cached routes in match order.
func (c *Cache) Records() []Record {
	out := make([]Record, len(c.entries))
	for i, e := range c.entries {
		e.Path = e.Path.Clone()
		out[i] = e
	}
	return out
}

// Tolerance returns the endpoint match radius.
func (c *Cache) Tolerance() float64 { return c.tolerance }
