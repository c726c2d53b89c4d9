package persist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wardsim/wardsim/internal/geom"
	"github.com/wardsim/wardsim/internal/nav"
)

// PathCacheRepo stores path-cache records in PostgreSQL.
type PathCacheRepo struct {
	db    *DB
	runID string
}

func NewPathCacheRepo(db *DB, runID string) *PathCacheRepo {
	return &PathCacheRepo{db: db, runID: runID}
}

// Load returns every record in insertion order. Called once at startup.
func (r *PathCacheRepo) Load(ctx context.Context) ([]nav.Record, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT origin_x, origin_y, dest_x, dest_y, route
		 FROM path_cache ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []nav.Record
	for rows.Next() {
		var rec nav.Record
		var raw []byte
		if err := rows.Scan(
			&rec.Origin.X, &rec.Origin.Y, &rec.Dest.X, &rec.Dest.Y, &raw,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &rec.Path); err != nil {
			return nil, fmt.Errorf("decode route: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Append writes recs in a single transaction.
func (r *PathCacheRepo) Append(ctx context.Context, recs []nav.Record) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("path cache begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, rec := range recs {
		raw, err := json.Marshal(routeOrEmpty(rec.Path))
		if err != nil {
			return fmt.Errorf("encode route: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO path_cache (origin_x, origin_y, dest_x, dest_y, route, run_id)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			rec.Origin.X, rec.Origin.Y, rec.Dest.X, rec.Dest.Y, raw, r.runID,
		); err != nil {
			return fmt.Errorf("path cache insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Count returns the number of stored records.
func (r *PathCacheRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM path_cache`).Scan(&n)
	return n, err
}

func routeOrEmpty(p geom.Path) geom.Path {
	if p == nil {
		return geom.Path{}
	}
	return p
}
