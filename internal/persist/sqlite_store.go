package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wardsim/wardsim/internal/nav"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS path_cache (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	origin_x REAL NOT NULL,
	origin_y REAL NOT NULL,
	dest_x REAL NOT NULL,
	dest_y REAL NOT NULL,
	route TEXT NOT NULL,
	run_id TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
`

// SQLiteStore keeps path-cache records in a local SQLite file.
type SQLiteStore struct {
	db    *sql.DB
	runID string
}

// OpenSQLite opens (creating if needed) the database at dbPath and applies the schema.
func OpenSQLite(ctx context.Context, dbPath, runID string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection keeps ":memory:" databases alive across calls
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set sqlite pragma %q: %w", stmt, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &SQLiteStore{db: db, runID: runID}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns every record in insertion order.
func (s *SQLiteStore) Load(ctx context.Context) ([]nav.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT origin_x, origin_y, dest_x, dest_y, route FROM path_cache ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query path cache: %w", err)
	}
	defer rows.Close()

	var recs []nav.Record
	for rows.Next() {
		var rec nav.Record
		var raw string
		if err := rows.Scan(&rec.Origin.X, &rec.Origin.Y, &rec.Dest.X, &rec.Dest.Y, &raw); err != nil {
			return nil, fmt.Errorf("scan path cache: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &rec.Path); err != nil {
			return nil, fmt.Errorf("decode route: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Append writes recs in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, recs []nav.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin path cache tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().UnixMilli()
	for _, rec := range recs {
		raw, err := json.Marshal(routeOrEmpty(rec.Path))
		if err != nil {
			return fmt.Errorf("encode route: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO path_cache (origin_x, origin_y, dest_x, dest_y, route, run_id, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.Origin.X, rec.Origin.Y, rec.Dest.X, rec.Dest.Y, string(raw), s.runID, now,
		); err != nil {
			return fmt.Errorf("insert path cache: %w", err)
		}
	}
	return tx.Commit()
}
