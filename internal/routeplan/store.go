// Package routeplan plans multi-day visit routes over a branch registry:
// SQLite-backed storage, a travel-cost matrix, and a daily-budget planner.
package routeplan

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Branch is one visitable site. Exactly one branch is the headquarters;
// every planned day starts and ends there.
type Branch struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Visited bool    `json:"visited"`
	IsHQ    bool    `json:"is_hq"`
}

// Store persists branches in a SQLite database.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS branches (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	address TEXT,
	lat REAL NOT NULL,
	lng REAL NOT NULL,
	visited INTEGER DEFAULT 0,
	is_hq INTEGER DEFAULT 0
)`

// OpenStore opens (creating if needed) the branch database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open branch db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init branch schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Add inserts a branch and returns its id.
func (s *Store) Add(ctx context.Context, b Branch) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO branches (name, address, lat, lng, visited, is_hq) VALUES (?, ?, ?, ?, ?, ?)`,
		b.Name, b.Address, b.Lat, b.Lng, b.Visited, b.IsHQ)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Headquarters returns the HQ branch, or an error if none is registered.
func (s *Store) Headquarters(ctx context.Context) (Branch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, address, lat, lng, visited, is_hq FROM branches WHERE is_hq = 1 LIMIT 1`)
	var b Branch
	if err := scanBranch(row, &b); err != nil {
		if err == sql.ErrNoRows {
			return Branch{}, fmt.Errorf("no headquarters registered")
		}
		return Branch{}, err
	}
	return b, nil
}

// Unvisited lists branches still to be visited, HQ excluded.
func (s *Store) Unvisited(ctx context.Context) ([]Branch, error) {
	return s.query(ctx,
		`SELECT id, name, address, lat, lng, visited, is_hq FROM branches WHERE visited = 0 AND is_hq = 0 ORDER BY id`)
}

// All lists every branch including visited ones and the HQ.
func (s *Store) All(ctx context.Context) ([]Branch, error) {
	return s.query(ctx,
		`SELECT id, name, address, lat, lng, visited, is_hq FROM branches ORDER BY id`)
}

// MarkVisited flags the given branches as visited.
func (s *Store) MarkVisited(ctx context.Context, ids ...int64) error {
	stmt, err := s.db.PrepareContext(ctx, `UPDATE branches SET visited = 1 WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// ResetVisits clears the visited flag on all branches.
func (s *Store) ResetVisits(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `UPDATE branches SET visited = 0`)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBranch(r rowScanner, b *Branch) error {
	return r.Scan(&b.ID, &b.Name, &b.Address, &b.Lat, &b.Lng, &b.Visited, &b.IsHQ)
}

func (s *Store) query(ctx context.Context, q string) ([]Branch, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Branch
	for rows.Next() {
		var b Branch
		if err := scanBranch(rows, &b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
