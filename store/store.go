// Package store archives solver runs in a sqlite database, keyed by
// instance and solver so sweeps can resume and compare results.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const tableRuns = "runs"

// Run is one solver execution on one instance. Energy includes the
// Ising offset, so on feasible runs it equals the tour length.
type Run struct {
	Cities  int
	Seed    int64
	Solver  string
	Penalty float64

	Energy   float64
	Feasible bool
	Length   float64
	Tour     []int

	CreatedAt time.Time
}

type Store struct {
	Path string

	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	if err := prepareDB(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "")
	}

	return &Store{Path: dbPath, db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func prepareDB(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		cities INTEGER,
		seed INTEGER,
		solver TEXT,
		penalty REAL,
		energy REAL,
		feasible INTEGER,
		length REAL,
		tour TEXT,
		created_at TEXT,
		PRIMARY KEY (cities, seed, solver)) STRICT`, tableRuns)
	if _, err := db.ExecContext(ctx, sqlStr); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, r Run) error {
	sqlStr := fmt.Sprintf(`INSERT OR REPLACE INTO %s
		(cities, seed, solver, penalty, energy, feasible, length, tour, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, tableRuns)
	feasible := 0
	if r.Feasible {
		feasible = 1
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	// Infeasible runs have no tour length.
	length := sql.NullFloat64{Float64: r.Length, Valid: r.Feasible}
	args := []any{r.Cities, r.Seed, r.Solver, r.Penalty, r.Energy, feasible, length, formatTour(r.Tour), createdAt.UTC().Format(time.RFC3339)}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return errors.Wrap(err, fmt.Sprintf("%s %#v", sqlStr, args))
	}
	return nil
}

// Has reports whether a run for this instance and solver is already
// archived.
func (s *Store) Has(ctx context.Context, cities int, seed int64, solver string) (bool, error) {
	sqlStr := fmt.Sprintf(`SELECT count(1) FROM %s WHERE cities=? AND seed=? AND solver=?`, tableRuns)
	var n int
	if err := s.db.QueryRowContext(ctx, sqlStr, cities, seed, solver).Scan(&n); err != nil {
		return false, errors.Wrap(err, "")
	}
	return n > 0, nil
}

func (s *Store) List(ctx context.Context) ([]Run, error) {
	sqlStr := fmt.Sprintf(`SELECT cities, seed, solver, penalty, energy, feasible, length, tour, created_at
		FROM %s ORDER BY cities, seed, solver`, tableRuns)
	rows, err := s.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var r Run
		var feasible int
		var length sql.NullFloat64
		var tour, createdAt string
		if err := rows.Scan(&r.Cities, &r.Seed, &r.Solver, &r.Penalty, &r.Energy, &feasible, &length, &tour, &createdAt); err != nil {
			return nil, errors.Wrap(err, "")
		}
		r.Feasible = feasible == 1
		if length.Valid {
			r.Length = length.Float64
		} else {
			r.Length = math.NaN()
		}
		r.Tour, err = parseTour(tour)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%#v", tour))
		}
		r.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%#v", createdAt))
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return runs, nil
}

func formatTour(tour []int) string {
	ss := make([]string, 0, len(tour))
	for _, city := range tour {
		ss = append(ss, strconv.Itoa(city))
	}
	return strings.Join(ss, ",")
}

func parseTour(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	tour := make([]int, 0, len(parts))
	for _, p := range parts {
		city, err := strconv.Atoi(p)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		tour = append(tour, city)
	}
	return tour, nil
}
