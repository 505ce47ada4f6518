package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/park285/uci-puzzle-harness/internal/domain"
)

var ErrRunNotFound = errors.New("puzzle run not found")

// Repository keeps run summaries and per-puzzle rows in Postgres or SQLite.
// Queries use $N placeholders in order of appearance, which both accept.
type Repository struct {
	db     *sql.DB
	driver string
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS puzzle_runs (
		run_id         TEXT PRIMARY KEY,
		engine_path    TEXT NOT NULL,
		seed           BIGINT NOT NULL,
		min_popularity INTEGER NOT NULL,
		min_rating     INTEGER NOT NULL,
		requested      INTEGER NOT NULL,
		solved         INTEGER NOT NULL,
		total          INTEGER NOT NULL,
		started_at     TIMESTAMP NOT NULL,
		finished_at    TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS puzzle_results (
		run_id         TEXT NOT NULL REFERENCES puzzle_runs(run_id),
		seq            INTEGER NOT NULL,
		puzzle_id      TEXT NOT NULL,
		fen            TEXT NOT NULL,
		correct_moves  TEXT NOT NULL,
		engine_moves   TEXT NOT NULL,
		engine_correct BOOLEAN NOT NULL,
		final_state    TEXT NOT NULL,
		requests       INTEGER NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
}

// driverFor maps a DSN to a registered driver name and its data source.
func driverFor(dsn string) (string, string) {
	d := strings.TrimSpace(dsn)
	switch {
	case strings.HasPrefix(d, "postgres://"), strings.HasPrefix(d, "postgresql://"), strings.Contains(d, "host="):
		return "postgres", d
	case strings.HasPrefix(d, "sqlite://"):
		return "sqlite3", strings.TrimPrefix(d, "sqlite://")
	default:
		return "sqlite3", d
	}
}

func OpenRepository(ctx context.Context, dsn string) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database dsn required")
	}
	driver, source := driverFor(dsn)
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	r := &Repository{db: db, driver: driver}
	if err := r.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repository) Driver() string { return r.driver }

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Record stores the run and all of its results in one transaction.
func (r *Repository) Record(ctx context.Context, run domain.Run) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	const insertRun = `
		INSERT INTO puzzle_runs (
			run_id, engine_path, seed, min_popularity, min_rating,
			requested, solved, total, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := tx.ExecContext(ctx, insertRun,
		run.ID, run.EnginePath, run.Seed, run.MinPopularity, run.MinRating,
		run.Requested, run.Solved, run.Total, run.StartedAt.UTC(), run.FinishedAt.UTC(),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	const insertResult = `
		INSERT INTO puzzle_results (
			run_id, seq, puzzle_id, fen, correct_moves,
			engine_moves, engine_correct, final_state, requests
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	stmt, err := tx.PrepareContext(ctx, insertResult)
	if err != nil {
		return fmt.Errorf("prepare result insert: %w", err)
	}
	defer stmt.Close()

	for i, res := range run.Results {
		if _, err := stmt.ExecContext(ctx,
			run.ID, i, res.Puzzle.ID, res.Puzzle.FEN, res.Puzzle.MovesString(),
			res.EngineMovesString(), res.Success, res.State, res.Requests,
		); err != nil {
			return fmt.Errorf("insert result %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// RecentRuns returns summaries without results, newest first.
func (r *Repository) RecentRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		SELECT run_id, engine_path, seed, min_popularity, min_rating,
		       requested, solved, total, started_at, finished_at
		FROM puzzle_runs
		ORDER BY started_at DESC
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.Run, 0, limit)
	for rows.Next() {
		var run domain.Run
		if err := rows.Scan(
			&run.ID, &run.EnginePath, &run.Seed, &run.MinPopularity, &run.MinRating,
			&run.Requested, &run.Solved, &run.Total, &run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Results loads the per-puzzle rows of one run in play order.
func (r *Repository) Results(ctx context.Context, runID string) ([]domain.SessionResult, error) {
	const query = `
		SELECT puzzle_id, fen, correct_moves, engine_moves, engine_correct, final_state, requests
		FROM puzzle_results
		WHERE run_id = $1
		ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("select results: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionResult
	for rows.Next() {
		var (
			res           domain.SessionResult
			correct, seen string
		)
		if err := rows.Scan(&res.Puzzle.ID, &res.Puzzle.FEN, &correct, &seen, &res.Success, &res.State, &res.Requests); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		res.Puzzle.Moves = strings.Fields(correct)
		res.EngineMoves = strings.Fields(seen)
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, ErrRunNotFound
	}
	return out, nil
}
