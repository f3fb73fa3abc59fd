package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps SQLite access for the dataset load history.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS load_runs (
            id TEXT PRIMARY KEY,
            triggered_by TEXT,
            source TEXT,
            status TEXT,
            buildings INTEGER,
            extinguishers INTEGER,
            skipped_rows INTEGER,
            attempts_json TEXT,
            started_at TIMESTAMP,
            finished_at TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS idx_load_runs_started ON load_runs(started_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// LoadRun is one dataset load as persisted.
type LoadRun struct {
	ID            string          `json:"id"`
	Trigger       string          `json:"trigger"`
	Source        string          `json:"source"`
	Status        string          `json:"status"`
	Buildings     int             `json:"buildings"`
	Extinguishers int             `json:"extinguishers"`
	SkippedRows   int             `json:"skipped_rows"`
	Attempts      json.RawMessage `json:"attempts"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
}

// RecordLoad inserts a load run.
func (s *Store) RecordLoad(ctx context.Context, r LoadRun) error {
	attempts := r.Attempts
	if len(attempts) == 0 {
		attempts = json.RawMessage("[]")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO load_runs(id, triggered_by, source, status, buildings, extinguishers, skipped_rows, attempts_json, started_at, finished_at)
        VALUES(?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.Trigger, r.Source, r.Status, r.Buildings, r.Extinguishers, r.SkippedRows, string(attempts), r.StartedAt, r.FinishedAt)
	return err
}

// ListLoads returns the most recent runs first.
func (s *Store) ListLoads(ctx context.Context, limit int) ([]LoadRun, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, triggered_by, source, status, buildings, extinguishers, skipped_rows, attempts_json, started_at, finished_at
        FROM load_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	runs := []LoadRun{}
	for rows.Next() {
		var r LoadRun
		var attempts sql.NullString
		if err := rows.Scan(&r.ID, &r.Trigger, &r.Source, &r.Status, &r.Buildings, &r.Extinguishers, &r.SkippedRows, &attempts, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		if attempts.Valid && attempts.String != "" {
			r.Attempts = json.RawMessage(attempts.String)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Health returns err if DB not reachable.
func (s *Store) Health(ctx context.Context) error {
	row := s.db.QueryRowContext(ctx, `SELECT 1`)
	var v int
	if err := row.Scan(&v); err != nil {
		return fmt.Errorf("db health: %w", err)
	}
	return nil
}
