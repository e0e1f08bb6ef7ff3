// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history persists completed conversion batches in a SQLite
// database so past runs and their per-file outcomes can be listed later.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/mdconvert/pkg/types"
)

const dbFile = "history.db"

// ErrNotFound is returned when a batch ID does not exist.
var ErrNotFound = errors.New("batch not found")

// Batch is one recorded conversion batch.
type Batch struct {
	ID         int64     `json:"id" yaml:"id"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	OutputDir  string    `json:"output_dir" yaml:"output_dir"`
	Backend    string    `json:"backend" yaml:"backend"`
	Successful int       `json:"successful" yaml:"successful"`
	Failed     int       `json:"failed" yaml:"failed"`
	Total      int       `json:"total" yaml:"total"`
	Results    []Result  `json:"results,omitempty" yaml:"results,omitempty"`
}

// Result is the recorded outcome of one file in a batch.
type Result struct {
	Seq     int    `json:"seq" yaml:"seq"`
	Input   string `json:"input" yaml:"input"`
	Output  string `json:"output" yaml:"output"`
	Success bool   `json:"success" yaml:"success"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Store manages the history SQLite database.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the default database location under the user cache
// directory, falling back to the working directory.
func DefaultPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".mdconvert", dbFile)
	}
	return filepath.Join(dir, "mdconvert", dbFile)
}

// Open opens or creates the history database at path and creates the
// schema if it does not exist.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS batches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			output_dir TEXT NOT NULL,
			backend TEXT,
			successful INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			total INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			batch_id INTEGER NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			input TEXT NOT NULL,
			output TEXT,
			success INTEGER NOT NULL,
			error TEXT,
			PRIMARY KEY (batch_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_batches_started_at ON batches(started_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores a completed batch and its results in one transaction and
// returns the new batch ID.
func (s *Store) Record(ctx context.Context, b Batch, summary types.BatchSummary) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO batches (started_at, finished_at, output_dir, backend, successful, failed, total)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.StartedAt.UTC().Format(time.RFC3339Nano), b.FinishedAt.UTC().Format(time.RFC3339Nano),
		b.OutputDir, b.Backend, summary.Successful, summary.Failed, summary.Total,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting batch: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading batch id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (batch_id, seq, input, output, success, error) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range summary.Results {
		if _, err := stmt.ExecContext(ctx, id, i+1, r.Input, r.Output, r.Success, r.Err); err != nil {
			return 0, fmt.Errorf("inserting result %s: %w", r.Input, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing batch: %w", err)
	}
	return id, nil
}

// List returns the most recent batches, newest first, without results.
// A limit of zero or less returns all batches.
func (s *Store) List(ctx context.Context, limit int) ([]Batch, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, output_dir, COALESCE(backend, ''), successful, failed, total
		 FROM batches ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying batches: %w", err)
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Get returns one batch with its results in processing order.
func (s *Store) Get(ctx context.Context, id int64) (Batch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, output_dir, COALESCE(backend, ''), successful, failed, total
		 FROM batches WHERE id = ?`, id)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Batch{}, fmt.Errorf("batch %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Batch{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, input, COALESCE(output, ''), success, COALESCE(error, '')
		 FROM results WHERE batch_id = ? ORDER BY seq`, id)
	if err != nil {
		return Batch{}, fmt.Errorf("querying results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Seq, &r.Input, &r.Output, &r.Success, &r.Error); err != nil {
			return Batch{}, fmt.Errorf("scanning result: %w", err)
		}
		b.Results = append(b.Results, r)
	}
	return b, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(sc scanner) (Batch, error) {
	var (
		b                 Batch
		started, finished string
	)
	if err := sc.Scan(&b.ID, &started, &finished, &b.OutputDir, &b.Backend, &b.Successful, &b.Failed, &b.Total); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Batch{}, err
		}
		return Batch{}, fmt.Errorf("scanning batch: %w", err)
	}
	b.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	b.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
	return b, nil
}
