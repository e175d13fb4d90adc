// Package store keeps a sqlite history of training runs, their epochs and
// the samples generated from them.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"charlm/pkg/train"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at  TEXT NOT NULL,
	model_dir   TEXT NOT NULL,
	corpus_hash TEXT NOT NULL,
	cell        TEXT NOT NULL,
	config      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS epochs (
	run_id     INTEGER NOT NULL REFERENCES runs(id),
	epoch      INTEGER NOT NULL,
	train_loss REAL NOT NULL,
	val_loss   REAL NOT NULL,
	perplexity REAL NOT NULL,
	PRIMARY KEY (run_id, epoch)
);
CREATE TABLE IF NOT EXISTS samples (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	model_dir   TEXT NOT NULL,
	seed        TEXT NOT NULL,
	temperature REAL NOT NULL,
	greedy      INTEGER NOT NULL,
	output      TEXT NOT NULL,
	created_at  TEXT NOT NULL
);
`

// Store is the sqlite run history.
type Store struct {
	db *sql.DB
}

type Run struct {
	ID         int64
	StartedAt  time.Time
	ModelDir   string
	CorpusHash string
	Config     train.Config
}

type Sample struct {
	ModelDir    string
	Seed        string
	Temperature float64
	Greedy      bool
	Output      string
}

// Open creates or opens the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema to %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun records a new training run and returns its id.
func (s *Store) CreateRun(ctx context.Context, r Run) (int64, error) {
	cfg, err := json.Marshal(r.Config)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (started_at, model_dir, corpus_hash, cell, config) VALUES (?, ?, ?, ?, ?)`,
		r.StartedAt.UTC().Format(time.RFC3339Nano), r.ModelDir, r.CorpusHash, r.Config.Cell, string(cfg))
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) RecordEpoch(ctx context.Context, runID int64, em train.EpochMetrics) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO epochs (run_id, epoch, train_loss, val_loss, perplexity) VALUES (?, ?, ?, ?, ?)`,
		runID, em.Epoch, em.TrainLoss, em.ValLoss, em.Perplexity)
	if err != nil {
		return fmt.Errorf("recording epoch %d of run %d: %w", em.Epoch, runID, err)
	}
	return nil
}

func (s *Store) RecordSample(ctx context.Context, smp Sample) error {
	greedy := 0
	if smp.Greedy {
		greedy = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO samples (model_dir, seed, temperature, greedy, output, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		smp.ModelDir, smp.Seed, smp.Temperature, greedy, smp.Output, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("recording sample: %w", err)
	}
	return nil
}

// ListRuns returns every run, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, model_dir, corpus_hash, config FROM runs ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r            Run
			started, cfg string
		)
		if err := rows.Scan(&r.ID, &started, &r.ModelDir, &r.CorpusHash, &cfg); err != nil {
			return nil, err
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("run %d: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(cfg), &r.Config); err != nil {
			return nil, fmt.Errorf("run %d config: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Epochs returns the recorded epochs of a run in order.
func (s *Store) Epochs(ctx context.Context, runID int64) ([]train.EpochMetrics, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT epoch, train_loss, val_loss, perplexity FROM epochs WHERE run_id = ? ORDER BY epoch`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []train.EpochMetrics
	for rows.Next() {
		var em train.EpochMetrics
		if err := rows.Scan(&em.Epoch, &em.TrainLoss, &em.ValLoss, &em.Perplexity); err != nil {
			return nil, err
		}
		out = append(out, em)
	}
	return out, rows.Err()
}

// Samples returns the samples generated from modelDir, oldest first.
func (s *Store) Samples(ctx context.Context, modelDir string) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT model_dir, seed, temperature, greedy, output FROM samples WHERE model_dir = ? ORDER BY id`, modelDir)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var (
			smp    Sample
			greedy int
		)
		if err := rows.Scan(&smp.ModelDir, &smp.Seed, &smp.Temperature, &greedy, &smp.Output); err != nil {
			return nil, err
		}
		smp.Greedy = greedy != 0
		out = append(out, smp)
	}
	return out, rows.Err()
}
