// Package store provides SQLite-backed persistence for workflow runs and
// the artifacts their tasks produce.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/BABTUNA/marky-sub000/pkg/logx"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	workflow    TEXT NOT NULL,
	success     INTEGER NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS artifacts (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	task_id    TEXT NOT NULL,
	status     TEXT NOT NULL,
	payload    TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	UNIQUE(run_id, task_id)
);

CREATE INDEX IF NOT EXISTS idx_artifacts_run ON artifacts(run_id);
`

// Artifact statuses.
const (
	StatusSucceeded  = "succeeded"
	StatusFailedSoft = "failed_soft"
	StatusSkipped    = "skipped"
)

// Run is one persisted workflow run.
type Run struct {
	StartedAt  time.Time
	FinishedAt time.Time
	ID         string
	Workflow   string
	Success    bool
}

// Artifact is one persisted task result within a run.
type Artifact struct {
	CreatedAt time.Time
	ID        string
	RunID     string
	TaskID    string
	Status    string
	Reason    string
	Payload   map[string]any
}

// Store wraps the SQLite database holding runs and artifacts, plus the root
// directory where media artifact bytes live.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
	root   string
}

// Open opens (or creates) the database at path, applies the schema, and
// configures the connection for SQLite's single-writer model. Artifact
// bytes are stored under an artifacts/ directory next to the database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000", path,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema + filesSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// SQLite supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	logger := logx.NewLogger("store")
	logger.Debug("database ready: %s", path)

	return &Store{
		db:     db,
		logger: logger,
		root:   filepath.Join(filepath.Dir(path), "artifacts"),
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// SaveRun persists a run record.
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, workflow, success, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Workflow, run.Success, run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// SaveArtifact persists one task result. An empty ID gets a fresh UUID.
func (s *Store) SaveArtifact(ctx context.Context, a Artifact) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, run_id, task_id, status, payload, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.RunID, a.TaskID, a.Status, string(payload), a.Reason, a.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save artifact for task %s in run %s: %w", a.TaskID, a.RunID, err)
	}
	return nil
}

// GetRun returns a run by id.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workflow, success, started_at, finished_at
		FROM runs WHERE id = ?`, runID)

	var run Run
	if err := row.Scan(&run.ID, &run.Workflow, &run.Success, &run.StartedAt, &run.FinishedAt); err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workflow, success, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Workflow, &run.Success, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// ListArtifacts returns all artifacts for a run in creation order.
func (s *Store) ListArtifacts(ctx context.Context, runID string) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, task_id, status, payload, reason, created_at
		FROM artifacts WHERE run_id = ? ORDER BY created_at, task_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts for run %s: %w", runID, err)
	}
	defer func() { _ = rows.Close() }()

	var artifacts []Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate artifacts: %w", err)
	}
	return artifacts, nil
}

// GetArtifact returns one task's artifact within a run.
func (s *Store) GetArtifact(ctx context.Context, runID, taskID string) (*Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, task_id, status, payload, reason, created_at
		FROM artifacts WHERE run_id = ? AND task_id = ?`, runID, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifact: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, fmt.Errorf("no artifact for task %s in run %s", taskID, runID)
	}
	a, err := scanArtifact(rows)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func scanArtifact(rows *sql.Rows) (Artifact, error) {
	var a Artifact
	var payload string
	if err := rows.Scan(&a.ID, &a.RunID, &a.TaskID, &a.Status, &payload, &a.Reason, &a.CreatedAt); err != nil {
		return Artifact{}, fmt.Errorf("failed to scan artifact: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &a.Payload); err != nil {
		return Artifact{}, fmt.Errorf("failed to parse artifact payload: %w", err)
	}
	return a, nil
}
