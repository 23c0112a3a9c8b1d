package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const filesSchema = `
CREATE TABLE IF NOT EXISTS files (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	task_id    TEXT NOT NULL,
	name       TEXT NOT NULL,
	path       TEXT NOT NULL,
	size       INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_files_run ON files(run_id);
`

// File is an indexed media artifact: bytes on disk plus metadata in SQLite.
type File struct {
	CreatedAt time.Time
	ID        string
	RunID     string
	TaskID    string
	Name      string
	Path      string
	Size      int64
}

// Put writes data under the store's root directory and indexes it. The
// returned File carries the generated id and the absolute path.
func (s *Store) Put(ctx context.Context, runID, taskID, name string, data []byte) (*File, error) {
	id := uuid.NewString()
	dir := filepath.Join(s.root, runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	path := filepath.Join(dir, id+"-"+name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write artifact %s: %w", name, err)
	}

	f := &File{
		ID:        id,
		RunID:     runID,
		TaskID:    taskID,
		Name:      name,
		Path:      path,
		Size:      int64(len(data)),
		CreatedAt: time.Now(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (id, run_id, task_id, name, path, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.RunID, f.TaskID, f.Name, f.Path, f.Size, f.CreatedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to index artifact %s: %w", name, err)
	}

	s.logger.Debug("stored artifact %s (%d bytes) for task %s", name, f.Size, taskID)
	return f, nil
}

// Get returns an indexed artifact's metadata and bytes by id.
func (s *Store) Get(ctx context.Context, id string) (*File, []byte, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, run_id, task_id, name, path, size, created_at
		FROM files WHERE id = ?`, id)

	f, err := scanFile(row)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load artifact %s: %w", id, err)
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read artifact %s: %w", id, err)
	}
	return f, data, nil
}

// ListByRun returns metadata for all artifacts stored during a run.
func (s *Store) ListByRun(ctx context.Context, runID string) ([]File, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, task_id, name, path, size, created_at
		FROM files WHERE run_id = ? ORDER BY created_at, name`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts for run %s: %w", runID, err)
	}
	defer func() { _ = rows.Close() }()

	var files []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate artifacts: %w", err)
	}
	return files, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*File, error) {
	var f File
	if err := row.Scan(&f.ID, &f.RunID, &f.TaskID, &f.Name, &f.Path, &f.Size, &f.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan file record: %w", err)
	}
	return &f, nil
}
