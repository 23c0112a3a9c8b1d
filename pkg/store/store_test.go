package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndGetRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	started := time.Now().Add(-time.Minute)
	run := Run{
		ID:         "run-1",
		Workflow:   "full",
		Success:    true,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "full", got.Workflow)
	assert.True(t, got.Success)

	_, err = s.GetRun(ctx, "no-such-run")
	assert.Error(t, err)
}

func TestSaveAndListArtifacts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRun(ctx, Run{
		ID: "run-1", Workflow: "full",
		StartedAt: time.Now(), FinishedAt: time.Now(),
	}))

	base := time.Now()
	require.NoError(t, s.SaveArtifact(ctx, Artifact{
		RunID: "run-1", TaskID: "script", Status: StatusSucceeded,
		Payload:   map[string]any{"script": "hello world"},
		CreatedAt: base,
	}))
	require.NoError(t, s.SaveArtifact(ctx, Artifact{
		RunID: "run-1", TaskID: "voice", Status: StatusFailedSoft,
		Payload: map[string]any{"error": "no credential"}, Reason: "no credential",
		CreatedAt: base.Add(time.Second),
	}))

	artifacts, err := s.ListArtifacts(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	assert.Equal(t, "script", artifacts[0].TaskID)
	assert.Equal(t, "hello world", artifacts[0].Payload["script"])
	assert.NotEmpty(t, artifacts[0].ID, "missing id gets a generated uuid")
	assert.Equal(t, StatusFailedSoft, artifacts[1].Status)

	got, err := s.GetArtifact(ctx, "run-1", "voice")
	require.NoError(t, err)
	assert.Equal(t, "no credential", got.Reason)

	_, err = s.GetArtifact(ctx, "run-1", "video")
	assert.Error(t, err)
}

func TestDuplicateTaskInRunRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRun(ctx, Run{
		ID: "run-1", Workflow: "full",
		StartedAt: time.Now(), FinishedAt: time.Now(),
	}))
	require.NoError(t, s.SaveArtifact(ctx, Artifact{
		RunID: "run-1", TaskID: "script", Status: StatusSucceeded,
		Payload: map[string]any{},
	}))

	err := s.SaveArtifact(ctx, Artifact{
		RunID: "run-1", TaskID: "script", Status: StatusSucceeded,
		Payload: map[string]any{},
	})
	assert.Error(t, err)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, s.SaveRun(ctx, Run{
			ID: id, Workflow: "full", Success: true,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i+1) * time.Minute),
		}))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "mid", runs[1].ID)
}
