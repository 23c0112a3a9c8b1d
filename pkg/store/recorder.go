package store

import (
	"context"
	"fmt"
	"time"

	"github.com/BABTUNA/marky-sub000/pkg/pipeline"
)

// SaveRunResult persists a completed workflow run: one run record plus one
// artifact per context entry.
func (s *Store) SaveRunResult(ctx context.Context, result *pipeline.RunResult, startedAt, finishedAt time.Time) error {
	run := Run{
		ID:         result.RunID,
		Workflow:   result.Workflow,
		Success:    result.Success,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
	if err := s.SaveRun(ctx, run); err != nil {
		return err
	}

	for _, taskID := range result.Context.TaskIDs() {
		res, _ := result.Context.Result(taskID)
		if err := s.SaveArtifact(ctx, artifactFor(result.RunID, taskID, res)); err != nil {
			return fmt.Errorf("run %s: %w", result.RunID, err)
		}
	}

	s.logger.Info("persisted run %s (%d artifacts)", result.RunID, result.Context.Len())
	return nil
}

func artifactFor(runID, taskID string, res pipeline.Result) Artifact {
	a := Artifact{
		RunID:   runID,
		TaskID:  taskID,
		Payload: res.AsMap(),
	}
	switch {
	case res.Failed():
		a.Status = StatusFailedSoft
		a.Reason = res.Reason()
	case res.GetString(pipeline.SkipReasonKey) != "":
		a.Status = StatusSkipped
		a.Reason = res.GetString(pipeline.SkipReasonKey)
	default:
		a.Status = StatusSucceeded
	}
	return a
}
