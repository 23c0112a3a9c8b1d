package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/BABTUNA/marky-sub000/pkg/logx"
)

// ProgressFunc receives best-effort progress notifications after
// pre-registered task ids complete. Failures inside the sink are swallowed,
// never propagated into the run.
type ProgressFunc func(taskID, message string)

// PruneRule removes a task from a resolved workflow when a pre-supplied
// substitute artifact already exists at ArtifactParam's path. The pruned
// task's context entry is pre-seeded with a skip sentinel so downstream
// tasks still find an entry under its id.
type PruneRule struct {
	// TaskID is the task made redundant by the pre-supplied artifact.
	TaskID string
	// ArtifactParam names the run parameter holding the substitute
	// artifact path. An empty or missing parameter never prunes.
	ArtifactParam string
}

// RunResult is the outcome of one workflow run. Success stays true even
// when individual tasks failed softly; it is false only for executor-level
// faults outside the per-task loop.
type RunResult struct {
	Context  *ExecutionContext
	RunID    string
	Workflow string
	Success  bool
}

// Results renders the run as task id -> open result mapping. Callers
// inspect each entry for an "error" key to determine what degraded.
func (rr *RunResult) Results() map[string]map[string]any {
	if rr.Context == nil {
		return map[string]map[string]any{}
	}
	return rr.Context.AsMap()
}

// Executor turns a workflow name plus run parameters into a completed run.
// Tasks run strictly in list order; a task's crash or soft failure is
// recorded in the context and never aborts the run.
type Executor struct {
	registry         *Registry
	pruneRules       []PruneRule
	progressMessages map[string]string
	metrics          *RunMetrics
	logger           *logx.Logger

	// fileExists is the runtime pruning signal, injectable in tests.
	fileExists func(path string) bool
}

// NewExecutor creates an executor over a registry. progressMessages maps
// task ids to the notification sent after that task completes; metrics may
// be nil.
func NewExecutor(registry *Registry, pruneRules []PruneRule, progressMessages map[string]string, metrics *RunMetrics) (*Executor, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	return &Executor{
		registry:         registry,
		pruneRules:       pruneRules,
		progressMessages: progressMessages,
		metrics:          metrics,
		logger:           logx.NewLogger("executor"),
		fileExists: func(path string) bool {
			info, err := os.Stat(path)
			return err == nil && !info.IsDir()
		},
	}, nil
}

// Run is the sole entry point: resolve the named workflow, prune it against
// the runtime signal, execute its tasks in order against a shared context,
// and return the full context with a run-level success flag.
//
// The executor imposes no per-task timeout; tasks are expected to carry
// their own deadlines on external calls, so a hung task stalls its run.
// Mid-run cancellation is not supported.
func (e *Executor) Run(ctx context.Context, workflowName string, params Params, progress ProgressFunc) (*RunResult, error) {
	runID := uuid.NewString()
	result := &RunResult{RunID: runID, Workflow: workflowName}

	taskIDs := e.registry.Resolve(workflowName)
	if len(taskIDs) == 0 {
		// Registry validation makes this unreachable short of programmer
		// error; treated as an executor-level fault.
		e.recordRun(workflowName, false)
		return result, fmt.Errorf("workflow %q resolved to an empty task list", workflowName)
	}

	taskIDs, seeds := e.prune(taskIDs, params)

	ec := newExecutionContext()
	for id, sentinel := range seeds {
		ec.set(id, sentinel)
	}
	result.Context = ec

	e.logger.Info("run %s: workflow=%s tasks=%v", runID, workflowName, taskIDs)

	for _, taskID := range taskIDs {
		task, ok := e.registry.Task(taskID)
		if !ok {
			// Deliberately a skip, not a failure: workflow definitions may
			// reference tasks that this deployment does not register.
			e.logger.Warn("run %s: no implementation registered for task %q, skipping", runID, taskID)
			e.recordTask(taskID, "skipped", 0)
			continue
		}

		e.logger.Debug("run %s: task %s starting", runID, taskID)
		start := time.Now()
		res := e.invoke(ctx, task, params, ec)
		duration := time.Since(start)

		ec.set(taskID, res)

		outcome := "succeeded"
		if res.Failed() {
			outcome = "failed_soft"
			e.logger.Warn("run %s: task %s degraded: %s", runID, taskID, res.Reason())
		} else {
			e.logger.Debug("run %s: task %s completed in %dms", runID, taskID, duration.Milliseconds())
		}
		e.recordTask(taskID, outcome, duration)

		if msg, ok := e.progressMessages[taskID]; ok && progress != nil {
			e.notify(progress, taskID, msg)
		}
	}

	result.Success = true
	e.recordRun(workflowName, true)
	return result, nil
}

// invoke runs one task, converting returned errors and panics into soft
// failures so one task's crash never aborts the run.
func (e *Executor) invoke(ctx context.Context, task Task, params Params, ec *ExecutionContext) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = SoftFailuref("task panicked: %v", r)
		}
	}()

	out, err := task.Invoke(ctx, params, ec)
	if err != nil {
		return SoftFailure(err.Error())
	}
	return out
}

// prune drops task ids whose substitute artifact is already available and
// returns skip sentinels to pre-seed their context entries. This is the
// only place workflow shape depends on external state.
func (e *Executor) prune(taskIDs []string, params Params) ([]string, map[string]Result) {
	seeds := make(map[string]Result)

	for _, rule := range e.pruneRules {
		path := params.String(rule.ArtifactParam, "")
		if path == "" || !e.fileExists(path) {
			continue
		}

		kept := taskIDs[:0]
		for _, id := range taskIDs {
			if id == rule.TaskID {
				seeds[id] = Skipped(fmt.Sprintf("pre-supplied artifact: %s", path))
				e.logger.Info("pruning task %q: substitute artifact present at %s", id, path)
				continue
			}
			kept = append(kept, id)
		}
		taskIDs = kept
	}

	return taskIDs, seeds
}

// notify delivers a progress message, swallowing any panic from the sink.
func (e *Executor) notify(progress ProgressFunc, taskID, message string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("progress sink failed for task %s: %v", taskID, r)
		}
	}()
	progress(taskID, message)
}

func (e *Executor) recordTask(taskID, outcome string, duration time.Duration) {
	if e.metrics != nil {
		e.metrics.ObserveTask(taskID, outcome, duration)
	}
}

func (e *Executor) recordRun(workflow string, success bool) {
	if e.metrics != nil {
		e.metrics.ObserveRun(workflow, success)
	}
}
