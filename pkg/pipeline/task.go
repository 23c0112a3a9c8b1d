// Package pipeline provides the task-orchestration substrate: a workflow
// registry, a sequential executor with per-task failure containment, and the
// uniform task contract every content agent implements.
package pipeline

import (
	"context"
	"fmt"
)

// Params are the caller-supplied inputs for one run. They are shared by all
// tasks and must be treated as immutable for the whole run.
type Params map[string]any

// String returns the string value for key, or def when absent or not a string.
func (p Params) String(key, def string) string {
	if v, ok := p[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Task is one unit of work in a workflow. Tasks read prior results from the
// execution context and report outcomes through the Result sum type: an
// expected, recoverable condition (missing credential, empty upstream
// result) must be a SoftFailure, not a returned error. Returned errors and
// panics are reserved for genuinely unexpected faults; the executor catches
// both and records them identically to a SoftFailure.
type Task interface {
	// ID returns the stable task identifier used in workflow definitions.
	ID() string

	// Invoke runs the task. The context must not be mutated; only the
	// executor writes entries.
	Invoke(ctx context.Context, params Params, ec *ExecutionContext) (Result, error)
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc struct {
	fn func(ctx context.Context, params Params, ec *ExecutionContext) (Result, error)
	id string
}

// NewTask creates a Task from a function.
func NewTask(id string, fn func(ctx context.Context, params Params, ec *ExecutionContext) (Result, error)) TaskFunc {
	return TaskFunc{id: id, fn: fn}
}

// ID returns the task identifier.
func (t TaskFunc) ID() string { return t.id }

// Invoke runs the wrapped function.
func (t TaskFunc) Invoke(ctx context.Context, params Params, ec *ExecutionContext) (Result, error) {
	return t.fn(ctx, params, ec)
}

// SkipReasonKey marks a sentinel result written by pruning in place of a
// task that was never invoked.
const SkipReasonKey = "skip_reason"

// errorKey is the conventional key soft failures render under in open
// result mappings.
const errorKey = "error"

// Result is the outcome of one task: either a success payload or a soft
// failure with a reason. Downstream code matches on the variant instead of
// probing a mapping for an "error" key.
type Result struct {
	payload map[string]any
	reason  string
	failed  bool
}

// Success creates a successful result with the given payload. A nil payload
// is treated as empty.
func Success(payload map[string]any) Result {
	return Result{payload: payload}
}

// SoftFailure creates an expected-failure result. The run continues; the
// reason is recorded under the "error" key in the open result mapping.
func SoftFailure(reason string) Result {
	return Result{reason: reason, failed: true}
}

// SoftFailuref creates a soft failure with a formatted reason.
func SoftFailuref(format string, args ...any) Result {
	return SoftFailure(fmt.Sprintf(format, args...))
}

// Skipped creates the sentinel success written when pruning removes a task.
func Skipped(reason string) Result {
	return Success(map[string]any{SkipReasonKey: reason})
}

// Failed reports whether this result is a soft failure.
func (r Result) Failed() bool { return r.failed }

// Payload returns a copy of the success payload, or nil for soft failures.
func (r Result) Payload() map[string]any {
	if r.failed {
		return nil
	}
	out := make(map[string]any, len(r.payload))
	for k, v := range r.payload {
		out[k] = v
	}
	return out
}

// Reason returns the soft-failure reason, or "" for successes.
func (r Result) Reason() string { return r.reason }

// Get returns a payload value by key. Soft failures expose only the
// "error" key.
func (r Result) Get(key string) (any, bool) {
	if r.failed {
		if key == errorKey {
			return r.reason, true
		}
		return nil, false
	}
	v, ok := r.payload[key]
	return v, ok
}

// GetString returns a payload string value by key, or "" when absent.
func (r Result) GetString(key string) string {
	if v, ok := r.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// AsMap renders the result as an open mapping: soft failures carry the
// reason under "error", successes a copy of their payload.
func (r Result) AsMap() map[string]any {
	if r.failed {
		return map[string]any{errorKey: r.reason}
	}
	out := make(map[string]any, len(r.payload))
	for k, v := range r.payload {
		out[k] = v
	}
	return out
}
