package pipeline

// ExecutionContext accumulates per-task results over one run: exactly one
// entry per executed task id, written by the executor immediately after the
// task completes. Runs are single-threaded, so no locking is needed within
// a run; the context is discarded when the run returns.
type ExecutionContext struct {
	entries map[string]Result
	order   []string
}

func newExecutionContext() *ExecutionContext {
	return &ExecutionContext{
		entries: make(map[string]Result),
	}
}

// set records a task's result. The executor writes each task id at most
// once per run.
func (ec *ExecutionContext) set(taskID string, result Result) {
	if _, exists := ec.entries[taskID]; !exists {
		ec.order = append(ec.order, taskID)
	}
	ec.entries[taskID] = result
}

// Result returns the recorded result for a task id.
func (ec *ExecutionContext) Result(taskID string) (Result, bool) {
	r, ok := ec.entries[taskID]
	return r, ok
}

// Has reports whether a task id has a recorded entry.
func (ec *ExecutionContext) Has(taskID string) bool {
	_, ok := ec.entries[taskID]
	return ok
}

// TaskIDs returns the recorded task ids in write order.
func (ec *ExecutionContext) TaskIDs() []string {
	out := make([]string, len(ec.order))
	copy(out, ec.order)
	return out
}

// Len returns the number of recorded entries.
func (ec *ExecutionContext) Len() int {
	return len(ec.entries)
}

// AsMap renders the full context as task id -> open result mapping, the
// shape consumed by formatting layers.
func (ec *ExecutionContext) AsMap() map[string]map[string]any {
	out := make(map[string]map[string]any, len(ec.entries))
	for id, r := range ec.entries {
		out[id] = r.AsMap()
	}
	return out
}
