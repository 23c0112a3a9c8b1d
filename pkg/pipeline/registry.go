package pipeline

import (
	"fmt"
	"sort"

	"github.com/BABTUNA/marky-sub000/pkg/logx"
)

// Registry holds the static workflow definitions and the task
// implementations registered against them. Workflow lists are immutable
// after construction; task registration happens once at startup.
type Registry struct {
	workflows   map[string][]string
	tasks       map[string]Task
	defaultName string
	logger      *logx.Logger
}

// NewRegistry creates a registry from workflow definitions. Each workflow must
// be a duplicate-free task-id list, and defaultName must name one of the
// workflows; Resolve falls back to it for unknown names.
func NewRegistry(workflows map[string][]string, defaultName string) (*Registry, error) {
	if len(workflows) == 0 {
		return nil, fmt.Errorf("at least one workflow is required")
	}
	if _, ok := workflows[defaultName]; !ok {
		return nil, fmt.Errorf("default workflow %q is not defined", defaultName)
	}

	copied := make(map[string][]string, len(workflows))
	for name, ids := range workflows {
		if len(ids) == 0 {
			return nil, fmt.Errorf("workflow %q has no task ids", name)
		}
		seen := make(map[string]bool, len(ids))
		list := make([]string, 0, len(ids))
		for _, id := range ids {
			if seen[id] {
				return nil, fmt.Errorf("workflow %q lists task %q more than once", name, id)
			}
			seen[id] = true
			list = append(list, id)
		}
		copied[name] = list
	}

	return &Registry{
		workflows:   copied,
		tasks:       make(map[string]Task),
		defaultName: defaultName,
		logger:      logx.NewLogger("registry"),
	}, nil
}

// Resolve returns the ordered task ids for a workflow name. Unknown names
// fall back to the default workflow rather than erroring.
func (r *Registry) Resolve(name string) []string {
	ids, ok := r.workflows[name]
	if !ok {
		r.logger.Warn("unknown workflow %q, falling back to default %q", name, r.defaultName)
		ids = r.workflows[r.defaultName]
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Register adds a task implementation. Registering the same id twice is a
// configuration error.
func (r *Registry) Register(task Task) error {
	id := task.ID()
	if id == "" {
		return fmt.Errorf("task id cannot be empty")
	}
	if _, exists := r.tasks[id]; exists {
		return fmt.Errorf("task %q is already registered", id)
	}
	r.tasks[id] = task
	return nil
}

// MustRegister adds a task implementation, panicking on configuration
// errors. Intended for startup wiring.
func (r *Registry) MustRegister(task Task) {
	if err := r.Register(task); err != nil {
		panic(err)
	}
}

// Task returns the registered implementation for a task id.
func (r *Registry) Task(id string) (Task, bool) {
	t, ok := r.tasks[id]
	return t, ok
}

// Workflows returns the defined workflow names, sorted.
func (r *Registry) Workflows() []string {
	names := make([]string, 0, len(r.workflows))
	for name := range r.workflows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultWorkflow returns the fallback workflow name.
func (r *Registry) DefaultWorkflow() string {
	return r.defaultName
}
