package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RunMetrics records Prometheus metrics for workflow runs and task
// outcomes.
type RunMetrics struct {
	runsTotal    *prometheus.CounterVec
	tasksTotal   *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
}

// NewRunMetrics creates run metrics registered against reg. A nil
// registerer uses the default global registry.
func NewRunMetrics(reg prometheus.Registerer) *RunMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &RunMetrics{
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_runs_total",
				Help: "Total number of workflow runs by workflow and status",
			},
			[]string{"workflow", "status"},
		),
		tasksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_tasks_total",
				Help: "Total number of task executions by task and outcome",
			},
			[]string{"task", "outcome"},
		),
		taskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_task_duration_seconds",
				Help:    "Duration of task executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"task"},
		),
	}
}

// ObserveRun records one completed run.
func (m *RunMetrics) ObserveRun(workflow string, success bool) {
	status := "completed"
	if !success {
		status = "aborted"
	}
	m.runsTotal.WithLabelValues(workflow, status).Inc()
}

// ObserveTask records one task execution.
func (m *RunMetrics) ObserveTask(taskID, outcome string, duration time.Duration) {
	m.tasksTotal.WithLabelValues(taskID, outcome).Inc()
	if outcome != "skipped" {
		m.taskDuration.WithLabelValues(taskID).Observe(duration.Seconds())
	}
}
