// Package metrics provides metrics middleware for generative backends.
package metrics

import (
	"time"
)

// Recorder abstracts metrics recording so middleware can be tested without
// a live Prometheus registry.
type Recorder interface {
	// ObserveRequest records a completed backend request.
	ObserveRequest(model string, promptTokens, completionTokens int, success bool, errorType string, duration time.Duration)

	// IncThrottle increments the throttle counter for rate limiting events.
	IncThrottle(model, reason string)

	// ObserveCooldownWait records time spent blocked on backend cooldowns.
	ObserveCooldownWait(model string, duration time.Duration)
}

// NoopRecorder discards all observations.
type NoopRecorder struct{}

func (NoopRecorder) ObserveRequest(string, int, int, bool, string, time.Duration) {}
func (NoopRecorder) IncThrottle(string, string)                                   {}
func (NoopRecorder) ObserveCooldownWait(string, time.Duration)                    {}
