package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BABTUNA/marky-sub000/pkg/llmerrors"
	"github.com/BABTUNA/marky-sub000/pkg/logx"
)

// Candidate is one interchangeable backend with its output capacity and
// preference rank. Lower rank is tried first.
type Candidate struct {
	Backend         Backend
	MaxOutputTokens int
	Rank            int
}

// FailoverConfig defines retry and cooldown behavior for the failover client.
type FailoverConfig struct {
	// MaxAttempts bounds retries across candidates for one logical request.
	MaxAttempts int
	// DefaultCooldown is applied when a throttling backend supplies no
	// parsable retry hint.
	DefaultCooldown time.Duration
}

// DefaultFailoverConfig provides reasonable defaults for failover behavior.
//
//nolint:gochecknoglobals // Sensible default config pattern
var DefaultFailoverConfig = FailoverConfig{
	MaxAttempts:     3,
	DefaultCooldown: 60 * time.Second,
}

// ThrottleRecorder receives throttle and cooldown-wait observations.
// Implemented by the Prometheus recorder; nil disables recording.
type ThrottleRecorder interface {
	IncThrottle(model, reason string)
	ObserveCooldownWait(model string, duration time.Duration)
}

// FailoverClient completes a text-generation request against one of several
// candidate backends, routing around throttled ones. The cooldown table is
// client-instance state shared by every run using this client, so all
// mutations are mutex-guarded.
type FailoverClient struct {
	candidates []Candidate
	config     FailoverConfig
	recorder   ThrottleRecorder
	logger     *logx.Logger

	mu        sync.Mutex
	cooldowns map[int]time.Time // index into candidates -> cooldown expiry

	// Injectable clock, overridden in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// The failover client is itself a Backend, so tasks depend on one contract
// whether they talk to a single adapter or the whole candidate pool.
var _ Backend = (*FailoverClient)(nil)

// NewFailoverClient creates a failover client over the given candidates.
// Candidates are sorted by rank; at least one is required.
func NewFailoverClient(candidates []Candidate, config FailoverConfig, recorder ThrottleRecorder) (*FailoverClient, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("at least one backend candidate is required")
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultFailoverConfig.MaxAttempts
	}
	if config.DefaultCooldown <= 0 {
		config.DefaultCooldown = DefaultFailoverConfig.DefaultCooldown
	}

	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Rank < sorted[j].Rank
	})

	return &FailoverClient{
		candidates: sorted,
		config:     config,
		recorder:   recorder,
		logger:     logx.NewLogger("llm"),
		cooldowns:  make(map[int]time.Time),
		now:        time.Now,
		sleep:      sleepContext,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Complete implements one logical completion with automatic failover.
// Throttling responses cool the candidate down and move to the next one;
// any other failure propagates immediately. The output budget is clamped to
// the chosen candidate's capacity on every attempt, since a fallback
// candidate may have a different capacity than the first choice.
func (c *FailoverClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		idx, err := c.selectCandidate(ctx)
		if err != nil {
			return CompletionResponse{}, err
		}
		candidate := &c.candidates[idx]
		model := candidate.Backend.ModelName()

		attemptReq := req
		if candidate.MaxOutputTokens > 0 && attemptReq.MaxTokens > candidate.MaxOutputTokens {
			attemptReq.MaxTokens = candidate.MaxOutputTokens
		}

		resp, err := candidate.Backend.Complete(ctx, attemptReq)
		if err == nil {
			resp.BackendUsed = model
			return resp, nil
		}

		var berr *llmerrors.Error
		if errors.As(err, &berr) && berr.IsThrottle() {
			cooldown := berr.RetryAfterOrDefault(c.config.DefaultCooldown)
			c.markCoolingDown(idx, cooldown)
			if c.recorder != nil {
				c.recorder.IncThrottle(model, "rate_limit")
			}
			c.logger.Warn("backend %s throttled, cooling down %s (attempt %d/%d)",
				model, cooldown, attempt, c.config.MaxAttempts)
			lastErr = err
			continue
		}

		// Non-throttling failures are not retried against other candidates.
		return CompletionResponse{}, err
	}

	return CompletionResponse{}, fmt.Errorf("all backends throttled after %d attempts: %w", c.config.MaxAttempts, lastErr)
}

// selectCandidate returns the index of the first available candidate in
// rank order. Expired cooldowns are evicted during the scan. When every
// candidate is cooling down, it waits for the soonest expiry, clears that
// entry, and returns the candidate; the wait is bounded by the minimum
// remaining cooldown. Given a time and table state the choice is
// deterministic. Cooldowns are tracked per candidate, not per model name,
// so two candidates serving the same model cool down independently.
func (c *FailoverClient) selectCandidate(ctx context.Context) (int, error) {
	c.mu.Lock()
	now := c.now()

	soonest := -1
	var soonestExpiry time.Time

	for i := range c.candidates {
		expiry, cooling := c.cooldowns[i]
		if cooling && !expiry.After(now) {
			delete(c.cooldowns, i)
			cooling = false
		}
		if !cooling {
			c.mu.Unlock()
			return i, nil
		}
		if soonest < 0 || expiry.Before(soonestExpiry) {
			soonest = i
			soonestExpiry = expiry
		}
	}
	c.mu.Unlock()

	model := c.candidates[soonest].Backend.ModelName()
	wait := soonestExpiry.Sub(now)
	if wait > 0 {
		c.logger.Info("all backends cooling down, waiting %s for %s", wait, model)
		if c.recorder != nil {
			c.recorder.ObserveCooldownWait(model, wait)
		}
		if err := c.sleep(ctx, wait); err != nil {
			return -1, fmt.Errorf("canceled while waiting for backend cooldown: %w", err)
		}
	}

	c.mu.Lock()
	delete(c.cooldowns, soonest)
	c.mu.Unlock()
	return soonest, nil
}

// ModelName reports the preferred (lowest-rank) candidate's model. The
// actual model that served a request is in CompletionResponse.BackendUsed.
func (c *FailoverClient) ModelName() string {
	return c.candidates[0].Backend.ModelName()
}

// markCoolingDown records a cooldown expiry for a candidate.
func (c *FailoverClient) markCoolingDown(idx int, cooldown time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cooldowns[idx] = c.now().Add(cooldown)
}

// CoolingDown returns a snapshot of backends currently cooling down with
// their remaining durations, keyed by model name. When several candidates
// share a model name, the longest remaining cooldown is reported.
func (c *FailoverClient) CoolingDown() map[string]time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	out := make(map[string]time.Duration, len(c.cooldowns))
	for idx, expiry := range c.cooldowns {
		remaining := expiry.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		model := c.candidates[idx].Backend.ModelName()
		if existing, ok := out[model]; !ok || remaining > existing {
			out[model] = remaining
		}
	}
	return out
}
