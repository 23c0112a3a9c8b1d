package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BABTUNA/marky-sub000/pkg/llmerrors"
)

// fakeBackend scripts per-call responses for failover tests.
type fakeBackend struct {
	model     string
	responses []fakeCall
	mu        sync.Mutex
	calls     []CompletionRequest
}

type fakeCall struct {
	resp CompletionResponse
	err  error
}

func (f *fakeBackend) Complete(_ context.Context, in CompletionRequest) (CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, in)
	if len(f.responses) == 0 {
		return CompletionResponse{Content: "ok"}, nil
	}
	call := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return call.resp, call.err
}

func (f *fakeBackend) ModelName() string { return f.model }

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeBackend) lastCall() CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// fakeClock advances time only through sleeps.
type fakeClock struct {
	mu    sync.Mutex
	t     time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (fc *fakeClock) now() time.Time {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.t
}

func (fc *fakeClock) sleep(_ context.Context, d time.Duration) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.slept = append(fc.slept, d)
	fc.t = fc.t.Add(d)
	return nil
}

func newTestClient(t *testing.T, config FailoverConfig, backends ...*fakeBackend) (*FailoverClient, *fakeClock) {
	t.Helper()

	candidates := make([]Candidate, len(backends))
	for i, b := range backends {
		candidates[i] = Candidate{Backend: b, MaxOutputTokens: 4096, Rank: i}
	}
	client, err := NewFailoverClient(candidates, config, nil)
	require.NoError(t, err)

	clock := newFakeClock()
	client.now = clock.now
	client.sleep = clock.sleep
	return client, clock
}

func TestCompleteUsesFirstCandidate(t *testing.T) {
	primary := &fakeBackend{model: "primary"}
	secondary := &fakeBackend{model: "secondary"}
	client, _ := newTestClient(t, FailoverConfig{}, primary, secondary)

	resp, err := client.Complete(context.Background(), NewRequest([]Message{NewUserMessage("hi")}))
	require.NoError(t, err)
	assert.Equal(t, "primary", resp.BackendUsed)
	assert.Equal(t, 0, secondary.callCount())
}

func TestCandidatesSortedByRank(t *testing.T) {
	a := &fakeBackend{model: "a"}
	b := &fakeBackend{model: "b"}
	client, err := NewFailoverClient([]Candidate{
		{Backend: a, Rank: 5},
		{Backend: b, Rank: 1},
	}, FailoverConfig{}, nil)
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), NewRequest([]Message{NewUserMessage("hi")}))
	require.NoError(t, err)
	assert.Equal(t, "b", resp.BackendUsed)
}

func TestOutputBudgetClampedPerAttempt(t *testing.T) {
	big := &fakeBackend{
		model:     "big",
		responses: []fakeCall{{err: llmerrors.NewThrottle(nil, time.Second, "throttled")}},
	}
	small := &fakeBackend{model: "small"}

	client, err := NewFailoverClient([]Candidate{
		{Backend: big, MaxOutputTokens: 8192, Rank: 0},
		{Backend: small, MaxOutputTokens: 1024, Rank: 1},
	}, FailoverConfig{}, nil)
	require.NoError(t, err)
	clock := newFakeClock()
	client.now = clock.now
	client.sleep = clock.sleep

	req := NewRequest([]Message{NewUserMessage("hi")})
	req.MaxTokens = 5000

	resp, err := client.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "small", resp.BackendUsed)

	// The first attempt kept the caller's budget, the fallback re-clamped it.
	assert.Equal(t, 5000, big.lastCall().MaxTokens)
	assert.Equal(t, 1024, small.lastCall().MaxTokens)
}

func TestThrottleFailsOverToNextCandidate(t *testing.T) {
	primary := &fakeBackend{
		model:     "primary",
		responses: []fakeCall{{err: llmerrors.NewThrottle(nil, 30*time.Second, "rate limited")}},
	}
	secondary := &fakeBackend{model: "secondary"}
	client, _ := newTestClient(t, FailoverConfig{}, primary, secondary)

	resp, err := client.Complete(context.Background(), NewRequest([]Message{NewUserMessage("hi")}))
	require.NoError(t, err)
	assert.Equal(t, "secondary", resp.BackendUsed)

	cooling := client.CoolingDown()
	assert.Equal(t, 30*time.Second, cooling["primary"])
}

func TestUnparsableHintAppliesDefaultCooldown(t *testing.T) {
	// A throttle with no retry hint (RetryAfter zero) degrades to the default.
	primary := &fakeBackend{
		model:     "primary",
		responses: []fakeCall{{err: llmerrors.NewThrottle(nil, llmerrors.ParseRetryAfter("soonish"), "rate limited")}},
	}
	secondary := &fakeBackend{model: "secondary"}
	client, _ := newTestClient(t, FailoverConfig{DefaultCooldown: 60 * time.Second}, primary, secondary)

	_, err := client.Complete(context.Background(), NewRequest([]Message{NewUserMessage("hi")}))
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, client.CoolingDown()["primary"])
}

func TestNonThrottleErrorPropagatesImmediately(t *testing.T) {
	primary := &fakeBackend{
		model:     "primary",
		responses: []fakeCall{{err: llmerrors.New(llmerrors.ErrorTypeAuth, "bad api key")}},
	}
	secondary := &fakeBackend{model: "secondary"}
	client, _ := newTestClient(t, FailoverConfig{}, primary, secondary)

	_, err := client.Complete(context.Background(), NewRequest([]Message{NewUserMessage("hi")}))
	require.Error(t, err)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeAuth))
	assert.Equal(t, 0, secondary.callCount())
	assert.Empty(t, client.CoolingDown())
}

func TestAllCoolingWaitsForSoonestExpiry(t *testing.T) {
	first := &fakeBackend{model: "first"}
	second := &fakeBackend{model: "second"}
	client, clock := newTestClient(t, FailoverConfig{}, first, second)

	client.markCoolingDown(0, 10*time.Second)
	client.markCoolingDown(1, 50*time.Second)

	resp, err := client.Complete(context.Background(), NewRequest([]Message{NewUserMessage("hi")}))
	require.NoError(t, err)

	// The bounded wait equals the soonest expiry, and that candidate serves.
	require.Len(t, clock.slept, 1)
	assert.Equal(t, 10*time.Second, clock.slept[0])
	assert.Equal(t, "first", resp.BackendUsed)
}

func TestExpiredCooldownEvictedOnSelection(t *testing.T) {
	primary := &fakeBackend{model: "primary"}
	client, clock := newTestClient(t, FailoverConfig{}, primary)

	client.markCoolingDown(0, 5*time.Second)
	clock.mu.Lock()
	clock.t = clock.t.Add(6 * time.Second)
	clock.mu.Unlock()

	resp, err := client.Complete(context.Background(), NewRequest([]Message{NewUserMessage("hi")}))
	require.NoError(t, err)
	assert.Equal(t, "primary", resp.BackendUsed)
	assert.Empty(t, clock.slept, "no wait for an expired cooldown")
	assert.Empty(t, client.CoolingDown())
}

func TestRetryBudgetExhaustionBundlesLastFailure(t *testing.T) {
	throttle := func(model string) *fakeBackend {
		return &fakeBackend{
			model: model,
			responses: []fakeCall{
				{err: llmerrors.NewThrottle(nil, 0, model+" is overloaded")},
			},
		}
	}
	a, b, c := throttle("alpha"), throttle("beta"), throttle("gamma")
	client, _ := newTestClient(t, FailoverConfig{MaxAttempts: 3, DefaultCooldown: 60 * time.Second}, a, b, c)

	_, err := client.Complete(context.Background(), NewRequest([]Message{NewUserMessage("hi")}))
	require.Error(t, err)

	// Each candidate was tried once within the budget, default cooldown applied.
	assert.Equal(t, 1, a.callCount())
	assert.Equal(t, 1, b.callCount())
	assert.Equal(t, 1, c.callCount())
	cooling := client.CoolingDown()
	assert.Len(t, cooling, 3)
	for model, remaining := range cooling {
		assert.Equal(t, 60*time.Second, remaining, model)
	}

	// The error references the last underlying failure.
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Contains(t, err.Error(), "gamma is overloaded")
	assert.True(t, llmerrors.IsThrottle(errors.Unwrap(err)))
}

func TestFailoverClientIsABackend(t *testing.T) {
	primary := &fakeBackend{model: "primary"}
	secondary := &fakeBackend{model: "secondary"}
	client, _ := newTestClient(t, FailoverConfig{}, primary, secondary)

	var backend Backend = client
	assert.Equal(t, "primary", backend.ModelName())
}

func TestSameModelCandidatesCooledIndependently(t *testing.T) {
	// Two candidates may serve the same model string (same model behind two
	// hosts). A throttle on one must not shadow the other.
	first := &fakeBackend{
		model:     "shared",
		responses: []fakeCall{{err: llmerrors.NewThrottle(nil, 30*time.Second, "rate limited")}},
	}
	second := &fakeBackend{model: "shared"}
	client, clock := newTestClient(t, FailoverConfig{}, first, second)

	resp, err := client.Complete(context.Background(), NewRequest([]Message{NewUserMessage("hi")}))
	require.NoError(t, err)
	assert.Equal(t, "shared", resp.BackendUsed)
	assert.Equal(t, 1, second.callCount())
	assert.Empty(t, clock.slept, "second candidate serves without waiting out the first one's cooldown")
	assert.Equal(t, 30*time.Second, client.CoolingDown()["shared"])
}

func TestNoCandidatesRejected(t *testing.T) {
	_, err := NewFailoverClient(nil, FailoverConfig{}, nil)
	assert.Error(t, err)
}

func TestConcurrentCompletions(t *testing.T) {
	primary := &fakeBackend{model: "primary"}
	client, _ := newTestClient(t, FailoverConfig{}, primary)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Complete(context.Background(), NewRequest([]Message{NewUserMessage("hi")}))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 16, primary.callCount())
}
