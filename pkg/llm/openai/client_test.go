package openai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BABTUNA/marky-sub000/pkg/llmerrors"
)

func TestClassifyErrorTextPatterns(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		expectType llmerrors.ErrorType
	}{
		{"rate text", errors.New("429 rate limit reached for gpt-4o"), llmerrors.ErrorTypeRateLimit},
		{"quota", errors.New("you exceeded your current quota"), llmerrors.ErrorTypeRateLimit},
		{"network", errors.New("connection refused"), llmerrors.ErrorTypeTransient},
		{"unknown", errors.New("mystery"), llmerrors.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectType, llmerrors.TypeOf(classifyError(tt.err)))
		})
	}
}

func TestClassifyErrorRetryHintFromText(t *testing.T) {
	err := classifyError(errors.New("429 rate limit reached, try again in 7s"))
	var berr *llmerrors.Error
	assert.ErrorAs(t, err, &berr)
	assert.True(t, berr.IsThrottle())
	assert.Equal(t, int64(7), int64(berr.RetryAfter.Seconds()))
}

func TestModelName(t *testing.T) {
	c := New("key", "gpt-4o-mini")
	assert.Equal(t, "gpt-4o-mini", c.ModelName())
}
