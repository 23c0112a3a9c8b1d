package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountTokens(t *testing.T) {
	counter, err := NewTokenCounter()
	require.NoError(t, err)

	assert.Equal(t, 0, counter.CountTokens(""))
	assert.Greater(t, counter.CountTokens("hello world, this is a test"), 0)

	// More text means more tokens.
	short := counter.CountTokens("one sentence")
	long := counter.CountTokens(strings.Repeat("one sentence ", 50))
	assert.Greater(t, long, short)
}

func TestCountTokensSimple(t *testing.T) {
	assert.Greater(t, CountTokensSimple("a reasonable chunk of prose for counting"), 0)
}

func TestEstimateFallback(t *testing.T) {
	tc := &TokenCounter{} // nil codec forces the heuristic
	assert.Equal(t, len("abcdefgh")/4, tc.CountTokens("abcdefgh"))
}
