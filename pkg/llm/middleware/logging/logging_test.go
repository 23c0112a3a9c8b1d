package logging

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BABTUNA/marky-sub000/pkg/llm"
)

type echoBackend struct{}

func (echoBackend) Complete(_ context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	return llm.CompletionResponse{Content: in.Messages[0].Content}, nil
}

func (echoBackend) ModelName() string { return "echo" }

func TestMiddlewarePassesThrough(t *testing.T) {
	wrapped := llm.Chain(echoBackend{}, Middleware(nil))
	resp, err := wrapped.Complete(context.Background(), llm.NewRequest([]llm.Message{llm.NewUserMessage("hello")}))
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, "echo", wrapped.ModelName())
}

func TestSanitizeShortText(t *testing.T) {
	assert.Equal(t, "short", Sanitize("short", 400))
}

func TestSanitizeLongText(t *testing.T) {
	long := strings.Repeat("abcdefgh", 200)
	out := Sanitize(long, 400)

	assert.Less(t, len(out), len(long))
	assert.Contains(t, out, "hash:")
	assert.Contains(t, out, "1600 chars")
	assert.True(t, strings.HasPrefix(out, long[:100]))
}

func TestSanitizeKeepsRuneBoundaries(t *testing.T) {
	long := strings.Repeat("世", 300)
	out := Sanitize(long, 400)

	assert.Less(t, len(out), len(long))
	assert.True(t, utf8.ValidString(out), "preview must not split a multi-byte rune")
	assert.True(t, strings.HasPrefix(out, "世"))
	assert.True(t, strings.HasSuffix(out, "世"))
}
