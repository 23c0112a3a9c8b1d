package ollama

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ollama/ollama/api"

	"github.com/BABTUNA/marky-sub000/pkg/llmerrors"
)

func TestStopReason(t *testing.T) {
	tests := []struct {
		name     string
		resp     api.ChatResponse
		expected string
	}{
		{"not done", api.ChatResponse{Done: false}, "incomplete"},
		{"stop", api.ChatResponse{Done: true, DoneReason: "stop"}, "end_turn"},
		{"empty reason", api.ChatResponse{Done: true}, "end_turn"},
		{"length", api.ChatResponse{Done: true, DoneReason: "length"}, "max_tokens"},
		{"other", api.ChatResponse{Done: true, DoneReason: "abort"}, "abort"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, stopReason(&tt.resp))
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		expectType llmerrors.ErrorType
	}{
		{"busy server", errors.New("429 too many requests"), llmerrors.ErrorTypeRateLimit},
		{"unreachable", errors.New("dial tcp: connection refused"), llmerrors.ErrorTypeTransient},
		{"missing model", errors.New("model 'llama9' not found"), llmerrors.ErrorTypeBadPrompt},
		{"timeout", errors.New("request timeout"), llmerrors.ErrorTypeTransient},
		{"unknown", errors.New("weird failure"), llmerrors.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectType, llmerrors.TypeOf(classifyError(tt.err)))
		})
	}
}

func TestNewFallsBackToDefaultHost(t *testing.T) {
	c := New("", "llama3")
	assert.Equal(t, "llama3", c.ModelName())
}
