// Package llm provides the completion types and backend contract shared by
// all generative providers, plus the failover client that routes a logical
// completion across interchangeable backend candidates.
package llm

import (
	"context"
	"fmt"
)

// Role represents the role of a message in a conversation.
type Role string

const (
	// RoleSystem indicates a system message that provides instructions or context.
	RoleSystem Role = "system"
	// RoleUser indicates a message from the human user.
	RoleUser Role = "user"
	// RoleAssistant indicates a message from the model.
	RoleAssistant Role = "assistant"
)

const (
	// TemperatureDefault is the default sampling temperature for content
	// generation tasks. Allows some creativity while staying on topic.
	TemperatureDefault = 0.7

	// DefaultMaxTokens is the default output budget when the caller does not
	// specify one. Clamped per attempt to the chosen candidate's capacity.
	DefaultMaxTokens = 4096
)

// Message represents one turn in a completion request.
type Message struct {
	Content string
	Role    Role
}

// CompletionRequest represents a request to generate a completion.
type CompletionRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float32
}

// Usage reports token consumption for a completed request. Counts come from
// the provider when available, otherwise estimated by the metrics middleware.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// CompletionResponse represents a response from a completion request.
type CompletionResponse struct {
	Content     string
	BackendUsed string // Model name of the candidate that served the request
	StopReason  string // "end_turn", "max_tokens", etc.
	Usage       Usage
}

// Backend is the contract every generative provider adapter implements.
type Backend interface {
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)

	// ModelName returns the provider model identifier for this backend.
	ModelName() string
}

// NewRequest creates a completion request with default budget and temperature.
func NewRequest(messages []Message) CompletionRequest {
	return CompletionRequest{
		Messages:    messages,
		MaxTokens:   DefaultMaxTokens,
		Temperature: TemperatureDefault,
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// ValidateRequest checks the request is well formed before it reaches a
// provider SDK.
func ValidateRequest(in CompletionRequest) error {
	if len(in.Messages) == 0 {
		return fmt.Errorf("message list cannot be empty")
	}
	if in.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive")
	}
	if in.Temperature < 0.0 || in.Temperature > 2.0 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}
	return nil
}
