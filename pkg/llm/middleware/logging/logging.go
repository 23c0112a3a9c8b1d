// Package logging provides request/response logging middleware for
// generative backends.
package logging

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/BABTUNA/marky-sub000/pkg/llm"
	"github.com/BABTUNA/marky-sub000/pkg/logx"
)

// maxLoggedChars bounds how much prompt text is written to the log.
const maxLoggedChars = 400

// Middleware returns a middleware that logs backend calls at debug level
// and failures at warn level.
func Middleware(logger *logx.Logger) llm.Middleware {
	if logger == nil {
		logger = logx.NewLogger("llm")
	}

	return func(next llm.Backend) llm.Backend {
		return llm.WrapBackend(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				model := next.ModelName()

				var promptText string
				for i := range req.Messages {
					promptText += req.Messages[i].Content + "\n"
				}
				logger.Debug("-> %s max_tokens=%d temp=%.2f prompt=%s",
					model, req.MaxTokens, req.Temperature, Sanitize(promptText, maxLoggedChars))

				start := time.Now()
				resp, err := next.Complete(ctx, req)
				if err != nil {
					logger.Warn("<- %s failed after %dms: %v", model, time.Since(start).Milliseconds(), err)
					return resp, err //nolint:wrapcheck // Middleware passes through errors unchanged
				}

				logger.Debug("<- %s stop=%s content=%s",
					model, resp.StopReason, Sanitize(resp.Content, maxLoggedChars))
				return resp, nil
			},
			next.ModelName,
		)
	}
}

// Sanitize creates a safe representation of text for logging. Large text is
// reduced to leading/trailing portions plus a hash for correlation.
func Sanitize(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}

	half := maxChars / 2
	if half < 100 {
		half = 100
	}
	if 2*half >= len(text) {
		return text
	}

	// Trim the cut points back to rune boundaries so multi-byte text is
	// never split mid-rune.
	head := half
	for head > 0 && !utf8.RuneStart(text[head]) {
		head--
	}
	tail := len(text) - half
	for tail < len(text) && !utf8.RuneStart(text[tail]) {
		tail++
	}

	hash := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s...[%d chars, hash:%x]...%s",
		text[:head], len(text), hash[:8], text[tail:])
}
