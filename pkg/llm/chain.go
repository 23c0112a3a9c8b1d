package llm

import (
	"context"
)

// Middleware represents a function that wraps a Backend with additional
// behavior. Middlewares are composed using Chain() to create a pipeline.
type Middleware func(next Backend) Backend

// backendFunc adapts plain functions to the Backend interface.
type backendFunc struct {
	complete  func(context.Context, CompletionRequest) (CompletionResponse, error)
	modelName func() string
}

func (f backendFunc) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	return f.complete(ctx, in)
}

func (f backendFunc) ModelName() string {
	return f.modelName()
}

// WrapBackend creates a Backend from the provided function implementations.
// This is a helper for middleware implementations that wrap behavior.
func WrapBackend(
	complete func(context.Context, CompletionRequest) (CompletionResponse, error),
	modelName func() string,
) Backend {
	return backendFunc{
		complete:  complete,
		modelName: modelName,
	}
}

// Chain composes multiple middlewares around a base Backend.
// Middlewares are applied in order, with earlier middlewares outermost:
//
//	Chain(backend, mw1, mw2) => mw1 -> mw2 -> backend
func Chain(base Backend, middlewares ...Middleware) Backend {
	backend := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		backend = middlewares[i](backend)
	}
	return backend
}
