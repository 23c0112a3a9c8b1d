package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/BABTUNA/marky-sub000/pkg/llm"
	"github.com/BABTUNA/marky-sub000/pkg/pipeline"
)

// Task ids referenced by workflow definitions.
const (
	taskScript      = "script"
	taskTitle       = "title"
	taskDescription = "description"
	taskNarration   = "narration"
)

const scriptSystemPrompt = `You write tight, engaging scripts for short-form vertical video.
Keep it under 150 words, hook the viewer in the first sentence, and end with a question.
Return only the script text.`

const narrationSystemPrompt = `You prepare scripts for text-to-speech narration.
Rewrite the given script into plain spoken sentences: expand abbreviations and numbers,
remove stage directions and emoji. Return only the narration text.`

// registerTasks installs the content-generation tasks against the given
// completion backend.
func registerTasks(reg *pipeline.Registry, backend llm.Backend) error {
	tasks := []pipeline.Task{
		scriptTask(backend),
		titleTask(backend),
		descriptionTask(backend),
		narrationTask(backend),
	}
	for _, task := range tasks {
		if err := reg.Register(task); err != nil {
			return err
		}
	}
	return nil
}

func scriptTask(backend llm.Backend) pipeline.Task {
	return pipeline.NewTask(taskScript, func(ctx context.Context, params pipeline.Params, _ *pipeline.ExecutionContext) (pipeline.Result, error) {
		topic := params.String("topic", "")
		if topic == "" {
			return pipeline.SoftFailure("no topic provided"), nil
		}

		content, used, err := complete(ctx, backend,
			scriptSystemPrompt,
			fmt.Sprintf("Write a short-form video script about: %s", topic))
		if err != nil {
			return pipeline.Result{}, err
		}
		return pipeline.Success(map[string]any{
			"script":  content,
			"backend": used,
		}), nil
	})
}

func titleTask(backend llm.Backend) pipeline.Task {
	return pipeline.NewTask(taskTitle, func(ctx context.Context, _ pipeline.Params, ec *pipeline.ExecutionContext) (pipeline.Result, error) {
		script, ok := scriptFrom(ec)
		if !ok {
			return pipeline.SoftFailure("script unavailable"), nil
		}

		content, used, err := complete(ctx, backend,
			"You write clickable but honest video titles. Return only the title, no quotes.",
			"Write a title for this script:\n\n"+script)
		if err != nil {
			return pipeline.Result{}, err
		}
		return pipeline.Success(map[string]any{
			"title":   strings.TrimSpace(content),
			"backend": used,
		}), nil
	})
}

func descriptionTask(backend llm.Backend) pipeline.Task {
	return pipeline.NewTask(taskDescription, func(ctx context.Context, _ pipeline.Params, ec *pipeline.ExecutionContext) (pipeline.Result, error) {
		script, ok := scriptFrom(ec)
		if !ok {
			return pipeline.SoftFailure("script unavailable"), nil
		}

		content, used, err := complete(ctx, backend,
			"You write short video descriptions with 3 relevant hashtags at the end.",
			"Write a description for this script:\n\n"+script)
		if err != nil {
			return pipeline.Result{}, err
		}
		return pipeline.Success(map[string]any{
			"description": strings.TrimSpace(content),
			"backend":     used,
		}), nil
	})
}

// narrationTask rewrites the script for text-to-speech. It is the prunable
// step: a pre-supplied voice file makes it redundant.
func narrationTask(backend llm.Backend) pipeline.Task {
	return pipeline.NewTask(taskNarration, func(ctx context.Context, _ pipeline.Params, ec *pipeline.ExecutionContext) (pipeline.Result, error) {
		script, ok := scriptFrom(ec)
		if !ok {
			return pipeline.SoftFailure("script unavailable"), nil
		}

		content, used, err := complete(ctx, backend, narrationSystemPrompt, script)
		if err != nil {
			return pipeline.Result{}, err
		}
		return pipeline.Success(map[string]any{
			"narration": strings.TrimSpace(content),
			"backend":   used,
		}), nil
	})
}

func scriptFrom(ec *pipeline.ExecutionContext) (string, bool) {
	res, ok := ec.Result(taskScript)
	if !ok || res.Failed() {
		return "", false
	}
	script := res.GetString("script")
	return script, script != ""
}

func complete(ctx context.Context, backend llm.Backend, system, user string) (content, backendUsed string, err error) {
	req := llm.NewRequest([]llm.Message{
		llm.NewSystemMessage(system),
		llm.NewUserMessage(user),
	})
	resp, err := backend.Complete(ctx, req)
	if err != nil {
		return "", "", err
	}
	return resp.Content, resp.BackendUsed, nil
}
