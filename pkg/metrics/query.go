// Package metrics provides services for querying and aggregating usage
// metrics from Prometheus.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// Usage represents aggregated token usage for generation requests.
type Usage struct {
	Model            string `json:"model,omitempty"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	TotalTokens      int64  `json:"total_tokens"`
}

// querier is the subset of the Prometheus query API the service uses.
type querier interface {
	Query(ctx context.Context, query string, ts time.Time, opts ...v1.Option) (model.Value, v1.Warnings, error)
}

// QueryService queries generation usage metrics from Prometheus.
type QueryService struct {
	queryAPI querier
}

// NewQueryService creates a usage query service against a Prometheus
// endpoint.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &QueryService{queryAPI: v1.NewAPI(client)}, nil
}

// GetUsage returns total token usage across all models.
func (q *QueryService) GetUsage(ctx context.Context) (*Usage, error) {
	usage := &Usage{}

	prompt, err := q.scalarQuery(ctx, `sum(generate_tokens_total{type="prompt"})`)
	if err != nil {
		return nil, fmt.Errorf("failed to query prompt tokens: %w", err)
	}
	usage.PromptTokens = prompt

	completion, err := q.scalarQuery(ctx, `sum(generate_tokens_total{type="completion"})`)
	if err != nil {
		return nil, fmt.Errorf("failed to query completion tokens: %w", err)
	}
	usage.CompletionTokens = completion

	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	return usage, nil
}

// GetUsageByModel returns token usage broken down per model.
func (q *QueryService) GetUsageByModel(ctx context.Context) (map[string]*Usage, error) {
	result := make(map[string]*Usage)

	modelsResult, _, err := q.queryAPI.Query(ctx, `group by (model) (generate_tokens_total)`, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query models: %w", err)
	}

	var models []string
	if vector, ok := modelsResult.(model.Vector); ok {
		for _, sample := range vector {
			if name, ok := sample.Metric["model"]; ok {
				models = append(models, string(name))
			}
		}
	}

	for _, name := range models {
		usage := &Usage{Model: name}

		prompt, err := q.scalarQuery(ctx,
			fmt.Sprintf(`sum(generate_tokens_total{model=%q, type="prompt"})`, name))
		if err != nil {
			return nil, fmt.Errorf("failed to query prompt tokens for model %s: %w", name, err)
		}
		usage.PromptTokens = prompt

		completion, err := q.scalarQuery(ctx,
			fmt.Sprintf(`sum(generate_tokens_total{model=%q, type="completion"})`, name))
		if err != nil {
			return nil, fmt.Errorf("failed to query completion tokens for model %s: %w", name, err)
		}
		usage.CompletionTokens = completion

		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		result[name] = usage
	}

	return result, nil
}

// scalarQuery runs an instant query expected to yield a single-sample
// vector; an empty result counts as zero.
func (q *QueryService) scalarQuery(ctx context.Context, query string) (int64, error) {
	result, _, err := q.queryAPI.Query(ctx, query, time.Now())
	if err != nil {
		return 0, err
	}
	if vector, ok := result.(model.Vector); ok && len(vector) > 0 {
		return int64(vector[0].Value), nil
	}
	return 0, nil
}
