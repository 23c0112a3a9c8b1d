package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuerier struct {
	results map[string]model.Value
}

func (f *fakeQuerier) Query(_ context.Context, query string, _ time.Time, _ ...v1.Option) (model.Value, v1.Warnings, error) {
	for key, value := range f.results {
		if strings.Contains(query, key) {
			return value, nil, nil
		}
	}
	return model.Vector{}, nil, nil
}

func vectorOf(value float64, labels model.Metric) model.Vector {
	return model.Vector{&model.Sample{Metric: labels, Value: model.SampleValue(value)}}
}

func TestGetUsage(t *testing.T) {
	svc := &QueryService{queryAPI: &fakeQuerier{results: map[string]model.Value{
		`type="prompt"`:     vectorOf(1200, nil),
		`type="completion"`: vectorOf(300, nil),
	}}}

	usage, err := svc.GetUsage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1200), usage.PromptTokens)
	assert.Equal(t, int64(300), usage.CompletionTokens)
	assert.Equal(t, int64(1500), usage.TotalTokens)
}

func TestGetUsageEmptyResult(t *testing.T) {
	svc := &QueryService{queryAPI: &fakeQuerier{results: map[string]model.Value{}}}

	usage, err := svc.GetUsage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage.TotalTokens)
}

func TestGetUsageByModel(t *testing.T) {
	svc := &QueryService{queryAPI: &fakeQuerier{results: map[string]model.Value{
		"group by (model)": model.Vector{
			&model.Sample{Metric: model.Metric{"model": "claude-sonnet-4"}},
		},
		`type="prompt"`:     vectorOf(800, nil),
		`type="completion"`: vectorOf(200, nil),
	}}}

	byModel, err := svc.GetUsageByModel(context.Background())
	require.NoError(t, err)
	require.Contains(t, byModel, "claude-sonnet-4")
	assert.Equal(t, int64(1000), byModel["claude-sonnet-4"].TotalTokens)
	assert.Equal(t, "claude-sonnet-4", byModel["claude-sonnet-4"].Model)
}

func TestNewQueryServiceRejectsBadURL(t *testing.T) {
	_, err := NewQueryService("://not-a-url")
	assert.Error(t, err)
}
