// Package config loads and validates the YAML run configuration: workflow
// definitions, backend candidates for the failover client, pruning rules,
// and storage paths. It also manages the encrypted secrets file holding
// provider API keys.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider name constants.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
)

// Defaults applied when the config file omits a value.
const (
	DefaultMaxAttempts     = 3
	DefaultCooldownSec     = 60
	DefaultMaxOutputTokens = 4096
	DefaultStorePath       = "marky.db"
	defaultWorkflowName    = "full"
)

// BackendConfig describes one LLM backend candidate. Candidates are ranked;
// the failover client prefers lower ranks and falls back down the list.
type BackendConfig struct {
	// Provider selects the SDK adapter: anthropic, openai, google, ollama.
	Provider string `yaml:"provider"`
	// Model is the provider-specific model name.
	Model string `yaml:"model"`
	// Host overrides the provider endpoint (ollama only).
	Host string `yaml:"host,omitempty"`
	// MaxOutputTokens is this backend's output capacity; requests are
	// clamped to it per attempt.
	MaxOutputTokens int `yaml:"max_output_tokens"`
	// Rank orders candidates; lower is preferred.
	Rank int `yaml:"rank"`
}

// FailoverConfig tunes the multi-backend invocation client.
type FailoverConfig struct {
	// MaxAttempts bounds failover cycles per request.
	MaxAttempts int `yaml:"max_attempts"`
	// DefaultCooldownSec applies when a throttled backend gives no usable
	// retry hint.
	DefaultCooldownSec int `yaml:"default_cooldown_sec"`
}

// Cooldown returns the default cooldown as a duration.
func (f FailoverConfig) Cooldown() time.Duration {
	return time.Duration(f.DefaultCooldownSec) * time.Second
}

// PruneRuleConfig maps a task id to the run parameter whose pre-supplied
// artifact makes it redundant.
type PruneRuleConfig struct {
	Task          string `yaml:"task"`
	ArtifactParam string `yaml:"artifact_param"`
}

// StoreConfig configures the artifact store.
type StoreConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path"`
}

// MetricsConfig configures Prometheus integration.
type MetricsConfig struct {
	// PrometheusURL is the query endpoint for usage reports; empty
	// disables usage queries.
	PrometheusURL string `yaml:"prometheus_url,omitempty"`
}

// Config is the root run configuration.
type Config struct {
	Workflows        map[string][]string `yaml:"workflows"`
	ProgressMessages map[string]string   `yaml:"progress_messages,omitempty"`
	DefaultWorkflow  string              `yaml:"default_workflow"`
	Backends         []BackendConfig     `yaml:"backends"`
	PruneRules       []PruneRuleConfig   `yaml:"prune_rules,omitempty"`
	Failover         FailoverConfig      `yaml:"failover"`
	Store            StoreConfig         `yaml:"store"`
	Metrics          MetricsConfig       `yaml:"metrics,omitempty"`
}

// Load reads, parses, and validates a YAML config file, applying defaults
// for omitted values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse parses and validates YAML config bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DefaultWorkflow == "" {
		c.DefaultWorkflow = defaultWorkflowName
	}
	if c.Failover.MaxAttempts <= 0 {
		c.Failover.MaxAttempts = DefaultMaxAttempts
	}
	if c.Failover.DefaultCooldownSec <= 0 {
		c.Failover.DefaultCooldownSec = DefaultCooldownSec
	}
	if c.Store.Path == "" {
		c.Store.Path = DefaultStorePath
	}
	for i := range c.Backends {
		if c.Backends[i].MaxOutputTokens <= 0 {
			c.Backends[i].MaxOutputTokens = DefaultMaxOutputTokens
		}
	}
}

func (c *Config) validate() error {
	if len(c.Workflows) == 0 {
		return fmt.Errorf("config defines no workflows")
	}
	if _, ok := c.Workflows[c.DefaultWorkflow]; !ok {
		return fmt.Errorf("default workflow %q is not defined", c.DefaultWorkflow)
	}
	for name, ids := range c.Workflows {
		if len(ids) == 0 {
			return fmt.Errorf("workflow %q has no tasks", name)
		}
	}

	if len(c.Backends) == 0 {
		return fmt.Errorf("config defines no backends")
	}
	for i, b := range c.Backends {
		switch b.Provider {
		case ProviderAnthropic, ProviderOpenAI, ProviderGoogle, ProviderOllama:
		default:
			return fmt.Errorf("backend %d: unknown provider %q", i, b.Provider)
		}
		if b.Model == "" {
			return fmt.Errorf("backend %d: model is required", i)
		}
	}

	for i, rule := range c.PruneRules {
		if rule.Task == "" || rule.ArtifactParam == "" {
			return fmt.Errorf("prune rule %d: task and artifact_param are required", i)
		}
	}

	return nil
}
