// marky runs content-generation workflows: a sequence of agent tasks
// sharing one execution context, backed by a failover LLM client.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/term"

	"github.com/BABTUNA/marky-sub000/pkg/config"
	"github.com/BABTUNA/marky-sub000/pkg/llm"
	"github.com/BABTUNA/marky-sub000/pkg/llm/anthropic"
	"github.com/BABTUNA/marky-sub000/pkg/llm/google"
	loggingmw "github.com/BABTUNA/marky-sub000/pkg/llm/middleware/logging"
	metricsmw "github.com/BABTUNA/marky-sub000/pkg/llm/middleware/metrics"
	"github.com/BABTUNA/marky-sub000/pkg/llm/ollama"
	"github.com/BABTUNA/marky-sub000/pkg/llm/openai"
	"github.com/BABTUNA/marky-sub000/pkg/logx"
	"github.com/BABTUNA/marky-sub000/pkg/metrics"
	"github.com/BABTUNA/marky-sub000/pkg/pipeline"
	"github.com/BABTUNA/marky-sub000/pkg/store"
)

func main() {
	var (
		configPath = flag.String("config", "marky.yaml", "path to the YAML config file")
		workflow   = flag.String("workflow", "", "workflow name (default comes from config)")
		topic      = flag.String("topic", "", "topic to generate content about")
		voiceFile  = flag.String("voice-file", "", "pre-recorded voice file; skips narration generation")
		showUsage  = flag.Bool("usage", false, "print aggregated token usage and exit")
	)
	flag.Parse()

	logger := logx.NewLogger("marky")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	if *showUsage {
		if err := printUsage(cfg); err != nil {
			logger.Error("%v", err)
			os.Exit(1)
		}
		return
	}

	if err := loadSecrets(logger); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	result, err := runWorkflow(cfg, logger, *workflow, *topic, *voiceFile)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(map[string]any{
		"run_id":   result.RunID,
		"workflow": result.Workflow,
		"success":  result.Success,
		"results":  result.Results(),
	}, "", "  ")
	if err != nil {
		logger.Error("failed to render results: %v", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if !result.Success {
		os.Exit(1)
	}
}

// loadSecrets decrypts the project secrets file when present, prompting for
// the password on a terminal. Without a terminal or a secrets file, API
// keys come from the environment.
func loadSecrets(logger *logx.Logger) error {
	if !config.SecretsFileExists(".") {
		return nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		logger.Warn("secrets file present but stdin is not a terminal, falling back to environment variables")
		return nil
	}

	fmt.Fprint(os.Stderr, "Secrets password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if err := config.LoadSecrets(".", string(password)); err != nil {
		return err
	}
	return nil
}

func runWorkflow(cfg *config.Config, logger *logx.Logger, workflow, topic, voiceFile string) (*pipeline.RunResult, error) {
	recorder := metricsmw.NewPrometheusRecorder(prometheus.DefaultRegisterer)

	client, err := buildClient(cfg, logger, recorder)
	if err != nil {
		return nil, err
	}

	registry, err := pipeline.NewRegistry(cfg.Workflows, cfg.DefaultWorkflow)
	if err != nil {
		return nil, err
	}
	if err := registerTasks(registry, client); err != nil {
		return nil, err
	}

	pruneRules := make([]pipeline.PruneRule, 0, len(cfg.PruneRules))
	for _, rule := range cfg.PruneRules {
		pruneRules = append(pruneRules, pipeline.PruneRule{
			TaskID:        rule.Task,
			ArtifactParam: rule.ArtifactParam,
		})
	}

	executor, err := pipeline.NewExecutor(registry, pruneRules, cfg.ProgressMessages,
		pipeline.NewRunMetrics(prometheus.DefaultRegisterer))
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()

	params := pipeline.Params{}
	if topic != "" {
		params["topic"] = topic
	}
	if voiceFile != "" {
		params["voice_file"] = voiceFile
	}

	ctx := context.Background()
	if workflow == "" {
		workflow = cfg.DefaultWorkflow
	}

	started := time.Now()
	result, err := executor.Run(ctx, workflow, params, func(taskID, message string) {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", taskID, message)
	})
	if err != nil {
		return nil, err
	}

	if err := st.SaveRunResult(ctx, result, started, time.Now()); err != nil {
		logger.Warn("failed to persist run %s: %v", result.RunID, err)
	}
	persistText(ctx, st, logger, result, taskScript, "script", "script.txt")
	persistText(ctx, st, logger, result, taskNarration, "narration", "narration.txt")

	return result, nil
}

// persistText writes a successful task's text output into the artifact
// store. Failed or skipped tasks leave nothing behind.
func persistText(ctx context.Context, st *store.Store, logger *logx.Logger, result *pipeline.RunResult, taskID, key, name string) {
	res, ok := result.Context.Result(taskID)
	if !ok || res.Failed() {
		return
	}
	text := res.GetString(key)
	if text == "" {
		return
	}
	if _, err := st.Put(ctx, result.RunID, taskID, name, []byte(text)); err != nil {
		logger.Warn("failed to store %s artifact: %v", taskID, err)
	}
}

// buildClient constructs the failover client over every configured backend
// whose credentials are available.
func buildClient(cfg *config.Config, logger *logx.Logger, recorder *metricsmw.PrometheusRecorder) (llm.Backend, error) {
	llmLogger := logx.NewLogger("llm")
	middlewares := []llm.Middleware{
		loggingmw.Middleware(llmLogger),
		metricsmw.Middleware(recorder, metricsmw.DefaultUsageExtractor, llmLogger),
	}

	var candidates []llm.Candidate
	for _, b := range cfg.Backends {
		backend, err := buildBackend(b)
		if err != nil {
			logger.Warn("skipping backend %s/%s: %v", b.Provider, b.Model, err)
			continue
		}
		candidates = append(candidates, llm.Candidate{
			Backend:         llm.Chain(backend, middlewares...),
			MaxOutputTokens: b.MaxOutputTokens,
			Rank:            b.Rank,
		})
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no usable backends: check credentials for the configured providers")
	}

	return llm.NewFailoverClient(candidates, llm.FailoverConfig{
		MaxAttempts:     cfg.Failover.MaxAttempts,
		DefaultCooldown: cfg.Failover.Cooldown(),
	}, recorder)
}

func buildBackend(b config.BackendConfig) (llm.Backend, error) {
	if b.Provider == config.ProviderOllama {
		return ollama.New(b.Host, b.Model), nil
	}

	apiKey, err := config.GetSecret(config.APIKeyName(b.Provider))
	if err != nil {
		return nil, err
	}

	switch b.Provider {
	case config.ProviderAnthropic:
		return anthropic.New(apiKey, b.Model), nil
	case config.ProviderOpenAI:
		return openai.New(apiKey, b.Model), nil
	case config.ProviderGoogle:
		return google.New(apiKey, b.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", b.Provider)
	}
}

func printUsage(cfg *config.Config) error {
	if cfg.Metrics.PrometheusURL == "" {
		return fmt.Errorf("metrics.prometheus_url is not configured")
	}

	svc, err := metrics.NewQueryService(cfg.Metrics.PrometheusURL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	total, err := svc.GetUsage(ctx)
	if err != nil {
		return err
	}
	byModel, err := svc.GetUsageByModel(ctx)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(map[string]any{
		"total":    total,
		"by_model": byModel,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render usage: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
