package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mapachekurt/llm-council/internal/config"
	"github.com/mapachekurt/llm-council/internal/council"
	"github.com/mapachekurt/llm-council/internal/logger"
	"github.com/mapachekurt/llm-council/internal/metrics"
	"github.com/mapachekurt/llm-council/internal/openrouter"
	"github.com/mapachekurt/llm-council/internal/webfetch"
)

var (
	cfgPath   string
	appConfig *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "llm-council",
	Short: "Ask a council of LLMs and let them review each other",
	Long: `llm-council sends a question to a council of models through OpenRouter,
has every member rank the anonymized answers of the others, and asks a
chairman model to synthesize the final answer.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		appConfig, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file path (default: council.yaml in ., ./configs or ~/.llm-council)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(titleCmd)
}

// app holds the components shared by every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	engine   *council.Engine
	fetcher  *webfetch.Fetcher
}

func newApp(cfg *config.Config) (*app, error) {
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec, err := metrics.New(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	client := openrouter.New(
		openrouter.WithIdentity(cfg.OpenRouter.Referer, cfg.OpenRouter.Title),
		openrouter.WithTimeout(cfg.OpenRouter.Timeout),
		openrouter.WithLogger(log),
		openrouter.WithMetrics(rec),
	)
	engine := council.New(client,
		council.WithTitleModel(cfg.TitleModel),
		council.WithLogger(log),
		council.WithMetrics(rec),
	)
	fetcher := webfetch.New(
		webfetch.WithTimeout(cfg.Fetch.Timeout),
		webfetch.WithMaxChars(cfg.Fetch.MaxChars),
		webfetch.WithCache(webfetch.NewPageCache(cfg.Fetch.CacheSize, cfg.Fetch.CacheTTL)),
		webfetch.WithLogger(log),
	)

	return &app{
		cfg:      cfg,
		logger:   log,
		registry: registry,
		engine:   engine,
		fetcher:  fetcher,
	}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}
