package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mapachekurt/llm-council/internal/server"
	"github.com/mapachekurt/llm-council/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the council HTTP API: conversations, blocking and streaming
deliberation, URL context fetching and Prometheus metrics.

Stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(appConfig)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := storage.Open(a.cfg.Storage.Driver, a.cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()
	a.logger.Info("storage ready",
		zap.String("driver", a.cfg.Storage.Driver),
		zap.String("path", a.cfg.Storage.Path),
	)
	if a.cfg.EnvFile != "" {
		a.logger.Info("loaded environment file", zap.String("path", a.cfg.EnvFile))
	}

	srv := server.New(a.cfg, a.engine, store,
		server.WithFetcher(a.fetcher),
		server.WithGatherer(a.registry),
		server.WithLogger(a.logger),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx)
}
