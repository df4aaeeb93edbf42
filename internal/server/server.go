// Package server exposes the council over HTTP: conversation CRUD, blocking
// and streaming deliberation, URL context fetching and metrics.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mapachekurt/llm-council/internal/config"
	"github.com/mapachekurt/llm-council/internal/council"
	"github.com/mapachekurt/llm-council/internal/logger"
	"github.com/mapachekurt/llm-council/internal/storage"
	"github.com/mapachekurt/llm-council/internal/webfetch"
)

// ShutdownTimeout bounds how long in-flight requests may run after shutdown starts.
const ShutdownTimeout = 10 * time.Second

// Server is the council HTTP API.
type Server struct {
	cfg      *config.Config
	engine   *council.Engine
	store    storage.Store
	fetcher  *webfetch.Fetcher
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	router   *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithFetcher sets the URL fetcher used by /api/fetch-url.
func WithFetcher(f *webfetch.Fetcher) Option {
	return func(s *Server) { s.fetcher = f }
}

// WithGatherer exposes g at /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New builds the router.
func New(cfg *config.Config, engine *council.Engine, store storage.Store, opts ...Option) *Server {
	s := &Server{cfg: cfg, engine: engine, store: store}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.OrNop(s.logger).Named("server")
	if s.fetcher == nil {
		s.fetcher = webfetch.New(webfetch.WithLogger(s.logger))
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(
		recovery(s.logger),
		accessLog(s.logger),
		bodyLimit(s.cfg.Server.MaxRequestBody),
		corsMiddleware(s.cfg.Server.CORSAllowedOrigins),
	)

	router.GET("/", s.healthCheck)
	router.GET("/api/conversations", s.listConversations)
	router.POST("/api/conversations", s.createConversation)
	router.GET("/api/conversations/:id", s.getConversation)
	router.POST("/api/conversations/:id/message", s.sendMessage)
	router.POST("/api/conversations/:id/message/stream", s.sendMessageStream)
	router.POST("/api/fetch-url", s.fetchURL)
	if s.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	return router
}

// ListenAndServe serves on the configured address until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting LLM Council backend",
			zap.String("addr", srv.Addr),
			zap.Int("council_members", len(s.cfg.CouncilModels)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// request builds a deliberation request for question from the configuration.
func (s *Server) request(question string) council.Request {
	return council.Request{
		Question:      question,
		CouncilModels: s.cfg.CouncilModels,
		ChairmanModel: s.cfg.ChairmanModel,
		APIKey:        s.cfg.APIKey,
	}
}
