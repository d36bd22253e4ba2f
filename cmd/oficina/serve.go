package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/oficina-assistant-go/internal/assistant"
	"github.com/boddenberg/oficina-assistant-go/internal/config"
	"github.com/boddenberg/oficina-assistant-go/internal/domain"
	"github.com/boddenberg/oficina-assistant-go/internal/handler"
	"github.com/boddenberg/oficina-assistant-go/internal/infra/cache"
	"github.com/boddenberg/oficina-assistant-go/internal/infra/client"
	"github.com/boddenberg/oficina-assistant-go/internal/infra/observability"
	"github.com/boddenberg/oficina-assistant-go/internal/infra/resilience"
	"github.com/boddenberg/oficina-assistant-go/internal/infra/sqlstore"
	"github.com/boddenberg/oficina-assistant-go/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		// --- Load .env file (for local development) ---
		_ = config.LoadDotEnv(".env")
		cfg := config.Load()
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.Port = port
		}
		return serve(cfg)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "porta HTTP (sobrescreve PORT)")
}

func serve(cfg *config.Config) error {
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("database_path", cfg.DatabasePath),
		zap.String("mistral_model", cfg.MistralModel),
		zap.Bool("mistral_configured", cfg.MistralAPIKey != ""),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("snapshot_ttl", cfg.SnapshotTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Bool("auth_disabled", cfg.AuthDisabled),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "oficina-assistant")
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	metrics := observability.NewMetrics()

	// --- Storage ---
	store, err := sqlstore.Open(cfg.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	// --- Caches ---
	snapshotCache := cache.NewTTL[*domain.ContextSnapshot](cfg.SnapshotTTL)
	defer snapshotCache.Close()
	llmCache := cache.NewFIFO[string](cfg.LLMCacheCapacity, nil)

	// --- LLM client ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("mistral", logger)
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	llm := client.NewMistralClient(httpClient, cfg.MistralBaseURL, cfg.MistralAPIKey, cfg.MistralModel, cb, resilienceCfg, metrics)
	if cfg.MistralAPIKey == "" {
		logger.Warn("MISTRAL_API_KEY not set, open questions will receive the fallback answer")
	}

	// --- Services ---
	snapshots := assistant.NewSnapshotSource(store, snapshotCache, cfg.SnapshotLimit, metrics, logger)
	flow := assistant.NewFlow(store, logger)
	bridge := assistant.NewBridge(llm, llmCache, metrics, logger)

	svcs := handler.Services{
		Assistant: service.NewAssistant(snapshots, flow, bridge, metrics, logger),
		Solutions: service.NewSolutionService(store, store, store, logger),
		Catalog:   service.NewCatalogService(store),
		Auth:      service.NewAuthService(store, cfg.JWTSecret, cfg.JWTAccessTTL, logger),
		DB:        store,
	}
	if cfg.AuthDisabled {
		logger.Warn("auth disabled, assistant routes are public")
	}

	router := handler.NewRouter(svcs, handler.Options{
		AuthDisabled:       cfg.AuthDisabled,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}, metrics, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTPTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
