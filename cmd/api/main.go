// Package main starts the lexgate HTTP server: a resilient query
// gateway that dispatches legal queries to document retrieval and
// case-law search, merges the evidence and generates an answer.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lexgate/internal/config"
	hhttp "lexgate/internal/handler/http"
	"lexgate/internal/infra/cache"
	"lexgate/internal/infra/caselaw"
	"lexgate/internal/infra/generation"
	"lexgate/internal/infra/retrieval"
	"lexgate/internal/observability/logging"
	"lexgate/internal/resilience"
	"lexgate/internal/resilience/circuitbreaker"
	"lexgate/internal/usecase/query"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	cacheSvc := cache.NewService(cfg.CacheServiceConfig())
	defer func() {
		if closeErr := cacheSvc.Close(); closeErr != nil {
			logger.Error("failed to close cache", slog.Any("error", closeErr))
		}
	}()

	svc := buildService(cfg, cacheSvc, logger)
	handler := hhttp.NewRouter(svc, logger)

	runServer(cfg, handler, logger)
}

// buildService wires the query router with its collaborators: backend
// clients, the generation provider and the resilience composer.
func buildService(cfg *config.GatewayConfig, cacheSvc *cache.Service, logger *slog.Logger) *query.Service {
	generator, err := generation.New(cfg.GenerationFactoryConfig())
	if err != nil {
		logger.Error("failed to create generation provider", slog.Any("error", err))
		os.Exit(1)
	}

	composer := resilience.NewComposer(circuitbreaker.NewRegistry())

	return query.NewService(
		retrieval.NewClient(cfg.RetrievalClientConfig()),
		caselaw.NewClient(cfg.CaseLawClientConfig()),
		generator,
		cacheSvc,
		composer,
		cfg.Policies(),
		cfg.RouterServiceConfig(),
	)
}

// runServer starts the HTTP server and blocks until SIGINT or SIGTERM,
// then shuts down gracefully within the configured timeout.
func runServer(cfg *config.GatewayConfig, handler http.Handler, logger *slog.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second, // Slowloris guard
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", cfg.HTTPAddr),
			slog.String("provider", cfg.Generation.Provider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		if closeErr := srv.Close(); closeErr != nil {
			logger.Error("forced close failed", slog.Any("error", closeErr))
		}
	}

	logger.Info("server stopped")
}
