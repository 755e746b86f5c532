package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/knoguchi/comparank/internal/app"
	"github.com/knoguchi/comparank/internal/auth"
	"github.com/knoguchi/comparank/internal/config"
	"github.com/knoguchi/comparank/internal/embedder"
	"github.com/knoguchi/comparank/internal/llm"
	"github.com/knoguchi/comparank/internal/repository"
	"github.com/knoguchi/comparank/internal/repository/postgres"
	"github.com/knoguchi/comparank/internal/search"
	"github.com/knoguchi/comparank/internal/server"
	"github.com/knoguchi/comparank/internal/service"
	"github.com/knoguchi/comparank/internal/tagging"
	"github.com/knoguchi/comparank/internal/vectorstore"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Set up structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("starting re-ranking service",
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
		"search", cfg.SearchBackend,
		"rerankers", cfg.Rerankers,
	)
	if cfg.AdminAPIKey == "" {
		slog.Warn("ADMIN_API_KEY is empty, tokens cannot be issued")
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	slog.Info("loaded passage index", "passages", a.Index.DocumentCount())

	jwtConfig := auth.DefaultJWTConfig(cfg.JWTSecret)
	jwtConfig.Expiry = cfg.JWTExpiry
	jwtManager := auth.NewJWTManager(jwtConfig)

	httpServer, err := server.NewHTTPServer(server.HTTPServerConfig{
		Port:           cfg.HTTPPort,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
		Service:        a.Pipeline,
		JWT:            jwtManager,
		AdminAPIKey:    cfg.AdminAPIKey,
		Checks:         a.Checks(),
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

// Ensure interfaces are satisfied at compile time
var (
	_ repository.PassageRepository = (*postgres.PassageRepo)(nil)
	_ repository.ScoreRepository   = (*postgres.ScoreRepo)(nil)
	_ vectorstore.VectorStore      = (*vectorstore.QdrantStore)(nil)
	_ embedder.Embedder            = (*embedder.OllamaEmbedder)(nil)
	_ llm.LLM                      = (*llm.OllamaClient)(nil)
	_ search.Searcher              = (*search.Dense)(nil)
	_ tagging.ArgumentTagger       = (*tagging.TargerClient)(nil)
	_ tagging.SentenceScorer       = (*tagging.CachedScorer)(nil)
	_ server.Service               = (*service.Pipeline)(nil)
)
