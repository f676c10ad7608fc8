package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eternisai/agentic-research/internal/api"
	"github.com/eternisai/agentic-research/internal/config"
	"github.com/eternisai/agentic-research/internal/crawl"
	"github.com/eternisai/agentic-research/internal/logger"
	"github.com/eternisai/agentic-research/internal/report"
	"github.com/eternisai/agentic-research/internal/research"
	"github.com/eternisai/agentic-research/internal/search"
	"github.com/gin-gonic/gin"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig

	log := logger.New(logger.FromConfig(cfg.LogLevel, cfg.LogFormat))

	log.Info("setting gin mode", slog.String("mode", cfg.GinMode))
	gin.SetMode(cfg.GinMode)

	cache, err := research.NewPrefixCache(context.Background(), cfg, log)
	if err != nil {
		log.Error("failed to initialize prefix cache", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if closer, ok := cache.(interface{ Close() error }); ok {
		defer closer.Close() //nolint:errcheck
	}

	// Initialize stages
	searchService := search.NewService(cfg, log)
	crawler := crawl.NewCrawler(cfg, log)
	synthesizer := report.NewSynthesizer(cfg, log)
	fetcher := research.NewHTTPFetcher(cfg)

	pipeline := research.NewPipeline(searchService, crawler, cache, cfg.Pipeline, log)
	orchestrator := research.NewOrchestrator(pipeline, synthesizer, log)
	archiver := research.NewArchiver(pipeline, fetcher, cfg.DocumentFetchConcurrency, log)

	handler := api.NewHandler(orchestrator, archiver, cfg.OperationTimeout, log)
	router := api.NewRouter(cfg, handler, log)

	port := ":" + cfg.Port
	srv := &http.Server{
		Addr:              port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("research server listening",
		slog.String("addr", port),
		slog.String("search_provider", cfg.SearchProvider),
		slog.Bool("premium_synthesis", cfg.OpenAIAPIKey != ""),
		slog.String("cache_backend", cfg.CacheBackend),
		slog.Bool("dedupe_seeds", cfg.Pipeline.DedupeSeeds),
		slog.Duration("operation_timeout", cfg.OperationTimeout))

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", slog.String("error", err.Error()))
		fmt.Fprintln(os.Stderr, err)
		return
	}

	log.Info("server exited")
}
