package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/fiscalassistant/internal/api"
	"github.com/nikhilbhutani/fiscalassistant/internal/api/middleware"
	"github.com/nikhilbhutani/fiscalassistant/internal/billing"
	"github.com/nikhilbhutani/fiscalassistant/internal/cache"
	"github.com/nikhilbhutani/fiscalassistant/internal/chat"
	"github.com/nikhilbhutani/fiscalassistant/internal/config"
	"github.com/nikhilbhutani/fiscalassistant/internal/database"
	"github.com/nikhilbhutani/fiscalassistant/internal/document"
	"github.com/nikhilbhutani/fiscalassistant/internal/llm"
	"github.com/nikhilbhutani/fiscalassistant/internal/logging"
	"github.com/nikhilbhutani/fiscalassistant/internal/metrics"
	"github.com/nikhilbhutani/fiscalassistant/internal/queue"
	"github.com/nikhilbhutani/fiscalassistant/internal/retrieval"
	"github.com/nikhilbhutani/fiscalassistant/internal/storage"
	"github.com/nikhilbhutani/fiscalassistant/internal/store/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.New("fiscal-api", cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, cfg.Database.MigrationsPath); err != nil {
		slog.Error("migrations failed", "error", err)
		os.Exit(1)
	}
	records := postgres.New(database.SQLDB(pool))

	rdb := cache.NewRedisClient(cfg.Redis)
	defer rdb.Close()
	summaries := cache.NewCache(rdb, "fiscal")
	if err := summaries.Ping(ctx); err != nil {
		slog.Warn("redis unavailable, billing summaries will not be cached and uploads cannot be queued", "error", err)
	}

	// storage problems disable uploads but keep the API up
	var blobs storage.Storage
	if s, err := storage.New(ctx, cfg.Storage); err != nil {
		slog.Warn("document storage unavailable, uploads disabled", "backend", cfg.Storage.Backend, "error", err)
	} else {
		blobs = s
		slog.Info("document storage ready", "backend", cfg.Storage.Backend, "bucket", cfg.Storage.Bucket, "available", s.Available())
	}

	queueClient := queue.NewClient(cfg.Redis)
	defer queueClient.Close()

	gateway := llm.NewGateway(cfg.LLM)
	if !gateway.Configured() {
		slog.Warn("no LLM provider configured, chat will answer with an apology")
	}

	httpMetrics := metrics.NewHTTPServerMetrics("fiscal-api")
	ledger := billing.NewLedger(records, summaries)
	orchestrator := chat.NewOrchestrator(
		records,
		retrieval.NewRanker(records),
		llm.NewCompleter(gateway),
		ledger,
		httpMetrics,
		chat.Options{Timeout: cfg.Chat.Timeout, TopK: cfg.Chat.TopK},
	)

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	go limiter.Run(ctx)

	router := api.NewRouter(cfg, api.Deps{
		DB:          pool,
		Redis:       summaries,
		Storage:     blobs,
		Documents:   document.NewService(records, blobs, queueClient),
		Chat:        orchestrator,
		Ledger:      ledger,
		Metrics:     httpMetrics,
		RateLimiter: limiter,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Chat.Timeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
