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

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/fiscalassistant/internal/config"
	"github.com/nikhilbhutani/fiscalassistant/internal/database"
	"github.com/nikhilbhutani/fiscalassistant/internal/document"
	"github.com/nikhilbhutani/fiscalassistant/internal/logging"
	"github.com/nikhilbhutani/fiscalassistant/internal/metrics"
	"github.com/nikhilbhutani/fiscalassistant/internal/queue"
	"github.com/nikhilbhutani/fiscalassistant/internal/queue/workers"
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
	slog.SetDefault(logging.New("fiscal-worker", cfg.LogLevel))

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
	records := postgres.New(database.SQLDB(pool))

	// an unavailable store fails every job instead of stopping the worker
	var blobs storage.Storage
	if s, err := storage.New(ctx, cfg.Storage); err != nil {
		slog.Warn("document storage unavailable", "backend", cfg.Storage.Backend, "error", err)
	} else {
		blobs = s
	}

	ocr := document.NewOCRService(cfg.OCR.TesseractPath, cfg.OCR.Language)
	if !ocr.IsAvailable(ctx) {
		slog.Warn("tesseract not found, image documents will fail", "path", cfg.OCR.TesseractPath)
	}

	queueClient := queue.NewClient(cfg.Redis)
	defer queueClient.Close()

	workerMetrics := metrics.NewWorkerMetrics("fiscal-worker")
	processor := document.NewProcessor(
		document.NewService(records, blobs, queueClient),
		document.NewTextRecognizer(ocr),
		workerMetrics,
	)

	metricsSrv := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("starting worker metrics server", "addr", cfg.Worker.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()

	srv := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues:      queue.Queues,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				// every attempt is already logged by the registry; flag only the last one
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				if retried < maxRetry && !errors.Is(err, asynq.SkipRetry) {
					return
				}
				slog.Error("task archived",
					"type", task.Type(),
					"retry", retried,
					"max_retry", maxRetry,
					"error", err,
				)
			}),
		},
	)

	registry := queue.NewHandlersRegistry()
	registry.Register(queue.TypeDocumentOCR, asynq.HandlerFunc(workers.NewOCRWorker(processor).ProcessTask))

	slog.Info("starting worker", "concurrency", cfg.Worker.Concurrency, "task_types", registry.Types())
	if err := srv.Start(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	slog.Info("shutting down worker...")
	srv.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server forced shutdown", "error", err)
	}
	slog.Info("worker stopped")
}
