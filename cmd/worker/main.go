package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/medvault/clinical-ingest/internal/bootstrap"
	"github.com/medvault/clinical-ingest/internal/config"
	"github.com/medvault/clinical-ingest/internal/core/domain"
	"github.com/medvault/clinical-ingest/internal/observability/logging"
	"github.com/medvault/clinical-ingest/internal/observability/metrics"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("clinical-ingest-worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeReportProcessed(ctx, func(handlerCtx context.Context, event domain.ReportProcessedEvent) error {
		analysisCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		if !event.PublishedAt.IsZero() {
			workerMetrics.ObserveQueueLag("worker", time.Since(event.PublishedAt))
		}

		workerMetrics.StartAnalysis()
		start := time.Now()
		outcome, err := app.AnalysisUC.RequestAnalysis(analysisCtx, event.PatientID, domain.AnalysisRisk)
		skipped := outcome != nil && outcome.Skipped
		workerMetrics.FinishAnalysis("worker", time.Since(start), skipped, err)
		return err
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
