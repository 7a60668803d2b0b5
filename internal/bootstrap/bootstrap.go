package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/medvault/clinical-ingest/internal/config"
	"github.com/medvault/clinical-ingest/internal/core/ports"
	"github.com/medvault/clinical-ingest/internal/core/usecase"
	"github.com/medvault/clinical-ingest/internal/infrastructure/doctext"
	"github.com/medvault/clinical-ingest/internal/infrastructure/llm/gateway"
	"github.com/medvault/clinical-ingest/internal/infrastructure/queue/nats"
	"github.com/medvault/clinical-ingest/internal/infrastructure/repository/postgres"
	"github.com/medvault/clinical-ingest/internal/infrastructure/resilience"
	"github.com/medvault/clinical-ingest/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue       ports.MessageQueue
	Reports     ports.ReportRepository
	Extractions ports.ExtractionRepository
	Analyses    ports.AnalysisRepository

	IngestUC   ports.DocumentIngestor
	AnalysisUC ports.AnalysisRequester

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	reports := postgres.NewReportRepository(db)
	if err := reports.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	extractions := postgres.NewExtractionRepository(db)
	analyses := postgres.NewAnalysisRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	keywords, err := cfg.KeywordTable()
	if err != nil {
		return nil, fmt.Errorf("load keyword table: %w", err)
	}

	gatewayClient := gateway.New(gateway.Config{
		BaseURL:        cfg.AIGatewayURL,
		APIKey:         cfg.AIGatewayAPIKey,
		ClassifyModel:  cfg.ClassifyModel,
		ExtractModel:   cfg.ExtractModel,
		AnalyzeModel:   cfg.AnalyzeModel,
		RequestTimeout: time.Duration(cfg.AITimeoutSeconds) * time.Second,
		Executor:       executor,
	})
	classifier := gateway.NewClassifier(gatewayClient, keywords)
	extractor := gateway.NewExtractor(gatewayClient)
	analyzer := gateway.NewAnalyzer(gatewayClient)

	textSource := doctext.New()

	ingestUC := usecase.NewIngestDocumentUseCase(
		reports, extractions, storage, textSource, classifier, extractor, queue, cfg.MaxUploadBytes,
	)
	analysisUC := usecase.NewRequestAnalysisUseCase(
		analyses, extractions, analyzer, time.Duration(cfg.DedupWindowSeconds)*time.Second,
	)

	return &App{
		Config: cfg,

		Queue:       queue,
		Reports:     reports,
		Extractions: extractions,
		Analyses:    analyses,

		IngestUC:   ingestUC,
		AnalysisUC: analysisUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
