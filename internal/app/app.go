package app

import (
	"context"
	"fmt"
	"time"

	"github.com/srakestraw/gravyty-enablement-sub006/internal/config"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/core"
	db "github.com/srakestraw/gravyty-enablement-sub006/internal/core/database"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/core/ingestion_engine"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/core/llm"
	objectclient "github.com/srakestraw/gravyty-enablement-sub006/internal/core/object-client"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/core/search"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/pkg/logger"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/queue"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/telemetry"
)

type App struct {
	Store    *db.DocumentStore
	Consumer *queue.Consumer
	Server   *Server
	Log      *logger.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	setupCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	store, err := db.NewDocumentStore(setupCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("document store: %w", err)
	}
	log.Info("document store initialized")

	objClient, err := objectclient.NewS3Client(setupCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("object client: %w", err)
	}

	var embedder core.EmbeddingProvider
	switch cfg.EmbedProvider {
	case "gemini":
		embedder, err = llm.NewGeminiEmbedder(setupCtx, cfg.GeminiAPIKey, cfg.EmbedModel)
	default:
		embedder, err = llm.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("embedder (%s): %w", cfg.EmbedProvider, err)
	}

	index, err := search.NewIndexWriter(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("index writer: %w", err)
	}

	var emitter telemetry.Emitter = &telemetry.LogEmitter{Log: log}
	if cfg.TelemetryWebhookURL != "" {
		emitter = telemetry.NewWebhookEmitter(cfg.TelemetryWebhookURL)
	}

	ingestCfg := ingestion_engine.IngestConfigFromEnv(cfg)
	extractor := ingestion_engine.NewDocumentExtractor(objClient, ingestCfg, log)
	ingestor := ingestion_engine.NewDocumentIngestor(store, embedder, extractor, index, emitter, ingestCfg, log)

	sqsClient, err := queue.NewSQSClient(setupCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sqs client: %w", err)
	}
	consumer := queue.NewConsumer(sqsClient, cfg.QueueURL, ingestor, cfg.Workers, log)
	publisher := queue.NewPublisher(sqsClient, cfg.QueueURL)

	server := NewServer(cfg, store, publisher, log)

	return &App{Store: store, Consumer: consumer, Server: server, Log: log}, nil
}

// Run starts the queue workers and the ops HTTP server, then blocks until
// ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	go a.Server.Start()

	err := a.Consumer.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = a.Server.Shutdown(shutdownCtx)

	return err
}

func (a *App) Close() {
	if a.Store != nil {
		a.Store.Close()
	}
}
