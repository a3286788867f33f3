package ingestion_engine

import (
	"context"
	"fmt"
	"time"

	"github.com/srakestraw/gravyty-enablement-sub006/internal/core"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/models"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/pkg/logger"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/telemetry"
)

// Ingestor drives the extract → chunk → embed → index pipeline for one
// queue message at a time and owns the document's lifecycle state.
type Ingestor struct {
	db        core.DocumentStore
	embedder  core.EmbeddingProvider
	extractor *DocumentExtractor
	index     core.VectorIndex
	emitter   telemetry.Emitter
	cfg       *IngestConfig
	log       *logger.Logger
}

func NewDocumentIngestor(
	db core.DocumentStore,
	embedder core.EmbeddingProvider,
	extractor *DocumentExtractor,
	index core.VectorIndex,
	emitter telemetry.Emitter,
	cfg *IngestConfig,
	log *logger.Logger,
) *Ingestor {
	return &Ingestor{
		db:        db,
		embedder:  embedder,
		extractor: extractor,
		index:     index,
		emitter:   emitter,
		cfg:       cfg,
		log:       log.With("component", "Ingestor"),
	}
}

// pipelineOutcome is what a successful pass hands back for persistence and
// telemetry.
type pipelineOutcome struct {
	result     core.IngestResult
	chunkTotal int
	embedTime  time.Duration
}

// IngestDocument runs the full pipeline for one document message. The
// returned error carries the failure classification; the queue layer
// consults it to decide between redelivery and dropping the message.
func (ing *Ingestor) IngestDocument(ctx context.Context, msg models.IngestMessage) error {
	log := ing.log.With("doc_id", msg.DocID)

	doc, err := ing.db.GetDocumentByID(ctx, msg.DocID)
	if err != nil {
		return core.WrapError(core.CodeProcessing, fmt.Errorf("load document: %w", err))
	}
	if doc == nil {
		log.Warn("unknown document, skipping")
		return nil
	}

	// Expired is terminal. Reject before any mutation, stored or emitted.
	if doc.Status == models.StatusExpired {
		return core.NewError(core.CodeConfiguration,
			"document %s is expired and cannot be ingested", doc.ID)
	}

	started := time.Now()
	ing.emit(ctx, telemetry.NewEvent(telemetry.EventIngestionStarted, doc.ID))

	outcome, err := ing.runPipeline(ctx, doc, msg, log)
	if err != nil {
		classified := core.Classify(err)
		if merr := ing.db.MarkDocumentFailed(ctx, doc.ID, classified.Code, classified.Error()); merr != nil {
			log.Error("failed to persist failure status", "error", merr)
		}

		ev := telemetry.NewEvent(telemetry.EventIngestionFailed, doc.ID)
		ev.Code = string(classified.Code)
		ev.Message = core.TruncateMessage(classified.Error())
		ev.DurationMS = time.Since(started).Milliseconds()
		ing.emit(ctx, ev)

		log.Warn("ingestion failed", "code", classified.Code, "error", classified.Err)
		return classified
	}

	outcome.result.IngestedAt = time.Now()
	if err := ing.db.MarkDocumentReady(ctx, doc.ID, outcome.result); err != nil {
		return core.WrapError(core.CodeProcessing, fmt.Errorf("persist ready status: %w", err))
	}

	ev := telemetry.NewEvent(telemetry.EventIngestionCompleted, doc.ID)
	ev.DurationMS = time.Since(started).Milliseconds()
	ev.ChunkCount = outcome.result.ChunkCount
	ev.EmbedMS = outcome.embedTime.Milliseconds()
	ing.emit(ctx, ev)

	log.Info("ingestion completed",
		"chunks_indexed", outcome.result.ChunkCount,
		"chunks_total", outcome.chunkTotal,
		"duration_ms", ev.DurationMS)
	return nil
}

// runPipeline performs steps 2–8 of the lifecycle. A panic anywhere inside
// is converted to a processing error so the document still lands in Failed.
func (ing *Ingestor) runPipeline(ctx context.Context, doc *models.Document, msg models.IngestMessage, log *logger.Logger) (out pipelineOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = core.NewError(core.CodeProcessing, "panic during ingestion of %s: %v", doc.ID, r)
		}
	}()

	// A reindex pass supersedes the previous one: delete stale entries
	// first, best effort.
	if msg.Reindex {
		if derr := ing.index.DeleteByDocID(ctx, doc.ID); derr != nil {
			log.Warn("stale vector delete failed, continuing", "error", derr)
		}
	}

	if serr := ing.db.SetDocumentStatus(ctx, doc.ID, models.StatusIngesting); serr != nil {
		return out, core.WrapError(core.CodeProcessing, fmt.Errorf("set ingesting status: %w", serr))
	}

	extracted, err := ing.extractor.Extract(ctx, doc)
	if err != nil {
		return out, err
	}

	chunks := ChunkText(extracted.Text, ing.cfg)
	if len(chunks) == 0 {
		return out, core.NewError(core.CodeProcessing, "chunking produced nothing for document %s", doc.ID)
	}
	if len(chunks) > ing.cfg.MaxChunksPerDoc {
		return out, core.NewError(core.CodeDocumentTooLarge,
			"document %s yields %d chunks (max %d)", doc.ID, len(chunks), ing.cfg.MaxChunksPerDoc)
	}
	if total := TotalTokens(chunks); total > ing.cfg.MaxTotalTokens {
		return out, core.NewError(core.CodeDocumentTooLarge,
			"document %s holds ~%d tokens (max %d)", doc.ID, total, ing.cfg.MaxTotalTokens)
	}

	if err := ing.index.EnsureReady(ctx, ing.cfg.SearchReadyTimeout); err != nil {
		return out, err
	}
	if err := ing.index.EnsureIndex(ctx); err != nil {
		return out, core.WrapError(core.CodeProcessing, fmt.Errorf("ensure index: %w", err))
	}

	// Chunks are embedded and indexed strictly in text order. A failure for
	// one chunk is logged and skipped; it never fails the document.
	embedStart := time.Now()
	sourcePointer := doc.StoragePointer
	if sourcePointer == "" {
		sourcePointer = extracted.StoragePointer
	}
	indexed := 0
	for _, c := range chunks {
		if cerr := ing.embedAndIndexChunk(ctx, doc, c, sourcePointer); cerr != nil {
			log.Warn("chunk failed, continuing", "chunk", c.Index, "error", cerr)
			continue
		}
		indexed++
	}

	out.chunkTotal = len(chunks)
	out.embedTime = time.Since(embedStart)
	out.result = core.IngestResult{
		ChunkCount:         indexed,
		ExtractedCharCount: extracted.CharCount,
		ExtractedSource:    extracted.Source,
		SnapshotPointer:    extracted.SnapshotPointer,
		StoragePointer:     extracted.StoragePointer,
	}
	return out, nil
}

func (ing *Ingestor) embedAndIndexChunk(ctx context.Context, doc *models.Document, c models.Chunk, sourcePointer string) error {
	embedCtx, cancel := context.WithTimeout(ctx, ing.cfg.EmbedTimeout)
	defer cancel()

	vec, err := ing.embedder.EmbedText(embedCtx, c.Text)
	if err != nil {
		return fmt.Errorf("embed chunk %d: %w", c.Index, err)
	}

	entry := &models.VectorEntry{
		DocID:          doc.ID,
		ChunkID:        models.ChunkID(doc.ID, c.Index),
		Text:           c.Text,
		Title:          doc.Title,
		Tags:           doc.Tags,
		ProductSuite:   doc.ProductSuite,
		ProductConcept: doc.ProductConcept,
		Embedding:      vec,
		EmbeddingModel: ing.cfg.EmbedModel,
		SourcePointer:  sourcePointer,
		StartOffset:    c.StartOffset,
		EndOffset:      c.EndOffset,
		TokenCount:     c.TokenCount,
		CreatedAt:      time.Now().UTC(),
	}
	if err := ing.index.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("upsert chunk %d: %w", c.Index, err)
	}
	return nil
}

// emit delivers a telemetry event, swallowing failures: telemetry never
// fails the pipeline.
func (ing *Ingestor) emit(ctx context.Context, ev telemetry.Event) {
	if err := ing.emitter.Emit(ctx, ev); err != nil {
		ing.log.Warn("telemetry emit failed", "event", ev.Name, "error", err)
	}
}
