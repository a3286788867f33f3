package ingestion_engine

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srakestraw/gravyty-enablement-sub006/internal/core"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/models"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/pkg/logger"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/telemetry"
)

type captureEmitter struct {
	events []telemetry.Event
}

func (c *captureEmitter) Emit(_ context.Context, ev telemetry.Event) error {
	c.events = append(c.events, ev)
	return nil
}

func (c *captureEmitter) names() []string {
	out := make([]string, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.Name)
	}
	return out
}

type pipelineHarness struct {
	store    *fakeStore
	obj      *fakeObjectClient
	index    *fakeIndex
	embedder *fakeEmbedder
	emitter  *captureEmitter
	cfg      *IngestConfig
	ingestor *Ingestor
}

func newPipelineHarness(t *testing.T, doc *models.Document) *pipelineHarness {
	t.Helper()
	h := &pipelineHarness{
		store:    newFakeStore(doc),
		obj:      newFakeObjectClient(),
		index:    newFakeIndex(),
		embedder: &fakeEmbedder{},
		emitter:  &captureEmitter{},
		cfg:      DefaultIngestConfig(),
	}
	h.cfg.Bucket = "test-bucket"
	h.rebuild()
	return h
}

func (h *pipelineHarness) rebuild() {
	log := logger.NewNop()
	extractor := NewDocumentExtractor(h.obj, h.cfg, log)
	h.ingestor = NewDocumentIngestor(h.store, h.embedder, extractor, h.index, h.emitter, h.cfg, log)
}

func (h *pipelineHarness) putText(t *testing.T, key, text string) {
	t.Helper()
	require.NoError(t, h.obj.UploadFile(context.Background(), h.cfg.Bucket, key, []byte(text), "text/plain"))
}

// threeChunkText yields exactly three chunks at default sizing: break-free
// text walks in strides of target minus overlap.
func threeChunkText() string {
	return strings.Repeat("a", 6400)
}

func storedTextDoc(id string) *models.Document {
	return &models.Document{
		ID:             id,
		SourceType:     models.SourceStoredText,
		Status:         models.StatusQueued,
		StoragePointer: "docs/" + id + ".txt",
		Title:          "How to configure gift imports",
		Tags:           []string{"gifts", "imports"},
		ProductSuite:   "advancement",
		ProductConcept: "gift-import",
	}
}

func TestIngestDocumentHappyPath(t *testing.T) {
	doc := storedTextDoc("d1")
	h := newPipelineHarness(t, doc)
	h.putText(t, doc.StoragePointer, threeChunkText())

	err := h.ingestor.IngestDocument(context.Background(), models.IngestMessage{DocID: "d1"})

	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, h.store.doc.Status)
	assert.Equal(t, 3, h.store.doc.ChunkCount)
	assert.Equal(t, ExtractedFromStoredText, h.store.doc.ExtractedSource)
	assert.Equal(t, []string{models.StatusIngesting}, h.store.statusUpdates)
	assert.Equal(t, []string{telemetry.EventIngestionStarted, telemetry.EventIngestionCompleted}, h.emitter.names())
	assert.Len(t, h.index.entries, 3)

	entry, ok := h.index.entries[models.ChunkID("d1", 0)]
	require.True(t, ok)
	assert.Equal(t, "d1", entry.DocID)
	assert.Equal(t, doc.Title, entry.Title)
	assert.Equal(t, doc.Tags, entry.Tags)
	assert.Equal(t, h.cfg.EmbedModel, entry.EmbeddingModel)
	assert.Equal(t, doc.StoragePointer, entry.SourcePointer)
}

func TestIngestDocumentUnknownIDIsSkipped(t *testing.T) {
	h := newPipelineHarness(t, nil)

	err := h.ingestor.IngestDocument(context.Background(), models.IngestMessage{DocID: "ghost"})

	require.NoError(t, err)
	assert.Empty(t, h.emitter.events)
	assert.Zero(t, h.embedder.calls)
}

func TestIngestDocumentExpiredIsRejectedUntouched(t *testing.T) {
	doc := storedTextDoc("d-exp")
	doc.Status = models.StatusExpired
	h := newPipelineHarness(t, doc)
	h.putText(t, doc.StoragePointer, threeChunkText())

	err := h.ingestor.IngestDocument(context.Background(), models.IngestMessage{DocID: "d-exp"})

	require.Error(t, err)
	assert.Equal(t, core.CodeConfiguration, core.CodeOf(err))
	assert.False(t, core.IsRetriable(err))
	// Rejected before anything happened: no events, no status writes, record intact.
	assert.Empty(t, h.emitter.events)
	assert.Empty(t, h.store.statusUpdates)
	assert.Equal(t, models.StatusExpired, h.store.doc.Status)
	assert.Zero(t, h.embedder.calls)
}

func TestIngestDocumentChunkCapFailsBeforeIndexing(t *testing.T) {
	doc := storedTextDoc("d-cap")
	h := newPipelineHarness(t, doc)
	h.cfg.MaxChunksPerDoc = 2
	h.putText(t, doc.StoragePointer, threeChunkText())

	err := h.ingestor.IngestDocument(context.Background(), models.IngestMessage{DocID: "d-cap"})

	require.Error(t, err)
	assert.Equal(t, core.CodeDocumentTooLarge, core.CodeOf(err))
	assert.Equal(t, models.StatusFailed, h.store.doc.Status)
	assert.Equal(t, 0, h.store.doc.ChunkCount)
	assert.Equal(t, core.CodeDocumentTooLarge, h.store.failedCode)
	assert.Empty(t, h.index.entries)
	assert.Zero(t, h.embedder.calls)
	assert.Equal(t, []string{telemetry.EventIngestionStarted, telemetry.EventIngestionFailed}, h.emitter.names())
}

func TestIngestDocumentTokenCapFailsBeforeIndexing(t *testing.T) {
	doc := storedTextDoc("d-tok")
	h := newPipelineHarness(t, doc)
	h.cfg.MaxTotalTokens = 100
	h.putText(t, doc.StoragePointer, threeChunkText())

	err := h.ingestor.IngestDocument(context.Background(), models.IngestMessage{DocID: "d-tok"})

	require.Error(t, err)
	assert.Equal(t, core.CodeDocumentTooLarge, core.CodeOf(err))
	assert.Empty(t, h.index.entries)
}

func TestIngestDocumentToleratesPartialChunkFailure(t *testing.T) {
	doc := storedTextDoc("d-part")
	h := newPipelineHarness(t, doc)
	h.putText(t, doc.StoragePointer, threeChunkText())

	call := 0
	h.embedder.failOn = func(string) bool {
		call++
		return call == 2
	}

	err := h.ingestor.IngestDocument(context.Background(), models.IngestMessage{DocID: "d-part"})

	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, h.store.doc.Status)
	assert.Equal(t, 2, h.store.doc.ChunkCount)
	assert.Len(t, h.index.entries, 2)
	_, hasSecond := h.index.entries[models.ChunkID("d-part", 1)]
	assert.False(t, hasSecond)
}

func TestIngestDocumentReindexSupersedesOldEntries(t *testing.T) {
	doc := storedTextDoc("d-re")
	h := newPipelineHarness(t, doc)
	h.putText(t, doc.StoragePointer, threeChunkText())

	require.NoError(t, h.ingestor.IngestDocument(context.Background(), models.IngestMessage{DocID: "d-re"}))
	require.Len(t, h.index.entries, 3)

	// Shorter revision: one chunk. Stale entries must not survive.
	h.putText(t, doc.StoragePointer, strings.Repeat("b", 900))
	require.NoError(t, h.ingestor.IngestDocument(context.Background(), models.IngestMessage{DocID: "d-re", Reindex: true}))

	assert.Equal(t, []string{"d-re"}, h.index.deletes)
	assert.Len(t, h.index.entries, 1)
	entry := h.index.entries[models.ChunkID("d-re", 0)]
	require.NotNil(t, entry)
	assert.Equal(t, strings.Repeat("b", 900), entry.Text)
	assert.Equal(t, 1, h.store.doc.ChunkCount)
}

func TestIngestDocumentSearchNotReadyIsRetriable(t *testing.T) {
	doc := storedTextDoc("d-osr")
	h := newPipelineHarness(t, doc)
	h.putText(t, doc.StoragePointer, threeChunkText())
	h.index.readyErr = core.NewError(core.CodeSearchNotReady, "cluster never answered")

	err := h.ingestor.IngestDocument(context.Background(), models.IngestMessage{DocID: "d-osr"})

	require.Error(t, err)
	assert.Equal(t, core.CodeSearchNotReady, core.CodeOf(err))
	assert.True(t, core.IsRetriable(err))
	assert.Equal(t, models.StatusFailed, h.store.doc.Status)
	assert.Equal(t, core.CodeSearchNotReady, h.store.failedCode)
	assert.Empty(t, h.index.entries)
}

func TestIngestDocumentPanicBecomesProcessingError(t *testing.T) {
	doc := storedTextDoc("d-panic")
	h := newPipelineHarness(t, doc)
	h.putText(t, doc.StoragePointer, threeChunkText())
	h.index.ensureErr = nil
	h.index.upsertErr = func(*models.VectorEntry) error { panic("index client blew up") }

	err := h.ingestor.IngestDocument(context.Background(), models.IngestMessage{DocID: "d-panic"})

	require.Error(t, err)
	assert.Equal(t, core.CodeProcessing, core.CodeOf(err))
	assert.Equal(t, models.StatusFailed, h.store.doc.Status)
	assert.Contains(t, h.store.failedMessage, "panic")
}

func TestIngestDocumentUnsupportedSourceFailsDocument(t *testing.T) {
	doc := storedTextDoc("d-bad")
	doc.SourceType = "ftp_drop"
	h := newPipelineHarness(t, doc)

	err := h.ingestor.IngestDocument(context.Background(), models.IngestMessage{DocID: "d-bad"})

	require.Error(t, err)
	assert.Equal(t, core.CodeUnsupportedSource, core.CodeOf(err))
	assert.Equal(t, models.StatusFailed, h.store.doc.Status)
	assert.Equal(t, string(core.CodeUnsupportedSource), h.store.doc.LastErrorCode)
}
