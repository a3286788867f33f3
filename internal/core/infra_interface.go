package core

import (
	"context"
	"time"

	"github.com/srakestraw/gravyty-enablement-sub006/internal/models"
)

// DocumentStore defines all persistence operations the pipeline needs.
// It abstracts Postgres so higher layers never depend on a specific DB.
type DocumentStore interface {
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	SetDocumentStatus(ctx context.Context, id string, status string) error

	// MarkDocumentFailed records the terminal failure: status, classification
	// code, truncated message, error timestamp and a zero chunk count.
	MarkDocumentFailed(ctx context.Context, id string, code ErrorCode, message string) error

	// MarkDocumentReady records the terminal success: status, chunk count,
	// extraction metadata, cleared error fields and the ingest timestamp.
	MarkDocumentReady(ctx context.Context, id string, result IngestResult) error

	GetTranscriptByID(ctx context.Context, id string) (*models.Transcript, error)
	GetLessonMeta(ctx context.Context, lessonID string) (*models.LessonMeta, error)
}

// IngestResult is what a successful pass persists back onto the document.
type IngestResult struct {
	ChunkCount         int
	ExtractedCharCount int
	ExtractedSource    string
	SnapshotPointer    string
	StoragePointer     string
	IngestedAt         time.Time
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
	DeleteFile(ctx context.Context, bucket, key string) error
}

// EmbeddingProvider turns one chunk of text into a fixed-dimension vector.
// Calls are independent; the orchestrator isolates failures per chunk.
type EmbeddingProvider interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the boundary to the backing search service.
type VectorIndex interface {
	// EnsureReady polls service health under bounded backoff until ready or
	// maxWait elapses, at which point it fails with OPENSEARCH_NOT_READY.
	EnsureReady(ctx context.Context, maxWait time.Duration) error

	// EnsureIndex creates the target index with its schema if missing.
	EnsureIndex(ctx context.Context) error

	// DeleteByDocID removes all prior entries for a document. Best effort:
	// callers log failures and proceed.
	DeleteByDocID(ctx context.Context, docID string) error

	// Upsert writes one entry, keyed by chunk_id, overwriting any previous
	// entry under the same key.
	Upsert(ctx context.Context, entry *models.VectorEntry) error
}
