package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/srakestraw/gravyty-enablement-sub006/internal/config"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/core"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/models"
)

type DocumentStore struct {
	pool *pgxpool.Pool
}

var _ core.DocumentStore = (*DocumentStore)(nil)

func NewDocumentStore(ctx context.Context, cfg *config.Config) (*DocumentStore, error) {
	if cfg == nil || cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	poolCfg.MaxConns = 20
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DocumentStore{pool: pool}, nil
}

func (s *DocumentStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const documentColumns = `
	id, source_type, status, storage_pointer, source_url, title, tags,
	product_suite, product_concept, chunk_count, extracted_char_count,
	extracted_source, snapshot_pointer, last_error_code, last_error_message,
	last_error_at, last_ingest_at, created_at, updated_at`

func (s *DocumentStore) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	q := `SELECT` + documentColumns + ` FROM documents WHERE id = $1`

	var d models.Document
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&d.ID, &d.SourceType, &d.Status, &d.StoragePointer, &d.SourceURL, &d.Title, &d.Tags,
		&d.ProductSuite, &d.ProductConcept, &d.ChunkCount, &d.ExtractedCharCount,
		&d.ExtractedSource, &d.SnapshotPointer, &d.LastErrorCode, &d.LastErrorMessage,
		&d.LastErrorAt, &d.LastIngestAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DocumentStore) SetDocumentStatus(ctx context.Context, id string, status string) error {
	const q = `UPDATE documents SET status = $2, updated_at = now() WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

func (s *DocumentStore) MarkDocumentFailed(ctx context.Context, id string, code core.ErrorCode, message string) error {
	const q = `
		UPDATE documents
		SET status = $2,
		    chunk_count = 0,
		    last_error_code = $3,
		    last_error_message = $4,
		    last_error_at = now(),
		    updated_at = now()
		WHERE id = $1
	`
	_, err := s.pool.Exec(ctx, q, id, models.StatusFailed, string(code), core.TruncateMessage(message))
	return err
}

func (s *DocumentStore) MarkDocumentReady(ctx context.Context, id string, result core.IngestResult) error {
	const q = `
		UPDATE documents
		SET status = $2,
		    chunk_count = $3,
		    extracted_char_count = $4,
		    extracted_source = $5,
		    snapshot_pointer = CASE WHEN $6 <> '' THEN $6 ELSE snapshot_pointer END,
		    storage_pointer = CASE WHEN storage_pointer = '' AND $7 <> '' THEN $7 ELSE storage_pointer END,
		    last_error_code = '',
		    last_error_message = '',
		    last_error_at = NULL,
		    last_ingest_at = $8,
		    updated_at = now()
		WHERE id = $1
	`
	_, err := s.pool.Exec(ctx, q, id, models.StatusReady,
		result.ChunkCount, result.ExtractedCharCount, result.ExtractedSource,
		result.SnapshotPointer, result.StoragePointer, result.IngestedAt)
	return err
}

func (s *DocumentStore) GetTranscriptByID(ctx context.Context, id string) (*models.Transcript, error) {
	const q = `SELECT id, lesson_id, body, created_at FROM transcripts WHERE id = $1`

	var t models.Transcript
	err := s.pool.QueryRow(ctx, q, id).Scan(&t.ID, &t.LessonID, &t.Body, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetLessonMeta resolves lesson and course titles for transcript enrichment.
// A missing lesson or course yields nil rather than an error; the caller
// falls back to defaults.
func (s *DocumentStore) GetLessonMeta(ctx context.Context, lessonID string) (*models.LessonMeta, error) {
	const q = `
		SELECT l.id, l.title, COALESCE(c.id, ''), COALESCE(c.title, '')
		FROM lessons l
		LEFT JOIN courses c ON c.id = l.course_id
		WHERE l.id = $1
	`
	var m models.LessonMeta
	err := s.pool.QueryRow(ctx, q, lessonID).Scan(&m.LessonID, &m.LessonTitle, &m.CourseID, &m.CourseTitle)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
