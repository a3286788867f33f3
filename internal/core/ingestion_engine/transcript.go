package ingestion_engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/srakestraw/gravyty-enablement-sub006/internal/core"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/models"
)

// IngestTranscript runs the transcript path: no status machine, success is
// the absence of an error back to the queue entry point.
func (ing *Ingestor) IngestTranscript(ctx context.Context, msg models.IngestMessage) error {
	log := ing.log.With("transcript_id", msg.TranscriptID, "lesson_id", msg.LessonID)

	transcript, err := ing.db.GetTranscriptByID(ctx, msg.TranscriptID)
	if err != nil {
		return core.WrapError(core.CodeProcessing, fmt.Errorf("load transcript: %w", err))
	}
	if transcript == nil {
		log.Warn("unknown transcript, skipping")
		return nil
	}

	body := strings.TrimSpace(transcript.Body)
	if len(body) < ing.cfg.MinExtractedChars {
		return core.NewError(core.CodeConfiguration,
			"transcript %s holds %d chars (minimum %d)", msg.TranscriptID, len(body), ing.cfg.MinExtractedChars)
	}

	// Metadata enrichment is best effort: a missing lesson or course never
	// aborts transcript ingestion.
	lessonTitle := "Lesson " + msg.LessonID
	courseID, courseTitle := "", ""
	meta, err := ing.db.GetLessonMeta(ctx, msg.LessonID)
	if err != nil {
		log.Warn("lesson metadata lookup failed, using defaults", "error", err)
	} else if meta != nil {
		if meta.LessonTitle != "" {
			lessonTitle = meta.LessonTitle
		}
		courseID = meta.CourseID
		courseTitle = meta.CourseTitle
	}

	chunks := ChunkText(body, ing.cfg)
	if len(chunks) == 0 {
		return core.NewError(core.CodeProcessing, "chunking produced nothing for transcript %s", msg.TranscriptID)
	}

	if err := ing.index.EnsureReady(ctx, ing.cfg.SearchReadyTimeout); err != nil {
		return err
	}
	if err := ing.index.EnsureIndex(ctx); err != nil {
		return core.WrapError(core.CodeProcessing, fmt.Errorf("ensure index: %w", err))
	}

	docID := "transcript:" + msg.TranscriptID
	indexed := 0
	for _, c := range chunks {
		if cerr := ing.embedAndIndexTranscriptChunk(ctx, docID, msg, lessonTitle, courseID, courseTitle, c); cerr != nil {
			log.Warn("transcript chunk failed, continuing", "chunk", c.Index, "error", cerr)
			continue
		}
		indexed++
	}

	log.Info("transcript ingested", "chunks_indexed", indexed, "chunks_total", len(chunks))
	return nil
}

func (ing *Ingestor) embedAndIndexTranscriptChunk(ctx context.Context, docID string, msg models.IngestMessage, lessonTitle, courseID, courseTitle string, c models.Chunk) error {
	embedCtx, cancel := context.WithTimeout(ctx, ing.cfg.EmbedTimeout)
	defer cancel()

	vec, err := ing.embedder.EmbedText(embedCtx, c.Text)
	if err != nil {
		return fmt.Errorf("embed chunk %d: %w", c.Index, err)
	}

	entry := &models.VectorEntry{
		DocID:          docID,
		ChunkID:        models.ChunkID(docID, c.Index),
		Text:           c.Text,
		Title:          lessonTitle,
		Embedding:      vec,
		EmbeddingModel: ing.cfg.EmbedModel,
		StartOffset:    c.StartOffset,
		EndOffset:      c.EndOffset,
		TokenCount:     c.TokenCount,
		CreatedAt:      time.Now().UTC(),
		LessonID:       msg.LessonID,
		CourseID:       courseID,
		CourseTitle:    courseTitle,
		TranscriptID:   msg.TranscriptID,
	}
	if err := ing.index.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("upsert chunk %d: %w", c.Index, err)
	}
	return nil
}
