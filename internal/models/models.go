package models

import (
	"fmt"
	"time"
)

// Document lifecycle states. Queued is the explicit initial state; Expired is
// terminal and permanently blocks ingestion.
const (
	StatusQueued    = "queued"
	StatusIngesting = "ingesting"
	StatusReady     = "ready"
	StatusFailed    = "failed"
	StatusExpired   = "expired"
)

// Document source kinds.
const (
	SourceStoredText = "stored_text"
	SourceStoredPDF  = "stored_pdf"
	SourceFetchedURL = "fetched_url"
)

// Document represents a source artifact being ingested into the knowledge base.
type Document struct {
	ID                 string     `db:"id" json:"id"`
	SourceType         string     `db:"source_type" json:"source_type"`
	Status             string     `db:"status" json:"status"`
	StoragePointer     string     `db:"storage_pointer" json:"storage_pointer"` // bucket key of the raw bytes
	SourceURL          string     `db:"source_url" json:"source_url,omitempty"` // set iff fetched_url
	Title              string     `db:"title" json:"title"`
	Tags               []string   `db:"tags" json:"tags"`
	ProductSuite       string     `db:"product_suite" json:"product_suite"`
	ProductConcept     string     `db:"product_concept" json:"product_concept"`
	ChunkCount         int        `db:"chunk_count" json:"chunk_count"`
	ExtractedCharCount int        `db:"extracted_char_count" json:"extracted_char_count"`
	ExtractedSource    string     `db:"extracted_source" json:"extracted_source"`
	SnapshotPointer    string     `db:"snapshot_pointer" json:"snapshot_pointer,omitempty"`
	LastErrorCode      string     `db:"last_error_code" json:"last_error_code,omitempty"`
	LastErrorMessage   string     `db:"last_error_message" json:"last_error_message,omitempty"`
	LastErrorAt        *time.Time `db:"last_error_at" json:"last_error_at,omitempty"`
	LastIngestAt       *time.Time `db:"last_ingest_at" json:"last_ingest_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// Chunk is one contiguous, overlap-bounded slice of a document's extracted
// text. Offsets point back into the extracted text the chunk was cut from.
type Chunk struct {
	Index       int    `json:"index"`
	Text        string `json:"text"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	TokenCount  int    `json:"token_count"`
}

// ChunkID derives the deterministic vector-entry key for a chunk ordinal.
// Re-ingestion regenerates the same ids, which is what makes upserts
// overwrite instead of duplicate.
func ChunkID(docID string, index int) string {
	return fmt.Sprintf("%s-%04d", docID, index)
}

// VectorEntry is the searchable unit written to the vector index, one per
// successfully embedded chunk.
type VectorEntry struct {
	DocID          string    `json:"doc_id"`
	ChunkID        string    `json:"chunk_id"`
	Text           string    `json:"text"`
	Title          string    `json:"title"`
	Tags           []string  `json:"tags,omitempty"`
	ProductSuite   string    `json:"product_suite,omitempty"`
	ProductConcept string    `json:"product_concept,omitempty"`
	Embedding      []float32 `json:"embedding"`

	// Chunk provenance: which model produced the embedding and where the
	// text came from in the extracted source.
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	SourcePointer  string    `json:"source_pointer,omitempty"`
	StartOffset    int       `json:"start_offset"`
	EndOffset      int       `json:"end_offset"`
	TokenCount     int       `json:"token_count,omitempty"`
	CreatedAt      time.Time `json:"created_at"`

	// Transcript-only enrichment.
	LessonID     string `json:"lesson_id,omitempty"`
	CourseID     string `json:"course_id,omitempty"`
	CourseTitle  string `json:"course_title,omitempty"`
	TranscriptID string `json:"transcript_id,omitempty"`
}

// Transcript is the full text of a lesson recording. No status machine;
// transcript ingestion is fire-and-forget per message.
type Transcript struct {
	ID        string    `db:"id" json:"id"`
	LessonID  string    `db:"lesson_id" json:"lesson_id"`
	Body      string    `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// LessonMeta carries the best-effort lesson/course titles used to enrich
// transcript vector entries.
type LessonMeta struct {
	LessonID    string `db:"lesson_id" json:"lesson_id"`
	LessonTitle string `db:"lesson_title" json:"lesson_title"`
	CourseID    string `db:"course_id" json:"course_id"`
	CourseTitle string `db:"course_title" json:"course_title"`
}

// IngestMessage is the inbound queue body, discriminated by Type.
// An empty Type means document ingestion.
type IngestMessage struct {
	Type         string `json:"type,omitempty"`
	DocID        string `json:"doc_id,omitempty"`
	Reindex      bool   `json:"reindex,omitempty"`
	Mode         string `json:"mode,omitempty"`
	TranscriptID string `json:"transcript_id,omitempty"`
	LessonID     string `json:"lesson_id,omitempty"`
}

const MessageTypeTranscript = "transcript"
