package ingestion_engine

import (
	"time"

	cfg "github.com/srakestraw/gravyty-enablement-sub006/internal/config"
)

// IngestConfig tunes the pipeline. It is immutable after construction and
// injected wherever limits apply, so tests can exercise alternate limits
// without touching the environment.
//
// TargetTokens / OverlapTokens / MaxTokens: chunk sizing in estimated tokens.
// MaxChunksPerDoc / MaxTotalTokens: safety caps; exceeding either fails the
// document with DOCUMENT_TOO_LARGE before anything is written.
// MinExtractedChars: below this, PDF extraction is treated as unreadable.
type IngestConfig struct {
	TargetTokens  int
	OverlapTokens int
	MaxTokens     int

	MaxChunksPerDoc int
	MaxTotalTokens  int

	MinExtractedChars int

	SearchReadyTimeout time.Duration
	FetchTimeout       time.Duration
	EmbedTimeout       time.Duration

	EmbedModel string
	Bucket     string
	UserAgent  string
}

func DefaultIngestConfig() *IngestConfig {
	return &IngestConfig{
		TargetTokens:       600,
		OverlapTokens:      100,
		MaxTokens:          800,
		MaxChunksPerDoc:    200,
		MaxTotalTokens:     120000,
		MinExtractedChars:  100,
		SearchReadyTimeout: 120 * time.Second,
		FetchTimeout:       30 * time.Second,
		EmbedTimeout:       30 * time.Second,
		EmbedModel:         "text-embedding-3-small",
		UserAgent:          "EnablementIngestBot/1.0 (+knowledge-base ingestion)",
	}
}

// IngestConfigFromEnv maps the loaded environment onto an IngestConfig.
func IngestConfigFromEnv(c *cfg.Config) *IngestConfig {
	ic := DefaultIngestConfig()
	ic.TargetTokens = c.ChunkTargetTokens
	ic.OverlapTokens = c.ChunkOverlapTokens
	ic.MaxTokens = c.ChunkMaxTokens
	ic.MaxChunksPerDoc = c.MaxChunksPerDoc
	ic.MaxTotalTokens = c.MaxTotalTokens
	ic.MinExtractedChars = c.MinExtractedChars
	ic.SearchReadyTimeout = time.Duration(c.SearchReadyMS) * time.Millisecond
	ic.FetchTimeout = time.Duration(c.FetchTimeoutMS) * time.Millisecond
	ic.EmbedTimeout = time.Duration(c.EmbedTimeoutMS) * time.Millisecond
	ic.EmbedModel = c.EmbedModel
	ic.Bucket = c.BucketName
	return ic
}
