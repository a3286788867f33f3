package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Env       string
	Port      string
	JWTSecret string

	DatabaseURL string

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	QueueURL     string

	OpenSearchURL      string
	OpenSearchIndex    string
	OpenSearchUser     string
	OpenSearchPassword string

	EmbedProvider string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string
	EmbedModel    string
	EmbedDim      int

	TelemetryWebhookURL string

	Workers int

	// Ingestion safety limits, in the units the pipeline uses
	// (estimated tokens, characters, milliseconds).
	ChunkTargetTokens  int
	ChunkOverlapTokens int
	ChunkMaxTokens     int
	MaxChunksPerDoc    int
	MaxTotalTokens     int
	MinExtractedChars  int
	SearchReadyMS      int
	FetchTimeoutMS     int
	EmbedTimeoutMS     int
}

// LoadConfig loads the environment variables and returns config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		Env:       getEnv("APP_ENV", "development"),
		Port:      getEnv("PORT", "8080"),
		JWTSecret: getEnv("JWT_SECRET", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("CONTENT_BUCKET", "enablement-content"),
		QueueURL:     getEnv("INGEST_QUEUE_URL", ""),

		OpenSearchURL:      getEnv("OPENSEARCH_URL", "http://localhost:9200"),
		OpenSearchIndex:    getEnv("OPENSEARCH_INDEX", "knowledge-chunks"),
		OpenSearchUser:     getEnv("OPENSEARCH_USER", ""),
		OpenSearchPassword: getEnv("OPENSEARCH_PASSWORD", ""),

		EmbedProvider: getEnv("EMBED_PROVIDER", "openai"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		EmbedModel:    getEnv("EMBED_MODEL", "text-embedding-3-small"),
		EmbedDim:      getEnvInt("EMBED_DIM", 1536),

		TelemetryWebhookURL: getEnv("TELEMETRY_WEBHOOK_URL", ""),

		Workers: getEnvInt("INGEST_WORKERS", 4),

		ChunkTargetTokens:  getEnvInt("CHUNK_TARGET_TOKENS", 600),
		ChunkOverlapTokens: getEnvInt("CHUNK_OVERLAP_TOKENS", 100),
		ChunkMaxTokens:     getEnvInt("CHUNK_MAX_TOKENS", 800),
		MaxChunksPerDoc:    getEnvInt("MAX_CHUNKS_PER_DOC", 200),
		MaxTotalTokens:     getEnvInt("MAX_TOTAL_TOKENS", 120000),
		MinExtractedChars:  getEnvInt("MIN_EXTRACTED_CHARS", 100),
		SearchReadyMS:      getEnvInt("SEARCH_READY_TIMEOUT_MS", 120000),
		FetchTimeoutMS:     getEnvInt("URL_FETCH_TIMEOUT_MS", 30000),
		EmbedTimeoutMS:     getEnvInt("EMBED_TIMEOUT_MS", 30000),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}
