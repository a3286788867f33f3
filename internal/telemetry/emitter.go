package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/srakestraw/gravyty-enablement-sub006/internal/pkg/logger"
)

// Lifecycle event names.
const (
	EventIngestionStarted   = "ingestion.started"
	EventIngestionCompleted = "ingestion.completed"
	EventIngestionFailed    = "ingestion.failed"
)

// Actor recorded on every event the pipeline emits.
const SystemActor = "system:ingestd"

// Event is one lifecycle telemetry record. Emission is fire-and-forget:
// failures are logged by the caller and never fail the pipeline.
type Event struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	DocID      string    `json:"doc_id"`
	Actor      string    `json:"actor"`
	Code       string    `json:"code,omitempty"`
	Message    string    `json:"message,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	ChunkCount int       `json:"chunk_count,omitempty"`
	EmbedMS    int64     `json:"embed_ms,omitempty"`
	At         time.Time `json:"at"`
}

// NewEvent fills the fields every event carries.
func NewEvent(name, docID string) Event {
	return Event{
		ID:    uuid.NewString(),
		Name:  name,
		DocID: docID,
		Actor: SystemActor,
		At:    time.Now().UTC(),
	}
}

// Emitter delivers lifecycle events somewhere useful.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

// NoopEmitter drops everything. Used in tests.
type NoopEmitter struct{}

func (NoopEmitter) Emit(context.Context, Event) error { return nil }

// LogEmitter writes events to the structured log.
type LogEmitter struct {
	Log *logger.Logger
}

func (e *LogEmitter) Emit(_ context.Context, ev Event) error {
	e.Log.Info("telemetry",
		"event", ev.Name, "doc_id", ev.DocID, "actor", ev.Actor,
		"code", ev.Code, "duration_ms", ev.DurationMS, "chunk_count", ev.ChunkCount)
	return nil
}

// WebhookEmitter posts events as JSON to an internal events endpoint.
type WebhookEmitter struct {
	URL    string
	Client *http.Client
}

func NewWebhookEmitter(url string) *WebhookEmitter {
	return &WebhookEmitter{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (e *WebhookEmitter) Emit(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("telemetry webhook returned %d", resp.StatusCode)
	}
	return nil
}
