package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/srakestraw/gravyty-enablement-sub006/internal/core"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/pkg/logger"
)

// ReindexPublisher enqueues a reindex request for a document.
type ReindexPublisher interface {
	PublishReindex(ctx context.Context, docID string) error
}

// DocumentHandler exposes the status-polling surface: the document's status
// and last-error fields are the only place failures become user visible.
type DocumentHandler struct {
	store     core.DocumentStore
	publisher ReindexPublisher
	log       *logger.Logger
}

func NewDocumentHandler(store core.DocumentStore, publisher ReindexPublisher, log *logger.Logger) *DocumentHandler {
	return &DocumentHandler{store: store, publisher: publisher, log: log.With("component", "DocumentHandler")}
}

// GetDocument returns the document record, including lifecycle status and
// last-error fields.
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc, err := h.store.GetDocumentByID(r.Context(), id)
	if err != nil {
		h.log.Error("document lookup failed", "doc_id", id, "error", err)
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if doc == nil {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}

// Reingest enqueues a reindex message for the document. The pipeline itself
// enforces the expired guard; this endpoint only checks existence.
func (h *DocumentHandler) Reingest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc, err := h.store.GetDocumentByID(r.Context(), id)
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if doc == nil {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}

	if err := h.publisher.PublishReindex(r.Context(), id); err != nil {
		h.log.Error("reindex enqueue failed", "doc_id", id, "error", err)
		http.Error(w, "enqueue failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"doc_id": id, "status": "enqueued"})
}
