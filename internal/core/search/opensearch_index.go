package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	cfg "github.com/srakestraw/gravyty-enablement-sub006/internal/config"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/core"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/models"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/pkg/logger"
)

// IndexWriter owns the vector index in the backing OpenSearch cluster.
type IndexWriter struct {
	client *opensearch.Client
	index  string
	dim    int
	log    *logger.Logger

	// Readiness polling schedule. Overridable in tests.
	initialBackoff time.Duration
	maxBackoff     time.Duration
	multiplier     float64
}

var _ core.VectorIndex = (*IndexWriter)(nil)

func NewIndexWriter(conf *cfg.Config, log *logger.Logger) (*IndexWriter, error) {
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{conf.OpenSearchURL},
		Username:  conf.OpenSearchUser,
		Password:  conf.OpenSearchPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("opensearch client: %w", err)
	}
	return &IndexWriter{
		client:         client,
		index:          conf.OpenSearchIndex,
		dim:            conf.EmbedDim,
		log:            log.With("component", "IndexWriter"),
		initialBackoff: 2 * time.Second,
		maxBackoff:     10 * time.Second,
		multiplier:     1.5,
	}, nil
}

// EnsureReady polls cluster health under bounded exponential backoff until
// the service answers or maxWait elapses. A missing index does not count
// against readiness; EnsureIndex creates it right after.
func (w *IndexWriter) EnsureReady(ctx context.Context, maxWait time.Duration) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.initialBackoff
	bo.MaxInterval = w.maxBackoff
	bo.Multiplier = w.multiplier
	bo.MaxElapsedTime = maxWait

	probe := func() error {
		res, err := opensearchapi.ClusterHealthRequest{}.Do(ctx, w.client)
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.StatusCode >= 500 {
			return fmt.Errorf("cluster health returned %d", res.StatusCode)
		}

		exists, err := opensearchapi.IndicesExistsRequest{Index: []string{w.index}}.Do(ctx, w.client)
		if err != nil {
			return err
		}
		defer exists.Body.Close()
		if exists.StatusCode >= 500 {
			return fmt.Errorf("index existence probe returned %d", exists.StatusCode)
		}
		return nil
	}

	if err := backoff.Retry(probe, backoff.WithContext(bo, ctx)); err != nil {
		return core.WrapError(core.CodeSearchNotReady,
			fmt.Errorf("search service not ready within %s: %w", maxWait, err))
	}
	return nil
}

// EnsureIndex creates the target index with its schema if it does not
// already exist.
func (w *IndexWriter) EnsureIndex(ctx context.Context) error {
	exists, err := opensearchapi.IndicesExistsRequest{Index: []string{w.index}}.Do(ctx, w.client)
	if err != nil {
		return fmt.Errorf("index exists check: %w", err)
	}
	defer exists.Body.Close()
	if exists.StatusCode == 200 {
		return nil
	}

	mapping := fmt.Sprintf(`{
		"settings": { "index": { "knn": true } },
		"mappings": {
			"properties": {
				"doc_id":          { "type": "keyword" },
				"chunk_id":        { "type": "keyword" },
				"text":            { "type": "text" },
				"title":           { "type": "text" },
				"tags":            { "type": "keyword" },
				"product_suite":   { "type": "keyword" },
				"product_concept": { "type": "keyword" },
				"lesson_id":       { "type": "keyword" },
				"course_id":       { "type": "keyword" },
				"course_title":    { "type": "text" },
				"transcript_id":   { "type": "keyword" },
				"embedding": {
					"type": "knn_vector",
					"dimension": %d,
					"method": { "name": "hnsw", "space_type": "cosinesimil", "engine": "nmslib" }
				}
			}
		}
	}`, w.dim)

	res, err := opensearchapi.IndicesCreateRequest{
		Index: w.index,
		Body:  strings.NewReader(mapping),
	}.Do(ctx, w.client)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index %q: %s", w.index, res.String())
	}
	w.log.Info("created vector index", "index", w.index, "dimension", w.dim)
	return nil
}

// DeleteByDocID removes every entry for a document. Used before a reindex
// pass; callers treat failures as non-fatal.
func (w *IndexWriter) DeleteByDocID(ctx context.Context, docID string) error {
	body := fmt.Sprintf(`{ "query": { "term": { "doc_id": %q } } }`, docID)

	res, err := opensearchapi.DeleteByQueryRequest{
		Index: []string{w.index},
		Body:  strings.NewReader(body),
	}.Do(ctx, w.client)
	if err != nil {
		return fmt.Errorf("delete by doc_id: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("delete by doc_id %q: %s", docID, res.String())
	}
	return nil
}

// Upsert writes one vector entry keyed by chunk_id, overwriting any prior
// entry under the same key.
func (w *IndexWriter) Upsert(ctx context.Context, entry *models.VectorEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal vector entry: %w", err)
	}

	res, err := opensearchapi.IndexRequest{
		Index:      w.index,
		DocumentID: entry.ChunkID,
		Body:       strings.NewReader(string(payload)),
	}.Do(ctx, w.client)
	if err != nil {
		return fmt.Errorf("index %s: %w", entry.ChunkID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index %s: %s", entry.ChunkID, res.String())
	}
	return nil
}
