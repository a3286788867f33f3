package ingestion_engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/srakestraw/gravyty-enablement-sub006/internal/core"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/models"
)

type fakeObjectClient struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  error
	putErr  error
}

func newFakeObjectClient() *fakeObjectClient {
	return &fakeObjectClient{objects: map[string][]byte{}}
}

func (f *fakeObjectClient) key(bucket, key string) string { return bucket + "/" + key }

func (f *fakeObjectClient) UploadFile(_ context.Context, bucket, key string, data []byte, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[f.key(bucket, key)] = data
	return nil
}

func (f *fakeObjectClient) GetFile(_ context.Context, bucket, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[f.key(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("no such object %s/%s", bucket, key)
	}
	return data, nil
}

func (f *fakeObjectClient) DeleteFile(_ context.Context, bucket, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, f.key(bucket, key))
	return nil
}

type fakeStore struct {
	doc         *models.Document
	transcripts map[string]*models.Transcript
	lessons     map[string]*models.LessonMeta

	statusUpdates []string
	failedCode    core.ErrorCode
	failedMessage string
	readyResult   *core.IngestResult
	metaErr       error
}

func newFakeStore(doc *models.Document) *fakeStore {
	return &fakeStore{
		doc:         doc,
		transcripts: map[string]*models.Transcript{},
		lessons:     map[string]*models.LessonMeta{},
	}
}

func (f *fakeStore) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	if f.doc == nil || f.doc.ID != id {
		return nil, nil
	}
	copied := *f.doc
	return &copied, nil
}

func (f *fakeStore) SetDocumentStatus(_ context.Context, _ string, status string) error {
	f.statusUpdates = append(f.statusUpdates, status)
	f.doc.Status = status
	return nil
}

func (f *fakeStore) MarkDocumentFailed(_ context.Context, _ string, code core.ErrorCode, message string) error {
	f.doc.Status = models.StatusFailed
	f.doc.ChunkCount = 0
	f.doc.LastErrorCode = string(code)
	f.doc.LastErrorMessage = core.TruncateMessage(message)
	f.failedCode = code
	f.failedMessage = message
	return nil
}

func (f *fakeStore) MarkDocumentReady(_ context.Context, _ string, result core.IngestResult) error {
	f.doc.Status = models.StatusReady
	f.doc.ChunkCount = result.ChunkCount
	f.doc.ExtractedCharCount = result.ExtractedCharCount
	f.doc.ExtractedSource = result.ExtractedSource
	if result.SnapshotPointer != "" {
		f.doc.SnapshotPointer = result.SnapshotPointer
	}
	if f.doc.StoragePointer == "" {
		f.doc.StoragePointer = result.StoragePointer
	}
	f.readyResult = &result
	return nil
}

func (f *fakeStore) GetTranscriptByID(_ context.Context, id string) (*models.Transcript, error) {
	return f.transcripts[id], nil
}

func (f *fakeStore) GetLessonMeta(_ context.Context, lessonID string) (*models.LessonMeta, error) {
	if f.metaErr != nil {
		return nil, f.metaErr
	}
	return f.lessons[lessonID], nil
}

type fakeIndex struct {
	mu        sync.Mutex
	entries   map[string]*models.VectorEntry
	deletes   []string
	readyErr  error
	ensureErr error
	upsertErr func(entry *models.VectorEntry) error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{entries: map[string]*models.VectorEntry{}}
}

func (f *fakeIndex) EnsureReady(_ context.Context, _ time.Duration) error { return f.readyErr }
func (f *fakeIndex) EnsureIndex(_ context.Context) error                  { return f.ensureErr }

func (f *fakeIndex) DeleteByDocID(_ context.Context, docID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, docID)
	for id, e := range f.entries {
		if e.DocID == docID {
			delete(f.entries, id)
		}
	}
	return nil
}

func (f *fakeIndex) Upsert(_ context.Context, entry *models.VectorEntry) error {
	if f.upsertErr != nil {
		if err := f.upsertErr(entry); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[entry.ChunkID] = entry
	return nil
}

type fakeEmbedder struct {
	calls   int
	failOn  func(text string) bool
	failErr error
}

func (f *fakeEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.failOn != nil && f.failOn(text) {
		if f.failErr != nil {
			return nil, f.failErr
		}
		return nil, core.NewError(core.CodeEmbeddingProvider, "embed refused")
	}
	return []float32{0.1, 0.2, 0.3}, nil
}
