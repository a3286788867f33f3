package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srakestraw/gravyty-enablement-sub006/internal/core"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/models"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/pkg/logger"
)

type fakeHandler struct {
	docMsgs        []models.IngestMessage
	transcriptMsgs []models.IngestMessage
	docErr         error
	transcriptErr  error
}

func (f *fakeHandler) IngestDocument(_ context.Context, msg models.IngestMessage) error {
	f.docMsgs = append(f.docMsgs, msg)
	return f.docErr
}

func (f *fakeHandler) IngestTranscript(_ context.Context, msg models.IngestMessage) error {
	f.transcriptMsgs = append(f.transcriptMsgs, msg)
	return f.transcriptErr
}

type fakeSQS struct {
	deleted []string
	sent    []string
}

func (f *fakeSQS) ReceiveMessage(context.Context, *sqs.ReceiveMessageInput, ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = append(f.sent, aws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{}, nil
}

func newTestConsumer(h Handler) (*Consumer, *fakeSQS) {
	client := &fakeSQS{}
	return NewConsumer(client, "https://queue.test/ingest", h, 1, logger.NewNop()), client
}

func TestProcessDocumentMessage(t *testing.T) {
	h := &fakeHandler{}
	c, client := newTestConsumer(h)

	c.process(context.Background(), `{"doc_id":"d1","reindex":true}`, "rh-1")

	require.Len(t, h.docMsgs, 1)
	assert.Equal(t, "d1", h.docMsgs[0].DocID)
	assert.True(t, h.docMsgs[0].Reindex)
	assert.Empty(t, h.transcriptMsgs)
	assert.Equal(t, []string{"rh-1"}, client.deleted)
}

func TestProcessTranscriptMessage(t *testing.T) {
	h := &fakeHandler{}
	c, client := newTestConsumer(h)

	c.process(context.Background(), `{"type":"transcript","transcript_id":"tr1","lesson_id":"l1"}`, "rh-2")

	require.Len(t, h.transcriptMsgs, 1)
	assert.Equal(t, "tr1", h.transcriptMsgs[0].TranscriptID)
	assert.Empty(t, h.docMsgs)
	assert.Equal(t, []string{"rh-2"}, client.deleted)
}

func TestProcessTranscriptMissingIdentifiersIsDropped(t *testing.T) {
	h := &fakeHandler{}
	c, client := newTestConsumer(h)

	c.process(context.Background(), `{"type":"transcript","transcript_id":"tr1"}`, "rh-3")

	assert.Empty(t, h.transcriptMsgs)
	assert.Equal(t, []string{"rh-3"}, client.deleted)
}

func TestProcessMalformedBodyIsDropped(t *testing.T) {
	h := &fakeHandler{}
	c, client := newTestConsumer(h)

	c.process(context.Background(), `{not json`, "rh-4")

	assert.Empty(t, h.docMsgs)
	assert.Empty(t, h.transcriptMsgs)
	assert.Equal(t, []string{"rh-4"}, client.deleted)
}

func TestProcessMissingDocIDIsDropped(t *testing.T) {
	h := &fakeHandler{}
	c, client := newTestConsumer(h)

	c.process(context.Background(), `{"reindex":true}`, "rh-5")

	assert.Empty(t, h.docMsgs)
	assert.Equal(t, []string{"rh-5"}, client.deleted)
}

func TestProcessRetriableFailureLeavesMessage(t *testing.T) {
	h := &fakeHandler{docErr: core.NewError(core.CodeSearchNotReady, "cluster down")}
	c, client := newTestConsumer(h)

	c.process(context.Background(), `{"doc_id":"d1"}`, "rh-6")

	require.Len(t, h.docMsgs, 1)
	assert.Empty(t, client.deleted)
}

func TestProcessNonRetriableFailureDeletesMessage(t *testing.T) {
	h := &fakeHandler{docErr: core.NewError(core.CodeDocumentTooLarge, "too big")}
	c, client := newTestConsumer(h)

	c.process(context.Background(), `{"doc_id":"d1"}`, "rh-7")

	require.Len(t, h.docMsgs, 1)
	assert.Equal(t, []string{"rh-7"}, client.deleted)
}

func TestPublishReindex(t *testing.T) {
	client := &fakeSQS{}
	p := NewPublisher(client, "https://queue.test/ingest")

	require.NoError(t, p.PublishReindex(context.Background(), "d42"))

	require.Len(t, client.sent, 1)
	var msg models.IngestMessage
	require.NoError(t, json.Unmarshal([]byte(client.sent[0]), &msg))
	assert.Equal(t, "d42", msg.DocID)
	assert.True(t, msg.Reindex)
}
