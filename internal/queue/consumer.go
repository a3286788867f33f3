package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"golang.org/x/sync/errgroup"

	"github.com/srakestraw/gravyty-enablement-sub006/internal/core"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/models"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/pkg/logger"
)

// Handler is the ingestion entry point the consumer dispatches into.
type Handler interface {
	IngestDocument(ctx context.Context, msg models.IngestMessage) error
	IngestTranscript(ctx context.Context, msg models.IngestMessage) error
}

// API is the slice of SQS the consumer uses. Satisfied by *sqs.Client.
type API interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, opts ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, opts ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, opts ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Consumer long-polls the ingest queue and processes each message to
// completion. Horizontal throughput comes from running several worker
// loops pulling independent messages; there is no intra-message
// parallelism.
type Consumer struct {
	client   API
	queueURL string
	handler  Handler
	workers  int
	log      *logger.Logger
}

func NewConsumer(client API, queueURL string, handler Handler, workers int, log *logger.Logger) *Consumer {
	if workers < 1 {
		workers = 1
	}
	return &Consumer{
		client:   client,
		queueURL: queueURL,
		handler:  handler,
		workers:  workers,
		log:      log.With("component", "QueueConsumer"),
	}
}

// Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < c.workers; w++ {
		g.Go(func() error {
			c.loop(gctx)
			return nil
		})
	}
	return g.Wait()
}

func (c *Consumer) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: 1,
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("receive failed", "error", err)
			continue
		}

		for _, m := range out.Messages {
			c.process(ctx, aws.ToString(m.Body), aws.ToString(m.ReceiptHandle))
		}
	}
}

// process dispatches one message and decides its fate: done and
// non-retriable failures are deleted, retriable failures are left for the
// queue to redeliver (and eventually dead-letter).
func (c *Consumer) process(ctx context.Context, body, receiptHandle string) {
	err := c.dispatch(ctx, body)
	if err != nil && core.IsRetriable(err) {
		c.log.Warn("message failed, leaving for redelivery", "error", err)
		return
	}
	if err != nil {
		c.log.Warn("message failed permanently, dropping", "error", err)
	}
	if _, derr := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	}); derr != nil {
		c.log.Warn("delete failed", "error", derr)
	}
}

func (c *Consumer) dispatch(ctx context.Context, body string) error {
	var msg models.IngestMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		// Malformed bodies are skipped, never retried.
		c.log.Warn("unparseable message, skipping", "error", err)
		return nil
	}

	if msg.Type == models.MessageTypeTranscript {
		if msg.TranscriptID == "" || msg.LessonID == "" {
			c.log.Warn("transcript message missing identifiers, skipping",
				"transcript_id", msg.TranscriptID, "lesson_id", msg.LessonID)
			return nil
		}
		return c.handler.IngestTranscript(ctx, msg)
	}

	if msg.DocID == "" {
		c.log.Warn("document message missing doc_id, skipping")
		return nil
	}
	return c.handler.IngestDocument(ctx, msg)
}

// Publisher enqueues ingestion requests; the ops API uses it for manual
// reindex triggers.
type Publisher struct {
	client   API
	queueURL string
}

func NewPublisher(client API, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL}
}

func (p *Publisher) PublishReindex(ctx context.Context, docID string) error {
	body, err := json.Marshal(models.IngestMessage{DocID: docID, Reindex: true})
	if err != nil {
		return err
	}
	if _, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	}); err != nil {
		return fmt.Errorf("enqueue reindex for %s: %w", docID, err)
	}
	return nil
}
