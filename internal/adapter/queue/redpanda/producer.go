// Package redpanda provides Redpanda/Kafka queue integration.
//
// It carries screening batches from the API to the worker. Publishing is
// transactional so a batch is either fully enqueued or not at all.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/cv-screener/internal/adapter/observability"
	"github.com/fairyhunter13/cv-screener/internal/domain"
)

const (
	// TopicScreen is the Kafka topic for screening batches
	TopicScreen = "screen-batches"
)

// Producer wraps a Kafka producer and implements domain.Queue.
type Producer struct {
	client *kgo.Client
	// transactionChan serializes transactions across concurrent enqueuers
	transactionChan chan struct{}
}

// NewProducer constructs a transactional Producer.
func NewProducer(brokers []string) (*Producer, error) {
	return NewProducerWithTransactionalID(brokers, "cv-screener-producer")
}

// NewProducerWithTransactionalID constructs a Producer with a custom
// transactional ID, so tests can avoid conflicts between producers.
func NewProducerWithTransactionalID(brokers []string, transactionalID string) (*Producer, error) {
	slog.Info("creating redpanda producer", slog.Any("brokers", brokers), slog.String("transactional_id", transactionalID))

	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.TransactionalID(transactionalID),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1000000),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		slog.Error("failed to create redpanda client", slog.Any("error", err))
		return nil, fmt.Errorf("redpanda client: %w", err)
	}

	// Create topic if it doesn't exist
	if err := createTopicIfNotExists(context.Background(), client, TopicScreen, 1, 1); err != nil {
		slog.Warn("failed to create topic, it may already exist",
			slog.String("topic", TopicScreen),
			slog.Any("error", err))
	}

	return &Producer{
		client:          client,
		transactionChan: make(chan struct{}, 1),
	}, nil
}

// EnqueueScreen enqueues one screening batch transactionally.
func (p *Producer) EnqueueScreen(ctx domain.Context, payload domain.ScreenTaskPayload) (string, error) {
	return p.EnqueueScreenToTopic(ctx, payload, TopicScreen)
}

// EnqueueScreenToTopic enqueues a screening batch to a specific topic.
// This method allows tests to use unique topics for isolation.
func (p *Producer) EnqueueScreenToTopic(ctx domain.Context, payload domain.ScreenTaskPayload, topic string) (string, error) {
	slog.Info("enqueueing screen task",
		slog.String("batch_id", payload.BatchID),
		slog.Int("candidates", len(payload.Candidates)),
		slog.String("topic", topic))

	// Serialize transactions; kgo forbids overlapping transactions per producer
	select {
	case p.transactionChan <- struct{}{}:
		defer func() { <-p.transactionChan }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if err := p.client.BeginTransaction(); err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}

	b, err := json.Marshal(payload)
	if err != nil {
		if abortErr := p.client.EndTransaction(ctx, kgo.TryAbort); abortErr != nil {
			slog.Error("failed to abort transaction", slog.Any("error", abortErr))
		}
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(payload.BatchID), // batch ID as key for ordering
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "batch_id", Value: []byte(payload.BatchID)},
		},
	}

	e := kgo.AbortingFirstErrPromise(p.client)
	p.client.Produce(ctx, record, e.Promise())
	if err := e.Err(); err != nil {
		slog.Error("failed to produce message",
			slog.String("batch_id", payload.BatchID),
			slog.String("topic", topic),
			slog.Any("error", err))
		if abortErr := p.client.EndTransaction(ctx, kgo.TryAbort); abortErr != nil {
			slog.Error("failed to abort transaction", slog.Any("error", abortErr))
		}
		return "", fmt.Errorf("produce: %w", err)
	}

	if err := p.client.EndTransaction(ctx, kgo.TryCommit); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}

	observability.EnqueueBatch()
	slog.Info("redpanda enqueue successful", slog.String("topic", topic), slog.String("batch_id", payload.BatchID))
	return payload.BatchID, nil
}

// Close closes the producer.
func (p *Producer) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	if p.transactionChan != nil {
		select {
		case <-p.transactionChan:
		default:
			close(p.transactionChan)
		}
	}
	return nil
}
