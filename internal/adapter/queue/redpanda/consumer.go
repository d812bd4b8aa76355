package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/cv-screener/internal/domain"
)

// ScreenHandler processes one screening batch pulled off the topic.
// Returning an error leaves the record uncommitted so it is redelivered.
type ScreenHandler func(ctx context.Context, payload domain.ScreenTaskPayload) error

// Consumer is a consumer-group worker over the screening topic. One record
// is one whole batch; per-candidate parallelism happens inside the handler,
// so records are processed one at a time per consumer instance.
type Consumer struct {
	client  *kgo.Client
	handler ScreenHandler
	topic   string
}

// NewConsumer constructs a group consumer on the default screening topic.
func NewConsumer(brokers []string, groupID string, handler ScreenHandler) (*Consumer, error) {
	return NewConsumerWithTopic(brokers, groupID, TopicScreen, handler)
}

// NewConsumerWithTopic constructs a group consumer on a specific topic,
// letting tests isolate themselves with unique topics.
func NewConsumerWithTopic(brokers []string, groupID, topic string, handler ScreenHandler) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	if handler == nil {
		return nil, fmt.Errorf("nil screen handler")
	}

	// Ensure the topic exists before joining the group
	tempClient, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return nil, fmt.Errorf("redpanda admin client: %w", err)
	}
	if err := createTopicIfNotExists(context.Background(), tempClient, topic, 1, 1); err != nil {
		slog.Warn("failed to create topic, it may already exist",
			slog.String("topic", topic), slog.Any("error", err))
	}
	tempClient.Close()

	kotelTracer := kotel.NewTracer(
		kotel.TracerProvider(otel.GetTracerProvider()),
	)
	kotelService := kotel.NewKotel(
		kotel.WithTracer(kotelTracer),
	)

	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topic),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
		kgo.WithHooks(kotelService.Hooks()...),
		kgo.DialTimeout(10 * time.Second),
		kgo.SessionTimeout(30 * time.Second),
		kgo.HeartbeatInterval(3 * time.Second),
		kgo.DisableAutoCommit(),
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("redpanda consumer client: %w", err)
	}

	return &Consumer{client: client, handler: handler, topic: topic}, nil
}

// Start polls until ctx is cancelled. Offsets are committed only after the
// handler returns nil, so a crashed worker replays its in-flight batch.
func (c *Consumer) Start(ctx context.Context) error {
	slog.Info("redpanda consumer started", slog.String("topic", c.topic))
	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, e := range errs {
				slog.Error("fetch error",
					slog.String("topic", e.Topic),
					slog.Int("partition", int(e.Partition)),
					slog.Any("error", e.Err))
			}
			continue
		}

		fetches.EachRecord(func(rec *kgo.Record) {
			if err := c.processRecord(ctx, rec); err != nil {
				slog.Error("screen task failed, leaving uncommitted",
					slog.String("topic", rec.Topic),
					slog.Int64("offset", rec.Offset),
					slog.Any("error", err))
				return
			}
			if err := c.client.CommitRecords(ctx, rec); err != nil {
				slog.Error("commit failed", slog.Int64("offset", rec.Offset), slog.Any("error", err))
			}
		})
	}
}

func (c *Consumer) processRecord(ctx context.Context, rec *kgo.Record) error {
	tracer := otel.Tracer("queue.consumer")
	ctx, span := tracer.Start(ctx, "screen.ProcessRecord")
	defer span.End()

	var payload domain.ScreenTaskPayload
	if err := json.Unmarshal(rec.Value, &payload); err != nil {
		// Poison message: log and drop, redelivery cannot fix it
		slog.Error("unparseable screen payload, dropping",
			slog.Int64("offset", rec.Offset), slog.Any("error", err))
		return nil
	}
	slog.Info("processing screen task",
		slog.String("batch_id", payload.BatchID),
		slog.Int("candidates", len(payload.Candidates)))
	return c.handler(ctx, payload)
}

// Close closes the consumer client.
func (c *Consumer) Close() error {
	if c.client != nil {
		c.client.Close()
	}
	return nil
}
