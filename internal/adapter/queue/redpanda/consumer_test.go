package redpanda

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/cv-screener/internal/domain"
)

func TestConsumer_ProcessRecord(t *testing.T) {
	t.Parallel()

	payload := domain.ScreenTaskPayload{
		BatchID:        "batch-1",
		JobDescription: "backend engineer",
		Candidates:     map[string]string{"a.pdf": "text a", "b.pdf": "text b"},
		Concurrency:    3,
	}
	b, err := json.Marshal(payload)
	require.NoError(t, err)

	var got domain.ScreenTaskPayload
	c := &Consumer{handler: func(_ context.Context, p domain.ScreenTaskPayload) error {
		got = p
		return nil
	}}
	require.NoError(t, c.processRecord(context.Background(), &kgo.Record{Value: b}))
	assert.Equal(t, payload, got)
}

func TestConsumer_ProcessRecord_PoisonDropped(t *testing.T) {
	t.Parallel()

	called := false
	c := &Consumer{handler: func(_ context.Context, _ domain.ScreenTaskPayload) error {
		called = true
		return nil
	}}
	// not redeliverable, so the record is dropped without invoking the handler
	require.NoError(t, c.processRecord(context.Background(), &kgo.Record{Value: []byte("not json")}))
	assert.False(t, called)
}

func TestConsumer_ProcessRecord_HandlerError(t *testing.T) {
	t.Parallel()

	want := errors.New("screening failed")
	c := &Consumer{handler: func(_ context.Context, _ domain.ScreenTaskPayload) error {
		return want
	}}
	b, _ := json.Marshal(domain.ScreenTaskPayload{BatchID: "batch-1"})
	err := c.processRecord(context.Background(), &kgo.Record{Value: b})
	require.ErrorIs(t, err, want)
}

func TestNewConsumer_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewConsumer(nil, "group", func(context.Context, domain.ScreenTaskPayload) error { return nil })
	require.Error(t, err)

	_, err = NewConsumerWithTopic([]string{"localhost:19092"}, "group", TopicScreen, nil)
	require.Error(t, err)
}
