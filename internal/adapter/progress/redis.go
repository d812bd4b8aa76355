// Package progress stores batch progress snapshots in Redis so the API
// can report fractional completion while a worker grinds through a batch.
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/cv-screener/internal/domain"
)

// Store implements domain.ProgressStore on Redis. Snapshots expire after
// the configured TTL; a finished batch's authoritative state lives in
// Postgres, not here.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New constructs a Store against the given Redis address.
func New(addr string, ttl time.Duration) *Store {
	return &Store{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

// NewWithClient constructs a Store over an existing client, used by tests.
func NewWithClient(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func key(batchID string) string { return "progress:" + batchID }

// Set overwrites the snapshot for a batch and refreshes its TTL.
func (s *Store) Set(ctx domain.Context, batchID string, snap domain.ProgressSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("op=progress.set: %w", err)
	}
	if err := s.client.Set(ctx, key(batchID), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("op=progress.set: %w", err)
	}
	return nil
}

// Get loads the snapshot for a batch; domain.ErrNotFound when absent or expired.
func (s *Store) Get(ctx domain.Context, batchID string) (domain.ProgressSnapshot, error) {
	b, err := s.client.Get(ctx, key(batchID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ProgressSnapshot{}, fmt.Errorf("op=progress.get: %w", domain.ErrNotFound)
		}
		return domain.ProgressSnapshot{}, fmt.Errorf("op=progress.get: %w", err)
	}
	var snap domain.ProgressSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return domain.ProgressSnapshot{}, fmt.Errorf("op=progress.get: %w", err)
	}
	return snap, nil
}

// Ping verifies connectivity, used by readiness checks.
func (s *Store) Ping(ctx domain.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *Store) Close() error { return s.client.Close() }
