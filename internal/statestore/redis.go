package statestore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/contentdex/contentdex/internal/domain/syncstate"
)

// RedisStore persists the sync state under a single key via rueidis,
// so dashboard requests and CLI runs on different hosts share one cursor.
type RedisStore struct {
	client rueidis.Client
	key    string
}

// RedisConfig holds connection parameters for a Redis state store.
type RedisConfig struct {
	Addrs    []string
	Password string
	Key      string
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	if cfg.Key == "" {
		cfg.Key = "contentdex:sync"
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Password:     cfg.Password,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &RedisStore{client: client, key: cfg.Key}, nil
}

// Load reads the current state record.
func (s *RedisStore) Load(ctx context.Context) (*syncstate.State, error) {
	cmd := s.client.B().Get().Key(s.key).Build()
	data, err := s.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("GET %s: %w", s.key, err)
	}
	var st syncstate.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	return &st, nil
}

// Save writes the state record.
func (s *RedisStore) Save(ctx context.Context, st *syncstate.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	cmd := s.client.B().Set().Key(s.key).Value(string(data)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("SET %s: %w", s.key, err)
	}
	return nil
}

// Clear removes the state record.
func (s *RedisStore) Clear(ctx context.Context) error {
	cmd := s.client.B().Del().Key(s.key).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("DEL %s: %w", s.key, err)
	}
	return nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *RedisStore) Close() {
	s.client.Close()
}

var _ Store = (*RedisStore)(nil)
