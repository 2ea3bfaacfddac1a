package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type IntentStore interface {
	Save(ctx context.Context, intent *Intent) error
	Get(ctx context.Context, id string) (*Intent, error)
}

// RedisIntentStore keeps intents as JSON with a TTL.
type RedisIntentStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisIntentStore(rdb redis.Cmdable, ttl time.Duration) *RedisIntentStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisIntentStore{rdb: rdb, ttl: ttl}
}

func intentKey(id string) string { return "payment:intent:" + id }

func (s *RedisIntentStore) Save(ctx context.Context, intent *Intent) error {
	data, err := json.Marshal(intent)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, intentKey(intent.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save intent: %w", err)
	}
	return nil
}

func (s *RedisIntentStore) Get(ctx context.Context, id string) (*Intent, error) {
	data, err := s.rdb.Get(ctx, intentKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrIntentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load intent: %w", err)
	}
	var intent Intent
	if err := json.Unmarshal(data, &intent); err != nil {
		return nil, fmt.Errorf("decode intent: %w", err)
	}
	return &intent, nil
}

type MemoryIntentStore struct {
	mu      sync.Mutex
	intents map[string]Intent
}

func NewMemoryIntentStore() *MemoryIntentStore {
	return &MemoryIntentStore{intents: map[string]Intent{}}
}

func (s *MemoryIntentStore) Save(_ context.Context, intent *Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents[intent.ID] = *intent
	return nil
}

func (s *MemoryIntentStore) Get(_ context.Context, id string) (*Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok {
		return nil, ErrIntentNotFound
	}
	return &intent, nil
}
