// Package session keeps card drafts, the dialog-scoped edits that live until
// they are saved, discarded or expire.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pipeline/internal/kanban"
)

// Store holds open drafts. Load never returns an expired draft.
type Store interface {
	Save(ctx context.Context, draft kanban.Draft) error
	Load(ctx context.Context, id string) (kanban.Draft, bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteMatching(ctx context.Context, match func(kanban.Draft) bool) error
	Close() error
}

// Memory is the in-process draft store.
type Memory struct {
	mu     sync.Mutex
	now    func() time.Time
	drafts map[string]kanban.Draft
}

// NewMemory creates a store that reads the clock through now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{now: now, drafts: make(map[string]kanban.Draft)}
}

func (m *Memory) Save(_ context.Context, draft kanban.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[draft.ID] = draft
	return nil
}

func (m *Memory) Load(_ context.Context, id string) (kanban.Draft, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune()
	draft, ok := m.drafts[id]
	return draft, ok, nil
}

func (m *Memory) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune()
	_, ok := m.drafts[id]
	delete(m.drafts, id)
	return ok, nil
}

func (m *Memory) DeleteMatching(_ context.Context, match func(kanban.Draft) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, draft := range m.drafts {
		if match(draft) {
			delete(m.drafts, id)
		}
	}
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) prune() {
	now := m.now()
	for id, draft := range m.drafts {
		if draft.Expired(now) {
			delete(m.drafts, id)
		}
	}
}

// Redis keeps each draft as JSON under its own key and lets the key TTL
// expire it, so drafts survive an API restart.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to redisURL and checks the connection.
func NewRedis(redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisWithClient(client), nil
}

func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: "pipeline:draft:"}
}

func (s *Redis) key(id string) string {
	return s.prefix + id
}

func (s *Redis) Save(ctx context.Context, draft kanban.Draft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	ttl := time.Until(draft.ExpiresAt)
	if draft.ExpiresAt.IsZero() {
		ttl = 0
	} else if ttl <= 0 {
		_, err := s.Delete(ctx, draft.ID)
		return err
	}
	if err := s.client.Set(ctx, s.key(draft.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (s *Redis) Load(ctx context.Context, id string) (kanban.Draft, bool, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return kanban.Draft{}, false, nil
	}
	if err != nil {
		return kanban.Draft{}, false, fmt.Errorf("load draft: %w", err)
	}
	var draft kanban.Draft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return kanban.Draft{}, false, fmt.Errorf("unmarshal draft: %w", err)
	}
	if draft.Expired(time.Now()) {
		return kanban.Draft{}, false, nil
	}
	return draft, true, nil
}

func (s *Redis) Delete(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("delete draft: %w", err)
	}
	return n > 0, nil
}

// DeleteMatching scans every draft key.
func (s *Redis) DeleteMatching(ctx context.Context, match func(kanban.Draft) bool) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load draft: %w", err)
		}
		var draft kanban.Draft
		if err := json.Unmarshal(raw, &draft); err != nil {
			return fmt.Errorf("unmarshal draft: %w", err)
		}
		if match(draft) {
			if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
				return fmt.Errorf("delete draft: %w", err)
			}
		}
	}
	return iter.Err()
}

func (s *Redis) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Redis) Close() error {
	return s.client.Close()
}
