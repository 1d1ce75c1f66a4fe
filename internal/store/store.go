// Package store persists whole collections as JSON documents keyed by a
// logical collection name. Every write replaces the collection.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

const (
	KeyBoards     = "kanbanBoards"
	KeyActionTags = "acoesCards"
	KeyProducts   = "produtos"
	KeyClients    = "clientes"
	// KeyLegacyStages holds the old single-board flat stage list. It is only
	// detected, never read into the board model.
	KeyLegacyStages = "kanbanStages"
)

var ErrUnknownBackend = errors.New("unknown store backend")

// KV is the persistence contract the board service depends on.
type KV interface {
	Read(ctx context.Context, key string) ([]byte, bool, error)
	Write(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
	Close() error
}

// ReadJSON decodes the collection at key, or returns fallback when it has
// never been written.
func ReadJSON[T any](ctx context.Context, kv KV, key string, fallback T) (T, error) {
	raw, ok, err := kv.Read(ctx, key)
	if err != nil {
		return fallback, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok || len(raw) == 0 {
		return fallback, nil
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return fallback, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, nil
}

func WriteJSON(ctx context.Context, kv KV, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := kv.Write(ctx, key, raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Exists reports whether anything has been written under key.
func Exists(ctx context.Context, kv KV, key string) (bool, error) {
	_, ok, err := kv.Read(ctx, key)
	return ok, err
}

type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Read(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), raw...), true, nil
}

func (m *Memory) Write(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
