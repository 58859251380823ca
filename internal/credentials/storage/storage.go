// Package storage defines the durable key/value port behind the credential store.
package storage

//go:generate mockgen -source=storage.go -destination=mocks/mocks.go -package=mocks Storage

import (
	"context"
	"sort"
	"sync"

	"meridian/internal/sentinel"
)

// Storage is a durable string key/value store. Reads return sentinel.ErrNotFound
// for absent keys. Write applies a whole batch or nothing.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Write(ctx context.Context, batch Batch) error
}

// Batch groups puts and deletes applied together.
type Batch struct {
	Put    map[string]string
	Delete []string
}

// Empty reports whether the batch changes nothing.
func (b Batch) Empty() bool {
	return len(b.Put) == 0 && len(b.Delete) == 0
}

// Memory is an in-process Storage, used in tests and for ephemeral sessions.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return v, nil
}

func (m *Memory) Write(ctx context.Context, batch Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range batch.Delete {
		delete(m.values, k)
	}
	for k, v := range batch.Put {
		m.values[k] = v
	}
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ Storage = (*Memory)(nil)
