package contextcache

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend keeps entries in a process-local map.
type MemoryBackend[T any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[T]
}

// NewMemoryBackend creates an empty in-process backend.
func NewMemoryBackend[T any]() *MemoryBackend[T] {
	return &MemoryBackend[T]{entries: make(map[string]Entry[T])}
}

func (b *MemoryBackend[T]) Load(_ context.Context, key string) (Entry[T], bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[key]
	return e, ok, nil
}

func (b *MemoryBackend[T]) Store(_ context.Context, key string, entry Entry[T], _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[key] = entry
	return nil
}
