// Package memory keeps the session for the lifetime of the process only.
package memory

import (
	"context"
	"maps"
	"sync"
)

type KV struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewKV() *KV {
	return &KV{items: make(map[string]string)}
}

func (k *KV) GetMany(_ context.Context, keys ...string) (map[string]string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if v, ok := k.items[key]; ok {
			out[key] = v
		}
	}
	return out, nil
}

func (k *KV) SetMany(_ context.Context, entries map[string]string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	maps.Copy(k.items, entries)
	return nil
}

func (k *KV) DeleteMany(_ context.Context, keys ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, key := range keys {
		delete(k.items, key)
	}
	return nil
}

func (k *KV) Close() error { return nil }
