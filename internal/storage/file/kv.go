// Package file persists key/value pairs in a single JSON document, the
// desktop counterpart of browser local storage.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"fdss/internal/domain"
)

type KV struct {
	mu   sync.Mutex
	path string
}

func NewKV(path string) (*KV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &KV{path: path}, nil
}

func (k *KV) GetMany(_ context.Context, keys ...string) (map[string]string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	items, err := k.read()
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if v, ok := items[key]; ok {
			out[key] = v
		}
	}
	return out, nil
}

func (k *KV) SetMany(_ context.Context, entries map[string]string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	items, err := k.read()
	if err != nil {
		// an unreadable document is replaced, not merged
		items = make(map[string]string)
	}
	for key, v := range entries {
		items[key] = v
	}
	return k.write(items)
}

func (k *KV) DeleteMany(_ context.Context, keys ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	items, err := k.read()
	if errors.Is(err, domain.ErrCorruptSession) {
		return os.Remove(k.path)
	}
	if err != nil {
		return err
	}

	changed := false
	for _, key := range keys {
		if _, ok := items[key]; ok {
			delete(items, key)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return k.write(items)
}

func (k *KV) Close() error { return nil }

func (k *KV) read() (map[string]string, error) {
	items := make(map[string]string)

	data, err := os.ReadFile(k.path)
	if errors.Is(err, fs.ErrNotExist) {
		return items, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", k.path, err)
	}
	if len(data) == 0 {
		return items, nil
	}

	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: failed to decode %s: %v", domain.ErrCorruptSession, k.path, err)
	}
	return items, nil
}

// write goes through a temp file and rename so a crash never leaves a
// half-written document behind.
func (k *KV) write(items map[string]string) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session document: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(k.path), ".session-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), k.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", k.path, err)
	}
	return nil
}
