package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// KV keeps client state under a per-installation key prefix. Writes and
// deletes run inside MULTI/EXEC.
type KV struct {
	redis  *redis.Client
	prefix string
}

func NewKV(r *redis.Client, prefix string) *KV {
	return &KV{redis: r, prefix: prefix}
}

func (r *KV) key(k string) string { return r.prefix + ":" + k }

func (r *KV) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}

	vals, err := r.redis.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("kv mget failed: %w", err)
	}

	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[keys[i]] = s
		}
	}
	return out, nil
}

func (r *KV) SetMany(ctx context.Context, entries map[string]string) error {
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range entries {
			pipe.Set(ctx, r.key(k), v, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("kv set failed: %w", err)
	}
	return nil
}

func (r *KV) DeleteMany(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}

	if err := r.redis.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("kv del failed: %w", err)
	}
	return nil
}

func (r *KV) Close() error {
	return r.redis.Close()
}
