package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// KV stores client state in a shared database, keyed per installation via
// the namespace prefix.
type KV struct {
	db        *pgxpool.Pool
	namespace string
}

func NewKV(db *pgxpool.Pool, namespace string) *KV {
	return &KV{db: db, namespace: namespace}
}

func (r *KV) key(k string) string { return r.namespace + ":" + k }

func (r *KV) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	names := make([]string, len(keys))
	back := make(map[string]string, len(keys))
	for i, k := range keys {
		names[i] = r.key(k)
		back[names[i]] = k
	}

	rows, err := r.db.Query(ctx, `SELECT name, value FROM client_kv WHERE name = ANY($1)`, names)
	if err != nil {
		return nil, fmt.Errorf("failed to read keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		out[back[name]] = value
	}
	return out, rows.Err()
}

func (r *KV) SetMany(ctx context.Context, entries map[string]string) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		for k, v := range entries {
			_, err := tx.Exec(ctx, `
				INSERT INTO client_kv (name, value, updated_at) VALUES ($1, $2, NOW())
				ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
			`, r.key(k), v)
			if err != nil {
				return fmt.Errorf("failed to upsert %s: %w", k, err)
			}
		}
		return nil
	})
}

func (r *KV) DeleteMany(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = r.key(k)
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM client_kv WHERE name = ANY($1)`, names); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

func (r *KV) Close() error {
	r.db.Close()
	return nil
}
