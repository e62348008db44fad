package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type KV struct {
	db *sql.DB
}

func NewKV(db *sql.DB) *KV {
	return &KV{db: db}
}

func (r *KV) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	query := `SELECT name, value FROM client_kv WHERE name IN (` + placeholders(len(keys)) + `)`

	rows, err := r.db.QueryContext(ctx, query, toArgs(keys)...)
	if err != nil {
		return nil, fmt.Errorf("failed to read keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		out[name] = value
	}
	return out, rows.Err()
}

func (r *KV) SetMany(ctx context.Context, entries map[string]string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO client_kv (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for name, value := range entries {
		if _, err := stmt.ExecContext(ctx, name, value, now); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", name, err)
		}
	}

	return tx.Commit()
}

func (r *KV) DeleteMany(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	query := `DELETE FROM client_kv WHERE name IN (` + placeholders(len(keys)) + `)`
	if _, err := r.db.ExecContext(ctx, query, toArgs(keys)...); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

func (r *KV) Close() error {
	return r.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func toArgs(keys []string) []any {
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	return args
}
