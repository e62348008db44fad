// Package postgres
package postgres

import (
	"context"
	"fmt"
	"time"

	"fdss/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func InitDB(ctx context.Context, databaseURL string, log logger.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	cfg.MaxConns = 4
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database not responding: %w", err)
	}

	log.Info("postgres connection established successfully")

	return pool, nil
}
