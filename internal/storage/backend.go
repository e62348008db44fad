// Package storage opens the session backend selected by SESSION_BACKEND.
package storage

import (
	"context"
	"fmt"

	redisadapter "fdss/internal/adapters/redis"
	"fdss/internal/config"
	"fdss/internal/domain"
	"fdss/internal/logger"
	"fdss/internal/storage/file"
	"fdss/internal/storage/memory"
	"fdss/internal/storage/postgres"
	"fdss/internal/storage/sqlite"
)

// Open returns the configured key-value store with its schema in place.
// The caller owns it and must Close it.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (domain.KeyValueStore, error) {
	log = log.With("backend", cfg.SessionBackend)

	switch cfg.SessionBackend {
	case config.BackendMemory:
		log.Warn("session is kept in memory and lost on exit")
		return memory.NewKV(), nil

	case config.BackendFile:
		kv, err := file.NewKV(cfg.SessionFile)
		if err != nil {
			return nil, err
		}
		log.Info("session file ready", "path", cfg.SessionFile)
		return kv, nil

	case config.BackendSQLite:
		db, err := sqlite.NewSqliteDB(cfg.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		if err := sqlite.Migrate(db); err != nil {
			db.Close()
			return nil, err
		}
		return sqlite.NewKV(db), nil

	case config.BackendPostgres:
		pool, err := postgres.InitDB(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(pool); err != nil {
			pool.Close()
			return nil, err
		}
		return postgres.NewKV(pool, cfg.ClientID.String()), nil

	case config.BackendRedis:
		client, err := redisadapter.Init(ctx, &redisadapter.ClientOptions{
			Address:  cfg.RedisAddress,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		log.Info("redis connection established successfully", "address", cfg.RedisAddress)
		return redisadapter.NewKV(client, "fdss:"+cfg.ClientID.String()), nil

	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}
