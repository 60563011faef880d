package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"liquidityLedger/internal/config"
	"liquidityLedger/internal/processor"
	"liquidityLedger/internal/store"
	"liquidityLedger/internal/store/memory"
	"liquidityLedger/internal/store/postgres"
	"liquidityLedger/internal/store/redis"
)

// backend is an opened entity store. state is nil for the memory store.
type backend struct {
	entities store.Store
	state    processor.StateBackend
	close    func()
}

func openBackend(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		logger.Warn("memory store selected, entities are lost on exit")
		return backend{entities: memory.NewStore(), close: func() {}}, nil
	case config.BackendPostgres:
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return backend{}, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return backend{}, err
		}
		return backend{entities: pg, state: pg, close: pg.Close}, nil
	case config.BackendRedis:
		rdb, err := redis.NewStore(ctx, redis.Options{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisPrefix,
		}, logger)
		if err != nil {
			return backend{}, err
		}
		return backend{entities: rdb, state: rdb, close: func() { _ = rdb.Close() }}, nil
	default:
		return backend{}, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func stateStore(b backend, stateFile, stateName string) processor.StateStore {
	if stateFile != "" || b.state == nil {
		return &processor.FileStateStore{Path: stateFile}
	}
	return &processor.DBStateStore{Backend: b.state, Name: stateName}
}
