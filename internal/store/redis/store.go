package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"liquidityLedger/internal/model"
	"liquidityLedger/internal/store"
)

// Options configures the Redis entity store.
type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Store keeps encoded entities as plain string keys. Create relies on SET NX.
type Store struct {
	client *redis.Client
	prefix string
}

// NewStore connects to Redis and verifies the connection.
func NewStore(ctx context.Context, opts Options, logger *zap.Logger) (*Store, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}

	logger.Info("connected to redis", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return NewStoreWithClient(rdb, opts.KeyPrefix), nil
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "ledger"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(kind store.Kind, id string) string {
	return s.prefix + ":" + store.Key(kind, id)
}

func (s *Store) Load(ctx context.Context, kind store.Kind, id string, dst interface{}) (bool, error) {
	data, err := s.client.Get(ctx, s.key(kind, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("load %s %s: %w", kind, id, err)
	}
	if err := store.Decode(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Save(ctx context.Context, kind store.Kind, id string, value interface{}) error {
	data, err := store.Encode(value)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(kind, id), data, 0).Err(); err != nil {
		return fmt.Errorf("save %s %s: %w", kind, id, err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, kind store.Kind, id string, value interface{}) (bool, error) {
	data, err := store.Encode(value)
	if err != nil {
		return false, err
	}
	created, err := s.client.SetNX(ctx, s.key(kind, id), data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("create %s %s: %w", kind, id, err)
	}
	return created, nil
}

func (s *Store) stateKey(name string) string {
	return s.prefix + ":state:" + name
}

// LoadState returns the processor state stored under name.
func (s *Store) LoadState(ctx context.Context, name string) (model.ProcessState, bool, error) {
	if name == "" {
		return model.ProcessState{}, false, fmt.Errorf("state name required")
	}
	data, err := s.client.Get(ctx, s.stateKey(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.ProcessState{}, false, nil
		}
		return model.ProcessState{}, false, fmt.Errorf("load state %s: %w", name, err)
	}
	var state model.ProcessState
	if err := store.Decode(data, &state); err != nil {
		return model.ProcessState{}, false, err
	}
	return state, true, nil
}

// SaveState replaces the processor state for name.
func (s *Store) SaveState(ctx context.Context, name string, state model.ProcessState) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	data, err := store.Encode(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.stateKey(name), data, 0).Err()
}
