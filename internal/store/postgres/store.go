package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityLedger/internal/model"
	"liquidityLedger/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	kind       TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	data       JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (kind, id)
);
CREATE TABLE IF NOT EXISTS indexer_state (
	name       TEXT        PRIMARY KEY,
	state      JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for ledger entities and processor state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, kind store.Kind, id string, dst interface{}) (bool, error) {
	var data string
	row := s.pool.QueryRow(ctx, `SELECT data::text FROM entities WHERE kind=$1 AND id=$2`, string(kind), id)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("load %s %s: %w", kind, id, err)
	}
	if err := store.Decode([]byte(data), dst); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Save(ctx context.Context, kind store.Kind, id string, value interface{}) error {
	data, err := store.Encode(value)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO entities (kind, id, data, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, now(), now())
		ON CONFLICT (kind, id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = now()
	`, string(kind), id, string(data))
	if err != nil {
		return fmt.Errorf("save %s %s: %w", kind, id, err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, kind store.Kind, id string, value interface{}) (bool, error) {
	data, err := store.Encode(value)
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO entities (kind, id, data, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, now(), now())
		ON CONFLICT (kind, id) DO NOTHING
	`, string(kind), id, string(data))
	if err != nil {
		return false, fmt.Errorf("create %s %s: %w", kind, id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// LoadState returns the processor state stored under name.
func (s *Store) LoadState(ctx context.Context, name string) (model.ProcessState, bool, error) {
	if name == "" {
		return model.ProcessState{}, false, fmt.Errorf("state name required")
	}
	var data string
	row := s.pool.QueryRow(ctx, `SELECT state::text FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ProcessState{}, false, nil
		}
		return model.ProcessState{}, false, err
	}
	var state model.ProcessState
	if err := store.Decode([]byte(data), &state); err != nil {
		return model.ProcessState{}, false, err
	}
	return state, true, nil
}

// SaveState upserts the processor state for name.
func (s *Store) SaveState(ctx context.Context, name string, state model.ProcessState) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	data, err := store.Encode(state)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, state, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (name) DO UPDATE
		SET state = EXCLUDED.state, updated_at = now()
	`, name, string(data))
	return err
}
