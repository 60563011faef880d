package memory

import (
	"context"

	"github.com/puzpuzpuz/xsync/v4"

	"liquidityLedger/internal/store"
)

// Store keeps encoded entities in a concurrent map. Values are copied on every read and write.
type Store struct {
	data *xsync.Map[string, []byte]
}

func NewStore() *Store {
	return &Store{data: xsync.NewMap[string, []byte]()}
}

func (s *Store) Load(_ context.Context, kind store.Kind, id string, dst interface{}) (bool, error) {
	data, ok := s.data.Load(store.Key(kind, id))
	if !ok {
		return false, nil
	}
	if err := store.Decode(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Save(_ context.Context, kind store.Kind, id string, value interface{}) error {
	data, err := store.Encode(value)
	if err != nil {
		return err
	}
	s.data.Store(store.Key(kind, id), data)
	return nil
}

func (s *Store) Create(_ context.Context, kind store.Kind, id string, value interface{}) (bool, error) {
	data, err := store.Encode(value)
	if err != nil {
		return false, err
	}
	_, loaded := s.data.LoadOrStore(store.Key(kind, id), data)
	return !loaded, nil
}

// Count returns the number of stored entities of kind.
func (s *Store) Count(kind store.Kind) int {
	prefix := store.Key(kind, "")
	n := 0
	s.data.Range(func(key string, _ []byte) bool {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			n++
		}
		return true
	})
	return n
}

// Dump returns a copy of every encoded entity keyed by kind:id.
func (s *Store) Dump() map[string]string {
	out := make(map[string]string)
	s.data.Range(func(key string, value []byte) bool {
		out[key] = string(value)
		return true
	})
	return out
}
