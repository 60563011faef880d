package processor

import (
	"context"

	"liquidityLedger/internal/model"
)

// StateBackend keeps named processor states. The postgres and redis entity stores implement it.
type StateBackend interface {
	LoadState(ctx context.Context, name string) (model.ProcessState, bool, error)
	SaveState(ctx context.Context, name string, state model.ProcessState) error
}

// DBStateStore stores state under Name in a StateBackend.
type DBStateStore struct {
	Backend StateBackend
	Name    string
}

func (s *DBStateStore) Load(ctx context.Context) (model.ProcessState, bool, error) {
	if s == nil || s.Backend == nil {
		return model.ProcessState{}, false, nil
	}
	return s.Backend.LoadState(ctx, s.Name)
}

func (s *DBStateStore) Save(ctx context.Context, state model.ProcessState) error {
	if s == nil || s.Backend == nil {
		return nil
	}
	return s.Backend.SaveState(ctx, s.Name, state)
}
