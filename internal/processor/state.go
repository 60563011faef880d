package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"liquidityLedger/internal/model"
)

// StateStore persists processor progress.
type StateStore interface {
	Load(ctx context.Context) (model.ProcessState, bool, error)
	Save(ctx context.Context, state model.ProcessState) error
}

// FileStateStore stores state in a local JSON file.
type FileStateStore struct {
	Path string
}

func (s *FileStateStore) Load(ctx context.Context) (model.ProcessState, bool, error) {
	if s == nil || s.Path == "" {
		return model.ProcessState{}, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.ProcessState{}, false, nil
		}
		return model.ProcessState{}, false, fmt.Errorf("read state: %w", err)
	}

	var state model.ProcessState
	if err := json.Unmarshal(data, &state); err != nil {
		return model.ProcessState{}, false, fmt.Errorf("parse state: %w", err)
	}
	return state, true, nil
}

func (s *FileStateStore) Save(ctx context.Context, state model.ProcessState) error {
	if s == nil || s.Path == "" {
		return nil
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}
