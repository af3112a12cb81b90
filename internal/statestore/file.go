package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/contentdex/contentdex/internal/domain/syncstate"
)

// FileStore persists the sync state as a JSON file. Writes go through a
// temp file + rename so a killed process never leaves a torn record behind.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store under dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{path: filepath.Join(filepath.Clean(dir), "sync-state.json")}
}

// Load reads the current state record.
func (s *FileStore) Load(_ context.Context) (*syncstate.State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read state %s: %w", s.path, err)
	}
	var st syncstate.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", s.path, err)
	}
	return &st, nil
}

// Save writes the state record atomically.
func (s *FileStore) Save(_ context.Context, st *syncstate.State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

// Clear removes the state record.
func (s *FileStore) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove state: %w", err)
	}
	return nil
}

// Ping checks that the directory is writable.
func (s *FileStore) Ping(_ context.Context) error {
	dir := filepath.Dir(s.path)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("state dir %s: %w", dir, err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
