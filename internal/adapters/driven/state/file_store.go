package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/custodia-labs/moviesync/internal/core/domain"
	"github.com/custodia-labs/moviesync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.StateStore = (*FileStore)(nil)

// FileStore implements driven.StateStore as a single JSON file holding the
// stream-key → watermark mapping. Writes go to a temp file in the same
// directory and are committed with an atomic rename, so a crash mid-write
// leaves the last committed state intact.
type FileStore struct {
	path string

	mu     sync.Mutex
	loaded bool
	state  map[string]string
}

// NewFileStore creates a FileStore at the given path. The file is read
// lazily; a missing file is an empty state, not an error.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Get retrieves the value for a stream key.
func (s *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return "", false, err
	}

	value, ok := s.state[key]
	return value, ok, nil
}

// Set durably persists the value for a stream key.
func (s *FileStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return err
	}

	previous, had := s.state[key]
	s.state[key] = value
	if err := s.flush(); err != nil {
		// Keep the in-memory view consistent with what is on disk.
		if had {
			s.state[key] = previous
		} else {
			delete(s.state, key)
		}
		return err
	}
	return nil
}

func (s *FileStore) load() error {
	if s.loaded {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.state = make(map[string]string)
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read state file %s: %w", s.path, err)
	}

	state := make(map[string]string)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &state); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrStateCorrupt, s.path, err)
		}
	}

	s.state = state
	s.loaded = true
	return nil
}

func (s *FileStore) flush() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("commit state file: %w", err)
	}
	return nil
}
