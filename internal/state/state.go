// Package state persists the set of face IDs already written to the trainer.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
)

// fileFormat is the on-disk layout of the state file.
type fileFormat struct {
	SyncedFaceIDs []string `json:"synced_face_ids"`
}

// Store is a durable, append-only set of synced face IDs.
type Store struct {
	path   string
	lock   *flock.Flock
	logger zerolog.Logger

	mu     sync.RWMutex
	synced map[string]struct{}
}

// Open loads the store at path. A missing file yields an empty store; an
// unreadable or corrupt file is logged and also yields an empty store.
func Open(path string, logger zerolog.Logger) *Store {
	s := &Store{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger,
		synced: make(map[string]struct{}),
	}

	ids, err := readIDs(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Debug().Str("path", path).Msg("no state file, starting empty")
	case err != nil:
		logger.Warn().Err(err).Str("path", path).Msg("could not load state file, starting empty")
	default:
		for _, id := range ids {
			s.synced[id] = struct{}{}
		}
		logger.Debug().Str("path", path).Int("faces", len(ids)).Msg("loaded state file")
	}
	return s
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// IsSynced reports whether id has been marked.
func (s *Store) IsSynced(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.synced[id]
	return ok
}

// Count returns the number of synced face IDs.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.synced)
}

// IDs returns the synced face IDs in sorted order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedIDs(s.synced)
}

// MarkSynced adds id to the set and durably writes the file before returning.
// On a write error the in-memory set still contains id.
func (s *Store) MarkSynced(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.synced[id] = struct{}{}

	if err := s.persist(); err != nil {
		s.logger.Error().Err(err).Str("face_id", id).Str("path", s.path).Msg("failed to persist state")
		return err
	}
	return nil
}

// persist merges the file written by other processes into memory and writes
// the union back under the cross-process lock. Caller holds s.mu.
func (s *Store) persist() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock state file: %w", err)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to unlock state file")
		}
	}()

	if ids, err := readIDs(s.path); err == nil {
		for _, id := range ids {
			s.synced[id] = struct{}{}
		}
	}

	data, err := json.MarshalIndent(fileFormat{SyncedFaceIDs: sortedIDs(s.synced)}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	return writeAtomic(s.path, data)
}

func readIDs(path string) ([]string, error) {
	// #nosec G304 -- path comes from configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state file: %w", err)
	}
	return f.SyncedFaceIDs, nil
}

// writeAtomic writes data to a temp file in the same directory, fsyncs it and
// renames it over path.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write temporary state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync temporary state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temporary state file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}

func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
