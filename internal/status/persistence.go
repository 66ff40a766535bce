package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kozaktomas/facesync/internal/constants"
)

// SummaryFileName is the default file name for the persisted last run summary
const SummaryFileName = constants.SummaryFileName

// SummaryStore persists the most recent RunSummary across restarts.
type SummaryStore interface {
	// Save stores the summary, replacing any previous one
	Save(summary *RunSummary) error

	// Load returns the stored summary, or nil if there is none yet
	Load() (*RunSummary, error)
}

// fileSummaryStore implements SummaryStore using a local JSON file
type fileSummaryStore struct {
	path string
}

// NewFileSummaryStore creates a file-based summary store at path
func NewFileSummaryStore(path string) SummaryStore {
	return &fileSummaryStore{path: path}
}

// Save writes the summary to a temporary file in the same directory, fsyncs
// it and renames it into place
func (f *fileSummaryStore) Save(summary *RunSummary) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0750); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary summary file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write temporary summary file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync temporary summary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temporary summary file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		cleanup()
		return fmt.Errorf("failed to rename summary file: %w", err)
	}
	return nil
}

// Load reads the summary file. A missing file is not an error
func (f *fileSummaryStore) Load() (*RunSummary, error) {
	// #nosec G304 -- path comes from configuration
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read summary file: %w", err)
	}

	var summary RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary file: %w", err)
	}
	return &summary, nil
}
