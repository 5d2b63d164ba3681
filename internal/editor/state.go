package editor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// ViewState is the persisted form of a rempl view
type ViewState struct {
	URL       string      `yaml:"url" json:"url"`
	Publisher interface{} `yaml:"publisher,omitempty" json:"publisher,omitempty"`
}

type stateFile struct {
	Views []ViewState `yaml:"views"`
}

// StateStore persists open views across restarts as YAML
type StateStore struct {
	path string
}

// NewStateStore creates a store backed by path. An empty path disables
// persistence.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Path returns the state file location
func (s *StateStore) Path() string { return s.path }

// Load reads saved views. A missing file is an empty state.
func (s *StateStore) Load() ([]ViewState, error) {
	if s.path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read view state: %w", err)
	}

	var file stateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse view state: %w", err)
	}
	return file.Views, nil
}

// Save writes views, replacing the previous state atomically
func (s *StateStore) Save(views []ViewState) error {
	if s.path == "" {
		return nil
	}

	data, err := yaml.Marshal(stateFile{Views: views})
	if err != nil {
		return fmt.Errorf("failed to encode view state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write view state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace view state: %w", err)
	}
	return nil
}
