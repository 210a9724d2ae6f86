// Package statefile persists the seen-set between runs.
package statefile

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

const currentVersion = 1

// State is the persisted session state.
type State struct {
	Version   int       `yaml:"version"`
	SessionID string    `yaml:"session_id,omitempty"`
	Seen      []string  `yaml:"seen"`
	SavedAt   time.Time `yaml:"saved_at"`
}

// Store reads and writes the state file.
type Store struct {
	mu   sync.Mutex
	path string
}

// New creates a store for the given path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the state file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the state file. A missing file yields an empty state.
func (s *Store) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &State{Version: currentVersion, Seen: []string{}}, nil
		}
		return nil, errors.Wrapf(err, "failed to read state file %s", s.path)
	}

	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, errors.Wrapf(err, "failed to parse state file %s", s.path)
	}
	if st.Version > currentVersion {
		return nil, errors.Newf("state file %s has unsupported version %d", s.path, st.Version)
	}
	if st.Seen == nil {
		st.Seen = []string{}
	}
	return &st, nil
}

// Save writes the state atomically: the content is written to a temporary
// file in the same directory, verified, then renamed over the target.
func (s *Store) Save(st *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := *st
	out.Version = currentVersion
	if out.Seen == nil {
		out.Seen = []string{}
	}
	content, err := yaml.Marshal(&out)
	if err != nil {
		return errors.Wrap(err, "failed to marshal state")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create state directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".narrator-state-*.yaml")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return errors.Wrap(err, "failed to write temp file")
	}
	if err := tmp.Sync(); err != nil {
		return errors.Wrap(err, "failed to sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close temp file")
	}

	written, err := os.ReadFile(tmpName)
	if err != nil {
		return errors.Wrap(err, "failed to read back temp file")
	}
	var check State
	if err := yaml.Unmarshal(written, &check); err != nil {
		return errors.Wrap(err, "written state is not valid yaml")
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return errors.Wrap(err, "failed to rename state file")
	}
	return nil
}
