package state

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mscherer/site-builder/internal/errors"
)

// Store reads and writes one status file.
type Store struct {
	path string
}

// NewStore creates a store for the status file at path.
func NewStore(path string) *Store { return &Store{path: path} }

// Path returns the status file location.
func (s *Store) Path() string { return s.path }

// Load returns the persisted status, or a zero Status if the file does not exist.
func (s *Store) Load() (Status, error) {
	var st Status
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return st, nil
	}
	if err != nil {
		return st, errors.StateError("load", err).WithContext("path", s.path)
	}
	if err := yaml.Unmarshal(data, &st); err != nil {
		return Status{}, errors.StateError("load", fmt.Errorf("parse %s: %w", s.path, err)).WithContext("path", s.path)
	}
	return st, nil
}

// Save replaces the status file atomically.
func (s *Store) Save(st Status) error {
	if st.SubmoduleCommits == nil {
		st.SubmoduleCommits = map[string]string{}
	}
	data, err := yaml.Marshal(&st)
	if err != nil {
		return errors.StateError("save", fmt.Errorf("failed to marshal status: %w", err))
	}

	// Atomic write using a temporary file in the same directory
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.StateError("save", err).WithContext("path", s.path)
	}
	tmpPath := tmp.Name()
	_, werr := tmp.Write(data)
	if werr == nil {
		werr = tmp.Sync()
	}
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Chmod(tmpPath, 0o644)
	}
	if werr == nil {
		werr = os.Rename(tmpPath, s.path)
	}
	if werr != nil {
		_ = os.Remove(tmpPath)
		return errors.StateError("save", werr).WithContext("path", s.path)
	}
	return nil
}
