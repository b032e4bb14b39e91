// Package session keeps view state (selection and expansion) between CLI invocations.
package session

import (
	"errors"
	"fmt"
	"os"
	"net/url"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mattsolo1/grove-mlconsole/pkg/models"
)

// Kind names the collection a session belongs to.
type Kind string

const (
	KindArtifacts Kind = "artifacts"
	KindTags      Kind = "tags"
)

// State is the persisted view state of one collection.
type State struct {
	Selected  []string  `yaml:"selected,omitempty"`
	Expanded  []string  `yaml:"expanded,omitempty"`
	Rows      []Row     `yaml:"rows,omitempty"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// Row is a selected tag row, pinned to the content it had when it was selected.
type Row struct {
	Index int    `yaml:"index"`
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// PinRows records the selected indices of rows together with their content.
func PinRows(rows []models.Tag, selected []int) []Row {
	out := make([]Row, 0, len(selected))
	for _, i := range selected {
		if i < 0 || i >= len(rows) {
			continue
		}
		out = append(out, Row{Index: i, Key: rows[i].Key, Value: rows[i].Value})
	}
	return out
}

// RowIndices returns the saved indices that still hold the row that was selected.
// An index whose row was changed, removed or shifted by another writer is dropped.
func (st *State) RowIndices(rows []models.Tag) []int {
	out := make([]int, 0, len(st.Rows))
	for _, r := range st.Rows {
		if r.Index < 0 || r.Index >= len(rows) {
			continue
		}
		if rows[r.Index].Key != r.Key || rows[r.Index].Value != r.Value {
			continue
		}
		out = append(out, r.Index)
	}
	return out
}

// Store reads and writes session files under <data_dir>/sessions.
type Store struct {
	dir string
}

// NewStore creates a store under dataDir. The directory is created on first save.
func NewStore(dataDir string) *Store {
	return &Store{dir: filepath.Join(dataDir, "sessions")}
}

// path escapes the owner so that separators never leave the sessions dir and distinct owners
// never share a file.
func (s *Store) path(kind Kind, owner string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s.yaml", kind, url.PathEscape(owner)))
}

// Load returns the saved state, or an empty state if none was saved.
func (s *Store) Load(kind Kind, owner string) (*State, error) {
	data, err := os.ReadFile(s.path(kind, owner))
	if errors.Is(err, os.ErrNotExist) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", s.path(kind, owner), err)
	}
	return &st, nil
}

// Save writes the state, stamping UpdatedAt.
func (s *Store) Save(kind Kind, owner string, st *State) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}
	st.UpdatedAt = time.Now().UTC()

	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	// Write to a temp file and rename so a crash never leaves a truncated session.
	p := s.path(kind, owner)
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return os.Rename(tmp, p)
}

// Clear removes the saved state. A missing file is not an error.
func (s *Store) Clear(kind Kind, owner string) error {
	err := os.Remove(s.path(kind, owner))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
