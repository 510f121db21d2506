package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// MergeStatePath returns the canonical merge-sequencer state file path
// under repoRoot.
func MergeStatePath(repoRoot string) string {
	return filepath.Join(repoRoot, ".pait", "state", "finalize.json")
}

// MergeStore owns serialized reads and writes of the merge-sequencer
// state file, mirroring Store's load-modify-save discipline.
type MergeStore struct {
	mu     sync.Mutex
	path   string
	logger Logger
}

// NewMergeStore creates a MergeStore for repoRoot's canonical merge
// state path. A nil logger installs a no-op logger.
func NewMergeStore(repoRoot string, logger Logger) *MergeStore {
	if logger == nil {
		logger = noopLogger{}
	}

	return &MergeStore{path: MergeStatePath(repoRoot), logger: logger}
}

// Path returns the canonical state file path this store writes to.
func (s *MergeStore) Path() string {
	return s.path
}

// Load reads and parses the state file. A missing file or malformed
// content yields (nil, nil).
func (s *MergeStore) Load() (*MergeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadLocked()
}

func (s *MergeStore) loadLocked() (*MergeState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, nil //nolint:nilerr // missing file is not an error condition
	}

	var st MergeState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, nil //nolint:nilerr // malformed content is not an error condition
	}

	if st.SchemaVersion > SchemaVersion {
		s.logger.Warnf(
			"merge state file %s declares schema version %d, newer than supported %d",
			s.path, st.SchemaVersion, SchemaVersion,
		)
	}

	if st.PRs == nil {
		st.PRs = make(map[string]*MergeRecord)
	}

	return &st, nil
}

// Mutate loads the current state (initializing a fresh one if none
// exists), applies fn, and saves the result under the store's mutex.
func (s *MergeStore) Mutate(fn func(*MergeState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.loadLocked()
	if err != nil {
		return err
	}
	if st == nil {
		st = NewMergeState(time.Now().UTC())
	}

	if err := fn(st); err != nil {
		return err
	}

	st.UpdatedAt = time.Now().UTC()

	return s.writeLocked(st)
}

func (s *MergeStore) writeLocked(st *MergeState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, statePerm); err != nil {
		return err
	}

	return os.Rename(tmp, s.path)
}
