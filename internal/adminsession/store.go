// Package adminsession persists the admin-mode flag that gates mutation
// endpoints. The flag is deliberately independent of authenticated identity:
// it belongs to the local profile, is never synced, and is cleared
// unconditionally on logout.
package adminsession

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
)

// StateKey is the fixed key the flag is persisted under.
const StateKey = "docHubAdminMode"

// ErrMissingStatePath indicates the store was built without a file path.
var ErrMissingStatePath = errors.New("adminsession: state path is required")

// Store is a file-backed admin-mode flag. A missing or unreadable state file
// reads as disabled.
type Store struct {
	mu      sync.Mutex
	path    string
	enabled bool
}

// NewStore loads the persisted flag from path, tolerating a missing file.
func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrMissingStatePath
	}
	store := &Store{path: path}
	store.enabled = store.load()
	return store, nil
}

// Enabled reports whether admin mode is on.
func (s *Store) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetEnabled flips the flag and persists it.
func (s *Store) SetEnabled(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
	return s.persistLocked()
}

// Reset disables admin mode. Called unconditionally on logout.
func (s *Store) Reset() error {
	return s.SetEnabled(false)
}

func (s *Store) load() bool {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return false
	}
	state := map[string]bool{}
	if err := json.Unmarshal(raw, &state); err != nil {
		return false
	}
	return state[StateKey]
}

func (s *Store) persistLocked() error {
	raw, err := json.Marshal(map[string]bool{StateKey: s.enabled})
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o600)
}
