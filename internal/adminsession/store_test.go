package adminsession

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewStoreRequiresPath(t *testing.T) {
	if _, err := NewStore("   "); !errors.Is(err, ErrMissingStatePath) {
		t.Fatalf("expected ErrMissingStatePath, got %v", err)
	}
}

func TestMissingStateFileReadsAsDisabled(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if store.Enabled() {
		t.Fatalf("expected missing state file to read as disabled")
	}
}

func TestCorruptStateFileReadsAsDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("failed to write corrupt state: %v", err)
	}

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if store.Enabled() {
		t.Fatalf("expected corrupt state file to read as disabled")
	}
}

func TestSetEnabledPersistsAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.SetEnabled(true); err != nil {
		t.Fatalf("failed to enable: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read state file: %v", err)
	}
	if !strings.Contains(string(raw), StateKey) {
		t.Fatalf("expected state file to use the fixed key, got %s", raw)
	}

	reloaded, err := NewStore(path)
	if err != nil {
		t.Fatalf("failed to reload store: %v", err)
	}
	if !reloaded.Enabled() {
		t.Fatalf("expected flag to survive a restart")
	}
}

func TestResetDisablesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.SetEnabled(true); err != nil {
		t.Fatalf("failed to enable: %v", err)
	}

	if err := store.Reset(); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if store.Enabled() {
		t.Fatalf("expected reset to disable the flag")
	}

	reloaded, err := NewStore(path)
	if err != nil {
		t.Fatalf("failed to reload store: %v", err)
	}
	if reloaded.Enabled() {
		t.Fatalf("expected disabled flag to persist")
	}
}
