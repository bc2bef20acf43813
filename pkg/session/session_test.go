package session

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSaveAndLoadCheckpointRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.gob")
	want := &Checkpoint{History: []string{"(define x 1)", "(+ x 2)"}}

	if err := SaveCheckpoint(path, want); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	got, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("checkpoint round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadCheckpointMissingFile(t *testing.T) {
	if _, err := LoadCheckpoint(filepath.Join(t.TempDir(), "missing.gob")); err == nil {
		t.Error("expected an error loading a nonexistent checkpoint")
	}
}
