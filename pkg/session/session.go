// Package session adapts the teacher repo's checkpoint mechanism
// (pkg/result/checkpoint.go's gob-encoded search Checkpoint) to the REPL
// domain: instead of search progress, a nanvm Checkpoint holds the raw
// top-level source forms entered in a session. Runtime Values and the heap
// arena they live in are not themselves serializable (a Value's meaning
// depends on the arena it indexes into, and a Lambda closes over a live
// *envframe.Frame) — the original source's REPL has no persistence either,
// so replaying recorded input against a fresh interpreter is the grounded
// way to "resume" a session, not an attempt to snapshot live heap state.
package session

import (
	"encoding/gob"
	"os"
)

// Checkpoint is the persisted session state: every top-level form the user
// entered, in order. Replaying them against a fresh eval.Interp reproduces
// identical bindings and identical interned symbol IDs, since both the
// special-form/primitive install order and form evaluation are deterministic.
type Checkpoint struct {
	History []string
}

func init() {
	gob.Register(Checkpoint{})
}

// SaveCheckpoint writes session state to path.
func SaveCheckpoint(path string, ckpt *Checkpoint) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(ckpt)
}

// LoadCheckpoint loads session state from path.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var ckpt Checkpoint
	if err := gob.NewDecoder(f).Decode(&ckpt); err != nil {
		return nil, err
	}
	return &ckpt, nil
}
