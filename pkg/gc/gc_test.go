package gc

import (
	"testing"

	"github.com/oisee/nanvm/pkg/heap"
	"github.com/oisee/nanvm/pkg/value"
)

func TestCollectReclaimsGarbageAndKeepsRoots(t *testing.T) {
	h := heap.New()
	root, err := h.NewPair(value.Integer(1), value.Nil())
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}
	if _, err := h.NewPair(value.Integer(2), value.Nil()); err != nil {
		t.Fatalf("NewPair garbage: %v", err)
	}

	c := New(h)
	survivors, freed := c.Collect(root)
	if survivors != 1 || freed != 1 {
		t.Fatalf("Collect() = (%d, %d), want (1, 1)", survivors, freed)
	}

	stats := c.Stats()
	if stats.Cycles != 1 || stats.Survivors != 1 || stats.Freed != 1 {
		t.Errorf("Stats() = %+v, want {Cycles:1 Survivors:1 Freed:1}", stats)
	}

	if got, _ := h.Car(root); got != value.Integer(1) {
		t.Errorf("root Car after Collect = %v, want Integer(1)", got)
	}
}

func TestCollectAccumulatesAcrossCycles(t *testing.T) {
	h := heap.New()
	c := New(h)

	root, _ := h.NewPair(value.Integer(1), value.Nil())
	c.Collect(root)

	_, _ = h.NewPair(value.Integer(2), value.Nil())
	c.Collect(root)

	stats := c.Stats()
	if stats.Cycles != 2 {
		t.Errorf("Cycles = %d, want 2", stats.Cycles)
	}
	if stats.Freed != 1 {
		t.Errorf("cumulative Freed = %d, want 1", stats.Freed)
	}
}
