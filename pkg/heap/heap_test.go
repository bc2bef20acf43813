package heap

import (
	"testing"

	"github.com/oisee/nanvm/pkg/value"
)

// rootEnv is a minimal heap.Environment for lambda tests.
type rootEnv struct{ roots []value.Value }

func (e rootEnv) Roots() []value.Value { return e.roots }

func TestPairIdentityAndMutation(t *testing.T) {
	h := New()
	a := value.Integer(1)
	b := value.Integer(2)

	p, err := h.NewPair(a, b)
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}
	if got, _ := h.Car(p); got != a {
		t.Errorf("Car = %v, want %v", got, a)
	}
	if got, _ := h.Cdr(p); got != b {
		t.Errorf("Cdr = %v, want %v", got, b)
	}

	c := value.Integer(99)
	if err := h.SetCar(p, c); err != nil {
		t.Fatalf("SetCar: %v", err)
	}
	if got, _ := h.Car(p); got != c {
		t.Errorf("after SetCar, Car = %v, want %v", got, c)
	}
}

func TestHeapLinkageCount(t *testing.T) {
	h := New()
	const n = 25
	for i := 0; i < n; i++ {
		if _, err := h.NewPair(value.Integer(int32(i)), value.Nil()); err != nil {
			t.Fatalf("NewPair #%d: %v", i, err)
		}
	}
	if got := h.Len(); got != n {
		t.Errorf("Len() = %d, want %d", got, n)
	}
}

func TestKindMismatch(t *testing.T) {
	h := New()
	notAPair := value.Integer(5)
	if _, err := h.Car(notAPair); err == nil {
		t.Fatal("expected KindMismatch error from Car on a non-pair")
	}
}

func TestVecAndStringRoundTrip(t *testing.T) {
	h := New()
	items := []value.Value{value.Integer(10), value.Integer(20), value.Integer(30)}
	v, err := h.NewVec(items)
	if err != nil {
		t.Fatalf("NewVec: %v", err)
	}
	got, err := h.VecItems(v)
	if err != nil {
		t.Fatalf("VecItems: %v", err)
	}
	if len(got) != 3 || got[1] != value.Integer(20) {
		t.Errorf("VecItems = %v", got)
	}

	s, err := h.NewString("hello")
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	text, err := h.StringText(s)
	if err != nil || text != "hello" {
		t.Errorf("StringText = %q, %v", text, err)
	}
}

func TestMarkCompleteness(t *testing.T) {
	h := New()
	inner, _ := h.NewPair(value.Integer(1), value.Nil())
	outer, _ := h.NewPair(inner, value.Integer(2))

	h.Mark(outer)

	innerIdx := inner.Pointer()
	outerIdx := outer.Pointer()
	if h.slots[innerIdx].gc&1 != 1 {
		t.Error("inner pair not marked")
	}
	if h.slots[outerIdx].gc&1 != 1 {
		t.Error("outer pair not marked")
	}
}

func TestCycleTerminatesMarkAndSurvivesSweep(t *testing.T) {
	h := New()
	p, err := h.NewPair(value.Integer(1), value.Nil())
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}
	if err := h.SetCdr(p, p); err != nil {
		t.Fatalf("SetCdr: %v", err)
	}

	h.Mark(p) // must terminate despite the self-cycle

	survivors, freed := h.Sweep()
	if survivors != 1 || freed != 0 {
		t.Errorf("Sweep() = (%d, %d), want (1, 0)", survivors, freed)
	}
	if got, _ := h.Car(p); got != value.Integer(1) {
		t.Errorf("Car(p) = %v after GC, want Integer(1)", got)
	}
	if got, _ := h.Cdr(p); got != p {
		t.Errorf("Cdr(p) = %v after GC, want p itself", got)
	}
	if h.Len() != 1 {
		t.Errorf("Len() = %d, want 1", h.Len())
	}
}

func TestSweepReclaimsUnreachable(t *testing.T) {
	h := New()
	root, _ := h.NewPair(value.Integer(1), value.Nil())
	_, _ = h.NewPair(value.Integer(2), value.Nil()) // unreachable garbage

	h.Mark(root)
	survivors, freed := h.Sweep()
	if survivors != 1 {
		t.Errorf("survivors = %d, want 1", survivors)
	}
	if freed != 1 {
		t.Errorf("freed = %d, want 1", freed)
	}
	if h.Len() != 1 {
		t.Errorf("Len() = %d, want 1", h.Len())
	}
}

func TestFreeListReusesSlots(t *testing.T) {
	h := New()
	garbage, _ := h.NewPair(value.Integer(1), value.Nil())
	_ = garbage
	// nothing marked: everything is garbage
	survivors, freed := h.Sweep()
	if survivors != 0 || freed != 1 {
		t.Fatalf("Sweep() = (%d, %d), want (0, 1)", survivors, freed)
	}

	before := len(h.slots)
	if _, err := h.NewPair(value.Integer(2), value.Nil()); err != nil {
		t.Fatalf("NewPair after sweep: %v", err)
	}
	if len(h.slots) != before {
		t.Errorf("arena grew to %d slots, want reuse of freed slot (stayed at %d)", len(h.slots), before)
	}
}

func TestAllocationFailureAndRetry(t *testing.T) {
	h := New()
	h.MaxCells = 1
	if _, err := h.NewPair(value.Integer(1), value.Nil()); err != nil {
		t.Fatalf("first allocation should succeed: %v", err)
	}
	_, err := h.NewPair(value.Integer(2), value.Nil())
	if err == nil {
		t.Fatal("expected AllocationError at capacity")
	}
	var allocErr *AllocationError
	if !asAllocError(err, &allocErr) {
		t.Fatalf("expected *AllocationError, got %T", err)
	}

	// Nothing is marked, so a sweep reclaims the first pair and a single
	// retry of the same allocation succeeds.
	h.Sweep()
	if _, err := h.NewPair(value.Integer(2), value.Nil()); err != nil {
		t.Fatalf("retry after sweep should succeed: %v", err)
	}
}

func asAllocError(err error, target **AllocationError) bool {
	ae, ok := err.(*AllocationError)
	if ok {
		*target = ae
	}
	return ok
}

func TestLambdaRootsReachableThroughEnv(t *testing.T) {
	h := New()
	captured, _ := h.NewPair(value.Integer(7), value.Nil())
	env := rootEnv{roots: []value.Value{captured}}
	lam, err := h.NewLambda(env, []Operation{"noop"})
	if err != nil {
		t.Fatalf("NewLambda: %v", err)
	}

	h.Mark(lam)
	survivors, freed := h.Sweep()
	if freed != 0 || survivors != 2 {
		t.Fatalf("Sweep() = (%d, %d), want (2, 0): captured pair should survive via env", survivors, freed)
	}
}
