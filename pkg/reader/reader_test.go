package reader

import (
	"testing"

	"github.com/oisee/nanvm/pkg/heap"
	"github.com/oisee/nanvm/pkg/interner"
	"github.com/oisee/nanvm/pkg/value"
)

func newReader(t *testing.T) (*Reader, *heap.Heap, *interner.Table) {
	t.Helper()
	h := heap.New()
	syms := interner.New()
	return New(h, syms), h, syms
}

func TestReadIntegerAtom(t *testing.T) {
	r, _, _ := newReader(t)
	forms, err := r.ReadAll("42")
	if err != nil {
		t.Fatal(err)
	}
	if len(forms) != 1 || forms[0] != value.Integer(42) {
		t.Errorf("ReadAll(42) = %v, want [Integer(42)]", forms)
	}
}

func TestReadSimpleList(t *testing.T) {
	r, h, syms := newReader(t)
	forms, err := r.ReadAll("(+ 1 2)")
	if err != nil {
		t.Fatal(err)
	}
	if len(forms) != 1 {
		t.Fatalf("expected one form, got %d", len(forms))
	}
	plusID := syms.Intern("+")
	plusSym, _ := value.Symbol(plusID)

	car, err := h.Car(forms[0])
	if err != nil {
		t.Fatal(err)
	}
	if car != plusSym {
		t.Errorf("car = %v, want the + symbol", car)
	}
}

func TestReadDottedPair(t *testing.T) {
	r, h, _ := newReader(t)
	forms, err := r.ReadAll("(1 . 2)")
	if err != nil {
		t.Fatal(err)
	}
	car, _ := h.Car(forms[0])
	cdr, _ := h.Cdr(forms[0])
	if car != value.Integer(1) || cdr != value.Integer(2) {
		t.Errorf("dotted pair = (%v . %v), want (1 . 2)", car, cdr)
	}
}

func TestReadVector(t *testing.T) {
	r, h, _ := newReader(t)
	forms, err := r.ReadAll("#(10 20 30)")
	if err != nil {
		t.Fatal(err)
	}
	items, err := h.VecItems(forms[0])
	if err != nil {
		t.Fatal(err)
	}
	want := []value.Value{value.Integer(10), value.Integer(20), value.Integer(30)}
	for i, v := range want {
		if items[i] != v {
			t.Errorf("items[%d] = %v, want %v", i, items[i], v)
		}
	}
}

func TestReadQuoteShorthand(t *testing.T) {
	r, h, syms := newReader(t)
	forms, err := r.ReadAll("'x")
	if err != nil {
		t.Fatal(err)
	}
	quoteID := syms.Intern("quote")
	quoteSym, _ := value.Symbol(quoteID)
	car, _ := h.Car(forms[0])
	if car != quoteSym {
		t.Errorf("car of 'x = %v, want quote symbol", car)
	}
}

func TestReadStringLiteral(t *testing.T) {
	r, h, _ := newReader(t)
	forms, err := r.ReadAll(`"hello world"`)
	if err != nil {
		t.Fatal(err)
	}
	text, err := h.StringText(forms[0])
	if err != nil {
		t.Fatal(err)
	}
	if text != "hello world" {
		t.Errorf("StringText = %q, want %q", text, "hello world")
	}
}

func TestReadBooleans(t *testing.T) {
	r, _, _ := newReader(t)
	forms, err := r.ReadAll("#t #f")
	if err != nil {
		t.Fatal(err)
	}
	if forms[0] != value.True() || forms[1] != value.False() {
		t.Errorf("forms = %v, want [True, False]", forms)
	}
}

func TestReadMultipleTopLevelForms(t *testing.T) {
	r, _, _ := newReader(t)
	forms, err := r.ReadAll("1 2 3")
	if err != nil {
		t.Fatal(err)
	}
	if len(forms) != 3 {
		t.Errorf("ReadAll('1 2 3') produced %d forms, want 3", len(forms))
	}
}

func TestReadRationalBoxedAsString(t *testing.T) {
	r, h, _ := newReader(t)
	forms, err := r.ReadAll("3/4")
	if err != nil {
		t.Fatal(err)
	}
	text, err := h.StringText(forms[0])
	if err != nil {
		t.Fatalf("expected rational boxed as heap string, got %v (err %v)", forms[0], err)
	}
	if text != "3/4" {
		t.Errorf("StringText = %q, want 3/4", text)
	}
}

func TestBalancedParens(t *testing.T) {
	if !Balanced("(+ 1 (* 2 3))") {
		t.Error("balanced input reported unbalanced")
	}
	if Balanced("(+ 1 (* 2 3)") {
		t.Error("unbalanced input reported balanced")
	}
}

func TestUnexpectedCloseParenIsAnError(t *testing.T) {
	r, _, _ := newReader(t)
	if _, err := r.ReadAll(")"); err == nil {
		t.Error("expected an error reading a lone )")
	}
}
