package interner

import "testing"

func TestInternIsStableAndDeduplicates(t *testing.T) {
	tab := New()
	a := tab.Intern("foo")
	b := tab.Intern("bar")
	c := tab.Intern("foo")

	if a != c {
		t.Errorf("Intern(\"foo\") not stable: %d != %d", a, c)
	}
	if a == b {
		t.Errorf("distinct strings got the same id")
	}

	text, ok := tab.Text(a)
	if !ok || text != "foo" {
		t.Errorf("Text(%d) = %q, %v, want \"foo\", true", a, text, ok)
	}
}

func TestTextUnknownID(t *testing.T) {
	tab := New()
	if _, ok := tab.Text(999); ok {
		t.Error("expected unknown id to report ok=false")
	}
}
