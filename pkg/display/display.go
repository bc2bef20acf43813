// Package display implements the canonical printing rules of spec.md §4.5
// (C6): the one place THE CORE's Value/heap representation is turned into
// human-readable text.
package display

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/oisee/nanvm/pkg/heap"
	"github.com/oisee/nanvm/pkg/interner"
	"github.com/oisee/nanvm/pkg/value"
)

// SymbolText resolves a symbol's display string. display's functions take
// one in rather than a concrete interner.Table, so any symbol source can be
// used; pkg/interner is imported only for the compile-time check below that
// interner.Table satisfies it.
type SymbolText interface {
	Text(id uint64) (string, bool)
}

var _ SymbolText = (*interner.Table)(nil)

// Write prints v to w following spec.md §4.5. Pair chains are printed
// through cdr for as long as each cdr is itself a pair, terminating on nil
// (proper list) or printing " . cdr)" for an improper tail. A cycle
// introduced by SetCdr would otherwise diverge (spec.md §9 permits this);
// Write instead uses a bounded per-call visited set so a self-referential
// structure still produces output and returns, printing "..." at the point
// a cell is revisited.
func Write(w io.Writer, h *heap.Heap, syms SymbolText, v value.Value) error {
	p := &printer{w: w, h: h, syms: syms, visiting: map[uint64]bool{}}
	return p.write(v)
}

// String is a convenience wrapper over Write for tests and REPL output.
func String(h *heap.Heap, syms SymbolText, v value.Value) string {
	var b strings.Builder
	_ = Write(&b, h, syms, v)
	return b.String()
}

type printer struct {
	w        io.Writer
	h        *heap.Heap
	syms     SymbolText
	visiting map[uint64]bool
}

func (p *printer) write(v value.Value) error {
	kind, err := v.Classify()
	if err != nil {
		_, werr := fmt.Fprintf(p.w, "#<reserved-tag:%v>", err)
		return werr
	}

	switch kind {
	case value.KindVoid:
		return nil
	case value.KindNil:
		return p.puts("()")
	case value.KindBool:
		if v.IsTrue() {
			return p.puts("#t")
		}
		return p.puts("#f")
	case value.KindInteger:
		return p.puts(strconv.FormatInt(int64(v.ToInteger()), 10))
	case value.KindFloat:
		return p.puts(formatFloat(v.ToFloat()))
	case value.KindSymbol:
		text, ok := p.syms.Text(v.ToSymbolID())
		if !ok {
			return p.puts(fmt.Sprintf("#<unknown-symbol:%d>", v.ToSymbolID()))
		}
		return p.puts(text)
	case value.KindLambda:
		return p.puts("#<procedure>")
	case value.KindString:
		text, err := p.h.StringText(v)
		if err != nil {
			return err
		}
		return p.puts("\"" + text + "\"")
	case value.KindVec:
		return p.writeVec(v)
	case value.KindPair:
		return p.writePair(v)
	default:
		return p.puts(fmt.Sprintf("debug: %#v", v))
	}
}

func (p *printer) writeVec(v value.Value) error {
	items, err := p.h.VecItems(v)
	if err != nil {
		return err
	}
	if err := p.puts("#("); err != nil {
		return err
	}
	for i, item := range items {
		if i > 0 {
			if err := p.puts(", "); err != nil {
				return err
			}
		}
		if err := p.write(item); err != nil {
			return err
		}
	}
	return p.puts(")")
}

func (p *printer) writePair(v value.Value) error {
	idx := v.Pointer()
	if p.visiting[idx] {
		return p.puts("...")
	}
	p.visiting[idx] = true
	defer delete(p.visiting, idx)

	if err := p.puts("("); err != nil {
		return err
	}
	car, err := p.h.Car(v)
	if err != nil {
		return err
	}
	if err := p.write(car); err != nil {
		return err
	}

	cdr, err := p.h.Cdr(v)
	if err != nil {
		return err
	}
	for cdr.IsPair() {
		cdrIdx := cdr.Pointer()
		if p.visiting[cdrIdx] {
			return p.puts(" ...)")
		}
		if err := p.puts(" "); err != nil {
			return err
		}
		nextCar, err := p.h.Car(cdr)
		if err != nil {
			return err
		}
		if err := p.write(nextCar); err != nil {
			return err
		}
		p.visiting[cdrIdx] = true
		defer delete(p.visiting, cdrIdx)
		cdr, err = p.h.Cdr(cdr)
		if err != nil {
			return err
		}
	}

	if cdr.IsNil() {
		return p.puts(")")
	}
	if err := p.puts(" . "); err != nil {
		return err
	}
	if err := p.write(cdr); err != nil {
		return err
	}
	return p.puts(")")
}

func (p *printer) puts(s string) error {
	_, err := io.WriteString(p.w, s)
	return err
}

// formatFloat implements the Float display rule: shortest round-trip
// decimal, with the three IEEE specials spelled out Scheme-style.
func formatFloat(x float64) string {
	switch {
	case math.IsInf(x, 1):
		return "+inf.0"
	case math.IsInf(x, -1):
		return "-inf.0"
	case math.IsNaN(x):
		return "+nan.0"
	default:
		s := strconv.FormatFloat(x, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += "."
		}
		return s
	}
}
