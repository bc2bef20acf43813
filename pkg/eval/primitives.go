package eval

import (
	"fmt"

	"github.com/oisee/nanvm/pkg/envframe"
	"github.com/oisee/nanvm/pkg/heap"
	"github.com/oisee/nanvm/pkg/numeric"
	"github.com/oisee/nanvm/pkg/value"
)

// installPrimitives populates the global frame with the procedure set
// SPEC_FULL.md §10.6 names: "+ - * / = < > cons car cdr set-car! set-cdr!
// list vector not eq?". Each is a Lambda cell whose code is a primitive
// marker rather than a lambdaCode, so Apply dispatches to Go directly
// instead of interpreting a body.
func (i *Interp) installPrimitives() {
	table := []struct {
		name string
		fn   func(*Interp, *envframe.Frame, []value.Value) (value.Value, error)
	}{
		{"+", primAdd},
		{"-", primSub},
		{"*", primMul},
		{"/", primDiv},
		{"=", primNumEq},
		{"<", primLt},
		{">", primGt},
		{"cons", primCons},
		{"car", primCar},
		{"cdr", primCdr},
		{"set-car!", primSetCar},
		{"set-cdr!", primSetCdr},
		{"list", primList},
		{"vector", primVector},
		{"not", primNot},
		{"eq?", primEq},
	}
	for _, entry := range table {
		id := i.Syms.Intern(entry.name)
		proc, err := i.H.NewLambda(nil, []heap.Operation{primitive{name: entry.name, fn: entry.fn}})
		if err != nil {
			// The global frame is the very first thing populated, on an
			// empty heap; NewLambda cannot fail here.
			panic(fmt.Sprintf("eval: installing primitive %q: %v", entry.name, err))
		}
		i.Global.Define(id, proc)
	}
}

func primAdd(i *Interp, env *envframe.Frame, args []value.Value) (value.Value, error) {
	acc := numeric.Number(numeric.ExactInt(0))
	for _, a := range args {
		n, err := i.toNumber(a)
		if err != nil {
			return 0, err
		}
		acc = acc.Add(n)
	}
	return i.valueFromNumber(env, acc)
}

func primSub(i *Interp, env *envframe.Frame, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("eval: - requires at least 1 argument")
	}
	first, err := i.toNumber(args[0])
	if err != nil {
		return 0, err
	}
	if len(args) == 1 {
		return i.valueFromNumber(env, first.Neg())
	}
	acc := first
	for _, a := range args[1:] {
		n, err := i.toNumber(a)
		if err != nil {
			return 0, err
		}
		acc = acc.Sub(n)
	}
	return i.valueFromNumber(env, acc)
}

func primMul(i *Interp, env *envframe.Frame, args []value.Value) (value.Value, error) {
	acc := numeric.Number(numeric.ExactInt(1))
	for _, a := range args {
		n, err := i.toNumber(a)
		if err != nil {
			return 0, err
		}
		acc = acc.Mul(n)
	}
	return i.valueFromNumber(env, acc)
}

func primDiv(i *Interp, env *envframe.Frame, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("eval: / requires at least 1 argument")
	}
	first, err := i.toNumber(args[0])
	if err != nil {
		return 0, err
	}
	if len(args) == 1 {
		result, err := divideNumbers(numeric.ExactInt(1), first)
		if err != nil {
			return 0, err
		}
		return i.valueFromNumber(env, result)
	}
	acc := first
	for _, a := range args[1:] {
		n, err := i.toNumber(a)
		if err != nil {
			return 0, err
		}
		acc, err = divideNumbers(acc, n)
		if err != nil {
			return 0, err
		}
	}
	return i.valueFromNumber(env, acc)
}

// divideNumbers guards against an exact zero divisor, which big.Rat would
// otherwise panic on — the one place Number's Div contract pushes a check
// back onto its caller (see pkg/numeric's Div doc comment).
func divideNumbers(a, b numeric.Number) (numeric.Number, error) {
	if be, ok := b.(numeric.Exact); ok && be.Real.Sign() == 0 && be.Imag.Sign() == 0 {
		return nil, fmt.Errorf("eval: division by zero")
	}
	return a.Div(b), nil
}

func compareChain(i *Interp, args []value.Value, ok func(cmp int) bool) (value.Value, error) {
	for idx := 0; idx+1 < len(args); idx++ {
		a, err := i.toNumber(args[idx])
		if err != nil {
			return 0, err
		}
		b, err := i.toNumber(args[idx+1])
		if err != nil {
			return 0, err
		}
		cmp, comparable := a.Compare(b)
		if !comparable {
			return 0, fmt.Errorf("eval: comparison is undefined for complex operands")
		}
		if !ok(cmp) {
			return value.False(), nil
		}
	}
	return value.True(), nil
}

func primNumEq(i *Interp, env *envframe.Frame, args []value.Value) (value.Value, error) {
	return compareChain(i, args, func(cmp int) bool { return cmp == 0 })
}

func primLt(i *Interp, env *envframe.Frame, args []value.Value) (value.Value, error) {
	return compareChain(i, args, func(cmp int) bool { return cmp < 0 })
}

func primGt(i *Interp, env *envframe.Frame, args []value.Value) (value.Value, error) {
	return compareChain(i, args, func(cmp int) bool { return cmp > 0 })
}

func primCons(i *Interp, env *envframe.Frame, args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return 0, fmt.Errorf("eval: cons expects 2 arguments, got %d", len(args))
	}
	return i.allocRetry(env, args, func() (value.Value, error) {
		return i.H.NewPair(args[0], args[1])
	})
}

func primCar(i *Interp, env *envframe.Frame, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("eval: car expects 1 argument, got %d", len(args))
	}
	return i.H.Car(args[0])
}

func primCdr(i *Interp, env *envframe.Frame, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("eval: cdr expects 1 argument, got %d", len(args))
	}
	return i.H.Cdr(args[0])
}

func primSetCar(i *Interp, env *envframe.Frame, args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return 0, fmt.Errorf("eval: set-car! expects 2 arguments, got %d", len(args))
	}
	if err := i.H.SetCar(args[0], args[1]); err != nil {
		return 0, err
	}
	return value.Void(), nil
}

func primSetCdr(i *Interp, env *envframe.Frame, args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return 0, fmt.Errorf("eval: set-cdr! expects 2 arguments, got %d", len(args))
	}
	if err := i.H.SetCdr(args[0], args[1]); err != nil {
		return 0, err
	}
	return value.Void(), nil
}

func primList(i *Interp, env *envframe.Frame, args []value.Value) (value.Value, error) {
	return i.buildList(env, args)
}

func primVector(i *Interp, env *envframe.Frame, args []value.Value) (value.Value, error) {
	return i.allocRetry(env, args, func() (value.Value, error) {
		return i.H.NewVec(args)
	})
}

func primNot(i *Interp, env *envframe.Frame, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("eval: not expects 1 argument, got %d", len(args))
	}
	return value.Bool(args[0].IsFalse()), nil
}

// primEq implements eq? as plain Value equality: for immediates that's
// value equality, for heap-tagged Values that's pointer (arena index)
// identity — exactly the distinction eq? is supposed to draw, and exactly
// what the tagged-word representation gives for free.
func primEq(i *Interp, env *envframe.Frame, args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return 0, fmt.Errorf("eval: eq? expects 2 arguments, got %d", len(args))
	}
	return value.Bool(args[0] == args[1]), nil
}
