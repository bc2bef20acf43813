// Package eval is the tree-walking evaluator spec.md places out of scope as
// a design ("bytecode opcodes and the evaluator driving them ... are
// referenced here only as collaborators") but that SPEC_FULL.md §10.6 adds
// so the system actually runs: a minimal Scheme-family core over pkg/value
// and pkg/heap, with pkg/envframe for lexical scope and pkg/gc for
// collection.
//
// Eval never holds a Value live across an allocation without the Value
// appearing in the roots allocRetry's collect sees — either via env, the
// extra parameter, or Interp.pendingRoots — so a GC cycle triggered
// mid-evaluation, at any depth, sees everything the evaluator is still
// using.
package eval

import (
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/oisee/nanvm/pkg/display"
	"github.com/oisee/nanvm/pkg/envframe"
	"github.com/oisee/nanvm/pkg/gc"
	"github.com/oisee/nanvm/pkg/heap"
	"github.com/oisee/nanvm/pkg/interner"
	"github.com/oisee/nanvm/pkg/numeric"
	"github.com/oisee/nanvm/pkg/value"
)

// UnknownSymbolError reports an UnknownSymbol (spec.md §7): a reference or
// set! to a symbol with no binding in scope.
type UnknownSymbolError struct {
	Name string
}

func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("eval: unbound symbol %q", e.Name)
}

// lambdaCode is the heap.Operation payload for a user-defined closure: a
// fixed (and optionally variadic) parameter list plus a sequence of body
// forms evaluated in order, Scheme's implicit `begin`.
type lambdaCode struct {
	params   []uint64
	variadic bool
	rest     uint64
	body     []value.Value
}

// primitive is the heap.Operation payload for a built-in procedure. Its
// closure environment is always nil: primitives never close over lexical
// state, only over the Interp they were installed on.
type primitive struct {
	name string
	fn   func(i *Interp, env *envframe.Frame, args []value.Value) (value.Value, error)
}

// Interp ties THE CORE together into something that can run a REPL:
// pkg/heap's arena, pkg/gc's collector, pkg/interner's symbol table, and the
// global pkg/envframe.Frame primitives are installed into.
type Interp struct {
	H      *heap.Heap
	Syms   *interner.Table
	GC     *gc.Collector
	Global *envframe.Frame

	// GCThreshold is the number of allocations the evaluator lets through
	// before proactively running a collection cycle (spec.md §4.7's
	// "allocation pressure ... threshold the evaluator owns"). Zero disables
	// proactive collection; AllocationFailure retry still applies.
	GCThreshold int
	allocsSeen  int

	// pendingRoots is a shadow stack of Values the evaluator is holding in
	// Go-local variables partway through building a larger structure — e.g.
	// evalArgs's already-evaluated siblings while it evaluates the next one.
	// Every allocRetry/collect call consults it in addition to env.Roots(),
	// so a GC cycle triggered anywhere below a pushRoots call still sees
	// everything above it on the call stack, no matter how deep the nested
	// evaluation that triggers the cycle.
	pendingRoots []value.Value

	quoteID, ifID, defineID, lambdaID, beginID, setID uint64
}

// pushRoots extends pendingRoots with vs and returns a func that restores it
// to its prior length. Callers must defer or otherwise always invoke the
// returned func, the same push/pop discipline as a lexical scope.
func (i *Interp) pushRoots(vs []value.Value) func() {
	base := len(i.pendingRoots)
	i.pendingRoots = append(i.pendingRoots, vs...)
	return func() { i.pendingRoots = i.pendingRoots[:base] }
}

// New builds an interpreter over a fresh heap arena and symbol table,
// installs the special-form symbols, and populates the global frame with
// the primitive procedure set.
func New(gcThreshold int) *Interp {
	h := heap.New()
	syms := interner.New()
	i := &Interp{
		H:           h,
		Syms:        syms,
		GC:          gc.New(h),
		Global:      envframe.New(nil),
		GCThreshold: gcThreshold,
	}
	i.quoteID = syms.Intern("quote")
	i.ifID = syms.Intern("if")
	i.defineID = syms.Intern("define")
	i.lambdaID = syms.Intern("lambda")
	i.beginID = syms.Intern("begin")
	i.setID = syms.Intern("set!")
	i.installPrimitives()
	return i
}

// allocRetry runs mk, and if it fails with an AllocationFailure, runs one GC
// cycle over env's roots plus extra (live Values the caller is holding that
// aren't reachable from env, e.g. partially-built argument lists) and
// retries mk exactly once — spec.md §7's propagation policy: "the heap
// never retries internally; the evaluator may trigger garbage collection
// and retry the allocation once."
func (i *Interp) allocRetry(env *envframe.Frame, extra []value.Value, mk func() (value.Value, error)) (value.Value, error) {
	i.allocsSeen++
	if i.GCThreshold > 0 && i.allocsSeen >= i.GCThreshold {
		i.allocsSeen = 0
		i.collect(env, extra)
	}

	v, err := mk()
	if err == nil {
		return v, nil
	}
	var allocErr *heap.AllocationError
	if !errors.As(err, &allocErr) {
		return 0, err
	}
	glog.V(1).Infof("eval: allocation failed (%v), collecting and retrying once", err)
	i.collect(env, extra)
	return mk()
}

func (i *Interp) collect(env *envframe.Frame, extra []value.Value) {
	roots := append(append([]value.Value(nil), extra...), i.pendingRoots...)
	roots = append(roots, env.Roots()...)
	i.GC.Collect(roots...)
}

// Eval evaluates expr in env. Self-evaluating kinds (everything but Symbol
// and Pair) are returned unchanged.
func (i *Interp) Eval(env *envframe.Frame, expr value.Value) (value.Value, error) {
	kind, err := expr.Classify()
	if err != nil {
		return 0, err
	}
	switch kind {
	case value.KindSymbol:
		id := expr.ToSymbolID()
		if v, ok := env.Lookup(id); ok {
			return v, nil
		}
		name, _ := i.Syms.Text(id)
		return 0, &UnknownSymbolError{Name: name}
	case value.KindPair:
		// expr's cells (the code being run, including subforms not yet
		// evaluated) are otherwise held only by the caller; root them for
		// the duration of this evaluation.
		pop := i.pushRoots([]value.Value{expr})
		defer pop()
		return i.evalPair(env, expr)
	default:
		return expr, nil
	}
}

func (i *Interp) evalPair(env *envframe.Frame, expr value.Value) (value.Value, error) {
	head, err := i.H.Car(expr)
	if err != nil {
		return 0, err
	}
	if head.IsSymbol() {
		switch head.ToSymbolID() {
		case i.quoteID:
			args, err := i.listArgs(expr)
			if err != nil {
				return 0, err
			}
			if len(args) != 1 {
				return 0, fmt.Errorf("eval: quote expects exactly one argument")
			}
			return args[0], nil
		case i.ifID:
			return i.evalIf(env, expr)
		case i.defineID:
			return i.evalDefine(env, expr)
		case i.lambdaID:
			return i.evalLambda(env, expr)
		case i.beginID:
			return i.evalBegin(env, expr)
		case i.setID:
			return i.evalSet(env, expr)
		}
	}

	proc, err := i.Eval(env, head)
	if err != nil {
		return 0, err
	}
	// proc is a Go-local Value until Apply consumes it below; root it
	// explicitly so evaluating args can't have it collected out from under us.
	pop := i.pushRoots([]value.Value{proc})
	args, err := i.evalArgs(env, expr)
	pop()
	if err != nil {
		return 0, err
	}
	return i.Apply(env, proc, args)
}

// listArgs collects the Values in the cdr-chain following expr's car,
// erroring on an improper (dotted) operand list.
func (i *Interp) listArgs(expr value.Value) ([]value.Value, error) {
	rest, err := i.H.Cdr(expr)
	if err != nil {
		return nil, err
	}
	var out []value.Value
	for rest.IsPair() {
		item, err := i.H.Car(rest)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
		if rest, err = i.H.Cdr(rest); err != nil {
			return nil, err
		}
	}
	if !rest.IsNil() {
		return nil, fmt.Errorf("eval: improper argument list")
	}
	return out, nil
}

// evalArgs evaluates each operand in order. Every already-evaluated sibling
// is pushed onto pendingRoots before evaluating the next one, so a GC cycle
// triggered anywhere while evaluating form N (however deeply nested) still
// sees forms 0..N-1, which otherwise live only in the out slice below and
// nowhere env.Roots() would find them.
func (i *Interp) evalArgs(env *envframe.Frame, expr value.Value) ([]value.Value, error) {
	forms, err := i.listArgs(expr)
	if err != nil {
		return nil, err
	}
	out := make([]value.Value, len(forms))
	for idx, f := range forms {
		pop := i.pushRoots(out[:idx])
		v, err := i.Eval(env, f)
		pop()
		if err != nil {
			return nil, err
		}
		out[idx] = v
	}
	return out, nil
}

func isTruthy(v value.Value) bool { return !v.IsFalse() }

func (i *Interp) evalIf(env *envframe.Frame, expr value.Value) (value.Value, error) {
	args, err := i.listArgs(expr)
	if err != nil {
		return 0, err
	}
	if len(args) < 2 || len(args) > 3 {
		return 0, fmt.Errorf("eval: if expects (if test then [else]), got %d forms", len(args))
	}
	test, err := i.Eval(env, args[0])
	if err != nil {
		return 0, err
	}
	if isTruthy(test) {
		return i.Eval(env, args[1])
	}
	if len(args) == 3 {
		return i.Eval(env, args[2])
	}
	return value.Void(), nil
}

func (i *Interp) evalDefine(env *envframe.Frame, expr value.Value) (value.Value, error) {
	args, err := i.listArgs(expr)
	if err != nil {
		return 0, err
	}
	if len(args) < 1 {
		return 0, fmt.Errorf("eval: define expects at least a target")
	}
	target := args[0]

	if target.IsSymbol() {
		if len(args) != 2 {
			return 0, fmt.Errorf("eval: define expects (define sym expr)")
		}
		val, err := i.Eval(env, args[1])
		if err != nil {
			return 0, err
		}
		env.Define(target.ToSymbolID(), val)
		return value.Void(), nil
	}

	if target.IsPair() {
		// (define (name . params) body...) sugar for
		// (define name (lambda params body...)).
		nameV, err := i.H.Car(target)
		if err != nil {
			return 0, err
		}
		if !nameV.IsSymbol() {
			return 0, fmt.Errorf("eval: define: procedure name must be a symbol")
		}
		paramsList, err := i.H.Cdr(target)
		if err != nil {
			return 0, err
		}
		lam, err := i.makeLambda(env, paramsList, args[1:])
		if err != nil {
			return 0, err
		}
		env.Define(nameV.ToSymbolID(), lam)
		return value.Void(), nil
	}

	return 0, fmt.Errorf("eval: define: target must be a symbol or (name . params)")
}

func (i *Interp) evalLambda(env *envframe.Frame, expr value.Value) (value.Value, error) {
	args, err := i.listArgs(expr)
	if err != nil {
		return 0, err
	}
	if len(args) < 1 {
		return 0, fmt.Errorf("eval: lambda expects a parameter list")
	}
	return i.makeLambda(env, args[0], args[1:])
}

func (i *Interp) makeLambda(env *envframe.Frame, paramsList value.Value, body []value.Value) (value.Value, error) {
	params, variadic, rest, err := i.parseParams(paramsList)
	if err != nil {
		return 0, err
	}
	code := lambdaCode{params: params, variadic: variadic, rest: rest, body: append([]value.Value(nil), body...)}
	return i.allocRetry(env, body, func() (value.Value, error) {
		return i.H.NewLambda(env, []heap.Operation{code})
	})
}

func (i *Interp) parseParams(paramsList value.Value) (params []uint64, variadic bool, rest uint64, err error) {
	if paramsList.IsSymbol() {
		return nil, true, paramsList.ToSymbolID(), nil
	}
	cur := paramsList
	for cur.IsPair() {
		item, err := i.H.Car(cur)
		if err != nil {
			return nil, false, 0, err
		}
		if !item.IsSymbol() {
			return nil, false, 0, fmt.Errorf("eval: lambda: parameter list must contain only symbols")
		}
		params = append(params, item.ToSymbolID())
		if cur, err = i.H.Cdr(cur); err != nil {
			return nil, false, 0, err
		}
	}
	if cur.IsNil() {
		return params, false, 0, nil
	}
	if cur.IsSymbol() {
		return params, true, cur.ToSymbolID(), nil
	}
	return nil, false, 0, fmt.Errorf("eval: lambda: malformed parameter list")
}

func (i *Interp) evalBegin(env *envframe.Frame, expr value.Value) (value.Value, error) {
	args, err := i.listArgs(expr)
	if err != nil {
		return 0, err
	}
	result := value.Void()
	for _, a := range args {
		result, err = i.Eval(env, a)
		if err != nil {
			return 0, err
		}
	}
	return result, nil
}

func (i *Interp) evalSet(env *envframe.Frame, expr value.Value) (value.Value, error) {
	args, err := i.listArgs(expr)
	if err != nil {
		return 0, err
	}
	if len(args) != 2 || !args[0].IsSymbol() {
		return 0, fmt.Errorf("eval: set! expects (set! sym expr)")
	}
	val, err := i.Eval(env, args[1])
	if err != nil {
		return 0, err
	}
	if !env.Set(args[0].ToSymbolID(), val) {
		name, _ := i.Syms.Text(args[0].ToSymbolID())
		return 0, &UnknownSymbolError{Name: name}
	}
	return value.Void(), nil
}

// Apply invokes proc (a Lambda Value, user-defined or primitive) with args.
// env is the caller's environment, used only as a GC root source if applying
// a primitive needs to allocate.
func (i *Interp) Apply(env *envframe.Frame, proc value.Value, args []value.Value) (value.Value, error) {
	if !proc.IsLambda() {
		return 0, fmt.Errorf("eval: not a procedure: %s", display.String(i.H, i.Syms, proc))
	}
	closureEnv, code, err := i.H.LambdaParts(proc)
	if err != nil {
		return 0, err
	}
	if len(code) == 0 {
		return 0, fmt.Errorf("eval: procedure has no code")
	}
	switch c := code[0].(type) {
	case primitive:
		return c.fn(i, env, args)
	case lambdaCode:
		return i.applyClosure(closureEnv, c, args)
	default:
		return 0, fmt.Errorf("eval: procedure has unrecognized code %T", code[0])
	}
}

func (i *Interp) applyClosure(closureEnv heap.Environment, c lambdaCode, args []value.Value) (value.Value, error) {
	parent, ok := closureEnv.(*envframe.Frame)
	if !ok {
		return 0, fmt.Errorf("eval: closure environment has unexpected type %T", closureEnv)
	}
	frame := parent.Child()

	if c.variadic {
		if len(args) < len(c.params) {
			return 0, fmt.Errorf("eval: procedure expects at least %d arguments, got %d", len(c.params), len(args))
		}
	} else if len(args) != len(c.params) {
		return 0, fmt.Errorf("eval: procedure expects %d arguments, got %d", len(c.params), len(args))
	}
	for idx, pid := range c.params {
		frame.Define(pid, args[idx])
	}
	if c.variadic {
		restVal, err := i.buildList(frame, args[len(c.params):])
		if err != nil {
			return 0, err
		}
		frame.Define(c.rest, restVal)
	}

	result := value.Void()
	var err error
	for _, b := range c.body {
		result, err = i.Eval(frame, b)
		if err != nil {
			return 0, err
		}
	}
	return result, nil
}

// buildList conses items into a proper list, back to front.
func (i *Interp) buildList(env *envframe.Frame, items []value.Value) (value.Value, error) {
	result := value.Nil()
	for idx := len(items) - 1; idx >= 0; idx-- {
		item := items[idx]
		v, err := i.allocRetry(env, append([]value.Value{result}, items[:idx+1]...), func() (value.Value, error) {
			return i.H.NewPair(item, result)
		})
		if err != nil {
			return 0, err
		}
		result = v
	}
	return result, nil
}

// toNumber projects a Value into the numeric tower: Integer and Float map
// directly, a heap String is re-parsed (the representation pkg/reader and
// this package use for exact non-integer/overflowing results — spec.md
// §6.3: "the exact binding is left to the evaluator").
func (i *Interp) toNumber(v value.Value) (numeric.Number, error) {
	switch {
	case v.IsInteger():
		return numeric.ExactInt(int64(v.ToInteger())), nil
	case v.IsFloat():
		return numeric.NewInexact(v.ToFloat(), 0), nil
	case v.IsString():
		text, err := i.H.StringText(v)
		if err != nil {
			return nil, err
		}
		return numeric.ParseToken(text)
	default:
		return nil, fmt.Errorf("eval: not a number: %s", display.String(i.H, i.Syms, v))
	}
}

// valueFromNumber boxes a Number the same way pkg/reader does: a plain
// Integer/Float immediate when it fits, otherwise a heap String holding the
// canonical text.
func (i *Interp) valueFromNumber(env *envframe.Frame, n numeric.Number) (value.Value, error) {
	switch num := n.(type) {
	case numeric.Exact:
		if num.Imag.Sign() == 0 && num.Real.IsInt() {
			bi := num.Real.Num()
			if bi.IsInt64() {
				i64 := bi.Int64()
				if i64 >= -(1<<31) && i64 <= (1<<31)-1 {
					return value.Integer(int32(i64)), nil
				}
			}
		}
		return i.allocRetry(env, nil, func() (value.Value, error) { return i.H.NewString(num.String()) })
	case numeric.Inexact:
		if num.Imag == 0 {
			return value.Float(num.Real), nil
		}
		return i.allocRetry(env, nil, func() (value.Value, error) { return i.H.NewString(num.String()) })
	default:
		return 0, fmt.Errorf("eval: unrecognized number representation %T", n)
	}
}
