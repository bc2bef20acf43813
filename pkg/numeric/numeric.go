// Package numeric implements the exact/inexact numeric tower described as an
// external collaborator in spec.md §6.3: a closed operation set {add, sub,
// neg, mul, compare, promote-to-float, parse-from-token} over exact rational
// complex numbers and inexact floating complex numbers.
//
// THE CORE in pkg/value/pkg/heap never imports this package; boxing a Number
// into a Value is the evaluator's job (pkg/eval), matching spec.md §6.3:
// "Values produced are boxed into Value by wrapping ... the exact binding is
// left to the evaluator and is not part of this core."
//
// No third-party bignum/rational library appears anywhere in the retrieved
// example pack, so exactness here is built on the standard library's
// math/big.Rat — the one place in this repository stdlib is used for a
// domain concern rather than a third-party package (see DESIGN.md).
package numeric

import (
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

// Number is the closed operation set spec.md §6.3 names. Both Exact and
// Inexact implement it.
type Number interface {
	Add(Number) Number
	Sub(Number) Number
	Neg() Number
	Mul(Number) Number
	// Compare returns -1/0/1 the way sort comparators do, and ok=false if
	// the two numbers have a nonzero imaginary part (order is undefined for
	// complex numbers).
	Compare(Number) (cmp int, ok bool)
	// Div divides by o. Neither implementation has a representation for an
	// exact infinity; a caller dividing by an Exact zero must check for that
	// itself before calling Div (pkg/eval does, since only it can turn that
	// into a typed evaluator error). Dividing an Inexact by zero is left to
	// ordinary float64 semantics (±Inf or NaN).
	Div(Number) Number
	// Inexact promotes (or, for an already-Inexact value, returns itself).
	Inexact() Number
	String() string
}

// Exact is a rational complex number: real and imaginary parts are each an
// exact ratio of arbitrary-precision integers.
type Exact struct {
	Real, Imag *big.Rat
}

// NewExact builds an Exact number from real/imaginary rationals.
func NewExact(real, imag *big.Rat) Exact {
	if real == nil {
		real = new(big.Rat)
	}
	if imag == nil {
		imag = new(big.Rat)
	}
	return Exact{Real: real, Imag: imag}
}

// ExactInt is a convenience constructor for a real exact integer.
func ExactInt(n int64) Exact {
	return NewExact(big.NewRat(n, 1), nil)
}

func (e Exact) isComplex() bool { return e.Imag.Sign() != 0 }

// asExact reports the Exact operand if o already is one, promoting nothing.
// Every binary method below mirrors number.rs's 4-way (Exact/Floating) match:
// Exact-Exact stays exact; any mix with a Floating operand promotes the
// Exact side to Floating via its own Inexact() and hands off to Inexact's
// arithmetic, so Floating always wins the result kind.
func asExact(o Number) (Exact, bool) {
	b, ok := o.(Exact)
	return b, ok
}

func (e Exact) Add(o Number) Number {
	if b, ok := asExact(o); ok {
		return NewExact(new(big.Rat).Add(e.Real, b.Real), new(big.Rat).Add(e.Imag, b.Imag))
	}
	return e.Inexact().Add(o)
}

func (e Exact) Sub(o Number) Number {
	if b, ok := asExact(o); ok {
		return NewExact(new(big.Rat).Sub(e.Real, b.Real), new(big.Rat).Sub(e.Imag, b.Imag))
	}
	return e.Inexact().Sub(o)
}

func (e Exact) Neg() Number {
	return NewExact(new(big.Rat).Neg(e.Real), new(big.Rat).Neg(e.Imag))
}

func (e Exact) Mul(o Number) Number {
	b, ok := asExact(o)
	if !ok {
		return e.Inexact().Mul(o)
	}
	// (e.Real + e.Imag*i) * (b.Real + b.Imag*i)
	rr := new(big.Rat).Mul(e.Real, b.Real)
	ii := new(big.Rat).Mul(e.Imag, b.Imag)
	real := new(big.Rat).Sub(rr, ii)

	ri := new(big.Rat).Mul(e.Real, b.Imag)
	ir := new(big.Rat).Mul(e.Imag, b.Real)
	imag := new(big.Rat).Add(ri, ir)
	return NewExact(real, imag)
}

// Div divides e by o using the standard complex-conjugate expansion
// (a+bi)/(c+di) = ((ac+bd) + (bc-ad)i) / (c^2+d^2), carried out over
// big.Rat. The caller (pkg/eval) is responsible for rejecting an Exact
// zero divisor before calling Div; big.Rat itself panics dividing by zero,
// and that panic is not this package's to catch. A Floating divisor
// promotes e instead, since an exact/inexact mix always yields Floating.
func (e Exact) Div(o Number) Number {
	b, ok := asExact(o)
	if !ok {
		return e.Inexact().Div(o)
	}
	denom := new(big.Rat).Add(new(big.Rat).Mul(b.Real, b.Real), new(big.Rat).Mul(b.Imag, b.Imag))

	ac := new(big.Rat).Mul(e.Real, b.Real)
	bd := new(big.Rat).Mul(e.Imag, b.Imag)
	realNum := new(big.Rat).Add(ac, bd)

	bc := new(big.Rat).Mul(e.Imag, b.Real)
	ad := new(big.Rat).Mul(e.Real, b.Imag)
	imagNum := new(big.Rat).Sub(bc, ad)

	return NewExact(new(big.Rat).Quo(realNum, denom), new(big.Rat).Quo(imagNum, denom))
}

func (e Exact) Compare(o Number) (int, bool) {
	b, ok := asExact(o)
	if !ok {
		return e.Inexact().Compare(o)
	}
	if e.isComplex() || b.isComplex() {
		return 0, false
	}
	return e.Real.Cmp(b.Real), true
}

func (e Exact) Inexact() Number {
	realF, _ := e.Real.Float64()
	imagF, _ := e.Imag.Float64()
	return NewInexact(realF, imagF)
}

func (e Exact) String() string {
	if !e.isComplex() {
		return e.Real.RatString()
	}
	sign := "+"
	if e.Imag.Sign() < 0 {
		sign = ""
	}
	return fmt.Sprintf("%s%s%si", e.Real.RatString(), sign, e.Imag.RatString())
}

// Inexact is a floating complex number.
type Inexact struct {
	Real, Imag float64
}

// NewInexact builds an Inexact number.
func NewInexact(real, imag float64) Inexact { return Inexact{Real: real, Imag: imag} }

func (n Inexact) isComplex() bool { return n.Imag != 0 }

// asInexact promotes o to Inexact when it is an Exact, via o's own
// Inexact(); an Inexact o is returned as-is. Every Inexact binary method
// below routes its operand through this, so a Floating receiver always
// accepts an Exact argument by promotion (number.rs's (Floating, Exact) arm).
func asInexact(o Number) Inexact {
	if b, ok := o.(Inexact); ok {
		return b
	}
	return o.Inexact().(Inexact)
}

func (n Inexact) Add(o Number) Number {
	b := asInexact(o)
	return NewInexact(n.Real+b.Real, n.Imag+b.Imag)
}

func (n Inexact) Sub(o Number) Number {
	b := asInexact(o)
	return NewInexact(n.Real-b.Real, n.Imag-b.Imag)
}

func (n Inexact) Neg() Number { return NewInexact(-n.Real, -n.Imag) }

func (n Inexact) Mul(o Number) Number {
	b := asInexact(o)
	return NewInexact(n.Real*b.Real-n.Imag*b.Imag, n.Real*b.Imag+n.Imag*b.Real)
}

func (n Inexact) Div(o Number) Number {
	b := asInexact(o)
	denom := b.Real*b.Real + b.Imag*b.Imag
	return NewInexact(
		(n.Real*b.Real+n.Imag*b.Imag)/denom,
		(n.Imag*b.Real-n.Real*b.Imag)/denom,
	)
}

func (n Inexact) Compare(o Number) (int, bool) {
	b := asInexact(o)
	if n.isComplex() || b.isComplex() {
		return 0, false
	}
	switch {
	case n.Real < b.Real:
		return -1, true
	case n.Real > b.Real:
		return 1, true
	default:
		return 0, true
	}
}

func (n Inexact) Inexact() Number { return n }

func (n Inexact) String() string {
	if !n.isComplex() {
		return strconv.FormatFloat(n.Real, 'g', -1, 64)
	}
	sign := "+"
	if n.Imag < 0 {
		sign = ""
	}
	return fmt.Sprintf("%s%s%si", formatFloat(n.Real), sign, formatFloat(n.Imag))
}

func formatFloat(x float64) string {
	if math.IsInf(x, 1) {
		return "+inf.0"
	}
	if math.IsInf(x, -1) {
		return "-inf.0"
	}
	if math.IsNaN(x) {
		return "+nan.0"
	}
	return strconv.FormatFloat(x, 'g', -1, 64)
}

var rationalToken = regexp.MustCompile(`^[+-]?\d+/\d+$`)

// ParseToken parses a single numeric token (an integer, a rational "n/d", or
// a float) into a Number. Complex "a+bi" forms are intentionally not
// accepted here — the reader (pkg/reader) never produces them — though the
// Number representation above supports them for arithmetic results.
func ParseToken(tok string) (Number, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return nil, fmt.Errorf("numeric: empty token")
	}

	if rationalToken.MatchString(tok) {
		r, ok := new(big.Rat).SetString(tok)
		if !ok {
			return nil, fmt.Errorf("numeric: invalid rational %q", tok)
		}
		return NewExact(r, nil), nil
	}

	if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return ExactInt(i), nil
	}

	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return NewInexact(f, 0), nil
	}

	return nil, fmt.Errorf("numeric: cannot parse %q", tok)
}
