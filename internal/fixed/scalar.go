// Package fixed provides the 16.16 fixed-point scalar, angle and vector
// types used for every simulation-visible quantity. All operations are pure
// integer arithmetic so peers on different CPUs compute identical bits.
package fixed

import (
	"errors"
	"math"
	"strconv"
)

// Scalar is a signed 16.16 fixed-point number.
type Scalar int32

const (
	// Shift is the number of fractional bits.
	Shift = 16

	One  Scalar = 1 << Shift
	Half Scalar = One >> 1

	// Epsilon is the smallest positive Scalar.
	Epsilon Scalar = 1

	MaxScalar Scalar = math.MaxInt32
	MinScalar Scalar = math.MinInt32
)

var (
	// ErrDivideByZero is returned by Div when the divisor is zero.
	ErrDivideByZero = errors.New("fixed: division by zero")
	// ErrDomain is returned when an argument lies outside a function's domain.
	ErrDomain = errors.New("fixed: argument out of domain")
	// ErrNegativeSqrt is returned by Sqrt for negative inputs.
	ErrNegativeSqrt = errors.New("fixed: square root of negative value")
	// ErrZeroVector is returned when normalizing a zero-length vector.
	ErrZeroVector = errors.New("fixed: zero-length vector")
)

// FromFloat converts a float to fixed point, truncating toward zero.
// Out-of-range inputs saturate. Use only at load time or for display.
func FromFloat(f float64) Scalar {
	v := f * float64(One)
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return MaxScalar
	case v <= math.MinInt32:
		return MinScalar
	}
	return Scalar(int32(v))
}

// FromInt converts an integer to fixed point, saturating on overflow.
func FromInt(n int) Scalar {
	return saturate(int64(n) << Shift)
}

// FromRaw reinterprets a raw 16.16 bit pattern.
func FromRaw(raw int32) Scalar {
	return Scalar(raw)
}

// Raw returns the underlying bit pattern.
func (s Scalar) Raw() int32 {
	return int32(s)
}

// Float returns the value as a float64, for display only.
func (s Scalar) Float() float64 {
	return float64(s) / float64(One)
}

// Float32 returns the value as a float32, for display only.
func (s Scalar) Float32() float32 {
	return float32(s) / float32(One)
}

// Int returns the integer part, truncating toward zero.
func (s Scalar) Int() int {
	return int(int32(s) / int32(One))
}

// Floor returns the largest integer not greater than s.
func (s Scalar) Floor() int {
	return int(int32(s) >> Shift)
}

func (s Scalar) Add(o Scalar) Scalar { return saturate(int64(s) + int64(o)) }
func (s Scalar) Sub(o Scalar) Scalar { return saturate(int64(s) - int64(o)) }
func (s Scalar) Neg() Scalar         { return saturate(-int64(s)) }

// Mul multiplies two scalars, truncating the fractional remainder toward zero.
func (s Scalar) Mul(o Scalar) Scalar {
	p := int64(s) * int64(o)
	if p < 0 {
		return saturate(-((-p) >> Shift))
	}
	return saturate(p >> Shift)
}

// MulInt multiplies by an integer.
func (s Scalar) MulInt(n int) Scalar {
	return saturate(int64(s) * int64(n))
}

// Div divides s by o. The quotient truncates toward zero and saturates on
// overflow.
func (s Scalar) Div(o Scalar) (Scalar, error) {
	if o == 0 {
		return 0, ErrDivideByZero
	}
	return saturate((int64(s) << Shift) / int64(o)), nil
}

// DivInt divides by an integer, truncating toward zero.
func (s Scalar) DivInt(n int) (Scalar, error) {
	if n == 0 {
		return 0, ErrDivideByZero
	}
	return saturate(int64(s) / int64(n)), nil
}

// MustDiv is Div for divisors known to be non-zero. It panics otherwise.
func (s Scalar) MustDiv(o Scalar) Scalar {
	q, err := s.Div(o)
	if err != nil {
		panic(err)
	}
	return q
}

func (s Scalar) Abs() Scalar {
	if s < 0 {
		return s.Neg()
	}
	return s
}

// Sign returns -1, 0 or 1.
func (s Scalar) Sign() int {
	switch {
	case s < 0:
		return -1
	case s > 0:
		return 1
	}
	return 0
}

func Min(a, b Scalar) Scalar {
	if a < b {
		return a
	}
	return b
}

func Max(a, b Scalar) Scalar {
	if a > b {
		return a
	}
	return b
}

// Clamp restricts s to [lo, hi].
func Clamp(s, lo, hi Scalar) Scalar {
	if s < lo {
		return lo
	}
	if s > hi {
		return hi
	}
	return s
}

// String formats the scalar with four decimals.
func (s Scalar) String() string {
	return strconv.FormatFloat(s.Float(), 'f', 4, 64)
}

func saturate(v int64) Scalar {
	if v > math.MaxInt32 {
		return MaxScalar
	}
	if v < math.MinInt32 {
		return MinScalar
	}
	return Scalar(v)
}
