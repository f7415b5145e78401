package fixed

import "math/bits"

// sinTable holds sin over one quarter turn at full angle resolution.
var sinTable [QuarterTurn + 1]Scalar

// halfPiQ30 is pi/2 in Q2.30.
const halfPiQ30 = 1686629713

// cordicAngles[i] is atan(2^-i) in angle units scaled by 2^16.
var cordicAngles = [...]int64{
	536870912, 316933406, 167458907, 85004756, 42667331, 21354465, 10679838, 5340245,
	2670163, 1335087, 667544, 333772, 166886, 83443, 41722, 20861,
	10430, 5215, 2608, 1304,
}

func init() {
	for i := range sinTable {
		sinTable[i] = quarterSin(int64(i))
	}
	sinTable[0] = 0
	sinTable[QuarterTurn] = One
}

// quarterSin evaluates a Taylor series in Q2.30 integer arithmetic.
func quarterSin(i int64) Scalar {
	x := i * halfPiQ30 / int64(QuarterTurn)
	sum, term := x, x
	for k := int64(1); k < 12; k++ {
		term = (term * x) >> 30
		term = (term * x) >> 30
		term = -term / ((2 * k) * (2*k + 1))
		sum += term
	}
	return Scalar((sum + 1<<13) >> 14)
}

// Sin returns the sine of a.
func Sin(a Angle) Scalar {
	r := a & (QuarterTurn - 1)
	switch a >> 14 {
	case 0:
		return sinTable[r]
	case 1:
		return sinTable[QuarterTurn-r]
	case 2:
		return -sinTable[r]
	default:
		return -sinTable[QuarterTurn-r]
	}
}

// Cos returns the cosine of a.
func Cos(a Angle) Scalar {
	return Sin(a + QuarterTurn)
}

// Atan2 returns the angle of the vector (x, y) measured from +x toward +y,
// in [0, FullTurn). Atan2(0, 0) is 0.
func Atan2(y, x Scalar) Angle {
	switch {
	case x == 0 && y == 0:
		return 0
	case y == 0:
		if x > 0 {
			return 0
		}
		return HalfTurn
	case x == 0:
		if y > 0 {
			return QuarterTurn
		}
		return HalfTurn + QuarterTurn
	}

	xi, yi := int64(x), int64(y)
	var z int64
	if xi < 0 {
		xi, yi = -xi, -yi
		z = int64(HalfTurn) << 16
	}
	for abs64(xi) < 1<<29 && abs64(yi) < 1<<29 {
		xi <<= 1
		yi <<= 1
	}
	for i, step := range cordicAngles {
		if yi == 0 {
			break
		}
		if yi > 0 {
			xi, yi = xi+yi>>i, yi-xi>>i
			z += step
		} else {
			xi, yi = xi-yi>>i, yi+xi>>i
			z -= step
		}
	}
	return Angle(uint16((z + 1<<15) >> 16))
}

// Acos returns the arc cosine of s in [0, HalfTurn].
func Acos(s Scalar) (Angle, error) {
	if s > One || s < -One {
		return 0, ErrDomain
	}
	sin, err := Sqrt(One - s.Mul(s))
	if err != nil {
		return 0, err
	}
	return Atan2(sin, s), nil
}

// Sqrt returns the square root of s using integer Newton iteration.
func Sqrt(s Scalar) (Scalar, error) {
	if s < 0 {
		return 0, ErrNegativeSqrt
	}
	return Scalar(isqrt(uint64(s) << Shift)), nil
}

// isqrt returns floor(sqrt(n)).
func isqrt(n uint64) uint64 {
	if n < 2 {
		return n
	}
	x := uint64(1) << ((bits.Len64(n) + 1) / 2)
	for {
		y := (x + n/x) >> 1
		if y >= x {
			return x
		}
		x = y
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
