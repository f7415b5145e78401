package fixed

import "strconv"

// Angle is a rotation where 65536 units make a full turn. Arithmetic wraps
// modulo a full turn through ordinary uint16 overflow.
type Angle uint16

const (
	// FullTurn is the number of angle units in one revolution.
	FullTurn = 1 << 16

	HalfTurn    Angle = 1 << 15
	QuarterTurn Angle = 1 << 14
	EighthTurn  Angle = 1 << 13
)

func (a Angle) Add(b Angle) Angle { return a + b }
func (a Angle) Sub(b Angle) Angle { return a - b }
func (a Angle) Neg() Angle        { return -a }

// AngleFromDegrees converts degrees to an Angle. For config and display.
func AngleFromDegrees(deg float64) Angle {
	units := int64(deg * FullTurn / 360)
	return Angle(uint16(units))
}

// Degrees returns the angle in [0, 360), for display only.
func (a Angle) Degrees() float64 {
	return float64(a) * 360 / FullTurn
}

// Scalar returns the angle as a fraction of a turn in fixed point.
func (a Angle) Scalar() Scalar {
	return Scalar(a)
}

func (a Angle) String() string {
	return strconv.FormatFloat(a.Degrees(), 'f', 2, 64) + "deg"
}

// AngleBetween returns the signed shortest rotation from a to b, in
// (-HalfTurn, HalfTurn].
func AngleBetween(a, b Angle) int32 {
	turn := int32(int16(b - a))
	if turn == -int32(HalfTurn) {
		return int32(HalfTurn)
	}
	return turn
}

// TurnTowards rotates current toward target by at most maxTurn units along
// the shortest direction.
func TurnTowards(current, target, maxTurn Angle) Angle {
	turn := AngleBetween(current, target)
	limit := int32(maxTurn)
	switch {
	case turn > limit:
		return current + maxTurn
	case turn < -limit:
		return current - maxTurn
	}
	return target
}
