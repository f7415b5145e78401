package cob

import (
	"fmt"

	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/fixed"
)

// Axis selects a piece axis. Scripts encode it as 0, 1 or 2.
type Axis uint8

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// ParseAxis validates a raw operand.
func ParseAxis(raw uint32) (Axis, error) {
	if raw > uint32(AxisZ) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAxis, raw)
	}
	return Axis(raw), nil
}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return fmt.Sprintf("axis(%d)", uint8(a))
}

// Position is a script linear position: 16.16 in world units.
type Position int32

// PositionFromInt converts a whole number of world units.
func PositionFromInt(n int) Position {
	return Position(int32(n) << 16)
}

// PositionFromScalar converts a simulation scalar.
func PositionFromScalar(s fixed.Scalar) Position {
	return Position(s.Raw())
}

// Scalar keeps the raw 16.16 pattern.
func (p Position) Scalar() fixed.Scalar {
	return fixed.FromRaw(int32(p))
}

// Int returns the integer part, rounding toward negative infinity.
func (p Position) Int() int16 {
	return int16(int32(p) >> 16)
}

// Speed is a linear speed: 16.16 world units per second.
type Speed uint32

// Scalar keeps the raw 16.16 pattern.
func (s Speed) Scalar() fixed.Scalar {
	return fixed.FromRaw(int32(s))
}

// Float is for display only.
func (s Speed) Float() float64 {
	return float64(s) / 65536
}

// Angle is a script angle; 65536 units make a full turn.
type Angle int32

// SimAngle keeps the low 16 bits.
func (a Angle) SimAngle() fixed.Angle {
	return fixed.Angle(uint16(a))
}

// AngularSpeed is an angular speed in angle units per second.
type AngularSpeed uint32

// Scalar returns the speed in angle units per second.
func (s AngularSpeed) Scalar() fixed.Scalar {
	return fixed.FromRaw(int32(s))
}

// Float returns degrees per second, for display only.
func (s AngularSpeed) Float() float64 {
	return float64(s) * 360 / 65536
}

// SleepDuration is a script sleep in milliseconds.
type SleepDuration uint32

// Ticks converts the duration to whole simulation ticks, rounding down.
func (d SleepDuration) Ticks() core.GameTimeDelta {
	return core.TicksFromMillis(uint32(d))
}

// ToCobTime converts simulation time to script milliseconds.
func ToCobTime(t core.GameTime) uint32 {
	return t.Millis()
}

// PackCoords packs the integer parts of x and z into one word, x high.
func PackCoords(x, z Position) uint32 {
	return uint32(uint16(x.Int()))<<16 | uint32(uint16(z.Int()))
}

// UnpackCoords reverses PackCoords. Fractions are lost.
func UnpackCoords(v uint32) (x, z Position) {
	return PositionFromInt(int(int16(v >> 16))), PositionFromInt(int(int16(v)))
}

// Atan returns the script angle of the vector whose components are a and b,
// where (a=1, b=0) is a quarter turn and (a=0, b=1) is zero.
func Atan(a, b int32) int32 {
	return int32(fixed.Atan2(fixed.FromRaw(a), fixed.FromRaw(b)))
}

// Hypot returns sqrt(a*a + b*b) in the same units as a and b.
func Hypot(a, b int32) int32 {
	v := fixed.Vec(fixed.FromRaw(a), 0, fixed.FromRaw(b))
	return v.Length().Raw()
}
