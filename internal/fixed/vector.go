package fixed

import "fmt"

// Vector is a 3-component fixed-point vector. Y points up.
type Vector struct {
	X, Y, Z Scalar
}

// Vec builds a vector from its components.
func Vec(x, y, z Scalar) Vector {
	return Vector{X: x, Y: y, Z: z}
}

// VecFromFloats converts float components with FromFloat. Load time only.
func VecFromFloats(x, y, z float64) Vector {
	return Vector{X: FromFloat(x), Y: FromFloat(y), Z: FromFloat(z)}
}

func (v Vector) Add(o Vector) Vector {
	return Vector{v.X.Add(o.X), v.Y.Add(o.Y), v.Z.Add(o.Z)}
}

func (v Vector) Sub(o Vector) Vector {
	return Vector{v.X.Sub(o.X), v.Y.Sub(o.Y), v.Z.Sub(o.Z)}
}

func (v Vector) Neg() Vector {
	return Vector{v.X.Neg(), v.Y.Neg(), v.Z.Neg()}
}

func (v Vector) Scale(s Scalar) Vector {
	return Vector{v.X.Mul(s), v.Y.Mul(s), v.Z.Mul(s)}
}

func (v Vector) Dot(o Vector) Scalar {
	return v.X.Mul(o.X).Add(v.Y.Mul(o.Y)).Add(v.Z.Mul(o.Z))
}

func (v Vector) Cross(o Vector) Vector {
	return Vector{
		X: v.Y.Mul(o.Z).Sub(v.Z.Mul(o.Y)),
		Y: v.Z.Mul(o.X).Sub(v.X.Mul(o.Z)),
		Z: v.X.Mul(o.Y).Sub(v.Y.Mul(o.X)),
	}
}

// lengthSquaredRaw returns the squared length in 32.32 without overflow.
func (v Vector) lengthSquaredRaw() uint64 {
	x, y, z := int64(v.X), int64(v.Y), int64(v.Z)
	return uint64(x*x) + uint64(y*y) + uint64(z*z)
}

// LengthSquared saturates for vectors longer than ~181 units.
func (v Vector) LengthSquared() Scalar {
	sq := v.lengthSquaredRaw() >> Shift
	if sq > uint64(MaxScalar) {
		return MaxScalar
	}
	return Scalar(sq)
}

// Length is exact over the whole representable range.
func (v Vector) Length() Scalar {
	return saturate(int64(isqrt(v.lengthSquaredRaw())))
}

// Normalize returns the unit vector in the direction of v.
func (v Vector) Normalize() (Vector, error) {
	l := v.Length()
	if l == 0 {
		return Vector{}, ErrZeroVector
	}
	x, _ := v.X.Div(l)
	y, _ := v.Y.Div(l)
	z, _ := v.Z.Div(l)
	return Vector{x, y, z}, nil
}

// DistanceXZ is the horizontal distance between two points.
func DistanceXZ(a, b Vector) Scalar {
	d := b.Sub(a)
	d.Y = 0
	return d.Length()
}

// RotateY rotates v around the vertical axis by a.
func (v Vector) RotateY(a Angle) Vector {
	s, c := Sin(a), Cos(a)
	return Vector{
		X: v.X.Mul(c).Add(v.Z.Mul(s)),
		Y: v.Y,
		Z: v.Z.Mul(c).Sub(v.X.Mul(s)),
	}
}

// Float32s returns the components for renderers.
func (v Vector) Float32s() [3]float32 {
	return [3]float32{v.X.Float32(), v.Y.Float32(), v.Z.Float32()}
}

func (v Vector) String() string {
	return fmt.Sprintf("(%s, %s, %s)", v.X, v.Y, v.Z)
}
