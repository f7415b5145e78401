package mesh

import "github.com/vovakirdan/lockstep/internal/fixed"

// Transform is an affine transform: a 3×3 rotation followed by a
// translation, all in fixed point.
type Transform struct {
	R [3][3]fixed.Scalar
	T fixed.Vector
}

// Identity returns the identity transform.
func Identity() Transform {
	var m Transform
	m.R[0][0], m.R[1][1], m.R[2][2] = fixed.One, fixed.One, fixed.One
	return m
}

// Translation returns a pure translation.
func Translation(v fixed.Vector) Transform {
	m := Identity()
	m.T = v
	return m
}

// RotationX rotates about the x axis, right-handed.
func RotationX(a fixed.Angle) Transform {
	s, c := fixed.Sin(a), fixed.Cos(a)
	m := Identity()
	m.R[1][1], m.R[1][2] = c, -s
	m.R[2][1], m.R[2][2] = s, c
	return m
}

// RotationY rotates about the y axis, right-handed.
func RotationY(a fixed.Angle) Transform {
	s, c := fixed.Sin(a), fixed.Cos(a)
	m := Identity()
	m.R[0][0], m.R[0][2] = c, s
	m.R[2][0], m.R[2][2] = -s, c
	return m
}

// RotationZ rotates about the z axis, right-handed.
func RotationZ(a fixed.Angle) Transform {
	s, c := fixed.Sin(a), fixed.Cos(a)
	m := Identity()
	m.R[0][0], m.R[0][1] = c, -s
	m.R[1][0], m.R[1][1] = s, c
	return m
}

// RotationZXY applies the z rotation first, then x, then y.
func RotationZXY(x, y, z fixed.Angle) Transform {
	return RotationY(y).Mul(RotationX(x)).Mul(RotationZ(z))
}

// Mul returns m∘o: o is applied first.
func (m Transform) Mul(o Transform) Transform {
	var out Transform
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.R[i][j] = m.R[i][0].Mul(o.R[0][j]).
				Add(m.R[i][1].Mul(o.R[1][j])).
				Add(m.R[i][2].Mul(o.R[2][j]))
		}
	}
	out.T = m.Apply(o.T)
	return out
}

// Apply transforms a point.
func (m Transform) Apply(v fixed.Vector) fixed.Vector {
	row := func(i int) fixed.Scalar {
		return m.R[i][0].Mul(v.X).Add(m.R[i][1].Mul(v.Y)).Add(m.R[i][2].Mul(v.Z))
	}
	return fixed.Vec(row(0), row(1), row(2)).Add(m.T)
}

// Float32s converts to a column-major 4×4 matrix for rendering.
func (m Transform) Float32s() [16]float32 {
	var out [16]float32
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			out[col*4+row] = m.R[row][col].Float32()
		}
	}
	t := m.T.Float32s()
	out[12], out[13], out[14], out[15] = t[0], t[1], t[2], 1
	return out
}
