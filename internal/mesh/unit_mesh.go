package mesh

import (
	"fmt"

	"github.com/vovakirdan/lockstep/internal/cob"
	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/fixed"
)

// MoveOp slides a piece along one axis toward Target at Speed units/s.
type MoveOp struct {
	Target fixed.Scalar `msgpack:"target"`
	Speed  fixed.Scalar `msgpack:"speed"`
}

// RotationKind selects what a RotationOp does.
type RotationKind uint8

const (
	RotateTurn RotationKind = iota
	RotateSpin
	RotateStopSpin
)

// RotationOp is the active rotation on one axis. Turn uses Target and Speed.
// Spin accelerates Current toward Speed by Accel every tick and never ends.
// StopSpin decelerates Current by Accel every tick until it reaches zero.
// Speeds are angle units per second.
type RotationOp struct {
	Kind    RotationKind `msgpack:"kind"`
	Target  fixed.Angle  `msgpack:"target,omitempty"`
	Speed   fixed.Scalar `msgpack:"speed,omitempty"`
	Current fixed.Scalar `msgpack:"current,omitempty"`
	Accel   fixed.Scalar `msgpack:"accel,omitempty"`
}

// PieceState is the animated state of one piece.
type PieceState struct {
	Offset   fixed.Vector   `msgpack:"offset"`
	Rotation [3]fixed.Angle `msgpack:"rotation"`
	Hidden   bool           `msgpack:"hidden,omitempty"`
	Shaded   bool           `msgpack:"shaded,omitempty"`
	Cached   bool           `msgpack:"cached,omitempty"`
	Move     [3]*MoveOp     `msgpack:"move"`
	Rotate   [3]*RotationOp `msgpack:"rotate"`
}

// UnitMesh is the per-unit animation state of a model.
type UnitMesh struct {
	model  *Model
	Pieces []PieceState `msgpack:"pieces"`

	// Frozen meshes ignore Update; used for dead units and paused previews.
	Frozen bool `msgpack:"frozen,omitempty"`
}

// New returns a mesh at rest with every piece visible.
func New(model *Model) *UnitMesh {
	return &UnitMesh{
		model:  model,
		Pieces: make([]PieceState, len(model.pieces)),
	}
}

// Rebind attaches a decoded mesh to its model.
func (m *UnitMesh) Rebind(model *Model) error {
	if len(m.Pieces) != len(model.pieces) {
		return fmt.Errorf("mesh has %d pieces, model %s has %d", len(m.Pieces), model.Name, len(model.pieces))
	}
	m.model = model
	return nil
}

func (m *UnitMesh) Model() *Model {
	return m.model
}

func (m *UnitMesh) piece(name string) (*PieceState, error) {
	i, ok := m.model.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPiece, name)
	}
	return &m.Pieces[i], nil
}

// Apply executes a script piece command.
func (m *UnitMesh) Apply(cmd cob.PieceCommand) error {
	p, err := m.piece(cmd.Piece)
	if err != nil {
		return err
	}
	ax := cmd.Axis
	switch cmd.Kind {
	case cob.PieceMove:
		p.Move[ax] = &MoveOp{Target: cmd.Position, Speed: cmd.Speed}
	case cob.PieceMoveNow:
		p.Offset = withAxis(p.Offset, ax, cmd.Position)
		p.Move[ax] = nil
	case cob.PieceTurn:
		p.Rotate[ax] = &RotationOp{Kind: RotateTurn, Target: cmd.Angle, Speed: cmd.Speed}
	case cob.PieceTurnNow:
		p.Rotation[ax] = cmd.Angle
		p.Rotate[ax] = nil
	case cob.PieceSpin:
		var current fixed.Scalar
		if op := p.Rotate[ax]; op != nil && op.Kind != RotateTurn {
			current = op.Current
		}
		p.Rotate[ax] = &RotationOp{Kind: RotateSpin, Speed: cmd.Speed, Current: current, Accel: cmd.Acceleration}
	case cob.PieceStopSpin:
		op := p.Rotate[ax]
		if op == nil || op.Kind == RotateTurn {
			return nil
		}
		p.Rotate[ax] = &RotationOp{Kind: RotateStopSpin, Current: op.Current, Accel: cmd.Acceleration}
	case cob.PieceShow:
		p.Hidden = false
	case cob.PieceHide:
		p.Hidden = true
	case cob.PieceShade:
		p.Shaded = true
	case cob.PieceDontShade:
		p.Shaded = false
	case cob.PieceCache:
		p.Cached = true
	case cob.PieceDontCache:
		p.Cached = false
	default:
		return fmt.Errorf("unsupported piece command %s", cmd.Kind)
	}
	return nil
}

// Update advances every animation by one tick.
func (m *UnitMesh) Update() {
	if m.Frozen {
		return
	}
	for i := range m.Pieces {
		p := &m.Pieces[i]
		for ax := range 3 {
			if op := p.Move[ax]; op != nil {
				offset, done := op.step(component(p.Offset, cob.Axis(ax)))
				p.Offset = withAxis(p.Offset, cob.Axis(ax), offset)
				if done {
					p.Move[ax] = nil
				}
			}
			if op := p.Rotate[ax]; op != nil {
				var done bool
				p.Rotation[ax], done = op.step(p.Rotation[ax])
				if done {
					p.Rotate[ax] = nil
				}
			}
		}
	}
}

func (op *MoveOp) step(current fixed.Scalar) (fixed.Scalar, bool) {
	frame := perTick(op.Speed)
	remaining := op.Target.Sub(current)
	if remaining.Abs() <= frame {
		return op.Target, true
	}
	if remaining > 0 {
		return current.Add(frame), false
	}
	return current.Sub(frame), false
}

func (op *RotationOp) step(current fixed.Angle) (fixed.Angle, bool) {
	switch op.Kind {
	case RotateTurn:
		next := fixed.TurnTowards(current, op.Target, turnLimit(op.Speed))
		return next, next == op.Target
	case RotateSpin:
		if op.Accel == 0 {
			op.Current = op.Speed
		} else {
			op.Current = approach(op.Current, op.Speed, op.Accel.Abs())
		}
		return current + fixed.Angle(uint16(perTickAngle(op.Current))), false
	default:
		if op.Accel == 0 || op.Current.Abs() <= op.Accel.Abs() {
			return current, true
		}
		op.Current = approach(op.Current, 0, op.Accel.Abs())
		return current + fixed.Angle(uint16(perTickAngle(op.Current))), false
	}
}

// perTick converts a per-second rate to a per-tick step, truncating.
func perTick(speed fixed.Scalar) fixed.Scalar {
	return fixed.FromRaw(speed.Abs().Raw() / core.TicksPerSecond)
}

func perTickAngle(speed fixed.Scalar) int32 {
	return speed.Raw() / core.TicksPerSecond
}

func turnLimit(speed fixed.Scalar) fixed.Angle {
	step := perTick(speed).Raw()
	if step >= int32(fixed.HalfTurn) {
		return fixed.HalfTurn
	}
	return fixed.Angle(step)
}

func approach(v, target, step fixed.Scalar) fixed.Scalar {
	switch {
	case v < target:
		return fixed.Min(v.Add(step), target)
	case v > target:
		return fixed.Max(v.Sub(step), target)
	}
	return v
}

// Moving reports whether a piece has a move in progress on axis.
func (m *UnitMesh) Moving(piece string, axis cob.Axis) bool {
	p, err := m.piece(piece)
	return err == nil && p.Move[axis] != nil
}

// Turning reports whether a piece has any rotation on axis. A spinning piece
// is always turning.
func (m *UnitMesh) Turning(piece string, axis cob.Axis) bool {
	p, err := m.piece(piece)
	return err == nil && p.Rotate[axis] != nil
}

// Busy reports whether any piece is still animating.
func (m *UnitMesh) Busy() bool {
	for i := range m.Pieces {
		for ax := range 3 {
			if m.Pieces[i].Move[ax] != nil || m.Pieces[i].Rotate[ax] != nil {
				return true
			}
		}
	}
	return false
}

// Local returns the transform of piece i relative to its parent.
func (m *UnitMesh) Local(i int) Transform {
	p := &m.Pieces[i]
	def := m.model.pieces[i]
	rot := RotationZXY(p.Rotation[cob.AxisX], p.Rotation[cob.AxisY], p.Rotation[cob.AxisZ])
	return Translation(def.Origin.Add(p.Offset)).Mul(rot)
}

// PieceTransform composes a piece's transform up through its parents into
// unit space.
func (m *UnitMesh) PieceTransform(name string) (Transform, error) {
	i, ok := m.model.index[name]
	if !ok {
		return Transform{}, fmt.Errorf("%w: %s", ErrUnknownPiece, name)
	}
	t := m.Local(i)
	for parent := m.model.parents[i]; parent >= 0; parent = m.model.parents[parent] {
		t = m.Local(parent).Mul(t)
	}
	return t, nil
}

// UnitTransform places a unit in the world: rotation about y, then
// translation to position.
func UnitTransform(position fixed.Vector, rotation fixed.Angle) Transform {
	return Translation(position).Mul(RotationY(rotation))
}

// PiecePosition returns the world position of a piece's origin for a unit
// standing at position with the given heading.
func (m *UnitMesh) PiecePosition(name string, position fixed.Vector, rotation fixed.Angle) (fixed.Vector, error) {
	t, err := m.PieceTransform(name)
	if err != nil {
		return fixed.Vector{}, err
	}
	return UnitTransform(position, rotation).Mul(t).T, nil
}

func component(v fixed.Vector, axis cob.Axis) fixed.Scalar {
	switch axis {
	case cob.AxisX:
		return v.X
	case cob.AxisY:
		return v.Y
	}
	return v.Z
}

func withAxis(v fixed.Vector, axis cob.Axis, s fixed.Scalar) fixed.Vector {
	switch axis {
	case cob.AxisX:
		v.X = s
	case cob.AxisY:
		v.Y = s
	default:
		v.Z = s
	}
	return v
}
