package cob

import (
	"fmt"

	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/fixed"
)

const (
	cobTrue  int32 = 1
	cobFalse int32 = 0
)

func boolValue(b bool) int32 {
	if b {
		return cobTrue
	}
	return cobFalse
}

// execution carries the state of one thread's run within a tick.
type execution struct {
	env    *Environment
	t      *Thread
	now    core.GameTime
	reader UnitReader
}

// run executes t until it blocks, terminates, faults or has run limit
// instructions, and returns how many it ran. A thread that spends its
// limit stays Ready at its current PC.
func (e *Environment) run(t *Thread, now core.GameTime, reader UnitReader, limit int) int {
	x := execution{env: e, t: t, now: now, reader: reader}
	n := 0
	for n < limit {
		pc := t.PC()
		n++
		if err := x.step(); err != nil {
			e.raise(t, now, pc, err)
			return n
		}
		if t.Status.State != Ready {
			return n
		}
	}
	return n
}

func (x *execution) fetch() (uint32, error) {
	f := x.t.top()
	if f.PC < 0 || f.PC >= len(x.env.script.Instructions) {
		return 0, fmt.Errorf("%w: %d", ErrCodeRange, f.PC)
	}
	v := x.env.script.Instructions[f.PC]
	f.PC++
	return v, nil
}

func (x *execution) fetchPiece() (int, string, error) {
	v, err := x.fetch()
	if err != nil {
		return 0, "", err
	}
	if int(v) >= len(x.env.script.Pieces) {
		return 0, "", fmt.Errorf("%w: %d", ErrPieceRange, v)
	}
	return int(v), x.env.script.Pieces[v], nil
}

func (x *execution) fetchPieceAxis() (int, string, Axis, error) {
	idx, name, err := x.fetchPiece()
	if err != nil {
		return 0, "", 0, err
	}
	v, err := x.fetch()
	if err != nil {
		return 0, "", 0, err
	}
	axis, err := ParseAxis(v)
	return idx, name, axis, err
}

func (x *execution) local(v uint32) (*int32, error) {
	locals := x.t.top().Locals
	if int(v) >= len(locals) {
		return nil, fmt.Errorf("%w: %d", ErrLocalRange, v)
	}
	return &locals[v], nil
}

func (x *execution) static(v uint32) (*int32, error) {
	if int(v) >= len(x.env.statics) {
		return nil, fmt.Errorf("%w: %d", ErrStaticRange, v)
	}
	return &x.env.statics[v], nil
}

func (x *execution) emit(eff Effect) {
	x.env.effects = append(x.env.effects, eff)
}

// binary pops b then a and pushes fn(a, b).
func (x *execution) binary(fn func(a, b int32) int32) error {
	b, err := x.t.pop()
	if err != nil {
		return err
	}
	a, err := x.t.pop()
	if err != nil {
		return err
	}
	x.t.push(fn(a, b))
	return nil
}

func (x *execution) unary(fn func(v int32) int32) error {
	v, err := x.t.pop()
	if err != nil {
		return err
	}
	x.t.push(fn(v))
	return nil
}

// step executes one instruction.
func (x *execution) step() error {
	word, err := x.fetch()
	if err != nil {
		return err
	}
	t := x.t
	op := Opcode(word)

	switch op {
	case OpMove, OpMoveNow, OpTurn, OpTurnNow, OpSpin, OpStopSpin:
		return x.pieceMotion(op)

	case OpShow, OpHide, OpShade, OpDontShade, OpCache, OpDontCache:
		_, name, err := x.fetchPiece()
		if err != nil {
			return err
		}
		x.emit(PieceCommand{Kind: toggleKinds[op], Piece: name})
		return nil

	case OpEmitSfx, OpExplode:
		_, name, err := x.fetchPiece()
		if err != nil {
			return err
		}
		v, err := t.pop()
		if err != nil {
			return err
		}
		if op == OpEmitSfx {
			x.emit(SfxEffect{Piece: name, Type: v})
		} else {
			x.emit(ExplodeEffect{Piece: name, Flags: v})
		}
		return nil

	case OpWaitForMove, OpWaitForTurn:
		idx, _, axis, err := x.fetchPieceAxis()
		if err != nil {
			return err
		}
		wait := WaitMove
		if op == OpWaitForTurn {
			wait = WaitTurn
		}
		t.Status = Status{State: WaitingOnPiece, Piece: idx, Axis: axis, Wait: wait}
		return nil

	case OpSleep:
		v, err := t.pop()
		if err != nil {
			return err
		}
		wake := x.now.Add(SleepDuration(uint32(max(v, 0))).Ticks())
		t.Status = Status{State: Sleeping, Wake: wake}
		return nil

	case OpWaitForSignal:
		mask, err := t.pop()
		if err != nil {
			return err
		}
		t.Status = Status{State: WaitingOnSignal, Mask: uint32(mask)}
		return nil

	case OpPushConstant:
		v, err := x.fetch()
		if err != nil {
			return err
		}
		t.push(int32(v))
		return nil

	case OpPushLocalVar, OpPopLocalVar, OpPushStatic, OpPopStatic:
		return x.variable(op)

	case OpCreateLocalVar:
		f := t.top()
		if f.Args > 0 {
			f.Args--
		} else {
			f.Locals = append(f.Locals, 0)
		}
		return nil

	case OpPopStack:
		_, err := t.pop()
		return err

	case OpAdd:
		return x.binary(func(a, b int32) int32 { return a + b })
	case OpSub:
		return x.binary(func(a, b int32) int32 { return a - b })
	case OpMul:
		return x.binary(func(a, b int32) int32 { return a * b })
	case OpDiv:
		b, err := t.pop()
		if err != nil {
			return err
		}
		a, err := t.pop()
		if err != nil {
			return err
		}
		if b == 0 {
			return ErrDivideByZero
		}
		t.push(a / b)
		return nil
	case OpBitwiseAnd:
		return x.binary(func(a, b int32) int32 { return a & b })
	case OpBitwiseOr:
		return x.binary(func(a, b int32) int32 { return a | b })
	case OpBitwiseXor:
		return x.binary(func(a, b int32) int32 { return a ^ b })
	case OpBitwiseNot:
		return x.unary(func(v int32) int32 { return ^v })

	case OpSetLess:
		return x.binary(func(a, b int32) int32 { return boolValue(a < b) })
	case OpSetLessOrEqual:
		return x.binary(func(a, b int32) int32 { return boolValue(a <= b) })
	case OpSetGreater:
		return x.binary(func(a, b int32) int32 { return boolValue(a > b) })
	case OpSetGreaterOrEqual:
		return x.binary(func(a, b int32) int32 { return boolValue(a >= b) })
	case OpSetEqual:
		return x.binary(func(a, b int32) int32 { return boolValue(a == b) })
	case OpSetNotEqual:
		return x.binary(func(a, b int32) int32 { return boolValue(a != b) })
	case OpLogicalAnd:
		return x.binary(func(a, b int32) int32 { return boolValue(a != 0 && b != 0) })
	case OpLogicalOr:
		return x.binary(func(a, b int32) int32 { return boolValue(a != 0 || b != 0) })
	case OpLogicalXor:
		return x.binary(func(a, b int32) int32 { return boolValue((a != 0) != (b != 0)) })
	case OpLogicalNot:
		return x.unary(func(v int32) int32 { return boolValue(v == 0) })

	case OpRand:
		high, err := t.pop()
		if err != nil {
			return err
		}
		low, err := t.pop()
		if err != nil {
			return err
		}
		t.push(x.env.randRange(low, high))
		return nil

	case OpGetUnitValue:
		id, err := t.pop()
		if err != nil {
			return err
		}
		v, err := x.query(ValueID(id), [4]int32{})
		if err != nil {
			return err
		}
		t.push(v)
		return nil

	case OpGet:
		args, err := t.popN(4)
		if err != nil {
			return err
		}
		id, err := t.pop()
		if err != nil {
			return err
		}
		v, err := x.query(ValueID(id), [4]int32{args[3], args[2], args[1], args[0]})
		if err != nil {
			return err
		}
		t.push(v)
		return nil

	case OpSetUnitValue:
		v, err := t.pop()
		if err != nil {
			return err
		}
		id, err := t.pop()
		if err != nil {
			return err
		}
		if ValueID(id) == ValuePlaySound {
			x.emit(SoundEffect{Sound: v})
		} else {
			x.emit(SetValueEffect{Value: ValueID(id), Arg: v})
		}
		return nil

	case OpStartScript, OpCallScript:
		return x.invoke(op)

	case OpJump:
		addr, err := x.fetch()
		if err != nil {
			return err
		}
		t.top().PC = int(addr)
		return nil

	case OpJumpNotEqual:
		addr, err := x.fetch()
		if err != nil {
			return err
		}
		v, err := t.pop()
		if err != nil {
			return err
		}
		if v == 0 {
			t.top().PC = int(addr)
		}
		return nil

	case OpReturn:
		// A bare return yields 0.
		t.ReturnValue = 0
		if len(t.Stack) > 0 {
			t.ReturnValue, _ = t.pop()
		}
		t.Frames = t.Frames[:len(t.Frames)-1]
		if len(t.Frames) == 0 {
			t.Status = Status{State: Terminated}
			t.Stack = nil
		}
		return nil

	case OpSignal:
		sig, err := t.pop()
		if err != nil {
			return err
		}
		x.env.signals = append(x.env.signals, uint32(sig))
		return nil

	case OpSetSignalMask:
		mask, err := t.pop()
		if err != nil {
			return err
		}
		t.SignalMask = uint32(mask)
		return nil

	case OpAttachUnit:
		piece, err := t.pop()
		if err != nil {
			return err
		}
		unit, err := t.pop()
		if err != nil {
			return err
		}
		x.emit(AttachEffect{Unit: core.NewUnitID(uint32(unit)), Piece: piece})
		return nil

	case OpDropUnit:
		unit, err := t.pop()
		if err != nil {
			return err
		}
		x.emit(DropEffect{Unit: core.NewUnitID(uint32(unit))})
		return nil
	}

	return fmt.Errorf("%w: %#08x", ErrInvalidOpcode, word)
}

var toggleKinds = map[Opcode]PieceCommandKind{
	OpShow:      PieceShow,
	OpHide:      PieceHide,
	OpShade:     PieceShade,
	OpDontShade: PieceDontShade,
	OpCache:     PieceCache,
	OpDontCache: PieceDontCache,
}

// pieceMotion handles the animated piece instructions. X-axis translations
// and Z-axis rotations are flipped into right-handed world coordinates.
func (x *execution) pieceMotion(op Opcode) error {
	_, name, axis, err := x.fetchPieceAxis()
	if err != nil {
		return err
	}
	t := x.t
	cmd := PieceCommand{Piece: name, Axis: axis}

	first, err := t.pop()
	if err != nil {
		return err
	}
	var second int32
	if op == OpMove || op == OpTurn || op == OpSpin {
		if second, err = t.pop(); err != nil {
			return err
		}
	}

	switch op {
	case OpMove, OpMoveNow:
		pos := Position(first)
		if axis == AxisX {
			pos = -pos
		}
		cmd.Kind = PieceMoveNow
		cmd.Position = pos.Scalar()
		if op == OpMove {
			cmd.Kind = PieceMove
			cmd.Speed = Speed(uint32(second)).Scalar()
		}
	case OpTurn, OpTurnNow:
		angle := Angle(first)
		if axis == AxisZ {
			angle = -angle
		}
		cmd.Kind = PieceTurnNow
		cmd.Angle = angle.SimAngle()
		if op == OpTurn {
			cmd.Kind = PieceTurn
			cmd.Speed = AngularSpeed(uint32(second)).Scalar()
		}
	case OpSpin:
		target := AngularSpeed(uint32(first)).Scalar()
		if axis == AxisZ {
			target = target.Neg()
		}
		cmd.Kind = PieceSpin
		cmd.Speed = target
		cmd.Acceleration = AngularSpeed(uint32(second)).Scalar()
	case OpStopSpin:
		cmd.Kind = PieceStopSpin
		cmd.Acceleration = AngularSpeed(uint32(first)).Scalar()
	}

	x.emit(cmd)
	return nil
}

func (x *execution) variable(op Opcode) error {
	idx, err := x.fetch()
	if err != nil {
		return err
	}
	var slot *int32
	if op == OpPushLocalVar || op == OpPopLocalVar {
		slot, err = x.local(idx)
	} else {
		slot, err = x.static(idx)
	}
	if err != nil {
		return err
	}

	if op == OpPushLocalVar || op == OpPushStatic {
		x.t.push(*slot)
		return nil
	}
	v, err := x.t.pop()
	if err != nil {
		return err
	}
	*slot = v
	return nil
}

// invoke handles CALL_SCRIPT and START_SCRIPT. Parameters are popped so
// that the first value popped becomes local 0.
func (x *execution) invoke(op Opcode) error {
	fn, err := x.fetch()
	if err != nil {
		return err
	}
	count, err := x.fetch()
	if err != nil {
		return err
	}
	if int(fn) >= len(x.env.script.Functions) {
		return fmt.Errorf("%w: index %d", ErrUnknownFunction, fn)
	}
	params, err := x.t.popN(int(count))
	if err != nil {
		return err
	}

	if op == OpStartScript {
		_, err := x.env.createThread(int(fn), params, x.t.SignalMask)
		return err
	}

	if len(x.t.Frames) >= maxCallDepth {
		return ErrCallDepth
	}
	addr := x.env.script.Functions[fn].Address
	x.t.Frames = append(x.t.Frames, Frame{PC: addr, Locals: params, Args: len(params)})
	return nil
}

// query answers GET_UNIT_VALUE and GET.
func (x *execution) query(id ValueID, args [4]int32) (int32, error) {
	e := x.env
	var self UnitInfo
	if x.reader != nil {
		self, _ = x.reader.Unit(e.unit)
	}
	target := func() (UnitInfo, bool) {
		if x.reader == nil {
			return UnitInfo{}, false
		}
		return x.reader.Unit(core.NewUnitID(uint32(args[0])))
	}

	switch id {
	case ValueActivation:
		return boolValue(self.Activated), nil
	case ValueStandingMoveOrders:
		return self.StandingMoveOrders, nil
	case ValueStandingFireOrders:
		return self.StandingFireOrders, nil
	case ValueHealth:
		return self.HealthPercent(), nil
	case ValueInBuildStance:
		return boolValue(self.InBuildStance), nil
	case ValueBusy:
		return boolValue(self.Busy), nil
	case ValueBuildPercentLeft:
		return self.BuildPercentLeft, nil
	case ValueYardOpen:
		return boolValue(self.YardOpen), nil
	case ValueBuggerOff:
		return boolValue(self.BuggerOff), nil
	case ValueArmored:
		return boolValue(self.Armored), nil
	case ValueVeteranLevel:
		return self.VeteranLevel, nil
	case ValueMyID:
		return int32(e.unit.Value()), nil

	case ValuePieceXZ, ValuePieceY:
		if args[0] < 0 || int(args[0]) >= len(e.script.Pieces) {
			return 0, fmt.Errorf("%w: %d", ErrPieceRange, args[0])
		}
		if x.reader == nil {
			return 0, nil
		}
		pos, ok := x.reader.PiecePosition(e.unit, e.script.Pieces[args[0]])
		if !ok {
			return 0, nil
		}
		if id == ValuePieceY {
			return int32(PositionFromScalar(pos.Y)), nil
		}
		return int32(PackCoords(PositionFromScalar(pos.X), PositionFromScalar(pos.Z))), nil

	case ValueUnitXZ, ValueUnitY, ValueUnitHeight, ValueUnitTeam, ValueUnitBuildPercentLeft, ValueUnitAllied:
		u, ok := target()
		if !ok {
			return 0, nil
		}
		switch id {
		case ValueUnitXZ:
			return int32(PackCoords(PositionFromScalar(u.Position.X), PositionFromScalar(u.Position.Z))), nil
		case ValueUnitY:
			return int32(PositionFromScalar(u.Position.Y)), nil
		case ValueUnitHeight:
			return int32(PositionFromScalar(u.Height)), nil
		case ValueUnitTeam:
			return int32(u.Owner.Value()), nil
		case ValueUnitBuildPercentLeft:
			return u.BuildPercentLeft, nil
		default:
			return boolValue(u.Owner == self.Owner), nil
		}

	case ValueXZAtan:
		px, pz := UnpackCoords(uint32(args[0]))
		facing := self.Rotation - fixed.HalfTurn
		return int32(uint16(Atan(int32(px), int32(pz)) - int32(facing))), nil
	case ValueXZHypot:
		px, pz := UnpackCoords(uint32(args[0]))
		return Hypot(int32(px), int32(pz)), nil
	case ValueAtan:
		return Atan(args[0], args[1]), nil
	case ValueHypot:
		return Hypot(args[0], args[1]), nil
	case ValueGroundHeight:
		if x.reader == nil {
			return 0, nil
		}
		px, pz := UnpackCoords(uint32(args[0]))
		return int32(PositionFromScalar(x.reader.GroundHeight(px.Scalar(), pz.Scalar()))), nil

	case ValueMinID, ValueMaxID:
		if x.reader == nil {
			return 0, nil
		}
		lo, hi := x.reader.UnitIDRange()
		if id == ValueMinID {
			return int32(lo.Value()), nil
		}
		return int32(hi.Value()), nil
	}
	return 0, nil
}
