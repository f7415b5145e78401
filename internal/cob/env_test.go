package cob

import (
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/fixed"
)

type fakeReader struct {
	units   map[uint32]UnitInfo
	pieces  map[string]fixed.Vector
	moving  map[string]bool
	turning map[string]bool
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		units:   map[uint32]UnitInfo{},
		pieces:  map[string]fixed.Vector{},
		moving:  map[string]bool{},
		turning: map[string]bool{},
	}
}

func (r *fakeReader) Unit(id core.UnitID) (UnitInfo, bool) {
	u, ok := r.units[id.Value()]
	return u, ok
}

func (r *fakeReader) UnitIDRange() (core.UnitID, core.UnitID) {
	return core.NewUnitID(1), core.NewUnitID(9)
}

func (r *fakeReader) PiecePosition(_ core.UnitID, piece string) (fixed.Vector, bool) {
	v, ok := r.pieces[piece]
	return v, ok
}

func (r *fakeReader) PieceMoving(_ core.UnitID, piece string, _ Axis) bool {
	return r.moving[piece]
}

func (r *fakeReader) PieceTurning(_ core.UnitID, piece string, _ Axis) bool {
	return r.turning[piece]
}

func (r *fakeReader) GroundHeight(x, z fixed.Scalar) fixed.Scalar {
	return x.Add(z)
}

func newEnv(t *testing.T, src string) *Environment {
	t.Helper()
	script, err := Assemble(t.Name(), src)
	require.NoError(t, err)
	return NewEnvironment(script, core.NewUnitID(3), Config{Seed: 42, Logger: log.New(io.Discard)})
}

func start(t *testing.T, env *Environment, fn string, params ...int32) uint32 {
	t.Helper()
	id, err := env.Start(fn, params...)
	require.NoError(t, err)
	return id
}

func stateOf(env *Environment, id uint32) ThreadState {
	for _, th := range env.Threads() {
		if th.ID == id {
			return th.Status.State
		}
	}
	return Terminated
}

func TestSleepWakesOnExactTick(t *testing.T) {
	env := newEnv(t, `
func Create
	push 1980
	sleep
	return
`)
	id := start(t, env, "Create")

	env.Tick(0, nil)
	assert.Equal(t, Sleeping, stateOf(env, id))
	assert.Equal(t, core.GameTime(60), env.Threads()[0].Status.Wake)

	for tick := core.GameTime(1); tick < 60; tick++ {
		env.Tick(tick, nil)
		require.Equal(t, Sleeping, stateOf(env, id), "tick %d", tick)
	}
	env.Tick(60, nil)
	assert.Equal(t, Terminated, stateOf(env, id))
	assert.False(t, env.Active())

	env.Tick(61, nil)
	assert.Empty(t, env.Threads(), "terminated threads are reaped on the next tick")
}

func TestSignalIsDeliveredNextTick(t *testing.T) {
	env := newEnv(t, `
func Guard
	push 2
	set-signal-mask
loop:
	push 33
	sleep
	jump loop
func Killer
	push 2
	signal
	return
`)
	guard := start(t, env, "Guard")
	env.Tick(0, nil)

	start(t, env, "Killer")
	env.Tick(1, nil)
	assert.Equal(t, Sleeping, stateOf(env, guard), "signal must not take effect in the tick it is sent")
	assert.Equal(t, 1, env.PendingSignals())

	env.Tick(2, nil)
	assert.Equal(t, Terminated, stateOf(env, guard))
	assert.Zero(t, env.PendingSignals())
}

func TestWaitForSignal(t *testing.T) {
	env := newEnv(t, `
static 1
func Waiter
	push 4
	wait-for-signal
	push 1
	pop-static 0
	return
`)
	id := start(t, env, "Waiter")
	env.Tick(0, nil)
	assert.Equal(t, WaitingOnSignal, stateOf(env, id))

	env.Signal(8)
	env.Tick(1, nil)
	assert.Equal(t, WaitingOnSignal, stateOf(env, id))

	env.Signal(4 | 8)
	env.Tick(2, nil)
	assert.Equal(t, Terminated, stateOf(env, id))
	assert.Equal(t, int32(1), env.Static(0))
}

func TestSignalKillsBeforeWaking(t *testing.T) {
	env := newEnv(t, `
static 1
func Waiter
	push 1
	set-signal-mask
	push 1
	wait-for-signal
	push 9
	pop-static 0
	return
`)
	id := start(t, env, "Waiter")
	env.Tick(0, nil)
	env.Signal(1)
	env.Tick(1, nil)
	assert.Equal(t, Terminated, stateOf(env, id))
	assert.Zero(t, env.Static(0), "killed thread must not resume")
}

func TestStartScriptRunsSameTickAndInheritsMask(t *testing.T) {
	env := newEnv(t, `
static 2
func Main
	push 5
	set-signal-mask
	push 7
	start Child 1
	push 1
	pop-static 0
	return
func Child
	push-local 0
	pop-static 1
	return
`)
	start(t, env, "Main")
	env.Tick(0, nil)

	assert.Equal(t, int32(1), env.Static(0))
	assert.Equal(t, int32(7), env.Static(1))

	threads := env.Threads()
	require.Len(t, threads, 2)
	assert.Equal(t, "Child", threads[1].Function)
	assert.Equal(t, uint32(5), threads[1].Mask)
	assert.Equal(t, Terminated, threads[1].Status.State)
}

func TestCallScriptPassesParameters(t *testing.T) {
	env := newEnv(t, `
static 1
func Main
	push 3
	push 40
	call Sum 2
	return
func Sum
	local
	local
	push-local 0
	push-local 1
	sub
	pop-static 0
	push 0
	return
`)
	start(t, env, "Main")
	env.Tick(0, nil)
	assert.Equal(t, int32(37), env.Static(0), "first value popped is local 0")
	assert.False(t, env.Active())
}

func TestInstructionBudgetPreempts(t *testing.T) {
	env := newEnv(t, `
static 1
func Count
loop:
	push-static 0
	push 1
	add
	pop-static 0
	jump loop
`)
	id := start(t, env, "Count")

	env.Tick(0, nil)
	assert.Equal(t, int32(DefaultInstructionBudget/5), env.Static(0))
	assert.Equal(t, Ready, stateOf(env, id))

	env.Tick(1, nil)
	assert.Equal(t, int32(2*DefaultInstructionBudget/5), env.Static(0))
}

func TestFaultStopsEnvironment(t *testing.T) {
	env := newEnv(t, `
piece base
func Boom
	show base
	push 1
	push 0
	div
	return
func Idle
	push 1000
	sleep
	return
`)
	start(t, env, "Idle")
	start(t, env, "Boom")
	env.Tick(5, nil)

	require.True(t, env.Faulted())
	f := env.Fault()
	assert.ErrorIs(t, f, ErrDivideByZero)
	assert.Equal(t, 6, f.PC)
	assert.Equal(t, "Boom", f.Function)
	assert.Equal(t, core.GameTime(5), f.Tick)

	for _, th := range env.Threads() {
		assert.Equal(t, Terminated, th.Status.State)
	}
	assert.Equal(t, []Effect{PieceCommand{Kind: PieceShow, Piece: "base"}}, env.DrainEffects())

	_, err := env.Start("Idle")
	assert.ErrorIs(t, err, ErrFaulted)
	env.Tick(6, nil)
	assert.Empty(t, env.DrainEffects())
}

func TestFaultKinds(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"underflow", "func F\n\tadd\n", ErrStackUnderflow},
		{"local", "func F\n\tpush-local 2\n", ErrLocalRange},
		{"static", "func F\n\tpush 1\n\tpop-static 0\n", ErrStaticRange},
		{"jump", "func F\n\tjump 99\n", ErrCodeRange},
		{"call", "func F\n\tcall F 5\n", ErrStackUnderflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t, tt.src)
			start(t, env, "F")
			env.Tick(0, nil)
			require.True(t, env.Faulted())
			assert.True(t, errors.Is(env.Fault(), tt.want), "got %v", env.Fault())
		})
	}

	script := &Script{Name: "raw", Instructions: []uint32{0xdeadbeef}, Functions: []Function{{Name: "F"}}}
	env := NewEnvironment(script, core.NewUnitID(1), Config{Logger: log.New(io.Discard)})
	start(t, env, "F")
	env.Tick(0, nil)
	assert.ErrorIs(t, env.Fault(), ErrInvalidOpcode)

	script = &Script{Name: "axis", Instructions: []uint32{uint32(OpWaitForMove), 0, 7}, Functions: []Function{{Name: "F"}}, Pieces: []string{"p"}}
	env = NewEnvironment(script, core.NewUnitID(1), Config{Logger: log.New(io.Discard)})
	start(t, env, "F")
	env.Tick(0, nil)
	assert.ErrorIs(t, env.Fault(), ErrInvalidAxis)
}

func TestFaultIsolatedPerEnvironment(t *testing.T) {
	bad := newEnv(t, "func F\n\tpush 1\n\tpush 0\n\tdiv\n")
	good := newEnv(t, "static 1\nfunc F\n\tpush 3\n\tpop-static 0\n\treturn\n")
	start(t, bad, "F")
	start(t, good, "F")
	bad.Tick(0, nil)
	good.Tick(0, nil)
	assert.True(t, bad.Faulted())
	assert.False(t, good.Faulted())
	assert.Equal(t, int32(3), good.Static(0))
}

func TestPieceCommandsConvertOperands(t *testing.T) {
	env := newEnv(t, `
piece base turret
func Go
	push 0x20000
	push 0x50000
	move base x
	push 16384
	push 8192
	turn turret z
	push 100
	move-now base y
	push 0x8000
	push 0x4000
	spin turret z
	push 0x1000
	stop-spin turret y
	hide turret
	return
`)
	start(t, env, "Go")
	env.Tick(0, nil)

	want := []Effect{
		PieceCommand{Kind: PieceMove, Piece: "base", Axis: AxisX, Position: fixed.FromInt(-5), Speed: fixed.FromInt(2)},
		PieceCommand{Kind: PieceTurn, Piece: "turret", Axis: AxisZ, Angle: fixed.Angle(65536 - 8192), Speed: fixed.FromRaw(16384)},
		PieceCommand{Kind: PieceMoveNow, Piece: "base", Axis: AxisY, Position: fixed.FromRaw(100)},
		PieceCommand{Kind: PieceSpin, Piece: "turret", Axis: AxisZ, Speed: fixed.FromRaw(-0x4000), Acceleration: fixed.FromRaw(0x8000)},
		PieceCommand{Kind: PieceStopSpin, Piece: "turret", Axis: AxisY, Acceleration: fixed.FromRaw(0x1000)},
		PieceCommand{Kind: PieceHide, Piece: "turret"},
	}
	assert.Equal(t, want, env.DrainEffects())
	assert.Empty(t, env.DrainEffects())
}

func TestWaitForMoveUsesReader(t *testing.T) {
	env := newEnv(t, `
piece arm
static 1
func Go
	push 65536
	push 0x10000
	move arm y
	wait-for-move arm y
	push 1
	pop-static 0
	return
`)
	r := newFakeReader()
	id := start(t, env, "Go")

	env.Tick(0, r)
	assert.Equal(t, WaitingOnPiece, stateOf(env, id))

	r.moving["arm"] = true
	env.Tick(1, r)
	assert.Equal(t, WaitingOnPiece, stateOf(env, id))

	r.moving["arm"] = false
	env.Tick(2, r)
	assert.Equal(t, Terminated, stateOf(env, id))
	assert.Equal(t, int32(1), env.Static(0))
}

func TestQueries(t *testing.T) {
	env := newEnv(t, `
piece base
static 6
func Q
	push MY_ID
	get-unit-value
	pop-static 0
	push HEALTH
	get-unit-value
	pop-static 1
	push PIECE_XZ
	push 0
	push 0
	push 0
	push 0
	get
	pop-static 2
	push UNIT_ALLIED
	push 9
	push 0
	push 0
	push 0
	get
	pop-static 3
	push GROUND_HEIGHT
	push 0x00020003
	push 0
	push 0
	push 0
	get
	pop-static 4
	push 999
	get-unit-value
	pop-static 5
	return
`)
	r := newFakeReader()
	r.units[3] = UnitInfo{HitPoints: 50, MaxHitPoints: 200, Owner: core.NewPlayerID(1)}
	r.units[9] = UnitInfo{Owner: core.NewPlayerID(1)}
	r.pieces["base"] = fixed.Vec(fixed.FromInt(5), fixed.FromInt(1), fixed.FromInt(3))

	start(t, env, "Q")
	env.Tick(0, r)
	require.False(t, env.Faulted(), "%v", env.Fault())

	assert.Equal(t, int32(3), env.Static(0))
	assert.Equal(t, int32(25), env.Static(1))
	assert.Equal(t, int32(0x00050003), env.Static(2))
	assert.Equal(t, int32(1), env.Static(3))
	assert.Equal(t, int32(PositionFromInt(5)), env.Static(4))
	assert.Equal(t, int32(0), env.Static(5), "unknown value ids read as zero")
}

func TestSetUnitValueEffects(t *testing.T) {
	env := newEnv(t, `
func S
	push ACTIVATION
	push 1
	set-unit-value
	push PLAY_SOUND
	push 12
	set-unit-value
	push 7
	push 2
	attach-unit
	return
`)
	start(t, env, "S")
	env.Tick(0, nil)
	assert.Equal(t, []Effect{
		SetValueEffect{Value: ValueActivation, Arg: 1},
		SoundEffect{Sound: 12},
		AttachEffect{Unit: core.NewUnitID(7), Piece: 2},
	}, env.DrainEffects())
}

func TestRandIsDeterministicAndInRange(t *testing.T) {
	a := NewEnvironment(&Script{Name: "r"}, core.NewUnitID(4), Config{Seed: 9})
	b := NewEnvironment(&Script{Name: "r"}, core.NewUnitID(4), Config{Seed: 9})
	c := NewEnvironment(&Script{Name: "r"}, core.NewUnitID(5), Config{Seed: 9})

	seen := map[int32]bool{}
	differs := false
	for i := 0; i < 1000; i++ {
		va, vb, vc := a.randRange(1, 6), b.randRange(1, 6), c.randRange(1, 6)
		require.Equal(t, va, vb)
		assert.True(t, va >= 1 && va <= 6)
		seen[va] = true
		differs = differs || va != vc
	}
	assert.Len(t, seen, 6)
	assert.True(t, differs, "unit id must feed the seed")
	assert.Equal(t, int32(3), a.randRange(3, 3))
	assert.Equal(t, int32(3), a.randRange(3, -3))
}

func TestSnapshotRoundTrip(t *testing.T) {
	src := `
static 2
func Main
	push 3
	set-signal-mask
loop:
	push 0
	push 100
	rand
	pop-static 0
	push 66
	sleep
	push-static 1
	push 1
	add
	pop-static 1
	jump loop
func Ping
	push 8
	wait-for-signal
	return
`
	env := newEnv(t, src)
	start(t, env, "Main")
	start(t, env, "Ping")
	for tick := core.GameTime(0); tick < 10; tick++ {
		env.Tick(tick, nil)
	}
	env.Signal(8)

	data, err := env.Snapshot()
	require.NoError(t, err)
	restored, err := Restore(env.Script(), data, Config{Logger: log.New(io.Discard)})
	require.NoError(t, err)

	again, err := restored.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, data, again)

	for tick := core.GameTime(10); tick < 40; tick++ {
		env.Tick(tick, nil)
		restored.Tick(tick, nil)
	}
	s1, err := env.Snapshot()
	require.NoError(t, err)
	s2, err := restored.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
	assert.Equal(t, env.Static(0), restored.Static(0))
	assert.Equal(t, int32(19), env.Static(1))

	_, err = Restore(&Script{Name: "other", StaticCount: 2}, data, Config{})
	assert.Error(t, err)
}

func TestStartedThreadsShareOneBudget(t *testing.T) {
	script := MustAssemble("chain", "func Main\n\tstart Main 0\n\treturn\n")
	env := NewEnvironment(script, core.NewUnitID(1), Config{InstructionBudget: 100, Logger: log.New(io.Discard)})
	start(t, env, "Main")

	for tick := core.GameTime(0); tick < 5; tick++ {
		env.Tick(tick, nil)
		assert.LessOrEqual(t, len(env.Threads()), 102, "tick %d", tick)
		assert.True(t, env.Active(), "the chain carries over to the next tick")
	}
	assert.False(t, env.Faulted())
}

func TestThreadLimitFaults(t *testing.T) {
	script := MustAssemble("fork", "func Main\n\tstart Main 0\n\tstart Main 0\n\treturn\n")
	env := NewEnvironment(script, core.NewUnitID(1), Config{InstructionBudget: 1000, Logger: log.New(io.Discard)})
	other := newEnv(t, "static 1\nfunc Main\n\tpush 9\n\tpop-static 0\n\treturn\n")
	start(t, env, "Main")
	start(t, other, "Main")

	for tick := core.GameTime(0); tick < 20 && !env.Faulted(); tick++ {
		env.Tick(tick, nil)
		other.Tick(tick, nil)
	}
	require.True(t, env.Faulted())
	assert.ErrorIs(t, env.Fault(), ErrTooManyThreads)
	assert.False(t, other.Faulted())
	assert.Equal(t, int32(9), other.Static(0))
}

func TestRestoredFaultKeepsSentinel(t *testing.T) {
	env := newEnv(t, "func F\n\tpush 1\n\tpush 0\n\tdiv\n")
	start(t, env, "F")
	env.Tick(0, nil)
	require.ErrorIs(t, env.Fault(), ErrDivideByZero)

	data, err := env.Snapshot()
	require.NoError(t, err)
	restored, err := Restore(env.Script(), data, Config{Logger: log.New(io.Discard)})
	require.NoError(t, err)
	require.True(t, restored.Faulted())
	assert.ErrorIs(t, restored.Fault(), ErrDivideByZero)
	assert.Equal(t, env.Fault().Error(), restored.Fault().Error())
}
