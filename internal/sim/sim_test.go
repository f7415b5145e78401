package sim

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/lockstep/internal/cob"
	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/fixed"
	"github.com/vovakirdan/lockstep/internal/grid"
	"github.com/vovakirdan/lockstep/internal/mesh"
	"github.com/vovakirdan/lockstep/internal/movement"
)

const tankScript = `
piece base turret
static 2
func Create
	push 0
	push 0x4000
	spin turret y
	return
func StartMoving
	push 1
	pop-static 0
	return
func StopMoving
	push 2
	pop-static 0
	return
func StartBuilding
	push 1
	pop-static 1
	return
func StopBuilding
	push 0
	pop-static 1
	return
func Carry
	push-local 0
	push 1
	attach-unit
	return
`

const counterScript = `
piece body
static 1
func Create
count:
	push-static 0
	push 1
	add
	pop-static 0
	push 33
	sleep
	jump count
`

const droneScript = `
piece body
func Create
	return
`

const brokenScript = `
func Create
	push 1
	push 0
	div
	return
`

func testWorld(t *testing.T) *World {
	t.Helper()
	terrain := movement.NewTerrain(8, 6, 10, 0)
	terrain.BlockFeature(core.NewRect(4, 0, 1, 4))

	classes := movement.NewDatabase()
	tankClass, err := classes.Register(movement.NewClassDefinition("tank", 1, 1))
	require.NoError(t, err)

	tankModel, err := mesh.NewModel("tank", fixed.FromInt(2), []mesh.PieceDefinition{
		{Name: "base"},
		{Name: "turret", Parent: "base", Origin: fixed.Vec(0, fixed.One, 0)},
	})
	require.NoError(t, err)
	bodyModel, err := mesh.NewModel("crate", fixed.One, []mesh.PieceDefinition{{Name: "body"}})
	require.NoError(t, err)

	world, err := NewWorld(terrain, classes, []*UnitType{
		{
			Name: "tank", Class: tankClass, HasClass: true, Model: tankModel,
			Script: cob.MustAssemble("tank", tankScript),
			Speed:  fixed.FromInt(6), TurnRate: 4096, HitPoints: 100,
			Weapons: []Weapon{
				{Name: "cannon", Piece: "turret", Physics: LineOfSight{}, Speed: fixed.FromInt(30), Range: fixed.FromInt(10), Damage: 60},
				{Name: "mortar", Physics: Ballistic{}, Speed: fixed.FromInt(15), Damage: 10},
			},
		},
		{Name: "counter", Class: tankClass, HasClass: true, Model: bodyModel, Script: cob.MustAssemble("counter", counterScript), HitPoints: 50},
		{Name: "broken", Class: tankClass, HasClass: true, Model: bodyModel, Script: cob.MustAssemble("broken", brokenScript), HitPoints: 50},
		{
			Name: "drone", FootprintX: 2, FootprintZ: 1, Model: bodyModel,
			Script: cob.MustAssemble("drone", droneScript),
			Speed:  fixed.FromInt(6), TurnRate: 4096, HitPoints: 20,
		},
	})
	require.NoError(t, err)
	return world
}

func quiet() *log.Logger {
	return log.New(io.Discard)
}

func spawn(t *testing.T, s *Simulation, typeName string, owner uint32, cell grid.Point) core.UnitID {
	t.Helper()
	id, err := s.Spawn(typeName, core.NewPlayerID(owner), cell, 0)
	require.NoError(t, err)
	return id
}

func record(s *Simulation) *[]Event {
	var events []Event
	s.Subscribe(func(e Event) { events = append(events, e) })
	return &events
}

func eventsOf[T Event](events []Event) []T {
	var out []T
	for _, e := range events {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// skirmish builds a small game with two moving tanks, a counter and a
// mortar shot, and returns its command stream.
func skirmish(t *testing.T, world *World, cfg core.RuntimeConfig) (*Simulation, []Scheduled) {
	t.Helper()
	s := New(world, cfg, quiet())
	a := spawn(t, s, "tank", 1, grid.P(0, 0))
	b := spawn(t, s, "tank", 2, grid.P(0, 5))
	spawn(t, s, "counter", 1, grid.P(7, 5))
	cmds := []Scheduled{
		{Tick: 1, Command: MoveOrder{Unit: a, Goal: grid.P(7, 0)}},
		{Tick: 1, Command: MoveOrder{Unit: b, Goal: grid.P(7, 1)}},
		{Tick: 50, Command: FireWeapon{Unit: b, Weapon: 1, Target: fixed.Vec(fixed.FromFloat(7.5), fixed.FromInt(10), fixed.FromFloat(5.5))}},
		{Tick: 60, Command: SetActivation{Unit: a, On: true}},
	}
	require.NoError(t, s.Schedule(cmds...))
	return s, cmds
}

func hashes(t *testing.T, s *Simulation, n int) []uint64 {
	t.Helper()
	out := make([]uint64, n)
	for i := range n {
		require.NoError(t, s.Step(context.Background()))
		out[i] = s.Hash()
	}
	return out
}

func TestRunsAreDeterministic(t *testing.T) {
	world := testWorld(t)
	one, _ := skirmish(t, world, core.RuntimeConfig{Seed: 7, PathWorkers: 1})
	many, _ := skirmish(t, world, core.RuntimeConfig{Seed: 7, PathWorkers: 8})
	again, _ := skirmish(t, world, core.RuntimeConfig{Seed: 7, PathWorkers: 1})

	h := hashes(t, one, 200)
	assert.Equal(t, h, hashes(t, again, 200))
	assert.Equal(t, h, hashes(t, many, 200), "worker count must not change results")

	for _, u := range one.Units() {
		m, err := one.PieceMatrices(u.ID)
		require.NoError(t, err)
		assert.Len(t, m, len(u.Type.Model.Pieces()))
	}
}

func TestSearchThrottleDelaysResults(t *testing.T) {
	world := testWorld(t)
	fast, _ := skirmish(t, world, core.RuntimeConfig{Seed: 7})
	slow, _ := skirmish(t, world, core.RuntimeConfig{Seed: 7, MaxPathsPerTick: 1})
	require.NoError(t, fast.Step(context.Background()))
	require.NoError(t, slow.Step(context.Background()))
	assert.Zero(t, fast.PendingPaths())
	assert.Equal(t, 1, slow.PendingPaths())
	assert.NotEqual(t, fast.Hash(), slow.Hash())
}

func TestUnitsFollowPathsAndArrive(t *testing.T) {
	s, _ := skirmish(t, testWorld(t), core.RuntimeConfig{Seed: 1})
	events := record(s)
	require.NoError(t, s.Run(context.Background(), 200))

	units := s.Units()
	require.Len(t, units, 3)
	a, b, c := units[0], units[1], units[2]
	assert.Equal(t, grid.P(7, 0), a.Cell())
	assert.Equal(t, grid.P(7, 1), b.Cell())
	assert.Equal(t, OrderNone, a.Order)
	assert.False(t, a.Moving())
	assert.Equal(t, int32(2), a.Env.Static(0), "StopMoving ran after StartMoving")
	assert.True(t, a.Activated)

	found := eventsOf[PathFoundEvent](*events)
	require.Len(t, found, 2)
	assert.Equal(t, a.ID, found[0].Unit, "results are applied in unit order")
	assert.Equal(t, b.ID, found[1].Unit)
	assert.Equal(t, grid.P(0, 0), found[0].Waypoints[0])
	for _, w := range found[0].Waypoints {
		assert.False(t, s.World().Terrain.Blocked(w))
	}
	assert.Len(t, eventsOf[ArrivedEvent](*events), 2)

	impacts := eventsOf[ImpactEvent](*events)
	require.Len(t, impacts, 1)
	assert.Contains(t, impacts[0].Hits, c.ID)
	assert.Equal(t, int32(40), c.HitPoints)
	assert.Empty(t, s.Projectiles())
}

func TestNoPathIsReported(t *testing.T) {
	s := New(testWorld(t), core.RuntimeConfig{}, quiet())
	a := spawn(t, s, "tank", 1, grid.P(0, 0))
	events := record(s)
	require.NoError(t, s.Schedule(Scheduled{Tick: 1, Command: MoveOrder{Unit: a, Goal: grid.P(4, 2)}}))
	require.NoError(t, s.Run(context.Background(), 3))

	noPath := eventsOf[NoPathEvent](*events)
	require.Len(t, noPath, 1)
	assert.Equal(t, grid.P(4, 2), noPath[0].Goal)
	assert.Equal(t, core.GameTime(1), noPath[0].Time())
	assert.Equal(t, OrderNone, s.Unit(a).Order)
	assert.Nil(t, s.Unit(a).Request)
}

func TestClasslessUnitPathsAroundFeature(t *testing.T) {
	s := New(testWorld(t), core.RuntimeConfig{}, quiet())
	d := spawn(t, s, "drone", 1, grid.P(0, 0))
	events := record(s)
	require.NoError(t, s.Schedule(Scheduled{Tick: 1, Command: MoveOrder{Unit: d, Goal: grid.P(6, 0)}}))
	require.NoError(t, s.Run(context.Background(), 200))

	fx, fz := s.World().Footprint(s.Unit(d).Type)
	assert.Equal(t, 2, fx)
	assert.Equal(t, 1, fz)

	found := eventsOf[PathFoundEvent](*events)
	require.Len(t, found, 1)
	detour := false
	for _, w := range found[0].Waypoints {
		assert.True(t, movement.FootprintFits(s.World().Terrain, fx, fz, w), "waypoint %s", w)
		detour = detour || w.Y >= 4
	}
	assert.True(t, detour, "the feature column forces a detour below it")
	assert.Equal(t, grid.P(6, 0), s.Unit(d).Cell())
	assert.Len(t, eventsOf[ArrivedEvent](*events), 1)

	assert.False(t, s.World().CanStand(s.Unit(d).Type, grid.P(3, 0)), "footprint would cover the feature")
	assert.False(t, s.World().CanStand(s.Unit(d).Type, grid.P(7, 5)), "footprint would leave the map")
}

// lateCancel reports no error on its first Err call and is cancelled
// afterwards, so the tick starts and fails inside the path batch.
type lateCancel struct {
	context.Context
	done  chan struct{}
	calls int
}

func newLateCancel() *lateCancel {
	done := make(chan struct{})
	close(done)
	return &lateCancel{Context: context.Background(), done: done}
}

func (c *lateCancel) Done() <-chan struct{} { return c.done }

func (c *lateCancel) Err() error {
	c.calls++
	if c.calls == 1 {
		return nil
	}
	return context.Canceled
}

func TestCancelledStepLeavesStateUntouched(t *testing.T) {
	s := New(testWorld(t), core.RuntimeConfig{}, quiet())
	a := spawn(t, s, "tank", 1, grid.P(0, 0))
	require.NoError(t, s.Schedule(Scheduled{Tick: 1, Command: MoveOrder{Unit: a, Goal: grid.P(7, 5)}}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Step(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, core.GameTime(0), s.Now())
	assert.Equal(t, OrderNone, s.Unit(a).Order, "the tick's commands were not applied")
	assert.False(t, s.Halted())

	require.NoError(t, s.Step(context.Background()))
	assert.Equal(t, core.GameTime(1), s.Now())
	assert.Equal(t, OrderMove, s.Unit(a).Order)
}

func TestFailedTickHaltsSimulation(t *testing.T) {
	s := New(testWorld(t), core.RuntimeConfig{}, quiet())
	a := spawn(t, s, "tank", 1, grid.P(0, 0))
	require.NoError(t, s.Schedule(Scheduled{Tick: 1, Command: MoveOrder{Unit: a, Goal: grid.P(7, 5)}}))

	err := s.Step(newLateCancel())
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, s.Halted())

	err = s.Step(context.Background())
	require.ErrorIs(t, err, ErrHalted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, core.GameTime(1), s.Now(), "no further tick ran")
}

func TestDestroyCancelsPendingSearch(t *testing.T) {
	s := New(testWorld(t), core.RuntimeConfig{}, quiet())
	a := spawn(t, s, "tank", 1, grid.P(0, 0))
	events := record(s)
	require.NoError(t, s.Schedule(
		Scheduled{Tick: 1, Command: MoveOrder{Unit: a, Goal: grid.P(7, 5)}},
		Scheduled{Tick: 1, Command: DestroyUnit{Unit: a}},
		Scheduled{Tick: 2, Command: StopOrder{Unit: a}},
	))
	require.NoError(t, s.Run(context.Background(), 3))

	assert.Nil(t, s.Unit(a))
	assert.Zero(t, s.PendingPaths())
	assert.Empty(t, eventsOf[PathFoundEvent](*events))
	destroyed := eventsOf[UnitDestroyedEvent](*events)
	require.Len(t, destroyed, 1)
	assert.Equal(t, "ordered", destroyed[0].Reason)
}

func TestScriptFaultIsIsolated(t *testing.T) {
	s := New(testWorld(t), core.RuntimeConfig{}, quiet())
	bad := spawn(t, s, "broken", 1, grid.P(1, 1))
	good := spawn(t, s, "counter", 1, grid.P(2, 2))
	events := record(s)
	require.NoError(t, s.Run(context.Background(), 5))

	faults := eventsOf[ScriptFaultEvent](*events)
	require.Len(t, faults, 1)
	assert.Equal(t, bad, faults[0].Unit)
	assert.ErrorIs(t, faults[0].Fault.Err, cob.ErrDivideByZero)

	assert.True(t, s.Unit(bad).Mesh.Frozen)
	assert.NotNil(t, s.Unit(bad), "a faulted unit keeps existing")
	assert.Equal(t, int32(5), s.Unit(good).Env.Static(0))
}

func TestSnapshotRestoreContinuesIdentically(t *testing.T) {
	world := testWorld(t)
	cfg := core.RuntimeConfig{Seed: 3, MaxPathsPerTick: 1}
	a, cmds := skirmish(t, world, cfg)
	require.NoError(t, a.Run(context.Background(), 30))

	data, err := a.Snapshot()
	require.NoError(t, err)
	b, err := Restore(world, cfg, quiet(), data)
	require.NoError(t, err)
	assert.Equal(t, a.Hash(), b.Hash())
	assert.Equal(t, a.Now(), b.Now())

	var rest []Scheduled
	for _, c := range cmds {
		if c.Tick > a.Now() {
			rest = append(rest, c)
		}
	}
	require.NoError(t, b.Schedule(rest...))
	assert.Equal(t, hashes(t, a, 120), hashes(t, b, 120))
}

func TestRestoreRejectsGarbage(t *testing.T) {
	_, err := Restore(testWorld(t), core.RuntimeConfig{}, quiet(), []byte{0xc1})
	assert.Error(t, err)
}

func TestLineOfSightShotKills(t *testing.T) {
	s := New(testWorld(t), core.RuntimeConfig{}, quiet())
	shooter := spawn(t, s, "tank", 1, grid.P(0, 0))
	target := spawn(t, s, "counter", 2, grid.P(3, 0))
	events := record(s)
	require.NoError(t, s.Schedule(Scheduled{Tick: 1, Command: FireWeapon{
		Unit: shooter, Weapon: 0, Target: s.Unit(target).Position,
	}}))
	require.NoError(t, s.Run(context.Background(), 10))

	assert.Nil(t, s.Unit(target))
	assert.Empty(t, s.Projectiles())
	destroyed := eventsOf[UnitDestroyedEvent](*events)
	require.Len(t, destroyed, 1)
	assert.Equal(t, target, destroyed[0].Unit)
	assert.Equal(t, "killed", destroyed[0].Reason)

	// Out of range and unknown weapons are rejected.
	assert.Error(t, s.Apply(FireWeapon{Unit: shooter, Weapon: 0, Target: fixed.Vec(fixed.FromInt(60), 0, 0)}))
	assert.Error(t, s.Apply(FireWeapon{Unit: shooter, Weapon: 5}))
}

func TestBallisticShotLandsOnTarget(t *testing.T) {
	p := &Projectile{Physics: Ballistic{}, Speed: fixed.One, Target: fixed.Vec(fixed.FromInt(4), 0, 0)}
	launch(p, fixed.Vector{})
	assert.Equal(t, 4, p.Flight)
	assert.Positive(t, p.Velocity.Y)

	var peak fixed.Scalar
	ticks := 0
	for !p.advance(p.Target) {
		peak = fixed.Max(peak, p.Position.Y)
		ticks++
	}
	assert.Equal(t, 3, ticks)
	assert.Positive(t, peak)
	assert.Equal(t, p.Target, p.Position)
}

func TestTrackingShotTurnsTowardTarget(t *testing.T) {
	p := &Projectile{Physics: Tracking{TurnRate: fixed.EighthTurn}, Speed: fixed.One, Target: fixed.Vec(0, 0, fixed.FromInt(10))}
	launch(p, fixed.Vector{})
	// The target moves to the +x side; the shot bends toward it.
	p.advance(fixed.Vec(fixed.FromInt(10), 0, fixed.FromInt(10)))
	assert.Positive(t, p.Velocity.X)
}

func TestScriptAttachesAndDropsUnits(t *testing.T) {
	s := New(testWorld(t), core.RuntimeConfig{}, quiet())
	carrier := spawn(t, s, "tank", 1, grid.P(0, 0))
	cargo := spawn(t, s, "counter", 1, grid.P(2, 0))
	require.NoError(t, s.Schedule(
		Scheduled{Tick: 1, Command: StartScript{Unit: carrier, Function: "Carry", Args: []int32{int32(cargo.Value())}}},
		Scheduled{Tick: 3, Command: DestroyUnit{Unit: carrier}},
	))

	require.NoError(t, s.Step(context.Background()))
	c := s.Unit(cargo)
	require.NotNil(t, c.Attached)
	assert.Equal(t, "turret", c.Attached.Piece)
	assert.Equal(t, fixed.Vec(fixed.Half, fixed.FromInt(11), fixed.Half), c.Position)
	assert.Error(t, s.Apply(MoveOrder{Unit: cargo, Goal: grid.P(1, 1)}), "carried units take no orders")

	require.NoError(t, s.Run(context.Background(), 2))
	assert.Nil(t, c.Attached)
	assert.Equal(t, fixed.FromInt(10), c.Position.Y)
}

func TestBuildOrderEntersBuildStance(t *testing.T) {
	s := New(testWorld(t), core.RuntimeConfig{}, quiet())
	a := spawn(t, s, "tank", 1, grid.P(0, 0))
	require.NoError(t, s.Schedule(Scheduled{Tick: 1, Command: BuildOrder{Unit: a, Goal: grid.P(2, 0)}}))
	require.NoError(t, s.Run(context.Background(), 30))

	u := s.Unit(a)
	assert.Equal(t, grid.P(1, 0), u.Cell())
	assert.True(t, u.Values.InBuildStance)
	assert.True(t, u.Info().InBuildStance)
	assert.Equal(t, int32(1), u.Env.Static(1))

	require.NoError(t, s.Apply(StopOrder{Unit: a}))
	require.NoError(t, s.Step(context.Background()))
	assert.False(t, u.Values.InBuildStance)
	assert.Equal(t, int32(0), u.Env.Static(1))
}

func TestSubscriptionRelease(t *testing.T) {
	s := New(testWorld(t), core.RuntimeConfig{}, quiet())
	a := spawn(t, s, "tank", 1, grid.P(0, 0))
	var n int
	sub := s.Subscribe(func(Event) { n++ })
	require.NoError(t, s.Apply(DestroyUnit{Unit: a}))
	require.NoError(t, s.Step(context.Background()))
	assert.Equal(t, 1, n)

	sub.Release()
	sub.Release()
	b := spawn(t, s, "tank", 1, grid.P(1, 1))
	require.NoError(t, s.Apply(DestroyUnit{Unit: b}))
	require.NoError(t, s.Step(context.Background()))
	assert.Equal(t, 1, n)
}

func TestScheduleRejectsPastTicks(t *testing.T) {
	s := New(testWorld(t), core.RuntimeConfig{}, quiet())
	a := spawn(t, s, "tank", 1, grid.P(0, 0))
	require.NoError(t, s.Run(context.Background(), 2))
	assert.Error(t, s.Schedule(Scheduled{Tick: 2, Command: StopOrder{Unit: a}}))
	assert.NoError(t, s.Schedule(Scheduled{Tick: 3, Command: StopOrder{Unit: a}}))
	assert.ErrorIs(t, s.Apply(StopOrder{Unit: core.NewUnitID(99)}), ErrUnknownUnit)
}

func TestNewWorldValidatesTypes(t *testing.T) {
	terrain := movement.NewTerrain(2, 2, 0, 0)
	model, err := mesh.NewModel("m", 0, []mesh.PieceDefinition{{Name: "base"}})
	require.NoError(t, err)
	script := cob.MustAssemble("s", "piece gun\nfunc Create\n\treturn\n")

	_, err = NewWorld(terrain, movement.NewDatabase(), []*UnitType{{Name: "x", Model: model, Script: script}})
	assert.ErrorIs(t, err, mesh.ErrUnknownPiece)

	_, err = NewWorld(terrain, movement.NewDatabase(), []*UnitType{{Name: "x"}})
	assert.Error(t, err)

	_, err = NewWorld(terrain, movement.NewDatabase(), []*UnitType{{
		Name: "x", Model: model, Script: cob.MustAssemble("ok", "func Create\n\treturn\n"),
		Weapons: []Weapon{{Name: "gun"}},
	}})
	assert.Error(t, err, "weapons need physics")
}
