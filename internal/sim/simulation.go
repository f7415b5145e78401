// Package sim drives a deterministic game: it applies the lockstep command
// stream, runs every unit's script, advances piece animations, dispatches
// path requests and flies projectiles, one fixed tick at a time.
package sim

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/lockstep/internal/cob"
	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/fixed"
	"github.com/vovakirdan/lockstep/internal/grid"
	"github.com/vovakirdan/lockstep/internal/mesh"
	"github.com/vovakirdan/lockstep/internal/pathfinding"
)

// Simulation is one replica of a game. It is not safe for concurrent use;
// only event subscription may happen from other goroutines.
type Simulation struct {
	world  *World
	cfg    core.RuntimeConfig
	logger *log.Logger

	now   core.GameTime
	units map[core.UnitID]*Unit
	order []core.UnitID // live units, ascending

	nextUnit       uint32
	nextProjectile uint32
	projectiles    []*Projectile

	schedule []Scheduled
	cursor   int

	paths   *pathfinding.Service
	pathSeq uint64

	events  core.Observable[Event]
	pending []Event
	hash    uint64

	// halted holds the error of a tick that failed after it began mutating
	// state. Every later Step returns it.
	halted error
}

// New creates an empty simulation at tick 0.
func New(world *World, cfg core.RuntimeConfig, logger *log.Logger) *Simulation {
	cfg = cfg.Normalized()
	if logger == nil {
		logger = log.Default()
	}
	return &Simulation{
		world:    world,
		cfg:      cfg,
		logger:   logger.WithPrefix("sim"),
		units:    make(map[core.UnitID]*Unit),
		nextUnit: 1,
		paths:    pathfinding.NewService(cfg.PathWorkers, cfg.MaxPathsPerTick, logger),
	}
}

func (s *Simulation) World() *World              { return s.world }
func (s *Simulation) Now() core.GameTime         { return s.now }
func (s *Simulation) Config() core.RuntimeConfig { return s.cfg }
func (s *Simulation) Projectiles() []*Projectile { return s.projectiles }
func (s *Simulation) Unit(id core.UnitID) *Unit  { return s.units[id] }
func (s *Simulation) PendingPaths() int          { return s.paths.Pending() }

// Hash is the state hash computed at the end of the last tick.
func (s *Simulation) Hash() uint64 { return s.hash }

// Units returns the live units in id order.
func (s *Simulation) Units() []*Unit {
	out := make([]*Unit, len(s.order))
	for i, id := range s.order {
		out[i] = s.units[id]
	}
	return out
}

// Subscribe registers fn for events. Events of a tick are delivered after
// the tick completes, in the order they happened.
func (s *Simulation) Subscribe(fn func(Event)) core.Subscription {
	return s.events.Subscribe(fn)
}

// Spawn creates a unit standing on cell and starts its Create script.
func (s *Simulation) Spawn(typeName string, owner core.PlayerID, cell grid.Point, rotation fixed.Angle) (core.UnitID, error) {
	ut, ok := s.world.Type(typeName)
	if !ok {
		return core.UnitID{}, fmt.Errorf("%w: %q", ErrUnknownType, typeName)
	}
	if !s.world.Terrain.InBounds(cell) {
		return core.UnitID{}, fmt.Errorf("sim: spawn %s outside the map at %s", typeName, cell)
	}
	if !s.world.CanStand(ut, cell) {
		s.logger.Warn("spawning on unwalkable cell", "type", typeName, "cell", cell)
	}

	id := core.NewUnitID(s.nextUnit)
	s.nextUnit++
	u := newUnit(id, ut, owner, s.cobConfig())
	u.Position = cellCenter(s.world.Terrain, cell)
	u.Rotation = rotation
	s.insert(u)
	s.startIfDefined(u, "Create")
	s.logger.Debug("unit spawned", "unit", id, "type", typeName, "cell", cell)
	return id, nil
}

func (s *Simulation) cobConfig() cob.Config {
	return cob.Config{Seed: s.cfg.Seed, InstructionBudget: s.cfg.InstructionBudget, Logger: s.logger}
}

func (s *Simulation) insert(u *Unit) {
	s.units[u.ID] = u
	i, _ := slices.BinarySearchFunc(s.order, u.ID, func(a, b core.UnitID) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	s.order = slices.Insert(s.order, i, u.ID)
}

// Schedule adds commands to the input stream. Commands for the same tick
// run in the order they were scheduled. Ticks that already ran are
// rejected.
func (s *Simulation) Schedule(cmds ...Scheduled) error {
	for _, c := range cmds {
		if c.Tick <= s.now {
			return fmt.Errorf("sim: command %q scheduled for %s, already at %s", Describe(c.Command), c.Tick, s.now)
		}
	}
	s.schedule = append(s.schedule, cmds...)
	rest := s.schedule[s.cursor:]
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].Tick < rest[j].Tick })
	return nil
}

// Run steps the simulation n times.
func (s *Simulation) Run(ctx context.Context, n int) error {
	for range n {
		if err := s.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Step advances the simulation by one tick. A context that is already done
// leaves the state untouched. A failure inside the tick halts the
// simulation: the tick is half applied, so every later Step fails with
// ErrHalted and the replica must be rebuilt or restored from a snapshot.
func (s *Simulation) Step(ctx context.Context) error {
	if s.halted != nil {
		return fmt.Errorf("%w: %w", ErrHalted, s.halted)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("sim: tick %s: %w", s.now.Next(), err)
	}
	s.now = s.now.Next()

	s.applyCommands()
	s.runScripts()
	s.animate()
	if err := s.updatePaths(ctx); err != nil {
		return s.halt(err)
	}
	s.moveUnits()
	s.updateProjectiles()

	hash, err := s.computeHash()
	if err != nil {
		return s.halt(err)
	}
	s.hash = hash
	s.publish()
	return nil
}

func (s *Simulation) halt(err error) error {
	s.halted = fmt.Errorf("sim: tick %s: %w", s.now, err)
	s.logger.Error("tick failed, simulation halted", "tick", s.now, "err", err)
	return s.halted
}

// Halted reports whether a failed tick stopped the simulation.
func (s *Simulation) Halted() bool { return s.halted != nil }

func (s *Simulation) applyCommands() {
	for s.cursor < len(s.schedule) && s.schedule[s.cursor].Tick <= s.now {
		cmd := s.schedule[s.cursor].Command
		s.cursor++
		if err := s.Apply(cmd); err != nil {
			s.logger.Warn("command rejected", "tick", s.now, "command", Describe(cmd), "err", err)
		}
	}
}

// runScripts resumes every environment against the state at the start of
// the tick, then applies the collected effects in unit order.
func (s *Simulation) runScripts() {
	type batch struct {
		unit    *Unit
		effects []cob.Effect
	}
	var batches []batch
	for _, id := range s.order {
		u := s.units[id]
		if u.Env.Faulted() {
			continue
		}
		u.Env.Tick(s.now, reader{s})
		if effects := u.Env.DrainEffects(); len(effects) > 0 {
			batches = append(batches, batch{unit: u, effects: effects})
		}
		if f := u.Env.Fault(); f != nil && !u.faultReported {
			u.faultReported = true
			u.Mesh.Frozen = true
			s.logger.Warn("unit animation frozen", "unit", id, "err", f)
			s.emit(ScriptFaultEvent{At: s.at(), Unit: id, Fault: *f})
		}
	}
	for _, b := range batches {
		for _, e := range b.effects {
			s.applyEffect(b.unit, e)
		}
	}
}

func (s *Simulation) animate() {
	for _, id := range s.order {
		s.units[id].Mesh.Update()
	}
	// Carried units follow their carrier's piece.
	for _, id := range s.order {
		u := s.units[id]
		if u.Attached == nil {
			continue
		}
		if pos, ok := s.PiecePosition(u.Attached.Carrier, u.Attached.Piece); ok {
			u.Position = pos
		}
	}
}

func (s *Simulation) emit(e Event) {
	s.pending = append(s.pending, e)
}

func (s *Simulation) at() At {
	return At{Tick: s.now}
}

func (s *Simulation) publish() {
	events := s.pending
	s.pending = nil
	for _, e := range events {
		s.events.Publish(e)
	}
}

func (s *Simulation) startIfDefined(u *Unit, fn string, args ...int32) {
	if _, ok := u.Type.Script.FunctionIndex(fn); !ok || u.Env.Faulted() {
		return
	}
	if _, err := u.Env.Start(fn, args...); err != nil {
		s.logger.Warn("script start failed", "unit", u.ID, "function", fn, "err", err)
	}
}

// reader adapts the simulation to cob.UnitReader; its Unit method shadows
// Simulation.Unit.
type reader struct{ *Simulation }

func (r reader) Unit(id core.UnitID) (cob.UnitInfo, bool) {
	u, ok := r.units[id]
	if !ok {
		return cob.UnitInfo{}, false
	}
	return u.Info(), true
}

// UnitIDRange returns the lowest and highest live unit ids.
func (s *Simulation) UnitIDRange() (lo, hi core.UnitID) {
	if len(s.order) == 0 {
		return lo, hi
	}
	return s.order[0], s.order[len(s.order)-1]
}

// PiecePosition returns the world position of a unit's piece.
func (s *Simulation) PiecePosition(unit core.UnitID, piece string) (fixed.Vector, bool) {
	u, ok := s.units[unit]
	if !ok {
		return fixed.Vector{}, false
	}
	pos, err := u.Mesh.PiecePosition(piece, u.Position, u.Rotation)
	return pos, err == nil
}

func (s *Simulation) PieceMoving(unit core.UnitID, piece string, axis cob.Axis) bool {
	u, ok := s.units[unit]
	return ok && u.Mesh.Moving(piece, axis)
}

func (s *Simulation) PieceTurning(unit core.UnitID, piece string, axis cob.Axis) bool {
	u, ok := s.units[unit]
	return ok && u.Mesh.Turning(piece, axis)
}

func (s *Simulation) GroundHeight(x, z fixed.Scalar) fixed.Scalar {
	return s.world.Terrain.HeightAt(x, z)
}

// PieceMatrices returns the world transform of every piece of a unit in
// model order, ready for a renderer.
func (s *Simulation) PieceMatrices(id core.UnitID) ([][16]float32, error) {
	u, ok := s.units[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUnit, id)
	}
	pieces := u.Type.Model.Pieces()
	out := make([][16]float32, len(pieces))
	for i, p := range pieces {
		t, err := u.Mesh.PieceTransform(p.Name)
		if err != nil {
			return nil, err
		}
		out[i] = mesh.UnitTransform(u.Position, u.Rotation).Mul(t).Float32s()
	}
	return out, nil
}
