package config

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/lockstep/internal/cob"
	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/fixed"
	"github.com/vovakirdan/lockstep/internal/grid"
	"github.com/vovakirdan/lockstep/internal/mesh"
	"github.com/vovakirdan/lockstep/internal/movement"
	"github.com/vovakirdan/lockstep/internal/sim"
)

// BuildTerrain converts the map rows to a heightmap. A corner takes the
// average height of the cells that touch it.
func (sc *Scenario) BuildTerrain() *movement.Terrain {
	rows := sc.Terrain.Rows
	w, h := len(rows[0]), len(rows)
	t := movement.NewTerrain(w, h, 0, sc.Terrain.SeaLevel)

	cellHeight := func(x, y int) int {
		s := string(rows[y][x])
		if s == sc.Terrain.Feature {
			return sc.Terrain.DefaultHeight
		}
		return sc.Terrain.Legend[s]
	}

	for cy := 0; cy <= h; cy++ {
		for cx := 0; cx <= w; cx++ {
			sum, n := 0, 0
			for dy := -1; dy <= 0; dy++ {
				for dx := -1; dx <= 0; dx++ {
					x, y := cx+dx, cy+dy
					if x < 0 || y < 0 || x >= w || y >= h {
						continue
					}
					sum += cellHeight(x, y)
					n++
				}
			}
			t.Heights.Set(grid.P(cx, cy), uint8(core.Clamp(sum/n, 0, 255))) //nolint:gosec // clamped to byte range
		}
	}
	for y, row := range rows {
		for x := range row {
			if string(row[x]) == sc.Terrain.Feature {
				t.Features.Set(grid.P(x, y), true)
			}
		}
	}
	return t
}

// BuildClasses registers the movement classes in file order.
func (sc *Scenario) BuildClasses() (*movement.Database, error) {
	db := movement.NewDatabase()
	for _, c := range sc.Classes {
		def := movement.NewClassDefinition(c.Name, c.Footprint[0], c.Footprint[1])
		def.MinWaterDepth = c.MinWaterDepth
		if c.MaxWaterDepth != nil {
			def.MaxWaterDepth = *c.MaxWaterDepth
		}
		if c.MaxSlope != nil {
			def.MaxSlope = *c.MaxSlope
		}
		if c.MaxWaterSlope != nil {
			def.MaxWaterSlope = *c.MaxWaterSlope
		} else {
			def.MaxWaterSlope = def.MaxSlope
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.ID, err)
		}
		if _, err := db.Register(def); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.ID, err)
		}
	}
	return db, nil
}

// BuildWorld assembles scripts, builds piece models and precomputes the
// walkability grids. The result is shared read-only by every simulation
// of the scenario.
func (sc *Scenario) BuildWorld() (*sim.World, error) {
	classes, err := sc.BuildClasses()
	if err != nil {
		return nil, err
	}

	types := make([]*sim.UnitType, 0, len(sc.Types))
	for _, ty := range sc.Types {
		ut, err := sc.buildType(ty, classes)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: type %s: %w", sc.ID, ty.Name, err)
		}
		types = append(types, ut)
	}

	world, err := sim.NewWorld(sc.BuildTerrain(), classes, types)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.ID, err)
	}
	return world, nil
}

func (sc *Scenario) buildType(ty UnitTypeYAML, classes *movement.Database) (*sim.UnitType, error) {
	ut := &sim.UnitType{
		Name:       ty.Name,
		FootprintX: max(ty.Footprint[0], 1),
		FootprintZ: max(ty.Footprint[1], 1),
		Speed:      fixed.FromFloat(ty.Speed),
		TurnRate:   fixed.AngleFromDegrees(ty.TurnRate),
		HitPoints:  ty.HitPoints,
	}
	if ty.Class != "" {
		class, err := classes.Resolve(ty.Class)
		if err != nil {
			return nil, err
		}
		ut.Class, ut.HasClass = class, true
	}

	pieces := make([]mesh.PieceDefinition, len(ty.Pieces))
	for i, p := range ty.Pieces {
		pieces[i] = mesh.PieceDefinition{
			Name:   p.Name,
			Parent: p.Parent,
			Origin: fixed.VecFromFloats(p.Origin[0], p.Origin[1], p.Origin[2]),
		}
	}
	var err error
	if ut.Model, err = mesh.NewModel(ty.Name, fixed.FromFloat(ty.Height), pieces); err != nil {
		return nil, err
	}
	if ut.Script, err = cob.Assemble(ty.Name, ty.Script); err != nil {
		return nil, err
	}

	ut.Weapons = make([]sim.Weapon, len(ty.Weapons))
	for i, w := range ty.Weapons {
		physics, err := sim.ParsePhysics(w.Physics, fixed.AngleFromDegrees(w.TurnRate))
		if err != nil {
			return nil, err
		}
		ut.Weapons[i] = sim.Weapon{
			Name:    w.Name,
			Piece:   w.Piece,
			Physics: physics,
			Speed:   fixed.FromFloat(w.Speed),
			Range:   fixed.FromFloat(w.Range),
			Damage:  w.Damage,
			Script:  w.Script,
		}
	}

	return ut, nil
}

// NewSimulation creates a simulation on world, spawns the scenario's units
// and schedules its commands. world must come from BuildWorld of the same
// scenario.
func (sc *Scenario) NewSimulation(world *sim.World, cfg core.RuntimeConfig, logger *log.Logger) (*sim.Simulation, error) {
	if err := sc.checkOverlaps(world); err != nil {
		return nil, err
	}
	s := sim.New(world, cfg, logger)
	for i, u := range sc.Units {
		heading := fixed.AngleFromDegrees(u.Heading)
		if _, err := s.Spawn(u.Type, core.NewPlayerID(u.Owner), grid.P(u.At[0], u.At[1]), heading); err != nil {
			return nil, fmt.Errorf("scenario %s: unit %d: %w", sc.ID, i+1, err)
		}
	}
	if err := s.Schedule(sc.Schedule()...); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.ID, err)
	}
	return s, nil
}

// checkOverlaps rejects scenarios whose units start on top of each other.
func (sc *Scenario) checkOverlaps(world *sim.World) error {
	rects := make([]core.DiscreteRect, len(sc.Units))
	for i, u := range sc.Units {
		ut, ok := world.Type(u.Type)
		if !ok {
			return invalid("UNKNOWN_TYPE", "unit %d has unknown type %q", i+1, u.Type)
		}
		fx, fz := world.Footprint(ut)
		rects[i] = core.NewRect(u.At[0], u.At[1], fx, fz)
		for j := range i {
			if rects[i].Intersects(rects[j]) {
				return invalid("OVERLAPPING_UNITS", "unit %d at %s overlaps unit %d at %s", i+1, rects[i], j+1, rects[j])
			}
		}
	}
	return nil
}

// Schedule converts the command list. Validate guarantees each entry has
// exactly one action.
func (sc *Scenario) Schedule() []sim.Scheduled {
	out := make([]sim.Scheduled, 0, len(sc.Commands))
	for _, c := range sc.Commands {
		out = append(out, sim.Scheduled{Tick: core.GameTime(c.Tick), Command: c.command()})
	}
	return out
}

func (c CommandYAML) command() sim.Command {
	unit := core.NewUnitID(c.Unit)
	switch {
	case c.Move != nil:
		return sim.MoveOrder{Unit: unit, Goal: grid.P(c.Move[0], c.Move[1])}
	case c.Build != nil:
		return sim.BuildOrder{Unit: unit, Goal: grid.P(c.Build[0], c.Build[1])}
	case c.Signal != nil:
		return sim.Signal{Unit: unit, Signal: *c.Signal}
	case c.Script != "":
		return sim.StartScript{Unit: unit, Function: c.Script, Args: c.Args}
	case c.Activate != nil:
		return sim.SetActivation{Unit: unit, On: *c.Activate}
	case c.Destroy:
		return sim.DestroyUnit{Unit: unit}
	case c.Fire != nil:
		at := fixed.VecFromFloats(c.Fire.At[0], c.Fire.At[1], c.Fire.At[2])
		return sim.FireWeapon{Unit: unit, Weapon: c.Fire.Weapon, Target: at}
	}
	return sim.StopOrder{Unit: unit}
}
