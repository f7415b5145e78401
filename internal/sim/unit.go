package sim

import (
	"errors"
	"fmt"
	"sort"

	"github.com/vovakirdan/lockstep/internal/cob"
	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/fixed"
	"github.com/vovakirdan/lockstep/internal/grid"
	"github.com/vovakirdan/lockstep/internal/mesh"
	"github.com/vovakirdan/lockstep/internal/movement"
	"github.com/vovakirdan/lockstep/internal/pathfinding"
)

var (
	// ErrUnknownUnit is returned for commands naming a unit that does not
	// exist or was destroyed.
	ErrUnknownUnit = errors.New("sim: unknown unit")

	// ErrUnknownType is returned when spawning a unit type that was never
	// registered.
	ErrUnknownType = errors.New("sim: unknown unit type")

	// ErrHalted is returned by Step after a tick failed part way.
	ErrHalted = errors.New("sim: simulation halted")
)

// Weapon is one weapon mount of a unit type.
type Weapon struct {
	Name    string
	Piece   string // projectiles leave from this piece
	Physics ProjectilePhysics
	Speed   fixed.Scalar // world units per second
	Range   fixed.Scalar
	Damage  int32
	// Script is started each time the weapon fires, if the unit's script
	// defines it.
	Script string
}

// UnitType is the immutable definition shared by all units of a kind.
type UnitType struct {
	Name string
	// Class is ignored unless HasClass is set. Classless units use their
	// own footprint and are restricted only by the map edge and features.
	Class      core.MovementClassID
	HasClass   bool
	FootprintX int
	FootprintZ int
	Model     *mesh.Model
	Script    *cob.Script
	Speed     fixed.Scalar // world units per second
	TurnRate  fixed.Angle  // per tick
	HitPoints int32
	Weapons   []Weapon
}

// World is the static data a simulation runs against. It is shared
// read-only between replicas.
type World struct {
	Terrain   *movement.Terrain
	Classes   *movement.Database
	Collision *movement.CollisionService
	types     map[string]*UnitType
}

// NewWorld checks that every type's script only names pieces of its model
// and precomputes the walkability grids.
func NewWorld(terrain *movement.Terrain, classes *movement.Database, types []*UnitType) (*World, error) {
	w := &World{
		Terrain:   terrain,
		Classes:   classes,
		Collision: movement.NewCollisionService(terrain, classes),
		types:     make(map[string]*UnitType, len(types)),
	}
	for _, t := range types {
		if _, dup := w.types[t.Name]; dup {
			return nil, fmt.Errorf("sim: unit type %q defined twice", t.Name)
		}
		if t.Model == nil || t.Script == nil {
			return nil, fmt.Errorf("sim: unit type %q needs a model and a script", t.Name)
		}
		if err := t.Model.Has(t.Script.Pieces...); err != nil {
			return nil, fmt.Errorf("sim: unit type %q: %w", t.Name, err)
		}
		for _, wp := range t.Weapons {
			if wp.Piece != "" {
				if err := t.Model.Has(wp.Piece); err != nil {
					return nil, fmt.Errorf("sim: unit type %q weapon %q: %w", t.Name, wp.Name, err)
				}
			}
			if wp.Physics == nil {
				return nil, fmt.Errorf("sim: unit type %q weapon %q has no physics", t.Name, wp.Name)
			}
		}
		w.types[t.Name] = t
	}
	return w, nil
}

// Type looks up a unit type by name.
func (w *World) Type(name string) (*UnitType, bool) {
	t, ok := w.types[name]
	return t, ok
}

// Footprint returns the size in cells a unit of type t occupies.
func (w *World) Footprint(t *UnitType) (int, int) {
	if t.HasClass {
		def, _ := w.Classes.Get(t.Class)
		return def.FootprintX, def.FootprintZ
	}
	return max(t.FootprintX, 1), max(t.FootprintZ, 1)
}

// Space returns the pathfinding space of a unit type.
func (w *World) Space(t *UnitType) pathfinding.Space {
	if t.HasClass {
		return w.Collision.Space(t.Class, w.Classes)
	}
	return w.Collision.FootprintSpace(w.Footprint(t))
}

// CanStand reports whether a unit of type t may stand with the top-left
// cell of its footprint at p.
func (w *World) CanStand(t *UnitType, p grid.Point) bool {
	if t.HasClass {
		return w.Collision.IsWalkable(t.Class, p)
	}
	fx, fz := w.Footprint(t)
	return movement.FootprintFits(w.Terrain, fx, fz, p)
}

// Types returns the unit types sorted by name.
func (w *World) Types() []*UnitType {
	out := make([]*UnitType, 0, len(w.types))
	for _, t := range w.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// OrderKind is the standing order of a unit.
type OrderKind uint8

const (
	OrderNone OrderKind = iota
	OrderMove
	OrderBuild
)

func (k OrderKind) String() string {
	switch k {
	case OrderMove:
		return "move"
	case OrderBuild:
		return "build"
	}
	return "idle"
}

// Attachment records a unit carried on another unit's piece.
type Attachment struct {
	Carrier core.UnitID
	Piece   string
}

// Unit is one live unit.
type Unit struct {
	ID       core.UnitID
	Type     *UnitType
	Owner    core.PlayerID
	Position fixed.Vector
	Rotation fixed.Angle

	HitPoints int32
	Activated bool
	Values    UnitValues

	Order     OrderKind
	Goal      grid.Point
	Waypoints []grid.Point
	Request   *pathfinding.Request // search awaiting a result
	Attached  *Attachment

	Mesh *mesh.UnitMesh
	Env  *cob.Environment

	pathSeq       uint64
	faultReported bool
}

// UnitValues are the script-writable flags of a unit.
type UnitValues struct {
	InBuildStance      bool  `msgpack:"build_stance,omitempty"`
	Busy               bool  `msgpack:"busy,omitempty"`
	YardOpen           bool  `msgpack:"yard_open,omitempty"`
	BuggerOff          bool  `msgpack:"bugger_off,omitempty"`
	Armored            bool  `msgpack:"armored,omitempty"`
	StandingMoveOrders int32 `msgpack:"move_orders,omitempty"`
	StandingFireOrders int32 `msgpack:"fire_orders,omitempty"`
}

func newUnit(id core.UnitID, t *UnitType, owner core.PlayerID, cfg cob.Config) *Unit {
	return &Unit{
		ID:        id,
		Type:      t,
		Owner:     owner,
		HitPoints: t.HitPoints,
		Mesh:      mesh.New(t.Model),
		Env:       cob.NewEnvironment(t.Script, id, cfg),
	}
}

// Cell is the map cell the unit stands on.
func (u *Unit) Cell() grid.Point {
	return grid.P(u.Position.X.Floor(), u.Position.Z.Floor())
}

// Moving reports whether the unit is following a path.
func (u *Unit) Moving() bool {
	return len(u.Waypoints) > 0
}

// Info is the script-visible view of the unit.
func (u *Unit) Info() cob.UnitInfo {
	return cob.UnitInfo{
		Position:           u.Position,
		Rotation:           u.Rotation,
		Height:             u.Type.Model.Height,
		Owner:              u.Owner,
		HitPoints:          u.HitPoints,
		MaxHitPoints:       u.Type.HitPoints,
		Activated:          u.Activated,
		InBuildStance:      u.Values.InBuildStance,
		Busy:               u.Values.Busy,
		YardOpen:           u.Values.YardOpen,
		BuggerOff:          u.Values.BuggerOff,
		Armored:            u.Values.Armored,
		StandingMoveOrders: u.Values.StandingMoveOrders,
		StandingFireOrders: u.Values.StandingFireOrders,
	}
}

// cellCenter is the world position of the middle of a cell at ground level.
func cellCenter(t *movement.Terrain, p grid.Point) fixed.Vector {
	x := fixed.FromInt(p.X).Add(fixed.Half)
	z := fixed.FromInt(p.Y).Add(fixed.Half)
	return fixed.Vec(x, t.HeightAt(x, z), z)
}
