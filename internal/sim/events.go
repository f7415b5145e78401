package sim

import (
	"fmt"

	"github.com/vovakirdan/lockstep/internal/cob"
	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/fixed"
	"github.com/vovakirdan/lockstep/internal/grid"
	"github.com/vovakirdan/lockstep/internal/pathfinding"
)

// Event is something subscribers are told about at the end of a tick.
type Event interface {
	Time() core.GameTime
	isEvent()
}

// At stamps every event with the tick it happened on.
type At struct {
	Tick core.GameTime
}

func (a At) Time() core.GameTime { return a.Tick }

type SoundEvent struct {
	At
	Unit  core.UnitID
	Sound int32
}

type SfxEvent struct {
	At
	Unit     core.UnitID
	Piece    string
	Type     int32
	Position fixed.Vector
}

type ExplodeEvent struct {
	At
	Unit     core.UnitID
	Piece    string
	Flags    int32
	Position fixed.Vector
}

type PathFoundEvent struct {
	At
	Unit      core.UnitID
	Waypoints []grid.Point
	Cost      pathfinding.PathCost
}

type NoPathEvent struct {
	At
	Unit core.UnitID
	Goal grid.Point
}

// ArrivedEvent is published when a unit reaches the end of its path.
type ArrivedEvent struct {
	At
	Unit core.UnitID
	Cell grid.Point
}

type ScriptFaultEvent struct {
	At
	Unit  core.UnitID
	Fault cob.Fault
}

type UnitDestroyedEvent struct {
	At
	Unit   core.UnitID
	Reason string
}

// ImpactEvent is a projectile hitting its target point.
type ImpactEvent struct {
	At
	Projectile core.ProjectileID
	Shooter    core.UnitID
	Position   fixed.Vector
	Hits       []core.UnitID
}

func (SoundEvent) isEvent()         {}
func (SfxEvent) isEvent()           {}
func (ExplodeEvent) isEvent()       {}
func (PathFoundEvent) isEvent()     {}
func (NoPathEvent) isEvent()        {}
func (ArrivedEvent) isEvent()       {}
func (ScriptFaultEvent) isEvent()   {}
func (UnitDestroyedEvent) isEvent() {}
func (ImpactEvent) isEvent()        {}

// FormatEvent renders an event as one log line.
func FormatEvent(e Event) string {
	var msg string
	switch e := e.(type) {
	case SoundEvent:
		msg = fmt.Sprintf("unit %s sound %d", e.Unit, e.Sound)
	case SfxEvent:
		msg = fmt.Sprintf("unit %s sfx %d at %s", e.Unit, e.Type, e.Piece)
	case ExplodeEvent:
		msg = fmt.Sprintf("unit %s explodes %s", e.Unit, e.Piece)
	case PathFoundEvent:
		msg = fmt.Sprintf("unit %s path %d waypoints cost %s", e.Unit, len(e.Waypoints), e.Cost)
	case NoPathEvent:
		msg = fmt.Sprintf("unit %s no path to %s", e.Unit, e.Goal)
	case ArrivedEvent:
		msg = fmt.Sprintf("unit %s arrived at %s", e.Unit, e.Cell)
	case ScriptFaultEvent:
		msg = fmt.Sprintf("unit %s script fault: %s", e.Unit, e.Fault.Error())
	case UnitDestroyedEvent:
		msg = fmt.Sprintf("unit %s destroyed (%s)", e.Unit, e.Reason)
	case ImpactEvent:
		msg = fmt.Sprintf("projectile %s from unit %s hit %d units", e.Projectile, e.Shooter, len(e.Hits))
	default:
		msg = fmt.Sprintf("%T", e)
	}
	return fmt.Sprintf("[%s] %s", e.Time(), msg)
}
