package sim

import (
	"fmt"

	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/fixed"
	"github.com/vovakirdan/lockstep/internal/grid"
)

// Command is one entry of the lockstep input stream. The set of commands is
// closed; Apply dispatches with an exhaustive type switch.
type Command interface {
	Target() core.UnitID
	isCommand()
}

// MoveOrder sends a unit to a cell.
type MoveOrder struct {
	Unit core.UnitID
	Goal grid.Point
}

// BuildOrder sends a unit next to a cell and puts it in build stance on
// arrival.
type BuildOrder struct {
	Unit core.UnitID
	Goal grid.Point
}

// StopOrder clears the current order of a unit.
type StopOrder struct {
	Unit core.UnitID
}

// Signal sends a script signal to a unit's environment.
type Signal struct {
	Unit   core.UnitID
	Signal uint32
}

// StartScript starts a script function with arguments.
type StartScript struct {
	Unit     core.UnitID
	Function string
	Args     []int32
}

// SetActivation switches a unit on or off and runs its Activate or
// Deactivate script.
type SetActivation struct {
	Unit core.UnitID
	On   bool
}

// DestroyUnit removes a unit from the game.
type DestroyUnit struct {
	Unit core.UnitID
}

// FireWeapon launches a projectile from one of the unit's weapons.
type FireWeapon struct {
	Unit   core.UnitID
	Weapon int
	Target fixed.Vector
}

func (c MoveOrder) Target() core.UnitID     { return c.Unit }
func (c BuildOrder) Target() core.UnitID    { return c.Unit }
func (c StopOrder) Target() core.UnitID     { return c.Unit }
func (c Signal) Target() core.UnitID        { return c.Unit }
func (c StartScript) Target() core.UnitID   { return c.Unit }
func (c SetActivation) Target() core.UnitID { return c.Unit }
func (c DestroyUnit) Target() core.UnitID   { return c.Unit }
func (c FireWeapon) Target() core.UnitID    { return c.Unit }

func (MoveOrder) isCommand()     {}
func (BuildOrder) isCommand()    {}
func (StopOrder) isCommand()     {}
func (Signal) isCommand()        {}
func (StartScript) isCommand()   {}
func (SetActivation) isCommand() {}
func (DestroyUnit) isCommand()   {}
func (FireWeapon) isCommand()    {}

// Scheduled is a command bound to the tick it executes on.
type Scheduled struct {
	Tick    core.GameTime
	Command Command
}

// Describe renders a command for logs and the inspector.
func Describe(c Command) string {
	switch c := c.(type) {
	case MoveOrder:
		return fmt.Sprintf("move unit %s to %s", c.Unit, c.Goal)
	case BuildOrder:
		return fmt.Sprintf("build unit %s at %s", c.Unit, c.Goal)
	case StopOrder:
		return fmt.Sprintf("stop unit %s", c.Unit)
	case Signal:
		return fmt.Sprintf("signal unit %s with %#x", c.Unit, c.Signal)
	case StartScript:
		return fmt.Sprintf("start %s%v on unit %s", c.Function, c.Args, c.Unit)
	case SetActivation:
		if c.On {
			return fmt.Sprintf("activate unit %s", c.Unit)
		}
		return fmt.Sprintf("deactivate unit %s", c.Unit)
	case DestroyUnit:
		return fmt.Sprintf("destroy unit %s", c.Unit)
	case FireWeapon:
		return fmt.Sprintf("unit %s fires weapon %d at %s", c.Unit, c.Weapon, c.Target)
	}
	return fmt.Sprintf("%T", c)
}
