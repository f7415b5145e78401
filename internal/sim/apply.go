package sim

import (
	"fmt"

	"github.com/vovakirdan/lockstep/internal/cob"
	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/fixed"
	"github.com/vovakirdan/lockstep/internal/grid"
	"github.com/vovakirdan/lockstep/internal/pathfinding"
)

// Apply executes one command immediately. Step calls it for scheduled
// commands; tests and tools may call it between ticks.
func (s *Simulation) Apply(cmd Command) error {
	u, ok := s.units[cmd.Target()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUnit, cmd.Target())
	}

	switch c := cmd.(type) {
	case MoveOrder:
		return s.issueOrder(u, OrderMove, c.Goal)
	case BuildOrder:
		return s.issueOrder(u, OrderBuild, c.Goal)
	case StopOrder:
		s.stop(u)
	case Signal:
		u.Env.Signal(c.Signal)
	case StartScript:
		if _, err := u.Env.Start(c.Function, c.Args...); err != nil {
			return err
		}
	case SetActivation:
		s.setActivation(u, c.On)
	case DestroyUnit:
		s.destroy(u, "ordered")
	case FireWeapon:
		return s.fire(u, c.Weapon, c.Target)
	default:
		return fmt.Errorf("sim: unsupported command %T", cmd)
	}
	return nil
}

func (s *Simulation) issueOrder(u *Unit, kind OrderKind, goal grid.Point) error {
	if !s.world.Terrain.InBounds(goal) {
		return fmt.Errorf("sim: goal %s is outside the map", goal)
	}
	if u.Attached != nil {
		return fmt.Errorf("sim: unit %s is carried by unit %s", u.ID, u.Attached.Carrier)
	}
	radius := 0
	if kind == OrderBuild {
		radius = 1
	}
	if u.Order == OrderBuild && u.Values.InBuildStance {
		s.leaveBuildStance(u)
	}
	u.Order = kind
	u.Goal = goal
	u.Request = &pathfinding.Request{
		Start:      u.Cell(),
		Goal:       goal,
		GoalRadius: radius,
		Budget:     s.cfg.ExpansionFactor * s.world.Terrain.Width() * s.world.Terrain.Height(),
	}
	s.pathSeq++
	u.pathSeq = s.pathSeq
	s.requestPath(u)
	return nil
}

func (s *Simulation) requestPath(u *Unit) {
	s.paths.Request(u.ID, s.world.Space(u.Type), *u.Request)
}

// stop cancels the order, the pending search and any build stance.
func (s *Simulation) stop(u *Unit) {
	if u.Request != nil {
		s.paths.Cancel(u.ID)
		u.Request = nil
	}
	if u.Values.InBuildStance {
		s.leaveBuildStance(u)
	}
	s.setWaypoints(u, nil)
	u.Order = OrderNone
}

func (s *Simulation) leaveBuildStance(u *Unit) {
	u.Values.InBuildStance = false
	s.startIfDefined(u, "StopBuilding")
}

// setWaypoints replaces the route and runs StartMoving or StopMoving when
// the unit starts or stops.
func (s *Simulation) setWaypoints(u *Unit, wps []grid.Point) {
	was := u.Moving()
	u.Waypoints = wps
	switch {
	case !was && u.Moving():
		s.startIfDefined(u, "StartMoving")
	case was && !u.Moving():
		s.startIfDefined(u, "StopMoving")
	}
}

func (s *Simulation) setActivation(u *Unit, on bool) {
	if u.Activated == on {
		return
	}
	u.Activated = on
	if on {
		s.startIfDefined(u, "Activate")
	} else {
		s.startIfDefined(u, "Deactivate")
	}
}

// destroy removes a unit. Its pending search is cancelled and units it
// carries are dropped where they are.
func (s *Simulation) destroy(u *Unit, reason string) {
	s.paths.Cancel(u.ID)
	delete(s.units, u.ID)
	for i, id := range s.order {
		if id == u.ID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	for _, id := range s.order {
		other := s.units[id]
		if other.Attached != nil && other.Attached.Carrier == u.ID {
			s.drop(other)
		}
	}
	s.logger.Debug("unit destroyed", "unit", u.ID, "reason", reason)
	s.emit(UnitDestroyedEvent{At: s.at(), Unit: u.ID, Reason: reason})
}

func (s *Simulation) drop(u *Unit) {
	u.Attached = nil
	u.Position.Y = s.world.Terrain.HeightAt(u.Position.X, u.Position.Z)
}

func (s *Simulation) fire(u *Unit, index int, target fixed.Vector) error {
	if index < 0 || index >= len(u.Type.Weapons) {
		return fmt.Errorf("sim: unit %s has no weapon %d", u.ID, index)
	}
	w := u.Type.Weapons[index]
	if w.Range > 0 && fixed.DistanceXZ(u.Position, target) > w.Range {
		return fmt.Errorf("sim: target %s out of range of %s", target, w.Name)
	}

	origin := u.Position
	if w.Piece != "" {
		if pos, ok := s.PiecePosition(u.ID, w.Piece); ok {
			origin = pos
		}
	}
	s.nextProjectile++
	p := &Projectile{
		ID:      core.NewProjectileID(s.nextProjectile),
		Shooter: u.ID,
		Physics: w.Physics,
		Speed:   perTick(w.Speed),
		Target:  target,
		Damage:  w.Damage,
	}
	if victim, ok := s.unitNear(target, u.ID); ok {
		p.TargetUnit = victim
	}
	launch(p, origin)
	s.projectiles = append(s.projectiles, p)
	if w.Script != "" {
		s.startIfDefined(u, w.Script)
	}
	return nil
}

// unitNear returns the lowest id unit within impact range of pos, other
// than skip.
func (s *Simulation) unitNear(pos fixed.Vector, skip core.UnitID) (core.UnitID, bool) {
	for _, id := range s.order {
		if id == skip {
			continue
		}
		if fixed.DistanceXZ(s.units[id].Position, pos) <= impactRadius {
			return id, true
		}
	}
	return core.UnitID{}, false
}

// applyEffect carries out one script side effect.
func (s *Simulation) applyEffect(u *Unit, e cob.Effect) {
	switch e := e.(type) {
	case cob.PieceCommand:
		if err := u.Mesh.Apply(e); err != nil {
			s.logger.Warn("piece command failed", "unit", u.ID, "command", e.Kind, "err", err)
		}
	case cob.SfxEffect:
		pos, _ := s.PiecePosition(u.ID, e.Piece)
		s.emit(SfxEvent{At: s.at(), Unit: u.ID, Piece: e.Piece, Type: e.Type, Position: pos})
	case cob.ExplodeEffect:
		pos, _ := s.PiecePosition(u.ID, e.Piece)
		s.emit(ExplodeEvent{At: s.at(), Unit: u.ID, Piece: e.Piece, Flags: e.Flags, Position: pos})
	case cob.SoundEffect:
		s.emit(SoundEvent{At: s.at(), Unit: u.ID, Sound: e.Sound})
	case cob.AttachEffect:
		s.attach(u, e)
	case cob.DropEffect:
		if other, ok := s.units[e.Unit]; ok && other.Attached != nil && other.Attached.Carrier == u.ID {
			s.drop(other)
		}
	case cob.SetValueEffect:
		s.setValue(u, e.Value, e.Arg)
	default:
		s.logger.Warn("unhandled script effect", "unit", u.ID, "effect", fmt.Sprintf("%T", e))
	}
}

func (s *Simulation) attach(u *Unit, e cob.AttachEffect) {
	other, ok := s.units[e.Unit]
	if !ok || other == u {
		s.logger.Warn("attach ignored", "unit", u.ID, "target", e.Unit)
		return
	}
	pieces := u.Type.Script.Pieces
	if e.Piece < 0 || int(e.Piece) >= len(pieces) {
		s.logger.Warn("attach to unknown piece", "unit", u.ID, "piece", e.Piece)
		return
	}
	if other.Request != nil {
		s.paths.Cancel(other.ID)
		other.Request = nil
	}
	other.Waypoints = nil
	other.Order = OrderNone
	other.Attached = &Attachment{Carrier: u.ID, Piece: pieces[e.Piece]}
}

func (s *Simulation) setValue(u *Unit, id cob.ValueID, arg int32) {
	on := arg != 0
	switch id {
	case cob.ValueActivation:
		s.setActivation(u, on)
	case cob.ValueStandingMoveOrders:
		u.Values.StandingMoveOrders = arg
	case cob.ValueStandingFireOrders:
		u.Values.StandingFireOrders = arg
	case cob.ValueInBuildStance:
		u.Values.InBuildStance = on
	case cob.ValueBusy:
		u.Values.Busy = on
	case cob.ValueYardOpen:
		u.Values.YardOpen = on
	case cob.ValueBuggerOff:
		u.Values.BuggerOff = on
	case cob.ValueArmored:
		u.Values.Armored = on
	default:
		s.logger.Debug("unit value not writable", "unit", u.ID, "value", id)
	}
}
