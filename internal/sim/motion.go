package sim

import (
	"context"

	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/fixed"
	"github.com/vovakirdan/lockstep/internal/pathfinding"
)

// perTick converts a per-second rate to a per-tick step, truncating.
func perTick(v fixed.Scalar) fixed.Scalar {
	return fixed.FromRaw(v.Raw() / core.TicksPerSecond)
}

// updatePaths runs this tick's share of path searches and applies the
// results in unit order.
func (s *Simulation) updatePaths(ctx context.Context) error {
	done, err := s.paths.Process(ctx)
	if err != nil {
		return err
	}
	for _, c := range done {
		u, ok := s.units[c.Unit]
		if !ok || u.Request == nil {
			continue
		}
		u.Request = nil
		if !c.Result.Found() {
			s.logger.Debug("no path", "unit", u.ID, "goal", u.Goal, "expanded", c.Result.Expanded)
			s.emit(NoPathEvent{At: s.at(), Unit: u.ID, Goal: u.Goal})
			s.setWaypoints(u, nil)
			u.Order = OrderNone
			continue
		}

		wps := pathfinding.Simplify(c.Result.Path.Waypoints)
		if len(wps) > 0 && wps[0] == u.Cell() {
			wps = wps[1:]
		}
		s.emit(PathFoundEvent{At: s.at(), Unit: u.ID, Waypoints: c.Result.Path.Waypoints, Cost: c.Result.Path.Cost})
		if len(wps) == 0 {
			s.setWaypoints(u, nil)
			s.arrive(u)
			continue
		}
		s.setWaypoints(u, wps)
	}
	return nil
}

// moveUnits steps every unit with a route toward its next waypoint.
func (s *Simulation) moveUnits() {
	for _, id := range s.order {
		u := s.units[id]
		if !u.Moving() || u.Attached != nil {
			continue
		}
		s.stepAlong(u)
	}
}

func (s *Simulation) stepAlong(u *Unit) {
	target := cellCenter(s.world.Terrain, u.Waypoints[0])
	delta := fixed.Vec(target.X.Sub(u.Position.X), 0, target.Z.Sub(u.Position.Z))
	dist := delta.Length()
	step := perTick(u.Type.Speed)

	if dist > 0 {
		want := fixed.Atan2(delta.X, delta.Z)
		if u.Type.TurnRate == 0 {
			u.Rotation = want
		} else {
			u.Rotation = fixed.TurnTowards(u.Rotation, want, u.Type.TurnRate)
		}
	}

	if dist <= step {
		u.Position = target
		if len(u.Waypoints) > 1 {
			u.Waypoints = u.Waypoints[1:]
			return
		}
		s.setWaypoints(u, nil)
		s.arrive(u)
		return
	}
	u.Position = u.Position.Add(towards(delta, step))
	u.Position.Y = s.world.Terrain.HeightAt(u.Position.X, u.Position.Z)
}

// arrive completes the current order at the unit's cell.
func (s *Simulation) arrive(u *Unit) {
	cell := u.Cell()
	if u.Order == OrderBuild {
		u.Values.InBuildStance = true
		s.startIfDefined(u, "StartBuilding")
	}
	u.Order = OrderNone
	s.emit(ArrivedEvent{At: s.at(), Unit: u.ID, Cell: cell})
}

// updateProjectiles flies every projectile and resolves impacts.
func (s *Simulation) updateProjectiles() {
	live := s.projectiles[:0]
	var dead []core.UnitID
	for _, p := range s.projectiles {
		target := p.Target
		if _, ok := p.Physics.(Tracking); ok {
			if u, alive := s.units[p.TargetUnit]; alive {
				target = u.Position
			}
		}
		if p.advance(target) {
			dead = append(dead, s.impact(p)...)
			continue
		}
		if p.Age >= projectileLifetime {
			continue
		}
		live = append(live, p)
	}
	clear(s.projectiles[len(live):])
	s.projectiles = live

	for _, id := range dead {
		if u, ok := s.units[id]; ok {
			s.destroy(u, "killed")
		}
	}
}

// impact damages units near the projectile and returns those it killed.
func (s *Simulation) impact(p *Projectile) []core.UnitID {
	var hits, killed []core.UnitID
	for _, id := range s.order {
		u := s.units[id]
		if fixed.DistanceXZ(u.Position, p.Position) > impactRadius {
			continue
		}
		hits = append(hits, id)
		wasAlive := u.HitPoints > 0
		u.HitPoints -= p.Damage
		if wasAlive && u.HitPoints <= 0 {
			killed = append(killed, id)
		}
	}
	s.emit(ImpactEvent{At: s.at(), Projectile: p.ID, Shooter: p.Shooter, Position: p.Position, Hits: hits})
	return killed
}
