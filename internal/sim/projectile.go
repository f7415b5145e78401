package sim

import (
	"fmt"

	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/fixed"
)

// ProjectilePhysics selects how a projectile flies. The set is closed:
// LineOfSight, Ballistic and Tracking.
type ProjectilePhysics interface {
	isPhysics()
}

// LineOfSight projectiles fly straight at constant speed.
type LineOfSight struct{}

// Ballistic projectiles follow an arc under gravity and land on the target
// point.
type Ballistic struct{}

// Tracking projectiles steer toward a target unit, turning at most TurnRate
// per tick.
type Tracking struct {
	TurnRate fixed.Angle
}

func (LineOfSight) isPhysics() {}
func (Ballistic) isPhysics()   {}
func (Tracking) isPhysics()    {}

// PhysicsName is the scenario spelling of a physics type.
func PhysicsName(p ProjectilePhysics) string {
	switch p.(type) {
	case LineOfSight:
		return "line-of-sight"
	case Ballistic:
		return "ballistic"
	case Tracking:
		return "tracking"
	}
	return "unknown"
}

const (
	// gravity is the ballistic acceleration in world units per tick².
	gravity = fixed.One / 32

	// projectileLifetime expires projectiles that never arrive.
	projectileLifetime = 10 * core.TicksPerSecond

	// impactRadius is the horizontal reach of an impact.
	impactRadius = fixed.One
)

// Projectile is a shot in flight.
type Projectile struct {
	ID       core.ProjectileID
	Shooter  core.UnitID
	Physics  ProjectilePhysics
	Position fixed.Vector
	Velocity fixed.Vector
	Speed    fixed.Scalar // per tick
	Target   fixed.Vector
	// TargetUnit is followed by Tracking projectiles while it lives.
	TargetUnit core.UnitID
	Damage     int32
	Age        int
	// Flight is the planned flight time of a Ballistic projectile.
	Flight int
}

// launch plans a projectile from origin to target.
func launch(p *Projectile, origin fixed.Vector) {
	p.Position = origin
	delta := p.Target.Sub(origin)
	flat := fixed.Vec(delta.X, 0, delta.Z)

	switch p.Physics.(type) {
	case LineOfSight:
		p.Velocity = towards(delta, p.Speed)
	case Ballistic:
		dist := flat.Length()
		n := 1
		if p.Speed > 0 {
			n = max(1, int((dist.Raw()+p.Speed.Raw()-1)/p.Speed.Raw()))
		}
		p.Flight = n
		vx, _ := delta.X.DivInt(n)
		vz, _ := delta.Z.DivInt(n)
		vy, _ := delta.Y.DivInt(n)
		// Launch upward enough that gravity brings the shot down after n
		// ticks: y(n) = vy*n - g*n*(n-1)/2.
		lift, _ := gravity.MulInt(n - 1).DivInt(2)
		p.Velocity = fixed.Vec(vx, vy.Add(lift), vz)
	case Tracking:
		p.Velocity = towards(flat, p.Speed)
	}
}

// towards scales v to length speed. A zero vector stays zero.
func towards(v fixed.Vector, speed fixed.Scalar) fixed.Vector {
	n, err := v.Normalize()
	if err != nil {
		return fixed.Vector{}
	}
	return n.Scale(speed)
}

// advance moves the projectile by one tick and reports whether it reached
// its target.
func (p *Projectile) advance(target fixed.Vector) bool {
	p.Age++
	switch ph := p.Physics.(type) {
	case LineOfSight:
		if p.Position.Sub(p.Target).Length() <= p.Speed {
			p.Position = p.Target
			return true
		}
		p.Position = p.Position.Add(p.Velocity)
	case Ballistic:
		p.Position = p.Position.Add(p.Velocity)
		p.Velocity.Y = p.Velocity.Y.Sub(gravity)
		if p.Age >= p.Flight {
			p.Position = p.Target
			return true
		}
	case Tracking:
		p.Target = target
		delta := target.Sub(p.Position)
		if delta.Length() <= p.Speed {
			p.Position = target
			return true
		}
		heading := fixed.Atan2(p.Velocity.X, p.Velocity.Z)
		want := fixed.Atan2(delta.X, delta.Z)
		heading = fixed.TurnTowards(heading, want, ph.TurnRate)
		p.Velocity = fixed.Vec(fixed.Sin(heading).Mul(p.Speed), 0, fixed.Cos(heading).Mul(p.Speed))
		climb := fixed.Clamp(delta.Y, p.Speed.Neg(), p.Speed)
		p.Position = p.Position.Add(p.Velocity).Add(fixed.Vec(0, climb, 0))
	}
	return false
}

// physicsRecord is the encodable form of a ProjectilePhysics.
type physicsRecord struct {
	Kind     string      `msgpack:"kind"`
	TurnRate fixed.Angle `msgpack:"turn_rate,omitempty"`
}

func encodePhysics(p ProjectilePhysics) physicsRecord {
	r := physicsRecord{Kind: PhysicsName(p)}
	if t, ok := p.(Tracking); ok {
		r.TurnRate = t.TurnRate
	}
	return r
}

// ParsePhysics builds a physics type from its scenario spelling.
func ParsePhysics(kind string, turnRate fixed.Angle) (ProjectilePhysics, error) {
	switch kind {
	case "line-of-sight", "":
		return LineOfSight{}, nil
	case "ballistic":
		return Ballistic{}, nil
	case "tracking":
		return Tracking{TurnRate: turnRate}, nil
	}
	return nil, fmt.Errorf("sim: unknown projectile physics %q", kind)
}
