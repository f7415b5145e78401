package sim

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/vovakirdan/lockstep/internal/cob"
	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/fixed"
	"github.com/vovakirdan/lockstep/internal/grid"
	"github.com/vovakirdan/lockstep/internal/mesh"
	"github.com/vovakirdan/lockstep/internal/pathfinding"
)

// stateVersion is bumped whenever the encoded layout changes.
const stateVersion = 2

type unitRecord struct {
	ID        uint32               `msgpack:"id"`
	Type      string               `msgpack:"type"`
	Owner     uint32               `msgpack:"owner"`
	Position  fixed.Vector         `msgpack:"pos"`
	Rotation  fixed.Angle          `msgpack:"rot"`
	HitPoints int32                `msgpack:"hp"`
	Activated bool                 `msgpack:"active,omitempty"`
	Values    UnitValues           `msgpack:"values"`
	Order     OrderKind            `msgpack:"order"`
	Goal      grid.Point           `msgpack:"goal"`
	Waypoints []grid.Point         `msgpack:"waypoints"`
	Request   *pathfinding.Request `msgpack:"request"`
	PathSeq   uint64               `msgpack:"path_seq,omitempty"`
	Attached  *attachRecord        `msgpack:"attached"`
	Mesh      *mesh.UnitMesh       `msgpack:"mesh"`
	Script    []byte               `msgpack:"script"`
}

type attachRecord struct {
	Carrier uint32 `msgpack:"carrier"`
	Piece   string `msgpack:"piece"`
}

type projectileRecord struct {
	ID         uint32        `msgpack:"id"`
	Shooter    uint32        `msgpack:"shooter"`
	Physics    physicsRecord `msgpack:"physics"`
	Position   fixed.Vector  `msgpack:"pos"`
	Velocity   fixed.Vector  `msgpack:"vel"`
	Speed      fixed.Scalar  `msgpack:"speed"`
	Target     fixed.Vector  `msgpack:"target"`
	TargetUnit uint32        `msgpack:"target_unit,omitempty"`
	Damage     int32         `msgpack:"damage"`
	Age        int           `msgpack:"age"`
	Flight     int           `msgpack:"flight,omitempty"`
}

type state struct {
	Version        int                `msgpack:"v"`
	Tick           core.GameTime      `msgpack:"tick"`
	NextUnit       uint32             `msgpack:"next_unit"`
	NextProjectile uint32             `msgpack:"next_projectile"`
	PathSeq        uint64             `msgpack:"path_seq"`
	Units          []unitRecord       `msgpack:"units"`
	Projectiles    []projectileRecord `msgpack:"projectiles"`
}

// Snapshot encodes the complete simulation state between ticks. The command
// schedule is not included; callers re-schedule commands after the
// snapshot tick when restoring.
func (s *Simulation) Snapshot() ([]byte, error) {
	st := state{
		Version:        stateVersion,
		Tick:           s.now,
		NextUnit:       s.nextUnit,
		NextProjectile: s.nextProjectile,
		PathSeq:        s.pathSeq,
	}
	for _, id := range s.order {
		u := s.units[id]
		script, err := u.Env.Snapshot()
		if err != nil {
			return nil, fmt.Errorf("sim: unit %s: %w", id, err)
		}
		var wps []grid.Point
		if len(u.Waypoints) > 0 {
			wps = u.Waypoints
		}
		var attached *attachRecord
		if u.Attached != nil {
			attached = &attachRecord{Carrier: u.Attached.Carrier.Value(), Piece: u.Attached.Piece}
		}
		st.Units = append(st.Units, unitRecord{
			ID:        id.Value(),
			Type:      u.Type.Name,
			Owner:     u.Owner.Value(),
			Position:  u.Position,
			Rotation:  u.Rotation,
			HitPoints: u.HitPoints,
			Activated: u.Activated,
			Values:    u.Values,
			Order:     u.Order,
			Goal:      u.Goal,
			Waypoints: wps,
			Request:   u.Request,
			PathSeq:   u.pathSeq,
			Attached:  attached,
			Mesh:      u.Mesh,
			Script:    script,
		})
	}
	for _, p := range s.projectiles {
		st.Projectiles = append(st.Projectiles, projectileRecord{
			ID:         p.ID.Value(),
			Shooter:    p.Shooter.Value(),
			Physics:    encodePhysics(p.Physics),
			Position:   p.Position,
			Velocity:   p.Velocity,
			Speed:      p.Speed,
			Target:     p.Target,
			TargetUnit: p.TargetUnit.Value(),
			Damage:     p.Damage,
			Age:        p.Age,
			Flight:     p.Flight,
		})
	}
	data, err := msgpack.Marshal(&st)
	if err != nil {
		return nil, fmt.Errorf("sim: encode snapshot: %w", err)
	}
	return data, nil
}

// computeHash digests the encoded state. Peers compare it every tick.
func (s *Simulation) computeHash() (uint64, error) {
	data, err := s.Snapshot()
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(data), nil
}

// Restore rebuilds a simulation from a snapshot taken against the same
// world. Pending path searches are queued again in their original order.
func Restore(world *World, cfg core.RuntimeConfig, logger *log.Logger, data []byte) (*Simulation, error) {
	var st state
	if err := msgpack.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("sim: decode snapshot: %w", err)
	}
	if st.Version != stateVersion {
		return nil, fmt.Errorf("sim: snapshot version %d, expected %d", st.Version, stateVersion)
	}

	s := New(world, cfg, logger)
	s.now = st.Tick
	s.nextUnit = st.NextUnit
	s.nextProjectile = st.NextProjectile
	s.pathSeq = st.PathSeq

	var searching []*Unit
	for _, r := range st.Units {
		ut, ok := world.Type(r.Type)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownType, r.Type)
		}
		id := core.NewUnitID(r.ID)
		env, err := cob.Restore(ut.Script, r.Script, s.cobConfig())
		if err != nil {
			return nil, fmt.Errorf("sim: unit %s: %w", id, err)
		}
		if r.Mesh == nil {
			return nil, fmt.Errorf("sim: unit %s has no mesh", id)
		}
		if err := r.Mesh.Rebind(ut.Model); err != nil {
			return nil, fmt.Errorf("sim: unit %s: %w", id, err)
		}
		u := &Unit{
			ID:            id,
			Type:          ut,
			Owner:         core.NewPlayerID(r.Owner),
			Position:      r.Position,
			Rotation:      r.Rotation,
			HitPoints:     r.HitPoints,
			Activated:     r.Activated,
			Values:        r.Values,
			Order:         r.Order,
			Goal:          r.Goal,
			Waypoints:     r.Waypoints,
			Request:       r.Request,
			Mesh:          r.Mesh,
			Env:           env,
			pathSeq:       r.PathSeq,
			faultReported: env.Faulted(),
		}
		if r.Attached != nil {
			u.Attached = &Attachment{Carrier: core.NewUnitID(r.Attached.Carrier), Piece: r.Attached.Piece}
		}
		s.insert(u)
		if u.Request != nil {
			searching = append(searching, u)
		}
	}
	sort.Slice(searching, func(i, j int) bool { return searching[i].pathSeq < searching[j].pathSeq })
	for _, u := range searching {
		s.requestPath(u)
	}

	for _, r := range st.Projectiles {
		physics, err := ParsePhysics(r.Physics.Kind, r.Physics.TurnRate)
		if err != nil {
			return nil, err
		}
		s.projectiles = append(s.projectiles, &Projectile{
			ID:         core.NewProjectileID(r.ID),
			Shooter:    core.NewUnitID(r.Shooter),
			Physics:    physics,
			Position:   r.Position,
			Velocity:   r.Velocity,
			Speed:      r.Speed,
			Target:     r.Target,
			TargetUnit: core.NewUnitID(r.TargetUnit),
			Damage:     r.Damage,
			Age:        r.Age,
			Flight:     r.Flight,
		})
	}

	hash, err := s.computeHash()
	if err != nil {
		return nil, err
	}
	s.hash = hash
	return s, nil
}
