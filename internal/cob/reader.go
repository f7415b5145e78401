package cob

import (
	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/fixed"
)

// UnitInfo is the script-visible state of a unit.
type UnitInfo struct {
	Position         fixed.Vector
	Rotation         fixed.Angle
	Height           fixed.Scalar
	Owner            core.PlayerID
	HitPoints        int32
	MaxHitPoints     int32
	BuildPercentLeft int32
	VeteranLevel     int32

	Activated     bool
	InBuildStance bool
	Busy          bool
	YardOpen      bool
	BuggerOff     bool
	Armored       bool

	StandingMoveOrders int32
	StandingFireOrders int32
}

// HealthPercent is hit points as a percentage of the maximum.
func (u UnitInfo) HealthPercent() int32 {
	if u.MaxHitPoints <= 0 {
		return 0
	}
	return int32(int64(u.HitPoints) * 100 / int64(u.MaxHitPoints))
}

// UnitReader is the read-only view of the world a script may query.
// Implementations must not change between the start and the end of a tick.
type UnitReader interface {
	Unit(id core.UnitID) (UnitInfo, bool)
	UnitIDRange() (lo, hi core.UnitID)
	PiecePosition(unit core.UnitID, piece string) (fixed.Vector, bool)
	PieceMoving(unit core.UnitID, piece string, axis Axis) bool
	PieceTurning(unit core.UnitID, piece string, axis Axis) bool
	GroundHeight(x, z fixed.Scalar) fixed.Scalar
}
