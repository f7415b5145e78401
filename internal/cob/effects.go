package cob

import (
	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/fixed"
)

// Effect is a side effect requested by a script. The simulation drains and
// applies effects after each Tick; the VM never mutates the world itself.
type Effect interface {
	isEffect()
}

// PieceCommandKind selects the piece operation.
type PieceCommandKind uint8

const (
	PieceMove PieceCommandKind = iota
	PieceMoveNow
	PieceTurn
	PieceTurnNow
	PieceSpin
	PieceStopSpin
	PieceShow
	PieceHide
	PieceShade
	PieceDontShade
	PieceCache
	PieceDontCache
)

var pieceCommandNames = [...]string{
	PieceMove:      "move",
	PieceMoveNow:   "move-now",
	PieceTurn:      "turn",
	PieceTurnNow:   "turn-now",
	PieceSpin:      "spin",
	PieceStopSpin:  "stop-spin",
	PieceShow:      "show",
	PieceHide:      "hide",
	PieceShade:     "shade",
	PieceDontShade: "dont-shade",
	PieceCache:     "cache",
	PieceDontCache: "dont-cache",
}

func (k PieceCommandKind) String() string {
	if int(k) < len(pieceCommandNames) {
		return pieceCommandNames[k]
	}
	return "unknown"
}

// PieceCommand animates or toggles a piece. Operands are already converted
// to simulation units and world handedness:
//
//   - Move, MoveNow: Position is the target offset, Speed world units/s.
//   - Turn, TurnNow: Angle is the target, Speed angle units/s.
//   - Spin: Speed is the target angular speed, Acceleration its rate.
//   - StopSpin: Acceleration is the deceleration.
type PieceCommand struct {
	Kind         PieceCommandKind
	Piece        string
	Axis         Axis
	Position     fixed.Scalar
	Angle        fixed.Angle
	Speed        fixed.Scalar
	Acceleration fixed.Scalar
}

// SfxEffect asks for a particle effect at a piece.
type SfxEffect struct {
	Piece string
	Type  int32
}

// ExplodeEffect asks for a piece to be thrown off as debris.
type ExplodeEffect struct {
	Piece string
	Flags int32
}

// AttachEffect attaches another unit to a piece of this one.
type AttachEffect struct {
	Unit  core.UnitID
	Piece int32
}

// DropEffect detaches a previously attached unit.
type DropEffect struct {
	Unit core.UnitID
}

// SetValueEffect writes a unit value.
type SetValueEffect struct {
	Value ValueID
	Arg   int32
}

// SoundEffect is a sound cue.
type SoundEffect struct {
	Sound int32
}

func (PieceCommand) isEffect()   {}
func (SfxEffect) isEffect()      {}
func (ExplodeEffect) isEffect()  {}
func (AttachEffect) isEffect()   {}
func (DropEffect) isEffect()     {}
func (SetValueEffect) isEffect() {}
func (SoundEffect) isEffect()    {}
