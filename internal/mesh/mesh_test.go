package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/lockstep/internal/cob"
	"github.com/vovakirdan/lockstep/internal/fixed"
)

func tankModel(t *testing.T) *Model {
	t.Helper()
	m, err := NewModel("tank", fixed.FromInt(2), []PieceDefinition{
		{Name: "base"},
		{Name: "turret", Parent: "base", Origin: fixed.Vec(0, fixed.One, 0)},
		{Name: "barrel", Parent: "turret", Origin: fixed.Vec(0, 0, fixed.FromInt(2))},
	})
	require.NoError(t, err)
	return m
}

func TestNewModelValidation(t *testing.T) {
	_, err := NewModel("m", 0, []PieceDefinition{{Name: "a"}, {Name: "a"}})
	assert.Error(t, err)

	_, err = NewModel("m", 0, []PieceDefinition{{Name: "child", Parent: "root"}, {Name: "root"}})
	assert.Error(t, err)

	_, err = NewModel("m", 0, []PieceDefinition{{}})
	assert.Error(t, err)

	m, err := NewModel("m", 0, []PieceDefinition{{Name: "root"}, {Name: "child", Parent: "root"}})
	require.NoError(t, err)
	assert.NoError(t, m.Has("root", "child"))
	assert.ErrorIs(t, m.Has("arm"), ErrUnknownPiece)
}

func TestMoveReachesTargetAndClears(t *testing.T) {
	mesh := New(tankModel(t))
	require.NoError(t, mesh.Apply(cob.PieceCommand{
		Kind: cob.PieceMove, Piece: "turret", Axis: cob.AxisY,
		Position: fixed.FromInt(3), Speed: fixed.FromInt(30),
	}))
	assert.True(t, mesh.Moving("turret", cob.AxisY))
	assert.False(t, mesh.Moving("turret", cob.AxisX))

	mesh.Update()
	assert.Equal(t, fixed.One, mesh.Pieces[1].Offset.Y)
	mesh.Update()
	mesh.Update()
	assert.Equal(t, fixed.FromInt(3), mesh.Pieces[1].Offset.Y)
	assert.False(t, mesh.Moving("turret", cob.AxisY))
	assert.False(t, mesh.Busy())
}

func TestMoveNowCancelsMove(t *testing.T) {
	mesh := New(tankModel(t))
	require.NoError(t, mesh.Apply(cob.PieceCommand{Kind: cob.PieceMove, Piece: "base", Axis: cob.AxisX, Position: fixed.FromInt(-5), Speed: fixed.One}))
	require.NoError(t, mesh.Apply(cob.PieceCommand{Kind: cob.PieceMoveNow, Piece: "base", Axis: cob.AxisX, Position: fixed.FromInt(-2)}))
	assert.False(t, mesh.Moving("base", cob.AxisX))
	assert.Equal(t, fixed.FromInt(-2), mesh.Pieces[0].Offset.X)
}

func TestTurnSteps(t *testing.T) {
	mesh := New(tankModel(t))
	require.NoError(t, mesh.Apply(cob.PieceCommand{
		Kind: cob.PieceTurn, Piece: "turret", Axis: cob.AxisY,
		Angle: 2500, Speed: fixed.FromRaw(30 * 1000),
	}))
	var seen []fixed.Angle
	for mesh.Turning("turret", cob.AxisY) {
		mesh.Update()
		seen = append(seen, mesh.Pieces[1].Rotation[cob.AxisY])
	}
	assert.Equal(t, []fixed.Angle{1000, 2000, 2500}, seen)
}

func TestTurnTakesShortWay(t *testing.T) {
	mesh := New(tankModel(t))
	require.NoError(t, mesh.Apply(cob.PieceCommand{
		Kind: cob.PieceTurn, Piece: "base", Axis: cob.AxisZ,
		Angle: 65000, Speed: fixed.FromRaw(30 * 100),
	}))
	mesh.Update()
	assert.Equal(t, fixed.Angle(65436), mesh.Pieces[0].Rotation[cob.AxisZ])
}

func TestSpinAcceleratesAndStops(t *testing.T) {
	mesh := New(tankModel(t))
	require.NoError(t, mesh.Apply(cob.PieceCommand{
		Kind: cob.PieceSpin, Piece: "barrel", Axis: cob.AxisZ,
		Speed: fixed.FromRaw(3000), Acceleration: fixed.FromRaw(1000),
	}))
	mesh.Update()
	mesh.Update()
	mesh.Update()
	assert.Equal(t, fixed.Angle(33+66+100), mesh.Pieces[2].Rotation[cob.AxisZ])
	for range 50 {
		mesh.Update()
	}
	assert.True(t, mesh.Turning("barrel", cob.AxisZ), "spins never finish")

	require.NoError(t, mesh.Apply(cob.PieceCommand{
		Kind: cob.PieceStopSpin, Piece: "barrel", Axis: cob.AxisZ, Acceleration: fixed.FromRaw(1500),
	}))
	mesh.Update()
	assert.True(t, mesh.Turning("barrel", cob.AxisZ))
	mesh.Update()
	assert.False(t, mesh.Turning("barrel", cob.AxisZ))
}

func TestSpinWithoutAccelerationIsInstant(t *testing.T) {
	mesh := New(tankModel(t))
	require.NoError(t, mesh.Apply(cob.PieceCommand{Kind: cob.PieceSpin, Piece: "base", Axis: cob.AxisY, Speed: fixed.FromRaw(3000)}))
	mesh.Update()
	assert.Equal(t, fixed.Angle(100), mesh.Pieces[0].Rotation[cob.AxisY])

	// stop-spin on a piece that is only turning is ignored
	require.NoError(t, mesh.Apply(cob.PieceCommand{Kind: cob.PieceTurn, Piece: "turret", Axis: cob.AxisY, Angle: 9000, Speed: fixed.One}))
	require.NoError(t, mesh.Apply(cob.PieceCommand{Kind: cob.PieceStopSpin, Piece: "turret", Axis: cob.AxisY}))
	assert.Equal(t, RotateTurn, mesh.Pieces[1].Rotate[cob.AxisY].Kind)
}

func TestFrozenMeshDoesNotAnimate(t *testing.T) {
	mesh := New(tankModel(t))
	require.NoError(t, mesh.Apply(cob.PieceCommand{Kind: cob.PieceMove, Piece: "base", Axis: cob.AxisX, Position: fixed.One, Speed: fixed.FromInt(300)}))
	mesh.Frozen = true
	mesh.Update()
	assert.Zero(t, mesh.Pieces[0].Offset.X)
	assert.True(t, mesh.Moving("base", cob.AxisX))
}

func TestVisibilityToggles(t *testing.T) {
	mesh := New(tankModel(t))
	require.NoError(t, mesh.Apply(cob.PieceCommand{Kind: cob.PieceHide, Piece: "barrel"}))
	require.NoError(t, mesh.Apply(cob.PieceCommand{Kind: cob.PieceShade, Piece: "barrel"}))
	assert.True(t, mesh.Pieces[2].Hidden)
	assert.True(t, mesh.Pieces[2].Shaded)
	require.NoError(t, mesh.Apply(cob.PieceCommand{Kind: cob.PieceShow, Piece: "barrel"}))
	assert.False(t, mesh.Pieces[2].Hidden)

	err := mesh.Apply(cob.PieceCommand{Kind: cob.PieceShow, Piece: "wheel"})
	assert.ErrorIs(t, err, ErrUnknownPiece)
	assert.False(t, mesh.Moving("wheel", cob.AxisX))
}

func TestPiecePositionFollowsParents(t *testing.T) {
	mesh := New(tankModel(t))
	require.NoError(t, mesh.Apply(cob.PieceCommand{Kind: cob.PieceTurnNow, Piece: "turret", Axis: cob.AxisY, Angle: fixed.QuarterTurn}))

	pos, err := mesh.PiecePosition("barrel", fixed.Vec(fixed.FromInt(10), 0, fixed.FromInt(10)), 0)
	require.NoError(t, err)
	assert.Equal(t, fixed.Vec(fixed.FromInt(12), fixed.One, fixed.FromInt(10)), pos)

	// a unit facing a quarter turn carries its pieces around
	pos, err = mesh.PiecePosition("turret", fixed.Vector{}, fixed.QuarterTurn)
	require.NoError(t, err)
	assert.Equal(t, fixed.Vec(0, fixed.One, 0), pos)

	_, err = mesh.PieceTransform("wheel")
	assert.ErrorIs(t, err, ErrUnknownPiece)
}

func TestRebindChecksPieceCount(t *testing.T) {
	mesh := New(tankModel(t))
	other, err := NewModel("crate", 0, []PieceDefinition{{Name: "box"}})
	require.NoError(t, err)
	assert.Error(t, mesh.Rebind(other))
	assert.NoError(t, mesh.Rebind(tankModel(t)))
}

func TestTransformFloat32sIsColumnMajor(t *testing.T) {
	m := UnitTransform(fixed.Vec(fixed.FromInt(1), fixed.FromInt(2), fixed.FromInt(3)), fixed.QuarterTurn)
	f := m.Float32s()
	// rotation about y by a quarter turn maps +x to -z
	assert.Equal(t, [4]float32{0, 0, -1, 0}, [4]float32(f[0:4]))
	assert.Equal(t, [4]float32{1, 2, 3, 1}, [4]float32(f[12:16]))
}
