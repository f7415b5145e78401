package lockstep

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/lockstep/internal/cob"
	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/fixed"
	"github.com/vovakirdan/lockstep/internal/grid"
	"github.com/vovakirdan/lockstep/internal/mesh"
	"github.com/vovakirdan/lockstep/internal/movement"
	"github.com/vovakirdan/lockstep/internal/sim"
)

const roverScript = `
piece base dish
func Create
	push 0
	push 0x2000
	spin dish y
	return
`

func roverWorld(t *testing.T) *sim.World {
	t.Helper()
	terrain := movement.NewTerrain(10, 10, 4, 0)
	terrain.BlockFeature(core.NewRect(5, 0, 1, 7))
	classes := movement.NewDatabase()
	class, err := classes.Register(movement.NewClassDefinition("rover", 1, 1))
	require.NoError(t, err)
	model, err := mesh.NewModel("rover", fixed.One, []mesh.PieceDefinition{
		{Name: "base"},
		{Name: "dish", Parent: "base", Origin: fixed.Vec(0, fixed.Half, 0)},
	})
	require.NoError(t, err)
	world, err := sim.NewWorld(terrain, classes, []*sim.UnitType{{
		Name: "rover", Class: class, HasClass: true, Model: model,
		Script: cob.MustAssemble("rover", roverScript),
		Speed:  fixed.FromInt(5), TurnRate: 2048, HitPoints: 10,
	}})
	require.NoError(t, err)
	return world
}

func factory(t *testing.T, world *sim.World) Factory {
	return func(int) (*sim.Simulation, error) {
		s := sim.New(world, core.RuntimeConfig{Seed: 9, PathWorkers: 2}, log.New(io.Discard))
		for _, cell := range []grid.Point{{X: 0, Y: 0}, {X: 9, Y: 0}, {X: 0, Y: 9}} {
			if _, err := s.Spawn("rover", core.NewPlayerID(1), cell, 0); err != nil {
				return nil, err
			}
		}
		return s, nil
	}
}

func orders() []sim.Scheduled {
	return []sim.Scheduled{
		{Tick: 1, Command: sim.MoveOrder{Unit: core.NewUnitID(1), Goal: grid.P(9, 9)}},
		{Tick: 1, Command: sim.MoveOrder{Unit: core.NewUnitID(2), Goal: grid.P(0, 0)}},
		{Tick: 20, Command: sim.MoveOrder{Unit: core.NewUnitID(3), Goal: grid.P(8, 2)}},
	}
}

type memRecorder struct {
	checksums map[core.GameTime]uint64
	snapshots int
}

func (m *memRecorder) RecordChecksum(tick core.GameTime, hash uint64) error {
	m.checksums[tick] = hash
	return nil
}

func (m *memRecorder) RecordSnapshot(core.GameTime, core.UnitID, []byte) error {
	m.snapshots++
	return nil
}

func TestReplicasStayInSync(t *testing.T) {
	world := roverWorld(t)
	cfg := Config{Replicas: 4, Ticks: 120, ChecksumInterval: 30}
	v, err := New(cfg, factory(t, world), nil, log.New(io.Discard))
	require.NoError(t, err)
	require.NoError(t, v.Schedule(orders()...))
	rec := &memRecorder{checksums: map[core.GameTime]uint64{}}
	v.SetRecorder(rec)

	report, err := v.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.InSync())
	assert.Equal(t, core.GameTime(120), report.Ticks)
	assert.Len(t, report.Hashes, 120)
	assert.Equal(t, report.Hashes[119], report.FinalHash)

	assert.Len(t, rec.checksums, 4)
	assert.Equal(t, report.Hashes[29], rec.checksums[30])
	assert.Equal(t, 4*3, rec.snapshots)
}

func TestPerturbedReplicaIsReported(t *testing.T) {
	world := roverWorld(t)
	sessions := NewSessionRegistry()
	spectator := NewChannelSession("watcher", 1024)
	sessions.Register(spectator)

	v, err := New(Config{Replicas: 3, Ticks: 60, StopOnDesync: true}, factory(t, world), sessions, log.New(io.Discard))
	require.NoError(t, err)
	require.NoError(t, v.Schedule(orders()...))
	require.NoError(t, v.Perturb(2, sim.Scheduled{Tick: 15, Command: sim.StopOrder{Unit: core.NewUnitID(1)}}))
	assert.Error(t, v.Perturb(7, sim.Scheduled{Tick: 15, Command: sim.StopOrder{Unit: core.NewUnitID(1)}}))

	report, err := v.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Desyncs, 1)
	d := report.Desyncs[0]
	assert.Equal(t, core.GameTime(15), d.Tick)
	assert.Equal(t, 2, d.Replica)
	assert.NotEqual(t, d.Expected, d.Got)
	assert.Equal(t, core.GameTime(15), report.Ticks, "stops at the first desync")

	var ticks, desyncs int
	var finished *FinishedEvent
	for len(spectator.Events()) > 0 {
		switch e := (<-spectator.Events()).(type) {
		case TickEvent:
			ticks++
			assert.Len(t, e.Hashes, 3)
		case DesyncEvent:
			desyncs++
		case FinishedEvent:
			finished = &e
		}
	}
	assert.Equal(t, 15, ticks)
	assert.Equal(t, 1, desyncs)
	require.NotNil(t, finished)
	assert.Equal(t, EndDesync, finished.Reason)
	assert.Equal(t, report.FinalHash, finished.Report.FinalHash)
}

func TestCancelledRunStops(t *testing.T) {
	v, err := New(Config{Replicas: 2, Ticks: 1000, TickRate: 1000}, factory(t, roverWorld(t)), nil, log.New(io.Discard))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	report, err := v.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, int(report.Ticks), 1000)
}

func TestNewRejectsSingleReplica(t *testing.T) {
	_, err := New(Config{Replicas: 1}, factory(t, roverWorld(t)), nil, nil)
	assert.Error(t, err)
}

func TestSessionRegistryDropsClosedSessions(t *testing.T) {
	r := NewSessionRegistry()
	s := NewChannelSession("a", 1)
	r.Register(s)
	assert.Equal(t, 1, r.Count())

	// A full buffer keeps only the newest event.
	s.Send(TickEvent{Tick: 1})
	s.Send(TickEvent{Tick: 2})
	assert.Equal(t, core.GameTime(2), (<-s.Events()).(TickEvent).Tick)

	s.Close()
	s.Close()
	assert.Eventually(t, func() bool { return r.Count() == 0 }, time.Second, time.Millisecond)
	s.Send(TickEvent{Tick: 3})
	assert.Empty(t, s.Events())
}
