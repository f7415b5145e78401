// Package lockstep runs several replicas of one simulation on the same
// command stream and checks that they stay bit-identical. Spectator
// sessions subscribe to per-tick hashes and desync reports.
package lockstep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/sim"
)

// Factory builds replica i. Every call must produce an identical simulation.
type Factory func(replica int) (*sim.Simulation, error)

// Recorder persists checksums and VM snapshots of a run.
// This lets the verifier save history without depending on the storage
// package.
type Recorder interface {
	RecordChecksum(tick core.GameTime, hash uint64) error
	RecordSnapshot(tick core.GameTime, unit core.UnitID, blob []byte) error
}

// Config holds verifier settings.
type Config struct {
	Replicas         int  // Number of simulations, at least 2
	Ticks            int  // Ticks to run
	StopOnDesync     bool // End the run at the first mismatch
	ChecksumInterval int  // Record every Nth tick; 0 records none
	TickRate         int  // Pace ticks for spectators (Hz); 0 runs flat out
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Replicas:         2,
		Ticks:            300,
		ChecksumInterval: core.TicksPerSecond,
	}
}

// Desync is one replica disagreeing with replica 0.
type Desync struct {
	Tick     core.GameTime
	Replica  int
	Expected uint64
	Got      uint64
}

func (d Desync) String() string {
	return fmt.Sprintf("%s replica %d: %016x != %016x", d.Tick, d.Replica, d.Got, d.Expected)
}

// Report is the outcome of a verification run.
type Report struct {
	Replicas  int
	Ticks     core.GameTime
	FinalHash uint64
	Hashes    []uint64 // replica 0, one per tick
	Desyncs   []Desync
}

// InSync reports whether no desync was seen.
func (r Report) InSync() bool {
	return len(r.Desyncs) == 0
}

// Verifier steps replicas in parallel and compares their hashes.
type Verifier struct {
	cfg      Config
	replicas []*sim.Simulation
	sessions *SessionRegistry
	recorder Recorder // Optional, can be nil
	logger   *log.Logger
}

// New builds cfg.Replicas simulations with factory.
func New(cfg Config, factory Factory, sessions *SessionRegistry, logger *log.Logger) (*Verifier, error) {
	if cfg.Replicas < 2 {
		return nil, fmt.Errorf("lockstep: need at least 2 replicas, got %d", cfg.Replicas)
	}
	if sessions == nil {
		sessions = NewSessionRegistry()
	}
	if logger == nil {
		logger = log.Default()
	}
	v := &Verifier{
		cfg:      cfg,
		sessions: sessions,
		logger:   logger.WithPrefix("lockstep"),
	}
	for i := range cfg.Replicas {
		s, err := factory(i)
		if err != nil {
			return nil, fmt.Errorf("lockstep: replica %d: %w", i, err)
		}
		if i > 0 && s.Hash() != v.replicas[0].Hash() {
			return nil, fmt.Errorf("lockstep: replica %d starts from a different state", i)
		}
		v.replicas = append(v.replicas, s)
	}
	return v, nil
}

// SetRecorder sets the optional history recorder. Replica 0 is recorded.
func (v *Verifier) SetRecorder(r Recorder) {
	v.recorder = r
}

// Replica returns simulation i.
func (v *Verifier) Replica(i int) *sim.Simulation {
	return v.replicas[i]
}

// Sessions returns the spectator registry.
func (v *Verifier) Sessions() *SessionRegistry {
	return v.sessions
}

// Schedule queues commands on every replica.
func (v *Verifier) Schedule(cmds ...sim.Scheduled) error {
	for i, s := range v.replicas {
		if err := s.Schedule(cmds...); err != nil {
			return fmt.Errorf("lockstep: replica %d: %w", i, err)
		}
	}
	return nil
}

// Perturb queues a command on one replica only. It exists to check that
// divergence is caught.
func (v *Verifier) Perturb(replica int, cmd sim.Scheduled) error {
	if replica < 0 || replica >= len(v.replicas) {
		return fmt.Errorf("lockstep: no replica %d", replica)
	}
	return v.replicas[replica].Schedule(cmd)
}

// Run steps all replicas for cfg.Ticks ticks. Spectators receive a
// TickEvent per tick, a DesyncEvent per mismatch and one FinishedEvent.
func (v *Verifier) Run(ctx context.Context) (report Report, err error) {
	report.Replicas = len(v.replicas)
	reason := EndCompleted
	defer func() {
		report.Ticks = v.replicas[0].Now()
		report.FinalHash = v.replicas[0].Hash()
		v.sessions.Broadcast(FinishedEvent{Report: report, Reason: reason})
		v.logger.Info("verification finished",
			"reason", reason, "ticks", report.Ticks, "desyncs", len(report.Desyncs))
	}()

	var pace <-chan time.Time
	if v.cfg.TickRate > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(v.cfg.TickRate))
		defer ticker.Stop()
		pace = ticker.C
	}

	for range v.cfg.Ticks {
		if pace != nil {
			select {
			case <-pace:
			case <-ctx.Done():
				reason = EndCancelled
				return report, ctx.Err()
			}
		}

		var hashes []uint64
		hashes, err = v.step(ctx)
		if err != nil {
			reason = EndFailed
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				reason = EndCancelled
			}
			return report, err
		}
		tick := v.replicas[0].Now()
		report.Hashes = append(report.Hashes, hashes[0])
		v.sessions.Broadcast(TickEvent{Tick: tick, Hashes: hashes})

		desynced := false
		for i, h := range hashes[1:] {
			if h == hashes[0] {
				continue
			}
			d := Desync{Tick: tick, Replica: i + 1, Expected: hashes[0], Got: h}
			report.Desyncs = append(report.Desyncs, d)
			v.logger.Warn("desync", "tick", tick, "replica", d.Replica,
				"expected", fmt.Sprintf("%016x", d.Expected), "got", fmt.Sprintf("%016x", d.Got))
			v.sessions.Broadcast(DesyncEvent{Desync: d})
			desynced = true
		}

		if v.recorder != nil && v.cfg.ChecksumInterval > 0 && int(tick)%v.cfg.ChecksumInterval == 0 {
			// Best effort; a failing history store never stops verification.
			if err := Checkpoint(v.recorder, v.replicas[0]); err != nil {
				v.logger.Warn("checkpoint failed", "tick", tick, "err", err)
			}
		}

		if desynced && v.cfg.StopOnDesync {
			reason = EndDesync
			return report, nil
		}
	}
	return report, nil
}

// step advances every replica by one tick, one goroutine each, and returns
// their hashes in replica order.
func (v *Verifier) step(ctx context.Context) ([]uint64, error) {
	hashes := make([]uint64, len(v.replicas))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range v.replicas {
		g.Go(func() error {
			if err := s.Step(gctx); err != nil {
				return fmt.Errorf("replica %d: %w", i, err)
			}
			hashes[i] = s.Hash()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hashes, nil
}

// Checkpoint records the current hash of s and the VM snapshot of every
// unit.
func Checkpoint(r Recorder, s *sim.Simulation) error {
	tick := s.Now()
	if err := r.RecordChecksum(tick, s.Hash()); err != nil {
		return err
	}
	for _, u := range s.Units() {
		blob, err := u.Env.Snapshot()
		if err != nil {
			return fmt.Errorf("unit %s: %w", u.ID, err)
		}
		if err := r.RecordSnapshot(tick, u.ID, blob); err != nil {
			return err
		}
	}
	return nil
}
