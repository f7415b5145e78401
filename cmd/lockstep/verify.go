package main

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/lockstep"
	"github.com/vovakirdan/lockstep/internal/sim"
	"github.com/vovakirdan/lockstep/internal/storage"
)

var (
	flagVerifyTicks  int
	flagReplicas     int
	flagStopOnDesync bool
	flagPerturbAt    uint32
	flagRecord       bool
	flagProgress     bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify <scenario>",
	Short: "Run replicas of a scenario and compare their hashes",
	Long: `Build several replicas of a scenario, step them in parallel on the same
command stream and compare their state hashes after every tick.

The command fails when any replica diverges. --perturb-at destroys unit 1
on the last replica at the given tick, which must be reported as a desync.

Examples:
  lockstep verify skirmish
  lockstep verify bridge --replicas 8 --ticks 2000
  lockstep verify skirmish --perturb-at 100 --stop-on-desync
  lockstep verify skirmish --record --progress`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().IntVar(&flagVerifyTicks, "ticks", 0, "Ticks to run (default from scenario)")
	verifyCmd.Flags().IntVar(&flagReplicas, "replicas", 0, "Number of replicas (default from config)")
	verifyCmd.Flags().BoolVar(&flagStopOnDesync, "stop-on-desync", false, "Stop at the first desync")
	verifyCmd.Flags().Uint32Var(&flagPerturbAt, "perturb-at", 0, "Perturb the last replica at this tick")
	verifyCmd.Flags().BoolVar(&flagRecord, "record", false, "Save replica 0 to history")
	verifyCmd.Flags().BoolVar(&flagProgress, "progress", false, "Print the hashes once per simulated second")
}

func runVerify(cmd *cobra.Command, args []string) error {
	sc, err := app.catalog.Resolve(args[0])
	if err != nil {
		return err
	}
	world, err := sc.BuildWorld()
	if err != nil {
		return err
	}

	cfg := app.cfg.VerifyConfig(scenarioTicks(flagVerifyTicks, sc))
	if flagReplicas > 0 {
		cfg.Replicas = flagReplicas
	}
	if flagStopOnDesync {
		cfg.StopOnDesync = true
	}
	cfg.TickRate = 0

	rc := app.runtimeConfig()
	logger := app.Logger.With("scenario", sc.ID)
	factory := func(i int) (*sim.Simulation, error) {
		return sc.NewSimulation(world, rc, logger.With("replica", i))
	}

	sessions := lockstep.NewSessionRegistry()
	v, err := lockstep.New(cfg, factory, sessions, app.Logger)
	if err != nil {
		return err
	}
	if flagPerturbAt > 0 {
		last := cfg.Replicas - 1
		perturb := sim.Scheduled{Tick: core.GameTime(flagPerturbAt), Command: sim.DestroyUnit{Unit: core.NewUnitID(1)}}
		if err := v.Perturb(last, perturb); err != nil {
			return err
		}
	}

	var rec *storage.RunWriter
	if flagRecord {
		store, err := app.Store()
		if err != nil {
			return err
		}
		if rec, err = store.BeginRun(sc.ID, rc.Seed); err != nil {
			return err
		}
		v.SetRecorder(rec)
	}

	var wg sync.WaitGroup
	if flagProgress {
		console := lockstep.NewChannelSession("console", 64)
		sessions.Register(console)
		wg.Add(1)
		go func() {
			defer wg.Done()
			printProgress(console)
		}()
		defer func() {
			console.Close()
			wg.Wait()
		}()
	}

	fmt.Printf("Verifying %s: %d replicas, %d ticks\n", sc.Name, cfg.Replicas, cfg.Ticks)
	report, err := v.Run(cmd.Context())
	if err != nil {
		return err
	}

	if rec != nil {
		if err := rec.Finish(int(report.Ticks), report.FinalHash); err != nil {
			return err
		}
		fmt.Printf("Recorded as run #%d\n", rec.ID())
	}

	if report.InSync() {
		fmt.Printf("In sync after %d ticks, final hash %016x\n", report.Ticks, report.FinalHash)
		return nil
	}
	fmt.Printf("%d desyncs in %d ticks:\n", len(report.Desyncs), report.Ticks)
	for _, d := range report.Desyncs {
		fmt.Printf("  %s\n", d)
	}
	return fmt.Errorf("%s: replicas diverged at %s", sc.ID, report.Desyncs[0].Tick)
}

// printProgress prints verifier events until the run finishes or the
// session is closed.
func printProgress(s *lockstep.ChannelSession) {
	for {
		select {
		case <-s.Done():
			return
		case evt := <-s.Events():
			switch evt := evt.(type) {
			case lockstep.TickEvent:
				if evt.Tick%core.TicksPerSecond == 0 {
					fmt.Printf("  %s  %016x  (%d replicas)\n", evt.Tick, evt.Hashes[0], len(evt.Hashes))
				}
			case lockstep.DesyncEvent:
				fmt.Printf("  desync: %s\n", evt.Desync)
			case lockstep.FinishedEvent:
				return
			}
		}
	}
}
