package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/lockstep"
	"github.com/vovakirdan/lockstep/internal/sim"
	"github.com/vovakirdan/lockstep/internal/storage"
)

var (
	flagRunTicks int
	flagNoRecord bool
)

var runCmd = &cobra.Command{
	Use:   "run <scenario>",
	Short: "Run a scenario headless",
	Long: `Run a scenario without a display and print its final state hash.

The run is recorded in the history database: a checksum every
checksum_interval ticks plus the script state of every unit at the same
ticks. Two recorded runs can be compared with 'lockstep history diff'.

<scenario> is a catalog id or a path to a scenario file.

Examples:
  lockstep run skirmish
  lockstep run bridge --ticks 1200 --seed 7
  lockstep run ./my_scenario.yaml --no-record`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVar(&flagRunTicks, "ticks", 0, "Ticks to run (default from scenario)")
	runCmd.Flags().BoolVar(&flagNoRecord, "no-record", false, "Do not save the run to history")
}

func runRun(cmd *cobra.Command, args []string) error {
	sc, err := app.catalog.Resolve(args[0])
	if err != nil {
		return err
	}
	world, err := sc.BuildWorld()
	if err != nil {
		return err
	}
	rc := app.runtimeConfig()
	logger := app.Logger.With("scenario", sc.ID)
	s, err := sc.NewSimulation(world, rc, logger)
	if err != nil {
		return err
	}
	sub := s.Subscribe(func(e sim.Event) {
		logger.Debug(sim.FormatEvent(e))
	})
	defer sub.Release()

	var rec *storage.RunWriter
	if !flagNoRecord {
		store, err := app.Store()
		if err != nil {
			return err
		}
		if rec, err = store.BeginRun(sc.ID, rc.Seed); err != nil {
			return err
		}
	}

	ticks := scenarioTicks(flagRunTicks, sc)
	interval := core.GameTime(app.cfg.Verify.ChecksumInterval)
	for range ticks {
		if err := s.Step(cmd.Context()); err != nil {
			return fmt.Errorf("tick %s: %w", s.Now(), err)
		}
		if rec != nil && interval > 0 && s.Now()%interval == 0 {
			if err := lockstep.Checkpoint(rec, s); err != nil {
				return err
			}
		}
	}

	fmt.Printf("%s: %d ticks, %d units, final hash %016x\n", sc.Name, ticks, len(s.Units()), s.Hash())
	if rec == nil {
		return nil
	}
	if err := rec.Finish(ticks, s.Hash()); err != nil {
		return err
	}
	fmt.Printf("Recorded as run #%d\n", rec.ID())
	return nil
}
