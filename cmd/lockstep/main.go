// lockstep runs deterministic unit simulations and checks that independent
// replicas of a run stay bit-identical.
//
// Usage:
//
//	lockstep scenarios              - List available scenarios
//	lockstep run <scenario>         - Run a scenario headless and record it
//	lockstep verify <scenario>      - Run replicas side by side and compare hashes
//	lockstep path <scenario>        - Find a path for a movement class
//	lockstep classes <scenario>     - Show movement classes and their reach
//	lockstep inspect <scenario>     - Step a scenario in the terminal inspector
//	lockstep history                - Show recorded runs
//	lockstep serve                  - Start the SSH spectator server
//
// Global flags:
//
//	--config <path>     - Config file (default: ~/.lockstep/configs/sim.yaml)
//	--db <path>         - History database (default: ~/.lockstep/history.db)
//	--scenarios <dir>   - Extra directory of scenario files
//	--seed <value>      - Override the script RNG seed
//	--verbose           - Log simulation events
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/lockstep/internal/config"
	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/registry"
	"github.com/vovakirdan/lockstep/internal/storage"
)

var (
	// Global flags
	flagConfig    string
	flagDBPath    string
	flagScenarios string
	flagSeed      uint32
	flagVerbose   bool
)

// app is set up before any subcommand runs and closed by main.
var app *env

// env is the state shared by all subcommands.
type env struct {
	*core.Resources
	cfg     config.SimConfig
	catalog *registry.Catalog
	store   *storage.Store
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if app != nil {
		if closeErr := app.Close(); err == nil {
			err = closeErr
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lockstep",
	Short: "Deterministic unit simulation with lockstep verification",
	Long: `lockstep runs scenarios of units moving over a heightmap, driven by
compiled unit scripts, and checks that every replica of a run computes the
same state hash on every tick.

Available commands:
  scenarios  - List available scenarios
  run        - Run a scenario headless and record its checksums
  verify     - Run replicas side by side and report desyncs
  path       - Find a path for a movement class
  classes    - Show movement classes and where they can stand
  inspect    - Step a scenario in the terminal inspector
  history    - Show and compare recorded runs
  serve      - Start the SSH spectator server

Examples:
  lockstep scenarios
  lockstep run skirmish --ticks 600
  lockstep verify bridge --replicas 4
  lockstep path bridge --class heavy --from 0,5 --to 19,5
  lockstep inspect ./my_scenario.yaml
  lockstep serve --ssh :2323 --verify skirmish`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Path to history database (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagScenarios, "scenarios", "", "Directory of extra scenario files")
	rootCmd.PersistentFlags().Uint32Var(&flagSeed, "seed", 0, "Script RNG seed (0 = from config)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log simulation events")

	// Add subcommands
	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(pathCmd)
	rootCmd.AddCommand(classesCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
}

// setup loads the config and the scenario catalog.
func setup(_ *cobra.Command, _ []string) error {
	cfg, err := config.LoadSim(flagConfig)
	if err != nil {
		return err
	}
	catalog, err := registry.NewCatalog()
	if err != nil {
		return err
	}
	if flagScenarios != "" {
		if err := catalog.LoadDir(flagScenarios); err != nil {
			return err
		}
	}
	app = &env{
		Resources: core.NewResources(core.NewLogger(os.Stderr, "lockstep", flagVerbose)),
		cfg:       cfg,
		catalog:   catalog,
	}
	return nil
}

// runtimeConfig returns the simulation config with the --seed override.
func (e *env) runtimeConfig() core.RuntimeConfig {
	rc := e.cfg.RuntimeConfig()
	if flagSeed != 0 {
		rc.Seed = flagSeed
	}
	return rc
}

// Store opens the history database on first use.
func (e *env) Store() (*storage.Store, error) {
	if e.store != nil {
		return e.store, nil
	}
	path := flagDBPath
	if path == "" {
		path = e.cfg.StoragePath()
	}
	store, err := storage.Open(path)
	if err != nil {
		return nil, err
	}
	if err := e.Own("history", store); err != nil {
		return nil, err
	}
	e.store = store
	return store, nil
}

// scenarioTicks picks the run length: the flag, then the scenario's own
// default, then the verifier default.
func scenarioTicks(flag int, sc *config.Scenario) int {
	switch {
	case flag > 0:
		return flag
	case sc.Ticks > 0:
		return sc.Ticks
	default:
		return app.cfg.VerifyConfig(0).Ticks
	}
}
