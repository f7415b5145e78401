package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/lockstep"
	"github.com/vovakirdan/lockstep/internal/platform/tui"
	"github.com/vovakirdan/lockstep/internal/sim"
)

var (
	flagSSHAddr      string
	flagHostKey      string
	flagServeDefault string
	flagServeVerify  string
	flagIdleTimeout  int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the SSH spectator server",
	Long: `Start an SSH server that lets users step through scenarios remotely.

Each SSH connection gets its own simulation. The scenario is taken from the
ssh command line, or --scenario when none is given.

With --verify the server also runs a verification of that scenario in a
loop, paced for spectators, and every session shows its progress.

Host key handling:
  - If --host-key is provided, uses that key file
  - Otherwise, auto-generates a key at ~/.lockstep/host_key

Examples:
  lockstep serve                          # Listen on the configured address
  lockstep serve --ssh :2323              # Listen on port 2323
  lockstep serve --verify skirmish        # Broadcast a running verification
  lockstep serve --host-key ./host_key    # Use specific host key

Users can connect with:
  ssh -t localhost -p 2323 bridge`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagSSHAddr, "ssh", "", "SSH server address (default from config)")
	serveCmd.Flags().StringVar(&flagHostKey, "host-key", "", "Path to host key file (auto-generated if not specified)")
	serveCmd.Flags().StringVar(&flagServeDefault, "scenario", "skirmish", "Scenario for sessions that do not name one")
	serveCmd.Flags().StringVar(&flagServeVerify, "verify", "", "Scenario to verify continuously for spectators")
	serveCmd.Flags().IntVar(&flagIdleTimeout, "idle-timeout", 30, "Idle timeout in minutes before disconnecting")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := tui.DefaultSSHServerConfig()
	if app.cfg.Server.Address != "" {
		cfg.Address = app.cfg.Server.Address
	}
	if flagSSHAddr != "" {
		cfg.Address = flagSSHAddr
	}
	cfg.HostKeyPath = app.cfg.Server.HostKey
	if flagHostKey != "" {
		cfg.HostKeyPath = flagHostKey
	}
	cfg.Scenario = flagServeDefault
	cfg.Runtime = app.runtimeConfig()
	cfg.IdleTimeout = time.Duration(flagIdleTimeout) * time.Minute

	if _, err := app.catalog.Get(cfg.Scenario); err != nil {
		return err
	}

	var sessions *lockstep.SessionRegistry
	if flagServeVerify != "" {
		sessions = lockstep.NewSessionRegistry()
	}
	server, err := tui.NewSSHServer(cfg, app.catalog, sessions, app.Logger)
	if err != nil {
		return err
	}
	if err := app.Own("ssh server", server); err != nil {
		return err
	}

	fmt.Printf("Starting lockstep SSH server on %s\n", server.Addr())
	fmt.Println("Press Ctrl+C to stop")

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		return server.ListenAndServe(ctx)
	})
	if sessions != nil {
		g.Go(func() error {
			return verifyLoop(ctx, flagServeVerify, sessions)
		})
	}
	return g.Wait()
}

// verifyLoop verifies scenario over and over, broadcasting to sessions,
// until ctx is cancelled.
func verifyLoop(ctx context.Context, scenario string, sessions *lockstep.SessionRegistry) error {
	sc, err := app.catalog.Get(scenario)
	if err != nil {
		return err
	}
	world, err := sc.BuildWorld()
	if err != nil {
		return err
	}

	cfg := app.cfg.VerifyConfig(scenarioTicks(0, sc))
	if cfg.TickRate <= 0 {
		cfg.TickRate = core.TicksPerSecond
	}
	rc := app.runtimeConfig()
	logger := app.Logger.With("verify", sc.ID)
	factory := func(i int) (*sim.Simulation, error) {
		return sc.NewSimulation(world, rc, logger.With("replica", i))
	}

	for round := 1; ; round++ {
		v, err := lockstep.New(cfg, factory, sessions, logger)
		if err != nil {
			return err
		}
		report, err := v.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("round finished", "round", round, "ticks", report.Ticks, "desyncs", len(report.Desyncs))
	}
}
