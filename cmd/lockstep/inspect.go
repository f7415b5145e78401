package main

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/platform/tui"
)

var (
	flagInspectRate int
	flagInspectLog  string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <scenario>",
	Short: "Step through a scenario in the terminal",
	Long: `Open the inspector: the map with units, waypoints and class overlays,
the selected unit's script threads and pieces, and the event log.

Controls:
  Space/N    - Step one tick
  A          - Toggle autoplay
  +/-        - Faster/slower autoplay
  Tab/J, K   - Select next/previous unit
  C          - Cycle movement class overlay
  P          - Toggle the selected unit's waypoints
  ?          - Toggle full help
  Q/Ctrl+C   - Quit

Examples:
  lockstep inspect skirmish
  lockstep inspect bridge --rate 10 --log inspect.log`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().IntVar(&flagInspectRate, "rate", core.TicksPerSecond, "Autoplay speed in ticks per second")
	inspectCmd.Flags().StringVar(&flagInspectLog, "log", "", "Write simulation logs to this file")
}

func runInspect(_ *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("inspect needs a terminal")
	}

	sc, err := app.catalog.Resolve(args[0])
	if err != nil {
		return err
	}
	world, err := sc.BuildWorld()
	if err != nil {
		return err
	}

	// The inspector owns the screen; logs go to a file or nowhere.
	var out io.Writer = io.Discard
	if flagInspectLog != "" {
		f, err := os.Create(flagInspectLog)
		if err != nil {
			return err
		}
		if err := app.Own("inspect log", f); err != nil {
			return err
		}
		out = f
	}
	logger := core.NewLogger(out, "inspect", flagVerbose).With("scenario", sc.ID)

	s, err := sc.NewSimulation(world, app.runtimeConfig(), logger)
	if err != nil {
		return err
	}
	return tui.Run(s, tui.Options{
		Title:  sc.Name,
		Ticks:  sc.Ticks,
		Rate:   flagInspectRate,
		Logger: logger,
	})
}

// terminalHeight returns the height of the attached terminal, or 24.
func terminalHeight() int {
	if _, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil && h > 0 {
		return h
	}
	return 24
}
