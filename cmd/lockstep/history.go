package main

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/lockstep/internal/platform/tui"
	"github.com/vovakirdan/lockstep/internal/storage"
)

var (
	flagHistoryLimit  int
	flagHistoryBrowse bool
)

var historyCmd = &cobra.Command{
	Use:   "history [scenario]",
	Short: "Show recorded runs",
	Long: `List the most recent recorded runs, optionally of one scenario.

With --browse the runs open in an interactive table; mark two runs to
compare their checksums.

Examples:
  lockstep history
  lockstep history skirmish --limit 20
  lockstep history --browse
  lockstep history diff 3 4
  lockstep history show 3`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

var historyDiffCmd = &cobra.Command{
	Use:   "diff <run> <run>",
	Short: "Compare the checksums of two runs",
	Long: `Compare two recorded runs on the ticks both recorded and report the
first tick where their hashes differ, with the units whose script state
differs at that tick.`,
	Args: cobra.ExactArgs(2),
	RunE: runHistoryDiff,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run>",
	Short: "Show the checksums of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <run>",
	Short: "Delete a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryDelete,
}

func init() {
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 10, "Number of runs to show")
	historyCmd.Flags().BoolVar(&flagHistoryBrowse, "browse", false, "Open the interactive browser")

	historyCmd.AddCommand(historyDiffCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
}

func runHistory(_ *cobra.Command, args []string) error {
	scenario := ""
	if len(args) > 0 {
		scenario = args[0]
	}
	store, err := app.Store()
	if err != nil {
		return err
	}
	if flagHistoryBrowse {
		return tui.RunHistory(store, scenario, terminalHeight())
	}

	runs, err := store.RecentRuns(scenario, flagHistoryLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		fmt.Println()
		fmt.Println("Run 'lockstep run <scenario>' to record one.")
		return nil
	}

	fmt.Printf("  %-6s  %-14s  %-10s  %-7s  %-16s  %s\n", "Run", "Scenario", "Seed", "Ticks", "Final hash", "Date")
	fmt.Printf("  %-6s  %-14s  %-10s  %-7s  %-16s  %s\n", "---", "--------", "----", "-----", "----------", "----")
	for _, r := range runs {
		fmt.Printf("  %-6s  %-14s  %-10d  %-7d  %016x  %s\n",
			fmt.Sprintf("#%d", r.ID),
			r.Scenario,
			r.Seed,
			r.Ticks,
			r.FinalHash,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	return nil
}

func runHistoryDiff(_ *cobra.Command, args []string) error {
	left, err := parseRunID(args[0])
	if err != nil {
		return err
	}
	right, err := parseRunID(args[1])
	if err != nil {
		return err
	}
	store, err := app.Store()
	if err != nil {
		return err
	}

	d, err := store.DiffRuns(left, right)
	if err != nil {
		return err
	}
	if d.Compared == 0 {
		fmt.Printf("Runs #%d and #%d have no ticks in common\n", left, right)
		return nil
	}
	if !d.Diverged {
		fmt.Printf("Runs #%d and #%d agree on %d common checksums\n", left, right, d.Compared)
		return nil
	}

	fmt.Printf("Runs #%d and #%d diverge at %s: %016x vs %016x\n", left, right, d.FirstTick, d.Left, d.Right)
	units, err := divergedUnits(store, left, right, d)
	if err != nil {
		return err
	}
	if len(units) > 0 {
		fmt.Printf("Script state differs for units: %v\n", units)
	}
	return nil
}

// divergedUnits lists the units whose VM snapshots differ at the first
// diverging tick. Units present in only one run count as differing.
func divergedUnits(store *storage.Store, left, right int64, d storage.Divergence) ([]string, error) {
	a, err := store.Snapshots(left, d.FirstTick)
	if err != nil {
		return nil, err
	}
	b, err := store.Snapshots(right, d.FirstTick)
	if err != nil {
		return nil, err
	}
	blobs := make(map[string][]byte, len(a))
	for _, s := range a {
		blobs[s.Unit.String()] = s.Blob
	}
	var out []string
	for _, s := range b {
		id := s.Unit.String()
		if prev, ok := blobs[id]; !ok || !bytes.Equal(prev, s.Blob) {
			out = append(out, id)
		}
		delete(blobs, id)
	}
	for _, s := range a {
		if _, ok := blobs[s.Unit.String()]; ok {
			out = append(out, s.Unit.String())
		}
	}
	return out, nil
}

func runHistoryShow(_ *cobra.Command, args []string) error {
	id, err := parseRunID(args[0])
	if err != nil {
		return err
	}
	store, err := app.Store()
	if err != nil {
		return err
	}
	run, err := store.RunByID(id)
	if err != nil {
		return err
	}
	sums, err := store.Checksums(id)
	if err != nil {
		return err
	}

	fmt.Printf("Run #%d - %s, seed %d, %d ticks, recorded %s\n",
		run.ID, run.Scenario, run.Seed, run.Ticks, run.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Printf("Final hash %016x\n", run.FinalHash)
	fmt.Println()
	if len(sums) == 0 {
		fmt.Println("No checksums recorded.")
		return nil
	}
	for _, c := range sums {
		snaps, err := store.Snapshots(id, c.Tick)
		if err != nil {
			return err
		}
		fmt.Printf("  %-8s  %016x  %d unit snapshots\n", c.Tick, c.Hash, len(snaps))
	}
	return nil
}

func runHistoryDelete(_ *cobra.Command, args []string) error {
	id, err := parseRunID(args[0])
	if err != nil {
		return err
	}
	store, err := app.Store()
	if err != nil {
		return err
	}
	if _, err := store.RunByID(id); err != nil {
		return err
	}
	if err := store.DeleteRun(id); err != nil {
		return err
	}
	fmt.Printf("Deleted run #%d\n", id)
	return nil
}

// parseRunID accepts "12" or "#12".
func parseRunID(s string) (int64, error) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid run id %q", s)
	}
	return id, nil
}
