package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/grid"
	"github.com/vovakirdan/lockstep/internal/pathfinding"
	"github.com/vovakirdan/lockstep/internal/platform/tui"
)

var (
	flagPathClass  string
	flagPathFrom   string
	flagPathTo     string
	flagPathRadius int
)

var pathCmd = &cobra.Command{
	Use:   "path <scenario>",
	Short: "Find a path for a movement class",
	Long: `Run one path search on a scenario's map and draw the result.

Cells the class cannot stand on are marked with x; the path is drawn
from S to G.

Examples:
  lockstep path bridge --class heavy --from 0,5 --to 19,5
  lockstep path bridge --class hover --from 2,2 --to 16,9 --radius 1`,
	Args: cobra.ExactArgs(1),
	RunE: runPath,
}

func init() {
	pathCmd.Flags().StringVar(&flagPathClass, "class", "", "Movement class name")
	pathCmd.Flags().StringVar(&flagPathFrom, "from", "", "Start cell as x,y")
	pathCmd.Flags().StringVar(&flagPathTo, "to", "", "Goal cell as x,y")
	pathCmd.Flags().IntVar(&flagPathRadius, "radius", 0, "Accept cells within this distance of the goal")
	_ = pathCmd.MarkFlagRequired("class")
	_ = pathCmd.MarkFlagRequired("from")
	_ = pathCmd.MarkFlagRequired("to")
}

func runPath(_ *cobra.Command, args []string) error {
	sc, err := app.catalog.Resolve(args[0])
	if err != nil {
		return err
	}
	world, err := sc.BuildWorld()
	if err != nil {
		return err
	}
	class, err := world.Classes.Resolve(flagPathClass)
	if err != nil {
		return err
	}
	from, err := grid.ParsePoint(flagPathFrom)
	if err != nil {
		return err
	}
	to, err := grid.ParsePoint(flagPathTo)
	if err != nil {
		return err
	}

	space := world.Collision.Space(class, world.Classes)
	cells := space.Width() * space.Height()
	res := pathfinding.FindPath(space, pathfinding.Request{
		Start:      from,
		Goal:       to,
		GoalRadius: flagPathRadius,
		Budget:     cells * app.runtimeConfig().ExpansionFactor,
	})

	scr := core.NewScreen(space.Width(), space.Height())
	tui.DrawMap(scr, 0, 0, world, nil, tui.MapOptions{Overlay: &class, Path: res.Path.Waypoints})
	fmt.Println(scr.String())
	fmt.Println()

	if !res.Found() {
		fmt.Printf("No path from %s to %s for %s (%d cells expanded)\n", from, to, flagPathClass, res.Expanded)
		return nil
	}
	fmt.Printf("Path from %s to %s for %s: %d steps, cost %s, %d cells expanded\n",
		from, to, flagPathClass, len(res.Path.Waypoints)-1, res.Path.Cost, res.Expanded)
	fmt.Printf("Waypoints: %v\n", pathfinding.Simplify(res.Path.Waypoints))
	return nil
}
