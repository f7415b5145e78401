package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var classesCmd = &cobra.Command{
	Use:   "classes <scenario>",
	Short: "Show the movement classes of a scenario",
	Long: `List every movement class of a scenario with its constraints and the
number of cells it can stand on. Misconfigured classes are reported; they
stay registered but cannot stand anywhere.

Examples:
  lockstep classes bridge`,
	Args: cobra.ExactArgs(1),
	RunE: runClasses,
}

func runClasses(_ *cobra.Command, args []string) error {
	sc, err := app.catalog.Resolve(args[0])
	if err != nil {
		return err
	}
	world, err := sc.BuildWorld()
	if err != nil {
		return err
	}

	entries := world.Classes.List()
	fmt.Printf("Movement classes - %s\n", sc.Name)
	fmt.Println()
	if len(entries) == 0 {
		fmt.Println("No movement classes defined.")
		return nil
	}

	fmt.Printf("  %-12s  %-9s  %-11s  %-8s  %-11s  %s\n", "Name", "Footprint", "Water", "Slope", "Water slope", "Reach")
	fmt.Printf("  %-12s  %-9s  %-11s  %-8s  %-11s  %s\n", "----", "---------", "-----", "-----", "-----------", "-----")
	for _, e := range entries {
		c := e.Class
		reach := 0
		if g, ok := world.Collision.Grid(e.ID); ok {
			for _, walkable := range g.Cells {
				if walkable {
					reach++
				}
			}
		}
		fmt.Printf("  %-12s  %-9s  %-11s  %-8d  %-11d  %d/%d\n",
			c.Name,
			fmt.Sprintf("%dx%d", c.FootprintX, c.FootprintZ),
			fmt.Sprintf("%d..%d", c.MinWaterDepth, c.MaxWaterDepth),
			c.MaxSlope,
			c.MaxWaterSlope,
			reach, world.Terrain.Width()*world.Terrain.Height(),
		)
	}

	if errs := world.Classes.Validate(); len(errs) > 0 {
		fmt.Println()
		fmt.Println("Misconfigured:")
		for _, err := range errs {
			fmt.Printf("  %v\n", err)
		}
	}
	return nil
}
