package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List all available scenarios",
	Long: `Shows the built-in scenarios and any loaded with --scenarios.

Examples:
  lockstep scenarios
  lockstep scenarios --scenarios ./maps`,
	Args: cobra.NoArgs,
	RunE: runScenarios,
}

func runScenarios(_ *cobra.Command, _ []string) error {
	infos := app.catalog.List()
	if len(infos) == 0 {
		fmt.Println("No scenarios available.")
		return nil
	}

	fmt.Println("Available scenarios:")
	fmt.Println()

	// Calculate column widths
	maxIDLen := 2 // "ID" header
	for _, info := range infos {
		if len(info.ID) > maxIDLen {
			maxIDLen = len(info.ID)
		}
	}

	fmt.Printf("  %-*s  %-7s  %-5s  %-5s  %s\n", maxIDLen, "ID", "Map", "Units", "Ticks", "Description")
	fmt.Printf("  %-*s  %-7s  %-5s  %-5s  %s\n", maxIDLen, "--", "---", "-----", "-----", "-----------")
	for _, info := range infos {
		size := fmt.Sprintf("%dx%d", info.Width, info.Height)
		fmt.Printf("  %-*s  %-7s  %-5d  %-5d  %s\n", maxIDLen, info.ID, size, info.Units, info.Ticks, info.Description)
		if info.Source != "builtin" {
			fmt.Printf("  %-*s  from %s\n", maxIDLen, "", info.Source)
		}
	}

	fmt.Println()
	fmt.Println("Run 'lockstep inspect <id>' to step through a scenario.")
	return nil
}
