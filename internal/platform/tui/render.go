package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/lockstep/internal/core"
)

// colorStyles maps core.Color roles to lipgloss styles.
var colorStyles = map[core.Color]lipgloss.Style{
	core.ColorDefault:   lipgloss.NewStyle(),
	core.ColorLand:      lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	core.ColorSteep:     lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	core.ColorShallow:   lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
	core.ColorDeepWater: lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
	core.ColorFeature:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	core.ColorBlocked:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	core.ColorUnit:      lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true),
	core.ColorSelected:  lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")).Bold(true),
	core.ColorPath:      lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
	core.ColorFaulted:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	core.ColorDim:       lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
}

// RenderScreen converts a Screen buffer to a styled string for display.
// Groups adjacent cells with the same color to minimize ANSI escape sequences.
func RenderScreen(s *core.Screen) string {
	var sb strings.Builder
	// Pre-allocate with extra space for ANSI codes
	sb.Grow(s.Width()*s.Height()*2 + s.Height())

	for y := range s.Height() {
		if y > 0 {
			sb.WriteRune('\n')
		}

		row := s.Row(y)
		x := 0
		for x < len(row) {
			startColor := row[x].Color

			var run strings.Builder
			for x < len(row) && row[x].Color == startColor {
				run.WriteRune(row[x].Rune)
				x++
			}

			style, ok := colorStyles[startColor]
			if !ok {
				style = colorStyles[core.ColorDefault]
			}
			sb.WriteString(style.Render(run.String()))
		}
	}
	return sb.String()
}
