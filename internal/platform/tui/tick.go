// Package tui provides the terminal surfaces of the simulator: the Bubble
// Tea inspector and the Wish SSH server that serves it to spectators.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// TickMsg is sent to advance the simulation while autoplay is on.
type TickMsg struct {
	Time time.Time
	Gen  int // autoplay generation; stale ticks are dropped
}

// tickCmd returns a Bubble Tea command that sends one tick message after
// the interval for the given rate.
func tickCmd(tickRate, gen int) tea.Cmd {
	interval := time.Second / time.Duration(max(tickRate, 1))
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t, Gen: gen}
	})
}
