package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/lockstep/internal/core"
)

// KeyMap defines the key bindings for the inspector.
type KeyMap struct {
	Step        key.Binding
	Autoplay    key.Binding
	NextUnit    key.Binding
	PrevUnit    key.Binding
	CycleClass  key.Binding
	TogglePaths key.Binding
	Faster      key.Binding
	Slower      key.Binding
	Help        key.Binding
	Quit        key.Binding
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Step, k.Autoplay, k.NextUnit, k.CycleClass, k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Step, k.Autoplay, k.Faster, k.Slower},
		{k.NextUnit, k.PrevUnit, k.CycleClass, k.TogglePaths},
		{k.Help, k.Quit},
	}
}

// DefaultKeyMap returns default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Step: key.NewBinding(
			key.WithKeys(" ", "n"),
			key.WithHelp("space/n", "step"),
		),
		Autoplay: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "autoplay"),
		),
		NextUnit: key.NewBinding(
			key.WithKeys("tab", "j"),
			key.WithHelp("tab/j", "next unit"),
		),
		PrevUnit: key.NewBinding(
			key.WithKeys("shift+tab", "k"),
			key.WithHelp("S-tab/k", "prev unit"),
		),
		CycleClass: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "class overlay"),
		),
		TogglePaths: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "paths"),
		),
		Faster: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "faster"),
		),
		Slower: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "slower"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// MapKey translates a key message to an inspector action.
// This centralizes key bindings and makes them testable.
func (k KeyMap) MapKey(msg tea.KeyMsg) core.Action {
	switch {
	case key.Matches(msg, k.Quit):
		return core.ActionQuit
	case key.Matches(msg, k.Step):
		return core.ActionStep
	case key.Matches(msg, k.Autoplay):
		return core.ActionAutoplay
	case key.Matches(msg, k.NextUnit):
		return core.ActionNextUnit
	case key.Matches(msg, k.PrevUnit):
		return core.ActionPrevUnit
	case key.Matches(msg, k.CycleClass):
		return core.ActionCycleClass
	case key.Matches(msg, k.TogglePaths):
		return core.ActionTogglePaths
	case key.Matches(msg, k.Faster):
		return core.ActionFaster
	case key.Matches(msg, k.Slower):
		return core.ActionSlower
	case key.Matches(msg, k.Help):
		return core.ActionHelp
	}
	return core.ActionNone
}
