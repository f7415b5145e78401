package core

// Action is an inspector control intent, abstracted from physical keys so
// the inspector model can be driven by tests and by remote sessions alike.
type Action int

const (
	ActionNone       Action = iota
	ActionStep              // Space, N - advance one tick
	ActionAutoplay          // A - toggle continuous stepping
	ActionNextUnit          // Tab, J - select next unit
	ActionPrevUnit          // Shift+Tab, K - select previous unit
	ActionCycleClass        // C - cycle the walkability overlay
	ActionTogglePaths       // P - toggle waypoint overlay
	ActionFaster            // + - raise autoplay rate
	ActionSlower            // - - lower autoplay rate
	ActionHelp              // ? - toggle full help
	ActionQuit              // Q, Ctrl+C - exit inspector
)

// String returns a human-readable name for the action.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "None"
	case ActionStep:
		return "Step"
	case ActionAutoplay:
		return "Autoplay"
	case ActionNextUnit:
		return "NextUnit"
	case ActionPrevUnit:
		return "PrevUnit"
	case ActionCycleClass:
		return "CycleClass"
	case ActionTogglePaths:
		return "TogglePaths"
	case ActionFaster:
		return "Faster"
	case ActionSlower:
		return "Slower"
	case ActionHelp:
		return "Help"
	case ActionQuit:
		return "Quit"
	default:
		return "Unknown"
	}
}

// ActionSet collects the actions triggered during one inspector frame.
type ActionSet struct {
	Actions map[Action]bool
}

// NewActionSet creates an empty action set.
func NewActionSet() ActionSet {
	return ActionSet{Actions: make(map[Action]bool)}
}

// Set marks an action as triggered.
func (f *ActionSet) Set(a Action) {
	if f.Actions == nil {
		f.Actions = make(map[Action]bool)
	}
	f.Actions[a] = true
}

// Has returns true if the given action was triggered.
func (f ActionSet) Has(a Action) bool {
	return f.Actions[a]
}

// Clear resets all actions for the next frame.
func (f *ActionSet) Clear() {
	clear(f.Actions)
}
