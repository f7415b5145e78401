package core

// Color tags a canvas cell with a semantic role. The TUI layer maps roles
// to terminal colors.
type Color uint8

const (
	ColorDefault Color = iota
	ColorLand
	ColorSteep
	ColorShallow
	ColorDeepWater
	ColorFeature
	ColorBlocked
	ColorUnit
	ColorSelected
	ColorPath
	ColorFaulted
	ColorDim
)
