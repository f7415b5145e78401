package core

// RuntimeConfig contains the knobs a simulation is created with. Every peer
// of a lockstep session must use identical values.
type RuntimeConfig struct {
	Seed              uint32 // Seeds each unit's script RNG
	InstructionBudget int    // COB instructions per thread per tick
	PathWorkers       int    // Goroutines computing path requests
	MaxPathsPerTick   int    // Path requests started per tick
	ExpansionFactor   int    // Search budget as a multiple of grid cells
}

// DefaultConfig returns a RuntimeConfig with sensible defaults.
func DefaultConfig() RuntimeConfig {
	return RuntimeConfig{
		Seed:              1,
		InstructionBudget: 10000,
		PathWorkers:       4,
		MaxPathsPerTick:   10,
		ExpansionFactor:   1,
	}
}

// Normalized replaces non-positive fields with defaults.
func (c RuntimeConfig) Normalized() RuntimeConfig {
	d := DefaultConfig()
	if c.InstructionBudget <= 0 {
		c.InstructionBudget = d.InstructionBudget
	}
	if c.PathWorkers <= 0 {
		c.PathWorkers = d.PathWorkers
	}
	if c.MaxPathsPerTick <= 0 {
		c.MaxPathsPerTick = d.MaxPathsPerTick
	}
	if c.ExpansionFactor <= 0 {
		c.ExpansionFactor = d.ExpansionFactor
	}
	return c
}
