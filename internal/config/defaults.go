package config

import (
	_ "embed"
)

//go:embed defaults/sim.yaml
var defaultSimYAML []byte

// DefaultSimConfig returns the default configuration.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Runtime: RuntimeSection{
			Seed:              1,
			InstructionBudget: 10000,
			PathWorkers:       4,
			MaxPathsPerTick:   10,
			ExpansionFactor:   1,
		},
		Verify: VerifySection{
			Replicas:         3,
			ChecksumInterval: 30,
		},
		Server: ServerSection{
			Address: "localhost:2323",
		},
	}
}
