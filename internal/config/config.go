// Package config provides YAML-based configuration loading for the
// simulator and the scenario format it runs.
package config

import (
	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/lockstep"
)

// SimConfig contains all runtime configuration of the lockstep tool.
type SimConfig struct {
	Runtime RuntimeSection `yaml:"runtime"`
	Verify  VerifySection  `yaml:"verify"`
	Storage StorageSection `yaml:"storage"`
	Server  ServerSection  `yaml:"server"`
}

// RuntimeSection defines the knobs every peer must agree on.
type RuntimeSection struct {
	Seed              uint32 `yaml:"seed"`
	InstructionBudget int    `yaml:"instruction_budget"` // COB instructions per thread per tick
	PathWorkers       int    `yaml:"path_workers"`
	MaxPathsPerTick   int    `yaml:"max_paths_per_tick"`
	ExpansionFactor   int    `yaml:"expansion_factor"` // Search budget in multiples of the map size
}

// VerifySection defines how replicas are compared.
type VerifySection struct {
	Replicas         int  `yaml:"replicas"`
	StopOnDesync     bool `yaml:"stop_on_desync"`
	ChecksumInterval int  `yaml:"checksum_interval"` // Ticks between recorded checksums
	TickRate         int  `yaml:"tick_rate"`         // Spectator pacing in Hz, 0 = unpaced
}

// StorageSection defines where run history is kept.
type StorageSection struct {
	Path string `yaml:"path"` // Empty means ~/.lockstep/history.db
}

// ServerSection defines the SSH spectator server.
type ServerSection struct {
	Address string `yaml:"address"`
	HostKey string `yaml:"host_key"` // Empty means ~/.lockstep/host_key
}

// RuntimeConfig converts the runtime section. Missing values fall back to
// core.DefaultConfig.
func (c SimConfig) RuntimeConfig() core.RuntimeConfig {
	return core.RuntimeConfig{
		Seed:              c.Runtime.Seed,
		InstructionBudget: c.Runtime.InstructionBudget,
		PathWorkers:       c.Runtime.PathWorkers,
		MaxPathsPerTick:   c.Runtime.MaxPathsPerTick,
		ExpansionFactor:   c.Runtime.ExpansionFactor,
	}.Normalized()
}

// VerifyConfig converts the verify section for a run of ticks ticks.
func (c SimConfig) VerifyConfig(ticks int) lockstep.Config {
	d := lockstep.DefaultConfig()
	cfg := lockstep.Config{
		Replicas:         c.Verify.Replicas,
		Ticks:            ticks,
		StopOnDesync:     c.Verify.StopOnDesync,
		ChecksumInterval: c.Verify.ChecksumInterval,
		TickRate:         c.Verify.TickRate,
	}
	if cfg.Replicas < 2 {
		cfg.Replicas = d.Replicas
	}
	if cfg.Ticks <= 0 {
		cfg.Ticks = d.Ticks
	}
	return cfg
}
