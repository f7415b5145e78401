package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Scenario is a complete simulation setup: map, movement classes, unit
// types, initial units and a command schedule.
type Scenario struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Ticks       int            `yaml:"ticks"` // Default run length
	Terrain     TerrainYAML    `yaml:"terrain"`
	Classes     []ClassYAML    `yaml:"classes"`
	Types       []UnitTypeYAML `yaml:"types"`
	Units       []UnitYAML     `yaml:"units"`
	Commands    []CommandYAML  `yaml:"commands,omitempty"`

	// FilePath is set when the scenario was loaded from disk.
	FilePath string `yaml:"-"`
}

// TerrainYAML describes the map as rows of cell characters. Each character
// maps to a ground height through Legend; Feature cells are blocked and
// stand at DefaultHeight.
type TerrainYAML struct {
	SeaLevel      int            `yaml:"sea_level"`
	DefaultHeight int            `yaml:"default_height"`
	Legend        map[string]int `yaml:"legend"`
	Feature       string         `yaml:"feature"` // Defaults to "#"
	Rows          []string       `yaml:"rows"`
}

// ClassYAML is a movement class record.
type ClassYAML struct {
	Name          string `yaml:"name"`
	Footprint     [2]int `yaml:"footprint"`
	MinWaterDepth int    `yaml:"min_water_depth"`
	MaxWaterDepth *int   `yaml:"max_water_depth"` // nil means unlimited
	MaxSlope      *int   `yaml:"max_slope"`
	MaxWaterSlope *int   `yaml:"max_water_slope"`
}

// UnitTypeYAML defines a unit type. Speeds are world units per second and
// turn rates degrees per tick. A type without a class is restricted only by
// the map edge and features; Footprint sizes it and defaults to 1x1.
type UnitTypeYAML struct {
	Name      string       `yaml:"name"`
	Class     string       `yaml:"class,omitempty"`
	Footprint [2]int       `yaml:"footprint,omitempty"`
	Speed     float64      `yaml:"speed"`
	TurnRate  float64      `yaml:"turn_rate"`
	HitPoints int32        `yaml:"hit_points"`
	Height    float64      `yaml:"height"`
	Pieces    []PieceYAML  `yaml:"pieces"`
	Script    string       `yaml:"script"`
	Weapons   []WeaponYAML `yaml:"weapons,omitempty"`
}

// PieceYAML is one node of a unit's piece tree.
type PieceYAML struct {
	Name   string     `yaml:"name"`
	Parent string     `yaml:"parent,omitempty"`
	Origin [3]float64 `yaml:"origin,omitempty"`
}

// WeaponYAML is a weapon mount.
type WeaponYAML struct {
	Name     string  `yaml:"name"`
	Piece    string  `yaml:"piece,omitempty"`
	Physics  string  `yaml:"physics"` // line-of-sight, ballistic or tracking
	TurnRate float64 `yaml:"turn_rate,omitempty"`
	Speed    float64 `yaml:"speed"`
	Range    float64 `yaml:"range,omitempty"`
	Damage   int32   `yaml:"damage"`
	Script   string  `yaml:"script,omitempty"`
}

// UnitYAML places a unit. Units get ids 1, 2, ... in list order.
type UnitYAML struct {
	Type    string  `yaml:"type"`
	Owner   uint32  `yaml:"owner"`
	At      [2]int  `yaml:"at"`
	Heading float64 `yaml:"heading,omitempty"` // degrees
}

// CommandYAML is one scheduled command. Exactly one action field must be
// set.
type CommandYAML struct {
	Tick     uint32    `yaml:"tick"`
	Unit     uint32    `yaml:"unit"`
	Move     *[2]int   `yaml:"move,omitempty"`
	Build    *[2]int   `yaml:"build,omitempty"`
	Stop     bool      `yaml:"stop,omitempty"`
	Signal   *uint32   `yaml:"signal,omitempty"`
	Script   string    `yaml:"script,omitempty"`
	Args     []int32   `yaml:"args,omitempty"`
	Activate *bool     `yaml:"activate,omitempty"`
	Destroy  bool      `yaml:"destroy,omitempty"`
	Fire     *FireYAML `yaml:"fire,omitempty"`
}

// FireYAML aims a weapon at a world position.
type FireYAML struct {
	Weapon int        `yaml:"weapon"`
	At     [3]float64 `yaml:"at"`
}

// ValidationError contains details about an invalid scenario.
type ValidationError struct {
	Code    string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func invalid(code, format string, args ...any) error {
	return ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ParseScenario parses a scenario file and checks its structure.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	if sc.Terrain.Feature == "" {
		sc.Terrain.Feature = "#"
	}
	if sc.Ticks <= 0 {
		sc.Ticks = 300
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the scenario for structural errors. Script assembly and
// class limits are checked when the world is built.
func (sc *Scenario) Validate() error {
	if sc.ID == "" {
		return invalid("MISSING_ID", "scenario has no id")
	}
	if len(sc.Terrain.Rows) == 0 {
		return invalid("EMPTY_MAP", "scenario %q has no terrain rows", sc.ID)
	}
	width := len(sc.Terrain.Rows[0])
	for i, row := range sc.Terrain.Rows {
		if len(row) != width {
			return invalid("RAGGED_MAP", "row %d has %d cells, expected %d", i, len(row), width)
		}
		for _, ch := range row {
			s := string(ch)
			if s == sc.Terrain.Feature {
				continue
			}
			if _, ok := sc.Terrain.Legend[s]; !ok {
				return invalid("UNKNOWN_CELL", "row %d uses %q which is not in the legend", i, s)
			}
		}
	}

	types := make(map[string]bool, len(sc.Types))
	for _, t := range sc.Types {
		types[t.Name] = true
		if t.Class != "" && t.Footprint != [2]int{} {
			return invalid("FOOTPRINT_WITH_CLASS", "type %q has class %q; the footprint comes from the class", t.Name, t.Class)
		}
		if t.Footprint[0] < 0 || t.Footprint[1] < 0 {
			return invalid("BAD_FOOTPRINT", "type %q has footprint %v", t.Name, t.Footprint)
		}
	}
	for i, u := range sc.Units {
		if !types[u.Type] {
			return invalid("UNKNOWN_TYPE", "unit %d has unknown type %q", i+1, u.Type)
		}
		if u.At[0] < 0 || u.At[1] < 0 || u.At[0] >= width || u.At[1] >= len(sc.Terrain.Rows) {
			return invalid("OUT_OF_MAP", "unit %d at %v is outside the map", i+1, u.At)
		}
	}
	for i, c := range sc.Commands {
		if c.Tick == 0 {
			return invalid("BAD_TICK", "command %d is scheduled at tick 0", i)
		}
		if c.Unit == 0 || int(c.Unit) > len(sc.Units) {
			return invalid("UNKNOWN_UNIT", "command %d names unit %d", i, c.Unit)
		}
		if n := c.actions(); n != 1 {
			return invalid("BAD_COMMAND", "command %d has %d actions, expected exactly 1", i, n)
		}
	}
	return nil
}

func (c CommandYAML) actions() int {
	n := 0
	for _, set := range []bool{
		c.Move != nil, c.Build != nil, c.Stop, c.Signal != nil,
		c.Script != "", c.Activate != nil, c.Destroy, c.Fire != nil,
	} {
		if set {
			n++
		}
	}
	return n
}
