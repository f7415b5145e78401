package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/fixed"
	"github.com/vovakirdan/lockstep/internal/grid"
	"github.com/vovakirdan/lockstep/internal/movement"
	"github.com/vovakirdan/lockstep/internal/sim"
)

func TestLoadSimFallsBackToEmbeddedDefault(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := LoadSim("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSimConfig(), cfg)
	assert.Equal(t, core.DefaultConfig(), cfg.RuntimeConfig())
}

func TestLoadSimSearchOrder(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	userDir := filepath.Join(home, ".lockstep", "configs")
	require.NoError(t, os.MkdirAll(userDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "sim.yaml"), []byte("runtime:\n  seed: 42\n"), 0o644))

	cfg, err := LoadSim("")
	require.NoError(t, err)
	assert.Equal(t, uint32(42), cfg.Runtime.Seed)
	// Unset fields are filled from the runtime defaults.
	assert.Equal(t, 4, cfg.RuntimeConfig().PathWorkers)
	assert.Equal(t, filepath.Join(home, ".lockstep", "history.db"), cfg.StoragePath())

	custom := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(custom, []byte("runtime:\n  seed: 7\nstorage:\n  path: /tmp/x.db\n"), 0o644))
	cfg, err = LoadSim(custom)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), cfg.Runtime.Seed)
	assert.Equal(t, "/tmp/x.db", cfg.StoragePath())

	_, err = LoadSim(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestVerifyConfigDefaults(t *testing.T) {
	v := SimConfig{}.VerifyConfig(0)
	assert.Equal(t, 2, v.Replicas)
	assert.Equal(t, 300, v.Ticks)

	v = DefaultSimConfig().VerifyConfig(90)
	assert.Equal(t, 3, v.Replicas)
	assert.Equal(t, 90, v.Ticks)
	assert.Equal(t, 30, v.ChecksumInterval)
}

const sample = `
id: sample
name: Sample
terrain:
  sea_level: 3
  default_height: 6
  legend: {".": 6, "~": 0}
  rows:
    - "...~"
    - ".#.~"
classes:
  - {name: walker, footprint: [1, 1], max_water_depth: 1}
  - {name: wader, footprint: [1, 1], min_water_depth: 0, max_slope: 2}
types:
  - name: bot
    class: walker
    speed: 1.5
    turn_rate: 90
    hit_points: 5
    height: 1
    pieces:
      - {name: base}
      - {name: head, parent: base, origin: [0, 0.5, 0]}
    weapons:
      - {name: zap, piece: head, physics: tracking, turn_rate: 45, speed: 3, range: 4, damage: 1}
    script: |
      piece base head
      func Create
          return
units:
  - {type: bot, owner: 2, at: [0, 0], heading: 90}
  - {type: bot, owner: 1, at: [2, 1]}
commands:
  - {tick: 1, unit: 1, move: [2, 0]}
  - {tick: 2, unit: 2, build: [0, 1]}
  - {tick: 3, unit: 1, stop: true}
  - {tick: 3, unit: 2, signal: 4}
  - {tick: 4, unit: 1, script: Create, args: [1, 2]}
  - {tick: 5, unit: 1, activate: false}
  - {tick: 6, unit: 2, fire: {weapon: 0, at: [0.5, 6, 0.5]}}
  - {tick: 7, unit: 2, destroy: true}
`

func TestParseAndBuildScenario(t *testing.T) {
	sc, err := ParseScenario([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, "#", sc.Terrain.Feature)
	assert.Equal(t, 300, sc.Ticks)

	terrain := sc.BuildTerrain()
	assert.Equal(t, 4, terrain.Width())
	assert.Equal(t, 2, terrain.Height())
	assert.True(t, terrain.Blocked(grid.P(1, 1)))
	assert.Equal(t, 6, terrain.Corner(0, 0))
	assert.Equal(t, 3, terrain.Corner(3, 0), "shore corner averages land and water")
	assert.Equal(t, 0, terrain.Corner(4, 0))

	classes, err := sc.BuildClasses()
	require.NoError(t, err)
	walker, err := classes.Resolve("walker")
	require.NoError(t, err)
	def, _ := classes.Get(walker)
	assert.Equal(t, 1, def.MaxWaterDepth)
	assert.Equal(t, 255, def.MaxSlope)
	wader, _ := classes.Resolve("wader")
	def, _ = classes.Get(wader)
	assert.Equal(t, 2, def.MaxWaterSlope, "water slope defaults to the land slope")

	world, err := sc.BuildWorld()
	require.NoError(t, err)
	bot, ok := world.Type("bot")
	require.True(t, ok)
	assert.Equal(t, fixed.FromFloat(1.5), bot.Speed)
	assert.Equal(t, fixed.QuarterTurn, bot.TurnRate)
	require.Len(t, bot.Weapons, 1)
	assert.Equal(t, sim.Tracking{TurnRate: fixed.EighthTurn}, bot.Weapons[0].Physics)

	cmds := sc.Schedule()
	require.Len(t, cmds, 8)
	unit1, unit2 := core.NewUnitID(1), core.NewUnitID(2)
	want := []sim.Command{
		sim.MoveOrder{Unit: unit1, Goal: grid.P(2, 0)},
		sim.BuildOrder{Unit: unit2, Goal: grid.P(0, 1)},
		sim.StopOrder{Unit: unit1},
		sim.Signal{Unit: unit2, Signal: 4},
		sim.StartScript{Unit: unit1, Function: "Create", Args: []int32{1, 2}},
		sim.SetActivation{Unit: unit1, On: false},
		sim.FireWeapon{Unit: unit2, Weapon: 0, Target: fixed.VecFromFloats(0.5, 6, 0.5)},
		sim.DestroyUnit{Unit: unit2},
	}
	for i, c := range cmds {
		assert.Equal(t, want[i], c.Command, "command %d", i)
	}

	s, err := sc.NewSimulation(world, core.RuntimeConfig{}, nil)
	require.NoError(t, err)
	units := s.Units()
	require.Len(t, units, 2)
	assert.Equal(t, fixed.QuarterTurn, units[0].Rotation)
	assert.Equal(t, core.NewPlayerID(2), units[0].Owner)
}

func TestScenarioValidation(t *testing.T) {
	base := func() *Scenario {
		sc, err := ParseScenario([]byte(sample))
		require.NoError(t, err)
		return sc
	}
	tests := []struct {
		name   string
		mutate func(*Scenario)
		code   string
	}{
		{"missing id", func(sc *Scenario) { sc.ID = "" }, "MISSING_ID"},
		{"empty map", func(sc *Scenario) { sc.Terrain.Rows = nil }, "EMPTY_MAP"},
		{"ragged map", func(sc *Scenario) { sc.Terrain.Rows[1] = ".." }, "RAGGED_MAP"},
		{"unknown cell", func(sc *Scenario) { sc.Terrain.Rows[0] = "..?~" }, "UNKNOWN_CELL"},
		{"unknown type", func(sc *Scenario) { sc.Units[0].Type = "ghost" }, "UNKNOWN_TYPE"},
		{"unit off map", func(sc *Scenario) { sc.Units[0].At = [2]int{9, 0} }, "OUT_OF_MAP"},
		{"tick zero", func(sc *Scenario) { sc.Commands[0].Tick = 0 }, "BAD_TICK"},
		{"unknown unit", func(sc *Scenario) { sc.Commands[0].Unit = 3 }, "UNKNOWN_UNIT"},
		{"two actions", func(sc *Scenario) { sc.Commands[0].Stop = true }, "BAD_COMMAND"},
		{"no action", func(sc *Scenario) { sc.Commands[0].Move = nil }, "BAD_COMMAND"},
		{"footprint with class", func(sc *Scenario) { sc.Types[0].Footprint = [2]int{2, 2} }, "FOOTPRINT_WITH_CLASS"},
		{"negative footprint", func(sc *Scenario) {
			sc.Types[0].Class = ""
			sc.Types[0].Footprint = [2]int{-1, 1}
		}, "BAD_FOOTPRINT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := base()
			tt.mutate(sc)
			err := sc.Validate()
			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.code, ve.Code)
		})
	}
}

func TestBuildWorldReportsBadData(t *testing.T) {
	sc, err := ParseScenario([]byte(sample))
	require.NoError(t, err)

	broken := *sc
	broken.Classes = []ClassYAML{{Name: "walker", Footprint: [2]int{0, 1}}}
	_, err = broken.BuildWorld()
	var ve movement.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "BAD_FOOTPRINT", ve.Code)

	broken = *sc
	broken.Types = []UnitTypeYAML{sc.Types[0]}
	broken.Types[0].Script = "piece base head\nfunc Create\n  bogus\n"
	_, err = broken.BuildWorld()
	assert.ErrorContains(t, err, "unknown instruction")

	broken = *sc
	broken.Types = []UnitTypeYAML{sc.Types[0]}
	broken.Types[0].Weapons = []WeaponYAML{{Name: "x", Physics: "laser"}}
	_, err = broken.BuildWorld()
	assert.ErrorContains(t, err, "laser")
}

func TestClasslessTypesAndOverlappingUnits(t *testing.T) {
	sc, err := ParseScenario([]byte(sample))
	require.NoError(t, err)
	kite := sc.Types[0]
	kite.Name, kite.Class, kite.Footprint = "kite", "", [2]int{2, 1}
	kite.Weapons = nil
	sc.Types = append(sc.Types, kite)
	sc.Units = append(sc.Units, UnitYAML{Type: "kite", Owner: 1, At: [2]int{2, 0}})
	require.NoError(t, sc.Validate())

	world, err := sc.BuildWorld()
	require.NoError(t, err)
	ut, ok := world.Type("kite")
	require.True(t, ok)
	assert.False(t, ut.HasClass)
	fx, fz := world.Footprint(ut)
	assert.Equal(t, 2, fx)
	assert.Equal(t, 1, fz)
	assert.True(t, world.CanStand(ut, grid.P(2, 0)), "water does not stop a classless unit")
	assert.False(t, world.CanStand(ut, grid.P(0, 1)), "the footprint would cover the feature")

	_, err = sc.NewSimulation(world, core.RuntimeConfig{}, nil)
	require.NoError(t, err)

	sc.Units[2].At = [2]int{1, 1}
	_, err = sc.NewSimulation(world, core.RuntimeConfig{}, nil)
	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "OVERLAPPING_UNITS", ve.Code)
}
