package tui

import (
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/lockstep/internal/config"
	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/grid"
	"github.com/vovakirdan/lockstep/internal/lockstep"
	"github.com/vovakirdan/lockstep/internal/sim"
)

const pond = `
id: pond
name: Pond
ticks: 5
terrain:
  sea_level: 3
  default_height: 5
  legend: {".": 5, "~": 0}
  rows:
    - "..#..."
    - "..#~~."
    - "......"
    - "......"
classes:
  - {name: walker, footprint: [1, 1], max_water_depth: 0}
  - {name: swimmer, footprint: [1, 1], min_water_depth: 1}
types:
  - name: scout
    class: walker
    speed: 3
    turn_rate: 90
    hit_points: 1
    pieces: [{name: base}]
    script: "piece base\nfunc Create\n\treturn\n"
units:
  - {type: scout, owner: 1, at: [0, 0]}
  - {type: scout, owner: 1, at: [0, 3]}
commands:
  - {tick: 1, unit: 1, move: [5, 0]}
`

func pondSim(t *testing.T) *sim.Simulation {
	t.Helper()
	sc, err := config.ParseScenario([]byte(pond))
	require.NoError(t, err)
	world, err := sc.BuildWorld()
	require.NoError(t, err)
	s, err := sc.NewSimulation(world, core.DefaultConfig(), log.New(io.Discard))
	require.NoError(t, err)
	return s
}

func press(m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestKeyMap(t *testing.T) {
	k := DefaultKeyMap()
	tests := []struct {
		msg  tea.KeyMsg
		want core.Action
	}{
		{tea.KeyMsg{Type: tea.KeySpace}, core.ActionStep},
		{runes("n"), core.ActionStep},
		{runes("a"), core.ActionAutoplay},
		{tea.KeyMsg{Type: tea.KeyTab}, core.ActionNextUnit},
		{tea.KeyMsg{Type: tea.KeyShiftTab}, core.ActionPrevUnit},
		{runes("c"), core.ActionCycleClass},
		{runes("p"), core.ActionTogglePaths},
		{runes("?"), core.ActionHelp},
		{runes("q"), core.ActionQuit},
		{tea.KeyMsg{Type: tea.KeyCtrlC}, core.ActionQuit},
		{runes("z"), core.ActionNone},
	}
	for _, tt := range tests {
		t.Run(tt.msg.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, k.MapKey(tt.msg))
		})
	}
}

func TestInspectorStepsAndSelects(t *testing.T) {
	s := pondSim(t)
	m := NewModel(s, Options{Title: "pond"})
	defer m.Close()

	require.NotNil(t, m.Selected())
	assert.Equal(t, core.NewUnitID(1), m.Selected().ID)

	for range 3 {
		m, _ = press(m, tea.KeyMsg{Type: tea.KeySpace})
	}
	assert.Equal(t, core.GameTime(3), s.Now())
	assert.NotEmpty(t, m.events.tail(eventLogLines), "path result is logged")

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, core.NewUnitID(2), m.Selected().ID)
	m, _ = press(m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, core.NewUnitID(1), m.Selected().ID, "selection wraps")
	m, _ = press(m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, core.NewUnitID(2), m.Selected().ID)

	view := m.View()
	assert.Contains(t, view, "pond")
	assert.Contains(t, view, "hash")
	assert.Contains(t, view, "scout")

	m, cmd := press(m, runes("q"))
	assert.NotNil(t, cmd)
	assert.Empty(t, m.View())
}

func TestInspectorClassOverlayCycles(t *testing.T) {
	m := NewModel(pondSim(t), Options{})
	defer m.Close()

	_, ok := m.Overlay()
	assert.False(t, ok)

	m, _ = press(m, runes("c"))
	id, ok := m.Overlay()
	require.True(t, ok)
	def, _ := m.sim.World().Classes.Get(id)
	assert.Equal(t, "walker", def.Name)

	m, _ = press(m, runes("c"))
	id, _ = m.Overlay()
	def, _ = m.sim.World().Classes.Get(id)
	assert.Equal(t, "swimmer", def.Name)

	m, _ = press(m, runes("c"))
	_, ok = m.Overlay()
	assert.False(t, ok, "cycle returns to no overlay")
}

func TestInspectorAutoplay(t *testing.T) {
	s := pondSim(t)
	m := NewModel(s, Options{Ticks: 5})
	defer m.Close()

	m, cmd := press(m, runes("a"))
	require.NotNil(t, cmd)
	assert.True(t, m.Autoplay())

	next, _ := m.Update(TickMsg{Gen: m.gen - 1})
	m = next.(Model)
	assert.Equal(t, core.GameTime(0), s.Now(), "stale ticks are dropped")

	for range 10 {
		next, _ = m.Update(TickMsg{Gen: m.gen})
		m = next.(Model)
	}
	assert.Equal(t, core.GameTime(5), s.Now(), "autoplay stops at the tick limit")
	assert.False(t, m.Autoplay())

	m, _ = press(m, runes("a"))
	m, _ = press(m, runes("a"))
	assert.False(t, m.Autoplay())
}

func TestInspectorShowsVerifierFeed(t *testing.T) {
	feed := lockstep.NewChannelSession("spectator", 4)
	m := NewModel(pondSim(t), Options{Feed: feed})
	defer m.Close()
	require.NotNil(t, m.Init())

	next, cmd := m.Update(feedMsg{evt: lockstep.TickEvent{Tick: 7, Hashes: []uint64{1, 1, 1}}, ok: true})
	m = next.(Model)
	assert.NotNil(t, cmd, "keeps listening")
	assert.Contains(t, m.View(), "verify t7: 3 replicas in step")

	next, cmd = m.Update(feedMsg{})
	assert.Nil(t, cmd)
	assert.Contains(t, next.(Model).View(), "verify t7")
}

func TestDrawMap(t *testing.T) {
	s := pondSim(t)
	w := s.World()
	scr := core.NewScreen(w.Terrain.Width(), w.Terrain.Height())

	DrawMap(scr, 0, 0, w, s.Units(), MapOptions{})
	rows := strings.Split(scr.String(), "\n")
	require.Len(t, rows, 4)
	assert.Equal(t, 'S', []rune(rows[0])[0])
	assert.Equal(t, '#', []rune(rows[0])[2])
	assert.Equal(t, '~', []rune(rows[1])[4])

	walker, err := w.Classes.Resolve("walker")
	require.NoError(t, err)
	scr.Clear()
	DrawMap(scr, 0, 0, w, nil, MapOptions{Overlay: &walker})
	assert.Equal(t, core.Cell{Rune: 'x', Color: core.ColorBlocked}, scr.Get(4, 1))
	assert.Equal(t, '#', scr.Get(2, 0).Rune, "features keep their glyph")

	scr.Clear()
	DrawMap(scr, 0, 0, w, nil, MapOptions{Path: []grid.Point{grid.P(0, 2), grid.P(1, 2), grid.P(2, 2)}})
	assert.Equal(t, "S*G", strings.Split(scr.String(), "\n")[2][:3])
}
