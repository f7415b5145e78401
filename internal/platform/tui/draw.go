package tui

import (
	"unicode"

	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/grid"
	"github.com/vovakirdan/lockstep/internal/movement"
	"github.com/vovakirdan/lockstep/internal/sim"
)

// Terrain glyph thresholds, in heightmap units.
const (
	steepSlope = 8
	deepWater  = 3
)

// MapOptions selects what DrawMap overlays on the terrain.
type MapOptions struct {
	// Overlay marks cells the class cannot stand on. Nil draws plain
	// terrain.
	Overlay *core.MovementClassID
	// Selected is highlighted; the zero id selects nothing.
	Selected  core.UnitID
	ShowPaths bool
	// Path is drawn with S, G and '*' markers, as the path command does.
	Path []grid.Point
}

// DrawMap draws the terrain at (ox, oy) with one character per cell, then
// the requested overlays and units.
func DrawMap(scr *core.Screen, ox, oy int, w *sim.World, units []*sim.Unit, opts MapOptions) {
	t := w.Terrain
	var walkable *grid.Grid[bool]
	if opts.Overlay != nil {
		walkable, _ = w.Collision.Grid(*opts.Overlay)
	}

	for y := range t.Height() {
		for x := range t.Width() {
			r, c := terrainGlyph(t, x, y)
			if walkable != nil && !t.Blocked(grid.P(x, y)) && !walkable.Get(grid.P(x, y)) {
				r, c = 'x', core.ColorBlocked
			}
			scr.Set(ox+x, oy+y, r, c)
		}
	}

	if opts.ShowPaths {
		for _, u := range units {
			for _, p := range u.Waypoints {
				scr.Set(ox+p.X, oy+p.Y, '·', core.ColorPath)
			}
		}
	}
	for i, p := range opts.Path {
		r := '*'
		switch i {
		case 0:
			r = 'S'
		case len(opts.Path) - 1:
			r = 'G'
		}
		scr.Set(ox+p.X, oy+p.Y, r, core.ColorPath)
	}

	for _, u := range units {
		if u.Attached != nil {
			continue
		}
		cell := u.Cell()
		r := unitGlyph(u)
		c := core.ColorUnit
		switch {
		case u.ID == opts.Selected:
			c = core.ColorSelected
		case u.Env.Faulted():
			c = core.ColorFaulted
		}
		scr.Set(ox+cell.X, oy+cell.Y, r, c)
	}
}

func terrainGlyph(t *movement.Terrain, x, y int) (rune, core.Color) {
	if t.Blocked(grid.P(x, y)) {
		return '#', core.ColorFeature
	}
	avg := (t.Corner(x, y) + t.Corner(x+1, y) + t.Corner(x, y+1) + t.Corner(x+1, y+1)) / 4
	switch depth := t.SeaLevel - avg; {
	case depth >= deepWater:
		return '≈', core.ColorDeepWater
	case depth > 0:
		return '~', core.ColorShallow
	}
	if t.Slope(x, y) >= steepSlope {
		return '^', core.ColorSteep
	}
	return '.', core.ColorLand
}

func unitGlyph(u *sim.Unit) rune {
	for _, r := range u.Type.Name {
		return unicode.ToUpper(r)
	}
	return '@'
}
