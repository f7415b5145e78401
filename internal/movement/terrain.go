package movement

import (
	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/fixed"
	"github.com/vovakirdan/lockstep/internal/grid"
)

// Terrain is the static map: a heightmap of cell corners, a sea level, and a
// mask of cells blocked by features. A map of W×H cells has (W+1)×(H+1)
// corner heights. Cell (x, y) spans corners (x, y) to (x+1, y+1).
type Terrain struct {
	Heights  *grid.Grid[uint8]
	SeaLevel int
	Features *grid.Grid[bool]
}

// NewTerrain creates a flat terrain of w×h cells at the given height.
func NewTerrain(w, h int, height uint8, seaLevel int) *Terrain {
	return &Terrain{
		Heights:  grid.NewFilled(w+1, h+1, height),
		SeaLevel: seaLevel,
		Features: grid.New[bool](w, h),
	}
}

// Width returns the number of cell columns.
func (t *Terrain) Width() int {
	return t.Heights.W - 1
}

// Height returns the number of cell rows.
func (t *Terrain) Height() int {
	return t.Heights.H - 1
}

// InBounds reports whether cell p exists.
func (t *Terrain) InBounds(p grid.Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < t.Width() && p.Y < t.Height()
}

// Corner returns the height of corner (x, y).
func (t *Terrain) Corner(x, y int) int {
	return int(t.Heights.Get(grid.P(x, y)))
}

// Slope returns max-min over the four corners of cell (x, y).
func (t *Terrain) Slope(x, y int) int {
	lo, hi := 255, 0
	for dy := 0; dy < 2; dy++ {
		for dx := 0; dx < 2; dx++ {
			h := t.Corner(x+dx, y+dy)
			lo = min(lo, h)
			hi = max(hi, h)
		}
	}
	return hi - lo
}

// WaterDepth returns how far corner (x, y) lies below sea level, or 0.
func (t *Terrain) WaterDepth(x, y int) int {
	h := t.Corner(x, y)
	if h < t.SeaLevel {
		return t.SeaLevel - h
	}
	return 0
}

// AreaUnderWater reports whether any corner of the cells in r is below sea
// level.
func (t *Terrain) AreaUnderWater(r core.DiscreteRect) bool {
	under := false
	core.NewRect(r.X, r.Y, r.W+1, r.H+1).Cells(func(x, y int) bool {
		if t.Corner(x, y) < t.SeaLevel {
			under = true
			return false
		}
		return true
	})
	return under
}

// BlockFeature marks the cells of r as occupied by a feature.
func (t *Terrain) BlockFeature(r core.DiscreteRect) {
	r.Cells(func(x, y int) bool {
		t.Features.Set(grid.P(x, y), true)
		return true
	})
}

// Blocked reports whether a feature occupies cell p.
func (t *Terrain) Blocked(p grid.Point) bool {
	return t.Features.Get(p)
}

// AdjacentToFeature reports whether any cell bordering r holds a feature.
// The pathfinder treats such cells as rough terrain.
func (t *Terrain) AdjacentToFeature(r core.DiscreteRect) bool {
	found := false
	r.Expand(1).Cells(func(x, y int) bool {
		if !r.Contains(x, y) && t.Features.Get(grid.P(x, y)) {
			found = true
			return false
		}
		return true
	})
	return found
}

// HeightAt samples the ground height at a world position by bilinear
// interpolation of the surrounding corners. One world unit is one cell.
// Positions outside the map clamp to the border.
func (t *Terrain) HeightAt(x, z fixed.Scalar) fixed.Scalar {
	maxX := fixed.FromInt(t.Width())
	maxZ := fixed.FromInt(t.Height())
	x = fixed.Clamp(x, 0, maxX-fixed.Epsilon)
	z = fixed.Clamp(z, 0, maxZ-fixed.Epsilon)

	cx, cz := x.Floor(), z.Floor()
	fx := x.Sub(fixed.FromInt(cx))
	fz := z.Sub(fixed.FromInt(cz))

	h00 := fixed.FromInt(t.Corner(cx, cz))
	h10 := fixed.FromInt(t.Corner(cx+1, cz))
	h01 := fixed.FromInt(t.Corner(cx, cz+1))
	h11 := fixed.FromInt(t.Corner(cx+1, cz+1))

	top := h00.Add(h10.Sub(h00).Mul(fx))
	bottom := h01.Add(h11.Sub(h01).Mul(fx))
	return top.Add(bottom.Sub(top).Mul(fz))
}
