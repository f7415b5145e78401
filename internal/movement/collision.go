package movement

import (
	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/grid"
)

// CollisionService caches one walkability grid per movement class. Grids are
// computed once from the static terrain and are read-only afterwards, so the
// service is safe for concurrent readers such as path workers.
type CollisionService struct {
	terrain *Terrain
	grids   map[core.MovementClassID]*grid.Grid[bool]
}

// NewCollisionService precomputes grids for every class in db.
func NewCollisionService(t *Terrain, db *Database) *CollisionService {
	s := &CollisionService{
		terrain: t,
		grids:   make(map[core.MovementClassID]*grid.Grid[bool]),
	}
	for _, e := range db.List() {
		s.grids[e.ID] = ComputeWalkableGrid(t, e.Class)
	}
	return s
}

// Terrain returns the terrain the grids were computed from.
func (s *CollisionService) Terrain() *Terrain {
	return s.terrain
}

// IsWalkable reports whether a unit of the class may stand at p. Unknown
// classes are never walkable.
func (s *CollisionService) IsWalkable(id core.MovementClassID, p grid.Point) bool {
	g, ok := s.grids[id]
	if !ok {
		return false
	}
	return g.Get(p)
}

// Grid returns the walkability grid of a class.
func (s *CollisionService) Grid(id core.MovementClassID) (*grid.Grid[bool], bool) {
	g, ok := s.grids[id]
	return g, ok
}

// ClassSpace is the search space of one movement class. It satisfies the
// pathfinder's Space interface.
type ClassSpace struct {
	terrain  *Terrain
	walkable *grid.Grid[bool]
	class    ClassDefinition
}

// Space returns the search space of a class. Unknown classes yield a space
// where nothing is walkable.
func (s *CollisionService) Space(id core.MovementClassID, db *Database) ClassSpace {
	def, _ := db.Get(id)
	g, ok := s.grids[id]
	if !ok {
		g = grid.New[bool](s.terrain.Width(), s.terrain.Height())
	}
	return ClassSpace{terrain: s.terrain, walkable: g, class: def}
}

func (c ClassSpace) Width() int  { return c.walkable.W }
func (c ClassSpace) Height() int { return c.walkable.H }

func (c ClassSpace) Walkable(p grid.Point) bool {
	return c.walkable.Get(p)
}

// Rough reports whether the footprint at p borders a feature.
func (c ClassSpace) Rough(p grid.Point) bool {
	return c.terrain.AdjacentToFeature(core.NewRect(p.X, p.Y, c.class.FootprintX, c.class.FootprintZ))
}

// FootprintSpace is the search space of a unit without a movement class.
// Only the map edge and features restrict it.
type FootprintSpace struct {
	terrain    *Terrain
	footprintX int
	footprintZ int
}

// FootprintSpace returns the unrestricted space for a footprint. Nothing is
// cached; FootprintFits is cheap enough to evaluate per expansion.
func (s *CollisionService) FootprintSpace(footprintX, footprintZ int) FootprintSpace {
	return FootprintSpace{terrain: s.terrain, footprintX: footprintX, footprintZ: footprintZ}
}

func (f FootprintSpace) Width() int  { return f.terrain.Width() }
func (f FootprintSpace) Height() int { return f.terrain.Height() }

func (f FootprintSpace) Walkable(p grid.Point) bool {
	return FootprintFits(f.terrain, f.footprintX, f.footprintZ, p)
}

// Rough reports whether the footprint at p borders a feature.
func (f FootprintSpace) Rough(p grid.Point) bool {
	return f.terrain.AdjacentToFeature(core.NewRect(p.X, p.Y, f.footprintX, f.footprintZ))
}
