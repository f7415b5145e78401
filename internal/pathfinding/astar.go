// Package pathfinding implements deterministic A* over the terrain grid and
// a request service that computes paths on worker goroutines while applying
// results in a fixed order.
package pathfinding

import (
	"github.com/vovakirdan/lockstep/internal/grid"
)

// Space is the area a search runs over. Implementations must be read-only
// for the duration of a search and safe for concurrent readers.
type Space interface {
	Width() int
	Height() int
	// Walkable reports whether the searching unit may stand at p.
	Walkable(p grid.Point) bool
	// Rough reports whether entering p costs double.
	Rough(p grid.Point) bool
}

// Request describes one search.
type Request struct {
	Start grid.Point
	Goal  grid.Point
	// GoalRadius accepts any cell within this Chebyshev distance of Goal.
	GoalRadius int
	// Budget caps the number of expanded cells. Zero means the cell count
	// of the space.
	Budget int
}

// Status is the outcome of a search.
type Status int

const (
	// NoPath means the goal is unreachable or the budget ran out. It is an
	// ordinary result.
	NoPath Status = iota
	Found
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case NoPath:
		return "no-path"
	default:
		return "unknown"
	}
}

// Path is a route from start to goal, both inclusive.
type Path struct {
	Waypoints []grid.Point
	Cost      PathCost
}

// Result is returned by FindPath.
type Result struct {
	Status   Status
	Path     Path
	Expanded int
}

// Found reports whether the search succeeded.
func (r Result) Found() bool {
	return r.Status == Found
}

var (
	straightStep = grid.OctileDistance{Straight: 1}
	diagonalStep = grid.OctileDistance{Diagonal: 1}
)

const noDirection = 0xFF

// FindPath runs A* from req.Start toward req.Goal. Neighbours are enumerated
// in compass order and equal-cost frontier entries are expanded in discovery
// order, so the same inputs always produce the same path. Diagonal steps
// require both adjacent orthogonal cells to be walkable.
func FindPath(space Space, req Request) Result {
	w, h := space.Width(), space.Height()
	bounds := grid.New[struct{}](w, h)
	if !bounds.InBounds(req.Start) {
		return Result{Status: NoPath}
	}

	budget := req.Budget
	if budget <= 0 {
		budget = w * h
	}

	n := w * h
	cost := make([]PathCost, n)
	seen := make([]bool, n)
	closed := make([]bool, n)
	parent := make([]int32, n)
	arrived := make([]uint8, n)

	startIdx := bounds.Index(req.Start)
	seen[startIdx] = true
	parent[startIdx] = -1
	arrived[startIdx] = noDirection

	var open openHeap
	var seq uint64
	open.push(openEntry{idx: startIdx, f: PathCost{Distance: heuristic(req, req.Start)}, seq: seq})

	expanded := 0
	for len(open) > 0 {
		e := open.pop()
		if closed[e.idx] {
			continue
		}
		closed[e.idx] = true
		p := bounds.PointAt(e.idx)

		if atGoal(req, p) {
			return Result{
				Status:   Found,
				Path:     Path{Waypoints: unwind(bounds, parent, e.idx), Cost: cost[e.idx]},
				Expanded: expanded,
			}
		}

		expanded++
		if expanded > budget {
			break
		}

		for _, d := range grid.Directions {
			np := p.Step(d)
			if !bounds.InBounds(np) || !space.Walkable(np) {
				continue
			}
			nIdx := bounds.Index(np)
			if closed[nIdx] {
				continue
			}
			if d.Diagonal() {
				v := d.Vector()
				if !space.Walkable(grid.P(p.X+v.X, p.Y)) || !space.Walkable(grid.P(p.X, p.Y+v.Y)) {
					continue
				}
			}

			step := PathCost{Distance: straightStep}
			if d.Diagonal() {
				step.Distance = diagonalStep
			}
			if space.Rough(np) {
				step.Distance = step.Distance.Add(step.Distance)
			}
			if prev := arrived[e.idx]; prev != noDirection && grid.Direction(prev) != d {
				step.Turns = 1
			}

			g := cost[e.idx].Add(step)
			if seen[nIdx] && !g.Less(cost[nIdx]) {
				continue
			}
			seen[nIdx] = true
			cost[nIdx] = g
			parent[nIdx] = int32(e.idx)
			arrived[nIdx] = uint8(d)

			seq++
			f := g.Add(PathCost{Distance: heuristic(req, np)})
			open.push(openEntry{idx: nIdx, f: f, seq: seq})
		}
	}

	return Result{Status: NoPath, Expanded: expanded}
}

// heuristic is the octile distance to the nearest accepted goal cell. It
// never overestimates, so the first goal cell popped is optimal.
func heuristic(req Request, p grid.Point) grid.OctileDistance {
	r := req.GoalRadius
	target := grid.P(
		min(max(p.X, req.Goal.X-r), req.Goal.X+r),
		min(max(p.Y, req.Goal.Y-r), req.Goal.Y+r),
	)
	return grid.OctileDistanceBetween(p, target)
}

func atGoal(req Request, p grid.Point) bool {
	d := p.Sub(req.Goal)
	return max(abs(d.X), abs(d.Y)) <= req.GoalRadius
}

func unwind[T any](g *grid.Grid[T], parent []int32, idx int) []grid.Point {
	var rev []grid.Point
	for i := int32(idx); i >= 0; i = parent[i] {
		rev = append(rev, g.PointAt(int(i)))
	}
	path := make([]grid.Point, len(rev))
	for i, p := range rev {
		path[len(rev)-1-i] = p
	}
	return path
}

// Simplify keeps the endpoints of a path and every waypoint where the
// direction of travel changes.
func Simplify(waypoints []grid.Point) []grid.Point {
	if len(waypoints) <= 2 {
		return append([]grid.Point(nil), waypoints...)
	}
	out := []grid.Point{waypoints[0]}
	for i := 1; i < len(waypoints)-1; i++ {
		in := waypoints[i].Sub(waypoints[i-1])
		next := waypoints[i+1].Sub(waypoints[i])
		if in != next {
			out = append(out, waypoints[i])
		}
	}
	return append(out, waypoints[len(waypoints)-1])
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
