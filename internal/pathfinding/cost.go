package pathfinding

import (
	"fmt"

	"github.com/vovakirdan/lockstep/internal/grid"
)

// PathCost is the accumulated cost of a route: its octile distance plus the
// number of direction changes. Turns only break ties between routes of equal
// distance, which keeps paths straight without affecting optimality.
type PathCost struct {
	Distance grid.OctileDistance
	Turns    int
}

// Add returns the sum of two costs.
func (c PathCost) Add(o PathCost) PathCost {
	return PathCost{Distance: c.Distance.Add(o.Distance), Turns: c.Turns + o.Turns}
}

// Compare orders by distance, then by turns.
func (c PathCost) Compare(o PathCost) int {
	if d := c.Distance.Compare(o.Distance); d != 0 {
		return d
	}
	switch {
	case c.Turns < o.Turns:
		return -1
	case c.Turns > o.Turns:
		return 1
	}
	return 0
}

// Less reports whether c orders before o.
func (c PathCost) Less(o PathCost) bool {
	return c.Compare(o) < 0
}

func (c PathCost) String() string {
	return fmt.Sprintf("%s turns=%d", c.Distance, c.Turns)
}
