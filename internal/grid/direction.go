package grid

// Direction is one of the eight compass directions. The numeric order is
// the neighbour enumeration order of the pathfinder and must not change.
type Direction uint8

const (
	North Direction = iota
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
)

// Directions lists all directions in enumeration order.
var Directions = [8]Direction{North, NorthEast, East, SouthEast, South, SouthWest, West, NorthWest}

var dirVectors = [8]Point{
	{0, -1}, {1, -1}, {1, 0}, {1, 1},
	{0, 1}, {-1, 1}, {-1, 0}, {-1, -1},
}

// Vector returns the unit step for d.
func (d Direction) Vector() Point {
	return dirVectors[d&7]
}

// Diagonal reports whether d moves along both axes.
func (d Direction) Diagonal() bool {
	return d&1 == 1
}

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	return (d + 4) & 7
}

func (d Direction) String() string {
	switch d {
	case North:
		return "N"
	case NorthEast:
		return "NE"
	case East:
		return "E"
	case SouthEast:
		return "SE"
	case South:
		return "S"
	case SouthWest:
		return "SW"
	case West:
		return "W"
	case NorthWest:
		return "NW"
	default:
		return "?"
	}
}

// DirectionOf returns the direction of a unit step, or false if delta is not
// one of the eight unit steps.
func DirectionOf(delta Point) (Direction, bool) {
	for i, v := range dirVectors {
		if v == delta {
			return Direction(i), true
		}
	}
	return 0, false
}
