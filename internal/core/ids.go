package core

import (
	"fmt"
	"strconv"
	"unsafe"
)

// Unsigned is the set of primitives an Opaque id may wrap.
type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Opaque is a strongly typed identifier. Two instantiations with different
// Tag types are distinct types, so a UnitID cannot be assigned to a
// FeatureID or used as a plain integer without an explicit call to Value.
type Opaque[V Unsigned, Tag any] struct {
	value V
}

// NewOpaque wraps a raw value.
func NewOpaque[V Unsigned, Tag any](v V) Opaque[V, Tag] {
	return Opaque[V, Tag]{value: v}
}

// Value returns the wrapped primitive.
func (id Opaque[V, Tag]) Value() V {
	return id.value
}

// Less orders ids by their raw value.
func (id Opaque[V, Tag]) Less(other Opaque[V, Tag]) bool {
	return id.value < other.value
}

// Next returns the id following this one.
func (id Opaque[V, Tag]) Next() Opaque[V, Tag] {
	return Opaque[V, Tag]{value: id.value + 1}
}

func (id Opaque[V, Tag]) String() string {
	return strconv.FormatUint(uint64(id.value), 10)
}

// MarshalText implements encoding.TextMarshaler.
func (id Opaque[V, Tag]) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Opaque[V, Tag]) UnmarshalText(text []byte) error {
	parsed, err := ParseOpaque[V, Tag](string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseOpaque parses a decimal id, rejecting values that do not fit V.
func ParseOpaque[V Unsigned, Tag any](s string) (Opaque[V, Tag], error) {
	var zero V
	n, err := strconv.ParseUint(s, 10, int(unsafe.Sizeof(zero))*8)
	if err != nil {
		return Opaque[V, Tag]{}, fmt.Errorf("core: invalid id %q: %w", s, err)
	}
	return Opaque[V, Tag]{value: V(n)}, nil
}

type (
	unitTag          struct{}
	featureTag       struct{}
	playerTag        struct{}
	movementClassTag struct{}
	projectileTag    struct{}
)

// Simulation id types.
type (
	UnitID          = Opaque[uint32, unitTag]
	FeatureID       = Opaque[uint32, featureTag]
	PlayerID        = Opaque[uint32, playerTag]
	MovementClassID = Opaque[uint32, movementClassTag]
	ProjectileID    = Opaque[uint32, projectileTag]
)

func NewUnitID(v uint32) UnitID                   { return UnitID{value: v} }
func NewFeatureID(v uint32) FeatureID             { return FeatureID{value: v} }
func NewPlayerID(v uint32) PlayerID               { return PlayerID{value: v} }
func NewMovementClassID(v uint32) MovementClassID { return MovementClassID{value: v} }
func NewProjectileID(v uint32) ProjectileID       { return ProjectileID{value: v} }
