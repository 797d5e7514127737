package board

import "github.com/kesa0v0/WeimarPort/internal/game/faction"

// Kind classifies a placeable entity.
type Kind int

const (
	KindUnit Kind = iota
	KindMarker
	// KindBase is a party base occupying a city seat.
	KindBase
	// KindSeat is a parliament seat.
	KindSeat
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindUnit:
		return "UNIT"
	case KindMarker:
		return "MARKER"
	case KindBase:
		return "BASE"
	case KindSeat:
		return "SEAT"
	default:
		return "UNKNOWN"
	}
}

// Entity is a placeable game piece. Its location is owned by the Registry.
type Entity interface {
	ID() string
	Kind() Kind
	Faction() faction.Type
	DataID() string
}

// UnitType is the immutable data of a unit.
type UnitType struct {
	DataID       string
	Name         string
	Strength     int
	Affiliation  faction.Type
	IsGovernment bool
	Flippable    bool
}

// Unit is a military or paramilitary piece with a mutable controller.
type Unit struct {
	id         string
	Type       *UnitType
	controller faction.Type
}

// NewUnit creates a unit controlled by its type's affiliation.
func NewUnit(id string, ut *UnitType) *Unit {
	return &Unit{id: id, Type: ut, controller: ut.Affiliation}
}

func (u *Unit) ID() string            { return u.id }
func (u *Unit) Kind() Kind            { return KindUnit }
func (u *Unit) Faction() faction.Type { return u.controller }
func (u *Unit) DataID() string        { return u.Type.DataID }

// MarkerCategory groups marker types.
type MarkerCategory string

const (
	MarkerThreat MarkerCategory = "threat"
	MarkerIssue  MarkerCategory = "issue"
)

// MarkerType is the immutable data of a marker.
type MarkerType struct {
	DataID   string
	Category MarkerCategory
	Name     string
	Faction  faction.Type
}

// Marker is a threat or issue token. Flipped markers show their reverse side.
type Marker struct {
	id      string
	Type    *MarkerType
	flipped bool
}

// NewMarker creates an unflipped marker.
func NewMarker(id string, mt *MarkerType) *Marker {
	return &Marker{id: id, Type: mt}
}

func (m *Marker) ID() string            { return m.id }
func (m *Marker) Kind() Kind            { return KindMarker }
func (m *Marker) Faction() faction.Type { return m.Type.Faction }
func (m *Marker) DataID() string        { return m.Type.DataID }

// Base is a party base. In a city it occupies one seat.
type Base struct {
	id    string
	owner faction.Type
}

// NewBase creates a party base owned by f.
func NewBase(id string, f faction.Type) *Base {
	return &Base{id: id, owner: f}
}

func (b *Base) ID() string            { return b.id }
func (b *Base) Kind() Kind            { return KindBase }
func (b *Base) Faction() faction.Type { return b.owner }
func (b *Base) DataID() string        { return "PartyBase" }

// Seat is a parliament seat.
type Seat struct {
	id    string
	owner faction.Type
}

// NewSeat creates a parliament seat owned by f.
func NewSeat(id string, f faction.Type) *Seat {
	return &Seat{id: id, owner: f}
}

func (s *Seat) ID() string            { return s.id }
func (s *Seat) Kind() Kind            { return KindSeat }
func (s *Seat) Faction() faction.Type { return s.owner }
func (s *Seat) DataID() string        { return "ParliamentSeat" }
