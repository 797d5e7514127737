package board

import (
	"strings"

	"github.com/kesa0v0/WeimarPort/internal/game/faction"
)

// ContainerKind identifies the variant of a container.
type ContainerKind int

const (
	// KindCity is a board location bounded by its seat capacity.
	KindCity ContainerKind = iota
	KindReserve
	// KindCentralAuthority is the DR box collecting threat markers.
	KindCentralAuthority
	KindParliament
	KindOpinionTrack
	KindDisposed
	// KindUnavailable holds entities before their first placement.
	KindUnavailable
)

// String returns the string representation of the container kind.
func (k ContainerKind) String() string {
	switch k {
	case KindCity:
		return "CITY"
	case KindReserve:
		return "RESERVE"
	case KindCentralAuthority:
		return "CENTRAL_AUTHORITY"
	case KindParliament:
		return "PARLIAMENT"
	case KindOpinionTrack:
		return "OPINION_TRACK"
	case KindDisposed:
		return "DISPOSED"
	case KindUnavailable:
		return "UNAVAILABLE"
	default:
		return "UNKNOWN"
	}
}

// Well-known container ids.
const (
	UnavailableID      = "unavailable"
	DisposedID         = "disposed"
	CentralAuthorityID = "dr_box"
	ParliamentID       = "parliament"
	OpinionTrackID     = "opinion_track"
)

// CityID returns the container id of a city.
func CityID(name string) string {
	return "city:" + name
}

// ReserveID returns the container id of a faction reserve.
func ReserveID(f faction.Type) string {
	return "reserve:" + string(f)
}

// IsCityID reports whether id names a city container.
func IsCityID(id string) bool {
	return strings.HasPrefix(id, "city:")
}

type container struct {
	id       string
	kind     ContainerKind
	name     string
	capacity int
	owner    faction.Type
	members  []string
}

// counts reports whether e takes up capacity in c. Only bases occupy city seats.
func (c *container) counts(e Entity) bool {
	if c.kind == KindCity {
		return e.Kind() == KindBase
	}
	return true
}

func (c *container) bounded() bool {
	return c.capacity > 0
}

func (c *container) indexOf(entityID string) int {
	for i, id := range c.members {
		if id == entityID {
			return i
		}
	}
	return -1
}

func (c *container) remove(entityID string) bool {
	i := c.indexOf(entityID)
	if i < 0 {
		return false
	}
	c.members = append(c.members[:i], c.members[i+1:]...)
	return true
}

// ContainerInfo is a read-only snapshot of a container.
type ContainerInfo struct {
	ID        string
	Kind      ContainerKind
	Name      string
	Owner     faction.Type
	Capacity  int
	Occupancy int
	Members   []string
}

// Bounded reports whether the container has a capacity limit.
func (c ContainerInfo) Bounded() bool {
	return c.Capacity > 0
}

// Free returns the number of free slots, or -1 when unbounded.
func (c ContainerInfo) Free() int {
	if !c.Bounded() {
		return -1
	}
	return c.Capacity - c.Occupancy
}

// Len returns the number of members.
func (c ContainerInfo) Len() int {
	return len(c.Members)
}
