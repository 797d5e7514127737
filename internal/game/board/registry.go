package board

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/kesa0v0/WeimarPort/internal/game/faction"
	"github.com/kesa0v0/WeimarPort/internal/game/rules"
	"go.uber.org/zap"
)

var (
	// ErrNoCapacity is returned when a bounded container cannot take the entities.
	ErrNoCapacity = errors.New("no capacity")
	// ErrUnknownEntity is returned for an entity id that was never spawned.
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrUnknownContainer is returned for a container id that does not exist.
	ErrUnknownContainer = errors.New("unknown container")
	// ErrDuplicateEntity is returned when spawning an id twice.
	ErrDuplicateEntity = errors.New("duplicate entity")
)

// InvariantError reports that ownership bookkeeping disagrees with a caller's
// expectation. It must abort the running script.
type InvariantError struct {
	Op       string
	EntityID string
	Expected string
	Actual   string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated: %s %s: expected in %q, found in %q", e.Op, e.EntityID, e.Expected, e.Actual)
}

// Registry is the single owner of entity locations. Every membership change
// goes through it and is published as LOCATION_CHANGED.
type Registry struct {
	mu         sync.RWMutex
	bus        *rules.EventBus
	logger     *zap.Logger
	containers map[string]*container
	entities   map[string]Entity
	location   map[string]string
	sequence   map[string]int
}

// NewRegistry creates a registry with the fixed singleton containers and one
// reserve per faction. Cities are added with AddCity.
func NewRegistry(bus *rules.EventBus, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		bus:        bus,
		logger:     logger,
		containers: make(map[string]*container),
		entities:   make(map[string]Entity),
		location:   make(map[string]string),
		sequence:   make(map[string]int),
	}
	r.addContainer(&container{id: UnavailableID, kind: KindUnavailable, name: "Unavailable"})
	r.addContainer(&container{id: DisposedID, kind: KindDisposed, name: "Disposed"})
	r.addContainer(&container{id: CentralAuthorityID, kind: KindCentralAuthority, name: "DR Box"})
	r.addContainer(&container{id: ParliamentID, kind: KindParliament, name: "Parliament"})
	r.addContainer(&container{id: OpinionTrackID, kind: KindOpinionTrack, name: "Opinion Track"})
	for _, f := range faction.All {
		r.addContainer(&container{id: ReserveID(f), kind: KindReserve, name: string(f) + " Reserve", owner: f})
	}
	return r
}

func (r *Registry) addContainer(c *container) {
	r.containers[c.id] = c
}

// AddCity registers a bounded city. Capacity must be positive.
func (r *Registry) AddCity(name string, capacity int) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("city name must not be empty")
	}
	if capacity <= 0 {
		return fmt.Errorf("city %s: capacity must be positive, got %d", name, capacity)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := CityID(name)
	if _, exists := r.containers[id]; exists {
		return fmt.Errorf("city %s already registered", name)
	}
	r.addContainer(&container{id: id, kind: KindCity, name: name, capacity: capacity})
	return nil
}

// NextID returns a fresh entity id of the form prefix_N.
func (r *Registry) NextID(prefix string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		r.sequence[prefix]++
		id := fmt.Sprintf("%s_%d", prefix, r.sequence[prefix])
		if _, taken := r.entities[id]; !taken {
			return id
		}
	}
}

// Spawn registers a new entity in the Unavailable pool.
func (r *Registry) Spawn(e Entity) error {
	if e == nil || e.ID() == "" {
		return errors.New("spawn: entity must have an id")
	}
	r.mu.Lock()
	if _, exists := r.entities[e.ID()]; exists {
		r.mu.Unlock()
		return fmt.Errorf("spawn %s: %w", e.ID(), ErrDuplicateEntity)
	}
	r.entities[e.ID()] = e
	r.location[e.ID()] = UnavailableID
	pool := r.containers[UnavailableID]
	pool.members = append(pool.members, e.ID())
	r.mu.Unlock()

	evt := rules.NewEvent(rules.EventEntitySpawned, e.ID(), string(e.Faction()))
	evt.To = UnavailableID
	evt.Data = e.DataID()
	r.publish(evt)
	return nil
}

// SpawnInto spawns e and moves it to the container to.
func (r *Registry) SpawnInto(e Entity, to string) error {
	if err := r.Spawn(e); err != nil {
		return err
	}
	return r.Move(e.ID(), to)
}

// Move relocates an entity atomically. The destination capacity is checked
// before anything changes. Moving an entity to its current container is a no-op.
func (r *Registry) Move(entityID, to string) error {
	return r.move(entityID, "", to)
}

// MoveFrom is Move with an ownership assertion: the entity must currently be
// in from, otherwise an *InvariantError is returned and nothing changes.
func (r *Registry) MoveFrom(entityID, from, to string) error {
	if from == "" {
		return &InvariantError{Op: "remove", EntityID: entityID, Expected: from}
	}
	return r.move(entityID, from, to)
}

func (r *Registry) move(entityID, from, to string) error {
	r.mu.Lock()
	evt, err := r.moveLocked(entityID, from, to)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	if evt != nil {
		r.logger.Debug("entity moved",
			zap.String("entity_id", entityID),
			zap.String("from", evt.From),
			zap.String("to", to),
		)
		r.publish(*evt)
	}
	return nil
}

func (r *Registry) moveLocked(entityID, from, to string) (*rules.Event, error) {
	e, ok := r.entities[entityID]
	if !ok {
		return nil, fmt.Errorf("move %s: %w", entityID, ErrUnknownEntity)
	}
	dst, ok := r.containers[to]
	if !ok {
		return nil, fmt.Errorf("move %s to %s: %w", entityID, to, ErrUnknownContainer)
	}
	current := r.location[entityID]
	if from != "" && from != current {
		return nil, &InvariantError{Op: "remove", EntityID: entityID, Expected: from, Actual: current}
	}
	if current == to {
		return nil, nil
	}
	if dst.bounded() && dst.counts(e) && r.occupancyLocked(dst)+1 > dst.capacity {
		return nil, fmt.Errorf("move %s to %s: %w", entityID, to, ErrNoCapacity)
	}
	src := r.containers[current]
	if src == nil || !src.remove(entityID) {
		return nil, &InvariantError{Op: "remove", EntityID: entityID, Expected: current, Actual: ""}
	}
	dst.members = append(dst.members, entityID)
	r.location[entityID] = to

	evt := rules.NewLocationEvent(entityID, string(e.Faction()), current, to)
	evt.Data = e.DataID()
	return &evt, nil
}

// PlaceAll moves every entity into city, or none of them. The capacity check
// occupancy+count <= capacity is done once up front.
func (r *Registry) PlaceAll(entityIDs []string, city string) error {
	r.mu.Lock()
	dst, ok := r.containers[city]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("place into %s: %w", city, ErrUnknownContainer)
	}
	incoming := 0
	for _, id := range entityIDs {
		e, ok := r.entities[id]
		if !ok {
			r.mu.Unlock()
			return fmt.Errorf("place %s: %w", id, ErrUnknownEntity)
		}
		if r.location[id] != city && dst.counts(e) {
			incoming++
		}
	}
	if dst.bounded() && r.occupancyLocked(dst)+incoming > dst.capacity {
		r.mu.Unlock()
		return fmt.Errorf("place %d into %s: %w", incoming, city, ErrNoCapacity)
	}
	events := make([]rules.Event, 0, len(entityIDs))
	for _, id := range entityIDs {
		evt, err := r.moveLocked(id, "", city)
		if err != nil {
			r.mu.Unlock()
			r.publishAll(events)
			return err
		}
		if evt != nil {
			events = append(events, *evt)
		}
	}
	r.mu.Unlock()
	r.publishAll(events)
	return nil
}

// SetController changes the controlling faction of a unit.
func (r *Registry) SetController(unitID string, f faction.Type) (faction.Type, error) {
	r.mu.Lock()
	e, ok := r.entities[unitID]
	if !ok {
		r.mu.Unlock()
		return faction.None, fmt.Errorf("set controller %s: %w", unitID, ErrUnknownEntity)
	}
	u, ok := e.(*Unit)
	if !ok {
		r.mu.Unlock()
		return faction.None, fmt.Errorf("set controller %s: not a unit", unitID)
	}
	prev := u.controller
	u.controller = f
	r.mu.Unlock()

	evt := rules.NewEvent(rules.EventUnitControlChanged, unitID, string(f))
	evt.From = string(prev)
	evt.To = string(f)
	r.publish(evt)
	return prev, nil
}

// SetFlipped sets the flip state of a marker. MARKER_FLIPPED is published
// only when the state changes.
func (r *Registry) SetFlipped(markerID string, flipped bool) error {
	r.mu.Lock()
	e, ok := r.entities[markerID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("flip %s: %w", markerID, ErrUnknownEntity)
	}
	m, ok := e.(*Marker)
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("flip %s: not a marker", markerID)
	}
	changed := m.flipped != flipped
	m.flipped = flipped
	r.mu.Unlock()

	if changed {
		evt := rules.NewEvent(rules.EventMarkerFlipped, markerID, string(m.Faction()))
		evt.Data = m.DataID()
		evt.From = strconv.FormatBool(!flipped)
		evt.To = strconv.FormatBool(flipped)
		r.publish(evt)
	}
	return nil
}

// IsFlipped reports the flip state of a marker.
func (r *Registry) IsFlipped(markerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.entities[markerID].(*Marker); ok {
		return m.flipped
	}
	return false
}

func (r *Registry) publish(evt rules.Event) {
	if r.bus != nil {
		r.bus.Publish(evt)
	}
}

func (r *Registry) publishAll(events []rules.Event) {
	if r.bus != nil {
		r.bus.PublishBatch(events)
	}
}

func (r *Registry) occupancyLocked(c *container) int {
	if c.kind != KindCity {
		return len(c.members)
	}
	n := 0
	for _, id := range c.members {
		if c.counts(r.entities[id]) {
			n++
		}
	}
	return n
}

func (r *Registry) infoLocked(c *container) ContainerInfo {
	return ContainerInfo{
		ID:        c.id,
		Kind:      c.kind,
		Name:      c.name,
		Owner:     c.owner,
		Capacity:  c.capacity,
		Occupancy: r.occupancyLocked(c),
		Members:   append([]string(nil), c.members...),
	}
}

// Entity returns the entity with the given id.
func (r *Registry) Entity(id string) (Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[id]
	return e, ok
}

// LocationOf returns the id of the container holding the entity.
func (r *Registry) LocationOf(entityID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	loc, ok := r.location[entityID]
	return loc, ok
}

// Container returns a snapshot of the container with the given id.
func (r *Registry) Container(id string) (ContainerInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.containers[id]
	if !ok {
		return ContainerInfo{}, false
	}
	return r.infoLocked(c), true
}

// Containers returns snapshots of every container of kind, ordered by id.
func (r *Registry) Containers(kind ContainerKind) []ContainerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ContainerInfo
	for _, c := range r.containers {
		if c.kind == kind {
			out = append(out, r.infoLocked(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Cities returns every city, ordered by id.
func (r *Registry) Cities() []ContainerInfo {
	return r.Containers(KindCity)
}

// FindCity looks a city up by display name, case-insensitively.
func (r *Registry) FindCity(name string) (ContainerInfo, bool) {
	name = strings.TrimSpace(name)
	if c, ok := r.Container(CityID(name)); ok {
		return c, true
	}
	for _, c := range r.Cities() {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ContainerInfo{}, false
}

// EntitiesIn returns the members of a container in insertion order.
func (r *Registry) EntitiesIn(containerID string) []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.containers[containerID]
	if !ok {
		return nil
	}
	out := make([]Entity, 0, len(c.members))
	for _, id := range c.members {
		out = append(out, r.entities[id])
	}
	return out
}

// Find returns the first entity in containerID matching kind and dataID.
// An empty dataID matches any entity of kind.
func (r *Registry) Find(containerID string, kind Kind, dataID string) (Entity, bool) {
	want := NormalizeDataID(dataID)
	for _, e := range r.EntitiesIn(containerID) {
		if e.Kind() == kind && (want == "" || NormalizeDataID(e.DataID()) == want) {
			return e, true
		}
	}
	return nil, false
}

// Available returns the first entity of kind and dataID waiting in the
// unavailable pool.
func (r *Registry) Available(kind Kind, dataID string) (Entity, bool) {
	return r.Find(UnavailableID, kind, dataID)
}

// BasesIn returns the ids of the bases f owns in containerID.
func (r *Registry) BasesIn(containerID string, f faction.Type) []string {
	var out []string
	for _, e := range r.EntitiesIn(containerID) {
		if e.Kind() == KindBase && e.Faction() == f {
			out = append(out, e.ID())
		}
	}
	return out
}

// BaseOwners returns the factions owning at least one base in containerID,
// in order of first appearance.
func (r *Registry) BaseOwners(containerID string) []faction.Type {
	seen := make(map[faction.Type]bool)
	var out []faction.Type
	for _, e := range r.EntitiesIn(containerID) {
		if e.Kind() == KindBase && !seen[e.Faction()] {
			seen[e.Faction()] = true
			out = append(out, e.Faction())
		}
	}
	return out
}

// EntityIDs returns every entity id in sorted order.
func (r *Registry) EntityIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entities))
	for id := range r.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CheckInvariants audits single ownership and capacity. It returns the first
// violation found.
func (r *Registry) CheckInvariants() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owners := make(map[string]string, len(r.entities))
	for _, c := range r.containers {
		for _, id := range c.members {
			if prev, dup := owners[id]; dup {
				return &InvariantError{Op: "audit", EntityID: id, Expected: prev, Actual: c.id}
			}
			owners[id] = c.id
		}
		if c.bounded() && r.occupancyLocked(c) > c.capacity {
			return fmt.Errorf("container %s over capacity: %d > %d", c.id, r.occupancyLocked(c), c.capacity)
		}
	}
	for id := range r.entities {
		got, ok := owners[id]
		if !ok {
			return &InvariantError{Op: "audit", EntityID: id, Expected: r.location[id], Actual: ""}
		}
		if got != r.location[id] {
			return &InvariantError{Op: "audit", EntityID: id, Expected: r.location[id], Actual: got}
		}
	}
	return nil
}
