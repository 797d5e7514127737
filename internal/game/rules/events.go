package rules

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType indicates the category of a rules event.
type EventType string

const (
	// Entity / container events
	EventEntitySpawned   EventType = "ENTITY_SPAWNED"
	EventLocationChanged EventType = "LOCATION_CHANGED"

	// Selection protocol events
	EventSelectionRequested EventType = "SELECTION_REQUESTED"
	EventSelectionMade      EventType = "SELECTION_MADE"
	EventSelectionCancelled EventType = "SELECTION_CANCELLED"

	// Faction / board state events
	EventVPChanged                EventType = "VP_CHANGED"
	EventReserveChanged           EventType = "RESERVE_CHANGED"
	EventTrackMoved               EventType = "TRACK_MOVED"
	EventFlagPlaced               EventType = "FLAG_PLACED"
	EventMinorPartyControlChanged EventType = "MINOR_PARTY_CONTROL_CHANGED"
	EventUnitControlChanged       EventType = "UNIT_CONTROL_CHANGED"
	EventThresholdReached         EventType = "THRESHOLD_REACHED"
	EventMarkerFlipped            EventType = "MARKER_FLIPPED"

	// Script lifecycle events
	EventScriptStarted   EventType = "SCRIPT_STARTED"
	EventScriptCompleted EventType = "SCRIPT_COMPLETED"
	EventCommandSkipped  EventType = "COMMAND_SKIPPED"

	// Round structure events
	EventRoundStarted EventType = "ROUND_STARTED"
	EventPhaseChanged EventType = "PHASE_CHANGED"
	EventTurnStarted  EventType = "TURN_STARTED"
)

// MaxPublishDepth bounds the publishes in flight on one bus. The count is
// shared by every goroutine: a nested publish and a concurrent publish from
// another goroutine both add one. Past the cap the publish is dropped and
// logged.
const MaxPublishDepth = 32

// Choice is one selectable candidate of a selection request.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Event represents a state change that other subsystems may react to.
type Event struct {
	Type          EventType         `json:"type"`
	ID            string            `json:"id"`
	EntityID      string            `json:"entityId,omitempty"`
	From          string            `json:"from,omitempty"`
	To            string            `json:"to,omitempty"`
	Faction       string            `json:"faction,omitempty"`
	CorrelationID string            `json:"correlationId,omitempty"`
	Purpose       string            `json:"purpose,omitempty"`
	Prompt        string            `json:"prompt,omitempty"`
	Candidates    []Choice          `json:"candidates,omitempty"`
	Selected      string            `json:"selected,omitempty"`
	Amount        int               `json:"amount,omitempty"`
	Data          string            `json:"data,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Description   string            `json:"description,omitempty"`
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

type anyListener struct {
	handle   int
	callback Listener
}

// EventBus provides a synchronous publish/subscribe implementation with type filtering.
// Listeners run in subscription order. The listener set is copied before
// dispatch, so callbacks may subscribe, unsubscribe or publish.
type EventBus struct {
	mu             sync.RWMutex
	listeners      []anyListener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
	depth          atomic.Int32 // publishes in flight, all goroutines
	logger         *zap.Logger
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		typedListeners: make(map[EventType][]TypedListener),
		logger:         logger,
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners = append(bus.listeners, anyListener{handle: handle, callback: listener})
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	listener := TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	}
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], listener)
	return handle
}

// Unsubscribe removes the listener identified by the provided handle.
// It reports whether a listener was removed.
func (bus *EventBus) Unsubscribe(handle int) bool {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	for i, l := range bus.listeners {
		if l.handle == handle {
			bus.listeners = append(bus.listeners[:i:i], bus.listeners[i+1:]...)
			return true
		}
	}
	for eventType, listeners := range bus.typedListeners {
		for i, l := range listeners {
			if l.Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i:i], listeners[i+1:]...)
				return true
			}
		}
	}
	return false
}

// ListenerCount returns the number of typed listeners for eventType.
func (bus *EventBus) ListenerCount(eventType EventType) int {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	return len(bus.typedListeners[eventType])
}

// Publish delivers the event to all registered listeners synchronously.
// Catch-all listeners run first, then typed listeners of event.Type.
func (bus *EventBus) Publish(event Event) {
	if depth := bus.depth.Add(1); depth > MaxPublishDepth {
		bus.depth.Add(-1)
		if bus.logger != nil {
			bus.logger.Error("event dropped: publish depth exceeded",
				zap.String("event_type", string(event.Type)),
				zap.Int("max_depth", MaxPublishDepth),
				zap.Int32("in_flight", depth-1),
			)
		}
		return
	}
	defer bus.depth.Add(-1)

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	bus.mu.RLock()
	all := make([]anyListener, len(bus.listeners))
	copy(all, bus.listeners)
	typed := make([]TypedListener, len(bus.typedListeners[event.Type]))
	copy(typed, bus.typedListeners[event.Type])
	bus.mu.RUnlock()

	for _, listener := range all {
		listener.callback(event)
	}
	for _, listener := range typed {
		listener.Callback(event)
	}
}

// PublishBatch publishes multiple events in order.
func (bus *EventBus) PublishBatch(events []Event) {
	for _, event := range events {
		bus.Publish(event)
	}
}

// NewEvent creates a new event with common fields populated.
func NewEvent(eventType EventType, entityID, faction string) Event {
	return Event{
		Type:      eventType,
		ID:        uuid.NewString(),
		EntityID:  entityID,
		Faction:   faction,
		Timestamp: time.Now(),
		Metadata:  make(map[string]string),
	}
}

// NewEventWithAmount creates a new event with an amount value.
func NewEventWithAmount(eventType EventType, entityID, faction string, amount int) Event {
	evt := NewEvent(eventType, entityID, faction)
	evt.Amount = amount
	return evt
}

// NewLocationEvent creates a LOCATION_CHANGED event.
func NewLocationEvent(entityID, faction, from, to string) Event {
	evt := NewEvent(EventLocationChanged, entityID, faction)
	evt.From = from
	evt.To = to
	return evt
}
