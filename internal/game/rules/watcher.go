package rules

import (
	"sort"
	"sync"
)

// WatcherScope is what a watcher is bound to.
type WatcherScope int

const (
	WatcherScopeGame WatcherScope = iota
	WatcherScopeFaction
	WatcherScopeContainer
)

func (ws WatcherScope) String() string {
	switch ws {
	case WatcherScopeGame:
		return "GAME"
	case WatcherScopeFaction:
		return "FACTION"
	case WatcherScopeContainer:
		return "CONTAINER"
	default:
		return "UNKNOWN"
	}
}

// Watcher derives a condition from the events of one session.
type Watcher interface {
	// Watch is called for every event published on the attached bus.
	Watch(event Event)
	Reset()
	ConditionMet() bool
	Scope() WatcherScope
	// Key identifies the watcher in a registry.
	Key() string
}

// BaseWatcher holds the identity and condition flag shared by watchers.
type BaseWatcher struct {
	scope   WatcherScope
	subject string
	name    string
	met     bool
}

// NewBaseWatcher creates a watcher named name. subject is the faction or
// container id for scoped watchers and is ignored for game scope.
func NewBaseWatcher(scope WatcherScope, subject, name string) *BaseWatcher {
	if scope == WatcherScopeGame {
		subject = ""
	}
	return &BaseWatcher{scope: scope, subject: subject, name: name}
}

func (bw *BaseWatcher) Scope() WatcherScope   { return bw.scope }
func (bw *BaseWatcher) Subject() string       { return bw.subject }
func (bw *BaseWatcher) ConditionMet() bool    { return bw.met }
func (bw *BaseWatcher) SetCondition(met bool) { bw.met = met }
func (bw *BaseWatcher) Reset()                { bw.met = false }

// Key is "<subject>/<name>" for scoped watchers and the name otherwise.
func (bw *BaseWatcher) Key() string {
	if bw.subject == "" {
		return bw.name
	}
	return bw.subject + "/" + bw.name
}

// WatcherRegistry feeds bus events to a set of watchers in key order.
type WatcherRegistry struct {
	mu       sync.RWMutex
	watchers map[string]Watcher
	bus      *EventBus
	handle   int
}

func NewWatcherRegistry() *WatcherRegistry {
	return &WatcherRegistry{
		watchers: make(map[string]Watcher),
		handle:   -1,
	}
}

// Attach subscribes the registry to every event on bus. Attaching again
// moves the subscription.
func (wr *WatcherRegistry) Attach(bus *EventBus) {
	wr.Detach()
	handle := bus.Subscribe(wr.Notify)
	wr.mu.Lock()
	wr.bus, wr.handle = bus, handle
	wr.mu.Unlock()
}

// Detach removes the bus subscription.
func (wr *WatcherRegistry) Detach() {
	wr.mu.Lock()
	bus, handle := wr.bus, wr.handle
	wr.bus, wr.handle = nil, -1
	wr.mu.Unlock()
	if bus != nil && handle >= 0 {
		bus.Unsubscribe(handle)
	}
}

// Add registers w, replacing a watcher with the same key.
func (wr *WatcherRegistry) Add(w Watcher) {
	if w == nil {
		return
	}
	wr.mu.Lock()
	wr.watchers[w.Key()] = w
	wr.mu.Unlock()
}

func (wr *WatcherRegistry) Remove(key string) {
	wr.mu.Lock()
	delete(wr.watchers, key)
	wr.mu.Unlock()
}

func (wr *WatcherRegistry) Get(key string) (Watcher, bool) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	w, ok := wr.watchers[key]
	return w, ok
}

// ByScope returns the watchers of one scope in key order.
func (wr *WatcherRegistry) ByScope(scope WatcherScope) []Watcher {
	var out []Watcher
	for _, w := range wr.sorted() {
		if w.Scope() == scope {
			out = append(out, w)
		}
	}
	return out
}

// Reset resets every watcher.
func (wr *WatcherRegistry) Reset() {
	for _, w := range wr.sorted() {
		w.Reset()
	}
}

// Notify passes event to every watcher.
func (wr *WatcherRegistry) Notify(event Event) {
	for _, w := range wr.sorted() {
		w.Watch(event)
	}
}

func (wr *WatcherRegistry) sorted() []Watcher {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	keys := make([]string, 0, len(wr.watchers))
	for k := range wr.watchers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Watcher, len(keys))
	for i, k := range keys {
		out[i] = wr.watchers[k]
	}
	return out
}
