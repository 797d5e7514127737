package watchers

import (
	"github.com/kesa0v0/WeimarPort/internal/game/board"
	"github.com/kesa0v0/WeimarPort/internal/game/rules"
)

// DefaultCentralAuthorityThreshold is the DR box occupancy that ends the game.
const DefaultCentralAuthorityThreshold = 7

// CentralAuthorityWatcher tracks the DR box occupancy and publishes
// THRESHOLD_REACHED once when it reaches the threshold.
type CentralAuthorityWatcher struct {
	*rules.BaseWatcher
	bus       *rules.EventBus
	threshold int
	occupancy int
}

// NewCentralAuthorityWatcher creates a watcher publishing on bus.
func NewCentralAuthorityWatcher(bus *rules.EventBus, threshold int) *CentralAuthorityWatcher {
	if threshold <= 0 {
		threshold = DefaultCentralAuthorityThreshold
	}
	w := &CentralAuthorityWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeContainer, board.CentralAuthorityID, "threshold"),
		bus:         bus,
		threshold:   threshold,
	}
	return w
}

// Watch implements the Watcher interface.
func (w *CentralAuthorityWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventLocationChanged {
		return
	}
	switch {
	case event.To == board.CentralAuthorityID:
		w.occupancy++
	case event.From == board.CentralAuthorityID:
		w.occupancy--
	default:
		return
	}
	if w.ConditionMet() || w.occupancy < w.threshold {
		return
	}
	w.SetCondition(true)
	if w.bus != nil {
		evt := rules.NewEventWithAmount(rules.EventThresholdReached, board.CentralAuthorityID, "", w.occupancy)
		evt.Description = "central authority threshold reached"
		w.bus.Publish(evt)
	}
}

// Reset clears the watcher's state.
func (w *CentralAuthorityWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.occupancy = 0
}

// Occupancy returns the DR box occupancy seen so far.
func (w *CentralAuthorityWatcher) Occupancy() int {
	return w.occupancy
}

// Threshold returns the configured threshold.
func (w *CentralAuthorityWatcher) Threshold() int {
	return w.threshold
}

// PlacementWatcher tallies entities placed into cities per faction.
type PlacementWatcher struct {
	*rules.BaseWatcher
	placed map[string]int // faction -> entities moved into a city
}

// NewPlacementWatcher creates a placement watcher.
func NewPlacementWatcher() *PlacementWatcher {
	w := &PlacementWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeGame, "", "placements"),
		placed:      make(map[string]int),
	}
	return w
}

// Watch implements the Watcher interface.
func (w *PlacementWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventLocationChanged || !board.IsCityID(event.To) {
		return
	}
	if event.Faction == "" {
		return
	}
	w.placed[event.Faction]++
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *PlacementWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.placed = make(map[string]int)
}

// Count returns the number of city placements made by a faction.
func (w *PlacementWatcher) Count(factionID string) int {
	return w.placed[factionID]
}

// Total returns the number of city placements across all factions.
func (w *PlacementWatcher) Total() int {
	total := 0
	for _, n := range w.placed {
		total += n
	}
	return total
}
