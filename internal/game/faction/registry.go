package faction

import (
	"fmt"
	"sort"
	"sync"
)

// State is the mutable per-session data of one faction.
type State struct {
	VictoryPoints        int
	ReservePoints        int
	ControlledMinorParty []Type
}

// Registry is the data-driven faction table of a session. Records are
// read-only after construction; only points, minor-party control and the
// government coalition change during play.
type Registry struct {
	mu         sync.RWMutex
	records    map[Type]Record
	states     map[Type]*State
	controller map[Type]Type // minor party -> controlling main party
	coalition  []Type
}

// NewRegistry builds a registry from the given records. A nil map falls back
// to DefaultRecords.
func NewRegistry(records map[Type]Record) *Registry {
	if records == nil {
		records = DefaultRecords()
	}
	r := &Registry{
		records:    make(map[Type]Record, len(records)),
		states:     make(map[Type]*State, len(records)),
		controller: make(map[Type]Type),
	}
	for t, rec := range records {
		r.records[t] = rec
		r.states[t] = &State{}
	}
	return r
}

// Record returns the immutable record of t.
func (r *Registry) Record(t Type) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[t]
	return rec, ok
}

// SeatBonus returns the seats minor gains at the start of round.
func (r *Registry) SeatBonus(minor Type, round int) int {
	rec, ok := r.Record(minor)
	if !ok || !minor.IsMinor() {
		return 0
	}
	return rec.SeatBonus(round)
}

// CoupActionCost returns the action cost for t to attempt a coup, or 0 for
// an unknown faction.
func (r *Registry) CoupActionCost(t Type) int {
	rec, _ := r.Record(t)
	return rec.CoupActionCost
}

// Types returns every registered faction in stable order.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Type, 0, len(r.records))
	for t := range r.records {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// State returns a copy of the mutable state of t.
func (r *Registry) State(t Type) (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.states[t]
	if !ok {
		return State{}, false
	}
	cpy := *st
	cpy.ControlledMinorParty = append([]Type(nil), st.ControlledMinorParty...)
	return cpy, true
}

// AddVictoryPoints changes the victory points of t by delta and returns the new total.
func (r *Registry) AddVictoryPoints(t Type, delta int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[t]
	if !ok {
		return 0, fmt.Errorf("faction %s not registered", t)
	}
	st.VictoryPoints += delta
	return st.VictoryPoints, nil
}

// AddReservePoints changes the reserve points of t by delta and returns the
// new total. Reserve never drops below zero.
func (r *Registry) AddReservePoints(t Type, delta int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[t]
	if !ok {
		return 0, fmt.Errorf("faction %s not registered", t)
	}
	st.ReservePoints += delta
	if st.ReservePoints < 0 {
		st.ReservePoints = 0
	}
	return st.ReservePoints, nil
}

// SetMinorPartyController hands control of minor to party and returns the
// previous controller (None if it was uncontrolled).
func (r *Registry) SetMinorPartyController(minor, party Type) (Type, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[minor]
	if !ok || !minor.IsMinor() {
		return None, fmt.Errorf("%s is not a minor party", minor)
	}
	if _, ok := r.states[party]; !ok || !party.IsMain() {
		return None, fmt.Errorf("%s is not a main party", party)
	}
	if !rec.CanBeControlledBy(party) {
		return None, fmt.Errorf("%s cannot be controlled by %s", minor, party)
	}

	previous := r.controller[minor]
	if previous == party {
		return previous, nil
	}
	if previous != None {
		st := r.states[previous]
		for i, m := range st.ControlledMinorParty {
			if m == minor {
				st.ControlledMinorParty = append(st.ControlledMinorParty[:i], st.ControlledMinorParty[i+1:]...)
				break
			}
		}
	}
	r.controller[minor] = party
	r.states[party].ControlledMinorParty = append(r.states[party].ControlledMinorParty, minor)
	return previous, nil
}

// MinorPartyController returns the party currently controlling minor.
func (r *Registry) MinorPartyController(minor Type) Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.controller[minor]
}

// SetCoalition replaces the governing coalition. At most two distinct main
// parties are kept; extra entries are ignored.
func (r *Registry) SetCoalition(parties ...Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coalition = r.coalition[:0]
	for _, p := range parties {
		if p == None || len(r.coalition) == 2 {
			continue
		}
		dup := false
		for _, c := range r.coalition {
			if c == p {
				dup = true
				break
			}
		}
		if !dup {
			r.coalition = append(r.coalition, p)
		}
	}
}

// Coalition returns the governing parties, leading party first.
func (r *Registry) Coalition() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Type(nil), r.coalition...)
}

// InGovernment reports whether t is part of the coalition.
func (r *Registry) InGovernment(t Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.coalition {
		if c == t {
			return true
		}
	}
	return false
}
