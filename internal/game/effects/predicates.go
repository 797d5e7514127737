package effects

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kesa0v0/WeimarPort/internal/game/board"
	"github.com/kesa0v0/WeimarPort/internal/game/faction"
	"github.com/kesa0v0/WeimarPort/internal/game/script"
)

// ErrUnknownCondition marks a condition type with no registered predicate.
var ErrUnknownCondition = errors.New("unknown condition type")

// Predicate evaluates a condition against the current game state.
type Predicate func(ctx context.Context, cond script.Condition) (bool, error)

// Predicates is the registry of named predicates.
type Predicates struct {
	mu         sync.RWMutex
	predicates map[string]Predicate
}

// NewPredicates creates a registry holding the built-in predicates over state.
func NewPredicates(state State) *Predicates {
	p := &Predicates{predicates: make(map[string]Predicate)}
	p.Register(string(script.CondIsInGovernment), isInGovernment(state))
	p.Register(string(script.CondHasThreatMarker), hasThreatMarker(state))
	p.Register(string(script.CondHasPartyBase), hasPartyBase(state))
	p.Register(string(script.CondControlsMinorParty), controlsMinorParty(state))
	return p
}

// Register adds or replaces a predicate.
func (p *Predicates) Register(name string, fn Predicate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.predicates[name] = fn
}

// Names returns the registered predicate names, sorted.
func (p *Predicates) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.predicates))
	for name := range p.predicates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Eval runs the predicate named by cond.Type.
func (p *Predicates) Eval(ctx context.Context, cond script.Condition) (bool, error) {
	p.mu.RLock()
	fn, ok := p.predicates[cond.Type]
	p.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("%w %q", ErrUnknownCondition, cond.Type)
	}
	return fn(ctx, cond)
}

func isInGovernment(state State) Predicate {
	return func(_ context.Context, cond script.Condition) (bool, error) {
		party, err := faction.Parse(cond.PartyID)
		if err != nil {
			return false, err
		}
		return state.Factions.InGovernment(party), nil
	}
}

func hasThreatMarker(state State) Predicate {
	return func(_ context.Context, cond script.Condition) (bool, error) {
		ids, err := staticContainers(state.Registry, cond.Location)
		if err != nil {
			return false, err
		}
		for _, id := range ids {
			if _, ok := state.Registry.Find(id, board.KindMarker, cond.MarkerID); ok {
				return true, nil
			}
		}
		return false, nil
	}
}

func hasPartyBase(state State) Predicate {
	return func(_ context.Context, cond script.Condition) (bool, error) {
		party, err := faction.Parse(cond.PartyID)
		if err != nil {
			return false, err
		}
		ids, err := staticContainers(state.Registry, cond.Location)
		if err != nil {
			return false, err
		}
		for _, id := range ids {
			if len(state.Registry.BasesIn(id, party)) > 0 {
				return true, nil
			}
		}
		return false, nil
	}
}

// controlsMinorParty reads the minor party from markerId.
func controlsMinorParty(state State) Predicate {
	return func(_ context.Context, cond script.Condition) (bool, error) {
		party, err := faction.Parse(cond.PartyID)
		if err != nil {
			return false, err
		}
		minor, err := faction.Parse(cond.MarkerID)
		if err != nil {
			return false, err
		}
		return state.Factions.MinorPartyController(minor) == party, nil
	}
}
