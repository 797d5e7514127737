package effects

import (
	"context"
	"fmt"
	"strings"

	"github.com/kesa0v0/WeimarPort/internal/game/board"
	"github.com/kesa0v0/WeimarPort/internal/game/faction"
	"github.com/kesa0v0/WeimarPort/internal/game/rules"
	"github.com/kesa0v0/WeimarPort/internal/game/script"
	"github.com/kesa0v0/WeimarPort/internal/game/selection"
)

// execution is the per-instruction context shared by its repetitions.
// used holds the containers already picked by a unique specifier; it never
// outlives the instruction.
type execution struct {
	in   *Interpreter
	node *script.Node
	used map[string]bool
}

func newExecution(in *Interpreter, n *script.Node) *execution {
	return &execution{in: in, node: n, used: make(map[string]bool)}
}

// party parses partyId. An empty or unknown id is a malformed identifier.
func (x *execution) party() (faction.Type, error) {
	return faction.Parse(x.node.Args.PartyID)
}

// resolve turns the node's location specifier into a container id for one
// repetition. fallback is used when the node has no location. The hasRoom
// param restricts random and player-chosen cities to those with a free seat.
func (x *execution) resolve(ctx context.Context, chooser faction.Type, fallback string) (string, error) {
	loc := x.node.Args.Location
	if loc == nil {
		if fallback == "" {
			return "", fmt.Errorf("%w: %s needs a location", ErrMissingReference, x.node.Command)
		}
		return fallback, nil
	}
	kind, ok := loc.Kind()
	if !ok {
		return "", fmt.Errorf("%w: location type %q", ErrMissingReference, loc.Type)
	}

	reg := x.in.state.Registry
	switch kind {
	case script.LocSpecific:
		if c, ok := reg.FindCity(loc.Name); ok {
			return c.ID, nil
		}
		if c, ok := reg.Container(loc.Name); ok {
			return c.ID, nil
		}
		return "", fmt.Errorf("%w: location %q", ErrMissingReference, loc.Name)

	case script.LocRandomAnyOf:
		eligible := x.eligibleCities(*loc)
		if len(eligible) == 0 {
			return "", fmt.Errorf("%w: no eligible city", ErrMissingReference)
		}
		picked := eligible[x.in.rand.Intn(len(eligible))]
		if loc.Params.Unique {
			x.used[picked.ID] = true
		}
		return picked.ID, nil

	case script.LocPlayerChoice:
		eligible := x.eligibleCities(*loc)
		if len(eligible) == 0 {
			return "", fmt.Errorf("%w: no eligible city", ErrMissingReference)
		}
		candidates := make([]rules.Choice, len(eligible))
		for i, c := range eligible {
			candidates[i] = rules.Choice{Value: c.ID, Label: c.Name}
		}
		prompt := x.node.Args.ChoicePrompt
		if prompt == "" {
			prompt = fmt.Sprintf("Choose a city for %s", x.node.Command)
		}
		pending, err := x.in.state.Broker.Request(selection.Request{
			Purpose:    selection.PurposeCity,
			Prompt:     prompt,
			Chooser:    chooser,
			Candidates: candidates,
		})
		if err != nil {
			return "", err
		}
		choice, err := pending.Await(ctx)
		if err != nil {
			return "", err
		}
		if loc.Params.Unique {
			x.used[choice.Value] = true
		}
		return choice.Value, nil

	case script.LocCentralAuthority:
		return board.CentralAuthorityID, nil
	case script.LocParliament:
		return board.ParliamentID, nil
	case script.LocOpinionTrack:
		return board.OpinionTrackID, nil
	case script.LocDisposed:
		return board.DisposedID, nil
	case script.LocReserve:
		owner := chooser
		if loc.Name != "" {
			f, err := faction.Parse(loc.Name)
			if err != nil {
				return "", err
			}
			owner = f
		}
		if owner == faction.None {
			return "", fmt.Errorf("%w: reserve without faction", ErrMissingReference)
		}
		return board.ReserveID(owner), nil
	}
	return "", fmt.Errorf("%w: location type %q", ErrMissingReference, loc.Type)
}

// eligibleCities returns the cities not excluded by the specifier or by
// earlier unique picks of this instruction.
func (x *execution) eligibleCities(loc script.Location) []board.ContainerInfo {
	excluded := make(map[string]bool, len(loc.Params.Exclude))
	for _, name := range loc.Params.Exclude {
		excluded[strings.ToLower(name)] = true
	}
	var out []board.ContainerInfo
	for _, c := range x.in.state.Registry.Cities() {
		if x.used[c.ID] || excluded[strings.ToLower(c.Name)] || excluded[strings.ToLower(c.ID)] {
			continue
		}
		if loc.Params.HasRoom && c.Free() == 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}

// staticContainers resolves a location that needs no player input, as used
// by predicates. A nil location means every city.
func staticContainers(reg *board.Registry, loc *script.Location) ([]string, error) {
	if loc == nil {
		cities := reg.Cities()
		ids := make([]string, len(cities))
		for i, c := range cities {
			ids[i] = c.ID
		}
		return ids, nil
	}
	kind, ok := loc.Kind()
	if !ok {
		return nil, fmt.Errorf("%w: location type %q", ErrMissingReference, loc.Type)
	}
	switch kind {
	case script.LocSpecific:
		if c, ok := reg.FindCity(loc.Name); ok {
			return []string{c.ID}, nil
		}
		if c, ok := reg.Container(loc.Name); ok {
			return []string{c.ID}, nil
		}
		return nil, fmt.Errorf("%w: location %q", ErrMissingReference, loc.Name)
	case script.LocCentralAuthority:
		return []string{board.CentralAuthorityID}, nil
	case script.LocParliament:
		return []string{board.ParliamentID}, nil
	case script.LocOpinionTrack:
		return []string{board.OpinionTrackID}, nil
	case script.LocDisposed:
		return []string{board.DisposedID}, nil
	case script.LocReserve:
		f, err := faction.Parse(loc.Name)
		if err != nil {
			return nil, err
		}
		return []string{board.ReserveID(f)}, nil
	}
	return nil, fmt.Errorf("%w: %s cannot be used in a condition", ErrMissingReference, loc.Type)
}
