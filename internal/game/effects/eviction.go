package effects

import (
	"context"
	"fmt"

	"github.com/kesa0v0/WeimarPort/internal/game/board"
	"github.com/kesa0v0/WeimarPort/internal/game/faction"
	"github.com/kesa0v0/WeimarPort/internal/game/rules"
	"github.com/kesa0v0/WeimarPort/internal/game/selection"
	"go.uber.org/zap"
)

// makeRoom frees one seat in cityID for placing. While the city is full the
// placing faction picks another faction with a base there; one of its bases
// returns to that faction's reserve. When target is set only its bases are
// evicted and no pick is asked for. A full city with nobody else to evict
// yields ErrNoEvictionCandidates, a declined pick yields selection.ErrCancelled.
func (in *Interpreter) makeRoom(ctx context.Context, cityID string, placing, target faction.Type) error {
	reg := in.state.Registry
	for {
		city, ok := reg.Container(cityID)
		if !ok {
			return fmt.Errorf("%w: container %s", ErrMissingReference, cityID)
		}
		if !city.Bounded() || city.Free() > 0 {
			return nil
		}

		var candidates []rules.Choice
		for _, owner := range reg.BaseOwners(cityID) {
			if owner == placing || (target != faction.None && owner != target) {
				continue
			}
			candidates = append(candidates, rules.Choice{Value: string(owner), Label: owner.String()})
		}
		if len(candidates) == 0 {
			return fmt.Errorf("%w: %s is full", ErrNoEvictionCandidates, city.Name)
		}
		if target != faction.None {
			if err := in.evict(cityID, target, placing); err != nil {
				return err
			}
			continue
		}

		pending, err := in.state.Broker.Request(selection.Request{
			Purpose:    selection.PurposeEviction,
			Prompt:     fmt.Sprintf("%s is full: choose a party to remove a base from", city.Name),
			Chooser:    placing,
			Candidates: candidates,
		})
		if err != nil {
			return err
		}
		choice, err := pending.Await(ctx)
		if err != nil {
			return err
		}
		victim, err := faction.Parse(choice.Value)
		if err != nil {
			return err
		}
		if err := in.evict(cityID, victim, placing); err != nil {
			return err
		}
	}
}

// evict returns victim's first base in cityID to its reserve. A victim with
// no base left there is not an error: the caller looks at the city again.
func (in *Interpreter) evict(cityID string, victim, placing faction.Type) error {
	reg := in.state.Registry
	bases := reg.BasesIn(cityID, victim)
	if len(bases) == 0 {
		return nil
	}
	if err := reg.MoveFrom(bases[0], cityID, board.ReserveID(victim)); err != nil {
		return err
	}
	in.logger.Debug("base evicted",
		zap.String("city", cityID),
		zap.String("entity_id", bases[0]),
		zap.String("owner", string(victim)),
		zap.String("placing", string(placing)),
	)
	return nil
}
