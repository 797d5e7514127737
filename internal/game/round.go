package game

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kesa0v0/WeimarPort/internal/game/faction"
	"github.com/kesa0v0/WeimarPort/internal/game/rules"
	"github.com/kesa0v0/WeimarPort/internal/game/script"
	"go.uber.org/zap"
)

// RoundState is the position in the round structure.
type RoundState struct {
	Round           int
	Phase           rules.Phase
	CurrentParty    faction.Type
	RoundStartParty faction.Type
}

// Round returns the current round, phase and turn.
func (s *Session) Round() RoundState {
	s.roundMu.Lock()
	defer s.roundMu.Unlock()
	return RoundState{
		Round:           s.rounds.Round(),
		Phase:           s.rounds.Phase(),
		CurrentParty:    faction.Type(s.rounds.CurrentParty()),
		RoundStartParty: faction.Type(s.rounds.RoundStartParty()),
	}
}

// StartRound opens the next round in the Republic phase with starter taking
// the first turn, then seats the minor parties' bonus for that round.
func (s *Session) StartRound(ctx context.Context, starter faction.Type) (int, error) {
	if !starter.IsMain() {
		return 0, fmt.Errorf("start round: %s is not a playable party", starter)
	}
	if s.ctx.Err() != nil {
		return 0, ErrSessionClosed
	}

	s.roundMu.Lock()
	from := s.rounds.Phase()
	round, err := s.rounds.StartRound(string(starter))
	s.roundMu.Unlock()
	if err != nil {
		return round, err
	}

	s.bus.Publish(rules.NewEventWithAmount(rules.EventRoundStarted, strconv.Itoa(round), string(starter), round))
	s.publishPhase(round, from, rules.PhaseRepublic, starter)
	s.bus.Publish(rules.NewEventWithAmount(rules.EventTurnStarted, string(starter), string(starter), round))
	s.logger.Info("round started", zap.Int("round", round), zap.String("start_party", string(starter)))

	if bonus := s.seatBonus(round); len(bonus) > 0 {
		if err := s.Run(ctx, fmt.Sprintf("round:%d", round), bonus); err != nil {
			return round, err
		}
	}
	return round, nil
}

// seatBonus builds the script seating each minor party's bonus for round.
func (s *Session) seatBonus(round int) script.Script {
	var sc script.Script
	for _, minor := range faction.MinorParties {
		n := s.factions.SeatBonus(minor, round)
		if n <= 0 {
			continue
		}
		sc = append(sc, script.Node{
			Command: script.CmdPlaceParliamentSeats,
			Args:    script.Args{PartyID: string(minor), Count: n},
		})
	}
	return sc
}

// AdvancePhase moves to the next phase of the current round. The turn
// returns to the party that started the round.
func (s *Session) AdvancePhase() (rules.Phase, error) {
	s.roundMu.Lock()
	from, to, err := s.rounds.AdvancePhase()
	round := s.rounds.Round()
	starter := faction.Type(s.rounds.RoundStartParty())
	s.roundMu.Unlock()
	if err != nil {
		return from, err
	}

	s.publishPhase(round, from, to, starter)
	s.bus.Publish(rules.NewEventWithAmount(rules.EventTurnStarted, string(starter), string(starter), round))
	return to, nil
}

// PassTurn hands the turn to party.
func (s *Session) PassTurn(party faction.Type) error {
	if !party.IsMain() {
		return fmt.Errorf("pass turn: %s is not a playable party", party)
	}
	s.roundMu.Lock()
	err := s.rounds.PassTurn(string(party))
	round := s.rounds.Round()
	s.roundMu.Unlock()
	if err != nil {
		return err
	}
	s.bus.Publish(rules.NewEventWithAmount(rules.EventTurnStarted, string(party), string(party), round))
	return nil
}

// NextTurn passes the turn to the party after the current one in seating
// order.
func (s *Session) NextTurn() (faction.Type, error) {
	current := s.Round().CurrentParty
	next := faction.MainParties[0]
	for i, p := range faction.MainParties {
		if p == current {
			next = faction.MainParties[(i+1)%len(faction.MainParties)]
			break
		}
	}
	return next, s.PassTurn(next)
}

func (s *Session) publishPhase(round int, from, to rules.Phase, party faction.Type) {
	evt := rules.NewEventWithAmount(rules.EventPhaseChanged, to.String(), string(party), round)
	evt.From = from.String()
	evt.To = to.String()
	s.bus.Publish(evt)
	s.logger.Debug("phase changed",
		zap.Int("round", round),
		zap.String("from", evt.From),
		zap.String("to", evt.To),
	)
}
