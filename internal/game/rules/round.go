package rules

import (
	"errors"
	"fmt"
	"strings"
)

// MaxRounds is the number of rounds in a full game.
const MaxRounds = 6

var (
	// ErrGameOver is returned when a round is started after the last one.
	ErrGameOver = errors.New("no rounds left")
	// ErrRoundOver is returned when the phase is advanced past Politics.
	ErrRoundOver = errors.New("round already in its last phase")
	// ErrRoundNotStarted is returned by phase and turn changes before round 1.
	ErrRoundNotStarted = errors.New("no round started")
)

// Phase is one of the phases of a game round.
type Phase int

const (
	PhaseSetup Phase = iota
	PhaseRepublic
	PhaseAgenda
	PhaseImpulse
	PhasePolitics
)

var phaseNames = map[Phase]string{
	PhaseSetup:    "SETUP",
	PhaseRepublic: "REPUBLIC",
	PhaseAgenda:   "AGENDA",
	PhaseImpulse:  "IMPULSE",
	PhasePolitics: "POLITICS",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// RoundTracker tracks the round number, the phase and whose turn it is.
// It is not safe for concurrent use.
type RoundTracker struct {
	round        int
	phase        Phase
	currentParty string
	startParty   string
}

// NewRoundTracker returns a tracker positioned before round 1.
func NewRoundTracker() *RoundTracker {
	return &RoundTracker{phase: PhaseSetup}
}

// Round returns the current round (1-based); 0 before the first round.
func (rt *RoundTracker) Round() int { return rt.round }

// Phase returns the phase in progress.
func (rt *RoundTracker) Phase() Phase { return rt.phase }

// CurrentParty returns the party whose turn it is.
func (rt *RoundTracker) CurrentParty() string { return rt.currentParty }

// RoundStartParty returns the party that opened the current round.
func (rt *RoundTracker) RoundStartParty() string { return rt.startParty }

// StartRound moves to the Republic phase of the next round with startParty
// taking the first turn.
func (rt *RoundTracker) StartRound(startParty string) (int, error) {
	if rt.round >= MaxRounds {
		return rt.round, ErrGameOver
	}
	party := strings.TrimSpace(startParty)
	rt.round++
	rt.phase = PhaseRepublic
	rt.startParty = party
	rt.currentParty = party
	return rt.round, nil
}

// AdvancePhase moves to the next phase of the round and returns the phase
// that was left alongside the new one.
func (rt *RoundTracker) AdvancePhase() (from, to Phase, err error) {
	if rt.round == 0 {
		return rt.phase, rt.phase, ErrRoundNotStarted
	}
	if rt.phase >= PhasePolitics {
		return rt.phase, rt.phase, ErrRoundOver
	}
	from = rt.phase
	rt.phase++
	// Each phase opens with the round's first player.
	rt.currentParty = rt.startParty
	return from, rt.phase, nil
}

// PassTurn hands the turn to party.
func (rt *RoundTracker) PassTurn(party string) error {
	if rt.round == 0 {
		return ErrRoundNotStarted
	}
	rt.currentParty = strings.TrimSpace(party)
	return nil
}
