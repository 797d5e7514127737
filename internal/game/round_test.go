package game

import (
	"context"
	"testing"

	"github.com/kesa0v0/WeimarPort/internal/game/board"
	"github.com/kesa0v0/WeimarPort/internal/game/faction"
	"github.com/kesa0v0/WeimarPort/internal/game/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seatsOf(s *Session, party faction.Type) int {
	n := 0
	c, _ := s.Registry().Container(board.ParliamentID)
	for _, id := range c.Members {
		if e, ok := s.Registry().Entity(id); ok && e.Faction() == party {
			n++
		}
	}
	return n
}

func TestStartRoundSeatsMinorParties(t *testing.T) {
	s := newTestSession(t)
	var events []rules.Event
	s.Bus().Subscribe(func(e rules.Event) {
		switch e.Type {
		case rules.EventRoundStarted, rules.EventPhaseChanged, rules.EventTurnStarted:
			events = append(events, e)
		}
	})

	round, err := s.StartRound(context.Background(), faction.SPD)
	require.NoError(t, err)
	assert.Equal(t, 1, round)

	require.Len(t, events, 3)
	assert.Equal(t, rules.EventRoundStarted, events[0].Type)
	assert.Equal(t, 1, events[0].Amount)
	assert.Equal(t, "SPD", events[0].Faction)
	assert.Equal(t, rules.EventPhaseChanged, events[1].Type)
	assert.Equal(t, "SETUP", events[1].From)
	assert.Equal(t, "REPUBLIC", events[1].To)
	assert.Equal(t, rules.EventTurnStarted, events[2].Type)

	assert.Equal(t, 2, seatsOf(s, faction.USPD))
	assert.Equal(t, 2, seatsOf(s, faction.DDP))
	assert.Equal(t, 1, seatsOf(s, faction.DVP))
	assert.Equal(t, 0, seatsOf(s, faction.NSDAP))

	st := s.Round()
	assert.Equal(t, rules.PhaseRepublic, st.Phase)
	assert.Equal(t, faction.SPD, st.CurrentParty)
	assert.Equal(t, faction.SPD, st.RoundStartParty)
}

func TestRoundPhasesAndTurns(t *testing.T) {
	s := newTestSession(t)
	_, err := s.AdvancePhase()
	assert.ErrorIs(t, err, rules.ErrRoundNotStarted)
	_, err = s.StartRound(context.Background(), faction.USPD)
	assert.Error(t, err, "minor parties do not take turns")

	_, err = s.StartRound(context.Background(), faction.Z)
	require.NoError(t, err)

	next, err := s.NextTurn()
	require.NoError(t, err)
	assert.Equal(t, faction.KPD, next)
	next, err = s.NextTurn()
	require.NoError(t, err)
	assert.Equal(t, faction.DNVP, next)
	next, err = s.NextTurn()
	require.NoError(t, err)
	assert.Equal(t, faction.SPD, next)

	phase, err := s.AdvancePhase()
	require.NoError(t, err)
	assert.Equal(t, rules.PhaseAgenda, phase)
	assert.Equal(t, faction.Z, s.Round().CurrentParty)

	require.NoError(t, s.PassTurn(faction.DNVP))
	assert.Equal(t, faction.DNVP, s.Round().CurrentParty)
	assert.Error(t, s.PassTurn(faction.Government))

	_, err = s.AdvancePhase()
	require.NoError(t, err)
	_, err = s.AdvancePhase()
	require.NoError(t, err)
	_, err = s.AdvancePhase()
	assert.ErrorIs(t, err, rules.ErrRoundOver)
}

func TestRoundStateInSnapshot(t *testing.T) {
	s := newTestSession(t)
	before := s.Snapshot()
	assert.Equal(t, 0, before.Round)
	assert.Equal(t, "SETUP", before.Phase)

	_, err := s.StartRound(context.Background(), faction.KPD)
	require.NoError(t, err)
	snap := s.Snapshot()
	assert.Equal(t, 1, snap.Round)
	assert.Equal(t, "REPUBLIC", snap.Phase)
	assert.Equal(t, "KPD", snap.CurrentParty)
	assert.Equal(t, "KPD", snap.RoundStartParty)
	assert.NotEqual(t, before.Checksum(), snap.Checksum())

	for _, f := range snap.Factions {
		if f.Faction == "KPD" {
			assert.Equal(t, 3, f.CoupActionCost)
		}
	}

	afterSeats := snap.Checksum()
	require.NoError(t, s.PassTurn(faction.SPD))
	assert.NotEqual(t, afterSeats, s.Snapshot().Checksum())
}

func TestStartRoundAfterClose(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.Close())
	_, err := s.StartRound(context.Background(), faction.SPD)
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Equal(t, 0, s.Round().Round)
}
