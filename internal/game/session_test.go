package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kesa0v0/WeimarPort/internal/game/board"
	"github.com/kesa0v0/WeimarPort/internal/game/faction"
	"github.com/kesa0v0/WeimarPort/internal/game/rules"
	"github.com/kesa0v0/WeimarPort/internal/game/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const setupJSON = `{
  "scenarioName": "1919",
  "description": "Spartacist uprising",
  "setupScript": [
    {"command": "PlacePartyBases", "args": {"partyId": "SPD", "count": 2, "location": {"type": "SpecificCity", "name": "Berlin"}}},
    {"command": "PlacePartyBases", "args": {"partyId": "KPD", "count": 3, "location": {"type": "RandomAnyOf", "params": {"unique": true}}}},
    {"command": "PlaceThreatMarker", "args": {"dataId": "Threat_Unrest", "count": 2, "location": {"type": "SpecificCity", "name": "Berlin"}}},
    {"command": "PlaceParliamentSeats", "args": {"partyId": "Zentrum", "count": 4}},
    {"command": "ReinforceUnit", "args": {"dataId": "UnitData_Government_Freikorps", "count": 2}},
    {"command": "ChangeMinorPartyControl", "args": {"dataId": "USPD", "partyId": "KPD"}},
    {"command": "MoveTrack", "args": {"dataId": "ForeignAffairs", "value": 3}},
    {"command": "PlaceFlag", "args": {"flagType": "Revolution"}}
  ]
}`

func newTestSession(t *testing.T, opts ...SessionOption) *Session {
	t.Helper()
	cfg := DefaultConfig()
	cfg.RandomSeed = 7
	s, err := NewSession(cfg, zaptest.NewLogger(t), opts...)
	require.NoError(t, err)
	return s
}

func TestSessionRunsScenario(t *testing.T) {
	s := newTestSession(t)
	sc, err := script.ParseScenario([]byte(setupJSON))
	require.NoError(t, err)

	var lifecycle []rules.EventType
	s.Bus().SubscribeTyped(rules.EventScriptStarted, func(e rules.Event) { lifecycle = append(lifecycle, e.Type) })
	s.Bus().SubscribeTyped(rules.EventScriptCompleted, func(e rules.Event) {
		lifecycle = append(lifecycle, e.Type)
		assert.Empty(t, e.Description)
	})

	require.NoError(t, s.RunScenario(context.Background(), sc))
	assert.Equal(t, []rules.EventType{rules.EventScriptStarted, rules.EventScriptCompleted}, lifecycle)

	reg := s.Registry()
	assert.Len(t, reg.BasesIn(board.CityID("Berlin"), faction.SPD), 2)
	kpdCities := 0
	for _, c := range reg.Cities() {
		if n := len(reg.BasesIn(c.ID, faction.KPD)); n > 0 {
			assert.Equal(t, 1, n, c.Name)
			kpdCities++
		}
	}
	assert.Equal(t, 3, kpdCities)
	assert.Equal(t, faction.KPD, s.Factions().MinorPartyController(faction.USPD))
	assert.Equal(t, 3, s.Tracks().Position(board.TrackForeignAffairs))
	assert.Equal(t, 1, s.Flags().Count("Revolution"))
	assert.Equal(t, 5, s.Placements().Count("KPD")+s.Placements().Count("SPD"))
	require.NoError(t, reg.CheckInvariants())
}

func TestSessionReplayIsDeterministic(t *testing.T) {
	sc, err := script.ParseScenario([]byte(setupJSON))
	require.NoError(t, err)

	var sums []string
	for i := 0; i < 3; i++ {
		s := newTestSession(t)
		require.NoError(t, s.RunScenario(context.Background(), sc))
		sums = append(sums, s.Snapshot().Checksum())
	}
	assert.NotEmpty(t, sums[0])
	assert.Equal(t, sums[0], sums[1])
	assert.Equal(t, sums[0], sums[2])

	other := newTestSession(t)
	assert.NotEqual(t, sums[0], other.Snapshot().Checksum())
}

func TestSessionPlayCardWithChoice(t *testing.T) {
	s := newTestSession(t)
	cards, err := script.ParseCards([]byte(`{"cards": [{
	  "cardId": "KPD_07",
	  "affiliation": "KPD",
	  "cardName": "General Strike",
	  "largeValue": 3,
	  "smallValue": 1,
	  "eventScript": "[{\"command\":\"PlayerChoice\",\"args\":{\"partyId\":\"KPD\",\"choicePrompt\":\"Strike?\",\"options\":[{\"buttonText\":\"Yes\",\"effects\":[{\"command\":\"ModifyVp\",\"args\":{\"partyId\":\"KPD\",\"value\":2}}]},{\"buttonText\":\"No\",\"effects\":[]}]}}]"
	}]}`))
	require.NoError(t, err)
	require.Len(t, cards, 1)

	requests := make(chan rules.Event, 1)
	s.Bus().SubscribeTyped(rules.EventSelectionRequested, func(e rules.Event) { requests <- e })

	done := make(chan error, 1)
	go func() { done <- s.PlayCard(context.Background(), &cards[0]) }()

	select {
	case req := <-requests:
		assert.Equal(t, "Strike?", req.Prompt)
		assert.Equal(t, "KPD", req.Faction)
		s.Broker().Resolve(req.CorrelationID, req.Candidates[0].Value)
	case <-time.After(2 * time.Second):
		t.Fatal("no selection requested")
	}
	require.NoError(t, <-done)

	st, _ := s.Factions().State(faction.KPD)
	assert.Equal(t, 2, st.VictoryPoints)
}

func TestSessionRunsOneScriptAtATime(t *testing.T) {
	s := newTestSession(t)
	requests := make(chan rules.Event, 2)
	s.Bus().SubscribeTyped(rules.EventSelectionRequested, func(e rules.Event) { requests <- e })

	waiting := script.Script{{
		Command: script.CmdPlacePartyBases,
		Args:    script.Args{PartyID: "DNVP", Location: &script.Location{Type: "PlayerChoiceAmong"}},
	}}
	quick := script.Script{{Command: script.CmdModifyVp, Args: script.Args{PartyID: "DNVP", Value: 1}}}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.Run(context.Background(), "waiting", waiting))
	}()
	req := <-requests

	second := make(chan error, 1)
	go func() { second <- s.Run(context.Background(), "quick", quick) }()

	select {
	case <-second:
		t.Fatal("second script ran while the first was suspended")
	case <-time.After(50 * time.Millisecond):
	}
	st, _ := s.Factions().State(faction.DNVP)
	assert.Equal(t, 0, st.VictoryPoints)

	s.Broker().Resolve(req.CorrelationID, board.CityID("Ruhr"))
	wg.Wait()
	require.NoError(t, <-second)
	st, _ = s.Factions().State(faction.DNVP)
	assert.Equal(t, 1, st.VictoryPoints)
}

func TestSessionCloseCancelsSelections(t *testing.T) {
	s := newTestSession(t)
	requested := make(chan struct{}, 1)
	s.Bus().SubscribeTyped(rules.EventSelectionRequested, func(rules.Event) { requested <- struct{}{} })

	done := make(chan error, 1)
	go func() {
		done <- s.Run(context.Background(), "pending", script.Script{{
			Command: script.CmdPlacePartyBases,
			Args:    script.Args{PartyID: "SPD", Location: &script.Location{Type: "PlayerChoiceAmong"}},
		}})
	}()
	<-requested
	require.NoError(t, s.Close())
	assert.ErrorIs(t, <-done, ErrSessionClosed)

	err := s.Run(context.Background(), "late", nil)
	assert.True(t, errors.Is(err, ErrSessionClosed))
}

func TestSessionCloseStopsRepeatedChoice(t *testing.T) {
	s := newTestSession(t)
	requested := make(chan struct{}, 8)
	s.Bus().SubscribeTyped(rules.EventSelectionRequested, func(rules.Event) { requested <- struct{}{} })

	done := make(chan error, 1)
	go func() {
		done <- s.Run(context.Background(), "three choices", script.Script{{
			Command: script.CmdPlacePartyBases,
			Args: script.Args{
				PartyID:  "SPD",
				Count:    3,
				Location: &script.Location{Type: "PlayerChoiceAmong"},
			},
		}})
	}()
	<-requested

	closed := make(chan error, 1)
	go func() { closed <- s.Close() }()
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("Close blocked with %d open selections", len(s.Broker().Open()))
	}
	assert.ErrorIs(t, <-done, ErrSessionClosed)
	assert.Empty(t, s.Broker().Open())
}

func TestSessionLuaPredicatesFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Predicates = map[string]string{
		"ReichIsCalm": `function check(cond, state) return state.markersIn("dr_box") == 0 end`,
	}
	s, err := NewSession(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, s.Run(context.Background(), "calm", script.Script{{
		Command: script.CmdConditional,
		Args: script.Args{
			Condition: &script.Condition{Type: "ReichIsCalm"},
			OnSuccess: []script.Node{{Command: script.CmdModifyVp, Args: script.Args{PartyID: "Z", Value: 1}}},
		},
	}}))
	st, _ := s.Factions().State(faction.Z)
	assert.Equal(t, 1, st.VictoryPoints)

	cfg.Predicates = map[string]string{"Broken": "function check("}
	_, err = NewSession(cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestSessionThresholdSignal(t *testing.T) {
	s := newTestSession(t)
	var reached []rules.Event
	s.Bus().SubscribeTyped(rules.EventThresholdReached, func(e rules.Event) { reached = append(reached, e) })

	require.NoError(t, s.Run(context.Background(), "pressure", script.Script{{
		Command: script.CmdPlaceThreatMarker,
		Args:    script.Args{DataID: "Poverty", Count: 8, Location: &script.Location{Type: "CentralAuthority"}},
	}}))
	require.Len(t, reached, 1)
	assert.Equal(t, 7, reached[0].Amount)
	assert.Equal(t, 8, s.CentralAuthority().Occupancy())
}
