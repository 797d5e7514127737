package effects

import (
	"context"
	"testing"

	"github.com/kesa0v0/WeimarPort/internal/game/board"
	"github.com/kesa0v0/WeimarPort/internal/game/faction"
	"github.com/kesa0v0/WeimarPort/internal/game/rules"
	"github.com/kesa0v0/WeimarPort/internal/game/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) run(t *testing.T, nodes ...script.Node) {
	t.Helper()
	require.NoError(t, f.in.Execute(context.Background(), nodes))
}

func (f *fixture) record(types ...rules.EventType) *[]rules.Event {
	var got []rules.Event
	for _, typ := range types {
		f.state.Bus.SubscribeTyped(typ, func(e rules.Event) { got = append(got, e) })
	}
	return &got
}

func TestPlaceThreatMarker(t *testing.T) {
	f := newFixture(t, 1)
	f.run(t, script.Node{
		Command: script.CmdPlaceThreatMarker,
		Args:    script.Args{DataID: "Threat_Unrest", Count: 2, Location: specific("berlin")},
	})

	markers := f.state.Registry.EntitiesIn(board.CityID("Berlin"))
	require.Len(t, markers, 2)
	for _, m := range markers {
		assert.Equal(t, board.KindMarker, m.Kind())
		assert.Equal(t, "Unrest", m.DataID())
	}
	assert.Equal(t, 0, f.occupancy(t, "Berlin"), "markers do not take seats")
}

func TestPlaceThreatMarkerExhaustedSupply(t *testing.T) {
	f := newFixture(t, 1)
	f.run(t, script.Node{
		Command: script.CmdPlaceThreatMarker,
		Args:    script.Args{DataID: "MinorityCabinet", Count: 2, Location: specific("Ruhr")},
	})
	assert.Len(t, f.state.Registry.EntitiesIn(board.CityID("Ruhr")), 1)
	assert.Equal(t, 1, f.warns.Len())
}

func TestPlacePartyBasePrefersReserve(t *testing.T) {
	f := newFixture(t, 1)
	reg := f.state.Registry
	require.NoError(t, reg.SpawnInto(board.NewBase("base_spd_reserve", faction.SPD), board.ReserveID(faction.SPD)))

	f.run(t, script.Node{
		Command: script.CmdPlacePartyBases,
		Args:    script.Args{PartyID: "spd", Count: 2, Location: specific("Leipzig")},
	})

	bases := reg.BasesIn(board.CityID("Leipzig"), faction.SPD)
	assert.Equal(t, []string{"base_spd_reserve", "base_spd_1"}, bases)
	assert.Empty(t, reg.BasesIn(board.ReserveID(faction.SPD), faction.SPD))
}

func TestPlaceParliamentSeats(t *testing.T) {
	f := newFixture(t, 1)
	f.run(t, script.Node{
		Command: script.CmdPlaceParliamentSeats,
		Args:    script.Args{PartyID: "Zentrum", Count: 3},
	})
	parliament, ok := f.state.Registry.Container(board.ParliamentID)
	require.True(t, ok)
	assert.Equal(t, 3, parliament.Occupancy)
	for _, e := range f.state.Registry.EntitiesIn(board.ParliamentID) {
		assert.Equal(t, board.KindSeat, e.Kind())
		assert.Equal(t, faction.Z, e.Faction())
	}
}

func TestReinforceUnit(t *testing.T) {
	f := newFixture(t, 1)
	changed := f.record(rules.EventUnitControlChanged)
	f.run(t,
		script.Node{Command: script.CmdReinforceUnit, Args: script.Args{DataID: "UnitData_KPD_Soldiers", Count: 2}},
		script.Node{Command: script.CmdReinforceUnit, Args: script.Args{DataID: "Government_Police", PartyID: "SPD"}},
		script.Node{Command: script.CmdReinforceUnit, Args: script.Args{DataID: "Zeppelin"}},
	)

	reg := f.state.Registry
	kpd := reg.EntitiesIn(board.ReserveID(faction.KPD))
	require.Len(t, kpd, 2)
	assert.Equal(t, faction.KPD, kpd[0].Faction())

	spd := reg.EntitiesIn(board.ReserveID(faction.SPD))
	require.Len(t, spd, 1)
	assert.Equal(t, faction.SPD, spd[0].Faction(), "controller follows the reinforcing party")
	require.Len(t, *changed, 1)
	assert.Equal(t, spd[0].ID(), (*changed)[0].EntityID)

	assert.Equal(t, 1, f.warns.Len(), "unknown unit type")
}

func TestPlaceUnitFromReserveOrSpawned(t *testing.T) {
	f := newFixture(t, 1)
	f.run(t,
		script.Node{Command: script.CmdReinforceUnit, Args: script.Args{DataID: "SPD_Reichsbanner"}},
		script.Node{Command: script.CmdPlaceUnit, Args: script.Args{DataID: "SPD_Reichsbanner", Count: 2, Location: specific("Hamburg")}},
	)
	reg := f.state.Registry
	units := reg.EntitiesIn(board.CityID("Hamburg"))
	require.Len(t, units, 2)
	assert.Equal(t, "unit_spd_reichsbanner_1", units[0].ID(), "reserve unit first")
	assert.Empty(t, reg.EntitiesIn(board.ReserveID(faction.SPD)))
	assert.Equal(t, 0, f.occupancy(t, "Hamburg"))
}

func TestPlaceUnitByInstance(t *testing.T) {
	f := newFixture(t, 1)
	f.run(t,
		script.Node{Command: script.CmdReinforceUnit, Args: script.Args{DataID: "Government_Reichswehr"}},
		script.Node{Command: script.CmdPlaceUnit, Args: script.Args{
			InstanceID: "unit_government_reichswehr_1",
			PartyID:    "DNVP",
			Location:   specific("Breslau"),
		}},
		script.Node{Command: script.CmdPlaceUnit, Args: script.Args{InstanceID: "ghost", Location: specific("Breslau")}},
	)
	reg := f.state.Registry
	loc, _ := reg.LocationOf("unit_government_reichswehr_1")
	assert.Equal(t, board.CityID("Breslau"), loc)
	u, _ := reg.Entity("unit_government_reichswehr_1")
	assert.Equal(t, faction.DNVP, u.Faction())
	assert.Equal(t, 1, f.warns.Len())
}

func TestModifyVpAndReserve(t *testing.T) {
	f := newFixture(t, 1)
	events := f.record(rules.EventVPChanged, rules.EventReserveChanged)
	f.run(t,
		script.Node{Command: script.CmdModifyVp, Args: script.Args{PartyID: "DNVP", Value: 4}},
		script.Node{Command: script.CmdModifyVp, Args: script.Args{PartyID: "DNVP", Value: -1}},
		script.Node{Command: script.CmdModifyReserve, Args: script.Args{PartyID: "KPD", Value: -3}},
	)
	st, _ := f.state.Factions.State(faction.DNVP)
	assert.Equal(t, 3, st.VictoryPoints)

	require.Len(t, *events, 3)
	last := (*events)[1]
	assert.Equal(t, rules.EventVPChanged, last.Type)
	assert.Equal(t, 3, last.Amount)
	assert.Equal(t, "-1", last.Metadata["delta"])
	assert.Equal(t, 0, (*events)[2].Amount, "reserve points never go negative")
}

func TestMoveTrackClamps(t *testing.T) {
	f := newFixture(t, 1)
	moved := f.record(rules.EventTrackMoved)
	f.run(t,
		script.Node{Command: script.CmdMoveTrack, Args: script.Args{DataID: "foreignaffairs", Value: 15}},
		script.Node{Command: script.CmdMoveTrack, Args: script.Args{DataID: "Economy", Value: -2}},
		script.Node{Command: script.CmdMoveTrack, Args: script.Args{DataID: "Weather", Value: 1}},
	)
	assert.Equal(t, board.DefaultTrackMax, f.state.Tracks.Position(board.TrackForeignAffairs))
	assert.Equal(t, 0, f.state.Tracks.Position(board.TrackEconomy))
	require.Len(t, *moved, 2)
	assert.Equal(t, string(board.TrackForeignAffairs), (*moved)[0].EntityID)
	assert.Equal(t, 1, f.warns.Len())
}

func TestPlaceIssueMarker(t *testing.T) {
	f := newFixture(t, 1)
	f.run(t,
		script.Node{Command: script.CmdPlaceIssueMarker, Args: script.Args{DataID: "Issue_Reparations", PartyID: "SPD"}},
		script.Node{Command: script.CmdPlaceIssueMarker},
	)
	issues := f.state.Registry.EntitiesIn(board.OpinionTrackID)
	require.Len(t, issues, 1)
	assert.Equal(t, "issue_reparations_1", issues[0].ID())
	assert.Equal(t, faction.SPD, issues[0].Faction())
	assert.Equal(t, 1, f.warns.Len())
}

func TestChangeMinorPartyControl(t *testing.T) {
	f := newFixture(t, 1)
	changed := f.record(rules.EventMinorPartyControlChanged)
	f.run(t,
		script.Node{Command: script.CmdChangeMinorPartyControl, Args: script.Args{DataID: "DDP", PartyID: "Z"}},
		script.Node{Command: script.CmdChangeMinorPartyControl, Args: script.Args{DataID: "DDP", PartyID: "SPD"}},
	)
	assert.Equal(t, faction.SPD, f.state.Factions.MinorPartyController(faction.DDP))
	require.Len(t, *changed, 2)
	assert.Equal(t, "Z", (*changed)[1].From)
	assert.Equal(t, "SPD", (*changed)[1].To)
}

func TestDissolveUnit(t *testing.T) {
	f := newFixture(t, 1)
	f.run(t,
		script.Node{Command: script.CmdReinforceUnit, Args: script.Args{DataID: "NSDAP_SA"}},
		script.Node{Command: script.CmdDissolveUnit, Args: script.Args{InstanceID: "unit_nsdap_sa_1"}},
		script.Node{Command: script.CmdDissolveUnit, Args: script.Args{InstanceID: "threat_poverty_1"}},
	)
	loc, _ := f.state.Registry.LocationOf("unit_nsdap_sa_1")
	assert.Equal(t, board.DisposedID, loc)
	loc, _ = f.state.Registry.LocationOf("threat_poverty_1")
	assert.Equal(t, board.UnavailableID, loc, "only units can be dissolved")
	assert.Equal(t, 1, f.warns.Len())
}

func TestPlaceFlag(t *testing.T) {
	f := newFixture(t, 1)
	placed := f.record(rules.EventFlagPlaced)
	f.run(t,
		script.Node{Command: script.CmdPlaceFlag, Args: script.Args{FlagType: "Strike", Count: 2}},
		script.Node{Command: script.CmdPlaceFlag, Args: script.Args{FlagType: "  "}},
	)
	assert.Equal(t, 2, f.state.Flags.Count("Strike"))
	require.Len(t, *placed, 2)
	assert.Equal(t, 2, (*placed)[1].Amount)
	assert.Equal(t, 1, f.warns.Len())
}
