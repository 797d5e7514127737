package game

import (
	"context"
	"testing"

	"github.com/kesa0v0/WeimarPort/internal/game/board"
	"github.com/kesa0v0/WeimarPort/internal/game/faction"
	"github.com/kesa0v0/WeimarPort/internal/game/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func playedSession(t *testing.T) *Session {
	t.Helper()
	s := newTestSession(t)
	sc, err := script.ParseScenario([]byte(setupJSON))
	require.NoError(t, err)
	require.NoError(t, s.RunScenario(context.Background(), sc))
	s.Factions().SetCoalition(faction.SPD, faction.Z)
	return s
}

func TestSnapshotCapturesState(t *testing.T) {
	s := playedSession(t)
	snap := s.Snapshot()
	bases := len(s.Registry().BaseOwners(board.CityID("Berlin")))
	occupied := len(s.Registry().BasesIn(board.CityID("Berlin"), faction.SPD)) +
		len(s.Registry().BasesIn(board.CityID("Berlin"), faction.KPD))

	var berlin *ContainerSnapshot
	for i := range snap.Containers {
		if snap.Containers[i].ID == board.CityID("Berlin") {
			berlin = &snap.Containers[i]
		}
	}
	require.NotNil(t, berlin)
	assert.Equal(t, "CITY", berlin.Kind)
	assert.Equal(t, 5, berlin.Capacity)
	assert.Len(t, berlin.Members, occupied+2, "bases plus two markers")
	assert.Equal(t, occupied, berlin.Occupancy)
	assert.GreaterOrEqual(t, bases, 1)

	assert.Equal(t, []string{"SPD", "Z"}, snap.Coalition)
	assert.Equal(t, 3, snap.Tracks["ForeignAffairs"])
	assert.Equal(t, 1, snap.Flags["Revolution"])

	for _, f := range snap.Factions {
		switch f.Faction {
		case "KPD":
			assert.Equal(t, []string{"USPD"}, f.Controls)
		case "USPD":
			assert.Equal(t, "KPD", f.ControlledBy)
		}
	}
}

func TestComputeChecksum(t *testing.T) {
	snap := playedSession(t).Snapshot()
	sum, err := snap.ComputeChecksum()
	require.NoError(t, err)
	assert.Len(t, sum.Hash, 64)
	assert.Equal(t, snapshotVersion, sum.Version)
	assert.NotEmpty(t, sum.Timestamp)

	ok, err := snap.VerifyChecksum(sum)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestChecksumIgnoresSessionAndTime(t *testing.T) {
	snap := playedSession(t).Snapshot()
	before := snap.Checksum()
	snap.SessionID = "other"
	snap.Timestamp = snap.Timestamp.Add(3600e9)
	assert.Equal(t, before, snap.Checksum())
}

func TestChecksumDifferentStates(t *testing.T) {
	s := playedSession(t)
	before := s.Snapshot().Checksum()

	_, err := s.Factions().AddVictoryPoints(faction.DNVP, 1)
	require.NoError(t, err)
	afterVP := s.Snapshot().Checksum()
	assert.NotEqual(t, before, afterVP)

	require.NoError(t, s.Registry().Move("threat_poverty_1", board.CentralAuthorityID))
	assert.NotEqual(t, afterVP, s.Snapshot().Checksum())
}

func TestSerializationRoundtrip(t *testing.T) {
	snap := playedSession(t).Snapshot()
	require.NoError(t, ValidateSerializationRoundtrip(snap))

	data, err := snap.SerializeToBytes()
	require.NoError(t, err)
	decoded, err := DeserializeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, snap.SessionID, decoded.SessionID)
	assert.Equal(t, len(snap.Entities), len(decoded.Entities))

	_, err = DeserializeSnapshot([]byte("not gob"))
	assert.Error(t, err)
}
