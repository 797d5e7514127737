package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracksClamp(t *testing.T) {
	tracks := NewTracks(map[Track]int{TrackNSDAP: 6})

	pos, err := tracks.Move(TrackNSDAP, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, pos)
	pos, _ = tracks.Move(TrackNSDAP, 5)
	assert.Equal(t, 6, pos)
	pos, _ = tracks.Move(TrackEconomy, -3)
	assert.Equal(t, 0, pos)

	pos, _ = tracks.Move(TrackEconomy, 15)
	assert.Equal(t, DefaultTrackMax, pos)

	_, err = tracks.Move(Track("Weather"), 1)
	assert.Error(t, err)
}

func TestParseTrack(t *testing.T) {
	tr, err := ParseTrack("foreignaffairs")
	require.NoError(t, err)
	assert.Equal(t, TrackForeignAffairs, tr)

	_, err = ParseTrack("Morale")
	assert.Error(t, err)
}

func TestFlags(t *testing.T) {
	flags := NewFlags()
	assert.Equal(t, 2, flags.Add("France", 2))
	assert.Equal(t, 1, flags.Add("Britain", 1))
	assert.Equal(t, 0, flags.Add("Britain", -3))
	assert.Equal(t, []string{"France"}, flags.Types())
	assert.Equal(t, 2, flags.Count("France"))
}
