package faction

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := map[string]Type{
		"SPD":        SPD,
		"spd":        SPD,
		"Z":          Z,
		"Zentrum":    Z,
		" KPD ":      KPD,
		"Government": Government,
		"nsdap":      NSDAP,
	}
	for in, want := range cases {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseMalformed(t *testing.T) {
	for _, in := range []string{"", "BVP", "S P D"} {
		_, err := Parse(in)
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, ErrMalformedIdentifier), in)
	}

	got, err := ParseOptional("")
	require.NoError(t, err)
	assert.Equal(t, None, got)
}

func TestRecordsCoupCost(t *testing.T) {
	reg := NewRegistry(nil)
	kpd, ok := reg.Record(KPD)
	require.True(t, ok)
	assert.Equal(t, 3, kpd.CoupActionCost)

	spd, _ := reg.Record(SPD)
	assert.Equal(t, 4, spd.CoupActionCost)
	assert.True(t, spd.Playable)
}

func TestRegistryReadsRuleData(t *testing.T) {
	reg := NewRegistry(nil)
	assert.Equal(t, 3, reg.CoupActionCost(KPD))
	assert.Equal(t, 4, reg.CoupActionCost(DNVP))
	assert.Equal(t, 0, reg.CoupActionCost(None))

	assert.Equal(t, 2, reg.SeatBonus(USPD, 1))
	assert.Equal(t, 1, reg.SeatBonus(USPD, 3))
	assert.Equal(t, 0, reg.SeatBonus(USPD, 6))
	assert.Equal(t, 1, reg.SeatBonus(DDP, 5))
	assert.Equal(t, 0, reg.SeatBonus(DDP, 0))
	assert.Equal(t, 0, reg.SeatBonus(DDP, 7))
	assert.Equal(t, 0, reg.SeatBonus(SPD, 1), "main parties have no bonus")
}

func TestPoints(t *testing.T) {
	reg := NewRegistry(nil)

	vp, err := reg.AddVictoryPoints(SPD, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, vp)
	vp, _ = reg.AddVictoryPoints(SPD, -5)
	assert.Equal(t, -2, vp)

	rp, err := reg.AddReservePoints(KPD, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, rp)
	rp, _ = reg.AddReservePoints(KPD, -4)
	assert.Equal(t, 0, rp)

	_, err = reg.AddVictoryPoints(Type("BVP"), 1)
	assert.Error(t, err)
}

func TestMinorPartyControl(t *testing.T) {
	reg := NewRegistry(nil)

	prev, err := reg.SetMinorPartyController(DDP, SPD)
	require.NoError(t, err)
	assert.Equal(t, None, prev)
	assert.Equal(t, SPD, reg.MinorPartyController(DDP))

	prev, err = reg.SetMinorPartyController(DDP, Z)
	require.NoError(t, err)
	assert.Equal(t, SPD, prev)

	spd, _ := reg.State(SPD)
	z, _ := reg.State(Z)
	assert.Empty(t, spd.ControlledMinorParty)
	assert.Equal(t, []Type{DDP}, z.ControlledMinorParty)

	_, err = reg.SetMinorPartyController(DDP, KPD)
	assert.Error(t, err, "KPD is not a controller option for DDP")

	_, err = reg.SetMinorPartyController(SPD, Z)
	assert.Error(t, err)
}

func TestCoalition(t *testing.T) {
	reg := NewRegistry(nil)
	reg.SetCoalition(SPD, SPD, Z, DNVP)
	assert.Equal(t, []Type{SPD, Z}, reg.Coalition())
	assert.True(t, reg.InGovernment(Z))
	assert.False(t, reg.InGovernment(DNVP))
}
