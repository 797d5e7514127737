package board

import (
	"fmt"
	"strings"

	"github.com/kesa0v0/WeimarPort/internal/game/faction"
)

// CitySpec describes one city of the board.
type CitySpec struct {
	Name     string `mapstructure:"name"`
	Capacity int    `mapstructure:"capacity"`
}

// DefaultCities returns the standard board.
func DefaultCities() []CitySpec {
	return []CitySpec{
		{Name: "Berlin", Capacity: 5},
		{Name: "Hamburg", Capacity: 3},
		{Name: "München", Capacity: 4},
		{Name: "Köln", Capacity: 3},
		{Name: "Leipzig", Capacity: 3},
		{Name: "Dresden", Capacity: 3},
		{Name: "Breslau", Capacity: 3},
		{Name: "Königsberg", Capacity: 2},
		{Name: "Frankfurt", Capacity: 3},
		{Name: "Ruhr", Capacity: 4},
	}
}

// ThreatSupply is the number of markers of one threat type in the game box.
type ThreatSupply struct {
	DataID string
	Count  int
}

// DefaultThreatSupply returns the threat marker counts of the base game.
func DefaultThreatSupply() []ThreatSupply {
	return []ThreatSupply{
		{DataID: "Poverty", Count: 12},
		{DataID: "Unrest", Count: 11},
		{DataID: "Inflation", Count: 3},
		{DataID: "Blockade", Count: 3},
		{DataID: "ViolentPeace", Count: 2},
		{DataID: "InstableState", Count: 2},
		{DataID: "MinorityCabinet", Count: 1},
		{DataID: "BlackFriday", Count: 2},
		{DataID: "Regime", Count: 4},
		{DataID: "Councils", Count: 4},
		{DataID: "Uprising", Count: 4},
	}
}

// Build adds the cities and spawns the threat supply into the Unavailable pool.
func Build(r *Registry, cities []CitySpec, supply []ThreatSupply) error {
	for _, c := range cities {
		if err := r.AddCity(c.Name, c.Capacity); err != nil {
			return err
		}
	}
	for _, s := range supply {
		mt := &MarkerType{DataID: s.DataID, Category: MarkerThreat, Name: s.DataID}
		for i := 1; i <= s.Count; i++ {
			id := fmt.Sprintf("threat_%s_%d", strings.ToLower(s.DataID), i)
			if err := r.Spawn(NewMarker(id, mt)); err != nil {
				return err
			}
		}
	}
	return nil
}

// DefaultUnitTypes returns the unit catalog keyed by data id.
func DefaultUnitTypes() map[string]*UnitType {
	types := []*UnitType{
		{DataID: "KPD_Soldiers", Name: "Roter Frontkämpferbund", Strength: 1, Affiliation: faction.KPD},
		{DataID: "SPD_Reichsbanner", Name: "Reichsbanner", Strength: 1, Affiliation: faction.SPD},
		{DataID: "Z_Windthorstbund", Name: "Windthorstbund", Strength: 1, Affiliation: faction.Z},
		{DataID: "DNVP_Stahlhelm", Name: "Stahlhelm", Strength: 1, Affiliation: faction.DNVP},
		{DataID: "NSDAP_SA", Name: "Sturmabteilung", Strength: 1, Affiliation: faction.NSDAP},
		{DataID: "Government_Police", Name: "Schutzpolizei", Strength: 1, Affiliation: faction.Government, IsGovernment: true},
		{DataID: "Government_Freikorps", Name: "Freikorps", Strength: 2, Affiliation: faction.Government, IsGovernment: true},
		{DataID: "Government_Reichswehr", Name: "Reichswehr", Strength: 2, Affiliation: faction.Government, IsGovernment: true, Flippable: true},
	}
	out := make(map[string]*UnitType, len(types))
	for _, ut := range types {
		out[strings.ToLower(ut.DataID)] = ut
	}
	return out
}

var dataIDPrefixes = []string{"threat_", "issue_", "unitdata_"}

// NormalizeDataID strips the asset prefixes used by card files
// ("Threat_Poverty", "UnitData_KPD_Soldiers") and lower-cases the rest.
func NormalizeDataID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range dataIDPrefixes {
		if strings.HasPrefix(id, p) {
			return strings.TrimPrefix(id, p)
		}
	}
	return id
}
