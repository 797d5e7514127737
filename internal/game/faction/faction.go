package faction

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedIdentifier is returned when a script names a faction that is not
// part of the closed enumeration. It indicates a corrupt script.
var ErrMalformedIdentifier = errors.New("malformed identifier")

// Type identifies a faction. The set is closed; Parse is the only way to turn
// script text into a Type.
type Type string

const (
	// None is the zero value used for "no faction".
	None Type = ""

	// Main (playable) parties
	KPD  Type = "KPD"
	SPD  Type = "SPD"
	Z    Type = "Z"
	DNVP Type = "DNVP"

	// Government is the state side; it owns government units.
	Government Type = "Government"

	// Minor (non-playable) parties
	USPD  Type = "USPD"
	DDP   Type = "DDP"
	DVP   Type = "DVP"
	NSDAP Type = "NSDAP"
)

// MainParties lists the playable parties in seating order.
var MainParties = []Type{SPD, Z, KPD, DNVP}

// MinorParties lists the non-playable parties.
var MinorParties = []Type{USPD, DDP, DVP, NSDAP}

// All lists every faction known to the engine.
var All = []Type{KPD, SPD, Z, DNVP, Government, USPD, DDP, DVP, NSDAP}

var aliases = map[string]Type{
	"zentrum": Z,
}

// Parse converts a script identifier into a faction Type.
// Matching is case-insensitive and accepts "Zentrum" as an alias for Z.
func Parse(id string) (Type, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return None, fmt.Errorf("%w: empty faction id", ErrMalformedIdentifier)
	}
	lower := strings.ToLower(trimmed)
	if t, ok := aliases[lower]; ok {
		return t, nil
	}
	for _, t := range All {
		if strings.ToLower(string(t)) == lower {
			return t, nil
		}
	}
	return None, fmt.Errorf("%w: unknown faction %q", ErrMalformedIdentifier, id)
}

// ParseOptional is Parse, but an empty id yields None without error.
func ParseOptional(id string) (Type, error) {
	if strings.TrimSpace(id) == "" {
		return None, nil
	}
	return Parse(id)
}

// String returns the canonical identifier.
func (t Type) String() string {
	if t == None {
		return "None"
	}
	return string(t)
}

// IsMain reports whether t is a playable party.
func (t Type) IsMain() bool {
	for _, m := range MainParties {
		if m == t {
			return true
		}
	}
	return false
}

// IsMinor reports whether t is a minor party.
func (t Type) IsMinor() bool {
	for _, m := range MinorParties {
		if m == t {
			return true
		}
	}
	return false
}

// Record holds the immutable display and rule data for a faction.
type Record struct {
	Type           Type
	Name           string
	Color          string
	Playable       bool
	CoupActionCost int
	// Minor party data; empty for main parties.
	ControllerOptions [2]Type
	SeatBonusByRound  [6]int
}

// SeatBonus returns the parliament seats a minor party gains at the start of
// round (1-based). Rounds outside the table yield 0.
func (r Record) SeatBonus(round int) int {
	if round < 1 || round > len(r.SeatBonusByRound) {
		return 0
	}
	return r.SeatBonusByRound[round-1]
}

// CanBeControlledBy reports whether the minor party described by r may be
// controlled by party.
func (r Record) CanBeControlledBy(party Type) bool {
	return r.ControllerOptions[0] == party || r.ControllerOptions[1] == party
}

// DefaultRecords returns the faction records used when a session is created.
func DefaultRecords() map[Type]Record {
	return map[Type]Record{
		SPD:        {Type: SPD, Name: "Sozialdemokratische Partei Deutschlands", Color: "#e3000f", Playable: true, CoupActionCost: 4},
		Z:          {Type: Z, Name: "Zentrum", Color: "#000000", Playable: true, CoupActionCost: 4},
		KPD:        {Type: KPD, Name: "Kommunistische Partei Deutschlands", Color: "#8b0000", Playable: true, CoupActionCost: 3},
		DNVP:       {Type: DNVP, Name: "Deutschnationale Volkspartei", Color: "#3f7fbf", Playable: true, CoupActionCost: 4},
		Government: {Type: Government, Name: "Reichsregierung", Color: "#ffffff", CoupActionCost: 4},
		USPD: {
			Type: USPD, Name: "Unabhängige Sozialdemokratische Partei", Color: "#ff8080",
			ControllerOptions: [2]Type{SPD, KPD},
			SeatBonusByRound:  [6]int{2, 2, 1, 1, 0, 0},
		},
		DDP: {
			Type: DDP, Name: "Deutsche Demokratische Partei", Color: "#ffd700",
			ControllerOptions: [2]Type{SPD, Z},
			SeatBonusByRound:  [6]int{2, 1, 1, 1, 1, 0},
		},
		DVP: {
			Type: DVP, Name: "Deutsche Volkspartei", Color: "#8080ff",
			ControllerOptions: [2]Type{Z, DNVP},
			SeatBonusByRound:  [6]int{1, 1, 2, 2, 1, 1},
		},
		NSDAP: {
			Type: NSDAP, Name: "Nationalsozialistische Deutsche Arbeiterpartei", Color: "#8b4513",
			ControllerOptions: [2]Type{DNVP, DNVP},
			SeatBonusByRound:  [6]int{0, 0, 1, 1, 2, 3},
		},
	}
}
