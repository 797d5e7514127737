package script

import (
	"encoding/json"
	"strings"
)

// Command is the tag of an effect node. The set is closed; see Commands.
type Command string

const (
	CmdPlaceThreatMarker       Command = "PlaceThreatMarker"
	CmdPlacePartyBases         Command = "PlacePartyBases"
	CmdPlaceParliamentSeats    Command = "PlaceParliamentSeats"
	CmdReinforceUnit           Command = "ReinforceUnit"
	CmdPlaceUnit               Command = "PlaceUnit"
	CmdModifyVp                Command = "ModifyVp"
	CmdModifyReserve           Command = "ModifyReserve"
	CmdMoveTrack               Command = "MoveTrack"
	CmdPlaceIssueMarker        Command = "PlaceIssueMarker"
	CmdChangeMinorPartyControl Command = "ChangeMinorPartyControl"
	CmdDissolveUnit            Command = "DissolveUnit"
	CmdPlaceFlag               Command = "PlaceFlag"

	// Structural commands carrying only a condition or a choice.
	CmdConditional  Command = "Conditional"
	CmdPlayerChoice Command = "PlayerChoice"
)

// Commands lists every command the interpreter dispatches on.
var Commands = []Command{
	CmdPlaceThreatMarker,
	CmdPlacePartyBases,
	CmdPlaceParliamentSeats,
	CmdReinforceUnit,
	CmdPlaceUnit,
	CmdModifyVp,
	CmdModifyReserve,
	CmdMoveTrack,
	CmdPlaceIssueMarker,
	CmdChangeMinorPartyControl,
	CmdDissolveUnit,
	CmdPlaceFlag,
	CmdConditional,
	CmdPlayerChoice,
}

// Known reports whether c is part of the closed command set.
func (c Command) Known() bool {
	for _, k := range Commands {
		if k == c {
			return true
		}
	}
	return false
}

// LocationType is the normalised tag of a location specifier.
type LocationType string

const (
	LocSpecific         LocationType = "Specific"
	LocRandomAnyOf      LocationType = "RandomAnyOf"
	LocPlayerChoice     LocationType = "PlayerChoiceAmong"
	LocCentralAuthority LocationType = "CentralAuthority"
	LocReserve          LocationType = "Reserve"
	LocParliament       LocationType = "Parliament"
	LocOpinionTrack     LocationType = "OpinionTrack"
	LocDisposed         LocationType = "Disposed"
)

var locationTags = map[string]LocationType{
	"specific":          LocSpecific,
	"specificcity":      LocSpecific,
	"randomanyof":       LocRandomAnyOf,
	"randomcity":        LocRandomAnyOf,
	"playerchoiceamong": LocPlayerChoice,
	"playerchoice_city": LocPlayerChoice,
	"centralauthority":  LocCentralAuthority,
	"dr_box":            LocCentralAuthority,
	"reserve":           LocReserve,
	"parliament":        LocParliament,
	"opiniontrack":      LocOpinionTrack,
	"disposed":          LocDisposed,
}

// ParseLocationType normalises a location tag. Script files use both the
// short and the long spelling of each tag.
func ParseLocationType(tag string) (LocationType, bool) {
	t, ok := locationTags[strings.ToLower(strings.TrimSpace(tag))]
	return t, ok
}

// LocationParams refines a location specifier.
type LocationParams struct {
	Unique  bool     `json:"unique,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
	HasRoom bool     `json:"hasRoom,omitempty"`
}

// Location is the serialized location specifier.
type Location struct {
	Type   string         `json:"type"`
	Name   string         `json:"name,omitempty"`
	Params LocationParams `json:"params"`
}

// Kind returns the normalised location type.
func (l Location) Kind() (LocationType, bool) {
	return ParseLocationType(l.Type)
}

// ConditionType names a built-in predicate.
type ConditionType string

const (
	CondIsInGovernment     ConditionType = "IsInGovernment"
	CondHasThreatMarker    ConditionType = "HasThreatMarker"
	CondHasPartyBase       ConditionType = "HasPartyBase"
	CondControlsMinorParty ConditionType = "ControlsMinorParty"
)

// Condition is the serialized predicate of a conditional node.
type Condition struct {
	Type     string    `json:"type"`
	PartyID  string    `json:"partyId,omitempty"`
	MarkerID string    `json:"markerId,omitempty"`
	Location *Location `json:"location,omitempty"`
}

// Option is one branch of a player choice.
type Option struct {
	Label   string `json:"label"`
	Effects []Node `json:"effects"`
}

// UnmarshalJSON accepts buttonText as an alias of label.
func (o *Option) UnmarshalJSON(data []byte) error {
	var raw struct {
		Label      string `json:"label"`
		ButtonText string `json:"buttonText"`
		Effects    []Node `json:"effects"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.Label = raw.Label
	if o.Label == "" {
		o.Label = raw.ButtonText
	}
	o.Effects = raw.Effects
	return nil
}

// Args is the argument bundle of a node.
type Args struct {
	PartyID       string    `json:"partyId,omitempty"`
	TargetPartyID string    `json:"targetPartyId,omitempty"`
	InstanceID    string    `json:"instanceId,omitempty"`
	DataID        string    `json:"dataId,omitempty"`
	FlagType      string    `json:"flagType,omitempty"`
	Count         int       `json:"count,omitempty"`
	Value         int       `json:"value,omitempty"`
	Location      *Location `json:"location,omitempty"`

	Condition *Condition `json:"condition,omitempty"`
	OnSuccess []Node     `json:"onSuccess,omitempty"`
	OnFailure []Node     `json:"onFailure,omitempty"`

	ChoicePrompt string   `json:"choicePrompt,omitempty"`
	Options      []Option `json:"options,omitempty"`
}

// Node is one instruction of a script. Nodes are read-only once decoded.
type Node struct {
	Comment string  `json:"comment,omitempty"`
	Command Command `json:"command"`
	Args    Args    `json:"args"`
}

// Repetitions returns the count, defaulting to 1.
func (n Node) Repetitions() int {
	if n.Args.Count > 0 {
		return n.Args.Count
	}
	return 1
}

// IsConditional reports whether the node branches on a condition.
func (n Node) IsConditional() bool {
	return n.Args.Condition != nil
}

// IsChoice reports whether the node asks the player to pick an option.
func (n Node) IsChoice() bool {
	return len(n.Args.Options) > 0
}

// Script is an ordered instruction list.
type Script []Node

// Parse decodes a JSON instruction list.
func Parse(data []byte) (Script, error) {
	var s Script
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}
