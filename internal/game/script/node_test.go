package script

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cardScript = `[
  {"comment": "Spartacist uprising", "command": "Conditional", "args": {
    "condition": {"type": "IsInGovernment", "partyId": "SPD"},
    "onSuccess": [{"command": "ModifyVp", "args": {"partyId": "SPD", "value": -2}}],
    "onFailure": [{"command": "PlaceThreatMarker", "args": {"dataId": "Unrest", "count": 2,
      "location": {"type": "RandomCity", "params": {"unique": true, "exclude": ["Berlin"]}}}}]
  }},
  {"command": "PlayerChoice", "args": {
    "choicePrompt": "Support the strike?",
    "options": [
      {"buttonText": "Yes", "effects": [{"command": "MoveTrack", "args": {"dataId": "Economy", "value": -1}}]},
      {"label": "No", "effects": []}
    ]
  }}
]`

func TestParseNestedScript(t *testing.T) {
	s, err := Parse([]byte(cardScript))
	require.NoError(t, err)
	require.Len(t, s, 2)

	cond := s[0]
	assert.Equal(t, CmdConditional, cond.Command)
	require.True(t, cond.IsConditional())
	assert.Equal(t, "IsInGovernment", cond.Args.Condition.Type)
	require.Len(t, cond.Args.OnFailure, 1)

	place := cond.Args.OnFailure[0]
	assert.Equal(t, 2, place.Repetitions())
	kind, ok := place.Args.Location.Kind()
	require.True(t, ok)
	assert.Equal(t, LocRandomAnyOf, kind)
	assert.True(t, place.Args.Location.Params.Unique)
	assert.Equal(t, []string{"Berlin"}, place.Args.Location.Params.Exclude)

	choice := s[1]
	require.True(t, choice.IsChoice())
	assert.Equal(t, "Yes", choice.Args.Options[0].Label, "buttonText is accepted as label")
	assert.Equal(t, "No", choice.Args.Options[1].Label)
	assert.Equal(t, 1, choice.Repetitions())

	require.NoError(t, Validate(s))
}

func TestParseLocationTypeAliases(t *testing.T) {
	cases := map[string]LocationType{
		"SpecificCity":      LocSpecific,
		"Specific":          LocSpecific,
		"RandomCity":        LocRandomAnyOf,
		"PlayerChoice_City": LocPlayerChoice,
		"PlayerChoiceAmong": LocPlayerChoice,
		"DR_Box":            LocCentralAuthority,
		"CentralAuthority":  LocCentralAuthority,
		"Reserve":           LocReserve,
	}
	for tag, want := range cases {
		got, ok := ParseLocationType(tag)
		require.True(t, ok, tag)
		assert.Equal(t, want, got, tag)
	}
	_, ok := ParseLocationType("Moon")
	assert.False(t, ok)
}

func TestValidateReportsIssues(t *testing.T) {
	s := Script{
		{Command: "SummonDragon"},
		{Command: CmdModifyVp, Args: Args{PartyID: "BVP", Value: 1}},
		{Command: CmdPlacePartyBases, Args: Args{PartyID: "SPD", Location: &Location{Type: "Ocean"}}},
		{Command: CmdConditional, Args: Args{
			Condition: &Condition{Type: "IsRaining"},
			OnSuccess: []Node{{Command: "Teleport"}},
		}},
		{Command: CmdPlayerChoice},
	}
	issues := NewValidator().Check(s)
	paths := make([]string, 0, len(issues))
	for _, i := range issues {
		paths = append(paths, i.Path)
	}
	assert.Equal(t, []string{
		"script[0]",
		"script[1]",
		"script[2]",
		"script[3]",
		"script[3].onSuccess[0]",
		"script[4]",
	}, paths)

	assert.Error(t, Validate(s))
	assert.Empty(t, NewValidator("IsRaining").Check(Script{{Command: CmdConditional, Args: Args{Condition: &Condition{Type: "IsRaining"}}}}))
}

func TestCardEventScriptForms(t *testing.T) {
	data := []byte(`{"cards": [
	  {"cardId": "C01", "affiliation": "SPD", "cardName": "Stinnes-Legien", "largeValue": 3, "smallValue": 1,
	   "eventScript": [{"command": "ModifyVp", "args": {"partyId": "SPD", "value": 1}}]},
	  {"cardId": "C02", "affiliation": "KPD", "cardName": "Ruhr Uprising", "removeFromGame": true,
	   "eventScript": "[{\"command\": \"PlaceFlag\", \"args\": {\"flagType\": \"France\"}}]"},
	  {"cardId": "C03", "cardName": "Blank"}
	]}`)
	cards, err := ParseCards(data)
	require.NoError(t, err)
	require.Len(t, cards, 3)

	assert.Equal(t, CmdModifyVp, cards[0].EventScript[0].Command)
	assert.Equal(t, 3, cards[0].LargeValue)
	assert.Equal(t, CmdPlaceFlag, cards[1].EventScript[0].Command)
	assert.True(t, cards[1].RemoveFromGame)
	assert.Empty(t, cards[2].EventScript)

	out, err := json.Marshal(cards[1])
	require.NoError(t, err)
	assert.Contains(t, string(out), `"eventScript":[{"command":"PlaceFlag"`)
}

func TestLoadScenarioDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	write("1919.json", `{"scenarioName": "1919", "description": "Revolution", "setupScript": [
	  {"command": "PlacePartyBases", "args": {"partyId": "Zentrum", "count": 2, "location": {"type": "SpecificCity", "name": "Köln"}}}
	]}`)
	write("notes.txt", "ignored")

	scenarios, err := LoadScenarioDir(dir)
	require.NoError(t, err)
	require.Contains(t, scenarios, "1919")
	sc := scenarios["1919"]
	assert.Equal(t, "Revolution", sc.Description)
	require.Len(t, sc.Setup, 1)
	assert.Equal(t, "Köln", sc.Setup[0].Args.Location.Name)

	write("broken.json", `{"description": "no name"}`)
	_, err = LoadScenarioDir(dir)
	assert.Error(t, err)
}
