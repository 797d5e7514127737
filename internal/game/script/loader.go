package script

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Scenario is a setup script file.
type Scenario struct {
	Name        string `json:"scenarioName"`
	Description string `json:"description"`
	Setup       Script `json:"setupScript"`
}

// Card is one playable card with its event script.
type Card struct {
	ID             string `json:"cardId"`
	Affiliation    string `json:"affiliation"`
	Name           string `json:"cardName"`
	LargeValue     int    `json:"largeValue"`
	SmallValue     int    `json:"smallValue"`
	RemoveFromGame bool   `json:"removeFromGame"`
	EventScript    Script `json:"-"`
}

// UnmarshalJSON accepts eventScript either as an array or as a string
// holding the JSON array.
func (c *Card) UnmarshalJSON(data []byte) error {
	type plain Card
	var raw struct {
		plain
		EventScript json.RawMessage `json:"eventScript"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Card(raw.plain)
	body := bytes.TrimSpace(raw.EventScript)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil
	}
	if body[0] == '"' {
		var text string
		if err := json.Unmarshal(body, &text); err != nil {
			return err
		}
		if text == "" {
			return nil
		}
		body = []byte(text)
	}
	s, err := Parse(body)
	if err != nil {
		return fmt.Errorf("card %s: event script: %w", c.ID, err)
	}
	c.EventScript = s
	return nil
}

// MarshalJSON writes eventScript as an array.
func (c Card) MarshalJSON() ([]byte, error) {
	type plain Card
	return json.Marshal(struct {
		plain
		EventScript Script `json:"eventScript"`
	}{plain(c), c.EventScript})
}

// CardFile is the top-level structure of a cards file.
type CardFile struct {
	Cards []Card `json:"cards"`
}

// ParseScenario decodes a scenario file.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("parse scenario: missing scenarioName")
	}
	return &sc, nil
}

// ParseCards decodes a cards file.
func ParseCards(data []byte) ([]Card, error) {
	var cf CardFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse cards: %w", err)
	}
	return cf.Cards, nil
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

// LoadScenarioDir reads every *.json scenario in dir, keyed by scenario name.
func LoadScenarioDir(dir string) (map[string]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	out := make(map[string]*Scenario, len(paths))
	for _, p := range paths {
		sc, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		if _, dup := out[sc.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate scenario %q", filepath.Base(p), sc.Name)
		}
		out[sc.Name] = sc
	}
	return out, nil
}

// LoadCards reads a cards file.
func LoadCards(path string) ([]Card, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCards(data)
}
