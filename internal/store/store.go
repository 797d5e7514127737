// Package store persists card and scenario scripts.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kesa0v0/WeimarPort/internal/config"
	"github.com/kesa0v0/WeimarPort/internal/game/script"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a card or scenario does not exist.
var ErrNotFound = errors.New("not found")

// Store is a script repository.
type Store interface {
	SaveCards(ctx context.Context, cards []script.Card) (int, error)
	Card(ctx context.Context, id string) (*script.Card, error)
	Cards(ctx context.Context) ([]script.Card, error)
	SaveScenario(ctx context.Context, sc *script.Scenario) error
	Scenario(ctx context.Context, name string) (*script.Scenario, error)
	ScenarioNames(ctx context.Context) ([]string, error)
	Close() error
}

// Open connects the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case "sqlite", "":
		db, err := OpenSQLite(cfg.DSN, logger)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := OpenPostgres(ctx, cfg.DSN, cfg.MaxConns, logger)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
}

const schema = `
CREATE TABLE IF NOT EXISTS cards (
	card_id TEXT PRIMARY KEY,
	affiliation TEXT NOT NULL,
	card_name TEXT NOT NULL,
	large_value INTEGER NOT NULL,
	small_value INTEGER NOT NULL,
	remove_from_game BOOLEAN NOT NULL,
	event_script TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS scenarios (
	name TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	setup_script TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cards_affiliation ON cards(affiliation);
`

type cardRow struct {
	CardID         string `db:"card_id"`
	Affiliation    string `db:"affiliation"`
	CardName       string `db:"card_name"`
	LargeValue     int    `db:"large_value"`
	SmallValue     int    `db:"small_value"`
	RemoveFromGame bool   `db:"remove_from_game"`
	EventScript    string `db:"event_script"`
}

func newCardRow(c script.Card) (cardRow, error) {
	if c.ID == "" {
		return cardRow{}, errors.New("card without id")
	}
	body, err := encodeScript(c.EventScript)
	if err != nil {
		return cardRow{}, fmt.Errorf("card %s: %w", c.ID, err)
	}
	return cardRow{
		CardID:         c.ID,
		Affiliation:    c.Affiliation,
		CardName:       c.Name,
		LargeValue:     c.LargeValue,
		SmallValue:     c.SmallValue,
		RemoveFromGame: c.RemoveFromGame,
		EventScript:    body,
	}, nil
}

func (r cardRow) card() (script.Card, error) {
	s, err := script.Parse([]byte(r.EventScript))
	if err != nil {
		return script.Card{}, fmt.Errorf("card %s: %w", r.CardID, err)
	}
	return script.Card{
		ID:             r.CardID,
		Affiliation:    r.Affiliation,
		Name:           r.CardName,
		LargeValue:     r.LargeValue,
		SmallValue:     r.SmallValue,
		RemoveFromGame: r.RemoveFromGame,
		EventScript:    s,
	}, nil
}

type scenarioRow struct {
	Name        string `db:"name"`
	Description string `db:"description"`
	SetupScript string `db:"setup_script"`
}

func newScenarioRow(sc *script.Scenario) (scenarioRow, error) {
	if sc == nil || sc.Name == "" {
		return scenarioRow{}, errors.New("scenario without name")
	}
	body, err := encodeScript(sc.Setup)
	if err != nil {
		return scenarioRow{}, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	return scenarioRow{Name: sc.Name, Description: sc.Description, SetupScript: body}, nil
}

func (r scenarioRow) scenario() (*script.Scenario, error) {
	s, err := script.Parse([]byte(r.SetupScript))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", r.Name, err)
	}
	return &script.Scenario{Name: r.Name, Description: r.Description, Setup: s}, nil
}

func encodeScript(s script.Script) (string, error) {
	if s == nil {
		s = script.Script{}
	}
	body, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
