package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/kesa0v0/WeimarPort/internal/game/script"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLite is the file-backed store.
type SQLite struct {
	conn   *sqlx.DB
	logger *zap.Logger
}

// OpenSQLite opens or creates the database at path and migrates it.
func OpenSQLite(path string, logger *zap.Logger) (*SQLite, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	}
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &SQLite{conn: conn, logger: logger}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("sqlite store opened", zap.String("path", path))
	return db, nil
}

func (db *SQLite) migrate() error {
	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *SQLite) Close() error {
	return db.conn.Close()
}

// SaveCards upserts cards in one transaction and returns how many were written.
func (db *SQLite) SaveCards(ctx context.Context, cards []script.Card) (int, error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO cards
		(card_id, affiliation, card_name, large_value, small_value, remove_from_game, event_script)
		VALUES (:card_id, :affiliation, :card_name, :large_value, :small_value, :remove_from_game, :event_script)
		ON CONFLICT(card_id) DO UPDATE SET
			affiliation = excluded.affiliation,
			card_name = excluded.card_name,
			large_value = excluded.large_value,
			small_value = excluded.small_value,
			remove_from_game = excluded.remove_from_game,
			event_script = excluded.event_script`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, c := range cards {
		row, err := newCardRow(c)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return 0, fmt.Errorf("save card %s: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	db.logger.Debug("cards saved", zap.Int("count", len(cards)))
	return len(cards), nil
}

// Card returns one card.
func (db *SQLite) Card(ctx context.Context, id string) (*script.Card, error) {
	var row cardRow
	err := db.conn.GetContext(ctx, &row, "SELECT * FROM cards WHERE card_id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("card %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	c, err := row.card()
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Cards returns every card ordered by id.
func (db *SQLite) Cards(ctx context.Context) ([]script.Card, error) {
	var rows []cardRow
	if err := db.conn.SelectContext(ctx, &rows, "SELECT * FROM cards ORDER BY card_id"); err != nil {
		return nil, err
	}
	out := make([]script.Card, 0, len(rows))
	for _, r := range rows {
		c, err := r.card()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// SaveScenario upserts a scenario.
func (db *SQLite) SaveScenario(ctx context.Context, sc *script.Scenario) error {
	row, err := newScenarioRow(sc)
	if err != nil {
		return err
	}
	_, err = db.conn.NamedExecContext(ctx, `INSERT INTO scenarios (name, description, setup_script)
		VALUES (:name, :description, :setup_script)
		ON CONFLICT(name) DO UPDATE SET
			description = excluded.description,
			setup_script = excluded.setup_script`, row)
	return err
}

// Scenario returns one scenario by name.
func (db *SQLite) Scenario(ctx context.Context, name string) (*script.Scenario, error) {
	var row scenarioRow
	err := db.conn.GetContext(ctx, &row, "SELECT * FROM scenarios WHERE name = ?", name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scenario %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return row.scenario()
}

// ScenarioNames lists the stored scenarios.
func (db *SQLite) ScenarioNames(ctx context.Context) ([]string, error) {
	var names []string
	err := db.conn.SelectContext(ctx, &names, "SELECT name FROM scenarios ORDER BY name")
	return names, err
}
