package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kesa0v0/WeimarPort/internal/game/script"
	"go.uber.org/zap"
)

// Postgres is the pooled PostgreSQL store.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// OpenPostgres connects, pings and migrates.
func OpenPostgres(ctx context.Context, dsn string, maxConns int32, logger *zap.Logger) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	db := &Postgres{pool: pool, logger: logger}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	stats := pool.Stat()
	logger.Info("postgres store opened",
		zap.Int32("total_conns", stats.TotalConns()),
		zap.Int32("max_conns", stats.MaxConns()),
	)
	return db, nil
}

// Close closes the pool.
func (db *Postgres) Close() error {
	db.pool.Close()
	return nil
}

// SaveCards upserts cards in one batch transaction.
func (db *Postgres) SaveCards(ctx context.Context, cards []script.Card) (int, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, c := range cards {
		row, err := newCardRow(c)
		if err != nil {
			return 0, err
		}
		batch.Queue(`INSERT INTO cards
			(card_id, affiliation, card_name, large_value, small_value, remove_from_game, event_script)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (card_id) DO UPDATE SET
				affiliation = EXCLUDED.affiliation,
				card_name = EXCLUDED.card_name,
				large_value = EXCLUDED.large_value,
				small_value = EXCLUDED.small_value,
				remove_from_game = EXCLUDED.remove_from_game,
				event_script = EXCLUDED.event_script`,
			row.CardID, row.Affiliation, row.CardName, row.LargeValue, row.SmallValue, row.RemoveFromGame, row.EventScript)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("save cards: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	db.logger.Debug("cards saved", zap.Int("count", len(cards)))
	return len(cards), nil
}

// Card returns one card.
func (db *Postgres) Card(ctx context.Context, id string) (*script.Card, error) {
	rows, err := db.pool.Query(ctx, "SELECT * FROM cards WHERE card_id = $1", id)
	if err != nil {
		return nil, err
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[cardRow])
	if errors.Is(err, pgx.ErrNoRows) {
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
func (db *Postgres) Cards(ctx context.Context) ([]script.Card, error) {
	rows, err := db.pool.Query(ctx, "SELECT * FROM cards ORDER BY card_id")
	if err != nil {
		return nil, err
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[cardRow])
	if err != nil {
		return nil, err
	}
	out := make([]script.Card, 0, len(list))
	for _, r := range list {
		c, err := r.card()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// SaveScenario upserts a scenario.
func (db *Postgres) SaveScenario(ctx context.Context, sc *script.Scenario) error {
	row, err := newScenarioRow(sc)
	if err != nil {
		return err
	}
	_, err = db.pool.Exec(ctx, `INSERT INTO scenarios (name, description, setup_script)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			setup_script = EXCLUDED.setup_script`,
		row.Name, row.Description, row.SetupScript)
	return err
}

// Scenario returns one scenario by name.
func (db *Postgres) Scenario(ctx context.Context, name string) (*script.Scenario, error) {
	var row scenarioRow
	err := db.pool.QueryRow(ctx,
		"SELECT name, description, setup_script FROM scenarios WHERE name = $1", name,
	).Scan(&row.Name, &row.Description, &row.SetupScript)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("scenario %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return row.scenario()
}

// ScenarioNames lists the stored scenarios.
func (db *Postgres) ScenarioNames(ctx context.Context) ([]string, error) {
	rows, err := db.pool.Query(ctx, "SELECT name FROM scenarios ORDER BY name")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
