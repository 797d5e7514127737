package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/kesa0v0/WeimarPort/internal/game/script"
	"go.uber.org/zap"
)

// ImportResult counts what Import saved.
type ImportResult struct {
	Scenarios int
	Cards     int
}

// Import validates the scenarios in scenarioDir and the cards in cardsFile
// and saves them. Either source may be empty. A missing scenario directory
// is not an error. predicates names the extra condition types scripts may use.
func Import(ctx context.Context, st Store, scenarioDir, cardsFile string, predicates []string, logger *zap.Logger) (ImportResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var res ImportResult

	if scenarioDir != "" {
		if _, err := os.Stat(scenarioDir); errors.Is(err, fs.ErrNotExist) {
			logger.Warn("scenario directory not found", zap.String("dir", scenarioDir))
		} else {
			scenarios, err := script.LoadScenarioDir(scenarioDir)
			if err != nil {
				return res, fmt.Errorf("load scenarios: %w", err)
			}
			for name, sc := range scenarios {
				if err := script.Validate(sc.Setup, predicates...); err != nil {
					return res, fmt.Errorf("scenario %q: %w", name, err)
				}
				if err := st.SaveScenario(ctx, sc); err != nil {
					return res, err
				}
				res.Scenarios++
			}
		}
	}

	if cardsFile != "" {
		cards, err := script.LoadCards(cardsFile)
		if err != nil {
			return res, fmt.Errorf("load cards: %w", err)
		}
		for _, c := range cards {
			if err := script.Validate(c.EventScript, predicates...); err != nil {
				return res, fmt.Errorf("card %s: %w", c.ID, err)
			}
		}
		n, err := st.SaveCards(ctx, cards)
		if err != nil {
			return res, err
		}
		res.Cards = n
	}

	logger.Info("scripts imported",
		zap.Int("scenarios", res.Scenarios),
		zap.Int("cards", res.Cards),
	)
	return res, nil
}
