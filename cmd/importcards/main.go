// Command importcards validates card and scenario scripts and loads them
// into the configured store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/kesa0v0/WeimarPort/internal/config"
	"github.com/kesa0v0/WeimarPort/internal/store"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	cardsFile := flag.String("cards", "", "cards JSON file (defaults to scripts.cards_file)")
	scenarioDir := flag.String("scenarios", "", "scenario directory (defaults to scripts.scenario_dir)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *cardsFile == "" {
		*cardsFile = cfg.Scripts.CardsFile
	}
	if *scenarioDir == "" {
		*scenarioDir = cfg.Scripts.ScenarioDir
	}

	fmt.Println("=== WeimarPort Script Import ===")
	fmt.Printf("Store: %s (%s)\n", cfg.Store.Driver, cfg.Store.DSN)
	fmt.Printf("Cards file: %s\n", *cardsFile)
	fmt.Printf("Scenario dir: %s\n", *scenarioDir)

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Store, zap.NewNop())
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	predicates := make([]string, 0, len(cfg.Predicates))
	for _, p := range cfg.Predicates {
		predicates = append(predicates, p.Name)
	}

	start := time.Now()
	res, err := store.Import(ctx, st, *scenarioDir, *cardsFile, predicates, zap.NewNop())
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	fmt.Printf("✓ Imported %d scenarios and %d cards in %s\n", res.Scenarios, res.Cards, time.Since(start).Round(time.Millisecond))
}
