package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/kesa0v0/WeimarPort/internal/config"
	"github.com/kesa0v0/WeimarPort/internal/game"
	"github.com/kesa0v0/WeimarPort/internal/server"
	"github.com/kesa0v0/WeimarPort/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting WeimarPort server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		logger.Fatal("failed to open script store", zap.Error(err))
	}
	defer st.Close()

	gameCfg, err := cfg.Game()
	if err != nil {
		logger.Fatal("invalid game configuration", zap.Error(err))
	}
	predicates := make([]string, 0, len(gameCfg.Predicates))
	for name := range gameCfg.Predicates {
		predicates = append(predicates, name)
	}
	sort.Strings(predicates)

	if _, err := store.Import(ctx, st, cfg.Scripts.ScenarioDir, cfg.Scripts.CardsFile, predicates, logger); err != nil {
		logger.Fatal("failed to import scripts", zap.Error(err))
	}

	var opts []game.SessionOption
	if cfg.Replay.Enabled {
		opts = append(opts, game.WithRecorder(game.NewReplayRecorder(logger, cfg.Replay.Directory)))
		logger.Info("replay recording enabled", zap.String("directory", cfg.Replay.Directory))
	}
	session, err := game.NewSession(gameCfg, logger, opts...)
	if err != nil {
		logger.Fatal("failed to create session", zap.Error(err))
	}

	hub := server.NewHub(session, st, cfg.Server.WebSocket, logger)
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	if name := cfg.Scripts.Scenario; name != "" {
		sc, err := st.Scenario(ctx, name)
		if err != nil {
			logger.Fatal("startup scenario not found", zap.String("scenario", name), zap.Error(err))
		}
		// Runs in the background: the scenario may wait for a client's choice.
		go func() {
			if err := session.RunScenario(ctx, sc); err != nil {
				logger.Error("startup scenario failed", zap.String("scenario", name), zap.Error(err))
			}
		}()
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.WebSocket.Path, hub)
	httpServer := &http.Server{
		Addr:              cfg.Server.WebSocket.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting WebSocket server",
			zap.String("address", cfg.Server.WebSocket.Address),
			zap.String("path", cfg.Server.WebSocket.Path),
		)
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("WebSocket server error", zap.Error(serveErr))
		}
	}()

	logger.Info("WeimarPort server initialized",
		zap.String("version", version),
		zap.String("session_id", session.ID()),
		zap.String("store_driver", cfg.Store.Driver),
	)

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}

	cancel()
	if err := session.Close(); err != nil {
		logger.Error("failed to close session", zap.Error(err))
	}
	<-hubDone

	logger.Info("WeimarPort server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
