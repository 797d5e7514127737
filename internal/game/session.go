package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kesa0v0/WeimarPort/internal/game/board"
	"github.com/kesa0v0/WeimarPort/internal/game/effects"
	"github.com/kesa0v0/WeimarPort/internal/game/faction"
	"github.com/kesa0v0/WeimarPort/internal/game/rules"
	"github.com/kesa0v0/WeimarPort/internal/game/script"
	"github.com/kesa0v0/WeimarPort/internal/game/selection"
	"github.com/kesa0v0/WeimarPort/internal/game/watchers"
	"go.uber.org/zap"
)

// ErrSessionClosed is returned by Run after Close, and by a script that
// Close interrupted.
var ErrSessionClosed = errors.New("session closed")

// Config holds the board and rules data a session is built from.
type Config struct {
	Cities       []board.CitySpec
	ThreatSupply []board.ThreatSupply
	TrackMax     map[board.Track]int
	// CentralAuthorityThreshold is the DR box occupancy that raises
	// THRESHOLD_REACHED.
	CentralAuthorityThreshold int
	// Predicates maps condition type names to Lua sources defining check().
	Predicates map[string]string
	// RandomSeed seeds random locations; 0 means time-based.
	RandomSeed int64
}

// DefaultConfig returns the base game board.
func DefaultConfig() Config {
	return Config{
		Cities:                    board.DefaultCities(),
		ThreatSupply:              board.DefaultThreatSupply(),
		CentralAuthorityThreshold: watchers.DefaultCentralAuthorityThreshold,
	}
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithRecorder records a replay step after every script run.
func WithRecorder(rr *ReplayRecorder) SessionOption {
	return func(s *Session) {
		s.recorder = rr
	}
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// Session owns the state of one game: bus, board, factions, selection broker
// and interpreter. Scripts run one at a time.
type Session struct {
	id     string
	logger *zap.Logger

	bus         *rules.EventBus
	registry    *board.Registry
	factions    *faction.Registry
	tracks      *board.Tracks
	flags       *board.Flags
	broker      *selection.Broker
	interpreter *effects.Interpreter

	watchers         *rules.WatcherRegistry
	centralAuthority *watchers.CentralAuthorityWatcher
	placements       *watchers.PlacementWatcher
	recorder         *ReplayRecorder

	roundMu sync.Mutex
	rounds  *rules.RoundTracker

	// ctx is cancelled by Close so a running script stops at its next
	// selection instead of opening a new one.
	ctx    context.Context
	cancel context.CancelFunc
	runMu  sync.Mutex
	closed bool
}

// NewSession builds a session from cfg. Missing board data falls back to the
// base game.
func NewSession(cfg Config, logger *zap.Logger, opts ...SessionOption) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Cities) == 0 {
		cfg.Cities = board.DefaultCities()
	}
	if cfg.ThreatSupply == nil {
		cfg.ThreatSupply = board.DefaultThreatSupply()
	}

	s := &Session{
		id:     uuid.NewString(),
		logger: logger,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.With(zap.String("session_id", s.id))

	s.bus = rules.NewEventBus(s.logger)
	s.registry = board.NewRegistry(s.bus, s.logger)
	if err := board.Build(s.registry, cfg.Cities, cfg.ThreatSupply); err != nil {
		return nil, fmt.Errorf("build board: %w", err)
	}
	s.factions = faction.NewRegistry(nil)
	s.tracks = board.NewTracks(cfg.TrackMax)
	s.flags = board.NewFlags()
	s.rounds = rules.NewRoundTracker()
	s.broker = selection.NewBroker(s.bus, s.logger)

	s.watchers = rules.NewWatcherRegistry()
	s.centralAuthority = watchers.NewCentralAuthorityWatcher(s.bus, cfg.CentralAuthorityThreshold)
	s.placements = watchers.NewPlacementWatcher()
	s.watchers.Add(s.centralAuthority)
	s.watchers.Add(s.placements)
	s.watchers.Attach(s.bus)

	seed := cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	state := effects.State{
		Bus:      s.bus,
		Registry: s.registry,
		Factions: s.factions,
		Tracks:   s.tracks,
		Flags:    s.flags,
		Broker:   s.broker,
	}
	s.interpreter = effects.NewInterpreter(state,
		effects.WithLogger(s.logger),
		effects.WithRand(rand.New(rand.NewSource(seed))),
	)
	for name, source := range cfg.Predicates {
		pred, err := effects.LuaPredicate(name, source, state)
		if err != nil {
			return nil, err
		}
		s.interpreter.Predicates().Register(name, pred)
	}

	if s.recorder != nil {
		s.recorder.Start(s.id)
	}

	s.logger.Info("session created",
		zap.Int("cities", len(cfg.Cities)),
		zap.Int("entities", len(s.registry.EntityIDs())),
		zap.Int64("random_seed", seed),
	)
	return s, nil
}

func (s *Session) ID() string                             { return s.id }
func (s *Session) Bus() *rules.EventBus                   { return s.bus }
func (s *Session) Registry() *board.Registry              { return s.registry }
func (s *Session) Factions() *faction.Registry            { return s.factions }
func (s *Session) Tracks() *board.Tracks                  { return s.tracks }
func (s *Session) Flags() *board.Flags                    { return s.flags }
func (s *Session) Broker() *selection.Broker              { return s.broker }
func (s *Session) Interpreter() *effects.Interpreter      { return s.interpreter }
func (s *Session) Watchers() *rules.WatcherRegistry       { return s.watchers }
func (s *Session) Placements() *watchers.PlacementWatcher { return s.placements }

// CentralAuthority returns the DR box threshold watcher.
func (s *Session) CentralAuthority() *watchers.CentralAuthorityWatcher {
	return s.centralAuthority
}

// Run executes one script. Concurrent calls queue behind the running script.
// The board invariants are audited after the run; a violation is returned.
// The script is aborted when either ctx or the session is closed.
func (s *Session) Run(ctx context.Context, name string, sc script.Script) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	detach := context.AfterFunc(s.ctx, stop)
	defer detach()

	started := rules.NewEvent(rules.EventScriptStarted, name, "")
	started.Amount = len(sc)
	s.bus.Publish(started)
	s.logger.Info("script started", zap.String("script", name), zap.Int("instructions", len(sc)))

	err := s.interpreter.Execute(ctx, sc)
	if s.ctx.Err() != nil && (err == nil || errors.Is(err, context.Canceled)) {
		err = ErrSessionClosed
	}
	if err == nil {
		err = s.registry.CheckInvariants()
	}

	completed := rules.NewEvent(rules.EventScriptCompleted, name, "")
	if err != nil {
		completed.Description = err.Error()
		s.logger.Error("script aborted", zap.String("script", name), zap.Error(err))
	} else {
		s.logger.Info("script completed", zap.String("script", name))
	}
	s.bus.Publish(completed)

	if s.recorder != nil {
		s.recorder.Record(s.id, name, s.Snapshot())
	}
	return err
}

// RunScenario executes a scenario's setup script.
func (s *Session) RunScenario(ctx context.Context, sc *script.Scenario) error {
	if sc == nil {
		return errors.New("run scenario: nil scenario")
	}
	return s.Run(ctx, "scenario:"+sc.Name, sc.Setup)
}

// PlayCard executes a card's event script.
func (s *Session) PlayCard(ctx context.Context, card *script.Card) error {
	if card == nil {
		return errors.New("play card: nil card")
	}
	if len(card.EventScript) == 0 {
		s.logger.Warn("card has no event script", zap.String("card_id", card.ID))
		return nil
	}
	return s.Run(ctx, "card:"+card.ID, card.EventScript)
}

// Close aborts the running script, detaches the watchers and saves the
// replay when one is being recorded. Further Run calls fail.
func (s *Session) Close() error {
	s.cancel()
	for _, p := range s.broker.Open() {
		s.broker.Cancel(p)
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.watchers.Detach()

	if s.recorder != nil && s.recorder.Recording(s.id) {
		if err := s.recorder.Finish(s.id); err != nil {
			return err
		}
	}
	s.logger.Info("session closed")
	return nil
}
