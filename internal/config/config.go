// Package config loads the server configuration from a YAML file with
// WEIMAR_ environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/kesa0v0/WeimarPort/internal/game"
	"github.com/kesa0v0/WeimarPort/internal/game/board"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. WEIMAR_LOGGING_LEVEL.
const EnvPrefix = "WEIMAR"

// Config is the root configuration.
type Config struct {
	Logging    LoggingConfig     `mapstructure:"logging"`
	Server     ServerConfig      `mapstructure:"server"`
	Store      StoreConfig       `mapstructure:"store"`
	Board      BoardConfig       `mapstructure:"board"`
	Scripts    ScriptsConfig     `mapstructure:"scripts"`
	Predicates []PredicateConfig `mapstructure:"predicates"`
	Replay     ReplayConfig      `mapstructure:"replay"`
	RandomSeed int64             `mapstructure:"random_seed"`
}

// LoggingConfig selects the zap level and encoder.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

type ServerConfig struct {
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

// WebSocketConfig configures the presentation bridge.
type WebSocketConfig struct {
	Address         string        `mapstructure:"address"`
	Path            string        `mapstructure:"path"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
}

// StoreConfig selects the card and scenario store.
type StoreConfig struct {
	Driver   string `mapstructure:"driver"` // sqlite or postgres
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// BoardConfig overrides the base game board.
type BoardConfig struct {
	Cities                    []board.CitySpec `mapstructure:"cities"`
	TrackMax                  map[string]int   `mapstructure:"track_max"`
	CentralAuthorityThreshold int              `mapstructure:"central_authority_threshold"`
}

// ScriptsConfig points at the script files loaded at startup.
type ScriptsConfig struct {
	ScenarioDir string `mapstructure:"scenario_dir"`
	CardsFile   string `mapstructure:"cards_file"`
	Scenario    string `mapstructure:"scenario"` // run on startup when set
}

// PredicateConfig registers a Lua condition. Source wins over File.
type PredicateConfig struct {
	Name   string `mapstructure:"name"`
	File   string `mapstructure:"file"`
	Source string `mapstructure:"source"`
}

type ReplayConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("server.websocket.address", ":8080")
	v.SetDefault("server.websocket.path", "/ws")
	v.SetDefault("server.websocket.read_buffer_size", 1024)
	v.SetDefault("server.websocket.write_buffer_size", 1024)
	v.SetDefault("server.websocket.allowed_origins", []string{})
	v.SetDefault("server.websocket.ping_interval", 30*time.Second)
	v.SetDefault("server.websocket.max_message_size", 64*1024)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "weimar.db")
	v.SetDefault("store.max_conns", 4)

	v.SetDefault("board.central_authority_threshold", 7)

	v.SetDefault("scripts.scenario_dir", "scenarios")
	v.SetDefault("scripts.cards_file", "")
	v.SetDefault("scripts.scenario", "")

	v.SetDefault("replay.enabled", false)
	v.SetDefault("replay.directory", "replays")

	v.SetDefault("random_seed", 0)
}

// Load reads path and applies environment overrides. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("store.driver: unsupported driver %q", c.Store.Driver)
	}
	for i, city := range c.Board.Cities {
		if strings.TrimSpace(city.Name) == "" {
			return fmt.Errorf("board.cities[%d]: name is required", i)
		}
		if city.Capacity <= 0 {
			return fmt.Errorf("board.cities[%d]: capacity must be positive", i)
		}
	}
	for name := range c.Board.TrackMax {
		if _, err := board.ParseTrack(name); err != nil {
			return fmt.Errorf("board.track_max: %w", err)
		}
	}
	for i, p := range c.Predicates {
		if p.Name == "" {
			return fmt.Errorf("predicates[%d]: name is required", i)
		}
		if p.File == "" && p.Source == "" {
			return fmt.Errorf("predicates[%d] %s: file or source is required", i, p.Name)
		}
	}
	return nil
}

// Game converts the board, predicate and seed settings into a session
// config. Predicate files are read here.
func (c *Config) Game() (game.Config, error) {
	gc := game.DefaultConfig()
	if len(c.Board.Cities) > 0 {
		gc.Cities = c.Board.Cities
	}
	if c.Board.CentralAuthorityThreshold > 0 {
		gc.CentralAuthorityThreshold = c.Board.CentralAuthorityThreshold
	}
	if len(c.Board.TrackMax) > 0 {
		gc.TrackMax = make(map[board.Track]int, len(c.Board.TrackMax))
		for name, max := range c.Board.TrackMax {
			tr, err := board.ParseTrack(name)
			if err != nil {
				return game.Config{}, err
			}
			gc.TrackMax[tr] = max
		}
	}
	if len(c.Predicates) > 0 {
		gc.Predicates = make(map[string]string, len(c.Predicates))
		for _, p := range c.Predicates {
			source := p.Source
			if source == "" {
				data, err := os.ReadFile(p.File)
				if err != nil {
					return game.Config{}, fmt.Errorf("predicate %s: %w", p.Name, err)
				}
				source = string(data)
			}
			gc.Predicates[p.Name] = source
		}
	}
	gc.RandomSeed = c.RandomSeed
	return gc, nil
}
