// Package config holds the server configuration. Values are layered:
// defaults, then an optional YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/tecu23/chess-relay/pkg/chess"
	"github.com/tecu23/chess-relay/pkg/events"
	"github.com/tecu23/chess-relay/pkg/game"
	"github.com/tecu23/chess-relay/pkg/repository"
)

// Config is the whole server configuration
type Config struct {
	Debug bool   `yaml:"debug" env:"DEBUG"`
	Port  string `yaml:"port"  env:"PORT"`

	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	APIKeys        []string `yaml:"api_keys"        env:"API_KEYS"        envSeparator:","`

	Clock ClockConfig `yaml:"clock"`
	Draw  DrawConfig  `yaml:"draw"`
	Store StoreConfig `yaml:"store"`
	NATS  NATSConfig  `yaml:"nats"`
}

// ClockConfig controls the per-side countdown
type ClockConfig struct {
	InitialSeconds int64         `yaml:"initial_seconds" env:"CLOCK_INITIAL_SECONDS"`
	TickInterval   time.Duration `yaml:"tick_interval"   env:"CLOCK_TICK_INTERVAL"`
}

// DrawConfig holds the draw-by-rule thresholds
type DrawConfig struct {
	FiftyMoveLimit  int `yaml:"fifty_move_limit" env:"DRAW_FIFTY_MOVE_LIMIT"`
	RepetitionLimit int `yaml:"repetition_limit" env:"DRAW_REPETITION_LIMIT"`
}

// StoreConfig selects where finished games go
type StoreConfig struct {
	Driver string `yaml:"driver" env:"STORE_DRIVER"`
	DSN    string `yaml:"dsn"    env:"STORE_DSN"`
}

// NATSConfig enables event forwarding when URL is set
type NATSConfig struct {
	URL           string `yaml:"url"            env:"NATS_URL"`
	SubjectPrefix string `yaml:"subject_prefix" env:"NATS_SUBJECT_PREFIX"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Port:           "8080",
		AllowedOrigins: []string{"*"},
		Clock: ClockConfig{
			InitialSeconds: chess.DefaultInitialSeconds,
			TickInterval:   time.Second,
		},
		Draw: DrawConfig{
			FiftyMoveLimit:  chess.DefaultFiftyMoveLimit,
			RepetitionLimit: chess.DefaultRepetitionLimit,
		},
		Store: StoreConfig{Driver: repository.DriverMemory},
		NATS:  NATSConfig{SubjectPrefix: events.DefaultSubjectPrefix},
	}
}

// Load builds the configuration from defaults, the YAML file at path (when
// path is not empty) and the environment
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}

// Validate rejects values the server cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.Clock.InitialSeconds <= 0 {
		errs = append(errs, fmt.Errorf("clock initial seconds must be positive, got %d", c.Clock.InitialSeconds))
	}
	if c.Clock.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("clock tick interval must be positive, got %s", c.Clock.TickInterval))
	}
	if c.Draw.FiftyMoveLimit <= 0 {
		errs = append(errs, fmt.Errorf("fifty move limit must be positive, got %d", c.Draw.FiftyMoveLimit))
	}
	if c.Draw.RepetitionLimit <= 1 {
		errs = append(errs, fmt.Errorf("repetition limit must be at least 2, got %d", c.Draw.RepetitionLimit))
	}

	switch c.Store.Driver {
	case repository.DriverMemory:
	case repository.DriverSQLite, repository.DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store dsn is required for driver %q", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	return errors.Join(errs...)
}

// GameSettings converts the clock and draw sections for new sessions
func (c *Config) GameSettings() game.Settings {
	return game.Settings{
		InitialSeconds: c.Clock.InitialSeconds,
		TickInterval:   c.Clock.TickInterval,
		Rules: chess.DrawRules{
			FiftyMoveLimit:  c.Draw.FiftyMoveLimit,
			RepetitionLimit: c.Draw.RepetitionLimit,
		},
	}
}

// OriginAllowed reports whether a websocket handshake from origin may proceed
func (c *Config) OriginAllowed(origin string) bool {
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
