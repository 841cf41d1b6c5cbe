// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	envPrefix     = "TRACKER_"
	appDirName    = "slot-tracker"
	defaultDBName = "tracker.db"
)

// Config is the full application configuration.
type Config struct {
	Env    string `env:"ENV" envDefault:"local"`
	DBPath string `env:"DB_PATH"`

	HTTP   HTTP   `envPrefix:"HTTP_"`
	Ledger Ledger `envPrefix:"LEDGER_"`
	Wheel  Wheel  `envPrefix:"WHEEL_"`
}

// HTTP configures the API server.
type HTTP struct {
	Address         string        `env:"ADDR" envDefault:"127.0.0.1:8077"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://127.0.0.1:5173"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Ledger configures session tracking persistence.
type Ledger struct {
	SaveDebounce time.Duration `env:"SAVE_DEBOUNCE" envDefault:"1s"`
}

// Wheel configures the prize wheel.
type Wheel struct {
	Rotations     int           `env:"ROTATIONS" envDefault:"8"`
	Duration      time.Duration `env:"DURATION" envDefault:"5s"`
	FrameInterval time.Duration `env:"FRAME_INTERVAL" envDefault:"16ms"`
	Sound         bool          `env:"SOUND" envDefault:"true"`
	PresetFile    string        `env:"PRESET"`
	RecorderFlush int           `env:"RECORDER_FLUSH" envDefault:"20"`

	// A non-empty server seed switches spins to the provably-fair source.
	ServerSeed string `env:"SERVER_SEED"`
	ClientSeed string `env:"CLIENT_SEED" envDefault:"slot-tracker"`
	Nonce      uint64 `env:"NONCE" envDefault:"0"`
}

// Load reads envFile (if it exists) into the process environment and then
// parses TRACKER_* variables.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(appDataDir(), defaultDBName)
	}
	return &cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("config: unknown env %q", c.Env)
	}
	if c.Ledger.SaveDebounce < 0 {
		return fmt.Errorf("config: ledger save debounce must not be negative")
	}
	if c.Wheel.FrameInterval <= 0 {
		return fmt.Errorf("config: wheel frame interval must be positive")
	}
	if c.Wheel.Duration < 0 {
		return fmt.Errorf("config: wheel duration must not be negative")
	}
	return nil
}

// EnsureDBDir creates the directory holding the database file.
func (c *Config) EnsureDBDir() error {
	if err := os.MkdirAll(filepath.Dir(c.DBPath), 0o755); err != nil {
		return fmt.Errorf("config: create data dir: %w", err)
	}
	return nil
}

func appDataDir() string {
	if d, err := os.UserConfigDir(); err == nil && d != "" {
		return filepath.Join(d, appDirName)
	}
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return filepath.Join(h, "."+appDirName)
	}
	return "."
}
