package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/CGXDevTeam/Coreria/internal/core/engine"
)

type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Scene    SceneConfig    `toml:"scene"`
	Scripts  ScriptsConfig  `toml:"scripts"`
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
}

type EngineConfig struct {
	TickRate   float64  `toml:"tick_rate"`    // steps per second
	Duration   Duration `toml:"duration"`     // 0 = until stopped (tui only)
	MaxCatchUp int      `toml:"max_catch_up"` // updates per frame when behind
}

type SceneConfig struct {
	Path string `toml:"path"`
}

type ScriptsConfig struct {
	Dir string `toml:"dir"`
}

// DatabaseConfig is optional; run summaries are only persisted when DSN is set.
type DatabaseConfig struct {
	DSN             string   `toml:"dsn"`
	MaxOpenConns    int      `toml:"max_open_conns"`
	MaxIdleConns    int      `toml:"max_idle_conns"`
	ConnMaxLifetime Duration `toml:"conn_max_lifetime"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
	File   string `toml:"file"`   // empty = stderr
}

// Duration decodes TOML strings like "1.5s" or "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load reads the TOML file at path over the defaults. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the engine would panic on.
func (c *Config) Validate() error {
	if err := engine.ValidateTickRate(c.Engine.TickRate); err != nil {
		return fmt.Errorf("engine.tick_rate: %w", err)
	}
	if c.Engine.Duration.Duration < 0 {
		return fmt.Errorf("engine.duration: must not be negative, got %s", c.Engine.Duration)
	}
	if c.Engine.MaxCatchUp < 1 {
		return fmt.Errorf("engine.max_catch_up: must be at least 1, got %d", c.Engine.MaxCatchUp)
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns: must not be negative, got %d", c.Database.MaxIdleConns)
	}
	if c.Database.MaxOpenConns > 0 && c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns: %d exceeds max_open_conns %d",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format: unknown format %q", c.Logging.Format)
	}
	return nil
}

func Defaults() *Config {
	return &Config{
		Engine: EngineConfig{
			TickRate:   engine.DefaultTickRate,
			Duration:   Duration{time.Second},
			MaxCatchUp: engine.DefaultMaxCatchUp,
		},
		Scene: SceneConfig{
			Path: "config/scene.yaml",
		},
		Scripts: ScriptsConfig{
			Dir: "scripts",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    4,
			MaxIdleConns:    1,
			ConnMaxLifetime: Duration{30 * time.Minute},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
