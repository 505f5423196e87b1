// Package config loads pedsim settings from YAML, applies environment
// overrides, and validates the result against an embedded JSON schema.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/talgya/pedsim/internal/agents"
	"github.com/talgya/pedsim/internal/world"
)

// Environment variables that override file settings.
const (
	EnvConfig   = "PEDSIM_CONFIG"
	EnvDB       = "PEDSIM_DB"
	EnvAdminKey = "PEDSIM_ADMIN_KEY"
)

//go:embed schema.json
var schemaJSON string

// Config is the full runtime configuration.
type Config struct {
	Seed     int64  `yaml:"seed" json:"seed"`
	LogLevel string `yaml:"log_level" json:"log_level"`

	Peds    PedConfig       `yaml:"peds" json:"peds"`
	World   world.GenConfig `yaml:"world" json:"world"`
	Engine  EngineConfig    `yaml:"engine" json:"engine"`
	Storage StorageConfig   `yaml:"storage" json:"storage"`
	API     APIConfig       `yaml:"api" json:"api"`
}

// PedConfig controls the initial population.
type PedConfig struct {
	Count  int            `yaml:"count" json:"count"`
	Radius float64        `yaml:"radius" json:"radius"`
	Speed  float64        `yaml:"speed" json:"speed"`
	Models []agents.Model `yaml:"models" json:"models"`
}

// EngineConfig controls the tick loop.
type EngineConfig struct {
	TickRateHz  int     `yaml:"tick_rate_hz" json:"tick_rate_hz"`
	Speed       float64 `yaml:"speed" json:"speed"`
	ReportEvery uint64  `yaml:"report_every" json:"report_every"`
}

// StorageConfig locates run history. An empty path disables that store.
type StorageConfig struct {
	DBPath     string `yaml:"db_path" json:"db_path"`
	TickLogDir string `yaml:"tick_log_dir" json:"tick_log_dir"`
}

// APIConfig controls the HTTP server. AdminKey only comes from the
// environment.
type APIConfig struct {
	Port      int    `yaml:"port" json:"port"`
	AdminKey  string `yaml:"-" json:"-"`
	AdminRate int    `yaml:"admin_rate" json:"admin_rate"` // admin requests per minute per client
}

// Default returns the built-in configuration. The world seed is left unset
// so it follows the top-level seed.
func Default() Config {
	gen := world.DefaultGenConfig()
	gen.Seed = 0
	return Config{
		Seed:     42,
		LogLevel: "info",
		Peds: PedConfig{
			Count:  2000,
			Radius: 0.5,
			Speed:  0.06,
			Models: []agents.Model{
				{Name: "adult", Scale: 1.0},
				{Name: "tall", Scale: 1.15},
				{Name: "child", Scale: 0.7},
			},
		},
		World: gen,
		Engine: EngineConfig{
			TickRateHz:  agents.TicksPerSecond,
			Speed:       1,
			ReportEvery: 10 * agents.TicksPerSecond,
		},
		Storage: StorageConfig{
			DBPath:     "data/pedsim.db",
			TickLogDir: "data/ticks",
		},
		API: APIConfig{
			Port:      8080,
			AdminRate: 30,
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides, and validates. An empty path uses $PEDSIM_CONFIG, and if that
// is unset too the defaults alone.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDB); v != "" {
		c.Storage.DBPath = v
	}
	c.API.AdminKey = os.Getenv(EnvAdminKey)
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("config.schema.json", schemaJSON)
	})
	return schema, schemaErr
}

// Validate checks c against the configuration schema.
func (c Config) Validate() error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SpawnConfig converts the population settings for the spawner.
func (c Config) SpawnConfig() agents.SpawnConfig {
	return agents.SpawnConfig{Radius: c.Peds.Radius, Speed: c.Peds.Speed, Models: c.Peds.Models}
}

// GenConfig returns the world settings, seeded from the top-level seed when
// the world section leaves it unset.
func (c Config) GenConfig() world.GenConfig {
	g := c.World
	if g.Seed == 0 {
		g.Seed = c.Seed
	}
	return g
}

// TickInterval is the wall-clock time between ticks at speed 1.
func (c Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Engine.TickRateHz)
}

// SlogLevel maps LogLevel onto slog.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
