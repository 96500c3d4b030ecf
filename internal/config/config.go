// Package config loads orbit-tracer settings.
//
// Precedence, lowest first: built-in defaults, the YAML file, environment
// variables, command-line flags (applied by the binaries).
//
// The YAML file is taken from the explicit path when given, otherwise from
// $ORBITS_CONFIG. Running without a file is fine.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/orbit-tracer/internal/logging"
	"github.com/signalsfoundry/orbit-tracer/internal/observability"
	"github.com/signalsfoundry/orbit-tracer/model"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "ORBITS_CONFIG"

// Config is the full settings tree shared by the CLI and the server.
type Config struct {
	// Body selects a bundled central body; Mu, when positive, wins over it.
	Body    string  `yaml:"body"`
	Mu      float64 `yaml:"mu"`
	Samples int     `yaml:"samples"`

	Log     LogConfig                   `yaml:"log"`
	Tracing observability.TracingConfig `yaml:"tracing"`
	Catalog CatalogConfig               `yaml:"catalog"`
	Metrics MetricsConfig               `yaml:"metrics"`
	GRPC    GRPCConfig                  `yaml:"grpc"`
	Feed    FeedConfig                  `yaml:"feed"`
}

// LogConfig mirrors logging.Config in YAML form.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CatalogConfig chooses where decoded elements are kept.
type CatalogConfig struct {
	Driver string `yaml:"driver"` // memory | sqlite
	DSN    string `yaml:"dsn"`    // sqlite file path
}

// MetricsConfig controls Prometheus exposure.
type MetricsConfig struct {
	Address  string `yaml:"address"`  // HTTP /metrics listener (server)
	Textfile string `yaml:"textfile"` // one-shot dump path (CLI)
}

// GRPCConfig controls the orbit RPC listener.
type GRPCConfig struct {
	Address string `yaml:"address"`
}

// FeedConfig names a TLE file the server loads at start and reloads on change.
type FeedConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Body:    model.Earth.Name,
		Samples: 100,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: observability.DefaultTracingConfig(),
		Catalog: CatalogConfig{Driver: "memory"},
		Metrics: MetricsConfig{Address: ":9090"},
		GRPC:    GRPCConfig{Address: ":50061"},
	}
}

// Load reads path, or $ORBITS_CONFIG when path is empty, then applies
// environment overrides. With neither set it returns the defaults plus
// environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	cfg := Default()
	if path != "" {
		loaded, err := LoadFromPath(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads a YAML config file on top of the defaults.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills zero values a partial file may leave behind.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Body == "" {
		c.Body = d.Body
	}
	if c.Samples == 0 {
		c.Samples = d.Samples
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Catalog.Driver == "" {
		c.Catalog.Driver = d.Catalog.Driver
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = d.Tracing.Exporter
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = d.Tracing.ServiceName
	}
}

// ApplyEnv overlays ORBITS_BODY, ORBITS_MU, ORBITS_SAMPLES, ORBITS_DB,
// ORBITS_TLE_FEED, LOG_LEVEL, LOG_FORMAT and the tracing variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("ORBITS_BODY"); v != "" {
		c.Body = v
	}
	if v := os.Getenv("ORBITS_MU"); v != "" {
		mu, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("ORBITS_MU: %w", err)
		}
		c.Mu = mu
	}
	if v := os.Getenv("ORBITS_SAMPLES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ORBITS_SAMPLES: %w", err)
		}
		c.Samples = n
	}
	if v := os.Getenv("ORBITS_DB"); v != "" {
		c.Catalog.Driver = "sqlite"
		c.Catalog.DSN = v
	}
	if v := os.Getenv("ORBITS_TLE_FEED"); v != "" {
		c.Feed.Path = v
	}

	logEnv := logging.ConfigFromEnv()
	if logEnv.Level != "" {
		c.Log.Level = logEnv.Level
	}
	if logEnv.Format != "" {
		c.Log.Format = logEnv.Format
	}

	c.Tracing = observability.TracingConfigFromEnv(c.Tracing)
	return nil
}

// Validate rejects settings no run can use.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.GravitationalParameter(); err != nil {
		errs = append(errs, err)
	}
	if c.Samples < 1 {
		errs = append(errs, fmt.Errorf("samples must be at least 1, got %d", c.Samples))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	switch strings.ToLower(c.Catalog.Driver) {
	case "memory":
	case "sqlite":
		if c.Catalog.DSN == "" {
			errs = append(errs, errors.New("catalog.dsn is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown catalog driver %q", c.Catalog.Driver))
	}
	return errors.Join(errs...)
}

// GravitationalParameter resolves mu from Mu or Body.
func (c *Config) GravitationalParameter() (float64, error) {
	if c.Mu != 0 {
		if c.Mu < 0 || math.IsNaN(c.Mu) || math.IsInf(c.Mu, 0) {
			return 0, fmt.Errorf("mu must be positive and finite, got %v", c.Mu)
		}
		return c.Mu, nil
	}
	b, err := model.LookupBody(c.Body)
	if err != nil {
		return 0, err
	}
	return b.Mu, nil
}

// Logging converts the YAML log section for logging.New.
func (c *Config) Logging() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format}
}
