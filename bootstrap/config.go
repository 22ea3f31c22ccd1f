// Package bootstrap configures an Instrument from a YAML file and from the
// environment, so that a program can be instrumented without changing its
// code.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/minstrel/event"
	"github.com/sarchlab/minstrel/instrumentation"
)

// Environment variables read by FromEnv.
const (
	EnvInstrument = "MINSTREL_INSTRUMENT"
	EnvConfig     = "MINSTREL_CONFIG"
	EnvRecord     = "MINSTREL_RECORD"
	EnvLogLevel   = "MINSTREL_LOG_LEVEL"
)

// ErrInvalidConfig is returned when a configuration does not validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// RecordConfig selects the database for completed calls.
type RecordConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MonitorConfig controls the monitoring server.
type MonitorConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Config describes what to instrument and which services to start.
type Config struct {
	// Targets are type names, "Type#op" names, or ":all:".
	Targets  []string      `yaml:"targets"`
	Record   RecordConfig  `yaml:"record"`
	Monitor  MonitorConfig `yaml:"monitor"`
	LogLevel string        `yaml:"log_level"`
}

// DefaultConfig returns a configuration that instruments nothing.
func DefaultConfig() *Config {
	return &Config{LogLevel: "info"}
}

// Load reads a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromEnv builds a configuration from the environment. Variables from the
// given .env files are used when the process environment does not set them;
// missing .env files are ignored. MINSTREL_CONFIG names a YAML file that is
// loaded first; MINSTREL_INSTRUMENT adds comma-separated targets;
// MINSTREL_RECORD enables recording, to the given path unless it is "1" or
// "true"; MINSTREL_LOG_LEVEL overrides the log level.
func FromEnv(dotenvFiles ...string) (*Config, error) {
	env, err := readDotenv(dotenvFiles)
	if err != nil {
		return nil, err
	}

	lookup := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}

		return env[key]
	}

	cfg := DefaultConfig()
	if path := lookup(EnvConfig); path != "" {
		cfg, err = Load(path)
		if err != nil {
			return nil, err
		}
	}

	cfg.Targets = append(cfg.Targets, splitTargets(lookup(EnvInstrument))...)

	switch record := lookup(EnvRecord); strings.ToLower(record) {
	case "":
	case "1", "true":
		cfg.Record.Enabled = true
	default:
		cfg.Record.Enabled = true
		cfg.Record.Path = record
	}

	if level := lookup(EnvLogLevel); level != "" {
		cfg.LogLevel = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func readDotenv(files []string) (map[string]string, error) {
	env := map[string]string{}

	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}

		vars, err := godotenv.Read(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}

		for k, v := range vars {
			if _, ok := env[k]; !ok {
				env[k] = v
			}
		}
	}

	return env, nil
}

func splitTargets(list string) []string {
	var targets []string

	for _, t := range strings.Split(list, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			targets = append(targets, t)
		}
	}

	return targets
}

// Validate checks the targets, the log level and the monitor port.
func (c *Config) Validate() error {
	var errs []error

	for _, t := range c.Targets {
		if t == event.Wildcard {
			continue
		}

		if _, err := event.ParseTarget(t); err != nil {
			errs = append(errs, err)
		}
	}

	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}

	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		errs = append(errs, fmt.Errorf("monitor port %d out of range",
			c.Monitor.Port))
	}

	if c.Monitor.Port != 0 && !c.Monitor.Enabled {
		errs = append(errs, errors.New("monitor port set but monitor disabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	return nil
}

// Level parses the log level. An empty level means info.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level

	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}

	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, err
	}

	return level, nil
}

// HasWildcard returns true if every type is to be instrumented.
func (c *Config) HasWildcard() bool {
	for _, t := range c.Targets {
		if t == event.Wildcard {
			return true
		}
	}

	return false
}

// Builder returns an instrumentation builder that follows the configuration.
func (c *Config) Builder() instrumentation.Builder {
	level, _ := c.Level()
	logger := slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: level}))

	b := instrumentation.MakeBuilder().WithLogger(logger)

	if c.Record.Enabled {
		b = b.WithRecorder(c.Record.Path)
	}

	if c.Monitor.Enabled {
		b = b.WithMonitor().WithMonitorPort(c.Monitor.Port)
	}

	return b
}
