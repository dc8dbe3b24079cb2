// Package config assembles arena settings from defaults, an optional YAML
// file, a .env file and ARENA_* environment variables. Command-line flags
// are applied last by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/npc-arena/core"
	"github.com/signalsfoundry/npc-arena/internal/logging"
	"github.com/signalsfoundry/npc-arena/internal/notify"
	"github.com/signalsfoundry/npc-arena/internal/observability"
	"github.com/signalsfoundry/npc-arena/internal/sim"
)

// ErrInvalidConfig is wrapped by every validation and parse failure.
var ErrInvalidConfig = errors.New("invalid config")

// DefaultDotEnv is the .env file read when it exists.
const DefaultDotEnv = ".env"

// Config holds every tunable of a run.
type Config struct {
	MapSize    int `yaml:"map_size"`
	SpawnRange int `yaml:"spawn_range"`
	Count      int `yaml:"count"`

	Duration       time.Duration `yaml:"duration"`
	TickInterval   time.Duration `yaml:"tick"`
	StatusInterval time.Duration `yaml:"status"`
	// Seed fixes the random spawn layout; zero picks a fresh one.
	Seed uint64 `yaml:"seed"`

	LoadPath  string `yaml:"load"`
	SavePath  string `yaml:"save"`
	BattleLog string `yaml:"battle_log"`
	Console   bool   `yaml:"console"`
	// ShowMap draws the grid map on stdout at every status tick.
	ShowMap bool `yaml:"show_map"`

	MetricsAddr string `yaml:"metrics_addr"`

	Log     LogConfig                   `yaml:"log"`
	Tracing observability.TracingConfig `yaml:"tracing"`
}

// LogConfig mirrors logging.Config for file-based settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a 30 second game of 50 NPCs on a 100x100 map.
func Default() Config {
	return Config{
		MapSize:        core.DefaultMapSize,
		SpawnRange:     core.DefaultSpawnLimit,
		Count:          50,
		Duration:       30 * time.Second,
		TickInterval:   sim.DefaultTickInterval,
		StatusInterval: time.Second,
		BattleLog:      notify.DefaultLogFile,
		Console:        true,
		Log:            LogConfig{Level: "info", Format: "text"},
		Tracing:        observability.DefaultTracingConfig(),
	}
}

// Load builds a config from defaults, the YAML file at path (skipped when
// path is empty), the .env file in the working directory and the process
// environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := LoadDotEnv(DefaultDotEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrInvalidConfig, path, err)
	}
	if err := c.Decode(bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Decode overlays YAML from r onto c. Keys absent from the document keep
// their current values; unknown keys are rejected.
func (c *Config) Decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// LoadDotEnv exports the variables in the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("%w: load %s: %v", ErrInvalidConfig, p, err)
		}
	}
	return nil
}

// ApplyEnv overlays ARENA_* variables, LOG_LEVEL and LOG_FORMAT, and the
// tracing variables onto c.
func (c *Config) ApplyEnv() error {
	var errs []error
	envInt := func(key string, dst *int) {
		if raw, ok := lookup(key); ok {
			v, err := strconv.Atoi(raw)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s=%q: not an integer", key, raw))
				return
			}
			*dst = v
		}
	}
	envDuration := func(key string, dst *time.Duration) {
		if raw, ok := lookup(key); ok {
			v, err := time.ParseDuration(raw)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s=%q: not a duration", key, raw))
				return
			}
			*dst = v
		}
	}
	envBool := func(key string, dst *bool) {
		if raw, ok := lookup(key); ok {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s=%q: not a boolean", key, raw))
				return
			}
			*dst = v
		}
	}
	envString := func(key string, dst *string) {
		if raw, ok := lookup(key); ok {
			*dst = raw
		}
	}

	envInt("ARENA_MAP_SIZE", &c.MapSize)
	envInt("ARENA_SPAWN_RANGE", &c.SpawnRange)
	envInt("ARENA_COUNT", &c.Count)
	envDuration("ARENA_DURATION", &c.Duration)
	envDuration("ARENA_TICK", &c.TickInterval)
	envDuration("ARENA_STATUS", &c.StatusInterval)
	if raw, ok := lookup("ARENA_SEED"); ok {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("ARENA_SEED=%q: not an unsigned integer", raw))
		} else {
			c.Seed = v
		}
	}
	envString("ARENA_LOAD", &c.LoadPath)
	envString("ARENA_SAVE", &c.SavePath)
	envString("ARENA_BATTLE_LOG", &c.BattleLog)
	envBool("ARENA_CONSOLE", &c.Console)
	envBool("ARENA_SHOW_MAP", &c.ShowMap)
	envString("ARENA_METRICS_ADDR", &c.MetricsAddr)
	envString("LOG_LEVEL", &c.Log.Level)
	envString("LOG_FORMAT", &c.Log.Format)

	c.Tracing = observability.ApplyTracingEnv(c.Tracing)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// lookup treats empty variables as unset.
func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// Validate reports every out-of-range setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.MapSize <= 0 {
		errs = append(errs, fmt.Errorf("map_size must be positive, got %d", c.MapSize))
	}
	if c.SpawnRange < 0 {
		errs = append(errs, fmt.Errorf("spawn_range must not be negative, got %d", c.SpawnRange))
	}
	if c.Count < 0 {
		errs = append(errs, fmt.Errorf("count must not be negative, got %d", c.Count))
	}
	if c.Duration <= 0 {
		errs = append(errs, fmt.Errorf("duration must be positive, got %s", c.Duration))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick must be positive, got %s", c.TickInterval))
	}
	if c.StatusInterval <= 0 {
		errs = append(errs, fmt.Errorf("status must be positive, got %s", c.StatusInterval))
	}
	if r := c.Tracing.SampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_ratio must be within [0, 1], got %g", r))
	}
	switch strings.ToLower(c.Tracing.Exporter) {
	case "", "stdout", "otlp", "otlpgrpc":
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter %q is not one of stdout, otlp", c.Tracing.Exporter))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Factory returns an actor factory for the configured map and spawn range.
func (c Config) Factory() *core.Factory {
	return &core.Factory{
		SpawnRange: core.Bounds{Width: c.SpawnRange, Height: c.SpawnRange},
		MapBounds:  core.Bounds{Width: c.MapSize, Height: c.MapSize},
	}
}

// LoggingConfig returns the logger settings.
func (c Config) LoggingConfig() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format}
}
