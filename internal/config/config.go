// Package config loads settings from flags, GT_ environment variables and an
// optional YAML file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hailam/guardtowers/internal/engine"
)

const envPrefix = "GT"

// Setting keys. The same names are used for flags, file keys and (upper-cased, with
// underscores) environment variables.
const (
	ConfigFile       = "config"
	ConfigLogLevel   = "log-level"
	ConfigDataDir    = "data-dir"
	ConfigCPUProfile = "cpu-profile"

	ConfigHashMB             = "hash-mb"
	ConfigHashMemoryFraction = "hash-memory-fraction"
	ConfigHashHighWater      = "hash-high-water"
	ConfigMaxDepth           = "max-depth"
	ConfigQuiescence         = "quiescence"
	ConfigQuiescenceMaxPly   = "quiescence-max-ply"
	ConfigKillers            = "killers"
	ConfigAspirationDelta    = "aspiration-delta"
	ConfigSafetyMargin       = "safety-margin"

	ConfigDefaultDepth    = "default-depth"
	ConfigDefaultMoveTime = "default-movetime"
	ConfigDefaultStrategy = "default-strategy"

	ConfigSelfPlayConcurrency  = "selfplay-concurrency"
	ConfigSelfPlayClock        = "selfplay-clock"
	ConfigSelfPlayOpeningPlies = "selfplay-opening-plies"
	ConfigSelfPlayMaxPlies     = "selfplay-max-plies"
)

// Config wraps a viper instance populated by Load.
type Config struct {
	*viper.Viper
	args []string
}

// Load parses args and merges environment variables and the config file named by
// --config. Precedence: flags, then environment, then file, then defaults.
func (c *Config) Load(args []string) error {
	c.Viper = viper.New()
	d := engine.DefaultConfig()

	fs := pflag.NewFlagSet("guardtowers", pflag.ContinueOnError)
	fs.String(ConfigFile, "", "YAML config file")
	fs.String(ConfigLogLevel, "info", "log level: debug, info, warn, error or disabled")
	fs.String(ConfigDataDir, "", "directory for the match database (platform default when empty)")
	fs.String(ConfigCPUProfile, "", "write a CPU profile to this file")

	fs.Int(ConfigHashMB, d.HashMB, "transposition table size in MB")
	fs.Float64(ConfigHashMemoryFraction, 0, "size the transposition table as a fraction of system memory (overrides hash-mb)")
	fs.Float64(ConfigHashHighWater, d.HashHighWater, "table occupancy at which it is cleared before a search")
	fs.Int(ConfigMaxDepth, d.MaxDepth, "deepest iteration the engine will search")
	fs.Bool(ConfigQuiescence, d.UseQuiescence, "extend leaves with a quiescence search")
	fs.Int(ConfigQuiescenceMaxPly, d.QuiescenceMaxPly, "quiescence ply cap")
	fs.Bool(ConfigKillers, d.UseKillers, "use killer moves for ordering")
	fs.Int(ConfigAspirationDelta, d.AspirationDelta, "initial aspiration half-window")
	fs.Float64(ConfigSafetyMargin, d.SafetyMargin, "fraction of the remaining move time an iteration may be predicted to use")

	fs.Int(ConfigDefaultDepth, 64, "depth limit for go without arguments")
	fs.Duration(ConfigDefaultMoveTime, 2*time.Second, "move time for go without arguments")
	fs.String(ConfigDefaultStrategy, engine.PVS.String(), "search strategy: ab or pvs")

	fs.Int(ConfigSelfPlayConcurrency, 2, "games played in parallel by selfplay")
	fs.Duration(ConfigSelfPlayClock, time.Minute, "clock per side in selfplay games")
	fs.Int(ConfigSelfPlayOpeningPlies, 4, "random plies played before the engines take over")
	fs.Int(ConfigSelfPlayMaxPlies, 200, "selfplay games longer than this are drawn")

	if err := fs.Parse(args); err != nil {
		return err
	}
	c.args = fs.Args()

	if err := c.BindPFlags(fs); err != nil {
		return err
	}
	c.SetEnvPrefix(envPrefix)
	c.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.AutomaticEnv()

	if file := c.GetString(ConfigFile); file != "" {
		c.SetConfigFile(file)
		c.SetConfigType("yaml")
		if err := c.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", file, err)
		}
	}
	return nil
}

// Args returns the positional arguments left after flag parsing.
func (c *Config) Args() []string {
	return c.args
}

// LogLevel returns the configured zerolog level.
func (c *Config) LogLevel() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.GetString(ConfigLogLevel)))
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("%s: %w", ConfigLogLevel, err)
	}
	return lvl, nil
}

// EngineConfig returns the engine tunables with the configured overrides applied.
func (c *Config) EngineConfig() (engine.Config, error) {
	cfg := engine.DefaultConfig()
	cfg.HashMB = c.GetInt(ConfigHashMB)
	cfg.HashMemoryFraction = c.GetFloat64(ConfigHashMemoryFraction)
	cfg.HashHighWater = c.GetFloat64(ConfigHashHighWater)
	cfg.MaxDepth = c.GetInt(ConfigMaxDepth)
	cfg.UseQuiescence = c.GetBool(ConfigQuiescence)
	cfg.QuiescenceMaxPly = c.GetInt(ConfigQuiescenceMaxPly)
	cfg.UseKillers = c.GetBool(ConfigKillers)
	cfg.AspirationDelta = c.GetInt(ConfigAspirationDelta)
	cfg.SafetyMargin = c.GetFloat64(ConfigSafetyMargin)

	switch {
	case cfg.HashMB < 0:
		return cfg, fmt.Errorf("%s must not be negative, got %d", ConfigHashMB, cfg.HashMB)
	case cfg.HashMemoryFraction < 0 || cfg.HashMemoryFraction > 0.9:
		return cfg, fmt.Errorf("%s must be in [0, 0.9], got %v", ConfigHashMemoryFraction, cfg.HashMemoryFraction)
	case cfg.HashHighWater <= 0 || cfg.HashHighWater > 1:
		return cfg, fmt.Errorf("%s must be in (0, 1], got %v", ConfigHashHighWater, cfg.HashHighWater)
	case cfg.MaxDepth < 1 || cfg.MaxDepth >= engine.MaxPly:
		return cfg, fmt.Errorf("%s must be in [1, %d], got %d", ConfigMaxDepth, engine.MaxPly-1, cfg.MaxDepth)
	case cfg.QuiescenceMaxPly < 0:
		return cfg, fmt.Errorf("%s must not be negative, got %d", ConfigQuiescenceMaxPly, cfg.QuiescenceMaxPly)
	case cfg.AspirationDelta < 1:
		return cfg, fmt.Errorf("%s must be positive, got %d", ConfigAspirationDelta, cfg.AspirationDelta)
	case cfg.SafetyMargin <= 0 || cfg.SafetyMargin > 1:
		return cfg, fmt.Errorf("%s must be in (0, 1], got %v", ConfigSafetyMargin, cfg.SafetyMargin)
	}
	return cfg, nil
}

// DefaultStrategy returns the strategy used when a command does not name one.
func (c *Config) DefaultStrategy() (engine.Strategy, error) {
	return engine.ParseStrategy(c.GetString(ConfigDefaultStrategy))
}

// SanitizedSettings returns all settings for logging.
func (c *Config) SanitizedSettings() map[string]any {
	return c.AllSettings()
}
