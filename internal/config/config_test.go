package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/hailam/guardtowers/internal/engine"
)

func load(t *testing.T, args ...string) *Config {
	t.Helper()
	cfg := &Config{}
	if err := cfg.Load(args); err != nil {
		t.Fatalf("Load(%v): %v", args, err)
	}
	return cfg
}

func TestDefaults(t *testing.T) {
	is := is.New(t)
	cfg := load(t)

	ec, err := cfg.EngineConfig()
	is.NoErr(err)
	is.Equal(ec, engine.DefaultConfig())

	lvl, err := cfg.LogLevel()
	is.NoErr(err)
	is.Equal(lvl, zerolog.InfoLevel)

	strategy, err := cfg.DefaultStrategy()
	is.NoErr(err)
	is.Equal(strategy, engine.PVS)
	is.Equal(cfg.GetDuration(ConfigDefaultMoveTime), 2*time.Second)
	is.Equal(cfg.GetInt(ConfigSelfPlayConcurrency), 2)
	is.Equal(len(cfg.Args()), 0)
}

func TestFlags(t *testing.T) {
	is := is.New(t)
	cfg := load(t, "--hash-mb", "8", "--quiescence=false", "--max-depth", "12",
		"--default-strategy", "ab", "--log-level", "debug", "go", "depth", "3")

	ec, err := cfg.EngineConfig()
	is.NoErr(err)
	is.Equal(ec.HashMB, 8)
	is.Equal(ec.UseQuiescence, false)
	is.Equal(ec.MaxDepth, 12)

	strategy, err := cfg.DefaultStrategy()
	is.NoErr(err)
	is.Equal(strategy, engine.AlphaBeta)

	lvl, err := cfg.LogLevel()
	is.NoErr(err)
	is.Equal(lvl, zerolog.DebugLevel)

	is.Equal(cfg.Args(), []string{"go", "depth", "3"})
}

func TestEnvironment(t *testing.T) {
	is := is.New(t)
	t.Setenv("GT_HASH_MB", "16")
	t.Setenv("GT_SELFPLAY_CLOCK", "30s")

	cfg := load(t)
	ec, err := cfg.EngineConfig()
	is.NoErr(err)
	is.Equal(ec.HashMB, 16)
	is.Equal(cfg.GetDuration(ConfigSelfPlayClock), 30*time.Second)

	// An explicit flag wins over the environment.
	cfg = load(t, "--hash-mb", "4")
	ec, err = cfg.EngineConfig()
	is.NoErr(err)
	is.Equal(ec.HashMB, 4)
}

func TestConfigFile(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "guardtowers.yaml")
	data := []byte("hash-mb: 32\nkillers: false\nsafety-margin: 0.5\ndefault-movetime: 750ms\n")
	is.NoErr(os.WriteFile(path, data, 0644))

	cfg := load(t, "--config", path)
	ec, err := cfg.EngineConfig()
	is.NoErr(err)
	is.Equal(ec.HashMB, 32)
	is.Equal(ec.UseKillers, false)
	is.Equal(ec.SafetyMargin, 0.5)
	is.Equal(cfg.GetDuration(ConfigDefaultMoveTime), 750*time.Millisecond)
}

func TestMissingConfigFile(t *testing.T) {
	is := is.New(t)
	cfg := &Config{}
	err := cfg.Load([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")})
	is.True(err != nil)
}

func TestUnknownFlag(t *testing.T) {
	is := is.New(t)
	cfg := &Config{}
	is.True(cfg.Load([]string{"--no-such-flag"}) != nil)
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"negative-hash", []string{"--hash-mb", "-1"}},
		{"memory-fraction", []string{"--hash-memory-fraction", "0.95"}},
		{"high-water", []string{"--hash-high-water", "0"}},
		{"depth", []string{"--max-depth", "500"}},
		{"aspiration", []string{"--aspiration-delta", "0"}},
		{"safety", []string{"--safety-margin", "1.5"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			_, err := load(t, tc.args...).EngineConfig()
			is.True(err != nil)
		})
	}
}

func TestInvalidLogLevelAndStrategy(t *testing.T) {
	is := is.New(t)
	cfg := load(t, "--log-level", "loud", "--default-strategy", "mcts")
	_, err := cfg.LogLevel()
	is.True(err != nil)
	_, err = cfg.DefaultStrategy()
	is.True(err != nil)
}
