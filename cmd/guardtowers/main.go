package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/hailam/guardtowers/internal/config"
	"github.com/hailam/guardtowers/internal/engine"
	"github.com/hailam/guardtowers/internal/shell"
	"github.com/hailam/guardtowers/internal/storage"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg := &config.Config{}
	if err := cfg.Load(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	setupLogging(level)
	log.Debug().Interface("settings", cfg.SanitizedSettings()).Msg("loaded-config")

	// Start CPU profiling if requested (via flag or environment variable)
	if path := cfg.GetString(config.ConfigCPUProfile); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
		log.Info().Str("path", path).Msg("cpu-profiling-enabled")
	}

	store, err := storage.Open(cfg.GetString(config.ConfigDataDir))
	if err != nil {
		return err
	}
	defer store.Close()

	ec, err := cfg.EngineConfig()
	if err != nil {
		return err
	}
	prefs, err := store.LoadPreferences()
	if err != nil {
		return err
	}
	// A saved table size applies unless one was given explicitly.
	if !cfg.IsSet(config.ConfigHashMB) && prefs.HashMB > 0 {
		ec.HashMB = prefs.HashMB
	}

	eng := engine.New(ec)
	log.Info().Uint64("hash-entries", eng.HashSize()).Int("max-depth", ec.MaxDepth).Msg("engine-ready")

	sh, err := shell.New(cfg, eng, store, os.Stdout)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Commands given on the command line run once, without the prompt.
	if line := strings.TrimSpace(strings.Join(cfg.Args(), " ")); line != "" {
		if err := sh.Execute(ctx, line); err != nil && !errors.Is(err, shell.ErrQuit) {
			return err
		}
		sh.Wait()
		return nil
	}
	return sh.Loop(ctx)
}

func setupLogging(level zerolog.Level) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	output.FormatLevel = func(i interface{}) string {
		return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
	}

	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(output).Level(level).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger
	log.Logger = logger
	logger.Debug().Msg("debug logging is on")
}
