// Package config reads process-wide defaults from the environment.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xyproto/env/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/ilgen/emit"
	"github.com/wippyai/ilgen/errors"
)

// Environment variable names.
const (
	EnvLogLevel        = "ILGEN_LOG_LEVEL"
	EnvUnverifiable    = "ILGEN_UNVERIFIABLE"
	EnvInitReusedLocal = "ILGEN_INIT_REUSED_LOCALS"
	EnvTailCalls       = "ILGEN_TAIL_CALLS"
	EnvColor           = "ILGEN_COLOR"
)

// ColorMode selects when CLI output is styled.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// Config holds defaults for builders, finalization and the CLI.
type Config struct {
	Color            ColorMode
	LogLevel         zapcore.Level
	Unverifiable     bool
	InitReusedLocals bool
	TailCalls        bool
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Color:            ColorAuto,
		LogLevel:         zapcore.InfoLevel,
		InitReusedLocals: true,
	}
}

// Load reads the ILGEN_* variables over Default.
func Load() (Config, error) {
	return load(env.Str)
}

type lookupFunc func(name string, defaults ...string) string

func load(lookup lookupFunc) (Config, error) {
	cfg := Default()

	if raw := lookup(EnvLogLevel); raw != "" {
		lvl, err := zapcore.ParseLevel(raw)
		if err != nil {
			return cfg, invalid(EnvLogLevel, raw, err)
		}
		cfg.LogLevel = lvl
	}

	for _, b := range []struct {
		dst  *bool
		name string
	}{
		{&cfg.Unverifiable, EnvUnverifiable},
		{&cfg.InitReusedLocals, EnvInitReusedLocal},
		{&cfg.TailCalls, EnvTailCalls},
	} {
		raw := lookup(b.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return cfg, invalid(b.name, raw, err)
		}
		*b.dst = v
	}

	switch mode := ColorMode(strings.ToLower(lookup(EnvColor, string(ColorAuto)))); mode {
	case ColorAuto, ColorAlways, ColorNever:
		cfg.Color = mode
	default:
		return cfg, invalid(EnvColor, string(mode), fmt.Errorf("want auto, always or never"))
	}
	return cfg, nil
}

func invalid(name, raw string, cause error) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidData).
		Detail("%s=%q", name, raw).Cause(cause).Build()
}

// BuilderOptions converts the configuration into builder options.
func (c Config) BuilderOptions() []emit.Option {
	return []emit.Option{
		emit.WithUnverifiable(c.Unverifiable),
		emit.WithLocalReinit(c.InitReusedLocals),
	}
}

// FinalizeOptions converts the configuration into finalize options.
func (c Config) FinalizeOptions() emit.FinalizeOptions {
	return emit.FinalizeOptions{TailCalls: c.TailCalls}
}

// NewLogger builds a logger at the configured level. Debug selects the
// development encoder.
func (c Config) NewLogger() (*zap.Logger, error) {
	var zc zap.Config
	if c.LogLevel == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(c.LogLevel)
	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}
