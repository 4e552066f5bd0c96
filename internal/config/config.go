// Package config loads bassline settings from a TOML file with
// environment overrides.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/roach88/bassline/internal/engine"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvLogLevel              = "BASSLINE_LOG_LEVEL"
	EnvLogFormat             = "BASSLINE_LOG_FORMAT"
	EnvStorePath             = "BASSLINE_STORE_PATH"
	EnvThrowOnMissingContact = "BASSLINE_THROW_ON_MISSING_CONTACT"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the resolved configuration.
type Config struct {
	Engine EngineConfig
	Log    LogConfig
	Store  StoreConfig
}

type EngineConfig struct {
	ThrowOnMissingContact bool
	MaxSteps              int
}

type LogConfig struct {
	Level  slog.Level
	Format string
}

type StoreConfig struct {
	// Path of the SQLite journal. Empty disables journaling.
	Path string
}

type fileConfig struct {
	Engine struct {
		ThrowOnMissingContact bool `toml:"throw_on_missing_contact"`
		MaxSteps              int  `toml:"max_steps"`
	} `toml:"engine"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
	Store struct {
		Path string `toml:"path"`
	} `toml:"store"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log: LogConfig{Level: slog.LevelInfo, Format: FormatText},
	}
}

// Load reads path and applies environment overrides. An empty path
// yields Default with overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
		}
		cfg, err = Parse(string(data))
		if err != nil {
			return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes TOML source onto Default. Keys absent from src keep
// their defaults.
func Parse(src string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.Decode(src, &raw)
	if err != nil {
		return Config{}, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("engine", "throw_on_missing_contact") {
		cfg.Engine.ThrowOnMissingContact = raw.Engine.ThrowOnMissingContact
	}
	if meta.IsDefined("engine", "max_steps") {
		if raw.Engine.MaxSteps < 0 {
			return Config{}, fmt.Errorf("engine.max_steps must not be negative, got %d", raw.Engine.MaxSteps)
		}
		cfg.Engine.MaxSteps = raw.Engine.MaxSteps
	}
	if meta.IsDefined("log", "level") {
		level, err := ParseLevel(raw.Log.Level)
		if err != nil {
			return Config{}, fmt.Errorf("log.level: %w", err)
		}
		cfg.Log.Level = level
	}
	if meta.IsDefined("log", "format") {
		format, err := parseFormat(raw.Log.Format)
		if err != nil {
			return Config{}, fmt.Errorf("log.format: %w", err)
		}
		cfg.Log.Format = format
	}
	if meta.IsDefined("store", "path") {
		cfg.Store.Path = strings.TrimSpace(raw.Store.Path)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok {
		level, err := ParseLevel(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
		c.Log.Level = level
	}
	if v, ok := lookup(EnvLogFormat); ok {
		format, err := parseFormat(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLogFormat, err)
		}
		c.Log.Format = format
	}
	if v, ok := lookup(EnvStorePath); ok {
		c.Store.Path = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvThrowOnMissingContact); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvThrowOnMissingContact, err)
		}
		c.Engine.ThrowOnMissingContact = b
	}
	return nil
}

// EngineOptions maps the engine section onto engine options.
func (c Config) EngineOptions() []engine.EngineOption {
	return []engine.EngineOption{
		engine.WithThrowOnMissingContact(c.Engine.ThrowOnMissingContact),
		engine.WithMaxSteps(c.Engine.MaxSteps),
	}
}

// Logger builds a logger writing to w in the configured format.
func (c Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Log.Level}
	if c.Log.Format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel accepts debug, info, warn and error, case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return level, nil
}

func parseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case FormatText, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text or json)", s)
	}
}
