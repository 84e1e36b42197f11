// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

// Package config loads server configuration. Values come from built-in
// defaults, then a YAML file, then command-line flags, each layer
// overriding the one before.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/azimuth-mud/azimuth/internal/logging"
	"github.com/azimuth-mud/azimuth/internal/xdg"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// CodeInvalidConfig is the error code for rejected configuration.
const CodeInvalidConfig = "INVALID_CONFIG"

// Config is the complete server configuration.
type Config struct {
	World     WorldConfig     `koanf:"world"`
	Storage   StorageConfig   `koanf:"storage"`
	Telnet    TelnetConfig    `koanf:"telnet"`
	HTTP      HTTPConfig      `koanf:"http"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Log       LogConfig       `koanf:"log"`
	Dispatch  DispatchConfig  `koanf:"dispatch"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
}

// WorldConfig selects the world and how it is seeded.
type WorldConfig struct {
	ID string `koanf:"id"`
	// SeedFile is a manifest used when the world is empty. Empty means
	// the built-in starter world.
	SeedFile     string `koanf:"seed_file"`
	Registration bool   `koanf:"registration"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver        string        `koanf:"driver"`
	Path          string        `koanf:"path"`
	DatabaseURL   string        `koanf:"database_url"`
	FlushInterval time.Duration `koanf:"flush_interval"`
	RetryMax      int           `koanf:"retry_max"`
}

// TelnetConfig configures the telnet listener.
type TelnetConfig struct {
	Addr string `koanf:"addr"`
}

// HTTPConfig configures the query API and websocket listener.
type HTTPConfig struct {
	Addr           string   `koanf:"addr"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// MetricsConfig configures the metrics and health listener. An empty
// address disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// DispatchConfig configures command dispatch.
type DispatchConfig struct {
	EnvironmentFirst bool `koanf:"environment_first"`
}

// RateLimitConfig configures per-session command throttling.
type RateLimitConfig struct {
	Burst int     `koanf:"burst"`
	Rate  float64 `koanf:"rate"`
}

// Defaults returns the built-in configuration.
func Defaults() map[string]any {
	return map[string]any{
		"world.id":                   "WORLD1",
		"world.seed_file":            "",
		"world.registration":         true,
		"storage.driver":             DriverFile,
		"storage.path":               "",
		"storage.database_url":       "",
		"storage.flush_interval":     "5s",
		"storage.retry_max":          5,
		"telnet.addr":                ":4201",
		"http.addr":                  ":8080",
		"http.allowed_origins":       []string{},
		"metrics.addr":               "127.0.0.1:9100",
		"log.format":                 logging.FormatJSON,
		"log.level":                  "info",
		"dispatch.environment_first": false,
		"ratelimit.burst":            10,
		"ratelimit.rate":             2.0,
	}
}

// flagKeys maps command-line flag names to config keys. Flags not listed
// here are not configuration.
var flagKeys = map[string]string{
	"world":             "world.id",
	"seed-file":         "world.seed_file",
	"registration":      "world.registration",
	"storage":           "storage.driver",
	"storage-path":      "storage.path",
	"database-url":      "storage.database_url",
	"flush-interval":    "storage.flush_interval",
	"telnet-addr":       "telnet.addr",
	"http-addr":         "http.addr",
	"metrics-addr":      "metrics.addr",
	"log-format":        "log.format",
	"log-level":         "log.level",
	"environment-first": "dispatch.environment_first",
}

// RegisterFlags defines the configuration flags on fs. Their defaults only
// document the built-in values; an unchanged flag never overrides the file.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("world", "WORLD1", "world identifier")
	fs.String("seed-file", "", "seed manifest used when the world is empty (default: built-in world)")
	fs.Bool("registration", true, "allow players to register")
	fs.String("storage", DriverFile, "storage driver (memory, file or postgres)")
	fs.String("storage-path", "", "bbolt file for the file driver (default: XDG_DATA_HOME/azimuth/<world>.db)")
	fs.String("database-url", "", "PostgreSQL URL for the postgres driver (default: $DATABASE_URL)")
	fs.Duration("flush-interval", 5*time.Second, "how often unsaved objects are retried")
	fs.String("telnet-addr", ":4201", "telnet listen address")
	fs.String("http-addr", ":8080", "HTTP listen address for the query API and websocket")
	fs.String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", logging.FormatJSON, "log format (json or text)")
	fs.String("log-level", "info", "log level (debug, info, warn or error)")
	fs.Bool("environment-first", false, "match room and inventory verbs before player verbs")
}

// Load builds the configuration. path names a YAML file; when empty the
// XDG config file is used if it exists. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	for key, val := range Defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code(CodeInvalidConfig).With("key", key).Wrap(err)
		}
	}

	explicit := path != ""
	if !explicit {
		if p, err := xdg.ConfigFile(); err == nil {
			path = p
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, oops.Code(CodeInvalidConfig).With("path", path).Wrapf(err, "failed to read config file")
			}
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code(CodeInvalidConfig).Wrapf(err, "failed to read flags")
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code(CodeInvalidConfig).Wrapf(err, "failed to decode config")
	}
	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolvePaths fills in the default bbolt file and DATABASE_URL.
func (c *Config) resolvePaths() error {
	if c.Storage.Driver == DriverFile && c.Storage.Path == "" {
		p, err := xdg.WorldFile(c.World.ID)
		if err != nil {
			return oops.Code(CodeInvalidConfig).Wrap(err)
		}
		c.Storage.Path = p
	}
	if c.Storage.Driver == DriverPostgres && c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	return nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	invalid := func(key, format string, args ...any) error {
		return oops.Code(CodeInvalidConfig).With("key", key).Errorf(format, args...)
	}
	if strings.TrimSpace(c.World.ID) == "" {
		return invalid("world.id", "world.id is required")
	}
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverFile:
		if c.Storage.Path == "" {
			return invalid("storage.path", "storage.path is required for the file driver")
		}
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return invalid("storage.database_url", "storage.database_url or DATABASE_URL is required for the postgres driver")
		}
	default:
		return invalid("storage.driver", "storage.driver must be memory, file or postgres, got %q", c.Storage.Driver)
	}
	if c.Storage.FlushInterval <= 0 {
		return invalid("storage.flush_interval", "storage.flush_interval must be positive")
	}
	if c.Storage.RetryMax < 0 {
		return invalid("storage.retry_max", "storage.retry_max cannot be negative")
	}
	if c.Telnet.Addr == "" {
		return invalid("telnet.addr", "telnet.addr is required")
	}
	if c.HTTP.Addr == "" {
		return invalid("http.addr", "http.addr is required")
	}
	if !logging.ValidFormat(c.Log.Format) {
		return invalid("log.format", "log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	if c.RateLimit.Burst < 0 || c.RateLimit.Rate < 0 {
		return invalid("ratelimit", "ratelimit.burst and ratelimit.rate cannot be negative")
	}
	return nil
}
