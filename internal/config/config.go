// Package config provides configuration for the affected command.
//
// Values are resolved in this order: command-line flag, AFFECTED_* environment
// variable, config file, built-in default.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"affected/internal/report"
)

// EnvPrefix prefixes every environment variable read by this package.
const EnvPrefix = "AFFECTED"

// DefaultConfigFile is looked up in the working directory when no config
// file is given explicitly.
const DefaultConfigFile = ".affected.yaml"

// Config holds CLI configuration.
type Config struct {
	// Manifest is the path to the package/target manifest.
	Manifest string
	// Format is the output renderer name (json, text, dot, flatlist).
	Format string
	// Out is the output file. Empty or "-" means stdout.
	Out string
	// DataDir holds the run history database.
	DataDir string
	// Workers is the number of concurrent propagation passes.
	Workers int
	// Debounce is how long watch mode waits for events to settle.
	Debounce time.Duration
	// Debug enables debug logging.
	Debug bool
	// Ignore lists extra glob patterns watch mode skips.
	Ignore []string
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Manifest: "affected.yaml",
		Format:   "json",
		Out:      "",
		DataDir:  ".affected",
		Workers:  1,
		Debounce: 200 * time.Millisecond,
	}
}

// FromEnv creates a Config from environment variables over the defaults.
func FromEnv() *Config {
	d := Defaults()
	return &Config{
		Manifest: getEnv("AFFECTED_MANIFEST", d.Manifest),
		Format:   getEnv("AFFECTED_FORMAT", d.Format),
		Out:      getEnv("AFFECTED_OUT", d.Out),
		DataDir:  getEnv("AFFECTED_DATA_DIR", d.DataDir),
		Workers:  getEnvInt("AFFECTED_WORKERS", d.Workers),
		Debounce: getEnvDuration("AFFECTED_DEBOUNCE", d.Debounce),
		Debug:    getEnvBool("AFFECTED_DEBUG", d.Debug),
		Ignore:   splitList(os.Getenv("AFFECTED_IGNORE")),
	}
}

// Load resolves the configuration from flags, environment and the config
// file. flags may be nil. If file is empty, DefaultConfigFile is used when it
// exists; an explicitly named file must exist.
func Load(flags *pflag.FlagSet, file string) (*Config, error) {
	v := viper.New()
	d := Defaults()
	v.SetDefault("manifest", d.Manifest)
	v.SetDefault("format", d.Format)
	v.SetDefault("out", d.Out)
	v.SetDefault("data-dir", d.DataDir)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("debounce", d.Debounce)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("ignore", []string{})

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", file, err)
		}
	} else if _, err := os.Stat(DefaultConfigFile); err == nil {
		v.SetConfigFile(DefaultConfigFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", DefaultConfigFile, err)
		}
	}

	if flags != nil {
		for _, key := range []string{"manifest", "format", "out", "data-dir", "workers", "debounce", "debug", "ignore"} {
			if f := flags.Lookup(key); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", key, err)
				}
			}
		}
	}

	cfg := &Config{
		Manifest: v.GetString("manifest"),
		Format:   v.GetString("format"),
		Out:      v.GetString("out"),
		DataDir:  v.GetString("data-dir"),
		Workers:  v.GetInt("workers"),
		Debounce: v.GetDuration("debounce"),
		Debug:    v.GetBool("debug"),
	}
	for _, item := range v.GetStringSlice("ignore") {
		cfg.Ignore = append(cfg.Ignore, splitList(item)...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	// DataDir is absolute from here on; watch roots differ from the cwd.
	if cfg.DataDir != "" {
		abs, err := filepath.Abs(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("resolving data dir: %w", err)
		}
		cfg.DataDir = abs
	}
	return cfg, nil
}

// Validate reports configuration values the command cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if _, err := report.NewEmitter(c.Format); err != nil {
		errs = append(errs, fmt.Errorf("format: %w", err))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.Debounce < 0 {
		errs = append(errs, fmt.Errorf("debounce must not be negative, got %s", c.Debounce))
	}
	if c.Manifest == "" {
		errs = append(errs, errors.New("manifest path is empty"))
	}
	return errors.Join(errs...)
}

// HistoryPath is the run history database inside DataDir.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// splitList splits a comma-separated list, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
