// Package config loads tada settings from defaults, TOML files, .env and
// the environment, in that order of increasing priority. CLI flags are
// applied on top by internal/cli.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/Makepad-fr/tada/internal/logging"
	"github.com/Makepad-fr/tada/internal/store"
)

// Defaults.
const (
	DefaultDriver    = "json"
	DefaultTheme     = "classic"
	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"

	ProjectConfigFile = "tada.toml"
	EnvFile           = ".env"
)

// Themes lists the known UI themes. Store drivers come from the store
// registry.
var Themes = []string{"classic", "neon", "mono"}

// Config is the full set of settings.
type Config struct {
	Store StoreConfig `toml:"store"`
	UI    UIConfig    `toml:"ui"`
	Log   LogConfig   `toml:"log"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

type UIConfig struct {
	Theme   string `toml:"theme"`
	Group   bool   `toml:"group"`
	NoColor bool   `toml:"no_color"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{Driver: DefaultDriver},
		UI:    UIConfig{Theme: DefaultTheme},
		Log:   LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
}

// Load builds a Config from:
//  1. Defaults
//  2. User config file ($XDG_CONFIG_HOME/tada/config.toml)
//  3. Project config file (tada.toml in the working directory)
//  4. .env in the working directory (never overrides the real environment)
//  5. TADA_* environment variables
//
// When explicit is non-empty it replaces steps 2 and 3 and must exist.
// Values are normalized but not validated: callers apply flags on top and
// then call Validate.
func Load(explicit string) (*Config, error) {
	cfg := Default()

	if explicit != "" {
		if err := loadFile(cfg, explicit); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", explicit, err)
		}
	} else {
		for _, p := range []string{userConfigFile(), ProjectConfigFile} {
			if p == "" || !fileExists(p) {
				continue
			}
			if err := loadFile(cfg, p); err != nil {
				return nil, fmt.Errorf("loading config file %s: %w", p, err)
			}
		}
	}

	if err := godotenv.Load(EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", EnvFile, err)
	}
	loadFromEnv(cfg)
	cfg.normalize()
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

func loadFromEnv(cfg *Config) {
	if v := os.Getenv("TADA_STORE"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("TADA_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("TADA_THEME"); v != "" {
		cfg.UI.Theme = v
	}
	if v := os.Getenv("TADA_GROUP"); v != "" {
		cfg.UI.Group = boolFromString(v)
	}
	if v := os.Getenv("TADA_NO_COLOR"); v != "" {
		cfg.UI.NoColor = boolFromString(v)
	}
	// NO_COLOR is honoured by presence, per no-color.org.
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		cfg.UI.NoColor = true
	}
	if v := os.Getenv("TADA_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TADA_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func (c *Config) normalize() {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.UI.Theme = strings.ToLower(strings.TrimSpace(c.UI.Theme))
}

// Validate rejects unknown drivers, themes and log settings.
func (c *Config) Validate() error {
	c.normalize()

	if drivers := store.Drivers(); !slices.Contains(drivers, c.Store.Driver) {
		return fmt.Errorf("invalid store driver %q: must be one of %v", c.Store.Driver, drivers)
	}
	if !slices.Contains(Themes, c.UI.Theme) {
		return fmt.Errorf("invalid theme %q: must be one of %v", c.UI.Theme, Themes)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := logging.ParseFormatter(c.Log.Format); err != nil {
		return err
	}
	return nil
}

// LogOptions converts the log section for logging.New. Call after Validate.
func (c *Config) LogOptions() logging.Options {
	opts := logging.DefaultOptions()
	opts.Level, _ = logging.ParseLevel(c.Log.Level)
	opts.Formatter, _ = logging.ParseFormatter(c.Log.Format)
	return opts
}

func userConfigFile() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		var err error
		dir, err = os.UserConfigDir()
		if err != nil {
			return ""
		}
	}
	return filepath.Join(dir, "tada", "config.toml")
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func boolFromString(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}
