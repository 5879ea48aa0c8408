// Package config loads the flux settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pbaille/flux/internal/counter"
)

const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendRemote = "remote"
)

type StoreConfig struct {
	// Backend is one of sqlite, badger or remote.
	Backend string `yaml:"backend"`
	// Path is the sqlite file or badger directory.
	Path string `yaml:"path"`
	// URL is the base URL of a flux server, used by the remote backend.
	URL string `yaml:"url"`
}

type CanvasConfig struct {
	SidebarWidth   float64 `yaml:"sidebar_width"`
	SidebarVisible bool    `yaml:"sidebar_visible"`
}

type CardConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

type MotionConfig struct {
	DtScale      float64       `yaml:"dt_scale"`
	TickInterval time.Duration `yaml:"tick_interval"`
}

type SyncConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type CounterConfig struct {
	// Mode is atomic or naive.
	Mode string `yaml:"mode"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// Dir receives flux.log when running the canvas.
	Dir string `yaml:"dir"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Canvas  CanvasConfig  `yaml:"canvas"`
	Card    CardConfig    `yaml:"card"`
	Motion  MotionConfig  `yaml:"motion"`
	Sync    SyncConfig    `yaml:"sync"`
	Counter CounterConfig `yaml:"counter"`
	Log     LogConfig     `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
}

// Dir returns ~/.flux.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".flux"), nil
}

// DefaultPath returns ~/.flux/flux.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "flux.yaml"), nil
}

// Default returns the settings used when no file overrides them. Card and
// panel sizes are in terminal cells.
func Default() Config {
	dir, err := Dir()
	if err != nil {
		dir = ".flux"
	}
	return Config{
		Store: StoreConfig{
			Backend: BackendSQLite,
			Path:    filepath.Join(dir, "flux.db"),
		},
		Canvas:  CanvasConfig{SidebarWidth: 30},
		Card:    CardConfig{Width: 24, Height: 3},
		Motion:  MotionConfig{DtScale: 0.3, TickInterval: time.Second / 60},
		Sync:    SyncConfig{Timeout: 10 * time.Second},
		Counter: CounterConfig{Mode: counter.ModeAtomic},
		Log:     LogConfig{Level: "info", Dir: filepath.Join(dir, "logs")},
		Server:  ServerConfig{Addr: ":8080"},
	}
}

// Load reads the config file at path, creating it with defaults on first run,
// then applies environment overrides. An empty path means DefaultPath.
func Load(path string) (Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return Config{}, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// firstEnv returns the first non-empty variable among keys.
func firstEnv(getenv func(string) string, keys ...string) string {
	for _, k := range keys {
		if v := getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := firstEnv(getenv, "FLUX_STORE_URL", "FLUX_REMOTE_URL"); v != "" {
		c.Store.URL = v
	}
	if v := getenv("FLUX_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := getenv("FLUX_DB"); v != "" {
		c.Store.Path = v
	}
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite, BackendBadger:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s backend", c.Store.Backend)
		}
	case BackendRemote:
		if c.Store.URL == "" {
			return errors.New("store.url is required for the remote backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}

	switch c.Counter.Mode {
	case counter.ModeAtomic, counter.ModeNaive:
	default:
		return fmt.Errorf("unknown counter.mode %q", c.Counter.Mode)
	}

	if c.Card.Width <= 0 || c.Card.Height <= 0 {
		return errors.New("card.width and card.height must be positive")
	}
	if c.Canvas.SidebarWidth < 0 {
		return errors.New("canvas.sidebar_width must not be negative")
	}
	if c.Motion.DtScale <= 0 {
		return errors.New("motion.dt_scale must be positive")
	}
	if c.Motion.TickInterval <= 0 {
		return errors.New("motion.tick_interval must be positive")
	}
	return nil
}
