package trellis

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/sirupsen/logrus"
)

const configRelPath = "trellis/config.toml"

// ViewConfig describes one output in the config file.
type ViewConfig struct {
	Name     string  `toml:"name"`
	X        int     `toml:"x"`
	Y        int     `toml:"y"`
	Width    int     `toml:"width"`
	Height   int     `toml:"height"`
	Scale    float64 `toml:"scale,omitempty"`
	Shadowfb bool    `toml:"shadowfb,omitempty"`
}

// Layout returns the view's rectangle in stage coordinates.
func (vc ViewConfig) Layout() image.Rectangle {
	return image.Rect(vc.X, vc.Y, vc.X+vc.Width, vc.Y+vc.Height)
}

// Config holds the persisted settings of a compositor built on trellis.
type Config struct {
	// Debug enables debug checks and trace logging of every redraw.
	Debug bool `toml:"debug"`
	// PaintDamageRegion tints swapped and queued areas on screen.
	PaintDamageRegion bool `toml:"paint_damage_region"`
	// DisableClippedRedraws forces full redraws.
	DisableClippedRedraws bool `toml:"disable_clipped_redraws"`
	// ForceCursors paints overlays even when the cursor is hidden.
	ForceCursors bool `toml:"force_cursors"`
	// LogLevel is a logrus level name.
	LogLevel string `toml:"log_level"`
	// BufferCount is the swap chain length of emulated onscreens.
	BufferCount int `toml:"buffer_count"`

	Views []ViewConfig `toml:"views"`
}

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:    "info",
		BufferCount: 2,
	}
}

// DefaultConfigPath returns the config file location under the user's XDG
// config directory, creating the directory if needed.
func DefaultConfigPath() (string, error) {
	p, err := xdg.ConfigFile(configRelPath)
	if err != nil {
		return "", fmt.Errorf("trellis: resolve config path: %w", err)
	}
	return p, nil
}

// LoadConfig reads the TOML config at path. A missing file yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			componentLog("config").WithField("path", path).Debug("no config file, using defaults")
			return cfg, nil
		}
		return nil, fmt.Errorf("trellis: read config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("trellis: config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as TOML, creating parent directories.
func SaveConfig(path string, cfg *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("trellis: encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("trellis: create config dir: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("trellis: write config %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.BufferCount < 1 {
		return fmt.Errorf("buffer_count must be at least 1, got %d", c.BufferCount)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	for i, v := range c.Views {
		if v.Width <= 0 || v.Height <= 0 {
			return fmt.Errorf("view %d (%q) has empty size %dx%d", i, v.Name, v.Width, v.Height)
		}
		if v.Scale < 0 {
			return fmt.Errorf("view %d (%q) has negative scale", i, v.Name)
		}
	}
	return nil
}

// DebugFlags maps the config to renderer debug flags.
func (c *Config) DebugFlags() DebugFlag {
	var f DebugFlag
	if c.PaintDamageRegion {
		f |= DebugPaintDamageRegion
	}
	if c.DisableClippedRedraws {
		f |= DebugDisableClippedRedraws
	}
	return f
}

// PaintFlags maps the config to stage paint flags.
func (c *Config) PaintFlags() PaintFlag {
	if c.ForceCursors {
		return PaintForceCursors
	}
	return 0
}

// Apply configures the package logger and stage from c.
// The configured log level wins over the one debug mode picks.
func (c *Config) Apply(stage *Stage) {
	if stage != nil {
		stage.SetDebugMode(c.Debug)
		stage.SetPaintFlags(c.PaintFlags())
	}
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		Logger().SetLevel(lvl)
	}
}
