package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const DefaultPath = "~/.config/jalvselect/config.toml"

type Config struct {
	LogLevel string         `toml:"log_level"`
	LogFile  string         `toml:"log_file"`
	Instance InstanceConfig `toml:"instance"`
	Hotkey   HotkeyConfig   `toml:"hotkey"`
	Window   WindowConfig   `toml:"window"`
	Launcher LauncherConfig `toml:"launcher"`
	Notify   NotifyConfig   `toml:"notify"`
}

type InstanceConfig struct {
	FifoPath          string `toml:"fifo_path"`
	HandoverTimeoutMs int    `toml:"handover_timeout_ms"`
	TakeoverStale     bool   `toml:"takeover_stale"`
}

type HotkeyConfig struct {
	Enabled           bool     `toml:"enabled"`
	Key               string   `toml:"key"`
	Modifiers         []string `toml:"modifiers"`
	FallbackModifiers []string `toml:"fallback_modifiers"`
}

type WindowConfig struct {
	Title       string `toml:"title"`
	Width       int    `toml:"width"`
	Height      int    `toml:"height"`
	StartHidden bool   `toml:"start_hidden"`
	CSSFile     string `toml:"css_file"`
}

type LauncherConfig struct {
	Interpreter     string `toml:"interpreter"` // empty: pick from $PATH
	CatalogCommand  string `toml:"catalog_command"`
	InfoCommand     string `toml:"info_command"`
	PresetCacheSize int    `toml:"preset_cache_size"`
	FuzzySearch     bool   `toml:"fuzzy_search"`
	UsageDir        string `toml:"usage_dir"`
}

type NotifyConfig struct {
	Enabled   bool `toml:"enabled"`
	TimeoutMs int  `toml:"timeout_ms"`
}

var DefaultConfig = Config{
	LogLevel: "info",
	LogFile:  "",
	Instance: InstanceConfig{
		FifoPath:          "/tmp/jalv.select.fifo",
		HandoverTimeoutMs: 2000,
		TakeoverStale:     true,
	},
	Hotkey: HotkeyConfig{
		Enabled:           true,
		Key:               "Escape",
		Modifiers:         []string{"shift"},
		FallbackModifiers: []string{"control", "shift"},
	},
	Window: WindowConfig{
		Title:       "LV2 plugs",
		Width:       350,
		Height:      200,
		StartHidden: false,
		CSSFile:     "~/.config/jalvselect/style.css",
	},
	Launcher: LauncherConfig{
		Interpreter:     "",
		CatalogCommand:  "lv2ls",
		InfoCommand:     "lv2info",
		PresetCacheSize: 64,
		FuzzySearch:     false,
		UsageDir:        "~/.cache/jalvselect",
	},
	Notify: NotifyConfig{
		Enabled:   true,
		TimeoutMs: 5000,
	},
}

// Default returns a copy of DefaultConfig with its slices detached.
func Default() *Config {
	cfg := DefaultConfig
	cfg.Hotkey.Modifiers = append([]string(nil), DefaultConfig.Hotkey.Modifiers...)
	cfg.Hotkey.FallbackModifiers = append([]string(nil), DefaultConfig.Hotkey.FallbackModifiers...)
	cfg.Launcher.UsageDir = expandPath(cfg.Launcher.UsageDir)
	cfg.Window.CSSFile = expandPath(cfg.Window.CSSFile)
	return &cfg
}

func LoadConfig(path string) (*Config, error) {
	expandedPath := expandPath(path)

	if _, err := os.Stat(expandedPath); os.IsNotExist(err) {
		return Default(), nil
	}

	data, err := os.ReadFile(expandedPath)
	if err != nil {
		return nil, err
	}

	// Keys missing from the file keep their default values.
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", expandedPath, err)
	}

	cfg.Instance.FifoPath = expandPath(cfg.Instance.FifoPath)
	cfg.Launcher.UsageDir = expandPath(cfg.Launcher.UsageDir)
	cfg.Window.CSSFile = expandPath(cfg.Window.CSSFile)
	cfg.LogFile = expandPath(cfg.LogFile)

	return cfg, nil
}

func LoadAndValidateConfig(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		usr, err := user.Current()
		if err == nil {
			return filepath.Join(usr.HomeDir, path[1:])
		}
	}
	return path
}

func SaveConfig(cfg *Config, path string) error {
	expandedPath := expandPath(path)

	dir := filepath.Dir(expandedPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(expandedPath, data, 0644)
}

func (c *Config) Validate() error {
	if err := c.validateInstance(); err != nil {
		return err
	}
	if err := c.validateHotkey(); err != nil {
		return err
	}
	if err := c.validateWindow(); err != nil {
		return err
	}
	if err := c.validateLauncher(); err != nil {
		return err
	}
	return c.validateLogLevel()
}

func (c *Config) validateInstance() error {
	i := c.Instance
	if i.FifoPath == "" {
		return fmt.Errorf("fifo_path must not be empty")
	}
	if !filepath.IsAbs(i.FifoPath) {
		return fmt.Errorf("invalid fifo_path: %s (must be absolute)", i.FifoPath)
	}
	if i.HandoverTimeoutMs < 100 || i.HandoverTimeoutMs > 60000 {
		return fmt.Errorf("invalid handover_timeout_ms: %d (must be 100-60000)", i.HandoverTimeoutMs)
	}
	return nil
}

func (c *Config) validateHotkey() error {
	h := c.Hotkey
	if !h.Enabled {
		return nil
	}
	if h.Key == "" {
		return fmt.Errorf("hotkey enabled but no key given")
	}
	valid := map[string]bool{
		"shift": true, "ctrl": true, "control": true, "alt": true,
		"mod1": true, "super": true, "mod4": true,
	}
	for _, m := range append(append([]string{}, h.Modifiers...), h.FallbackModifiers...) {
		if !valid[m] {
			return fmt.Errorf("invalid hotkey modifier: %s (must be one of: shift, control, alt, super)", m)
		}
	}
	return nil
}

func (c *Config) validateWindow() error {
	w := c.Window
	if w.Width < 100 || w.Width > 4000 {
		return fmt.Errorf("invalid window width: %d (must be 100-4000)", w.Width)
	}
	if w.Height < 100 || w.Height > 4000 {
		return fmt.Errorf("invalid window height: %d (must be 100-4000)", w.Height)
	}
	return nil
}

func (c *Config) validateLauncher() error {
	l := c.Launcher
	if l.CatalogCommand == "" {
		return fmt.Errorf("catalog_command must not be empty")
	}
	if l.PresetCacheSize < 1 || l.PresetCacheSize > 10000 {
		return fmt.Errorf("invalid preset_cache_size: %d (must be 1-10000)", l.PresetCacheSize)
	}
	return nil
}

func (c *Config) validateLogLevel() error {
	switch c.LogLevel {
	case "", "trace", "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("invalid log_level: %s", c.LogLevel)
}

func ValidateConfig(path string) error {
	cfg, err := LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
