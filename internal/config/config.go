// Package config holds the assembler's ambient, on-disk configuration:
// default output paths, link layout, and diagnostic preferences.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config is the assembler's persistent configuration.
type Config struct {
	Output struct {
		DefaultName    string `toml:"default_name"`
		DefaultExt     string `toml:"default_extension"`
		ObjectExt      string `toml:"object_extension"`
		KeepObjectTemp bool   `toml:"keep_object_by_default"`
	} `toml:"output"`

	Link struct {
		DefaultEntrypoint string `toml:"default_entrypoint"`
		DefaultAlignment  int    `toml:"default_alignment"`
	} `toml:"link"`

	Diagnostics struct {
		ColorOutput       bool `toml:"color_output"`
		ShowSourceContext bool `toml:"show_source_context"`
		WarnOnVersionSkew bool `toml:"warn_on_version_skew"`
	} `toml:"diagnostics"`
}

// DefaultConfig returns a configuration with the assembler's built-in
// defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Output.DefaultName = "output"
	cfg.Output.DefaultExt = ".bin"
	cfg.Output.ObjectExt = ".sao"
	cfg.Output.KeepObjectTemp = false

	cfg.Link.DefaultEntrypoint = "start"
	cfg.Link.DefaultAlignment = 0x100

	cfg.Diagnostics.ColorOutput = true
	cfg.Diagnostics.ShowSourceContext = true
	cfg.Diagnostics.WarnOnVersionSkew = true

	return cfg
}

// GetConfigPath returns the platform-specific config file path.
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "sarch32asm")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "sarch32asm")

	default:
		return "config.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the default config file, falling back to
// defaults when none exists.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the given path.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save writes configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo writes configuration to the given path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}
