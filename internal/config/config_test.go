package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Output.DefaultName != "output" {
		t.Errorf("Expected DefaultName=output, got %s", cfg.Output.DefaultName)
	}
	if cfg.Output.DefaultExt != ".bin" {
		t.Errorf("Expected DefaultExt=.bin, got %s", cfg.Output.DefaultExt)
	}
	if cfg.Output.ObjectExt != ".sao" {
		t.Errorf("Expected ObjectExt=.sao, got %s", cfg.Output.ObjectExt)
	}

	if cfg.Link.DefaultEntrypoint != "start" {
		t.Errorf("Expected DefaultEntrypoint=start, got %s", cfg.Link.DefaultEntrypoint)
	}
	if cfg.Link.DefaultAlignment != 0x100 {
		t.Errorf("Expected DefaultAlignment=0x100, got %#x", cfg.Link.DefaultAlignment)
	}

	if !cfg.Diagnostics.ColorOutput {
		t.Error("Expected ColorOutput=true")
	}
}

func TestGetConfigPath(t *testing.T) {
	path := GetConfigPath()

	if path == "" {
		t.Error("GetConfigPath returned empty string")
	}
	if filepath.Base(path) != "config.toml" {
		t.Errorf("Expected path to end with config.toml, got %s", path)
	}

	switch runtime.GOOS {
	case "darwin", "linux":
		dir := filepath.Dir(path)
		if filepath.Base(dir) != "sarch32asm" && path != "config.toml" {
			t.Errorf("Expected path in sarch32asm directory or fallback, got %s", path)
		}
	}
}

func TestSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "test_config.toml")

	cfg := DefaultConfig()
	cfg.Output.DefaultName = "myrom"
	cfg.Link.DefaultAlignment = 0x200
	cfg.Diagnostics.ColorOutput = false

	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("Config file was not created")
	}

	loaded, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.Output.DefaultName != "myrom" {
		t.Errorf("Expected DefaultName=myrom, got %s", loaded.Output.DefaultName)
	}
	if loaded.Link.DefaultAlignment != 0x200 {
		t.Errorf("Expected DefaultAlignment=0x200, got %#x", loaded.Link.DefaultAlignment)
	}
	if loaded.Diagnostics.ColorOutput {
		t.Error("Expected ColorOutput=false")
	}
}

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Output.DefaultName != DefaultConfig().Output.DefaultName {
		t.Error("expected defaults when config file is missing")
	}
}
