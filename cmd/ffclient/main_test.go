package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStrafeInputAlternates(t *testing.T) {
	input := strafeInput(40 * time.Millisecond)
	first := input()
	if first.X != 1 {
		t.Fatalf("unexpected first direction: %+v", first)
	}
	time.Sleep(50 * time.Millisecond)
	if second := input(); second.X != -1 {
		t.Fatalf("direction did not flip: %+v", second)
	}
}

func TestLoadClientConfigFallsBackToDefaults(t *testing.T) {
	cfg, err := loadClientConfig(defaultConfigPath)
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if cfg.Addr != "127.0.0.1:7777" {
		t.Fatalf("unexpected addr: %q", cfg.Addr)
	}
	if _, err := loadClientConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for explicit missing config")
	}
}

func TestLoadClientConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.toml")
	content := `
addr = "10.0.0.5:7777"
player_name = "ryu"
version = "1.4.0"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := loadClientConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != "10.0.0.5:7777" || cfg.PlayerName != "ryu" || cfg.Hello().Version != "1.4.0" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.TickRate != 60 {
		t.Fatalf("default tick rate lost: %d", cfg.TickRate)
	}
}
