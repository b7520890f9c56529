package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/framefactor/internal/config"
)

const envAddr = "FRAMEFACTOR_ADDR"

// loadServerConfig overlays the keys defined in path onto the defaults. A missing file at the
// default path is not an error.
func loadServerConfig(path string, required bool) (config.ServerFile, error) {
	cfg := config.DefaultServerFile()

	var raw config.ServerFile
	meta, err := toml.DecodeFile(path, &raw)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && !required:
		return finish(cfg)
	default:
		return config.ServerFile{}, fmt.Errorf("load server config: %w", err)
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("tick_rate") {
		cfg.TickRate = raw.TickRate
	}
	if meta.IsDefined("max_peers") {
		cfg.MaxPeers = raw.MaxPeers
	}
	if meta.IsDefined("accept_versions") {
		cfg.AcceptVersions = strings.TrimSpace(raw.AcceptVersions)
	}
	if meta.IsDefined("max_frame_bytes") {
		cfg.MaxFrameBytes = raw.MaxFrameBytes
	}
	if meta.IsDefined("handshake_timeout") {
		cfg.HandshakeTimeout = raw.HandshakeTimeout
	}
	if meta.IsDefined("write_timeout") {
		cfg.WriteTimeout = raw.WriteTimeout
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = raw.LogLevel
	}
	if meta.IsDefined("game", "max_players") {
		cfg.Game.MaxPlayers = raw.Game.MaxPlayers
	}
	if meta.IsDefined("game", "speed") {
		cfg.Game.Speed = raw.Game.Speed
	}
	if meta.IsDefined("game", "frame") {
		cfg.Game.Frame = strings.TrimSpace(raw.Game.Frame)
	}
	return finish(cfg)
}

func finish(cfg config.ServerFile) (config.ServerFile, error) {
	if addr := strings.TrimSpace(os.Getenv(envAddr)); addr != "" {
		cfg.Addr = addr
	}
	if err := config.ValidateServerFile(cfg); err != nil {
		return config.ServerFile{}, err
	}
	return cfg, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
