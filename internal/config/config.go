package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/danmuck/framefactor/internal/logging"
	"github.com/danmuck/framefactor/internal/protocol/session"
	"github.com/pelletier/go-toml/v2"
)

// GameFile is the [game] table of the server config.
type GameFile struct {
	MaxPlayers int     `toml:"max_players"`
	Speed      float32 `toml:"speed"`
	Frame      string  `toml:"frame"`
}

// ServerFile is the on-disk shape of the ffserver config.
type ServerFile struct {
	Name             string   `toml:"name"`
	Addr             string   `toml:"addr"`
	TickRate         int      `toml:"tick_rate"`
	MaxPeers         int      `toml:"max_peers"`
	AcceptVersions   string   `toml:"accept_versions"`
	MaxFrameBytes    uint32   `toml:"max_frame_bytes"`
	HandshakeTimeout string   `toml:"handshake_timeout"`
	WriteTimeout     string   `toml:"write_timeout"`
	AdminAddr        string   `toml:"admin_addr"`
	CorsOrigins      []string `toml:"cors_origins"`
	LogLevel         string   `toml:"log_level"`
	Game             GameFile `toml:"game"`
}

// ClientFile is the on-disk shape of the ffclient config.
type ClientFile struct {
	Name             string `toml:"name"`
	Addr             string `toml:"addr"`
	TickRate         int    `toml:"tick_rate"`
	PlayerName       string `toml:"player_name"`
	Version          string `toml:"version"`
	ConnectTimeout   string `toml:"connect_timeout"`
	ConnectAttempts  int    `toml:"connect_attempts"`
	HandshakeTimeout string `toml:"handshake_timeout"`
	MaxFrameBytes    uint32 `toml:"max_frame_bytes"`
	LogLevel         string `toml:"log_level"`
}

func DefaultServerFile() ServerFile {
	return ServerFile{
		Name:             "server",
		Addr:             "127.0.0.1:7777",
		TickRate:         48,
		MaxPeers:         8,
		AcceptVersions:   ">= 0.1.0",
		MaxFrameBytes:    4 * 1024 * 1024,
		HandshakeTimeout: "5s",
		WriteTimeout:     "2s",
		AdminAddr:        "127.0.0.1:7780",
		CorsOrigins:      []string{"http://localhost:3000"},
		LogLevel:         "info",
		Game: GameFile{
			MaxPlayers: 2,
			Speed:      240,
			Frame:      "frames/knight.frame",
		},
	}
}

func DefaultClientFile() ClientFile {
	return ClientFile{
		Name:             "client",
		Addr:             "127.0.0.1:7777",
		TickRate:         60,
		PlayerName:       "player",
		Version:          "0.1.0",
		ConnectTimeout:   "5s",
		ConnectAttempts:  5,
		HandshakeTimeout: "5s",
		MaxFrameBytes:    4 * 1024 * 1024,
		LogLevel:         "info",
	}
}

// LoadServerFile reads path over the defaults and validates the result.
func LoadServerFile(path string) (ServerFile, error) {
	cfg := DefaultServerFile()
	if err := loadToml(path, &cfg); err != nil {
		return ServerFile{}, err
	}
	if err := ValidateServerFile(cfg); err != nil {
		return ServerFile{}, err
	}
	return cfg, nil
}

func LoadClientFile(path string) (ClientFile, error) {
	cfg := DefaultClientFile()
	if err := loadToml(path, &cfg); err != nil {
		return ClientFile{}, err
	}
	if err := ValidateClientFile(cfg); err != nil {
		return ClientFile{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateServerFile(cfg ServerFile) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("server config missing name")
	}
	if err := validateAddr("addr", cfg.Addr); err != nil {
		return err
	}
	if cfg.TickRate <= 0 {
		return fmt.Errorf("server config tick_rate must be positive, got %d", cfg.TickRate)
	}
	if cfg.MaxPeers < 0 {
		return fmt.Errorf("server config max_peers must not be negative")
	}
	if _, err := session.ParseVersionPolicy(cfg.AcceptVersions); err != nil {
		return fmt.Errorf("server config accept_versions: %w", err)
	}
	if err := validateDuration("handshake_timeout", cfg.HandshakeTimeout); err != nil {
		return err
	}
	if err := validateDuration("write_timeout", cfg.WriteTimeout); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.AdminAddr) != "" {
		if err := validateAddr("admin_addr", cfg.AdminAddr); err != nil {
			return err
		}
	}
	if err := validateLevel("server", cfg.LogLevel); err != nil {
		return err
	}
	if cfg.Game.MaxPlayers <= 0 {
		return fmt.Errorf("server config game.max_players must be positive")
	}
	if cfg.MaxPeers > 0 && cfg.MaxPeers < cfg.Game.MaxPlayers {
		return fmt.Errorf("server config max_peers (%d) below game.max_players (%d)", cfg.MaxPeers, cfg.Game.MaxPlayers)
	}
	return nil
}

func ValidateClientFile(cfg ClientFile) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("client config missing name")
	}
	if err := validateAddr("addr", cfg.Addr); err != nil {
		return err
	}
	if cfg.TickRate <= 0 {
		return fmt.Errorf("client config tick_rate must be positive, got %d", cfg.TickRate)
	}
	if strings.TrimSpace(cfg.Version) == "" {
		return fmt.Errorf("client config missing version")
	}
	if err := validateDuration("connect_timeout", cfg.ConnectTimeout); err != nil {
		return err
	}
	if err := validateDuration("handshake_timeout", cfg.HandshakeTimeout); err != nil {
		return err
	}
	if cfg.ConnectAttempts < 0 {
		return fmt.Errorf("client config connect_attempts must not be negative")
	}
	if err := validateLevel("client", cfg.LogLevel); err != nil {
		return err
	}
	return nil
}

func validateAddr(key, addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return fmt.Errorf("config missing %s", key)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("config %s %q invalid: %w", key, addr, err)
	}
	return nil
}

func validateDuration(key, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("config %s: %w", key, err)
	}
	if d < 0 {
		return fmt.Errorf("config %s must not be negative", key)
	}
	return nil
}

func validateLevel(role, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if _, ok := logging.ParseLevel(raw); !ok {
		return fmt.Errorf("%s config log_level %q unknown", role, raw)
	}
	return nil
}
