package config

import (
	"strings"
	"time"

	"github.com/danmuck/framefactor/internal/game"
	"github.com/danmuck/framefactor/internal/network"
	"github.com/danmuck/framefactor/internal/protocol/frame"
	"github.com/danmuck/framefactor/internal/protocol/session"
	"github.com/danmuck/framefactor/internal/replication"
)

// Options converts a validated server file into node options.
func (f ServerFile) Options() (replication.Options, error) {
	policy, err := session.ParseVersionPolicy(f.AcceptVersions)
	if err != nil {
		return replication.Options{}, err
	}
	cfg := network.DefaultConfig()
	cfg.Node = f.Name
	cfg.MaxPeers = f.MaxPeers
	cfg.Versions = policy
	cfg.Limits = frame.Limits{MaxFrameBytes: f.MaxFrameBytes}
	cfg.Session.HandshakeTimeout = durationOr(f.HandshakeTimeout, cfg.Session.HandshakeTimeout)
	cfg.Session.WriteTimeout = durationOr(f.WriteTimeout, cfg.Session.WriteTimeout)
	return replication.Options{Addr: strings.TrimSpace(f.Addr), Network: cfg}, nil
}

func (f ServerFile) GameConfig() game.Config {
	cfg := game.DefaultConfig()
	cfg.MaxPlayers = f.Game.MaxPlayers
	cfg.Speed = f.Game.Speed
	cfg.Frame = f.Game.Frame
	return cfg
}

// Options converts a validated client file into node options.
func (f ClientFile) Options() replication.Options {
	cfg := network.DefaultConfig()
	cfg.Node = f.Name
	cfg.Limits = frame.Limits{MaxFrameBytes: f.MaxFrameBytes}
	cfg.Session.ConnectTimeout = durationOr(f.ConnectTimeout, cfg.Session.ConnectTimeout)
	cfg.Session.HandshakeTimeout = durationOr(f.HandshakeTimeout, cfg.Session.HandshakeTimeout)
	if f.ConnectAttempts > 0 {
		cfg.Session.ConnectAttempts = f.ConnectAttempts
	}
	return replication.Options{Addr: strings.TrimSpace(f.Addr), Network: cfg}
}

// Hello builds the greeting a client sends after the handshake.
func (f ClientFile) Hello() session.Hello {
	return session.Hello{Name: f.PlayerName, Version: strings.TrimSpace(f.Version)}
}

func durationOr(raw string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
