package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/framefactor/internal/config"
	"github.com/danmuck/framefactor/internal/game"
	"github.com/danmuck/framefactor/internal/logging"
	"github.com/danmuck/framefactor/internal/observability"
	"github.com/danmuck/framefactor/internal/replication"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const defaultConfigPath = "cmd/ffserver/config.toml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "server config path")
	flag.Parse()

	cfg, err := loadServerConfig(*configPath, *configPath != defaultConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ffserver: %v\n", err)
		os.Exit(1)
	}
	logging.Configure(logging.ProfileRuntime, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "ffserver: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.ServerFile) error {
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	node, err := replication.NewServer(opts)
	if err != nil {
		return err
	}
	defer node.Close()

	arena, err := game.New(node, cfg.GameConfig())
	if err != nil {
		return err
	}
	log.Info().
		Str("addr", node.Addr()).
		Int("tick_rate", cfg.TickRate).
		Str("accept_versions", cfg.AcceptVersions).
		Msg("ffserver.run listening")

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return node.Run(ctx, cfg.TickRate, arena.Simulate)
	})
	if cfg.AdminAddr != "" {
		admin := observability.NewAdmin(cfg.Name, node, cfg.CorsOrigins)
		group.Go(func() error {
			return admin.Serve(ctx, cfg.AdminAddr)
		})
	}
	return group.Wait()
}
