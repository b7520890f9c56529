package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/framefactor/internal/config"
	"github.com/danmuck/framefactor/internal/game"
	"github.com/danmuck/framefactor/internal/logging"
	"github.com/danmuck/framefactor/internal/replication"
	"github.com/rs/zerolog/log"
)

const defaultConfigPath = "cmd/ffclient/config.toml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "client config path")
	addr := flag.String("addr", "", "server address (overrides config)")
	name := flag.String("name", "", "player name (overrides config)")
	strafe := flag.Duration("strafe", time.Second, "direction change interval for scripted input; 0 disables input")
	flag.Parse()

	cfg, err := loadClientConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ffclient: %v\n", err)
		os.Exit(1)
	}
	if v := strings.TrimSpace(*addr); v != "" {
		cfg.Addr = v
	}
	if v := strings.TrimSpace(*name); v != "" {
		cfg.PlayerName = v
	}
	logging.Configure(logging.ProfileRuntime, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, *strafe); err != nil {
		fmt.Fprintf(os.Stderr, "ffclient: %v\n", err)
		os.Exit(1)
	}
}

func loadClientConfig(path string) (config.ClientFile, error) {
	cfg, err := config.LoadClientFile(path)
	if err == nil {
		return cfg, nil
	}
	if path == defaultConfigPath && errors.Is(err, fs.ErrNotExist) {
		cfg = config.DefaultClientFile()
		return cfg, config.ValidateClientFile(cfg)
	}
	return config.ClientFile{}, err
}

func run(ctx context.Context, cfg config.ClientFile, strafe time.Duration) error {
	greeting, err := cfg.Hello().Envelope()
	if err != nil {
		return err
	}
	node, err := replication.NewClient(ctx, cfg.Options(), greeting)
	if err != nil {
		return err
	}
	defer node.Close()

	gameCfg := game.DefaultConfig()
	if strafe > 0 {
		gameCfg.Input = strafeInput(strafe)
	}
	arena, err := game.New(node, gameCfg)
	if err != nil {
		return err
	}

	report := time.Duration(0)
	err = node.Run(ctx, cfg.TickRate, func(t *replication.Tick) error {
		if err := arena.Simulate(t); err != nil {
			return err
		}
		report += t.Delta
		if report < time.Second {
			return nil
		}
		report = 0
		if id, ok := arena.LocalPlayer(); ok {
			if p, ok := arena.World().Player(id); ok {
				log.Info().
					Uint64("entity", uint64(id)).
					Float32("x", p.Position.X).
					Float32("y", p.Position.Y).
					Int("players", arena.World().Len()).
					Msg("ffclient.run position")
			}
		}
		return nil
	})
	if errors.Is(err, replication.ErrServerLost) {
		log.Warn().Msg("ffclient.run server closed the connection")
		return nil
	}
	return err
}

// strafeInput walks right and left, switching every interval.
func strafeInput(interval time.Duration) func() game.Vec2 {
	start := time.Now()
	return func() game.Vec2 {
		if (time.Since(start)/interval)%2 == 0 {
			return game.Vec2{X: 1}
		}
		return game.Vec2{X: -1}
	}
}
