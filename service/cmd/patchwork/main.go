// Command patchwork plays a local hot-seat game in the terminal.
package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bruno00o/Patchwork/service/internal/ascii"
	"github.com/bruno00o/Patchwork/service/internal/cache"
	"github.com/bruno00o/Patchwork/service/internal/config"
	"github.com/bruno00o/Patchwork/service/internal/database"
	"github.com/bruno00o/Patchwork/service/internal/game"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	log.SetLevel(cfg.LogLevel)
	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	historian, archive, err := openSinks(ctx, cfg)
	if err != nil {
		return err
	}
	if historian != nil {
		defer historian.Close()
	}
	if archive != nil {
		defer archive.Close()
	}

	g := game.NewPatchworkGame(cfg.HouseRules())
	g.TurnDuration = cfg.TurnTimeout
	if historian != nil {
		g.Historian = historian
	}
	if archive != nil {
		g.Archive = archive
	}
	g.OnGameEnd = func(gameID uuid.UUID, winners []uuid.UUID, scores map[uuid.UUID]int) {
		log.WithFields(log.Fields{"game": gameID, "winners": winners}).Info("game finished")
	}
	for _, name := range cfg.Players {
		if err := g.AddPlayer(game.NewPlayer(name)); err != nil {
			return err
		}
	}

	seed := cfg.Seed
	if !cfg.SeedSet {
		seed = rand.Uint64()
	}
	if err := g.Start(seed); err != nil {
		return err
	}
	err = game.Run(ctx, g, ascii.New(os.Stdin, os.Stdout))
	g.Close()
	return err
}

// openSinks connects the optional Redis historian and Postgres archive in
// parallel. Unconfigured sinks stay nil.
func openSinks(ctx context.Context, cfg config.Config) (*cache.Historian, *database.Archive, error) {
	var (
		historian *cache.Historian
		archive   *database.Archive
	)
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	eg, egCtx := errgroup.WithContext(connectCtx)
	if cfg.RedisAddr != "" {
		eg.Go(func() error {
			h, err := cache.Connect(egCtx, cache.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
			historian = h
			return err
		})
	}
	if cfg.DatabaseURL != "" {
		eg.Go(func() error {
			a, err := database.Connect(egCtx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			archive = a
			return a.EnsureSchema(egCtx)
		})
	}
	if err := eg.Wait(); err != nil {
		if historian != nil {
			historian.Close()
		}
		if archive != nil {
			archive.Close()
		}
		return nil, nil, err
	}
	return historian, archive, nil
}
