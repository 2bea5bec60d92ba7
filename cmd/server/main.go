package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/europakollen/capitalquiz/internal/config"
	"github.com/europakollen/capitalquiz/internal/database"
	"github.com/europakollen/capitalquiz/internal/gazetteer"
	"github.com/europakollen/capitalquiz/internal/migrations"
	"github.com/europakollen/capitalquiz/internal/quiz"
	"github.com/europakollen/capitalquiz/internal/server"
	"github.com/europakollen/capitalquiz/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- Gazetteer ---
	// Missing capital data is fatal: a session can never begin without it.
	gaz, err := loadGazetteer(cfg.GazetteerPath)
	if err != nil {
		return fmt.Errorf("loading gazetteer: %w", err)
	}
	logger.Info("gazetteer loaded", "capitals", gaz.Len())

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	// --- Session store ---
	var blobs store.Store = store.NewSQLite(db)
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		blobs = store.NewRedis(rdb)
		logger.Info("connected to redis, using redis session store")
	}

	// --- Engine ---
	policy, err := quiz.PolicyByName(cfg.DifficultyPolicy)
	if err != nil {
		return fmt.Errorf("selecting difficulty policy: %w", err)
	}
	logger.Info("difficulty policy selected", "policy", policy.Name())

	broker := server.NewBroker()
	manager := server.NewManager(logger, gaz, blobs, broker, cfg.Rules(), policy, server.Timing{
		CorrectDelay:   cfg.CorrectDelay,
		IncorrectDelay: cfg.IncorrectDelay,
		RescueTimeout:  cfg.RescueTimeout,
	})

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, manager, broker, db, rdb, cfg.SPADir)

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func loadGazetteer(path string) (*gazetteer.Gazetteer, error) {
	if path != "" {
		return gazetteer.LoadFile(path)
	}
	return gazetteer.LoadEmbedded()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
