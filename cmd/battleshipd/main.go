// Command battleshipd runs the Battleship session server: one TCP
// listener, a matchmaking queue, and one live match controller at a
// time, with an optional PostgreSQL-backed match history log.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rdenton/battleshipd/internal/config"
	"github.com/rdenton/battleshipd/internal/history"
	"github.com/rdenton/battleshipd/internal/server"
)

const ConfigPath = "config/battleshipd.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := ConfigPath
	if p := os.Getenv("BATTLESHIPD_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	slog.Info("battleshipd starting",
		"bind_address", cfg.BindAddress,
		"port", cfg.Port,
		"framing", cfg.Framing,
		"log_level", cfg.LogLevel)

	store, err := openHistoryStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer store.Close()

	srv := server.New(cfg, store)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Run(gctx); err != nil {
			return fmt.Errorf("session server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// openHistoryStore builds a PostgreSQL-backed match history log when
// cfg.Database names a host, else a no-op store. Persistence is
// strictly optional (spec §9 "Open Question: persistence").
func openHistoryStore(ctx context.Context, cfg config.Server) (history.Store, error) {
	if !cfg.Database.Enabled() {
		slog.Info("match history persistence disabled (no database configured)")
		return history.NullStore{}, nil
	}

	store, err := history.NewPostgresStore(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	slog.Info("match history persistence enabled", "host", cfg.Database.Host, "dbname", cfg.Database.DBName)
	return store, nil
}

// parseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
