// Command wrangler is the turtle-wrangler server entry point: it wires
// together config, DB, Manager, the turtle WebSocket and client TCP
// acceptors, the ambient HTTP status endpoint, and the operator console,
// then waits for a shutdown signal (spec.md §6.1, §8).
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benjazzy/turtle-wrangler/internal/acceptor"
	"github.com/benjazzy/turtle-wrangler/internal/config"
	"github.com/benjazzy/turtle-wrangler/internal/console"
	"github.com/benjazzy/turtle-wrangler/internal/db"
	"github.com/benjazzy/turtle-wrangler/internal/httpstatus"
	"github.com/benjazzy/turtle-wrangler/internal/manager"
)

// shutdownGrace matches the teacher's own 30-second graceful shutdown
// deadline.
const shutdownGrace = 30 * time.Second

func main() {
	// logLevel starts at Info and is set from cfg.LogLevel once loaded.
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: &logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting turtle-wrangler")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		slog.Warn("unknown log level, keeping info", "log_level", cfg.LogLevel)
	}
	slog.Info("configuration loaded",
		"db_path", cfg.DBPath,
		"turtle_addr", cfg.TurtleAddr,
		"client_addr", cfg.ClientAddr,
		"status_addr", cfg.StatusAddr,
	)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr := manager.New(database)
	go mgr.Run(ctx)

	turtleServer := acceptor.NewTurtleServer(cfg.TurtleAddr, mgr)
	clientAcceptor := acceptor.New(cfg.ClientAddr, acceptor.NewClientConnector(mgr, database))
	if err := clientAcceptor.Listen(); err != nil {
		slog.Error("failed to bind client listener", "error", err)
		os.Exit(1)
	}

	errCh := make(chan error, 2)
	go func() {
		slog.Info("turtle websocket listening", "addr", cfg.TurtleAddr)
		if err := turtleServer.Run(ctx); err != nil {
			errCh <- err
		}
	}()
	go func() {
		slog.Info("client listening", "addr", clientAcceptor.Addr())
		clientAcceptor.Run(ctx)
	}()

	if cfg.StatusAddr != "" {
		statusServer := httpstatus.New(cfg.StatusAddr, mgr)
		go func() {
			slog.Info("status endpoint listening", "addr", cfg.StatusAddr)
			if err := statusServer.Run(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	go console.Run(ctx, os.Stdin, mgr, database, cancel)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("server error, shutting down", "error", err)
	case <-ctx.Done():
		slog.Info("shutdown requested by operator console")
	}

	slog.Info("initiating graceful shutdown")
	cancel()

	select {
	case <-mgr.Done():
	case <-time.After(shutdownGrace):
		slog.Warn("manager did not shut down within grace period")
	}

	slog.Info("turtle-wrangler shut down cleanly")
}
