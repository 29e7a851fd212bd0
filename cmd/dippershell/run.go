package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dipperhq/dippershell"
	"github.com/dipperhq/dippershell/internal/lifecycle"
	"github.com/dipperhq/dippershell/internal/logger"
	"github.com/dipperhq/dippershell/internal/server"
)

// runShell is the default command: run the startup sequence, serve the IPC
// API, and supervise the backend until the process is told to exit.
func runShell(cmd *cobra.Command, flags *Flags) error {
	log := logger.Setup(parseLevel(flags.LogLevel), flags.Color)

	cfg, err := dippershell.LoadConfig(flags.ConfigPath)
	if err != nil {
		return err
	}
	applyFlags(&cfg, flags)

	if err := dippershell.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	var lock *lifecycle.InstanceLock
	if cfg.Shell.DataDir != "" {
		lock, err = lifecycle.AcquireInstanceLock(cfg.Shell.DataDir)
		if err != nil {
			return err
		}
		defer func() { _ = lock.Release() }()
	}

	shell, err := dippershell.New(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ep, err := shell.Startup(ctx)
	if err != nil {
		// No obtainable port is the one unrecoverable startup failure.
		return fmt.Errorf("startup sequence: %w", err)
	}
	log.Info("session endpoint chosen", "port", ep.Port)

	if cfg.IPC.Enabled {
		router := server.NewRouter(shell.Coordinator(), nil, "")
		srv, addr, err := server.Serve(cfg.IPC.Addr, router)
		if err != nil {
			return fmt.Errorf("start ipc server: %w", err)
		}
		defer func() { _ = srv.Close() }()
		log.Info("ipc api listening", "addr", addr.String())
	}

	go func() {
		<-shell.Ready()
		if shell.Healthy() {
			log.Info("backend ready, revealing UI")
		} else {
			log.Warn("backend not confirmed healthy, revealing UI anyway")
		}
	}()

	<-ctx.Done()
	log.Info("exit requested, cleaning up backend")
	shell.Shutdown("app-exit")
	return nil
}

func applyFlags(cfg *dippershell.Config, flags *Flags) {
	if flags.BackendCmd != "" {
		cfg.Backend.Command = flags.BackendCmd
	}
	if flags.ResourceDir != "" {
		cfg.Backend.ResourceDir = flags.ResourceDir
	}
	if flags.WellKnownPort > 0 {
		cfg.Shell.WellKnownPort = flags.WellKnownPort
	}
	if flags.IPCAddr != "" {
		cfg.IPC.Addr = flags.IPCAddr
	}
	if flags.NoIPC {
		cfg.IPC.Enabled = false
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
