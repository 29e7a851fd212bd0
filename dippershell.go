// Package dippershell supervises the Dipper desktop app's backend sidecar:
// it finds or allocates a loopback endpoint, spawns and drains the backend
// process, polls its health contract, and fires the one-shot readiness
// event the UI reveals on. The windowing layer embeds a Shell and wires
// its own dialog implementation.
package dippershell

import (
	"context"
	"log/slog"

	"github.com/dipperhq/dippershell/internal/backend"
	cfg "github.com/dipperhq/dippershell/internal/config"
	"github.com/dipperhq/dippershell/internal/fsops"
	"github.com/dipperhq/dippershell/internal/health"
	"github.com/dipperhq/dippershell/internal/journal"
	"github.com/dipperhq/dippershell/internal/lifecycle"
	"github.com/dipperhq/dippershell/internal/metrics"
	"github.com/dipperhq/dippershell/internal/netutil"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = cfg.Config

type Endpoint = netutil.Endpoint

type HealthReport = health.Report

type BackendSpec = backend.Spec

type Dialogs = fsops.Dialogs

type Filter = fsops.Filter

// ErrCanceled reports user-dismissed dialogs. See fsops.ErrCanceled.
var ErrCanceled = fsops.ErrCanceled

// LoadConfig reads a TOML config file, or returns defaults for an empty
// path.
func LoadConfig(path string) (Config, error) { return cfg.Load(path) }

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config { return cfg.Default() }

// RegisterMetrics registers the shell's Prometheus collectors.
func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }

// Shell is a thin facade over the internal lifecycle coordinator.
// It provides a stable public API for embedding in a windowing layer.
type Shell struct {
	coord *lifecycle.Coordinator
	sink  journal.Sink
}

// New assembles a Shell from config. log may be nil to use slog.Default.
func New(c Config, log *slog.Logger) (*Shell, error) {
	if log == nil {
		log = slog.Default()
	}
	var sink journal.Sink = journal.Nop{}
	if dsn := c.JournalDSN(); dsn != "" {
		s, err := journal.OpenSQLite(dsn)
		if err != nil {
			// A broken journal must not block the app from booting.
			log.Warn("lifecycle journal unavailable", "dsn", dsn, "error", err)
		} else {
			sink = s
		}
	}
	prober := health.New(c.Shell.ProbeTimeout, c.Shell.HealthPath)
	sup := backend.New(c.Backend, log)
	coord := lifecycle.NewCoordinator(c.Lifecycle(), prober, sup, sink, log)
	return &Shell{coord: coord, sink: sink}, nil
}

// Startup runs the startup sequence and begins readiness polling in the
// background. It returns the session endpoint; the Ready channel fires
// when the UI may reveal.
func (s *Shell) Startup(ctx context.Context) (Endpoint, error) {
	ep, err := s.coord.Run(ctx)
	if err != nil {
		return Endpoint{}, err
	}
	go s.coord.AwaitReady(ctx, ep)
	return ep, nil
}

// Ready fires exactly once per run: on healthy confirmation or attempt
// exhaustion, whichever comes first.
func (s *Shell) Ready() <-chan struct{} { return s.coord.Ready() }

// Healthy reports whether readiness came from a confirmed-healthy backend.
func (s *Shell) Healthy() bool { return s.coord.Healthy() }

// Port returns the active backend port once setup has chosen one.
func (s *Shell) Port() (int, bool) { return s.coord.State().Port() }

// Coordinator exposes the lifecycle coordinator for the IPC server.
func (s *Shell) Coordinator() *lifecycle.Coordinator { return s.coord }

// Shutdown kills the spawned backend, if this run owns one, and closes the
// journal. Both window-close and app-exit call it; the kill happens once.
func (s *Shell) Shutdown(trigger string) {
	s.coord.Shutdown(trigger)
	_ = s.sink.Close()
}
