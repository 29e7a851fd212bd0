// Package lifecycle orchestrates backend startup: port selection, sidecar
// spawn, readiness polling, and the one-shot readiness event gating UI
// reveal. It also owns the shared lifecycle state torn down exactly once
// on window-close or application exit.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dipperhq/dippershell/internal/backend"
	"github.com/dipperhq/dippershell/internal/health"
	"github.com/dipperhq/dippershell/internal/journal"
	"github.com/dipperhq/dippershell/internal/metrics"
	"github.com/dipperhq/dippershell/internal/netutil"
)

// Defaults for the startup sequence. The well-known port is a development
// convenience: a manually started backend on 8000 is adopted instead of
// spawning a second one.
const (
	DefaultWellKnownPort = 8000
	DefaultGracePeriod   = 2 * time.Second
	DefaultPollInterval  = 1500 * time.Millisecond
	DefaultMaxAttempts   = 30
)

// Config tunes the startup sequence and readiness polling.
type Config struct {
	WellKnownPort int           `toml:"well_known_port" mapstructure:"well_known_port"`
	GracePeriod   time.Duration `toml:"grace_period" mapstructure:"grace_period"`
	PollInterval  time.Duration `toml:"poll_interval" mapstructure:"poll_interval"`
	MaxAttempts   int           `toml:"max_attempts" mapstructure:"max_attempts"`
}

func (c Config) withDefaults() Config {
	if c.WellKnownPort <= 0 {
		c.WellKnownPort = DefaultWellKnownPort
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = DefaultGracePeriod
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	return c
}

// Coordinator runs the startup sequence once per application run and owns
// the readiness event.
type Coordinator struct {
	cfg     Config
	prober  *health.Prober
	sup     *backend.Supervisor
	state   *State
	sink    journal.Sink
	log     *slog.Logger
	runID   string
	started time.Time

	readyOnce sync.Once
	ready     chan struct{}
	healthyMu sync.Mutex
	healthy   bool
}

// NewCoordinator wires the startup sequence. sink may be nil, in which case
// events are discarded.
func NewCoordinator(cfg Config, prober *health.Prober, sup *backend.Supervisor, sink journal.Sink, log *slog.Logger) *Coordinator {
	if sink == nil {
		sink = journal.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		cfg:    cfg.withDefaults(),
		prober: prober,
		sup:    sup,
		state:  NewState(),
		sink:   sink,
		log:    log,
		runID:  uuid.NewString(),
		ready:  make(chan struct{}),
	}
}

// State exposes the shared lifecycle state for port reads and termination.
func (c *Coordinator) State() *State { return c.state }

// RunID identifies this application run in journal entries.
func (c *Coordinator) RunID() string { return c.runID }

// Ready is closed exactly once, when the backend is confirmed healthy or
// polling is exhausted, whichever comes first. The UI reveals on it.
func (c *Coordinator) Ready() <-chan struct{} { return c.ready }

// IsReady reports whether the readiness event has fired.
func (c *Coordinator) IsReady() bool {
	select {
	case <-c.ready:
		return true
	default:
		return false
	}
}

// Healthy reports whether readiness fired on a confirmed-healthy backend
// rather than on attempt exhaustion.
func (c *Coordinator) Healthy() bool {
	c.healthyMu.Lock()
	defer c.healthyMu.Unlock()
	return c.healthy
}

// Run executes the startup sequence and returns the session endpoint:
//  1. probe the well-known port; if a compatible backend answers, adopt it
//     and spawn nothing;
//  2. otherwise obtain an ephemeral port and spawn the sidecar bound to it.
//
// Spawn failure is degraded-continue. The only fatal error is the OS
// refusing to hand out any port. The returned endpoint is immutable for
// the rest of the run; callers follow up with AwaitReady.
func (c *Coordinator) Run(ctx context.Context) (netutil.Endpoint, error) {
	c.started = time.Now()
	c.record(ctx, journal.Event{Type: journal.EventStartupBegin})

	wellKnown := netutil.LoopbackEndpoint(c.cfg.WellKnownPort)
	if rep := c.prober.Probe(ctx, wellKnown); rep.Status == health.StatusHealthy {
		c.log.Info("adopting existing backend", "port", wellKnown.Port, "server_type", rep.ServerType)
		c.record(ctx, journal.Event{Type: journal.EventAdopted, Port: wellKnown.Port})
		c.state.setPort(wellKnown.Port)
		return wellKnown, nil
	}
	c.log.Info("no backend on well-known port, starting sidecar", "well_known_port", wellKnown.Port)

	port, err := netutil.FreePort()
	if err != nil {
		return netutil.Endpoint{}, fmt.Errorf("acquire ephemeral port: %w", err)
	}
	ep := netutil.LoopbackEndpoint(port)
	c.record(ctx, journal.Event{Type: journal.EventPortAllocated, Port: port})

	h, err := c.sup.Start(ep)
	if err != nil {
		// Degraded-continue: the UI still appears, backed by an endpoint
		// that never turns healthy.
		c.log.Error("backend spawn failed, continuing without sidecar", "port", port, "error", err)
		c.record(ctx, journal.Event{Type: journal.EventSpawnFailed, Port: port, Detail: err.Error()})
		metrics.IncSpawnFailure()
	} else {
		c.state.setProcess(h)
		c.record(ctx, journal.Event{Type: journal.EventSpawned, Port: port, PID: h.PID()})
		metrics.IncSpawn()
		go c.watchExit(h, port)
	}
	c.state.setPort(port)
	return ep, nil
}

// AwaitReady polls the endpoint until the backend answers healthy or the
// attempt budget runs out, then fires the readiness event either way. A
// slow backend should not hold the UI hostage; timeout is surfaced as a
// diagnostic, not a failure. Returns true when the backend was confirmed
// healthy.
func (c *Coordinator) AwaitReady(ctx context.Context, ep netutil.Endpoint) bool {
	// Grace period before the first probe: the sidecar is still bringing up
	// its listener and hammering it earns nothing.
	c.log.Info("waiting for backend", "port", ep.Port, "grace", c.cfg.GracePeriod)
	if !sleepCtx(ctx, c.cfg.GracePeriod) {
		c.fireReady(ctx, ep, false)
		return false
	}

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		rep := c.prober.Probe(ctx, ep)
		metrics.IncProbe(rep.Status.String())
		switch rep.Status {
		case health.StatusHealthy:
			c.log.Info("backend healthy", "port", ep.Port, "attempt", attempt)
			metrics.SetBackendUp(true)
			c.fireReady(ctx, ep, true)
			return true
		case health.StatusUnexpected:
			c.log.Warn("unexpected answer on backend port",
				"port", ep.Port, "attempt", attempt, "http_status", rep.HTTPStatus, "body", rep.Body)
		default:
			if attempt <= 3 || attempt%5 == 0 {
				c.log.Debug("backend not reachable yet",
					"port", ep.Port, "attempt", attempt, "max_attempts", c.cfg.MaxAttempts)
			}
		}
		if attempt < c.cfg.MaxAttempts && !sleepCtx(ctx, c.cfg.PollInterval) {
			break
		}
	}

	c.log.Error("backend health check timed out, revealing UI anyway",
		"port", ep.Port, "attempts", c.cfg.MaxAttempts,
		"waited", c.cfg.GracePeriod+time.Duration(c.cfg.MaxAttempts)*c.cfg.PollInterval)
	c.fireReady(ctx, ep, false)
	return false
}

// Shutdown tears down the spawned backend, if this run owns one. Both
// termination triggers funnel here; TakeProcess guarantees only the first
// caller kills.
func (c *Coordinator) Shutdown(trigger string) {
	h := c.state.TakeProcess()
	if h == nil {
		c.log.Info("no backend process to terminate", "trigger", trigger)
		return
	}
	c.log.Info("terminating backend", "trigger", trigger, "pid", h.PID())
	h.Kill()
	metrics.SetBackendUp(false)
	c.record(context.Background(), journal.Event{Type: journal.EventTerminated, PID: h.PID(), Detail: trigger})
}

func (c *Coordinator) fireReady(ctx context.Context, ep netutil.Endpoint, confirmed bool) {
	c.readyOnce.Do(func() {
		c.healthyMu.Lock()
		c.healthy = confirmed
		c.healthyMu.Unlock()
		metrics.ObserveReadinessDuration(time.Since(c.started).Seconds())
		if confirmed {
			c.record(ctx, journal.Event{Type: journal.EventReady, Port: ep.Port})
		} else {
			c.record(ctx, journal.Event{Type: journal.EventReadyTimeout, Port: ep.Port})
		}
		close(c.ready)
	})
}

// watchExit journals the child's exit whenever it happens, including
// crashes long after startup.
func (c *Coordinator) watchExit(h *backend.Handle, port int) {
	<-h.Done()
	code, _ := h.ExitCode()
	metrics.SetBackendUp(false)
	c.record(context.Background(), journal.Event{
		Type: journal.EventBackendExited, Port: port, PID: h.PID(),
		Detail: fmt.Sprintf("exit code %d", code),
	})
}

func (c *Coordinator) record(ctx context.Context, e journal.Event) {
	e.RunID = c.runID
	if err := c.sink.Record(ctx, e); err != nil {
		c.log.Warn("journal write failed", "event", string(e.Type), "error", err)
	}
}

// sleepCtx sleeps for d, returning false if ctx was canceled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
