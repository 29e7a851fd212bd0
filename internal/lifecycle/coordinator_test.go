package lifecycle

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dipperhq/dippershell/internal/backend"
	"github.com/dipperhq/dippershell/internal/health"
	"github.com/dipperhq/dippershell/internal/journal"
	"github.com/dipperhq/dippershell/internal/netutil"
)

func fastConfig(wellKnown int) Config {
	return Config{
		WellKnownPort: wellKnown,
		GracePeriod:   10 * time.Millisecond,
		PollInterval:  20 * time.Millisecond,
		MaxAttempts:   5,
	}
}

func healthyServer(t *testing.T, serverType string) int {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","server_type":"` + serverType + `"}`))
	}))
	t.Cleanup(srv.Close)
	_, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return port
}

func closedPort(t *testing.T) int {
	t.Helper()
	port, err := netutil.FreePort()
	require.NoError(t, err)
	return port
}

func memJournal(t *testing.T) *journal.SQLite {
	t.Helper()
	s, err := journal.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sleepSupervisor() *backend.Supervisor {
	return backend.New(backend.Spec{
		Name:    "testbackend",
		Command: "/bin/sh",
		Args:    []string{"-c", "sleep 30", "sh"},
	}, nil)
}

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests require sh on Unix-like systems")
	}
}

func TestRunAdoptsExistingBackend(t *testing.T) {
	port := healthyServer(t, "lightweight")
	sink := memJournal(t)
	c := NewCoordinator(fastConfig(port), health.New(time.Second, ""), nil, sink, nil)

	ep, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, port, ep.Port)
	require.False(t, c.State().HasProcess(), "adoption must not spawn a child")

	events, err := sink.Recent(context.Background(), c.RunID(), 10)
	require.NoError(t, err)
	require.Equal(t, journal.EventAdopted, events[0].Type)
}

func TestRunSpawnsWhenWellKnownPortSilent(t *testing.T) {
	requireUnix(t)
	wellKnown := closedPort(t)
	c := NewCoordinator(fastConfig(wellKnown), health.New(time.Second, ""), sleepSupervisor(), memJournal(t), nil)
	t.Cleanup(func() { c.Shutdown("test-cleanup") })

	ep, err := c.Run(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, wellKnown, ep.Port, "ephemeral port expected")
	require.True(t, c.State().HasProcess())

	port, ok := c.State().Port()
	require.True(t, ok)
	require.Equal(t, ep.Port, port)
}

func TestRunWellKnownPortOccupiedByStranger(t *testing.T) {
	requireUnix(t)
	// A foreign HTTP server mimicking nothing: wrong server_type. Must not
	// be adopted.
	wellKnown := healthyServer(t, "other")
	c := NewCoordinator(fastConfig(wellKnown), health.New(time.Second, ""), sleepSupervisor(), memJournal(t), nil)
	t.Cleanup(func() { c.Shutdown("test-cleanup") })

	ep, err := c.Run(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, wellKnown, ep.Port)
	require.True(t, c.State().HasProcess())
}

func TestAwaitReadyHealthy(t *testing.T) {
	port := healthyServer(t, "lightweight")
	c := NewCoordinator(fastConfig(port), health.New(time.Second, ""), nil, memJournal(t), nil)

	start := time.Now()
	ok := c.AwaitReady(context.Background(), netutil.LoopbackEndpoint(port))
	require.True(t, ok)
	require.True(t, c.IsReady())
	require.True(t, c.Healthy())
	require.Less(t, time.Since(start), 2*time.Second)

	select {
	case <-c.Ready():
	default:
		t.Fatal("Ready channel not closed")
	}
}

func TestAwaitReadyExhaustionStillFires(t *testing.T) {
	port := closedPort(t)
	cfg := fastConfig(port)
	sink := memJournal(t)
	c := NewCoordinator(cfg, health.New(200*time.Millisecond, ""), nil, sink, nil)

	start := time.Now()
	ok := c.AwaitReady(context.Background(), netutil.LoopbackEndpoint(port))
	require.False(t, ok)
	require.True(t, c.IsReady(), "readiness must fire on exhaustion")
	require.False(t, c.Healthy())

	// Bounded by grace + attempts*interval plus probe overhead.
	budget := cfg.GracePeriod + time.Duration(cfg.MaxAttempts)*(cfg.PollInterval+250*time.Millisecond)
	require.Less(t, time.Since(start), budget)

	events, err := sink.Recent(context.Background(), c.RunID(), 10)
	require.NoError(t, err)
	require.Equal(t, journal.EventReadyTimeout, events[0].Type)
}

func TestAwaitReadyUnexpectedKeepsPolling(t *testing.T) {
	port := healthyServer(t, "other")
	c := NewCoordinator(fastConfig(port), health.New(time.Second, ""), nil, memJournal(t), nil)

	ok := c.AwaitReady(context.Background(), netutil.LoopbackEndpoint(port))
	require.False(t, ok, "wrong server_type must never confirm readiness")
	require.True(t, c.IsReady())
}

func TestAwaitReadyFiresOnlyOnce(t *testing.T) {
	port := healthyServer(t, "lightweight")
	c := NewCoordinator(fastConfig(port), health.New(time.Second, ""), nil, memJournal(t), nil)

	ep := netutil.LoopbackEndpoint(port)
	require.True(t, c.AwaitReady(context.Background(), ep))
	// A second poll round must not panic on the closed channel.
	require.True(t, c.AwaitReady(context.Background(), ep))
}

func TestShutdownIsIdempotent(t *testing.T) {
	requireUnix(t)
	wellKnown := closedPort(t)
	sink := memJournal(t)
	c := NewCoordinator(fastConfig(wellKnown), health.New(time.Second, ""), sleepSupervisor(), sink, nil)

	_, err := c.Run(context.Background())
	require.NoError(t, err)
	require.True(t, c.State().HasProcess())

	c.Shutdown("window-close")
	require.False(t, c.State().HasProcess())
	// Second trigger observes an empty slot and no-ops.
	c.Shutdown("app-exit")

	events, err := sink.Recent(context.Background(), c.RunID(), 20)
	require.NoError(t, err)
	terminated := 0
	for _, e := range events {
		if e.Type == journal.EventTerminated {
			terminated++
		}
	}
	require.Equal(t, 1, terminated, "exactly one termination event")
}

func TestSpawnFailureDegradedContinue(t *testing.T) {
	wellKnown := closedPort(t)
	sup := backend.New(backend.Spec{Command: "/nonexistent/lightweight_server"}, nil)
	sink := memJournal(t)
	c := NewCoordinator(fastConfig(wellKnown), health.New(200*time.Millisecond, ""), sup, sink, nil)

	ep, err := c.Run(context.Background())
	require.NoError(t, err, "spawn failure must not be fatal")
	require.False(t, c.State().HasProcess())

	// The poll loop never finds a backend, exhausts, and readiness still
	// fires.
	ok := c.AwaitReady(context.Background(), ep)
	require.False(t, ok)
	require.True(t, c.IsReady())

	events, err := sink.Recent(context.Background(), c.RunID(), 20)
	require.NoError(t, err)
	var sawSpawnFailed bool
	for _, e := range events {
		if e.Type == journal.EventSpawnFailed {
			sawSpawnFailed = true
		}
	}
	require.True(t, sawSpawnFailed)
}
