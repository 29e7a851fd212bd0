package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	probes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dippershell",
			Subsystem: "backend",
			Name:      "probes_total",
			Help:      "Health probes issued, by classified result.",
		}, []string{"result"},
	)
	spawns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dippershell",
			Subsystem: "backend",
			Name:      "spawns_total",
			Help:      "Successful backend sidecar spawns.",
		},
	)
	spawnFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dippershell",
			Subsystem: "backend",
			Name:      "spawn_failures_total",
			Help:      "Backend sidecar spawn attempts that failed.",
		},
	)
	readinessDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dippershell",
			Subsystem: "backend",
			Name:      "readiness_duration_seconds",
			Help:      "Time from startup sequence begin until the readiness event fired.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60},
		},
	)
	backendUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dippershell",
			Subsystem: "backend",
			Name:      "up",
			Help:      "1 when the last health probe was healthy, 0 otherwise.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{probes, spawns, spawnFailures, readinessDuration, backendUp}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving Prometheus metrics for the
// DefaultGatherer. The caller wires the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncProbe(result string) {
	if regOK.Load() {
		probes.WithLabelValues(result).Inc()
	}
}

func IncSpawn() {
	if regOK.Load() {
		spawns.Inc()
	}
}

func IncSpawnFailure() {
	if regOK.Load() {
		spawnFailures.Inc()
	}
}

func ObserveReadinessDuration(seconds float64) {
	if regOK.Load() {
		readinessDuration.Observe(seconds)
	}
}

func SetBackendUp(up bool) {
	if regOK.Load() {
		var v float64
		if up {
			v = 1
		}
		backendUp.Set(v)
	}
}
