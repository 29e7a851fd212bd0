package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterIsIdempotent(t *testing.T) {
	if err := Register(prometheus.DefaultRegisterer); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := Register(prometheus.DefaultRegisterer); err != nil {
		t.Fatalf("second Register: %v", err)
	}
	// After a successful registration further calls no-op, regardless of
	// the registry handed in.
	if err := Register(prometheus.NewRegistry()); err != nil {
		t.Fatalf("Register with fresh registry: %v", err)
	}
}

func TestHelpersRecordAfterRegister(t *testing.T) {
	_ = Register(prometheus.DefaultRegisterer)
	IncProbe("healthy")
	IncProbe("unreachable")
	IncSpawn()
	IncSpawnFailure()
	ObserveReadinessDuration(3.5)
	SetBackendUp(true)

	srv := httptest.NewServer(Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read scrape: %v", err)
	}
	body := string(raw)
	for _, metric := range []string{
		"dippershell_backend_probes_total",
		"dippershell_backend_spawns_total",
		"dippershell_backend_up",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("metric %s missing from scrape", metric)
		}
	}
}
