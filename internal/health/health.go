package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dipperhq/dippershell/internal/netutil"
)

// Expected signature of the Dipper lightweight backend. Both fields must
// match: checking status alone would accept any HTTP server that happens to
// occupy the probed port, which matters because the well-known-port reuse
// path probes a port we do not own.
const (
	DefaultPath        = "/health"
	expectedStatus     = "ok"
	expectedServerType = "lightweight"
)

// DefaultTimeout bounds a single probe call end to end.
const DefaultTimeout = 5 * time.Second

// maxBodyBytes caps how much of a response we read. A health body is a few
// dozen bytes; anything larger is already Unexpected.
const maxBodyBytes = 64 << 10

// Status classifies the outcome of one probe.
type Status int

const (
	// StatusUnreachable means the endpoint did not answer (connect error,
	// timeout).
	StatusUnreachable Status = iota
	// StatusUnexpected means something answered but it is not our backend:
	// non-200 status, malformed JSON, or mismatched signature fields.
	StatusUnexpected
	// StatusHealthy means the endpoint answered with the expected backend
	// signature.
	StatusHealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusUnexpected:
		return "unexpected"
	default:
		return "unreachable"
	}
}

// Report is the result of a single probe. Never persisted; recomputed per
// poll. Body and HTTPStatus carry enough context to diagnose a misbehaving
// or foreign server from logs alone.
type Report struct {
	Status     Status
	ServerType string // set when Status == StatusHealthy
	HTTPStatus int    // 0 when the endpoint was unreachable
	Body       string // raw body for unexpected responses, truncated
	Err        error  // transport error for unreachable endpoints
}

type healthBody struct {
	Status     string `json:"status"`
	ServerType string `json:"server_type"`
}

// Prober issues bounded health checks against candidate endpoints.
type Prober struct {
	client *http.Client
	path   string
}

// New returns a Prober with the given per-call timeout and health path.
// Zero values fall back to DefaultTimeout and DefaultPath.
func New(timeout time.Duration, path string) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if path == "" {
		path = DefaultPath
	}
	return &Prober{
		client: &http.Client{Timeout: timeout},
		path:   path,
	}
}

// Probe issues one GET against the endpoint's health path and classifies
// the response. It never returns an error: every failure mode maps to a
// Report the poll loop can act on.
func (p *Prober) Probe(ctx context.Context, ep netutil.Endpoint) Report {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.URL(p.path), nil)
	if err != nil {
		return Report{Status: StatusUnreachable, Err: fmt.Errorf("build health request: %w", err)}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return Report{Status: StatusUnreachable, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Report{Status: StatusUnreachable, HTTPStatus: resp.StatusCode, Err: fmt.Errorf("read health body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return Report{Status: StatusUnexpected, HTTPStatus: resp.StatusCode, Body: string(raw)}
	}

	var body healthBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return Report{Status: StatusUnexpected, HTTPStatus: resp.StatusCode, Body: string(raw)}
	}
	if body.Status != expectedStatus || body.ServerType != expectedServerType {
		return Report{Status: StatusUnexpected, HTTPStatus: resp.StatusCode, Body: string(raw)}
	}
	return Report{Status: StatusHealthy, ServerType: body.ServerType, HTTPStatus: resp.StatusCode}
}
