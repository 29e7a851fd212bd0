package netutil

import (
	"fmt"
	"net"
)

// Loopback is the only host the shell ever binds or probes. The backend is
// private to the desktop app and must not be reachable from other machines.
const Loopback = "127.0.0.1"

// Endpoint identifies the backend's HTTP listener. Immutable once chosen
// for a session.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, fmt.Sprintf("%d", e.Port))
}

func (e Endpoint) URL(path string) string {
	return "http://" + e.Addr() + path
}

// LoopbackEndpoint returns an Endpoint on 127.0.0.1 for the given port.
func LoopbackEndpoint(port int) Endpoint {
	return Endpoint{Host: Loopback, Port: port}
}

// FreePort asks the kernel for a free ephemeral port by binding to
// 127.0.0.1:0 and reading back the assigned port. The listener is closed
// before returning: the port is a hint, not a reservation. Another process
// may claim it between close and handoff; callers tolerate that through
// their readiness retry loop rather than holding the socket open.
func FreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", Loopback+":0")
	if err != nil {
		return 0, fmt.Errorf("resolve tcp address: %w", err)
	}
	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("listen on tcp address: %w", err)
	}
	tcpAddr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		_ = l.Close()
		return 0, fmt.Errorf("unexpected address type: %T", l.Addr())
	}
	port := tcpAddr.Port
	if err := l.Close(); err != nil {
		return 0, fmt.Errorf("release probe listener on port %d: %w", port, err)
	}
	return port, nil
}
