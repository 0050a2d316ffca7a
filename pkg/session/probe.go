package session

import (
	"context"
	"net"
	"strconv"
	"time"
)

// MaxProbeTimeout caps the control-port probe.
const MaxProbeTimeout = time.Second

// Prober reports whether an endpoint listens on the control port.
type Prober interface {
	Listening(ctx context.Context) bool
}

// ProbeFunc adapts a function to the Prober interface.
type ProbeFunc func(ctx context.Context) bool

// Listening implements Prober.
func (f ProbeFunc) Listening(ctx context.Context) bool {
	return f(ctx)
}

// PortProbe connects to a local TCP port and closes the connection
// immediately. It never starts anything.
type PortProbe struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// NewPortProbe probes 127.0.0.1:port.
func NewPortProbe(port int, timeout time.Duration) PortProbe {
	return PortProbe{Host: "127.0.0.1", Port: port, Timeout: timeout}
}

// Listening implements Prober.
func (p PortProbe) Listening(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout <= 0 || timeout > MaxProbeTimeout {
		timeout = MaxProbeTimeout
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(p.Host, strconv.Itoa(p.Port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// ControlAddress returns the attach address for an endpoint on the local port.
func ControlAddress(port int) string {
	return "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
}
