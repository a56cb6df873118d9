package matrix

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// ErrRoutingFailed is returned for any routing failure: bad crosspoint,
// unreachable switcher, or a missing/negative acknowledgement.
var ErrRoutingFailed = errors.New("matrix: routing failed")

const (
	defaultPort    = 4000
	defaultTimeout = 5 * time.Second

	// tcpAck is the literal acknowledgement a TCP switcher returns.
	tcpAck = "OK"

	responseBufferSize = 512
)

// Protocol selects the switcher transport.
type Protocol string

const (
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

// Config holds switcher connection settings.
type Config struct {
	Host     string
	Port     int
	Protocol Protocol
	Timeout  time.Duration

	// Dial is substituted in tests.
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// Stats holds routing counters.
type Stats struct {
	RoutesTotal  uint64
	FailedTotal  uint64
	LastRoute    string
	LastRoutedAt time.Time
}

// Router sends crosspoint commands to the video/audio matrix switcher.
// Each route opens a fresh connection; switchers in this class drop idle
// sessions and expect one command per connection.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Router struct {
	cfg  Config
	addr string

	routesTotal atomic.Uint64
	failedTotal atomic.Uint64
	last        atomic.Value // lastRoute
}

type lastRoute struct {
	command string
	at      time.Time
}

// NewRouter creates a router. The protocol defaults to UDP.
func NewRouter(cfg Config) *Router {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.Protocol = Protocol(strings.ToLower(string(cfg.Protocol)))
	if cfg.Protocol != ProtocolTCP {
		cfg.Protocol = ProtocolUDP
	}
	if cfg.Dial == nil {
		d := &net.Dialer{}
		cfg.Dial = d.DialContext
	}
	return &Router{
		cfg:  cfg,
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
	}
}

// Crosspoint formats the command that routes input to output.
func Crosspoint(input, output int) string {
	return fmt.Sprintf("%dX%d.", input, output)
}

// Route connects input to output.
func (r *Router) Route(ctx context.Context, input, output int) error {
	if input < 1 || output < 1 {
		r.failedTotal.Add(1)
		return fmt.Errorf("%w: invalid crosspoint %d -> %d", ErrRoutingFailed, input, output)
	}

	cmd := Crosspoint(input, output)
	if err := r.send(ctx, cmd); err != nil {
		r.failedTotal.Add(1)
		return fmt.Errorf("%w: %s via %s %s: %w", ErrRoutingFailed, cmd, r.cfg.Protocol, r.addr, err)
	}

	r.routesTotal.Add(1)
	r.last.Store(lastRoute{command: cmd, at: time.Now()})
	return nil
}

// Stats returns routing counters.
func (r *Router) Stats() Stats {
	s := Stats{
		RoutesTotal: r.routesTotal.Load(),
		FailedTotal: r.failedTotal.Load(),
	}
	if l, ok := r.last.Load().(lastRoute); ok {
		s.LastRoute = l.command
		s.LastRoutedAt = l.at
	}
	return s
}

func (r *Router) send(ctx context.Context, cmd string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	conn, err := r.cfg.Dial(ctx, string(r.cfg.Protocol), r.addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}

	if _, err := conn.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	if r.cfg.Protocol == ProtocolUDP {
		return awaitDatagram(conn)
	}
	return awaitAck(conn, cmd)
}

// awaitDatagram succeeds on any reply; UDP switchers echo or status-dump.
func awaitDatagram(conn net.Conn) error {
	buf := make([]byte, responseBufferSize)
	if _, err := conn.Read(buf); err != nil {
		return fmt.Errorf("no reply: %w", err)
	}
	return nil
}

// awaitAck reads reply lines until one is exactly OK. An echo of the
// command is skipped; any other non-empty line is a rejection. A final
// unterminated line counts once the peer closes or the deadline passes.
func awaitAck(conn net.Conn, cmd string) error {
	var (
		pending []byte
		buf     = make([]byte, responseBufferSize)
	)
	for {
		n, err := conn.Read(buf)
		pending = append(pending, buf[:n]...)

		for {
			i := bytes.IndexByte(pending, '\n')
			if i < 0 {
				break
			}
			line := strings.TrimSpace(string(pending[:i]))
			pending = pending[i+1:]
			if done, ackErr := checkAckLine(line, cmd); done {
				return ackErr
			}
		}

		if err != nil {
			line := strings.TrimSpace(string(pending))
			if line == "" {
				return fmt.Errorf("no acknowledgement: %w", err)
			}
			if done, ackErr := checkAckLine(line, cmd); done {
				return ackErr
			}
			return fmt.Errorf("no acknowledgement: %w", err)
		}
		if len(pending) > responseBufferSize*4 {
			return fmt.Errorf("unexpected response %q", strings.TrimSpace(string(pending[:64])))
		}
	}
}

// checkAckLine reports whether line settles the route and with what error.
func checkAckLine(line, cmd string) (bool, error) {
	switch line {
	case "", cmd:
		return false, nil
	case tcpAck:
		return true, nil
	default:
		return true, fmt.Errorf("unexpected response %q", line)
	}
}
