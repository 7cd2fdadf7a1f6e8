// Package armlink owns the outbound connection to the arm's script port.
//
// Commands are fire-and-forget: each is written as one line and flushed,
// and no acknowledgement is read back.
package armlink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// DefaultConnectTimeout bounds the initial connection attempt.
const DefaultConnectTimeout = time.Second

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("armlink: closed")

// Link is a connected arm command link.
type Link struct {
	conn net.Conn
	w    *bufio.Writer
	addr string

	mu     sync.Mutex
	closed bool
	sent   uint64
}

// Dial connects to host:port, giving up after timeout. "localhost" is
// resolved to the IPv4 loopback so a dual-stack resolver cannot pick ::1.
func Dial(ctx context.Context, host, port string, timeout time.Duration) (*Link, error) {
	if host == "localhost" {
		host = "127.0.0.1"
	}
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	addr := net.JoinHostPort(host, port)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to robot arm at %s: %w", addr, err)
	}
	return New(conn), nil
}

// New wraps an established connection.
func New(conn net.Conn) *Link {
	return &Link{
		conn: conn,
		w:    bufio.NewWriter(conn),
		addr: conn.RemoteAddr().String(),
	}
}

// Addr returns the remote address.
func (l *Link) Addr() string {
	return l.addr
}

// Send writes cmd followed by a newline and flushes it.
func (l *Link) Send(cmd string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	if _, err := l.w.WriteString(cmd); err != nil {
		return fmt.Errorf("write arm command: %w", err)
	}
	if err := l.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("write arm command: %w", err)
	}
	if err := l.w.Flush(); err != nil {
		return fmt.Errorf("flush arm command: %w", err)
	}
	l.sent++
	return nil
}

// Sent returns the number of commands written.
func (l *Link) Sent() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sent
}

// Close closes the connection. Calling Close more than once is a no-op.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.conn.Close()
}
