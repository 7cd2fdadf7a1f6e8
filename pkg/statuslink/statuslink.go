// Package statuslink drains the arm's real-time status port.
//
// The arm streams fixed-size frames far faster than the control loop ticks.
// Poll reads whatever has already arrived without waiting for more and
// keeps only the newest complete frame.
package statuslink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/teslashibe/go-armgate/pkg/status"
)

const (
	// DefaultConnectTimeout bounds the initial connection attempt.
	DefaultConnectTimeout = time.Second

	// DefaultPollWait is how long Poll waits for the socket to become
	// readable before deciding nothing is pending.
	DefaultPollWait = time.Millisecond

	// DefaultMaxPollBytes bounds how much one Poll reads, so a peer that
	// never pauses cannot hold up a tick.
	DefaultMaxPollBytes = 64 * status.FrameSize

	chunkSize = 16 * status.FrameSize
)

// ErrBroken is returned by Poll once a read has failed.
var ErrBroken = errors.New("statuslink: link broken")

// Link is a connected status link.
type Link struct {
	conn     net.Conn
	addr     string
	pollWait time.Duration
	maxPoll  int

	chunk   []byte
	pending []byte
	last    []byte
	broken  bool

	frames  uint64
	skipped uint64
}

// Option configures a Link.
type Option func(*Link)

// WithPollWait overrides DefaultPollWait.
func WithPollWait(d time.Duration) Option {
	return func(l *Link) {
		if d > 0 {
			l.pollWait = d
		}
	}
}

// WithMaxPollBytes overrides DefaultMaxPollBytes.
func WithMaxPollBytes(n int) Option {
	return func(l *Link) {
		if n > 0 {
			l.maxPoll = n
		}
	}
}

// Dial connects to addr ("host:port"), giving up after timeout.
func Dial(ctx context.Context, addr string, timeout time.Duration, opts ...Option) (*Link, error) {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	if host, port, err := net.SplitHostPort(addr); err == nil && host == "localhost" {
		addr = net.JoinHostPort("127.0.0.1", port)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to robot arm status at %s: %w", addr, err)
	}
	return New(conn, opts...), nil
}

// New wraps an established connection.
func New(conn net.Conn, opts ...Option) *Link {
	l := &Link{
		conn:     conn,
		addr:     conn.RemoteAddr().String(),
		pollWait: DefaultPollWait,
		maxPoll:  DefaultMaxPollBytes,
		chunk:    make([]byte, chunkSize),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Addr returns the remote address.
func (l *Link) Addr() string {
	return l.addr
}

// Poll drains the bytes currently available, up to the poll limit, and
// returns the newest complete frame. fresh is false when no complete frame
// arrived since the previous call; frame is then nil and Last still holds
// the best known frame. Bytes of a trailing partial frame are kept so the stream stays
// aligned, but a partial frame is never returned.
//
// A read failure marks the link broken. The frame completed before the
// failure, if any, is still returned alongside the error.
func (l *Link) Poll() (frame []byte, fresh bool, err error) {
	if l.broken {
		return nil, false, ErrBroken
	}

	if err := l.conn.SetReadDeadline(time.Now().Add(l.pollWait)); err != nil {
		l.broken = true
		return nil, false, fmt.Errorf("set status read deadline: %w", err)
	}

	var (
		readErr  error
		read     int
		complete int
	)
	for read < l.maxPoll {
		n, err := l.conn.Read(l.chunk)
		l.pending = append(l.pending, l.chunk[:n]...)
		read += n
		if f, k := l.take(); k > 0 {
			frame, complete = f, complete+k
		}
		if err != nil {
			if !isTimeout(err) {
				readErr = err
			}
			break
		}
		// Once data stops arriving the next read hits the deadline.
		if err := l.conn.SetReadDeadline(time.Now().Add(l.pollWait)); err != nil {
			readErr = err
			break
		}
	}

	if complete > 0 {
		l.last = frame
		l.frames += uint64(complete)
		l.skipped += uint64(complete - 1)
		fresh = true
	}

	if readErr != nil {
		l.broken = true
		if errors.Is(readErr, io.EOF) {
			return frame, fresh, fmt.Errorf("status link closed by peer: %w", ErrBroken)
		}
		return frame, fresh, fmt.Errorf("read status frame: %w: %w", ErrBroken, readErr)
	}
	return frame, fresh, nil
}

// take removes every complete frame from pending and returns the newest
// one with the number removed. Only a partial frame stays buffered.
func (l *Link) take() ([]byte, int) {
	complete := len(l.pending) / status.FrameSize
	if complete == 0 {
		return nil, 0
	}
	end := complete * status.FrameSize
	frame := make([]byte, status.FrameSize)
	copy(frame, l.pending[end-status.FrameSize:end])
	l.pending = append(l.pending[:0], l.pending[end:]...)
	return frame, complete
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Last returns the newest complete frame received, or nil.
func (l *Link) Last() []byte {
	return l.last
}

// Pending returns the number of buffered bytes of an incomplete frame.
func (l *Link) Pending() int {
	return len(l.pending)
}

// Broken reports whether a read has failed.
func (l *Link) Broken() bool {
	return l.broken
}

// Frames returns the number of complete frames received.
func (l *Link) Frames() uint64 {
	return l.frames
}

// Skipped returns the number of complete frames superseded by a newer one
// within the same Poll.
func (l *Link) Skipped() uint64 {
	return l.skipped
}

// Close closes the connection.
func (l *Link) Close() error {
	return l.conn.Close()
}
