// Package publisher serves the current joint positions to TCP subscribers.
//
// Every tick the control loop hands over one CurrentPositions frame; it is
// fanned out to all connected subscribers through a hub. Delivery is
// best-effort: a slow or vanished subscriber is dropped and never stalls
// the loop.
package publisher

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-armgate/internal/log"
	"github.com/teslashibe/go-armgate/pkg/hub"
	"github.com/teslashibe/go-armgate/pkg/status"
)

// Publisher accepts subscribers and broadcasts position frames to them.
type Publisher struct {
	ln     net.Listener
	hub    *hub.Hub
	logger *slog.Logger

	published atomic.Uint64

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the publisher's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = l
	}
}

// Listen opens the subscriber port on addr (":30010", "127.0.0.1:0", ...)
// and starts accepting.
func Listen(addr string, opts ...Option) (*Publisher, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for status subscribers on %s: %w", addr, err)
	}

	p := &Publisher{ln: ln}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = log.With("component", "publisher")
	}
	p.hub = hub.New("status-port", hub.WithLogger(p.logger))

	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		p.hub.Run()
	}()
	go func() {
		defer p.wg.Done()
		p.acceptLoop()
	}()

	p.logger.Info("status publisher listening", "addr", ln.Addr().String())
	return p, nil
}

func (p *Publisher) acceptLoop() {
	for {
		conn, err := p.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				p.logger.Error("accept failed", "error", err)
			}
			return
		}
		client := hub.NewClient(p.hub, newTCPConn(conn))
		if client == nil {
			return
		}
		go client.Run()
	}
}

// Publish queues one frame for every subscriber. It never blocks.
func (p *Publisher) Publish(pos status.CurrentPositions) error {
	data, err := pos.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode positions: %w", err)
	}
	p.hub.BroadcastBinary(data)
	p.published.Add(1)
	return nil
}

// Addr returns the listening address.
func (p *Publisher) Addr() net.Addr {
	return p.ln.Addr()
}

// Subscribers returns the number of connected subscribers.
func (p *Publisher) Subscribers() int {
	return p.hub.ClientCount()
}

// Published returns the number of frames handed to Publish.
func (p *Publisher) Published() uint64 {
	return p.published.Load()
}

// Close stops accepting, disconnects every subscriber and waits for the
// background goroutines.
func (p *Publisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.ln.Close()
		p.hub.Close()
		p.wg.Wait()
	})
	return err
}
