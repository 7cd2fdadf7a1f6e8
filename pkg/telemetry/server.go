// Package telemetry serves armgate's diagnostic HTTP API and streams live
// status to websocket clients.
package telemetry

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/teslashibe/go-armgate/internal/log"
	"github.com/teslashibe/go-armgate/pkg/hub"
	"github.com/teslashibe/go-armgate/pkg/protocol"
	"github.com/teslashibe/go-armgate/pkg/status"
)

// maxResponses is how many recent command responses /api/responses keeps.
const maxResponses = 100

// Snapshot is the body of GET /api/status.
type Snapshot struct {
	State        *protocol.StateData     `json:"state"`
	Status       *protocol.StatusData    `json:"status"`
	Positions    *protocol.PositionsData `json:"positions"`
	LastResponse *protocol.ResponseData  `json:"last_response"`
	Clients      int                     `json:"clients"`
}

// Server is the telemetry server
type Server struct {
	app    *fiber.App
	addr   string
	ln     net.Listener
	logger *slog.Logger

	// Live stream for /ws/status
	statusHub *hub.Hub

	mu        sync.RWMutex
	state     *protocol.StateData
	status    *protocol.StatusData
	positions *protocol.PositionsData
	responses []protocol.ResponseData

	// Stats callback for /api/stats
	statsFunc func() any

	closeOnce sync.Once
	done      chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithStats sets the function serving GET /api/stats.
func WithStats(fn func() any) Option {
	return func(s *Server) {
		s.statsFunc = fn
	}
}

// NewServer creates a telemetry server that will listen on addr.
func NewServer(addr string, opts ...Option) *Server {
	s := &Server{
		addr:      addr,
		responses: make([]protocol.ResponseData, 0, maxResponses),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.With("component", "telemetry")
	}
	s.statusHub = hub.New("telemetry", hub.WithLogger(s.logger))

	app := fiber.New(fiber.Config{
		AppName:               "armgate telemetry",
		DisableStartupMessage: true,
	})

	// CORS for local dashboards
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/stats", s.handleStats)
	api.Get("/responses", s.handleResponses)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start binds the listening socket and serves in the background. Binding
// errors are returned; serve errors after that are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen for telemetry on %s: %w", s.addr, err)
	}
	s.ln = ln

	go s.statusHub.Run()
	go func() {
		if err := s.app.Listener(ln); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("telemetry server stopped", "error", err)
		}
	}()

	s.logger.Info("telemetry listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	return s.statusHub.ClientCount()
}

func (s *Server) broadcast(msg *protocol.Message) {
	data, err := msg.Bytes()
	if err != nil {
		s.logger.Warn("failed to encode telemetry message", "type", msg.Type, "error", err)
		return
	}
	s.statusHub.Broadcast(hub.NewJSONMessage(data))
}

// EmitStatus records the freshest status frame and streams it.
func (s *Server) EmitStatus(frame *status.Frame, frames, skipped uint64) {
	data := protocol.StatusData{Frame: frame, Frames: frames, Skipped: skipped}
	msg, err := protocol.NewStatusMessage(data)
	if err != nil {
		s.logger.Warn("failed to build status message", "error", err)
		return
	}

	s.mu.Lock()
	s.status = &data
	s.mu.Unlock()
	s.broadcast(msg)
}

// EmitPositions records the published positions and streams them.
func (s *Server) EmitPositions(p status.CurrentPositions) {
	data := protocol.PositionsFrom(p)
	msg, err := protocol.NewPositionsMessage(data)
	if err != nil {
		s.logger.Warn("failed to build positions message", "error", err)
		return
	}

	s.mu.Lock()
	s.positions = &data
	s.mu.Unlock()
	s.broadcast(msg)
}

// EmitResponse records a command response and streams it.
func (s *Server) EmitResponse(r protocol.ResponseData) {
	msg, err := protocol.NewResponseMessage(r)
	if err != nil {
		s.logger.Warn("failed to build response message", "error", err)
		return
	}

	s.mu.Lock()
	s.responses = append(s.responses, r)
	if len(s.responses) > maxResponses {
		s.responses = s.responses[1:]
	}
	s.mu.Unlock()
	s.broadcast(msg)
}

// EmitState records the gateway state and streams it.
func (s *Server) EmitState(st protocol.StateData) {
	msg, err := protocol.NewStateMessage(st)
	if err != nil {
		s.logger.Warn("failed to build state message", "error", err)
		return
	}

	s.mu.Lock()
	s.state = &st
	s.mu.Unlock()
	s.broadcast(msg)
}

// Snapshot returns the latest recorded telemetry.
func (s *Server) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		State:     s.state,
		Status:    s.status,
		Positions: s.positions,
		Clients:   s.statusHub.ClientCount(),
	}
	if n := len(s.responses); n > 0 {
		last := s.responses[n-1]
		snap.LastResponse = &last
	}
	return snap
}

// Close disconnects websocket clients and stops the HTTP server.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.statusHub.Close()
		err = s.app.Shutdown()
	})
	return err
}
