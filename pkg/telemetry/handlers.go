package telemetry

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/teslashibe/go-armgate/pkg/hub"
	"github.com/teslashibe/go-armgate/pkg/protocol"
)

// handleStatus returns the latest telemetry snapshot
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Snapshot())
}

// handleStats returns the gateway counters
func (s *Server) handleStats(c *fiber.Ctx) error {
	if s.statsFunc == nil {
		return c.JSON(fiber.Map{})
	}
	return c.JSON(s.statsFunc())
}

// handleResponses returns recent command responses, oldest first
func (s *Server) handleResponses(c *fiber.Ctx) error {
	s.mu.RLock()
	out := make([]protocol.ResponseData, len(s.responses))
	copy(out, s.responses)
	s.mu.RUnlock()
	return c.JSON(out)
}

// handleStatusWS streams telemetry messages to one client
func (s *Server) handleStatusWS(c *websocket.Conn) {
	select {
	case <-s.done:
		return
	default:
	}

	// Greet with the current state before the write pump takes over.
	s.mu.RLock()
	state := s.state
	s.mu.RUnlock()
	if state != nil {
		if msg, err := protocol.NewStateMessage(*state); err == nil {
			if data, err := msg.Bytes(); err == nil {
				c.WriteMessage(websocket.TextMessage, data)
			}
		}
	}

	client := hub.NewClient(s.statusHub, newWSConn(c))
	if client == nil {
		return
	}
	client.Run() // Blocks until the client goes away
}
