package hub

import (
	"time"

	"github.com/google/uuid"
)

const (
	// WriteWait is how long a Conn should wait for a write to complete
	WriteWait = 10 * time.Second

	// PongWait is how long a Conn should wait for a pong response
	PongWait = 60 * time.Second

	// pingPeriod must be less than PongWait
	pingPeriod = (PongWait * 9) / 10
)

// Conn is one subscriber's transport.
type Conn interface {
	// Write delivers one message.
	Write(msg Message) error
	// Read blocks until the peer sends something or goes away. The hub
	// discards what is read; a non-nil error means the peer is gone.
	Read() error
	// Ping keeps an idle connection alive.
	Ping() error
	// Close releases the connection. It may be called more than once.
	Close() error
	// RemoteAddr identifies the peer in logs.
	RemoteAddr() string
}

// Client represents a single subscriber connection
type Client struct {
	id   uuid.UUID
	hub  *Hub
	conn Conn
	send chan Message
}

// NewClient creates a new client and registers it with the hub.
// It returns nil if the hub has been closed.
func NewClient(hub *Hub, conn Conn) *Client {
	client := &Client{
		id:   uuid.New(),
		hub:  hub,
		conn: conn,
		send: make(chan Message, hub.sendBuffer),
	}
	select {
	case hub.register <- client:
		return client
	case <-hub.done:
		conn.Close()
		return nil
	}
}

// ID returns the client's unique id.
func (c *Client) ID() uuid.UUID {
	return c.id
}

// Run starts the client's read and write pumps
// This should be called in the connection handler. It returns once both
// pumps have stopped, so the handler may release the connection.
func (c *Client) Run() {
	written := make(chan struct{})
	go func() {
		defer close(written)
		c.writePump()
	}()
	c.readPump() // Blocks until connection closes
	<-written
}

// readPump reads from the connection to detect disconnection.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	for {
		if err := c.conn.Read(); err != nil {
			return
		}
	}
}

// writePump writes messages to the connection
// Only this goroutine writes to the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				return
			}
			if err := c.conn.Write(message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.Ping(); err != nil {
				return
			}
		}
	}
}
