package telemetry

import (
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/teslashibe/go-armgate/pkg/hub"
)

const (
	// maxMessageSize bounds what a diagnostic client may send us.
	maxMessageSize = 4 * 1024

	// closeWait bounds the close handshake; Close may run while the
	// write pump is stuck on a slow client.
	closeWait = 100 * time.Millisecond
)

// wsConn adapts a websocket connection to hub.Conn.
type wsConn struct {
	conn *websocket.Conn
	once sync.Once
}

func newWSConn(conn *websocket.Conn) *wsConn {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(hub.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(hub.PongWait))
		return nil
	})
	return &wsConn{conn: conn}
}

func (c *wsConn) Write(msg hub.Message) error {
	c.conn.SetWriteDeadline(time.Now().Add(hub.WriteWait))
	wsType := websocket.TextMessage
	if msg.Type == hub.BinaryMessage {
		wsType = websocket.BinaryMessage
	}
	return c.conn.WriteMessage(wsType, msg.Data)
}

// Read discards client messages; it exists to notice disconnects and
// process pongs.
func (c *wsConn) Read() error {
	_, _, err := c.conn.ReadMessage()
	return err
}

func (c *wsConn) Ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(hub.WriteWait))
}

func (c *wsConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		// WriteControl is safe alongside a blocked WriteMessage.
		c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(closeWait))
		err = c.conn.Close()
	})
	return err
}
