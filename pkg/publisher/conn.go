package publisher

import (
	"net"
	"sync"
	"time"

	"github.com/teslashibe/go-armgate/pkg/hub"
)

// tcpConn adapts a subscriber socket to hub.Conn. Subscribers only listen;
// anything they send is read and discarded.
type tcpConn struct {
	conn net.Conn
	buf  []byte
	once sync.Once
}

func newTCPConn(conn net.Conn) *tcpConn {
	return &tcpConn{conn: conn, buf: make([]byte, 512)}
}

func (c *tcpConn) Write(msg hub.Message) error {
	c.conn.SetWriteDeadline(time.Now().Add(hub.WriteWait))
	_, err := c.conn.Write(msg.Data)
	return err
}

func (c *tcpConn) Read() error {
	_, err := c.conn.Read(c.buf)
	return err
}

// Ping is a no-op: a dead TCP subscriber shows up as a failed write.
func (c *tcpConn) Ping() error { return nil }

func (c *tcpConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

func (c *tcpConn) Close() error {
	var err error
	c.once.Do(func() { err = c.conn.Close() })
	return err
}
