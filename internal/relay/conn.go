package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	readLimit = 64 << 10

	// outboundBuffer caps the per-connection send queue. Pushes are
	// best-effort: once the queue is full, frames for that consumer are
	// dropped rather than blocking the relay loop.
	outboundBuffer = 256
)

// sender is the outbound half of a connection as seen by the relay loop.
type sender interface {
	send(frame []byte) bool
	ping()
	terminate()
}

// wsConn serializes all writes to one websocket through a single writer
// goroutine fed by a buffered channel.
type wsConn struct {
	raw   *websocket.Conn
	out   chan []byte
	pings chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newWsConn(raw *websocket.Conn) *wsConn {
	c := &wsConn{
		raw:   raw,
		out:   make(chan []byte, outboundBuffer),
		pings: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

func (c *wsConn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.out:
			_ = c.raw.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.raw.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.terminate()
				return
			}
		case <-c.pings:
			_ = c.raw.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.raw.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.terminate()
				return
			}
		}
	}
}

func (c *wsConn) send(frame []byte) bool {
	select {
	case c.out <- frame:
		return true
	default:
		return false // slow consumer
	}
}

func (c *wsConn) ping() {
	select {
	case c.pings <- struct{}{}:
	default:
	}
}

// terminate force-closes the socket. The blocked reader then unwinds into
// the ordinary teardown path.
func (c *wsConn) terminate() {
	c.once.Do(func() {
		close(c.done)
		_ = c.raw.Close()
	})
}
