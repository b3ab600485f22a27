package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	sendBufferSize = 64
	writeWait      = 10 * time.Second
)

// Client owns the write side of one websocket connection.
// Only writePump writes to conn.
type Client struct {
	socketId string
	conn     *websocket.Conn
	send     chan []byte
	once     sync.Once
	closed   chan struct{}
}

func NewClient(socketId string, conn *websocket.Conn) *Client {
	return &Client{
		socketId: socketId,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		closed:   make(chan struct{}),
	}
}

// Enqueue queues payload without blocking; it reports false when the
// buffer is full or the client is closed.
func (c *Client) Enqueue(payload []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.send <- payload:
		return true
	default:
		log.Warnf("dropping message to socket %s: send buffer full", c.socketId)
		return false
	}
}

func (c *Client) Close() {
	c.once.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}

// WritePump drains the send buffer until the client is closed.
func (c *Client) WritePump() {
	defer c.Close()
	for {
		select {
		case <-c.closed:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Errorf("write to socket %s failed: %v", c.socketId, err)
				return
			}
		}
	}
}
