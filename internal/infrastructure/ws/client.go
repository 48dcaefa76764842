package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 8192
)

// Client is one live connection. It starts unbound; the core loop fills in
// RoomID and Username on a successful join and is the only goroutine that
// touches them afterwards.
type Client struct {
	conn    *connWrapper
	Message chan *Event

	ID       string
	RoomID   string
	Username string

	// Protection against double-close and race conditions
	closeOnce sync.Once
	closed    chan struct{} // signals when client is closed
}

func NewClient(conn *websocket.Conn, id string) *Client {
	return &Client{
		conn:    newConnWrapper(conn),
		Message: make(chan *Event, 64),
		ID:      id,
		closed:  make(chan struct{}),
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *Client) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// send queues an event for delivery, dropping it if the client's buffer is
// full or the client is gone. Slow consumers never block the core loop.
func (c *Client) send(ev *Event) {
	select {
	case <-c.closed:
	case c.Message <- ev:
	default:
		log.Printf("client %s buffer full, dropping %s event", c.ID, ev.Type)
	}
}

// ReadPump decodes inbound envelopes and feeds them to the core until the
// connection dies, then unregisters itself (the implicit leave).
func (c *Client) ReadPump(core *Core) {
	defer func() {
		core.Unregister(c)
		c.Close()
	}()

	c.conn.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.conn.SetReadDeadline(time.Now().Add(pongWait))

	c.conn.conn.SetPongHandler(func(string) error {
		_ = c.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.closed:
			return
		default:
		}

		_, raw, err := c.conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws read error (client %s): %v", c.ID, err)
			}
			return
		}

		if len(raw) == 0 {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.send(NewError("", "malformed message"))
			continue
		}

		if !core.Submit(c, env) {
			return
		}
	}
}

// WritePump drains the outbound buffer onto the wire and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	defer c.Close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-c.Message:
			if !ok {
				return
			}

			_ = c.conn.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				log.Printf("ws write error (client %s): %v", c.ID, err)
				return
			}

		case <-ticker.C:
			_ = c.conn.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("ping error (client %s): %v", c.ID, err)
				return
			}

		case <-c.closed:
			return
		}
	}
}
