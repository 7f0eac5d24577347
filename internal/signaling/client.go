package signaling

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024 // 64 KB - enough for WebRTC SDP messages
)

// Client is a wrapper for a single websocket connection bound to a
// room slot.
type Client struct {
	registry *Registry

	conn *websocket.Conn

	room *Room

	// role tags which slot this connection is bound to; relay routing
	// goes by this tag, never by comparing connection handles.
	role Role

	// send is a buffered channel for all outbound messages. The write
	// pump is the only goroutine writing to the websocket.
	send chan []byte

	// closed guards send against enqueues racing the teardown. A send
	// attempted against a closing connection is dropped, matching the
	// best-effort relay contract.
	mu     sync.Mutex
	closed bool
}

func newClient(registry *Registry, conn *websocket.Conn) *Client {
	return &Client{
		registry: registry,
		conn:     conn,
		send:     make(chan []byte, 256),
	}
}

// enqueue hands a message to the write pump without blocking. It
// reports false when the message was dropped because the connection is
// closing or its outbound buffer is full.
func (c *Client) enqueue(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// shutdown closes the send channel exactly once, which stops the write
// pump. Safe to call concurrently with enqueue.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump pumps messages from the websocket connection to the peer
// slot of the same room.
//
// There is at most one reader on a connection; all reads happen on
// this goroutine. Its deferred teardown is the single place a bound
// connection unbinds, so the disconnect path runs exactly once however
// the connection dies.
func (c *Client) readPump() {
	defer func() {
		c.teardown()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("error: %v", err)
			}
			break
		}

		// Relay verbatim. The payload is opaque signaling data (SDP,
		// ICE candidates); the server never interprets it. No peer
		// bound means silent drop - the sender is not informed.
		if peer := c.room.peer(c.role); peer != nil {
			peer.enqueue(payload)
		}
	}
}

// writePump pumps messages from the send channel to the websocket
// connection.
//
// A goroutine running writePump is started for each connection. All
// writes to the websocket happen on this goroutine.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The session was torn down.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("error writing message: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
