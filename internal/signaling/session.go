package signaling

import (
	"errors"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// Attach binds an upgraded websocket connection to a slot in the room
// identified by roomID and starts its relay pumps.
//
// A connection against an unknown room is closed with CloseRoomNotFound;
// one against a fully bound room with CloseRoomFull. Otherwise the slot
// assignment is first-available-wins: host, then guest.
//
// The "connected" confirmation to the new connection, and the
// "peer_joined" notification to the host when the guest binds, are
// enqueued by the binding itself, under the room lock, so neither side
// ever sees a relayed message ahead of them.
func Attach(registry *Registry, conn *websocket.Conn, roomID string) {
	client := newClient(registry, conn)

	room, role, err := registry.bindClient(roomID, client)
	switch {
	case errors.Is(err, ErrRoomNotFound):
		reject(conn, CloseRoomNotFound, "room not found")
		return
	case errors.Is(err, ErrRoomFull):
		reject(conn, CloseRoomFull, "room is full")
		return
	}
	client.room = room
	client.role = role

	log.Printf("Peer connected: room=%s role=%s addr=%s", room.ID, role, conn.RemoteAddr())

	go client.writePump()
	go client.readPump()
}

// teardown runs once per bound connection, from the read pump's
// deferred cleanup. It frees the slot, notifies the remaining peer
// best-effort, and deletes the room once both slots are unbound.
func (c *Client) teardown() {
	peer, empty := c.room.unbind(c.role)

	log.Printf("Peer disconnected: room=%s role=%s", c.room.ID, c.role)

	if peer != nil {
		// Best-effort: the other side may already be gone, and a
		// dropped notification is an expected race, not an error.
		peer.enqueue(marshalPeerDisconnected())
	}

	if empty {
		c.registry.Delete(c.room.ID)
	}

	c.shutdown()
}

// reject closes a connection that never got past slot assignment,
// carrying a distinct close code so the client can tell "no such room"
// from "room already full".
func reject(conn *websocket.Conn, code int, reason string) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	conn.Close()
}
