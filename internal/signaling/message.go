package signaling

import "encoding/json"

// Close codes sent when a websocket connection is rejected at connect
// time. Anything in the 4000 range is reserved for application use.
const (
	CloseRoomFull     = 4001
	CloseRoomNotFound = 4004
)

// connectedMessage confirms a binding to the connection itself. The
// combined seed is null until the guest identity has been reserved,
// which is always the case when the host binds first.
type connectedMessage struct {
	Type         string `json:"type"`
	Role         Role   `json:"role"`
	CombinedSeed *int64 `json:"combinedSeed"`
}

// peerJoinedMessage tells the host that the guest slot was bound. By
// then a join request has completed, so the combined seed is defined.
type peerJoinedMessage struct {
	Type         string `json:"type"`
	CombinedSeed *int64 `json:"combinedSeed"`
}

type peerDisconnectedMessage struct {
	Type string `json:"type"`
}

func marshalConnected(role Role, seed *int64) []byte {
	data, _ := json.Marshal(connectedMessage{Type: "connected", Role: role, CombinedSeed: seed})
	return data
}

func marshalPeerJoined(seed *int64) []byte {
	data, _ := json.Marshal(peerJoinedMessage{Type: "peer_joined", CombinedSeed: seed})
	return data
}

func marshalPeerDisconnected() []byte {
	data, _ := json.Marshal(peerDisconnectedMessage{Type: "peer_disconnected"})
	return data
}
