package signaling

import (
	"sync"
	"time"
)

// Role identifies which of the two slots in a room a connection is bound to.
// The creator of a room is always the host (white); the joiner is always
// the guest (black). This asymmetry is a protocol contract, not a random
// assignment.
type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// Color returns the chess color assigned to this role.
func (r Role) Color() string {
	if r == RoleHost {
		return "white"
	}
	return "black"
}

// State is the lifecycle state of a room. Transitions are:
//
//	AwaitingGuest -> AwaitingConnections   (guest seed recorded via join)
//	AwaitingConnections -> PairedRelaying  (both connections bound)
//	PairedRelaying -> Draining             (one connection unbound)
//
// A room whose both slots are unbound is deleted from the registry
// rather than kept in a terminal state.
type State int

const (
	// StateAwaitingGuest means the room was created but no join request
	// has recorded a guest seed yet.
	StateAwaitingGuest State = iota

	// StateAwaitingConnections means both identities are reserved but
	// fewer than two websocket connections are bound.
	StateAwaitingConnections

	// StatePairedRelaying means both slots are bound and messages are
	// being relayed between them.
	StatePairedRelaying

	// StateDraining means one slot unbound after the room was paired;
	// the remaining peer is still connected.
	StateDraining
)

// Room is the pairing context for exactly two participants.
//
// The two connection slots and the guest seed are shared between the
// HTTP handler goroutines (create/join) and the read pumps of the two
// bound connections, so every mutation goes through the room mutex.
type Room struct {
	// ID is the short uppercase room code, unique among live rooms.
	ID string

	// HostSeed is supplied by the creator and never changes.
	HostSeed int64

	// MaxBranches is the per-game branch limit, clamped to [1,5].
	MaxBranches int

	// CreatedAt is used only for expiry.
	CreatedAt time.Time

	mu        sync.Mutex
	state     State
	guestSeed *int64
	host      *Client
	guest     *Client
}

// State returns the room's current lifecycle state.
func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// CombinedSeed returns the XOR of the two participant seeds, or nil if
// no guest has joined yet. Both peers derive the same value locally, so
// XOR's commutativity means no further negotiation is needed.
func (r *Room) CombinedSeed() *int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.combinedSeedLocked()
}

func (r *Room) combinedSeedLocked() *int64 {
	if r.guestSeed == nil {
		return nil
	}
	seed := r.HostSeed ^ *r.guestSeed
	return &seed
}

// setGuestSeed records the joiner's seed. It fails with ErrRoomFull if
// a guest identity was already recorded for this room.
func (r *Room) setGuestSeed(seed int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.guestSeed != nil {
		return 0, ErrRoomFull
	}
	r.guestSeed = &seed
	r.state = StateAwaitingConnections
	return r.HostSeed ^ seed, nil
}

// bind attaches a connection to the first available slot, host before
// guest, and returns the assigned role.
//
// The "connected" confirmation and the host's "peer_joined"
// notification are enqueued while the room lock is still held: the
// relay path routes through peer(), which takes the same lock, so no
// relayed payload can reach the new connection ahead of its
// confirmation.
func (r *Room) bind(c *Client) (Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var role Role

	switch {
	case r.host == nil:
		r.host = c
		role = RoleHost
	case r.guest == nil:
		r.guest = c
		role = RoleGuest
	default:
		return "", ErrRoomFull
	}

	if r.host != nil && r.guest != nil {
		r.state = StatePairedRelaying
	}

	seed := r.combinedSeedLocked()
	c.enqueue(marshalConnected(role, seed))
	if role == RoleGuest {
		r.host.enqueue(marshalPeerJoined(seed))
	}
	return role, nil
}

// unbind frees the slot tagged with role. It returns the peer still
// bound to the other slot (nil if none) and whether the room is now
// empty and must be deleted.
func (r *Room) unbind(role Role) (peer *Client, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if role == RoleHost {
		r.host = nil
		peer = r.guest
	} else {
		r.guest = nil
		peer = r.host
	}

	if peer == nil {
		return nil, true
	}
	r.state = StateDraining
	return peer, false
}

// peer returns the connection bound to the other slot, routing by role
// tag rather than by comparing connection handles. Returns nil when the
// other slot is unbound.
func (r *Room) peer(role Role) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	if role == RoleHost {
		return r.guest
	}
	return r.host
}
