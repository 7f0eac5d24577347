package signaling

import (
	"crypto/rand"
	"errors"
	"log"
	"math/big"
	"strings"
	"sync"
	"time"
)

var (
	// ErrRoomNotFound is returned when no live room matches the given id.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomFull is returned when both identity or connection slots of
	// a room are already taken.
	ErrRoomFull = errors.New("room is full")
)

const (
	// DefaultRoomTTL is how long an abandoned room survives before the
	// sweep removes it, regardless of fill state.
	DefaultRoomTTL = time.Hour

	minBranches = 1
	maxBranches = 5

	roomIDLength = 6
)

// Room codes avoid 0/O/1/I so they survive being read aloud.
const roomIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Registry is the single source of truth for all live rooms. It is
// constructed at process start and holds no persistent state; a restart
// forgets every room.
//
// The registry map has its own lock; per-room mutation is serialized by
// each Room's mutex. Rooms are independent, so no cross-room locking
// exists anywhere.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	ttl   time.Duration
}

// NewRegistry creates an empty registry. A non-positive ttl falls back
// to DefaultRoomTTL.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultRoomTTL
	}
	return &Registry{
		rooms: make(map[string]*Room),
		ttl:   ttl,
	}
}

// CreateRoom reserves a new room with the host identity and returns it.
// The branch limit is clamped into [1,5]. Expired rooms are swept
// opportunistically before allocating, bounding memory growth from
// abandoned rooms.
func (g *Registry) CreateRoom(hostSeed int64, branches int) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.sweepLocked(time.Now())

	room := &Room{
		ID:          g.generateRoomIDLocked(),
		HostSeed:    hostSeed,
		MaxBranches: clampBranches(branches),
		CreatedAt:   time.Now(),
		state:       StateAwaitingGuest,
	}
	g.rooms[room.ID] = room

	log.Printf("Room created: %s (branches=%d)", room.ID, room.MaxBranches)
	return room
}

// Join records the guest identity for a room. The id match is
// case-insensitive. It fails with ErrRoomNotFound if no live room
// matches and ErrRoomFull if a guest seed was already recorded. Join
// only reserves the identity; it does not require a websocket
// connection on either side.
//
// The seed is recorded while the registry lock is held, so a room
// cannot be swept or deleted between the membership check and the
// mutation.
func (g *Registry) Join(id string, guestSeed int64) (*Room, int64, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	room, ok := g.rooms[strings.ToUpper(id)]
	if !ok {
		return nil, 0, ErrRoomNotFound
	}

	combined, err := room.setGuestSeed(guestSeed)
	if err != nil {
		return nil, 0, err
	}

	log.Printf("Room joined: %s", room.ID)
	return room, combined, nil
}

// bindClient binds a connection to a slot of the identified room. Like
// Join, it mutates under the registry lock so the room is still
// registered at the moment the slot is taken. Lock order is always
// registry, then room, then client.
func (g *Registry) bindClient(id string, c *Client) (*Room, Role, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	room, ok := g.rooms[strings.ToUpper(id)]
	if !ok {
		return nil, "", ErrRoomNotFound
	}

	role, err := room.bind(c)
	if err != nil {
		return nil, "", err
	}
	return room, role, nil
}

// Lookup finds a live room by id, case-insensitively.
func (g *Registry) Lookup(id string) (*Room, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	room, ok := g.rooms[strings.ToUpper(id)]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Delete removes a room from the registry. It is a no-op if the room
// is already gone.
func (g *Registry) Delete(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id = strings.ToUpper(id)
	if _, ok := g.rooms[id]; ok {
		delete(g.rooms, id)
		log.Printf("Room deleted: %s", id)
	}
}

// Sweep removes every room older than the registry TTL, regardless of
// fill state, and returns how many were removed. This is a coarse
// safety net; connection-based deletion handles the normal case.
func (g *Registry) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sweepLocked(time.Now())
}

func (g *Registry) sweepLocked(now time.Time) int {
	cutoff := now.Add(-g.ttl)
	removed := 0
	for id, room := range g.rooms {
		if room.CreatedAt.Before(cutoff) {
			delete(g.rooms, id)
			removed++
		}
	}
	return removed
}

// Count returns the number of live rooms.
func (g *Registry) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// generateRoomIDLocked creates a short room code not currently in use.
// Collisions just retry; with a 32^6 space and hour-bounded room count
// the loop terminates almost immediately.
func (g *Registry) generateRoomIDLocked() string {
	for {
		code := make([]byte, roomIDLength)
		for i := range code {
			code[i] = roomIDAlphabet[randomIndex(len(roomIDAlphabet))]
		}
		id := string(code)
		if _, ok := g.rooms[id]; !ok {
			return id
		}
	}
}

// randomIndex returns a cryptographically secure random index for a
// slice of the given length.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		log.Panic("Failed to generate random index:", err)
	}
	return int(n.Int64())
}

func clampBranches(n int) int {
	if n < minBranches {
		return minBranches
	}
	if n > maxBranches {
		return maxBranches
	}
	return n
}
