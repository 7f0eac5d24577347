package signaling

import (
	"errors"
	"testing"
	"time"
)

func TestCreateRoomGeneratesUniqueUppercaseIDs(t *testing.T) {
	reg := NewRegistry(0)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		room := reg.CreateRoom(int64(i), 2)

		if len(room.ID) != roomIDLength {
			t.Fatalf("Expected %d-character room ID, got %q", roomIDLength, room.ID)
		}
		if seen[room.ID] {
			t.Fatalf("Duplicate room ID generated: %s", room.ID)
		}
		seen[room.ID] = true
	}

	if reg.Count() != 50 {
		t.Errorf("Expected 50 live rooms, got %d", reg.Count())
	}
}

func TestCreateThenJoin(t *testing.T) {
	reg := NewRegistry(0)
	room := reg.CreateRoom(42, 2)

	if room.State() != StateAwaitingGuest {
		t.Errorf("New room should be awaiting a guest, got state %d", room.State())
	}
	if room.CombinedSeed() != nil {
		t.Error("Combined seed should be undefined before a guest joins")
	}

	joined, combined, err := reg.Join(room.ID, 17)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if joined.ID != room.ID {
		t.Errorf("Join returned wrong room: %s", joined.ID)
	}
	if combined != 42^17 {
		t.Errorf("Expected combined seed %d, got %d", 42^17, combined)
	}
	if room.State() != StateAwaitingConnections {
		t.Errorf("Joined room should be awaiting connections, got state %d", room.State())
	}

	// Second join must be rejected; the guest identity is taken.
	if _, _, err := reg.Join(room.ID, 99); !errors.Is(err, ErrRoomFull) {
		t.Errorf("Expected ErrRoomFull on second join, got %v", err)
	}
}

func TestJoinIsCaseInsensitive(t *testing.T) {
	reg := NewRegistry(0)
	room := reg.CreateRoom(1, 2)

	lower := ""
	for _, c := range room.ID {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		lower += string(c)
	}

	if _, _, err := reg.Join(lower, 2); err != nil {
		t.Fatalf("Lower-case join failed: %v", err)
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	reg := NewRegistry(0)

	if _, _, err := reg.Join("NOSUCH", 5); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}
}

func TestMaxBranchesClamped(t *testing.T) {
	tests := []struct {
		requested int
		want      int
	}{
		{0, 1},
		{7, 5},
		{-3, 1},
		{1, 1},
		{3, 3},
		{5, 5},
	}

	reg := NewRegistry(0)
	for _, tt := range tests {
		room := reg.CreateRoom(0, tt.requested)
		if room.MaxBranches != tt.want {
			t.Errorf("maxBranches %d: expected clamp to %d, got %d", tt.requested, tt.want, room.MaxBranches)
		}
	}
}

func TestCombinedSeedCommutative(t *testing.T) {
	pairs := [][2]int64{
		{42, 17},
		{0, 0},
		{-5, 123456789},
		{1 << 40, 3},
	}

	for _, p := range pairs {
		reg := NewRegistry(0)

		ab := reg.CreateRoom(p[0], 2)
		_, combinedAB, err := reg.Join(ab.ID, p[1])
		if err != nil {
			t.Fatalf("Join failed: %v", err)
		}

		ba := reg.CreateRoom(p[1], 2)
		_, combinedBA, err := reg.Join(ba.ID, p[0])
		if err != nil {
			t.Fatalf("Join failed: %v", err)
		}

		if combinedAB != combinedBA {
			t.Errorf("Combined seed not commutative for (%d,%d): %d != %d", p[0], p[1], combinedAB, combinedBA)
		}
		if combinedAB != p[0]^p[1] {
			t.Errorf("Expected %d, got %d", p[0]^p[1], combinedAB)
		}
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	reg := NewRegistry(0)
	room := reg.CreateRoom(1, 2)

	reg.Delete(room.ID)
	reg.Delete(room.ID) // no-op

	if _, err := reg.Lookup(room.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("Expected ErrRoomNotFound after delete, got %v", err)
	}
}

func TestJoinDeletedRoomFails(t *testing.T) {
	reg := NewRegistry(0)
	room := reg.CreateRoom(1, 2)
	reg.Delete(room.ID)

	// Membership is re-checked under the registry lock, so the guest
	// identity can never be recorded on an unregistered room.
	if _, _, err := reg.Join(room.ID, 2); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("Expected ErrRoomNotFound joining a deleted room, got %v", err)
	}
	if room.CombinedSeed() != nil {
		t.Error("Deleted room must not have recorded a guest seed")
	}
}

func TestSweepRemovesExpiredRooms(t *testing.T) {
	reg := NewRegistry(time.Hour)

	stale := reg.CreateRoom(1, 2)
	stale.CreatedAt = time.Now().Add(-2 * time.Hour)

	fresh := reg.CreateRoom(2, 2)

	if removed := reg.Sweep(); removed != 1 {
		t.Fatalf("Expected 1 room swept, got %d", removed)
	}

	if _, err := reg.Lookup(stale.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Error("Stale room should be gone after sweep")
	}
	if _, err := reg.Lookup(fresh.ID); err != nil {
		t.Errorf("Fresh room should survive the sweep: %v", err)
	}
	if _, _, err := reg.Join(stale.ID, 3); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("Join on a swept room should fail with ErrRoomNotFound, got %v", err)
	}
}

func TestCreateRoomSweepsOpportunistically(t *testing.T) {
	reg := NewRegistry(time.Hour)

	stale := reg.CreateRoom(1, 2)
	stale.CreatedAt = time.Now().Add(-61 * time.Minute)

	// A never-fully-bound room past its TTL disappears on the next create.
	reg.CreateRoom(2, 2)

	if _, err := reg.Lookup(stale.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Error("Expired room should have been swept by CreateRoom")
	}
	if reg.Count() != 1 {
		t.Errorf("Expected 1 live room, got %d", reg.Count())
	}
}
