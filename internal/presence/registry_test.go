package presence

import (
	"sync"
	"testing"
)

func containsID(ids []int64, want int64) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}

func TestRegistry_UserOnlineWhileAnyConnectionOpen(t *testing.T) {
	r := NewRegistry()

	r.AddConnection(1, "conn-a")
	r.AddConnection(1, "conn-b")
	r.AddConnection(2, "conn-c")

	if ids := r.OnlineUserIDs(); !containsID(ids, 1) || !containsID(ids, 2) {
		t.Fatalf("expected users 1 and 2 online, got %v", ids)
	}

	r.RemoveConnection(1, "conn-a")
	if ids := r.OnlineUserIDs(); !containsID(ids, 1) {
		t.Fatalf("user 1 still has conn-b open, got %v", ids)
	}

	r.RemoveConnection(1, "conn-b")
	if ids := r.OnlineUserIDs(); containsID(ids, 1) {
		t.Fatalf("user 1 has no connections, got %v", ids)
	}
	if ids := r.OnlineUserIDs(); !containsID(ids, 2) {
		t.Fatalf("user 2 should be unaffected, got %v", ids)
	}
}

func TestRegistry_EntryDeletedWhenEmpty(t *testing.T) {
	r := NewRegistry()
	r.AddConnection(5, "x")
	r.RemoveConnection(5, "x")

	// The map entry itself must be gone, not left as an empty set.
	if len(r.online) != 0 {
		t.Fatalf("expected empty registry map, got %d entries", len(r.online))
	}
}

func TestRegistry_AddIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.AddConnection(3, "same")
	r.AddConnection(3, "same")

	if got := r.ConnectionCount(3); got != 1 {
		t.Fatalf("expected 1 connection, got %d", got)
	}
	r.RemoveConnection(3, "same")
	if ids := r.OnlineUserIDs(); containsID(ids, 3) {
		t.Fatalf("expected user 3 offline after single remove")
	}
}

func TestRegistry_IgnoresInvalidInput(t *testing.T) {
	r := NewRegistry()
	r.AddConnection(0, "a")
	r.AddConnection(-1, "b")
	r.AddConnection(4, "")
	if len(r.OnlineUserIDs()) != 0 {
		t.Fatalf("invalid adds must be no-ops")
	}

	// Removing something never added must not panic.
	r.RemoveConnection(9, "ghost")
}

func TestRegistry_ConcurrentChurn(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			connID := string(rune('a' + n))
			for j := 0; j < 200; j++ {
				r.AddConnection(int64(n%4+1), connID)
				r.OnlineUserIDs()
				r.RemoveConnection(int64(n%4+1), connID)
			}
		}(i)
	}
	wg.Wait()

	if ids := r.OnlineUserIDs(); len(ids) != 0 {
		t.Fatalf("expected all users offline after churn, got %v", ids)
	}
}
