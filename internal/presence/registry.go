// Package presence tracks which users currently hold at least one live
// gateway connection. State is process-local and in-memory only; the fan-out
// backplane replicates broadcasts, not presence, so a multi-process fleet
// reports per-process truth.
package presence

import "sync"

// Registry maps internal user ids to their live connection ids.
//
// Invariant: a user id has an entry iff it has >= 1 live connection. The
// entry is removed the moment its connection set empties, so OnlineUserIDs
// scales with users online, not users ever seen.
type Registry struct {
	mu     sync.Mutex
	online map[int64]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{online: make(map[int64]map[string]struct{})}
}

// AddConnection records a connection for a user. Idempotent; a no-op for
// non-positive user ids (unauthenticated sockets never reach the registry,
// this is belt-and-braces against caller bugs).
func (r *Registry) AddConnection(userID int64, connID string) {
	if userID <= 0 || connID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.online[userID]
	if !ok {
		set = make(map[string]struct{}, 1)
		r.online[userID] = set
	}
	set[connID] = struct{}{}
}

// RemoveConnection drops a connection for a user, deleting the user's entry
// entirely once its set is empty.
func (r *Registry) RemoveConnection(userID int64, connID string) {
	if userID <= 0 || connID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.online[userID]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.online, userID)
	}
}

// OnlineUserIDs returns a snapshot of all user ids with at least one live
// connection. Order is unspecified.
func (r *Registry) OnlineUserIDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]int64, 0, len(r.online))
	for id := range r.online {
		ids = append(ids, id)
	}
	return ids
}

// ConnectionCount reports how many live connections a user has. Used by the
// gateway for logging and by tests.
func (r *Registry) ConnectionCount(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.online[userID])
}
