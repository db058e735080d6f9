package notifications

import (
	"context"
	"sync"
	"time"
)

// InsertedRow pairs a persisted notification with its addressing, which the
// hydrated payload itself does not carry.
type InsertedRow struct {
	RecipientUserID int64
	ActorUserID     int64
	Notification    Notification
}

// MemoryRepo is an in-memory Repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu      sync.Mutex
	nextID  int64
	authors map[int64]int64 // threadID -> author user id
	rows    []InsertedRow
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{nextID: 1, authors: make(map[int64]int64)}
}

// PutThread seeds a thread's author for ThreadAuthor lookups.
func (r *MemoryRepo) PutThread(threadID, authorUserID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authors[threadID] = authorUserID
}

func (r *MemoryRepo) ThreadAuthor(_ context.Context, threadID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	author, ok := r.authors[threadID]
	if !ok {
		return 0, ErrThreadNotFound
	}
	return author, nil
}

func (r *MemoryRepo) Insert(_ context.Context, recipientUserID, actorUserID, threadID int64, t Type) (Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := Notification{
		ID:        r.nextID,
		Type:      t,
		ThreadID:  threadID,
		CreatedAt: time.Now().UTC(),
	}
	r.nextID++
	r.rows = append(r.rows, InsertedRow{
		RecipientUserID: recipientUserID,
		ActorUserID:     actorUserID,
		Notification:    n,
	})
	return n, nil
}

// Rows returns a copy of everything persisted, for test assertions.
func (r *MemoryRepo) Rows() []InsertedRow {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]InsertedRow, len(r.rows))
	copy(out, r.rows)
	return out
}
