package calls

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu    sync.Mutex
	calls map[string]VideoCall
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{calls: make(map[string]VideoCall)}
}

func (r *MemoryRepo) Insert(_ context.Context, call VideoCall) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[call.ID] = call
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, callID string) (VideoCall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[callID]
	if !ok {
		return VideoCall{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) UpdateStatus(_ context.Context, callID string, status CallStatus, startedAt, endedAt *time.Time) (VideoCall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[callID]
	if !ok {
		return VideoCall{}, ErrNotFound
	}
	c.Status = status
	if startedAt != nil {
		c.StartedAt = startedAt
	}
	if endedAt != nil {
		c.EndedAt = endedAt
	}
	r.calls[callID] = c
	return c, nil
}
