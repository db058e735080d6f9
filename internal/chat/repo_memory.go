package chat

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu       sync.Mutex
	nextID   int64
	messages []DirectMessage
	users    map[int64]ChatUser
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{nextID: 1, users: make(map[int64]ChatUser)}
}

// PutUser seeds display info used to hydrate messages.
func (r *MemoryRepo) PutUser(u ChatUser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

func (r *MemoryRepo) userRef(id int64) UserRef {
	u := r.users[id]
	return UserRef{DisplayName: u.DisplayName, Handle: u.Handle, AvatarURL: u.AvatarURL}
}

func (r *MemoryRepo) InsertDirectMessage(_ context.Context, senderUserID, recipientUserID int64, body, imageURL string) (DirectMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := DirectMessage{
		ID:              r.nextID,
		SenderUserID:    senderUserID,
		RecipientUserID: recipientUserID,
		Body:            body,
		ImageURL:        imageURL,
		CreatedAt:       time.Now().UTC(),
		Sender:          r.userRef(senderUserID),
		Recipient:       r.userRef(recipientUserID),
	}
	r.nextID++
	r.messages = append(r.messages, m)
	return m, nil
}

func (r *MemoryRepo) ListConversation(_ context.Context, userID, otherUserID int64, limit int) ([]DirectMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []DirectMessage
	for _, m := range r.messages {
		if (m.SenderUserID == userID && m.RecipientUserID == otherUserID) ||
			(m.SenderUserID == otherUserID && m.RecipientUserID == userID) {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *MemoryRepo) ListChatUsers(_ context.Context, currentUserID int64) ([]ChatUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []ChatUser
	for id, u := range r.users {
		if id != currentUserID {
			out = append(out, u)
		}
	}
	return out, nil
}

// Messages returns a copy of everything persisted, for test assertions.
func (r *MemoryRepo) Messages() []DirectMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DirectMessage, len(r.messages))
	copy(out, r.messages)
	return out
}
