package chat

import "time"

// UserRef is the display info of one party of a conversation, denormalized
// onto every hydrated message so clients never need a second lookup.
type UserRef struct {
	DisplayName string `json:"displayName"`
	Handle      string `json:"handle"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// DirectMessage is a persisted one-to-one message, hydrated with both
// parties' display info. Immutable once created; there is no edit or delete.
//
// Invariant: Body and ImageURL are never both empty, a message must carry
// content. Enforced by Service.CreateDirectMessage.
type DirectMessage struct {
	ID              int64     `json:"id"`
	SenderUserID    int64     `json:"senderUserId"`
	RecipientUserID int64     `json:"recipientUserId"`
	Body            string    `json:"body"`
	ImageURL        string    `json:"imageUrl,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`

	Sender    UserRef `json:"sender"`
	Recipient UserRef `json:"recipient"`
}

// ChatUser is one row of the chat-partner picker.
type ChatUser struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"displayName"`
	Handle      string `json:"handle"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}
