package notifications

import "time"

type Type string

const (
	TypeReplyOnThread Type = "REPLY_ON_THREAD"
	TypeLikeOnThread  Type = "LIKE_ON_THREAD"
)

// Notification is one hydrated notification row as delivered to the
// recipient's notification room. Read-state bookkeeping lives in the HTTP
// layer and is out of scope here; ReadAt is carried for the payload only.
type Notification struct {
	ID          int64      `json:"id"`
	Type        Type       `json:"type"`
	ThreadID    int64      `json:"threadId"`
	ThreadTitle string     `json:"threadTitle"`
	ActorName   string     `json:"actorName"`
	ActorHandle string     `json:"actorHandle"`
	CreatedAt   time.Time  `json:"createdAt"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
}
