package calls

import (
	"fmt"
	"time"
)

// VideoCall is one call attempt between exactly two users. Rows are an
// audit trail: they are mutated on lifecycle transitions but never deleted.
//
// Caller/recipient display names are cached at creation so lifecycle events
// can be emitted without a user lookup.
type VideoCall struct {
	ID          string `json:"callId" db:"id"`
	CallerID    int64  `json:"callerId" db:"caller_id"`
	RecipientID int64  `json:"recipientId" db:"recipient_id"`

	CallerName    string `json:"callerName" db:"caller_name"`
	RecipientName string `json:"recipientName" db:"recipient_name"`

	Status CallStatus `json:"status" db:"status"`

	StartedAt *time.Time `json:"startedAt,omitempty" db:"started_at"`
	EndedAt   *time.Time `json:"endedAt,omitempty" db:"ended_at"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
}

// IsParticipant reports whether userID is one of the two parties.
func (c VideoCall) IsParticipant(userID int64) bool {
	return userID == c.CallerID || userID == c.RecipientID
}

type CallStatus string

const (
	// CallStatusCalling is the persisted state from initiation until the
	// recipient acts. Delivery to the recipient implies "ringing" on the
	// wire but is not separately persisted.
	CallStatusCalling   CallStatus = "calling"
	CallStatusRinging   CallStatus = "ringing"
	CallStatusConnected CallStatus = "connected"
	CallStatusRejected  CallStatus = "rejected"
	CallStatusEnded     CallStatus = "ended"
)

// Terminal reports whether the status can never be left again.
func (s CallStatus) Terminal() bool {
	return s == CallStatusRejected || s == CallStatusEnded
}

// NewCallID derives a call id from creation time plus both party ids.
// Unique per call attempt at this system's scale; collisions would require
// the same pair initiating twice within the same millisecond.
func NewCallID(now time.Time, callerID, recipientID int64) string {
	return fmt.Sprintf("call_%d_%d_%d", now.UnixMilli(), callerID, recipientID)
}
