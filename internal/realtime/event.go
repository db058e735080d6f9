package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Event names on the realtime surface. Inbound events are dispatched through
// the per-connection handler table; outbound events are emitted to rooms.
const (
	// inbound
	EventDMSend       = "dm:send"
	EventDMTyping     = "dm:typing"
	EventCallInitiate = "video:call:initiate"
	EventCallAccept   = "video:call:accept"
	EventCallReject   = "video:call:reject"
	EventCallEnd      = "video:call:end"
	EventSignalOffer  = "video:signal:offer"
	EventSignalAnswer = "video:signal:answer"
	EventSignalICE    = "video:signal:ice-candidate"

	// outbound
	EventDMMessage       = "dm:message"
	EventPresenceUpdate  = "presence:update"
	EventCallIncoming    = "video:call:incoming"
	EventCallAccepted    = "video:call:accepted"
	EventCallRejected    = "video:call:rejected"
	EventCallEnded       = "video:call:ended"
	EventNotificationNew = "notification:new"
)

// Envelope is the wire shape of every realtime message, in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// UserID unmarshals from either a JSON number or a numeric string, because
// clients are loose about how they send ids. Anything else fails decoding
// and the event is dropped at the boundary.
type UserID int64

func (u *UserID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		*u = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("user id %q is not numeric", s)
	}
	*u = UserID(n)
	return nil
}

var errInvalidPayload = errors.New("realtime: invalid event payload")

/* ===================== INBOUND PAYLOADS ===================== */

type dmSendPayload struct {
	RecipientUserID UserID `json:"recipientUserId"`
	Body            string `json:"body"`
	ImageURL        string `json:"imageUrl"`
}

type dmTypingPayload struct {
	RecipientUserID UserID `json:"recipientUserId"`
	IsTyping        bool   `json:"isTyping"`
}

type callInitiatePayload struct {
	RecipientUserID UserID `json:"recipientUserId"`
	RecipientName   string `json:"recipientName"`
}

type callActionPayload struct {
	CallID string `json:"callId"`
}

type signalPayload struct {
	To     UserID `json:"to"`
	CallID string `json:"callId"`

	// Opaque WebRTC payloads; the gateway relays them without inspection.
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// decodePayload unmarshals an inbound payload into its tagged variant.
// Malformed shapes are rejected here, before any handler logic runs.
func decodePayload(data json.RawMessage, out any) error {
	if len(data) == 0 {
		return errInvalidPayload
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	return nil
}

/* ===================== OUTBOUND PAYLOADS ===================== */

type presencePayload struct {
	OnlineUserIDs []int64 `json:"onlineUserIds"`
}

type typingPayload struct {
	SenderUserID int64 `json:"senderUserId"`
	IsTyping     bool  `json:"isTyping"`
}

type callIncomingPayload struct {
	CallID     string `json:"callId"`
	CallerID   int64  `json:"callerId"`
	CallerName string `json:"callerName"`
	Status     string `json:"status"`
}

type callLifecyclePayload struct {
	CallID      string `json:"callId"`
	Status      string `json:"status"`
	CallerID    int64  `json:"callerId,omitempty"`
	RecipientID int64  `json:"recipientId,omitempty"`
}

type signalRelayPayload struct {
	From   int64  `json:"from"`
	CallID string `json:"callId"`

	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}
