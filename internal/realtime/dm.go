package realtime

import (
	"context"
	"encoding/json"

	"forum-platform/internal/chat"
)

// Direct-messaging router. Validation failures are dropped silently, with no
// error event back to the sender, so a probing client learns nothing about
// internal validation. The sender id always comes from the authenticated
// connection, never from the payload.

func (g *Gateway) handleDMSend(c *Client, data json.RawMessage) {
	var p dmSendPayload
	if err := decodePayload(data, &p); err != nil {
		c.log.Debug("dm:send dropped", "err", err)
		return
	}

	recipientID := int64(p.RecipientUserID)
	if recipientID <= 0 || recipientID == c.userID {
		c.log.Debug("dm:send dropped", "recipient_id", recipientID)
		return
	}

	msg, err := g.chat.CreateDirectMessage(context.Background(), chat.CreateMessageParams{
		SenderUserID:    c.userID,
		RecipientUserID: recipientID,
		Body:            p.Body,
		ImageURL:        p.ImageURL,
	})
	if err != nil {
		c.log.Warn("dm:send failed", "recipient_id", recipientID, "err", err)
		return
	}

	// Every device either party has open gets its own copy.
	g.hub.EmitToRooms(EventDMMessage, msg, DMRoom(c.userID), DMRoom(recipientID))
}

func (g *Gateway) handleDMTyping(c *Client, data json.RawMessage) {
	var p dmTypingPayload
	if err := decodePayload(data, &p); err != nil {
		c.log.Debug("dm:typing dropped", "err", err)
		return
	}

	recipientID := int64(p.RecipientUserID)
	if recipientID <= 0 {
		return
	}

	// No persistence; recipient's room only.
	g.hub.EmitToRooms(EventDMTyping, typingPayload{
		SenderUserID: c.userID,
		IsTyping:     p.IsTyping,
	}, DMRoom(recipientID))
}
