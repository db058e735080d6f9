package realtime

import (
	"context"
	"encoding/json"
	"errors"

	"forum-platform/internal/calls"
)

// Call-signaling coordinator. Lifecycle events mutate the persisted call
// record through the calls service; WebRTC payloads are relayed opaquely
// without inspection. Lifecycle emissions are scoped to the two
// participants' rooms, computed from the persisted record, so unrelated
// clients never see another pair's call traffic.

func (g *Gateway) handleCallInitiate(c *Client, data json.RawMessage) {
	var p callInitiatePayload
	if err := decodePayload(data, &p); err != nil {
		c.log.Debug("call:initiate dropped", "err", err)
		return
	}

	recipientID := int64(p.RecipientUserID)
	if recipientID <= 0 || recipientID == c.userID {
		c.log.Debug("call:initiate dropped", "recipient_id", recipientID)
		return
	}

	call, err := g.calls.Initiate(context.Background(), c.userID, recipientID, c.displayName, p.RecipientName)
	if err != nil {
		c.log.Warn("call:initiate failed", "recipient_id", recipientID, "err", err)
		return
	}

	// The record stays "calling"; delivery to the recipient is what makes
	// it ring.
	g.hub.EmitToRooms(EventCallIncoming, callIncomingPayload{
		CallID:     call.ID,
		CallerID:   call.CallerID,
		CallerName: call.CallerName,
		Status:     string(calls.CallStatusRinging),
	}, DMRoom(recipientID))
}

func (g *Gateway) handleCallAccept(c *Client, data json.RawMessage) {
	var p callActionPayload
	if err := decodePayload(data, &p); err != nil || p.CallID == "" {
		c.log.Debug("call:accept dropped", "err", err)
		return
	}

	call, err := g.calls.Accept(context.Background(), p.CallID, c.userID)
	if err != nil {
		g.logCallFailure(c, "call:accept", p.CallID, err)
		return
	}

	g.emitToParticipants(call, EventCallAccepted, callLifecyclePayload{
		CallID:      call.ID,
		Status:      string(call.Status),
		CallerID:    call.CallerID,
		RecipientID: call.RecipientID,
	})
}

func (g *Gateway) handleCallReject(c *Client, data json.RawMessage) {
	var p callActionPayload
	if err := decodePayload(data, &p); err != nil || p.CallID == "" {
		c.log.Debug("call:reject dropped", "err", err)
		return
	}

	call, err := g.calls.Reject(context.Background(), p.CallID, c.userID)
	if err != nil {
		g.logCallFailure(c, "call:reject", p.CallID, err)
		return
	}

	g.emitToParticipants(call, EventCallRejected, callLifecyclePayload{
		CallID:      call.ID,
		Status:      string(call.Status),
		CallerID:    call.CallerID,
		RecipientID: call.RecipientID,
	})
}

func (g *Gateway) handleCallEnd(c *Client, data json.RawMessage) {
	var p callActionPayload
	if err := decodePayload(data, &p); err != nil || p.CallID == "" {
		c.log.Debug("call:end dropped", "err", err)
		return
	}

	call, err := g.calls.End(context.Background(), p.CallID, c.userID)
	if err != nil {
		g.logCallFailure(c, "call:end", p.CallID, err)
		return
	}

	g.emitToParticipants(call, EventCallEnded, callLifecyclePayload{
		CallID:      call.ID,
		Status:      string(call.Status),
		CallerID:    call.CallerID,
		RecipientID: call.RecipientID,
	})
}

// relaySignal forwards an opaque WebRTC payload to the target user's room,
// stamping the authenticated sender as "from". Payload contents are not
// inspected.
func (g *Gateway) relaySignal(event string) HandlerFunc {
	return func(c *Client, data json.RawMessage) {
		var p signalPayload
		if err := decodePayload(data, &p); err != nil {
			c.log.Debug("signal dropped", "event", event, "err", err)
			return
		}

		to := int64(p.To)
		if to <= 0 || p.CallID == "" {
			c.log.Debug("signal dropped", "event", event, "to", to)
			return
		}

		g.hub.EmitToRooms(event, signalRelayPayload{
			From:      c.userID,
			CallID:    p.CallID,
			Offer:     p.Offer,
			Answer:    p.Answer,
			Candidate: p.Candidate,
		}, DMRoom(to))
	}
}

func (g *Gateway) emitToParticipants(call calls.VideoCall, event string, payload callLifecyclePayload) {
	g.hub.EmitToRooms(event, payload, DMRoom(call.CallerID), DMRoom(call.RecipientID))
}

// logCallFailure keeps forged or stale call ids quiet on the wire: the event
// is dropped, the other party sees nothing, and the UI infers via timeout.
func (g *Gateway) logCallFailure(c *Client, op, callID string, err error) {
	switch {
	case errors.Is(err, calls.ErrNotParticipant):
		c.log.Warn(op+" from non-participant", "call_id", callID)
	case errors.Is(err, calls.ErrNotFound), errors.Is(err, calls.ErrInvalidTransition):
		c.log.Debug(op+" dropped", "call_id", callID, "err", err)
	default:
		c.log.Warn(op+" failed", "call_id", callID, "err", err)
	}
}
