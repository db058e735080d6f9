package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"forum-platform/internal/calls"
	"forum-platform/internal/chat"
	"forum-platform/internal/identity"
	"forum-platform/internal/presence"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type fakeResolver struct {
	tokens map[string]identity.Identity
}

func (r *fakeResolver) Resolve(_ context.Context, token string) (identity.Identity, error) {
	id, ok := r.tokens[token]
	if !ok {
		return identity.Identity{}, errors.New("unknown token")
	}
	return id, nil
}

type gatewayFixture struct {
	server   *httptest.Server
	callRepo *calls.MemoryRepo
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	chatRepo := chat.NewMemoryRepo()
	chatRepo.PutUser(chat.ChatUser{ID: 1, DisplayName: "Alice", Handle: "alice"})
	chatRepo.PutUser(chat.ChatUser{ID: 2, DisplayName: "Bob", Handle: "bob"})
	chatRepo.PutUser(chat.ChatUser{ID: 3, DisplayName: "Carol", Handle: "carol"})
	callRepo := calls.NewMemoryRepo()

	resolver := &fakeResolver{tokens: map[string]identity.Identity{
		"tok-alice": {UserID: 1, DisplayName: "Alice", Handle: "alice"},
		"tok-bob":   {UserID: 2, DisplayName: "Bob", Handle: "bob"},
		"tok-carol": {UserID: 3, DisplayName: "Carol", Handle: "carol"},
	}}

	g := NewGateway(GatewayDeps{
		Log:      discardLogger(),
		Resolver: resolver,
		Presence: presence.NewRegistry(),
		Hub:      NewHub(discardLogger()),
		Chat:     chat.NewService(chatRepo),
		Calls:    calls.NewService(callRepo),
	})

	r := gin.New()
	r.GET("/ws", g.Handler())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &gatewayFixture{server: srv, callRepo: callRepo}
}

// dial connects and waits for the presence refresh that follows
// registration, so the caller knows the server side is fully set up. The
// refresh payload is returned for tests that assert on it.
func (f *gatewayFixture) dial(t *testing.T, token string) (*websocket.Conn, presencePayload) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	var p presencePayload
	data := waitForEvent(t, conn, EventPresenceUpdate)
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal presence: %v", err)
	}
	return conn, p
}

func (f *gatewayFixture) dialErr(t *testing.T, token string) int {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		conn.Close()
		t.Fatal("dial succeeded, expected handshake rejection")
	}
	if resp == nil {
		t.Fatalf("dial failed without HTTP response: %v", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", event, err)
	}
	if err := conn.WriteJSON(Envelope{Event: event, Data: raw}); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

// waitForEvent reads frames until one with the wanted event name arrives.
// Presence refreshes interleave with everything, so other events are skipped.
func waitForEvent(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	for time.Now().Before(deadline) {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if env.Event == event {
			return env.Data
		}
	}
	t.Fatalf("no %s event before deadline", event)
	return nil
}

// expectNoEvent asserts none of the named events arrive within the window.
// The read timeout leaves the connection unusable, so this is a terminal
// assertion for the connection.
func expectNoEvent(t *testing.T, conn *websocket.Conn, events ...string) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return // timeout is the expected outcome
		}
		for _, event := range events {
			if env.Event == event {
				t.Fatalf("received unexpected %s: %s", event, env.Data)
			}
		}
	}
}

func TestGatewayHandshakeRejections(t *testing.T) {
	f := newGatewayFixture(t)

	if code := f.dialErr(t, ""); code != http.StatusUnauthorized {
		t.Fatalf("missing token: status %d, want 401", code)
	}
	if code := f.dialErr(t, "tok-nobody"); code != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d, want 401", code)
	}
}

func TestGatewayPresenceUpdates(t *testing.T) {
	f := newGatewayFixture(t)

	alice, p := f.dial(t, "tok-alice")
	if len(p.OnlineUserIDs) != 1 || p.OnlineUserIDs[0] != 1 {
		t.Fatalf("online ids = %v, want [1]", p.OnlineUserIDs)
	}

	bob, p := f.dial(t, "tok-bob")
	if len(p.OnlineUserIDs) != 2 {
		t.Fatalf("online ids = %v, want both users", p.OnlineUserIDs)
	}

	// Alice sees the refresh with both users.
	data := waitForEvent(t, alice, EventPresenceUpdate)
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal presence: %v", err)
	}
	if len(p.OnlineUserIDs) != 2 {
		t.Fatalf("online ids = %v, want both users", p.OnlineUserIDs)
	}

	bob.Close()
	data = waitForEvent(t, alice, EventPresenceUpdate)
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal presence: %v", err)
	}
	if len(p.OnlineUserIDs) != 1 || p.OnlineUserIDs[0] != 1 {
		t.Fatalf("online ids after disconnect = %v, want [1]", p.OnlineUserIDs)
	}
}

func TestGatewayDirectMessageFlow(t *testing.T) {
	f := newGatewayFixture(t)

	alice, _ := f.dial(t, "tok-alice")
	bob, _ := f.dial(t, "tok-bob")
	carol, _ := f.dial(t, "tok-carol")

	send(t, alice, EventDMSend, map[string]any{
		"recipientUserId": "2", // string id must coerce
		"body":            "  hello bob  ",
	})

	for _, conn := range []*websocket.Conn{alice, bob} {
		data := waitForEvent(t, conn, EventDMMessage)
		var msg chat.DirectMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal message: %v", err)
		}
		if msg.SenderUserID != 1 || msg.RecipientUserID != 2 {
			t.Fatalf("message addressing: %+v", msg)
		}
		if msg.Body != "hello bob" {
			t.Fatalf("body = %q, want trimmed", msg.Body)
		}
		if msg.Sender.DisplayName != "Alice" {
			t.Fatalf("sender not hydrated: %+v", msg.Sender)
		}
	}

	expectNoEvent(t, carol, EventDMMessage)
}

func TestGatewayDMSendValidation(t *testing.T) {
	f := newGatewayFixture(t)

	alice, _ := f.dial(t, "tok-alice")
	bob, _ := f.dial(t, "tok-bob")

	// Self-send, empty message, malformed id: all silently dropped.
	send(t, alice, EventDMSend, map[string]any{"recipientUserId": 1, "body": "self"})
	send(t, alice, EventDMSend, map[string]any{"recipientUserId": 2, "body": "   "})
	send(t, alice, EventDMSend, map[string]any{"recipientUserId": "abc", "body": "hi"})

	expectNoEvent(t, bob, EventDMMessage)
	expectNoEvent(t, alice, EventDMMessage)
}

func TestGatewayTypingIndicator(t *testing.T) {
	f := newGatewayFixture(t)

	alice, _ := f.dial(t, "tok-alice")
	bob, _ := f.dial(t, "tok-bob")

	send(t, alice, EventDMTyping, map[string]any{"recipientUserId": 2, "isTyping": true})

	data := waitForEvent(t, bob, EventDMTyping)
	var p typingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal typing: %v", err)
	}
	if p.SenderUserID != 1 || !p.IsTyping {
		t.Fatalf("typing payload = %+v", p)
	}

	expectNoEvent(t, alice, EventDMTyping)
}

func TestGatewayCallLifecycle(t *testing.T) {
	f := newGatewayFixture(t)

	alice, _ := f.dial(t, "tok-alice")
	bob, _ := f.dial(t, "tok-bob")

	send(t, alice, EventCallInitiate, map[string]any{
		"recipientUserId": 2,
		"recipientName":   "Bob",
	})

	data := waitForEvent(t, bob, EventCallIncoming)
	var incoming callIncomingPayload
	if err := json.Unmarshal(data, &incoming); err != nil {
		t.Fatalf("unmarshal incoming: %v", err)
	}
	if incoming.CallerID != 1 || incoming.CallerName != "Alice" {
		t.Fatalf("incoming = %+v", incoming)
	}
	if incoming.Status != string(calls.CallStatusRinging) {
		t.Fatalf("status = %q, want ringing", incoming.Status)
	}
	if incoming.CallID == "" {
		t.Fatal("incoming call id empty")
	}

	// Bob answers. Older clients still send recipientName here; it is not
	// read, the record keeps the name cached at initiation.
	send(t, bob, EventCallAccept, map[string]any{"callId": incoming.CallID, "recipientName": "Robert"})

	for _, conn := range []*websocket.Conn{alice, bob} {
		data := waitForEvent(t, conn, EventCallAccepted)
		var lc callLifecyclePayload
		if err := json.Unmarshal(data, &lc); err != nil {
			t.Fatalf("unmarshal accepted: %v", err)
		}
		if lc.CallID != incoming.CallID || lc.Status != string(calls.CallStatusConnected) {
			t.Fatalf("accepted payload = %+v", lc)
		}
	}

	// Opaque ICE candidate relays verbatim with the sender stamped.
	candidate := `{"candidate":"candidate:1 1 UDP 2122252543 192.0.2.1 54321 typ host","sdpMid":"0"}`
	send(t, alice, EventSignalICE, map[string]any{
		"to":        2,
		"callId":    incoming.CallID,
		"candidate": json.RawMessage(candidate),
	})

	data = waitForEvent(t, bob, EventSignalICE)
	var relay signalRelayPayload
	if err := json.Unmarshal(data, &relay); err != nil {
		t.Fatalf("unmarshal relay: %v", err)
	}
	if relay.From != 1 || relay.CallID != incoming.CallID {
		t.Fatalf("relay = %+v", relay)
	}
	if string(relay.Candidate) != candidate {
		t.Fatalf("candidate mutated in transit:\n got %s\nwant %s", relay.Candidate, candidate)
	}

	send(t, alice, EventCallEnd, map[string]any{"callId": incoming.CallID})

	for _, conn := range []*websocket.Conn{alice, bob} {
		data := waitForEvent(t, conn, EventCallEnded)
		var lc callLifecyclePayload
		if err := json.Unmarshal(data, &lc); err != nil {
			t.Fatalf("unmarshal ended: %v", err)
		}
		if lc.Status != string(calls.CallStatusEnded) {
			t.Fatalf("ended payload = %+v", lc)
		}
	}

	call, err := f.callRepo.Get(context.Background(), incoming.CallID)
	if err != nil {
		t.Fatalf("load call: %v", err)
	}
	if call.Status != calls.CallStatusEnded || call.StartedAt == nil || call.EndedAt == nil {
		t.Fatalf("persisted call = %+v", call)
	}
	if call.RecipientName != "Bob" {
		t.Fatalf("recipient name = %q, want the name cached at initiation", call.RecipientName)
	}
}

func TestGatewayCallActionsFromNonParticipant(t *testing.T) {
	f := newGatewayFixture(t)

	alice, _ := f.dial(t, "tok-alice")
	bob, _ := f.dial(t, "tok-bob")
	carol, _ := f.dial(t, "tok-carol")

	send(t, alice, EventCallInitiate, map[string]any{"recipientUserId": 2})
	data := waitForEvent(t, bob, EventCallIncoming)
	var incoming callIncomingPayload
	if err := json.Unmarshal(data, &incoming); err != nil {
		t.Fatalf("unmarshal incoming: %v", err)
	}

	// An outsider trying to tear down the call changes nothing and
	// nothing reaches the participants.
	send(t, carol, EventCallReject, map[string]any{"callId": incoming.CallID})
	send(t, carol, EventCallEnd, map[string]any{"callId": incoming.CallID})

	expectNoEvent(t, bob, EventCallRejected, EventCallEnded)

	call, err := f.callRepo.Get(context.Background(), incoming.CallID)
	if err != nil {
		t.Fatalf("load call: %v", err)
	}
	if call.Status != calls.CallStatusCalling {
		t.Fatalf("call status = %q, want calling", call.Status)
	}
}

func TestGatewayUnknownEventIsIgnored(t *testing.T) {
	f := newGatewayFixture(t)

	alice, _ := f.dial(t, "tok-alice")
	bob, _ := f.dial(t, "tok-bob")

	send(t, alice, "made:up:event", map[string]any{"x": 1})
	if err := alice.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	// Connection survives; a real event still goes through afterwards.
	send(t, alice, EventDMTyping, map[string]any{"recipientUserId": 2, "isTyping": true})
	waitForEvent(t, bob, EventDMTyping)
}
