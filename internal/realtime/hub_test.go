package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(userID int64, buffer int) *Client {
	return &Client{
		id:     fmt.Sprintf("conn-%d", userID),
		userID: userID,
		send:   make(chan []byte, buffer),
		log:    discardLogger(),
	}
}

func drain(t *testing.T, c *Client) []Envelope {
	t.Helper()
	var out []Envelope
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				return out
			}
			var env Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				t.Fatalf("unmarshal delivered frame: %v", err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

type recordingBackplane struct {
	frames []BroadcastFrame
}

func (b *recordingBackplane) Publish(_ context.Context, frame BroadcastFrame) error {
	b.frames = append(b.frames, frame)
	return nil
}

func (b *recordingBackplane) Close() error { return nil }

func TestHubEmitToRoomsScoping(t *testing.T) {
	h := NewHub(discardLogger())

	alice := newTestClient(1, 4)
	bob := newTestClient(2, 4)
	carol := newTestClient(3, 4)
	h.Register(alice, DMRoom(1))
	h.Register(bob, DMRoom(2))
	h.Register(carol, DMRoom(3))

	h.EmitToRooms("dm:message", map[string]string{"body": "hi"}, DMRoom(1), DMRoom(2))

	if got := drain(t, alice); len(got) != 1 || got[0].Event != "dm:message" {
		t.Fatalf("alice got %v, want one dm:message", got)
	}
	if got := drain(t, bob); len(got) != 1 {
		t.Fatalf("bob got %d frames, want 1", len(got))
	}
	if got := drain(t, carol); len(got) != 0 {
		t.Fatalf("carol got %d frames, want 0", len(got))
	}
}

func TestHubRoomUnionDeliversOnce(t *testing.T) {
	h := NewHub(discardLogger())

	alice := newTestClient(1, 4)
	h.Register(alice, DMRoom(1), NotificationsRoom(1))

	h.EmitToRooms("notification:new", nil, DMRoom(1), NotificationsRoom(1))

	if got := drain(t, alice); len(got) != 1 {
		t.Fatalf("got %d frames, want exactly 1", len(got))
	}
}

func TestHubEmitAll(t *testing.T) {
	h := NewHub(discardLogger())

	alice := newTestClient(1, 4)
	bob := newTestClient(2, 4)
	h.Register(alice, DMRoom(1))
	h.Register(bob) // no rooms at all

	h.EmitAll("presence:update", presencePayload{OnlineUserIDs: []int64{1, 2}})

	for _, c := range []*Client{alice, bob} {
		got := drain(t, c)
		if len(got) != 1 || got[0].Event != "presence:update" {
			t.Fatalf("user %d got %v, want one presence:update", c.userID, got)
		}
		var p presencePayload
		if err := json.Unmarshal(got[0].Data, &p); err != nil {
			t.Fatalf("unmarshal presence payload: %v", err)
		}
		if len(p.OnlineUserIDs) != 2 {
			t.Fatalf("online ids = %v", p.OnlineUserIDs)
		}
	}
}

func TestHubUnregister(t *testing.T) {
	h := NewHub(discardLogger())

	alice := newTestClient(1, 4)
	h.Register(alice, DMRoom(1))
	if h.ClientCount() != 1 {
		t.Fatalf("client count = %d, want 1", h.ClientCount())
	}

	h.Unregister(alice)
	h.Unregister(alice) // second call must be a no-op

	if h.ClientCount() != 0 {
		t.Fatalf("client count = %d, want 0", h.ClientCount())
	}
	if _, ok := <-alice.send; ok {
		t.Fatal("send channel still open after unregister")
	}

	// No deliveries to a gone client.
	h.EmitToRooms("dm:message", nil, DMRoom(1))
}

func TestHubDropsSlowConsumer(t *testing.T) {
	h := NewHub(discardLogger())

	slow := newTestClient(1, 1)
	h.Register(slow, DMRoom(1))

	h.EmitToRooms("dm:message", map[string]int{"n": 1}, DMRoom(1)) // fills the buffer
	h.EmitToRooms("dm:message", map[string]int{"n": 2}, DMRoom(1)) // overflows, drops client

	if h.ClientCount() != 0 {
		t.Fatalf("client count = %d, want 0 after overflow", h.ClientCount())
	}
}

func TestHubBackplaneMirrorAndOriginSkip(t *testing.T) {
	h := NewHub(discardLogger())
	bp := &recordingBackplane{}
	h.AttachBackplane(bp)

	alice := newTestClient(1, 4)
	h.Register(alice, DMRoom(1))

	h.EmitToRooms("dm:message", map[string]string{"body": "hi"}, DMRoom(1))
	h.EmitAll("presence:update", presencePayload{})

	if len(bp.frames) != 2 {
		t.Fatalf("published %d frames, want 2", len(bp.frames))
	}
	if got := bp.frames[0].Rooms; len(got) != 1 || got[0] != DMRoom(1) {
		t.Fatalf("first frame rooms = %v", got)
	}
	if bp.frames[1].Rooms != nil {
		t.Fatalf("broadcast frame rooms = %v, want nil", bp.frames[1].Rooms)
	}
	drain(t, alice)

	// A frame this hub published must not be delivered a second time.
	h.HandleRemote(bp.frames[0])
	if got := drain(t, alice); len(got) != 0 {
		t.Fatalf("own frame redelivered: %v", got)
	}

	// The same frame from a sibling process is delivered.
	remote := bp.frames[0]
	remote.Origin = "some-other-process"
	h.HandleRemote(remote)
	if got := drain(t, alice); len(got) != 1 {
		t.Fatalf("remote frame not delivered, got %v", got)
	}
}

func TestHubRemoteBroadcastReachesAll(t *testing.T) {
	h := NewHub(discardLogger())

	alice := newTestClient(1, 4)
	bob := newTestClient(2, 4)
	h.Register(alice, DMRoom(1))
	h.Register(bob, DMRoom(2))

	h.HandleRemote(BroadcastFrame{
		Origin: "sibling",
		Event:  "presence:update",
		Rooms:  nil,
		Data:   json.RawMessage(`{"onlineUserIds":[7]}`),
	})

	for _, c := range []*Client{alice, bob} {
		if got := drain(t, c); len(got) != 1 {
			t.Fatalf("user %d got %d frames, want 1", c.userID, len(got))
		}
	}
}
