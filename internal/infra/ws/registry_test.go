package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"gatherly/internal/domain/chat"
	"gatherly/internal/domain/shared/events"
	"gatherly/internal/domain/user"
	"gatherly/internal/infra/bus"
	"gatherly/internal/infra/storage/memory"
	"gatherly/internal/infra/ws"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type wireFrame struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// harness runs a registry behind a plain upgrade endpoint so tests exercise
// real connections end to end.
type harness struct {
	t        *testing.T
	registry *ws.Registry
	bus      *bus.Fanout
	server   *httptest.Server

	mu       sync.Mutex
	sessions map[*websocket.Conn]*ws.Session
}

func newHarness(t *testing.T, chats chat.Repository) *harness {
	t.Helper()
	f := bus.New(nil)
	registry := ws.NewRegistry(chats, f, nil, 16)
	f.Subscribe(registry.HandleEvent)

	h := &harness{t: t, registry: registry, bus: f, sessions: make(map[*websocket.Conn]*ws.Session)}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sess, err := registry.Register(r.Context(), user.ID(r.URL.Query().Get("user")), conn)
		if err != nil {
			_ = conn.Close()
			return
		}
		h.mu.Lock()
		h.sessions[conn] = sess
		h.mu.Unlock()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(h.server.Close)
	return h
}

func (h *harness) dial(userID user.ID) *websocket.Conn {
	h.t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "?user=" + string(userID)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { _ = conn.Close() })

	// Registration runs in the server handler; wait for it to land.
	require.Eventually(h.t, func() bool {
		return h.registry.SessionCount(userID) > 0
	}, time.Second, 5*time.Millisecond)
	return conn
}

// awaitFrame reads until the wanted event arrives, skipping unrelated
// frames (presence churn from other connections).
func awaitFrame(t *testing.T, conn *websocket.Conn, event string) wireFrame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for {
		var f wireFrame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %q", event)
		if f.Event == event {
			return f
		}
	}
}

func seedChat(t *testing.T, chats chat.Repository, id chat.ID, members ...user.ID) {
	t.Helper()
	c, err := chat.New(chat.CreateParams{
		ID: id, Kind: chat.KindGroup, Title: "room",
		CreatorID: members[0], Participants: members[1:], CreatedAt: testNow,
	})
	require.NoError(t, err)
	c.FlushEvents()
	require.NoError(t, chats.Save(context.Background(), c))
}

func TestMessageFanoutToRoutingGroup(t *testing.T) {
	req := require.New(t)
	chats := memory.NewChatRepository()
	seedChat(t, chats, "c1", "alice", "bob", "carol")
	h := newHarness(t, chats)

	alice := h.dial("alice")
	bob := h.dial("bob")

	h.bus.Publish(context.Background(), chat.MessageCreated{
		MessageID: "m1", ChatID: "c1", SenderID: "alice",
		Kind: chat.MessageText, Payload: chat.Payload{Text: "hello"}, At: testNow,
	})

	for _, conn := range []*websocket.Conn{alice, bob} {
		f := awaitFrame(t, conn, "message:new")
		req.Equal("m1", f.Data["messageId"])
		req.Equal("hello", f.Data["text"])
	}
}

func TestChatCreatedJoinsRoutingGroup(t *testing.T) {
	req := require.New(t)
	chats := memory.NewChatRepository()
	h := newHarness(t, chats)

	alice := h.dial("alice")
	h.dial("bob")

	h.bus.Publish(context.Background(), chat.Created{
		ChatID: "c9", Kind: chat.KindGroup, Title: "trip",
		CreatorID: "alice", Participants: []user.ID{"alice", "bob"}, At: testNow,
	})

	f := awaitFrame(t, alice, "chat:new")
	req.Equal("c9", f.Data["chatId"])
	req.Equal(2, h.registry.RoomSize("c9"))
}

func TestMultiDeviceDelivery(t *testing.T) {
	req := require.New(t)
	chats := memory.NewChatRepository()
	seedChat(t, chats, "c1", "alice", "bob", "carol")
	h := newHarness(t, chats)

	phone := h.dial("alice")
	laptop := h.dial("alice")
	req.Equal(2, h.registry.SessionCount("alice"))
	req.Equal(2, h.registry.RoomSize("c1"))

	h.bus.Publish(context.Background(), chat.MessageCreated{
		MessageID: "m1", ChatID: "c1", SenderID: "bob",
		Kind: chat.MessageText, Payload: chat.Payload{Text: "ping"}, At: testNow,
	})

	awaitFrame(t, phone, "message:new")
	awaitFrame(t, laptop, "message:new")
}

func TestPresenceOnFirstAndLastSessionOnly(t *testing.T) {
	req := require.New(t)
	chats := memory.NewChatRepository()
	h := newHarness(t, chats)

	var mu sync.Mutex
	var presence []string
	h.bus.Subscribe(func(_ context.Context, evt events.DomainEvent) {
		if p, ok := evt.(chat.PresenceChanged); ok && p.UserID == "alice" {
			mu.Lock()
			presence = append(presence, string(p.UserID)+":"+string(p.Status))
			mu.Unlock()
		}
	})

	s1, err := h.registry.Register(context.Background(), "alice", dialRaw(t, h.server.URL))
	req.NoError(err)
	s2, err := h.registry.Register(context.Background(), "alice", dialRaw(t, h.server.URL))
	req.NoError(err)

	mu.Lock()
	req.Equal([]string{"alice:online"}, presence)
	mu.Unlock()

	h.registry.Unregister(s1)
	mu.Lock()
	req.Len(presence, 1)
	mu.Unlock()

	h.registry.Unregister(s2)
	// Reaping the same session twice must not flap presence.
	h.registry.Unregister(s2)

	mu.Lock()
	req.Equal([]string{"alice:online", "alice:offline"}, presence)
	mu.Unlock()
}

// dialRaw opens a bare client connection whose server side is never
// registered; the conn only backs a session object under test.
func dialRaw(t *testing.T, serverURL string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(serverURL, "http") + "?user=ignored-peer"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestParticipantsChangedRewiresRouting(t *testing.T) {
	req := require.New(t)
	chats := memory.NewChatRepository()
	seedChat(t, chats, "c1", "alice", "bob", "carol")
	h := newHarness(t, chats)

	h.dial("alice")
	dave := h.dial("dave")
	req.Equal(1, h.registry.RoomSize("c1")) // only alice routed

	h.bus.Publish(context.Background(), chat.ParticipantsChanged{
		ChatID: "c1", Action: chat.ParticipantsAdded, Delta: []user.ID{"dave"}, At: testNow,
	})
	awaitFrame(t, dave, "chat:joined")
	req.Equal(2, h.registry.RoomSize("c1"))

	h.bus.Publish(context.Background(), chat.ParticipantsChanged{
		ChatID: "c1", Action: chat.ParticipantsRemoved, Delta: []user.ID{"dave"}, At: testNow,
	})
	awaitFrame(t, dave, "chat:left")
	require.Eventually(t, func() bool {
		return h.registry.RoomSize("c1") == 1
	}, time.Second, 5*time.Millisecond)
}

func TestDeactivatedDropsRoom(t *testing.T) {
	req := require.New(t)
	chats := memory.NewChatRepository()
	seedChat(t, chats, "c1", "alice", "bob", "carol")
	h := newHarness(t, chats)

	h.dial("alice")
	req.Equal(1, h.registry.RoomSize("c1"))

	h.bus.Publish(context.Background(), chat.Deactivated{ChatID: "c1", At: testNow})
	req.Zero(h.registry.RoomSize("c1"))
}

func TestTypingStaysInRoutingGroup(t *testing.T) {
	chats := memory.NewChatRepository()
	seedChat(t, chats, "c1", "alice", "bob", "carol")
	h := newHarness(t, chats)

	alice := h.dial("alice")
	bob := h.dial("bob")

	h.registry.BroadcastTyping("c1", "alice", true)
	f := awaitFrame(t, bob, "typing")
	require.Equal(t, "alice", f.Data["userId"])
	require.Equal(t, true, f.Data["isTyping"])
	awaitFrame(t, alice, "typing")

	// A sender outside the routing group is dropped silently.
	h.registry.BroadcastTyping("c1", "mallory", true)
	require.NoError(t, bob.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	var leaked wireFrame
	require.Error(t, bob.ReadJSON(&leaked))
}
