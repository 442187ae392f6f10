package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"gatherly/internal/domain/chat"
	"gatherly/internal/domain/shared/events"
	"gatherly/internal/domain/user"
)

// Registry maps authenticated identities to their live sessions and chats to
// their routing groups. It is the only mutable shared resource of the
// real-time path; every mutation happens under one mutex, and only the
// connection lifecycle and the participants.changed subscriber touch it.
//
// The registry is single-instance by design. A multi-instance deployment
// would substitute an implementation whose routing groups live in a shared
// broker keyspace; the publish contract on the bus stays identical.
type Registry struct {
	mu     sync.Mutex
	byUser map[user.ID]map[*Session]struct{}
	rooms  map[chat.ID]map[*Session]struct{}

	chats  chat.Repository
	bus    events.Publisher
	log    *slog.Logger
	buffer int

	now func() time.Time
}

func NewRegistry(chats chat.Repository, bus events.Publisher, log *slog.Logger, buffer int) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		byUser: make(map[user.ID]map[*Session]struct{}),
		rooms:  make(map[chat.ID]map[*Session]struct{}),
		chats:  chats,
		bus:    bus,
		log:    log,
		buffer: buffer,
		now:    time.Now,
	}
}

// Register creates a session for an authenticated connection and rebuilds
// its routing from the conversation store: the session joins the routing
// group of every active chat its identity participates in. The first live
// session of an identity publishes presence online.
func (r *Registry) Register(ctx context.Context, userID user.ID, conn *websocket.Conn) (*Session, error) {
	memberships, err := r.chats.ActiveByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	s := newSession(uuid.NewString(), userID, conn, r.buffer)

	r.mu.Lock()
	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[*Session]struct{})
	}
	first := len(r.byUser[userID]) == 0
	r.byUser[userID][s] = struct{}{}
	for _, c := range memberships {
		r.joinLocked(c.ID, s)
	}
	r.mu.Unlock()

	go s.writePump(r.log, r.Unregister)

	if first && r.bus != nil {
		r.bus.Publish(ctx, chat.PresenceChanged{UserID: userID, Status: chat.PresenceOnline, At: r.now().UTC()})
	}
	r.log.Info("session registered", "session_id", s.id, "user_id", userID, "chats", len(memberships))
	return s, nil
}

// Unregister removes a session from all routing groups. The identity's last
// session closing publishes presence offline.
func (r *Registry) Unregister(s *Session) {
	if s == nil {
		return
	}
	s.close()

	r.mu.Lock()
	removed := false
	if set, ok := r.byUser[s.userID]; ok {
		if _, member := set[s]; member {
			delete(set, s)
			removed = true
			if len(set) == 0 {
				delete(r.byUser, s.userID)
			}
		}
	}
	for chatID, room := range r.rooms {
		delete(room, s)
		if len(room) == 0 {
			delete(r.rooms, chatID)
		}
	}
	// Double unregister (write pump and read loop racing on the same death)
	// must not flap presence.
	last := removed && len(r.byUser[s.userID]) == 0
	r.mu.Unlock()

	if last && r.bus != nil {
		r.bus.Publish(context.Background(), chat.PresenceChanged{UserID: s.userID, Status: chat.PresenceOffline, At: r.now().UTC()})
	}
	r.log.Info("session removed", "session_id", s.id, "user_id", s.userID)
}

// HandleEvent is the registry's fan-out bus subscription: it resolves the
// affected routing group and pushes a frame to each live session. Events
// published before a session joined a routing group are never replayed; the
// conversation store holds the durable history a late joiner paginates.
func (r *Registry) HandleEvent(ctx context.Context, evt events.DomainEvent) {
	switch e := evt.(type) {
	case chat.Created:
		for _, id := range e.Participants {
			r.joinUser(e.ChatID, id)
		}
		r.broadcastToChat(e.ChatID, Frame{Event: "chat:new", Data: chatPayload(e)})
	case chat.ParticipantsChanged:
		switch e.Action {
		case chat.ParticipantsAdded:
			for _, id := range e.Delta {
				r.joinUser(e.ChatID, id)
				r.sendToUser(id, Frame{Event: "chat:joined", Data: map[string]any{"chatId": e.ChatID}})
			}
		case chat.ParticipantsRemoved:
			for _, id := range e.Delta {
				r.sendToUser(id, Frame{Event: "chat:left", Data: map[string]any{"chatId": e.ChatID}})
				r.leaveUser(e.ChatID, id)
			}
		}
		r.broadcastToChat(e.ChatID, Frame{Event: "chat:participants", Data: map[string]any{
			"chatId": e.ChatID, "delta": e.Delta, "action": e.Action,
		}})
	case chat.Deactivated:
		r.dropRoom(e.ChatID)
	case chat.MessageCreated:
		r.broadcastToChat(e.ChatID, Frame{Event: "message:new", Data: messagePayload(e)})
	case chat.MessageStatusChanged:
		r.broadcastToChat(e.ChatID, Frame{Event: "message:status", Data: map[string]any{
			"messageId": e.MessageID, "status": e.Status,
		}})
	case chat.MessageUpdated:
		r.broadcastToChat(e.ChatID, Frame{Event: "message:updated", Data: map[string]any{
			"messageId": e.MessageID, "chatId": e.ChatID,
			"text": e.Payload.Text, "mediaRef": e.Payload.MediaRef,
		}})
	case chat.MessageDeleted:
		r.broadcastToChat(e.ChatID, Frame{Event: "message:deleted", Data: map[string]any{
			"messageId": e.MessageID, "chatId": e.ChatID,
		}})
	case chat.PresenceChanged:
		r.broadcastAll(Frame{Event: "presence", Data: map[string]any{
			"userId": e.UserID, "status": e.Status,
		}})
	}
}

// BroadcastTyping pushes an ephemeral typing signal straight to the chat's
// routing group, bypassing the bus and any durability: a dropped signal is
// never retried. The sender must itself be routed to the chat.
func (r *Registry) BroadcastTyping(chatID chat.ID, userID user.ID, isTyping bool) {
	r.mu.Lock()
	routed := false
	for s := range r.rooms[chatID] {
		if s.userID == userID {
			routed = true
			break
		}
	}
	r.mu.Unlock()
	if !routed {
		return
	}
	r.broadcastToChat(chatID, Frame{Event: "typing", Data: map[string]any{
		"chatId": chatID, "userId": userID, "isTyping": isTyping,
	}})
}

// SessionCount reports live sessions for an identity.
func (r *Registry) SessionCount(userID user.ID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser[userID])
}

// RoomSize reports the number of sessions routed to a chat.
func (r *Registry) RoomSize(chatID chat.ID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[chatID])
}

func (r *Registry) joinLocked(chatID chat.ID, s *Session) {
	if r.rooms[chatID] == nil {
		r.rooms[chatID] = make(map[*Session]struct{})
	}
	r.rooms[chatID][s] = struct{}{}
}

func (r *Registry) joinUser(chatID chat.ID, userID user.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for s := range r.byUser[userID] {
		r.joinLocked(chatID, s)
	}
}

func (r *Registry) leaveUser(chatID chat.ID, userID user.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.rooms[chatID]
	for s := range room {
		if s.userID == userID {
			delete(room, s)
		}
	}
	if len(room) == 0 {
		delete(r.rooms, chatID)
	}
}

func (r *Registry) dropRoom(chatID chat.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, chatID)
}

func (r *Registry) broadcastToChat(chatID chat.ID, f Frame) {
	r.mu.Lock()
	targets := make([]*Session, 0, len(r.rooms[chatID]))
	for s := range r.rooms[chatID] {
		targets = append(targets, s)
	}
	r.mu.Unlock()
	for _, s := range targets {
		if !s.enqueue(f) {
			r.log.Debug("frame dropped", "event", f.Event, "session_id", s.id, "user_id", s.userID)
		}
	}
}

func (r *Registry) broadcastAll(f Frame) {
	r.mu.Lock()
	var targets []*Session
	for _, set := range r.byUser {
		for s := range set {
			targets = append(targets, s)
		}
	}
	r.mu.Unlock()
	for _, s := range targets {
		if !s.enqueue(f) {
			r.log.Debug("frame dropped", "event", f.Event, "session_id", s.id, "user_id", s.userID)
		}
	}
}

func (r *Registry) sendToUser(userID user.ID, f Frame) {
	r.mu.Lock()
	targets := make([]*Session, 0, len(r.byUser[userID]))
	for s := range r.byUser[userID] {
		targets = append(targets, s)
	}
	r.mu.Unlock()
	for _, s := range targets {
		if !s.enqueue(f) {
			r.log.Debug("frame dropped", "event", f.Event, "session_id", s.id, "user_id", s.userID)
		}
	}
}

func chatPayload(e chat.Created) map[string]any {
	return map[string]any{
		"chatId":       e.ChatID,
		"kind":         e.Kind,
		"title":        e.Title,
		"creatorId":    e.CreatorID,
		"eventId":      e.EventID,
		"participants": e.Participants,
	}
}

func messagePayload(e chat.MessageCreated) map[string]any {
	return map[string]any{
		"messageId": e.MessageID,
		"chatId":    e.ChatID,
		"senderId":  e.SenderID,
		"kind":      e.Kind,
		"text":      e.Payload.Text,
		"mediaRef":  e.Payload.MediaRef,
		"latitude":  e.Payload.Latitude,
		"longitude": e.Payload.Longitude,
		"createdAt": e.At,
	}
}
