package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"gatherly/internal/domain/chat"
	"gatherly/internal/domain/shared/events"
	"gatherly/internal/domain/user"
)

// ChatRepository keeps chats in memory behind a mutex. Single-instance only;
// the mongo implementation is the durable counterpart.
type ChatRepository struct {
	mu    sync.RWMutex
	items map[chat.ID]*chat.Chat
}

func NewChatRepository() *ChatRepository {
	return &ChatRepository{items: make(map[chat.ID]*chat.Chat)}
}

func (r *ChatRepository) ByID(ctx context.Context, id chat.ID) (*chat.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[id]
	if !ok {
		return nil, chat.ErrNotFound
	}
	return cloneChat(c), nil
}

func (r *ChatRepository) Save(ctx context.Context, c *chat.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[c.ID] = cloneChat(c)
	return nil
}

func (r *ChatRepository) TouchActivity(ctx context.Context, id chat.ID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return chat.ErrNotFound
	}
	if at.After(c.LastActivityAt) {
		c.Touch(at)
	}
	return nil
}

func (r *ChatRepository) ActiveByParticipant(ctx context.Context, userID user.ID) ([]*chat.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*chat.Chat
	for _, c := range r.items {
		if c.IsActive && c.HasParticipant(userID) {
			out = append(out, cloneChat(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActivityAt.Equal(out[j].LastActivityAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out, nil
}

func (r *ChatRepository) ActiveDirectByPair(ctx context.Context, a, b user.ID) (*chat.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.items {
		if c.Kind != chat.KindDirect || !c.IsActive {
			continue
		}
		if c.HasParticipant(a) && c.HasParticipant(b) {
			return cloneChat(c), nil
		}
	}
	return nil, chat.ErrNotFound
}

func (r *ChatRepository) ActiveByEventID(ctx context.Context, eventID string) (*chat.Chat, error) {
	if eventID == "" {
		return nil, chat.ErrNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.items {
		if c.Kind == chat.KindEvent && c.IsActive && c.EventID == eventID {
			return cloneChat(c), nil
		}
	}
	return nil, chat.ErrNotFound
}

func cloneChat(c *chat.Chat) *chat.Chat {
	if c == nil {
		return nil
	}
	copyChat := *c
	copyChat.Participants = append([]user.ID(nil), c.Participants...)
	// Pending events belong to the caller's aggregate copy, not the store.
	copyChat.EventRecorder = events.EventRecorder{}
	return &copyChat
}

var _ chat.Repository = (*ChatRepository)(nil)
