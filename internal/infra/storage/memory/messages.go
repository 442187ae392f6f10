package memory

import (
	"context"
	"sort"
	"sync"

	"gatherly/internal/domain/chat"
	"gatherly/internal/domain/shared/events"
	"gatherly/internal/domain/user"
)

// MessageRepository stores messages in memory behind a mutex.
type MessageRepository struct {
	mu    sync.RWMutex
	items map[chat.MessageID]*chat.Message
}

func NewMessageRepository() *MessageRepository {
	return &MessageRepository{items: make(map[chat.MessageID]*chat.Message)}
}

func (r *MessageRepository) ByID(ctx context.Context, id chat.MessageID) (*chat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.items[id]
	if !ok {
		return nil, chat.ErrNotFound
	}
	return cloneMessage(m), nil
}

func (r *MessageRepository) Save(ctx context.Context, m *chat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[m.ID] = cloneMessage(m)
	return nil
}

// ListByChat pages history newest first with a stable tie-break on id, and
// hides soft-deleted rows.
func (r *MessageRepository) ListByChat(ctx context.Context, chatID chat.ID, limit, offset int) ([]*chat.Message, error) {
	r.mu.RLock()
	var all []*chat.Message
	for _, m := range r.items {
		if m.ChatID == chatID && !m.IsDeleted() {
			all = append(all, cloneMessage(m))
		}
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *MessageRepository) UnreadCount(ctx context.Context, chatID chat.ID, userID user.ID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, m := range r.items {
		if m.ChatID != chatID || m.IsDeleted() {
			continue
		}
		if m.SenderID != userID && m.Status != chat.StatusRead {
			count++
		}
	}
	return count, nil
}

func cloneMessage(m *chat.Message) *chat.Message {
	if m == nil {
		return nil
	}
	copyMsg := *m
	if m.DeletedAt != nil {
		at := *m.DeletedAt
		copyMsg.DeletedAt = &at
	}
	copyMsg.EventRecorder = events.EventRecorder{}
	return &copyMsg
}

var _ chat.MessageRepository = (*MessageRepository)(nil)
