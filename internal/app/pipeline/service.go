package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gatherly/internal/domain/chat"
	"gatherly/internal/domain/shared/events"
	"gatherly/internal/domain/user"
)

// AccessValidator is the authorization gate the pipeline consults before
// touching any chat. Satisfied by the membership service.
type AccessValidator interface {
	ValidateAccess(ctx context.Context, chatID chat.ID, userID user.ID) (*chat.Chat, error)
}

// Service validates, persists and classifies outbound messages, and advances
// per-message delivery status under the monotone SENT < DELIVERED < READ rule.
type Service struct {
	Access   AccessValidator
	Chats    chat.Repository
	Messages chat.MessageRepository
	Bus      events.Publisher
	Logger   *slog.Logger

	Now func() time.Time
}

// SendMessage runs the full outbound path: access gate, kind-specific payload
// validation, persistence with status SENT, chat activity bump, publication.
// A rejected message leaves durable state untouched.
func (s *Service) SendMessage(ctx context.Context, chatID chat.ID, senderID user.ID, kind chat.MessageKind, payload chat.Payload) (*chat.Message, error) {
	if _, err := s.Access.ValidateAccess(ctx, chatID, senderID); err != nil {
		return nil, err
	}
	m, err := chat.NewMessage(chat.MessageParams{
		ID:        chat.MessageID(uuid.NewString()),
		ChatID:    chatID,
		SenderID:  senderID,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Messages.Save(ctx, m); err != nil {
		return nil, err
	}
	// Targeted bump: the chat aggregate read by the access gate is a
	// snapshot and must not be written back over concurrent membership
	// changes.
	if err := s.Chats.TouchActivity(ctx, chatID, m.CreatedAt); err != nil {
		return nil, err
	}
	s.publish(ctx, m.FlushEvents())
	s.log().Info("message sent", "chat_id", chatID, "message_id", m.ID, "kind", kind)
	return m, nil
}

// UpdateMessageStatus advances a message's delivery status. Any chat
// participant may advance it; equal-to-current is an idempotent no-op
// success, a downgrade fails with ErrInvalidTransition and publishes nothing.
// Soft-deleted messages are excluded from status mutation.
func (s *Service) UpdateMessageStatus(ctx context.Context, messageID chat.MessageID, to chat.Status, requesterID user.ID) (*chat.Message, error) {
	m, err := s.liveMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Access.ValidateAccess(ctx, m.ChatID, requesterID); err != nil {
		return nil, err
	}
	changed, err := m.AdvanceStatus(to, s.now())
	if err != nil {
		return nil, err
	}
	if !changed {
		return m, nil
	}
	if err := s.Messages.Save(ctx, m); err != nil {
		return nil, err
	}
	s.publish(ctx, m.FlushEvents())
	return m, nil
}

// EditMessage overwrites only the provided fields; sender only.
func (s *Service) EditMessage(ctx context.Context, messageID chat.MessageID, requesterID user.ID, text, mediaRef *string) (*chat.Message, error) {
	m, err := s.liveMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m.SenderID != requesterID {
		return nil, chat.ErrForbidden
	}
	if err := m.EditContent(text, mediaRef, s.now()); err != nil {
		return nil, err
	}
	if err := s.Messages.Save(ctx, m); err != nil {
		return nil, err
	}
	s.publish(ctx, m.FlushEvents())
	return m, nil
}

// DeleteMessage soft-deletes; the id stays valid for idempotent operations
// but the message disappears from reads. Sender only.
func (s *Service) DeleteMessage(ctx context.Context, messageID chat.MessageID, requesterID user.ID) error {
	m, err := s.liveMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if m.SenderID != requesterID {
		return chat.ErrForbidden
	}
	m.SoftDelete(s.now())
	if err := s.Messages.Save(ctx, m); err != nil {
		return err
	}
	s.publish(ctx, m.FlushEvents())
	return nil
}

// ListMessages returns a page of chat history, newest first, for a
// participant. Soft-deleted messages are excluded by the store.
func (s *Service) ListMessages(ctx context.Context, chatID chat.ID, requesterID user.ID, limit, offset int) ([]*chat.Message, error) {
	if _, err := s.Access.ValidateAccess(ctx, chatID, requesterID); err != nil {
		return nil, err
	}
	return s.Messages.ListByChat(ctx, chatID, limit, offset)
}

// MarkRead advances each referenced message to READ on behalf of the
// requester, best effort: one failing id does not abort the rest.
func (s *Service) MarkRead(ctx context.Context, chatID chat.ID, messageIDs []chat.MessageID, requesterID user.ID) {
	for _, id := range messageIDs {
		if _, err := s.UpdateMessageStatus(ctx, id, chat.StatusRead, requesterID); err != nil {
			s.log().Debug("mark read skipped", "chat_id", chatID, "message_id", id, "error", err)
		}
	}
}

func (s *Service) liveMessage(ctx context.Context, id chat.MessageID) (*chat.Message, error) {
	m, err := s.Messages.ByID(ctx, id)
	if err != nil {
		return nil, chat.ErrNotFound
	}
	if m.IsDeleted() {
		return nil, chat.ErrNotFound
	}
	return m, nil
}

func (s *Service) publish(ctx context.Context, evts []events.DomainEvent) {
	if s.Bus == nil || len(evts) == 0 {
		return
	}
	s.Bus.Publish(ctx, evts...)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
