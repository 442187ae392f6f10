package membership

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gatherly/internal/domain/chat"
	"gatherly/internal/domain/shared/events"
	"gatherly/internal/domain/user"
)

// Service owns the rule "who may read/write which chat". Every other
// component goes through ValidateAccess before touching a chat; the
// external-event bridge mutates EVENT chats only through this service.
type Service struct {
	Chats    chat.Repository
	Messages chat.MessageRepository
	Users    user.Repository
	Bus      events.Publisher
	Logger   *slog.Logger

	// Now is overridable in tests; zero value means time.Now.
	Now func() time.Time
}

type CreateChatParams struct {
	Kind           chat.Kind
	CreatorID      user.ID
	ParticipantIDs []user.ID
	Title          string
	EventID        string
}

// ChatSummary pairs a chat with the caller's unread count for listings.
type ChatSummary struct {
	Chat        *chat.Chat
	UnreadCount int
}

// CreateChat validates the participant set for the requested kind and
// persists a new chat. DIRECT creation is idempotent by unordered user pair,
// EVENT creation by external event id: an existing active chat is returned
// instead of a duplicate.
func (s *Service) CreateChat(ctx context.Context, params CreateChatParams) (*chat.Chat, error) {
	if err := s.ensureUsersExist(ctx, append([]user.ID{params.CreatorID}, params.ParticipantIDs...)); err != nil {
		return nil, err
	}

	switch params.Kind {
	case chat.KindDirect:
		others := withoutUser(params.ParticipantIDs, params.CreatorID)
		if len(others) != 1 {
			return nil, chat.ErrInvalidMembership
		}
		existing, err := s.Chats.ActiveDirectByPair(ctx, params.CreatorID, others[0])
		if err == nil && existing != nil {
			return existing, nil
		}
	case chat.KindEvent:
		existing, err := s.Chats.ActiveByEventID(ctx, params.EventID)
		if err == nil && existing != nil {
			return existing, nil
		}
	}

	c, err := chat.New(chat.CreateParams{
		ID:           chat.ID(uuid.NewString()),
		Kind:         params.Kind,
		Title:        params.Title,
		CreatorID:    params.CreatorID,
		EventID:      params.EventID,
		Participants: params.ParticipantIDs,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Chats.Save(ctx, c); err != nil {
		return nil, err
	}
	s.publish(ctx, c.FlushEvents())
	s.log().Info("chat created", "chat_id", c.ID, "kind", c.Kind, "participants", len(c.Participants))
	return c, nil
}

// ValidateAccess is the single authorization gate. Missing and inactive
// chats are indistinguishable to the caller.
func (s *Service) ValidateAccess(ctx context.Context, chatID chat.ID, userID user.ID) (*chat.Chat, error) {
	c, err := s.Chats.ByID(ctx, chatID)
	if err != nil {
		return nil, chat.ErrNotFound
	}
	if !c.IsActive {
		return nil, chat.ErrNotFound
	}
	if !c.HasParticipant(userID) {
		return nil, chat.ErrForbidden
	}
	return c, nil
}

// AddParticipants unions the given ids into the chat membership. The union
// is idempotent: already-present ids are skipped and only the real delta is
// published. GROUP and EVENT chats are creator-gated; the bridge acts as the
// creator when it mirrors an external roster.
func (s *Service) AddParticipants(ctx context.Context, chatID chat.ID, requesterID user.ID, userIDs []user.ID) (*chat.Chat, error) {
	c, err := s.activeChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if c.CreatorID != requesterID {
		return nil, chat.ErrForbidden
	}
	if err := s.ensureUsersExist(ctx, userIDs); err != nil {
		return nil, err
	}
	added, err := c.AddParticipants(userIDs, s.now())
	if err != nil {
		return nil, err
	}
	if len(added) == 0 {
		return c, nil
	}
	if err := s.Chats.Save(ctx, c); err != nil {
		return nil, err
	}
	s.publish(ctx, c.FlushEvents())
	return c, nil
}

// RemoveParticipant allows self-leave, or removal by the chat creator.
func (s *Service) RemoveParticipant(ctx context.Context, chatID chat.ID, userID, requesterID user.ID) error {
	c, err := s.activeChat(ctx, chatID)
	if err != nil {
		return err
	}
	if requesterID != userID && requesterID != c.CreatorID {
		return chat.ErrForbidden
	}
	if err := c.RemoveParticipant(userID, s.now()); err != nil {
		return err
	}
	if err := s.Chats.Save(ctx, c); err != nil {
		return err
	}
	s.publish(ctx, c.FlushEvents())
	return nil
}

// Deactivate retires a chat. History is retained; no further writes or
// fan-out occur. Creator only.
func (s *Service) Deactivate(ctx context.Context, chatID chat.ID, requesterID user.ID) error {
	c, err := s.activeChat(ctx, chatID)
	if err != nil {
		return err
	}
	if c.CreatorID != requesterID {
		return chat.ErrForbidden
	}
	c.Deactivate(s.now())
	if err := s.Chats.Save(ctx, c); err != nil {
		return err
	}
	s.publish(ctx, c.FlushEvents())
	return nil
}

// RenameChat is the bridge's narrow title projection; it is not exposed over
// HTTP and performs no requester check.
func (s *Service) RenameChat(ctx context.Context, chatID chat.ID, title string) error {
	c, err := s.activeChat(ctx, chatID)
	if err != nil {
		return err
	}
	if !c.Rename(title, s.now()) {
		return nil
	}
	if err := s.Chats.Save(ctx, c); err != nil {
		return err
	}
	s.publish(ctx, c.FlushEvents())
	return nil
}

// ActiveEventChat resolves the 1:1 event <-> chat mapping for the bridge.
func (s *Service) ActiveEventChat(ctx context.Context, eventID string) (*chat.Chat, error) {
	c, err := s.Chats.ActiveByEventID(ctx, eventID)
	if err != nil || c == nil {
		return nil, chat.ErrNotFound
	}
	return c, nil
}

// ListChats returns the caller's active chats with unread counts.
func (s *Service) ListChats(ctx context.Context, userID user.ID) ([]ChatSummary, error) {
	chats, err := s.Chats.ActiveByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	summaries := make([]ChatSummary, 0, len(chats))
	for _, c := range chats {
		unread, err := s.Messages.UnreadCount(ctx, c.ID, userID)
		if err != nil {
			s.log().Warn("unread count failed", "chat_id", c.ID, "error", err)
		}
		summaries = append(summaries, ChatSummary{Chat: c, UnreadCount: unread})
	}
	return summaries, nil
}

func (s *Service) activeChat(ctx context.Context, chatID chat.ID) (*chat.Chat, error) {
	c, err := s.Chats.ByID(ctx, chatID)
	if err != nil {
		return nil, chat.ErrNotFound
	}
	if !c.IsActive {
		return nil, chat.ErrNotFound
	}
	return c, nil
}

func (s *Service) ensureUsersExist(ctx context.Context, ids []user.ID) error {
	for _, id := range ids {
		if _, err := s.Users.ByID(ctx, id); err != nil {
			return fmt.Errorf("%w: user %s", chat.ErrNotFound, id)
		}
	}
	return nil
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

func withoutUser(ids []user.ID, exclude user.ID) []user.ID {
	seen := make(map[user.ID]struct{}, len(ids))
	out := make([]user.ID, 0, len(ids))
	for _, id := range ids {
		if id == exclude || id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
