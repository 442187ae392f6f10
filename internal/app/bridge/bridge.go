package bridge

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"gatherly/internal/app/membership"
	"gatherly/internal/domain/chat"
	"gatherly/internal/domain/user"
)

// ExternalEvent is the lifecycle payload the event/plan subsystem emits.
type ExternalEvent struct {
	EventID    string `json:"eventId"`
	Title      string `json:"title"`
	CreatorID  string `json:"creatorId"`
	Visibility string `json:"visibility"`
}

// MembershipChange signals a user joining or leaving an external roster.
type MembershipChange struct {
	EventID string `json:"eventId"`
	UserID  string `json:"userId"`
	Status  string `json:"status"`
}

// Bridge keeps the 1:1 "external event <-> EVENT chat" invariant. It is the
// only writer that mutates EVENT chats from outside the direct API, and it
// always goes through the membership service. Redelivered signals are
// absorbed by existence checks, never treated as errors.
type Bridge struct {
	Membership *membership.Service
	Logger     *slog.Logger
}

// HandleCreated creates the event's chat unless one already exists.
func (b *Bridge) HandleCreated(ctx context.Context, evt ExternalEvent) error {
	if evt.EventID == "" || evt.CreatorID == "" {
		return chat.ErrInvalidMembership
	}
	c, err := b.Membership.CreateChat(ctx, membership.CreateChatParams{
		Kind:      chat.KindEvent,
		CreatorID: user.ID(evt.CreatorID),
		Title:     evt.Title,
		EventID:   evt.EventID,
	})
	if err != nil {
		return err
	}
	b.log().Info("event chat ensured", "event_id", evt.EventID, "chat_id", c.ID)
	return nil
}

// HandleUpdated projects a title change onto the chat. Idempotent: a
// matching title is a no-op, a missing chat is ignored.
func (b *Bridge) HandleUpdated(ctx context.Context, evt ExternalEvent) error {
	c, err := b.Membership.ActiveEventChat(ctx, evt.EventID)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			return nil
		}
		return err
	}
	return b.Membership.RenameChat(ctx, c.ID, evt.Title)
}

// HandleDeleted deactivates the event's chat; history is retained.
func (b *Bridge) HandleDeleted(ctx context.Context, evt ExternalEvent) error {
	c, err := b.Membership.ActiveEventChat(ctx, evt.EventID)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			return nil
		}
		return err
	}
	return b.Membership.Deactivate(ctx, c.ID, c.CreatorID)
}

// HandleMembershipChanged mirrors roster moves onto chat membership: an
// approved/going join adds the user (idempotent), a pending join does
// nothing, a leave is applied as a self-leave.
func (b *Bridge) HandleMembershipChanged(ctx context.Context, change MembershipChange) error {
	c, err := b.Membership.ActiveEventChat(ctx, change.EventID)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			return nil
		}
		return err
	}
	uid := user.ID(change.UserID)
	switch strings.ToUpper(strings.TrimSpace(change.Status)) {
	case "GOING", "APPROVED":
		_, err := b.Membership.AddParticipants(ctx, c.ID, c.CreatorID, []user.ID{uid})
		return err
	case "LEFT":
		err := b.Membership.RemoveParticipant(ctx, c.ID, uid, uid)
		if errors.Is(err, chat.ErrNotFound) {
			// Already off the roster; a redelivered leave is a no-op.
			return nil
		}
		return err
	default:
		// Pending and unknown statuses never touch membership.
		return nil
	}
}

func (b *Bridge) log() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}
