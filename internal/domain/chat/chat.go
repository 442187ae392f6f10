package chat

import (
	"context"
	"strings"
	"time"

	"gatherly/internal/domain/shared/events"
	"gatherly/internal/domain/user"
)

type ID string

type Kind string

const (
	KindDirect Kind = "DIRECT"
	KindGroup  Kind = "GROUP"
	KindEvent  Kind = "EVENT"
)

// Chat is a conversation container. Structural rules (participant counts,
// kind-specific fields, direct-chat immutability) live here; authorization
// of the requester is the membership service's job.
type Chat struct {
	ID             ID
	Kind           Kind
	Title          string
	CreatorID      user.ID
	EventID        string
	Participants   []user.ID
	IsActive       bool
	CreatedAt      time.Time
	LastActivityAt time.Time
	events.EventRecorder
}

// Repository persists chats. Implementations return ErrNotFound for absent
// ids and never apply business rules of their own.
type Repository interface {
	ByID(ctx context.Context, id ID) (*Chat, error)
	Save(ctx context.Context, c *Chat) error
	// TouchActivity bumps LastActivityAt in place. Narrow by contract:
	// the message path must never replace the aggregate from a stale
	// snapshot and race concurrent membership writes.
	TouchActivity(ctx context.Context, id ID, at time.Time) error
	ActiveByParticipant(ctx context.Context, userID user.ID) ([]*Chat, error)
	ActiveDirectByPair(ctx context.Context, a, b user.ID) (*Chat, error)
	ActiveByEventID(ctx context.Context, eventID string) (*Chat, error)
}

type CreateParams struct {
	ID           ID
	Kind         Kind
	Title        string
	CreatorID    user.ID
	EventID      string
	Participants []user.ID
	CreatedAt    time.Time
}

func New(params CreateParams) (*Chat, error) {
	if params.CreatorID == "" {
		return nil, ErrInvalidMembership
	}
	members := dedupe(append([]user.ID{params.CreatorID}, params.Participants...))
	switch params.Kind {
	case KindDirect:
		if len(members) != 2 {
			return nil, ErrInvalidMembership
		}
	case KindGroup:
		if len(members) < 3 {
			return nil, ErrInvalidMembership
		}
		if strings.TrimSpace(params.Title) == "" {
			return nil, ErrInvalidMembership
		}
	case KindEvent:
		if strings.TrimSpace(params.EventID) == "" {
			return nil, ErrInvalidMembership
		}
	default:
		return nil, ErrInvalidMembership
	}
	now := params.CreatedAt.UTC()
	c := &Chat{
		ID:             params.ID,
		Kind:           params.Kind,
		Title:          strings.TrimSpace(params.Title),
		CreatorID:      params.CreatorID,
		EventID:        params.EventID,
		Participants:   members,
		IsActive:       true,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	c.Record(Created{ChatID: c.ID, Kind: c.Kind, Title: c.Title, CreatorID: c.CreatorID, EventID: c.EventID, Participants: c.ParticipantIDs(), At: now})
	return c, nil
}

func (c *Chat) HasParticipant(id user.ID) bool {
	for _, p := range c.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// ParticipantIDs returns a defensive copy of the participant set.
func (c *Chat) ParticipantIDs() []user.ID {
	return append([]user.ID(nil), c.Participants...)
}

// AddParticipants unions the given ids with the current set and returns the
// ids that were actually new. Direct chats have immutable membership.
func (c *Chat) AddParticipants(ids []user.ID, now time.Time) ([]user.ID, error) {
	if c.Kind == KindDirect {
		return nil, ErrForbidden
	}
	var added []user.ID
	for _, id := range dedupe(ids) {
		if c.HasParticipant(id) {
			continue
		}
		c.Participants = append(c.Participants, id)
		added = append(added, id)
	}
	if len(added) > 0 {
		c.Record(ParticipantsChanged{ChatID: c.ID, Action: ParticipantsAdded, Delta: added, At: now.UTC()})
	}
	return added, nil
}

func (c *Chat) RemoveParticipant(id user.ID, now time.Time) error {
	if c.Kind == KindDirect {
		return ErrForbidden
	}
	for i, p := range c.Participants {
		if p != id {
			continue
		}
		c.Participants = append(c.Participants[:i], c.Participants[i+1:]...)
		c.Record(ParticipantsChanged{ChatID: c.ID, Action: ParticipantsRemoved, Delta: []user.ID{id}, At: now.UTC()})
		return nil
	}
	return ErrNotFound
}

func (c *Chat) Deactivate(now time.Time) {
	if !c.IsActive {
		return
	}
	c.IsActive = false
	c.Record(Deactivated{ChatID: c.ID, At: now.UTC()})
}

// Rename is the narrow title projection used by the external-event bridge.
// It is a no-op when the title already matches.
func (c *Chat) Rename(title string, now time.Time) bool {
	title = strings.TrimSpace(title)
	if title == "" || title == c.Title {
		return false
	}
	c.Title = title
	c.Record(Renamed{ChatID: c.ID, Title: title, At: now.UTC()})
	return true
}

// Touch bumps LastActivityAt after an accepted message.
func (c *Chat) Touch(now time.Time) {
	c.LastActivityAt = now.UTC()
}

func dedupe(ids []user.ID) []user.ID {
	seen := make(map[user.ID]struct{}, len(ids))
	out := make([]user.ID, 0, len(ids))
	for _, id := range ids {
		if id == "" {
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
