package chat

import (
	"context"
	"strings"
	"time"

	"gatherly/internal/domain/shared/events"
	"gatherly/internal/domain/user"
)

type MessageID string

type MessageKind string

const (
	MessageText     MessageKind = "TEXT"
	MessageImage    MessageKind = "IMAGE"
	MessageLocation MessageKind = "LOCATION"
)

type Status string

const (
	StatusSent      Status = "SENT"
	StatusDelivered Status = "DELIVERED"
	StatusRead      Status = "READ"
)

// statusRank totally orders delivery states: SENT < DELIVERED < READ.
var statusRank = map[Status]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusRead:      2,
}

// Payload carries the kind-specific content of a message.
type Payload struct {
	Text      string
	MediaRef  string
	Latitude  float64
	Longitude float64
}

// Message is an immutable-content record belonging to one chat. Content may
// only be rewritten by its sender; delivery status only moves forward.
type Message struct {
	ID        MessageID
	ChatID    ID
	SenderID  user.ID
	Kind      MessageKind
	Payload   Payload
	Status    Status
	IsEdited  bool
	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	events.EventRecorder
}

// MessageRepository persists messages. ListByChat orders by creation time
// descending with a stable id tie-break and excludes soft-deleted rows.
type MessageRepository interface {
	ByID(ctx context.Context, id MessageID) (*Message, error)
	Save(ctx context.Context, m *Message) error
	ListByChat(ctx context.Context, chatID ID, limit, offset int) ([]*Message, error)
	UnreadCount(ctx context.Context, chatID ID, userID user.ID) (int, error)
}

type MessageParams struct {
	ID        MessageID
	ChatID    ID
	SenderID  user.ID
	Kind      MessageKind
	Payload   Payload
	CreatedAt time.Time
}

func NewMessage(params MessageParams) (*Message, error) {
	if err := validatePayload(params.Kind, params.Payload); err != nil {
		return nil, err
	}
	now := params.CreatedAt.UTC()
	m := &Message{
		ID:        params.ID,
		ChatID:    params.ChatID,
		SenderID:  params.SenderID,
		Kind:      params.Kind,
		Payload:   params.Payload,
		Status:    StatusSent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.Record(MessageCreated{MessageID: m.ID, ChatID: m.ChatID, SenderID: m.SenderID, Kind: m.Kind, Payload: m.Payload, At: now})
	return m, nil
}

func (m *Message) IsDeleted() bool {
	return m.DeletedAt != nil
}

// AdvanceStatus applies the monotone delivery state machine. Equal-to-current
// succeeds as an idempotent no-op (changed=false); a downgrade is rejected
// without touching the record.
func (m *Message) AdvanceStatus(to Status, now time.Time) (bool, error) {
	target, ok := statusRank[to]
	if !ok {
		return false, fieldError("status")
	}
	current := statusRank[m.Status]
	if target < current {
		return false, ErrInvalidTransition
	}
	if target == current {
		return false, nil
	}
	m.Status = to
	m.UpdatedAt = now.UTC()
	m.Record(MessageStatusChanged{MessageID: m.ID, ChatID: m.ChatID, Status: to, At: m.UpdatedAt})
	return true, nil
}

// EditContent overwrites only the provided fields and marks the message
// edited. The result must still satisfy the message kind's payload rules.
func (m *Message) EditContent(text, mediaRef *string, now time.Time) error {
	next := m.Payload
	if text != nil {
		next.Text = *text
	}
	if mediaRef != nil {
		next.MediaRef = *mediaRef
	}
	if err := validatePayload(m.Kind, next); err != nil {
		return err
	}
	m.Payload = next
	m.IsEdited = true
	m.UpdatedAt = now.UTC()
	m.Record(MessageUpdated{MessageID: m.ID, ChatID: m.ChatID, Payload: m.Payload, At: m.UpdatedAt})
	return nil
}

func (m *Message) SoftDelete(now time.Time) {
	if m.IsDeleted() {
		return
	}
	at := now.UTC()
	m.DeletedAt = &at
	m.UpdatedAt = at
	m.Record(MessageDeleted{MessageID: m.ID, ChatID: m.ChatID, At: at})
}

func validatePayload(kind MessageKind, p Payload) error {
	switch kind {
	case MessageText:
		if strings.TrimSpace(p.Text) == "" {
			return fieldError("text")
		}
	case MessageImage:
		if strings.TrimSpace(p.MediaRef) == "" {
			return fieldError("mediaRef")
		}
	case MessageLocation:
		if p.Latitude < -90 || p.Latitude > 90 {
			return fieldError("latitude")
		}
		if p.Longitude < -180 || p.Longitude > 180 {
			return fieldError("longitude")
		}
	default:
		return fieldError("kind")
	}
	return nil
}
