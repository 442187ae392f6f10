package chat

import (
	"time"

	"gatherly/internal/domain/user"
)

type ParticipantsAction string

const (
	ParticipantsAdded   ParticipantsAction = "added"
	ParticipantsRemoved ParticipantsAction = "removed"
)

type Created struct {
	ChatID       ID
	Kind         Kind
	Title        string
	CreatorID    user.ID
	EventID      string
	Participants []user.ID
	At           time.Time
}

func (e Created) EventName() string     { return "chat.created" }
func (e Created) AggregateID() string   { return string(e.ChatID) }
func (e Created) OccurredAt() time.Time { return e.At }

type ParticipantsChanged struct {
	ChatID ID
	Action ParticipantsAction
	Delta  []user.ID
	At     time.Time
}

func (e ParticipantsChanged) EventName() string     { return "chat.participants.changed" }
func (e ParticipantsChanged) AggregateID() string   { return string(e.ChatID) }
func (e ParticipantsChanged) OccurredAt() time.Time { return e.At }

type Deactivated struct {
	ChatID ID
	At     time.Time
}

func (e Deactivated) EventName() string     { return "chat.deactivated" }
func (e Deactivated) AggregateID() string   { return string(e.ChatID) }
func (e Deactivated) OccurredAt() time.Time { return e.At }

type Renamed struct {
	ChatID ID
	Title  string
	At     time.Time
}

func (e Renamed) EventName() string     { return "chat.renamed" }
func (e Renamed) AggregateID() string   { return string(e.ChatID) }
func (e Renamed) OccurredAt() time.Time { return e.At }

type MessageCreated struct {
	MessageID MessageID
	ChatID    ID
	SenderID  user.ID
	Kind      MessageKind
	Payload   Payload
	At        time.Time
}

func (e MessageCreated) EventName() string     { return "message.created" }
func (e MessageCreated) AggregateID() string   { return string(e.ChatID) }
func (e MessageCreated) OccurredAt() time.Time { return e.At }

type MessageStatusChanged struct {
	MessageID MessageID
	ChatID    ID
	Status    Status
	At        time.Time
}

func (e MessageStatusChanged) EventName() string     { return "message.status.changed" }
func (e MessageStatusChanged) AggregateID() string   { return string(e.ChatID) }
func (e MessageStatusChanged) OccurredAt() time.Time { return e.At }

type MessageUpdated struct {
	MessageID MessageID
	ChatID    ID
	Payload   Payload
	At        time.Time
}

func (e MessageUpdated) EventName() string     { return "message.updated" }
func (e MessageUpdated) AggregateID() string   { return string(e.ChatID) }
func (e MessageUpdated) OccurredAt() time.Time { return e.At }

type MessageDeleted struct {
	MessageID MessageID
	ChatID    ID
	At        time.Time
}

func (e MessageDeleted) EventName() string     { return "message.deleted" }
func (e MessageDeleted) AggregateID() string   { return string(e.ChatID) }
func (e MessageDeleted) OccurredAt() time.Time { return e.At }

type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
)

// PresenceChanged is global rather than per-chat: AggregateID carries the
// user whose last (or first) live session changed.
type PresenceChanged struct {
	UserID user.ID
	Status PresenceStatus
	At     time.Time
}

func (e PresenceChanged) EventName() string     { return "presence.changed" }
func (e PresenceChanged) AggregateID() string   { return string(e.UserID) }
func (e PresenceChanged) OccurredAt() time.Time { return e.At }
