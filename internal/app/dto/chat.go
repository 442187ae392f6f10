package dto

import "time"

// Chat describes a conversation container over the wire.
type Chat struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	Title          string    `json:"title,omitempty"`
	CreatorID      string    `json:"creator_id"`
	EventID        string    `json:"event_id,omitempty"`
	Participants   []string  `json:"participants"`
	IsActive       bool      `json:"is_active"`
	UnreadCount    int       `json:"unread_count,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// ChatList is a plain collection of the caller's chats.
type ChatList struct {
	Items []Chat `json:"items"`
}

// CreateChatRequest is the inbound shape for chat creation.
type CreateChatRequest struct {
	Kind           string   `json:"kind" binding:"required"`
	ParticipantIDs []string `json:"participant_ids"`
	Title          string   `json:"title"`
	EventID        string   `json:"event_id"`
}

// Message carries a single message payload.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	SenderID  string    `json:"sender_id"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text,omitempty"`
	MediaRef  string    `json:"media_ref,omitempty"`
	Latitude  float64   `json:"latitude,omitempty"`
	Longitude float64   `json:"longitude,omitempty"`
	Status    string    `json:"status"`
	IsEdited  bool      `json:"is_edited"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageList is a paginated message page, newest first.
type MessageList struct {
	Items  []Message `json:"items"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

// SendMessageRequest is the inbound shape for the message pipeline.
type SendMessageRequest struct {
	Kind      string   `json:"kind" binding:"required"`
	Text      string   `json:"text"`
	MediaRef  string   `json:"media_ref"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// EditMessageRequest overwrites only the fields that are present.
type EditMessageRequest struct {
	Text     *string `json:"text"`
	MediaRef *string `json:"media_ref"`
}

// UpdateStatusRequest advances a message's delivery status.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// AddParticipantsRequest unions user ids into a chat's membership.
type AddParticipantsRequest struct {
	UserIDs []string `json:"user_ids" binding:"required"`
}
