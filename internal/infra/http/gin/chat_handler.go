package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"gatherly/internal/app/dto"
	"gatherly/internal/app/membership"
	"gatherly/internal/app/pipeline"
	"gatherly/internal/domain/chat"
	"gatherly/internal/domain/user"
)

// ChatHandler is the thin request/response surface over the membership
// service and the message pipeline. Each endpoint maps 1:1 to one service
// operation; all rules live below.
type ChatHandler struct {
	Membership *membership.Service
	Pipeline   *pipeline.Service
	Logger     *slog.Logger
}

func (h ChatHandler) Create(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	var req dto.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	created, err := h.Membership.CreateChat(c.Request.Context(), membership.CreateChatParams{
		Kind:           chat.Kind(strings.ToUpper(req.Kind)),
		CreatorID:      principal,
		ParticipantIDs: toUserIDs(req.ParticipantIDs),
		Title:          req.Title,
		EventID:        req.EventID,
	})
	if err != nil {
		h.respondError(c, err, "create chat")
		return
	}
	c.JSON(http.StatusCreated, toChatDTO(created, 0))
}

func (h ChatHandler) List(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	summaries, err := h.Membership.ListChats(c.Request.Context(), principal)
	if err != nil {
		h.respondError(c, err, "list chats")
		return
	}
	out := dto.ChatList{Items: make([]dto.Chat, 0, len(summaries))}
	for _, s := range summaries {
		out.Items = append(out.Items, toChatDTO(s.Chat, s.UnreadCount))
	}
	c.JSON(http.StatusOK, out)
}

func (h ChatHandler) Get(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	found, err := h.Membership.ValidateAccess(c.Request.Context(), chat.ID(c.Param("id")), principal)
	if err != nil {
		h.respondError(c, err, "get chat")
		return
	}
	c.JSON(http.StatusOK, toChatDTO(found, 0))
}

func (h ChatHandler) AddParticipants(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	var req dto.AddParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.UserIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_ids is required"})
		return
	}
	updated, err := h.Membership.AddParticipants(c.Request.Context(), chat.ID(c.Param("id")), principal, toUserIDs(req.UserIDs))
	if err != nil {
		h.respondError(c, err, "add participants")
		return
	}
	c.JSON(http.StatusOK, toChatDTO(updated, 0))
}

func (h ChatHandler) RemoveParticipant(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	err := h.Membership.RemoveParticipant(c.Request.Context(), chat.ID(c.Param("id")), user.ID(c.Param("userId")), principal)
	if err != nil {
		h.respondError(c, err, "remove participant")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h ChatHandler) Deactivate(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.Membership.Deactivate(c.Request.Context(), chat.ID(c.Param("id")), principal); err != nil {
		h.respondError(c, err, "deactivate chat")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h ChatHandler) SendMessage(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	payload := chat.Payload{Text: req.Text, MediaRef: req.MediaRef}
	if req.Latitude != nil {
		payload.Latitude = *req.Latitude
	}
	if req.Longitude != nil {
		payload.Longitude = *req.Longitude
	}
	msg, err := h.Pipeline.SendMessage(c.Request.Context(), chat.ID(c.Param("id")), principal, chat.MessageKind(strings.ToUpper(req.Kind)), payload)
	if err != nil {
		h.respondError(c, err, "send message")
		return
	}
	c.JSON(http.StatusCreated, toMessageDTO(msg))
}

func (h ChatHandler) ListMessages(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	limit := parsePositiveInt(c.Query("limit"), 50)
	offset := parseNonNegativeInt(c.Query("offset"), 0)
	messages, err := h.Pipeline.ListMessages(c.Request.Context(), chat.ID(c.Param("id")), principal, limit, offset)
	if err != nil {
		h.respondError(c, err, "list messages")
		return
	}
	out := dto.MessageList{Items: make([]dto.Message, 0, len(messages)), Limit: limit, Offset: offset}
	for _, m := range messages {
		out.Items = append(out.Items, toMessageDTO(m))
	}
	c.JSON(http.StatusOK, out)
}

func (h ChatHandler) EditMessage(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	var req dto.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	msg, err := h.Pipeline.EditMessage(c.Request.Context(), chat.MessageID(c.Param("id")), principal, req.Text, req.MediaRef)
	if err != nil {
		h.respondError(c, err, "edit message")
		return
	}
	c.JSON(http.StatusOK, toMessageDTO(msg))
}

func (h ChatHandler) UpdateStatus(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	msg, err := h.Pipeline.UpdateMessageStatus(c.Request.Context(), chat.MessageID(c.Param("id")), chat.Status(strings.ToUpper(req.Status)), principal)
	if err != nil {
		h.respondError(c, err, "update status")
		return
	}
	c.JSON(http.StatusOK, toMessageDTO(msg))
}

func (h ChatHandler) DeleteMessage(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.Pipeline.DeleteMessage(c.Request.Context(), chat.MessageID(c.Param("id")), principal); err != nil {
		h.respondError(c, err, "delete message")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h ChatHandler) respondError(c *gin.Context, err error, action string) {
	if h.Logger != nil {
		h.Logger.Debug("chat call rejected", "action", action, "error", err)
	}
	var payloadErr *chat.PayloadError
	switch {
	case errors.As(err, &payloadErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload", "field": payloadErr.Field})
	case errors.Is(err, chat.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, chat.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, chat.ErrInvalidMembership):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid membership"})
	case errors.Is(err, chat.ErrInvalidPayload):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
	case errors.Is(err, chat.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid status transition"})
	default:
		if h.Logger != nil {
			h.Logger.Error("chat call failed", "action", action, "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func toChatDTO(c *chat.Chat, unread int) dto.Chat {
	participants := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		participants = append(participants, string(p))
	}
	return dto.Chat{
		ID:             string(c.ID),
		Kind:           string(c.Kind),
		Title:          c.Title,
		CreatorID:      string(c.CreatorID),
		EventID:        c.EventID,
		Participants:   participants,
		IsActive:       c.IsActive,
		UnreadCount:    unread,
		CreatedAt:      c.CreatedAt,
		LastActivityAt: c.LastActivityAt,
	}
}

func toMessageDTO(m *chat.Message) dto.Message {
	return dto.Message{
		ID:        string(m.ID),
		ChatID:    string(m.ChatID),
		SenderID:  string(m.SenderID),
		Kind:      string(m.Kind),
		Text:      m.Payload.Text,
		MediaRef:  m.Payload.MediaRef,
		Latitude:  m.Payload.Latitude,
		Longitude: m.Payload.Longitude,
		Status:    string(m.Status),
		IsEdited:  m.IsEdited,
		CreatedAt: m.CreatedAt,
	}
}

func toUserIDs(ids []string) []user.ID {
	out := make([]user.ID, 0, len(ids))
	for _, id := range ids {
		out = append(out, user.ID(id))
	}
	return out
}

func parsePositiveInt(raw string, def int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return def
	}
	return value
}

func parseNonNegativeInt(raw string, def int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 0 {
		return def
	}
	return value
}

var _ ChatHTTP = (*ChatHandler)(nil)
