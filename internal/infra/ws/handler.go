package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"gatherly/internal/domain/chat"
	"gatherly/internal/domain/user"
)

// Authenticator is the external identity capability at the connection
// boundary: a failed verification refuses the connection.
type Authenticator interface {
	Authenticate(token string) (user.ID, error)
}

// ReadMarker advances messages to READ on behalf of a connection, best
// effort per id.
type ReadMarker interface {
	MarkRead(ctx context.Context, chatID chat.ID, messageIDs []chat.MessageID, requesterID user.ID)
}

// Handler upgrades authenticated HTTP requests to live sessions and pumps
// inbound frames (typing signals, read receipts).
type Handler struct {
	Registry         *Registry
	Auth             Authenticator
	Reads            ReadMarker
	Logger           *slog.Logger
	HandshakeTimeout time.Duration
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type typingFrame struct {
	ChatID   chat.ID `json:"chatId"`
	IsTyping bool    `json:"isTyping"`
}

type readFrame struct {
	ChatID     chat.ID          `json:"chatId"`
	MessageIDs []chat.MessageID `json:"messageIds"`
}

func (h *Handler) Serve(c *gin.Context) {
	token := bearerOrQueryToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
		return
	}
	userID, err := h.Auth.Authenticate(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	upgrader := websocket.Upgrader{
		HandshakeTimeout: h.handshakeTimeout(),
		CheckOrigin:      func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log().Debug("upgrade failed", "user_id", userID, "error", err)
		return
	}

	sess, err := h.Registry.Register(c.Request.Context(), userID, conn)
	if err != nil {
		h.log().Error("session registration failed", "user_id", userID, "error", err)
		_ = conn.Close()
		return
	}
	defer h.Registry.Unregister(sess)

	for {
		var in inboundFrame
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		h.handleInbound(c.Request.Context(), userID, in)
	}
}

func (h *Handler) handleInbound(ctx context.Context, userID user.ID, in inboundFrame) {
	switch in.Event {
	case "typing":
		var t typingFrame
		if err := json.Unmarshal(in.Data, &t); err != nil || t.ChatID == "" {
			return
		}
		h.Registry.BroadcastTyping(t.ChatID, userID, t.IsTyping)
	case "read":
		var rf readFrame
		if err := json.Unmarshal(in.Data, &rf); err != nil || len(rf.MessageIDs) == 0 {
			return
		}
		if h.Reads != nil {
			h.Reads.MarkRead(ctx, rf.ChatID, rf.MessageIDs, userID)
		}
	default:
		h.log().Debug("unknown inbound frame", "event", in.Event, "user_id", userID)
	}
}

func (h *Handler) handshakeTimeout() time.Duration {
	if h.HandshakeTimeout > 0 {
		return h.HandshakeTimeout
	}
	return 10 * time.Second
}

func (h *Handler) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func bearerOrQueryToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return strings.TrimSpace(c.Query("token"))
}
