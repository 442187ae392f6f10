package ws

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"gatherly/internal/domain/user"
)

// Frame is the wire envelope for every server->client and client->server
// message on the real-time channel.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Session is one live transport connection bound to one authenticated
// identity. A user may own many concurrently (multi-device). Sessions are
// in-memory only and die with the connection.
type Session struct {
	id     string
	userID user.ID
	conn   *websocket.Conn
	send   chan Frame
	done   chan struct{}
	once   sync.Once
}

func newSession(id string, userID user.ID, conn *websocket.Conn, buffer int) *Session {
	if buffer <= 0 {
		buffer = 64
	}
	return &Session{
		id:     id,
		userID: userID,
		conn:   conn,
		send:   make(chan Frame, buffer),
		done:   make(chan struct{}),
	}
}

func (s *Session) UserID() user.ID { return s.userID }

// enqueue offers a frame to the outbound buffer without blocking. A full
// buffer means a slow consumer: the frame is dropped, delivery failure stays
// local to this session.
func (s *Session) enqueue(f Frame) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- f:
		return true
	default:
		return false
	}
}

// writePump drains the outbound buffer onto the socket. The first write
// failure reaps the session via onDead.
func (s *Session) writePump(log *slog.Logger, onDead func(*Session)) {
	for {
		select {
		case <-s.done:
			return
		case f := <-s.send:
			if err := s.conn.WriteJSON(f); err != nil {
				log.Debug("session write failed", "session_id", s.id, "user_id", s.userID, "error", err)
				onDead(s)
				return
			}
		}
	}
}

func (s *Session) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}
