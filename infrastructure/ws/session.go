// Package ws exposes the chat service's long-lived transport: one
// authenticated WebSocket per session, attached to exactly one room for
// its lifetime.
package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat-relay/domain"
	"chat-relay/errors"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Session is one authenticated client's attachment to one room. The
// registry and the pipeline only ever see it through contract.SessionSink:
// a non-blocking Deliver into the bounded outbound queue, and Kick to
// force the transport closed.
type Session struct {
	id   uuid.UUID
	user domain.UserID
	room domain.RoomID
	conn *websocket.Conn
	log  *slog.Logger

	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newSession(conn *websocket.Conn, user domain.UserID, room domain.RoomID,
	bufferSize int, log *slog.Logger) *Session {
	return &Session{
		id:   uuid.New(),
		user: user,
		room: room,
		conn: conn,
		log:  log,
		send: make(chan []byte, bufferSize),
	}
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) User() domain.UserID {
	return s.user
}

// Deliver serializes the envelope onto the outbound queue. It never
// blocks: a saturated queue reports ErrSlowConsumer and leaves the
// disconnect decision to the caller.
func (s *Session) Deliver(env domain.Envelope) error {
	frame, err := json.Marshal(env.Frame())
	if err != nil {
		return err
	}
	return s.enqueue(frame)
}

// Kick force-closes the transport; the read loop observes the closed
// connection and runs the normal cleanup path.
func (s *Session) Kick() {
	_ = s.conn.Close()
}

func (s *Session) enqueue(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.ErrSessionClosed
	}
	select {
	case s.send <- frame:
		return nil
	default:
		return errors.ErrSlowConsumer
	}
}

// closeSend seals the outbound queue, which terminates the write pump.
// Guarded so a concurrent Deliver can never hit a closed channel.
func (s *Session) closeSend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// writePump drains the outbound queue onto the wire and keeps the
// connection alive with periodic pings. Write failures terminate the
// pump; they are never propagated to the registry's broadcast path.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Debug("Write failed, closing session", "session", s.id, "error", err)
				return
			}
		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
