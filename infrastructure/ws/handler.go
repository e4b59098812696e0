package ws

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/runtime"
	"chat-relay/services"
)

type inboundFrame struct {
	Content string `json:"content"`
}

type errorFrame struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// Handler attaches WebSocket sessions to rooms. Authentication uses the
// same bearer token as the HTTP API, carried in the "token" query
// parameter since browsers cannot set headers on WebSocket upgrades.
type Handler struct {
	log      *slog.Logger
	auth     services.IAuthService
	rooms    services.IRoomService
	chat     services.IChatService
	registry *runtime.Registry

	upgrader      websocket.Upgrader
	bufferSize    int
	backfillLimit int
	maxFrameSize  int64
}

func NewHandler(auth services.IAuthService, rooms services.IRoomService, chat services.IChatService,
	registry *runtime.Registry, bufferSize, backfillLimit int, maxFrameSize int64, log *slog.Logger) *Handler {
	return &Handler{
		log:      log,
		auth:     auth,
		rooms:    rooms,
		chat:     chat,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		bufferSize:    bufferSize,
		backfillLimit: backfillLimit,
		maxFrameSize:  maxFrameSize,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/rooms/{room_id}", h.attach)
}

func (h *Handler) attach(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseInt(r.PathValue("room_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}
	room := domain.RoomID(roomID)

	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	user, err := h.auth.Authenticate(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	if err := h.rooms.EnsureMember(room, user); err != nil {
		switch {
		case stderrors.Is(err, errors.ErrRoomNotFound):
			http.Error(w, "room not found", http.StatusNotFound)
		case stderrors.Is(err, errors.ErrNotAMember):
			http.Error(w, "not a member of this room", http.StatusForbidden)
		default:
			h.log.Error("Membership check failed", "room", room, "user", user, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("Upgrade failed", "room", room, "user", user, "error", err)
		return
	}

	sess := newSession(conn, user, room, h.bufferSize, h.log)

	// Backfill before the session joins the live flow, so history always
	// precedes realtime messages on the wire.
	h.backfill(sess)

	if err := h.registry.Register(room, sess); err != nil {
		h.log.Error("Register failed", "room", room, "session", sess.ID(), "error", err)
		_ = conn.Close()
		return
	}
	h.chat.AnnounceJoin(room, user, sess.ID())
	h.log.Info("Session attached", "room", room, "user", user, "session", sess.ID())

	go sess.writePump()
	h.readLoop(r, sess)

	h.registry.Unregister(room, sess)
	h.chat.AnnounceLeave(room, user, sess.ID())
	sess.closeSend()
	_ = conn.Close()
	h.log.Info("Session detached", "room", room, "user", user, "session", sess.ID())
}

func (h *Handler) backfill(sess *Session) {
	messages, err := h.chat.Recent(sess.room, h.backfillLimit)
	if err != nil {
		h.log.Warn("Backfill failed", "room", sess.room, "session", sess.ID(), "error", err)
		return
	}
	for _, msg := range messages {
		frame, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		if err := sess.enqueue(frame); err != nil {
			h.log.Warn("Backfill truncated", "room", sess.room, "session", sess.ID(), "error", err)
			return
		}
	}
}

func (h *Handler) readLoop(r *http.Request, sess *Session) {
	conn := sess.conn
	conn.SetReadLimit(frameLimit(h.maxFrameSize))
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("Session read error", "session", sess.ID(), "error", err)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			h.sendError(sess, "malformed_frame", false)
			continue
		}

		if _, err := h.chat.Send(r.Context(), sess, sess.room, sess.user, frame.Content); err != nil {
			code, retryable := classify(err)
			h.sendError(sess, code, retryable)
		}
	}
}

func (h *Handler) sendError(sess *Session, code string, retryable bool) {
	frame, err := json.Marshal(errorFrame{Error: code, Retryable: retryable})
	if err != nil {
		return
	}
	if err := sess.enqueue(frame); err != nil {
		h.log.Debug("Error frame dropped", "session", sess.ID(), "error", err)
	}
}

func classify(err error) (string, bool) {
	switch {
	case stderrors.Is(err, errors.ErrEmptyContent):
		return "empty_content", false
	case stderrors.Is(err, errors.ErrContentTooLong):
		return "content_too_long", false
	case stderrors.Is(err, errors.ErrStoreUnavailable):
		return "store_unavailable", true
	default:
		return "internal", true
	}
}

func frameLimit(limit int64) int64 {
	if limit <= 0 {
		return 64 << 10
	}
	return limit
}
