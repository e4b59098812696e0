// Package httpapi is the request/response surface of the chat service:
// account management, room management, message history and search. The
// realtime flow lives in infrastructure/ws; this package only covers
// the short-lived calls.
package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"chat-relay/search"
	"chat-relay/services"
)

type Handler struct {
	log   *slog.Logger
	auth  services.IAuthService
	rooms services.IRoomService
	chat  services.IChatService

	historyLimit int
}

func NewHandler(auth services.IAuthService, rooms services.IRoomService, chat services.IChatService,
	historyLimit int, log *slog.Logger) *Handler {
	return &Handler{
		log:          log,
		auth:         auth,
		rooms:        rooms,
		chat:         chat,
		historyLimit: historyLimit,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/register", h.register)
	mux.HandleFunc("POST /auth/login", h.login)
	mux.HandleFunc("GET /auth/me", h.me)
	mux.HandleFunc("POST /rooms", h.createRoom)
	mux.HandleFunc("GET /rooms", h.listRooms)
	mux.HandleFunc("POST /messages", h.postMessage)
	mux.HandleFunc("GET /messages/{room_id}", h.listMessages)
	mux.HandleFunc("GET /search", h.searchMessages)
	mux.HandleFunc("GET /healthz", h.healthz)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, errors.ErrMalformedFrame)
		return
	}
	token, err := h.auth.Register(req.Email, req.Password)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.reply(w, http.StatusCreated, tokenResponse{Token: string(token)})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, errors.ErrMalformedFrame)
		return
	}
	token, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.reply(w, http.StatusOK, tokenResponse{Token: string(token)})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	profile, err := h.auth.Profile(user)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.reply(w, http.StatusOK, userResponse{ID: int64(profile.ID), Email: profile.Email})
}

type createRoomRequest struct {
	Name string `json:"name"`
}

type roomResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (h *Handler) createRoom(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		h.fail(w, errors.ErrMalformedFrame)
		return
	}
	room, err := h.rooms.Create(strings.TrimSpace(req.Name), user)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.reply(w, http.StatusCreated, roomResponse{ID: int64(room.ID), Name: room.Name})
}

func (h *Handler) listRooms(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticate(w, r); !ok {
		return
	}
	rooms, err := h.rooms.List()
	if err != nil {
		h.fail(w, err)
		return
	}
	h.reply(w, http.StatusOK, lo.Map(rooms, func(room repositories.Room, _ int) roomResponse {
		return roomResponse{ID: int64(room.ID), Name: room.Name}
	}))
}

type postMessageRequest struct {
	RoomID  int64  `json:"room_id"`
	Content string `json:"content"`
}

type messageResponse struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"room_id"`
	UserID    int64     `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type messagePageResponse struct {
	Messages []messageResponse `json:"messages"`
	Cursor   *string           `json:"cursor,omitempty"`
}

// postMessage is the REST fallback for clients without a live socket.
// The message still flows through the full pipeline, so connected
// participants in the room receive it in realtime.
func (h *Handler) postMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, errors.ErrMalformedFrame)
		return
	}
	room := domain.RoomID(req.RoomID)
	if err := h.rooms.EnsureMember(room, user); err != nil {
		h.fail(w, err)
		return
	}
	msg, err := h.chat.Send(r.Context(), nil, room, user, req.Content)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.reply(w, http.StatusCreated, toMessageResponse(msg))
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	roomID, err := strconv.ParseInt(r.PathValue("room_id"), 10, 64)
	if err != nil {
		h.fail(w, errors.ErrMalformedFrame)
		return
	}
	room := domain.RoomID(roomID)
	if err := h.rooms.EnsureMember(room, user); err != nil {
		h.fail(w, err)
		return
	}

	var cursor *string
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor = &raw
	}
	messages, next, err := h.chat.History(room, cursor)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.reply(w, http.StatusOK, messagePageResponse{
		Messages: lo.Map(messages, func(msg domain.Message, _ int) messageResponse {
			return toMessageResponse(msg)
		}),
		Cursor: next,
	})
}

type searchResponse struct {
	Hits []search.Hit `json:"hits"`
}

func (h *Handler) searchMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	roomID, err := strconv.ParseInt(r.URL.Query().Get("room_id"), 10, 64)
	if err != nil {
		h.fail(w, errors.ErrMalformedFrame)
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		h.fail(w, errors.ErrMalformedFrame)
		return
	}
	room := domain.RoomID(roomID)
	if err := h.rooms.EnsureMember(room, user); err != nil {
		h.fail(w, err)
		return
	}
	hits, err := h.chat.Search(r.Context(), room, query, h.historyLimit)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.reply(w, http.StatusOK, searchResponse{Hits: hits})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	h.reply(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authenticate resolves the bearer token into a user id, writing the
// 401 itself so handlers just bail on !ok.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (domain.UserID, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		h.replyError(w, http.StatusUnauthorized, "missing bearer token")
		return 0, false
	}
	user, err := h.auth.Authenticate(token)
	if err != nil {
		h.replyError(w, http.StatusUnauthorized, "invalid token")
		return 0, false
	}
	return user, true
}

func toMessageResponse(msg domain.Message) messageResponse {
	return messageResponse{
		ID:        msg.ID,
		RoomID:    int64(msg.Room),
		UserID:    int64(msg.Author),
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
}

func (h *Handler) reply(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Debug("Response encoding failed", "error", err)
	}
}

func (h *Handler) replyError(w http.ResponseWriter, status int, message string) {
	h.reply(w, status, map[string]string{"error": message})
}

// fail maps domain sentinels onto HTTP statuses. Anything unmapped is a
// 500 and gets logged; mapped errors are expected flow and are not.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case stderrors.Is(err, errors.ErrMalformedFrame),
		stderrors.Is(err, errors.ErrEmptyContent),
		stderrors.Is(err, errors.ErrContentTooLong),
		stderrors.Is(err, errors.ErrInvalidPassword):
		h.replyError(w, http.StatusBadRequest, err.Error())
	case stderrors.Is(err, errors.ErrInvalidCredentials):
		h.replyError(w, http.StatusUnauthorized, err.Error())
	case stderrors.Is(err, errors.ErrNotAMember):
		h.replyError(w, http.StatusForbidden, err.Error())
	case stderrors.Is(err, errors.ErrRoomNotFound), stderrors.Is(err, errors.ErrUserNotFound):
		h.replyError(w, http.StatusNotFound, err.Error())
	case stderrors.Is(err, errors.ErrUserAlreadyExists), stderrors.Is(err, errors.ErrRoomAlreadyExists):
		h.replyError(w, http.StatusConflict, err.Error())
	case stderrors.Is(err, errors.ErrStoreUnavailable):
		h.replyError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.Error("Request failed", "error", err)
		h.replyError(w, http.StatusInternalServerError, "internal error")
	}
}
