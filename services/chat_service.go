package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/projection"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/search"
)

type IChatService interface {
	// Send pushes one message through the ingestion pipeline. origin is
	// nil for REST sends; live sessions pass themselves to get their
	// local echo and be excluded from the bus-driven broadcast.
	Send(ctx context.Context, origin contract.SessionSink,
		room domain.RoomID, author domain.UserID, content string) (domain.Message, error)
	History(room domain.RoomID, cursor *string) ([]domain.Message, *string, error)
	Recent(room domain.RoomID, limit int) ([]domain.Message, error)
	Search(ctx context.Context, room domain.RoomID, query string, limit int) ([]search.Hit, error)
	AnnounceJoin(room domain.RoomID, user domain.UserID, session uuid.UUID)
	AnnounceLeave(room domain.RoomID, user domain.UserID, session uuid.UUID)
}

type ChatService struct {
	pipeline *runtime.Pipeline
	messages repositories.IMessageRepository
	timeline *projection.Timeline
	searcher search.ISearcher
}

func NewChatService(pipeline *runtime.Pipeline, messages repositories.IMessageRepository,
	timeline *projection.Timeline, searcher search.ISearcher) *ChatService {
	return &ChatService{pipeline: pipeline, messages: messages, timeline: timeline, searcher: searcher}
}

func (s *ChatService) Send(ctx context.Context, origin contract.SessionSink,
	room domain.RoomID, author domain.UserID, content string) (domain.Message, error) {
	return s.pipeline.Ingest(ctx, origin, room, author, content)
}

func (s *ChatService) History(room domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	return s.messages.ListByRoom(room, cursor)
}

// Recent serves history backfill on attach: the warm timeline projection
// when it has data, the store otherwise.
func (s *ChatService) Recent(room domain.RoomID, limit int) ([]domain.Message, error) {
	if recent := s.timeline.Recent(room, limit); len(recent) > 0 {
		return recent, nil
	}
	return s.messages.Recent(room, limit)
}

func (s *ChatService) Search(ctx context.Context, room domain.RoomID, query string, limit int) ([]search.Hit, error) {
	return s.searcher.Search(ctx, room, query, limit)
}

func (s *ChatService) AnnounceJoin(room domain.RoomID, user domain.UserID, session uuid.UUID) {
	s.pipeline.Dispatch(event.ParticipantJoined{
		Room: room, User: user, Session: session, At: time.Now().UTC(),
	})
}

func (s *ChatService) AnnounceLeave(room domain.RoomID, user domain.UserID, session uuid.UUID) {
	s.pipeline.Dispatch(event.ParticipantLeft{
		Room: room, User: user, Session: session, At: time.Now().UTC(),
	})
}
