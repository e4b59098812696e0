package projection

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

func post(t *testing.T, timeline *Timeline, room domain.RoomID, id int64) {
	t.Helper()
	err := timeline.Consume(context.Background(), event.MessagePosted{
		Message: domain.Message{ID: id, Room: room, Content: "m"},
	})
	require.NoError(t, err)
}

func TestTimeline_Keeps_Recent_Messages_Per_Room(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline(10)
	roomID := domain.RoomID(1)

	post(t, timeline, roomID, 1)
	post(t, timeline, roomID, 2)
	post(t, timeline, domain.RoomID(2), 3)

	recent := timeline.Recent(roomID, 10)
	req.Len(recent, 2)
	req.Equal(int64(1), recent[0].ID)
	req.Equal(int64(2), recent[1].ID)

	req.Len(timeline.Recent(domain.RoomID(2), 10), 1)
}

func TestTimeline_Evicts_Oldest_Beyond_Capacity(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline(3)
	roomID := domain.RoomID(1)

	for id := int64(1); id <= 5; id++ {
		post(t, timeline, roomID, id)
	}

	recent := timeline.Recent(roomID, 10)
	req.Len(recent, 3)
	req.Equal(int64(3), recent[0].ID)
	req.Equal(int64(5), recent[2].ID)
}

func TestTimeline_Recent_Respects_Limit(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline(10)
	roomID := domain.RoomID(1)

	for id := int64(1); id <= 5; id++ {
		post(t, timeline, roomID, id)
	}

	recent := timeline.Recent(roomID, 2)
	req.Len(recent, 2)
	req.Equal(int64(4), recent[0].ID)
}

func TestTimeline_Ignores_Other_Event_Kinds(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline(10)
	roomID := domain.RoomID(1)

	err := timeline.Consume(context.Background(), event.ParticipantJoined{
		Room: roomID, User: 1, Session: uuid.New(), At: time.Now(),
	})
	req.NoError(err)
	req.Empty(timeline.Recent(roomID, 10))
}

func TestTimeline_Cold_Room_Is_Empty(t *testing.T) {
	require.Empty(t, NewTimeline(10).Recent(domain.RoomID(9), 10))
}
