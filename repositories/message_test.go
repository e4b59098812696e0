package repositories

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestMessageRepository(t *testing.T, limit *int) *MessageRepository {
	t.Helper()
	repo, err := NewMessageRepository(openTestDB(t), slog.Default(), limit)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestMessageRepository_Append_Assigns_Increasing_Ids_From_One(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t, nil)
	roomID := domain.RoomID(1)

	// When three messages are appended
	first, err := repo.Append(roomID, 1, "one")
	req.NoError(err)
	second, err := repo.Append(roomID, 2, "two")
	req.NoError(err)
	third, err := repo.Append(roomID, 1, "three")
	req.NoError(err)

	// Then ids start at 1 and strictly increase
	req.Equal(int64(1), first.ID)
	req.Greater(second.ID, first.ID)
	req.Greater(third.ID, second.ID)
	req.False(first.CreatedAt.IsZero())
}

func TestMessageRepository_ListByRoom_Returns_Ascending_Id_Order(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t, nil)
	roomID := domain.RoomID(1)

	for i := 0; i < 5; i++ {
		_, err := repo.Append(roomID, 1, fmt.Sprintf("m%d", i))
		req.NoError(err)
	}

	messages, _, err := repo.ListByRoom(roomID, nil)
	req.NoError(err)
	req.Len(messages, 5)
	for i := 1; i < len(messages); i++ {
		req.Greater(messages[i].ID, messages[i-1].ID)
	}
}

func TestMessageRepository_ListByRoom_Paginates_With_Cursor(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t, lo.ToPtr(2))
	roomID := domain.RoomID(1)

	for i := 0; i < 5; i++ {
		_, err := repo.Append(roomID, 1, fmt.Sprintf("m%d", i))
		req.NoError(err)
	}

	// When paging through with the returned cursors
	var collected []domain.Message
	var cursor *string
	for {
		page, next, err := repo.ListByRoom(roomID, cursor)
		req.NoError(err)
		if len(page) == 0 {
			break
		}
		req.LessOrEqual(len(page), 2)
		collected = append(collected, page...)
		cursor = next
	}

	// Then every message appears exactly once, in order
	req.Len(collected, 5)
	for i, msg := range collected {
		req.Equal(fmt.Sprintf("m%d", i), msg.Content)
	}
}

func TestMessageRepository_ListByRoom_Empty_Room(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t, nil)

	messages, cursor, err := repo.ListByRoom(domain.RoomID(9), nil)
	req.NoError(err)
	req.Empty(messages)
	req.Nil(cursor)
}

func TestMessageRepository_Rooms_Do_Not_Leak_Into_Each_Other(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t, nil)

	_, err := repo.Append(domain.RoomID(1), 1, "room one")
	req.NoError(err)
	_, err = repo.Append(domain.RoomID(11), 1, "room eleven")
	req.NoError(err)

	// A prefix scan of room 1 must not match room 11 keys
	messages, _, err := repo.ListByRoom(domain.RoomID(1), nil)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("room one", messages[0].Content)
}

func TestMessageRepository_Recent_Returns_Last_Messages_Oldest_First(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t, nil)
	roomID := domain.RoomID(1)

	for i := 0; i < 10; i++ {
		_, err := repo.Append(roomID, 1, fmt.Sprintf("m%d", i))
		req.NoError(err)
	}

	recent, err := repo.Recent(roomID, 3)
	req.NoError(err)
	req.Len(recent, 3)
	req.Equal("m7", recent[0].Content)
	req.Equal("m8", recent[1].Content)
	req.Equal("m9", recent[2].Content)
}
