package search

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	index, err := Open(t.TempDir(), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

func TestIndex_Search_Finds_Indexed_Content(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t)
	roomID := domain.RoomID(1)

	req.NoError(index.IndexMessage(domain.Message{ID: 1, Room: roomID, Author: 1, Content: "deployment failed on staging"}))
	req.NoError(index.IndexMessage(domain.Message{ID: 2, Room: roomID, Author: 2, Content: "lunch anyone"}))

	hits, err := index.Search(context.Background(), roomID, "deployment", 10)
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal(int64(1), hits[0].MessageID)
	req.Equal("deployment failed on staging", hits[0].Content)
}

func TestIndex_Search_Is_Room_Scoped(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t)

	req.NoError(index.IndexMessage(domain.Message{ID: 1, Room: 1, Content: "deployment in room one"}))
	req.NoError(index.IndexMessage(domain.Message{ID: 2, Room: 2, Content: "deployment in room two"}))

	hits, err := index.Search(context.Background(), domain.RoomID(1), "deployment", 10)
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal(int64(1), hits[0].MessageID)
}

func TestIndex_Search_No_Match(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t)

	req.NoError(index.IndexMessage(domain.Message{ID: 1, Room: 1, Content: "hello"}))

	hits, err := index.Search(context.Background(), domain.RoomID(1), "unrelated", 10)
	req.NoError(err)
	req.Empty(hits)
}

func TestIndex_Reindexing_Same_Message_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t)
	msg := domain.Message{ID: 1, Room: 1, Content: "redelivered message"}

	// The bus is at-least-once; the sink may consume the same event twice
	req.NoError(index.IndexMessage(msg))
	req.NoError(index.IndexMessage(msg))

	hits, err := index.Search(context.Background(), domain.RoomID(1), "redelivered", 10)
	req.NoError(err)
	req.Len(hits, 1)
}

func TestSink_Consumes_Only_Posted_Messages(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t)
	sink := NewSink(index)

	req.NoError(sink.Consume(context.Background(), event.MessagePosted{
		Message: domain.Message{ID: 1, Room: 1, Content: "indexed via sink"},
	}))
	req.NoError(sink.Consume(context.Background(), event.ParticipantLeft{Room: 1, User: 1}))

	hits, err := index.Search(context.Background(), domain.RoomID(1), "indexed", 10)
	req.NoError(err)
	req.Len(hits, 1)
}
