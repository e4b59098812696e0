// Package search maintains a full-text index of accepted messages. The
// index is fed asynchronously by an event sink; it is an acceleration
// structure, never an authority — a missing hit is always recoverable
// from the message store.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/blugelabs/bluge"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

type ISearcher interface {
	Search(ctx context.Context, room domain.RoomID, query string, limit int) ([]Hit, error)
}

// Hit is one search result.
type Hit struct {
	MessageID int64         `json:"id"`
	Room      domain.RoomID `json:"room_id"`
	Content   string        `json:"content"`
}

type Index struct {
	log    *slog.Logger
	writer *bluge.Writer
}

func Open(path string, log *slog.Logger) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	return &Index{log: log, writer: writer}, nil
}

func docID(id int64) string {
	return fmt.Sprintf("msg-%d", id)
}

// IndexMessage makes one accepted message searchable. Update keeps the
// operation idempotent under the bus's at-least-once delivery.
func (i *Index) IndexMessage(msg domain.Message) error {
	doc := bluge.NewDocument(docID(msg.ID))
	doc.AddField(bluge.NewTextField("content", msg.Content).StoreValue())
	doc.AddField(bluge.NewNumericField("room", float64(msg.Room)))
	doc.AddField(bluge.NewNumericField("author", float64(msg.Author)))
	return i.writer.Update(doc.ID(), doc)
}

// Search runs a room-scoped match query over message content.
func (i *Index) Search(ctx context.Context, room domain.RoomID, query string, limit int) ([]Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query).SetField("content")).
		AddMust(bluge.NewNumericRangeInclusiveQuery(
			float64(room), float64(room), true, true).SetField("room"))

	iter, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for match, err := iter.Next(); match != nil; match, err = iter.Next() {
		if err != nil {
			return nil, err
		}
		hit := Hit{Room: room}
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				raw := strings.TrimPrefix(string(value), "msg-")
				hit.MessageID, _ = strconv.ParseInt(raw, 10, 64)
			case "content":
				hit.Content = string(value)
			}
			return true
		})
		if visitErr != nil {
			return nil, visitErr
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (i *Index) Close() error {
	return i.writer.Close()
}

// Sink adapts the index to the event fanout.
type Sink struct {
	index *Index
}

func NewSink(index *Index) Sink {
	return Sink{index: index}
}

func (s Sink) Consume(_ context.Context, e event.DomainEvent) error {
	posted, ok := e.(event.MessagePosted)
	if !ok {
		return nil
	}
	return s.index.IndexMessage(posted.Message)
}
