//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"chat-relay/domain"
)

type IMessageRepository interface {
	// Append durably stores a message, assigning its id and timestamp.
	// The id is monotonically increasing: Append is the only id authority.
	Append(room domain.RoomID, author domain.UserID, content string) (domain.Message, error)
	// ListByRoom returns messages in ascending id order starting after
	// the cursor (nil cursor starts from the beginning) and a cursor for
	// the next page.
	ListByRoom(room domain.RoomID, cursor *string) ([]domain.Message, *string, error)
	// Recent returns the last limit messages of a room in ascending order.
	Recent(room domain.RoomID, limit int) ([]domain.Message, error)
	Close() error
}

type MessageRepository struct {
	db            *badger.DB
	seq           *badger.Sequence
	log           *slog.Logger
	limitMessages *int
}

// NewMessageRepository opens the message id sequence. Release it through
// Close or ids leased from badger are lost on restart (gaps are fine,
// regressions are not).
func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte("seq:message"), 64)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{db: db, seq: seq, log: log, limitMessages: limitMessages}, nil
}

// messageKey is formatted as "msg:{room_id}:{id_padded}" so that a prefix
// scan over one room yields messages in id order (20-digit zero padding
// keeps the lexicographical and numeric orders identical).
func messageKey(room domain.RoomID, id int64) []byte {
	return []byte(fmt.Sprintf("msg:%d:%020d", room, id))
}

func roomPrefix(room domain.RoomID) []byte {
	return []byte(fmt.Sprintf("msg:%d:", room))
}

func (m *MessageRepository) Append(room domain.RoomID, author domain.UserID, content string) (domain.Message, error) {
	n, err := m.seq.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("next message id: %w", err)
	}

	msg := domain.Message{
		ID:        int64(n) + 1, // sequences start at 0, ids at 1
		Room:      room,
		Author:    author,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return domain.Message{}, err
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(room, msg.ID), value)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("store message: %w", err)
	}
	return msg, nil
}

func (m *MessageRepository) ListByRoom(room domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	prefix := roomPrefix(room)
	var messages []domain.Message
	var lastKey string

	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		seekKey := prefix
		if cursor != nil {
			seekKey = append(append([]byte{}, prefix...), []byte(*cursor)...)
		}
		it.Seek(seekKey)

		// The cursor names the last key of the previous page; skip it.
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug("Page limit reached", "limit", *m.limitMessages, "room", room)
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefix):])
			if err := item.Value(func(value []byte) error {
				var msg domain.Message
				if err := json.Unmarshal(value, &msg); err != nil {
					return err
				}
				messages = append(messages, msg)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if len(messages) == 0 {
		return nil, nil, nil
	}
	return messages, &lastKey, nil
}

func (m *MessageRepository) Recent(room domain.RoomID, limit int) ([]domain.Message, error) {
	prefix := roomPrefix(room)
	var collected []domain.Message

	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the highest possible id, then walk backwards.
		seekKey := append(append([]byte{}, prefix...), []byte("99999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix) && len(collected) < limit; it.Next() {
			if err := it.Item().Value(func(value []byte) error {
				var msg domain.Message
				if err := json.Unmarshal(value, &msg); err != nil {
					return err
				}
				collected = append(collected, msg)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Reverse iteration collected newest first.
	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return collected, nil
}

func (m *MessageRepository) Close() error {
	return m.seq.Release()
}
