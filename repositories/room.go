//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"chat-relay/domain"
	"chat-relay/errors"
)

type IRoomRepository interface {
	Create(name string) (Room, error)
	Get(id domain.RoomID) (Room, error)
	List() ([]Room, error)
	Close() error
}

type Room struct {
	ID        domain.RoomID `json:"id"`
	Name      string        `json:"name"`
	CreatedAt time.Time     `json:"created_at"`
}

type RoomRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewRoomRepository(db *badger.DB) (*RoomRepository, error) {
	seq, err := db.GetSequence([]byte("seq:room"), 16)
	if err != nil {
		return nil, fmt.Errorf("room sequence: %w", err)
	}
	return &RoomRepository{db: db, seq: seq}, nil
}

func roomKey(id domain.RoomID) []byte {
	return []byte(fmt.Sprintf("room:%020d", id))
}

func roomNameKey(name string) []byte {
	return []byte("roomname:" + name)
}

func (r *RoomRepository) Create(name string) (Room, error) {
	n, err := r.seq.Next()
	if err != nil {
		return Room{}, fmt.Errorf("next room id: %w", err)
	}

	room := Room{
		ID:        domain.RoomID(n) + 1,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	value, err := json.Marshal(room)
	if err != nil {
		return Room{}, err
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(roomNameKey(name)); err == nil {
			return errors.ErrRoomAlreadyExists
		}
		if err := txn.Set(roomKey(room.ID), value); err != nil {
			return err
		}
		return txn.Set(roomNameKey(name), roomKey(room.ID))
	})
	if err != nil {
		return Room{}, err
	}
	return room, nil
}

func (r *RoomRepository) Get(id domain.RoomID) (Room, error) {
	var room Room
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &room)
		})
	})
	if err == badger.ErrKeyNotFound {
		return Room{}, errors.ErrRoomNotFound
	}
	if err != nil {
		return Room{}, err
	}
	return room, nil
}

func (r *RoomRepository) List() ([]Room, error) {
	var rooms []Room
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("room:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(func(value []byte) error {
				var room Room
				if err := json.Unmarshal(value, &room); err != nil {
					return err
				}
				rooms = append(rooms, room)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return rooms, err
}

func (r *RoomRepository) Close() error {
	return r.seq.Release()
}
