// Package projection builds local read models from observed events.
// Projections never emit events and are rebuilt from scratch on restart;
// the message store stays the source of truth.
package projection

import (
	"context"
	"sync"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

// Timeline keeps the most recent messages of each room in memory, in
// arrival order, used as the fast path for history backfill on attach.
type Timeline struct {
	mu       sync.RWMutex
	capacity int
	rooms    map[domain.RoomID][]domain.Message
}

func NewTimeline(capacity int) *Timeline {
	return &Timeline{
		capacity: capacity,
		rooms:    make(map[domain.RoomID][]domain.Message),
	}
}

// Consume implements contract.EventSink.
func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	posted, ok := e.(event.MessagePosted)
	if !ok {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	messages := append(t.rooms[posted.Message.Room], posted.Message)
	if len(messages) > t.capacity {
		messages = messages[len(messages)-t.capacity:]
	}
	t.rooms[posted.Message.Room] = messages
	return nil
}

// Recent returns a copy of the room's buffered tail, oldest first. An
// empty result means the projection is cold, not that the room is.
func (t *Timeline) Recent(room domain.RoomID, limit int) []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	messages := t.rooms[room]
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	out := make([]domain.Message, len(messages))
	copy(out, messages)
	return out
}
