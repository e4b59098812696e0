// Package bus provides the room bus implementations: a NATS adapter for
// multi-instance deployments and an in-process relay for single-node
// deployments and tests. Both satisfy contract.Bus with the same delivery
// semantics: at-least-once, ordered per subscription for a single
// publisher's sequential publishes.
package bus

import (
	"log/slog"
	"sync"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
)

const memorySubscriberBuffer = 256

// MemoryBus is a trivial in-memory relay. Each subscription owns a
// buffered channel drained by its own goroutine, so a handler observes
// payloads asynchronously and in publish order, like a real broker
// subscription would.
type MemoryBus struct {
	log    *slog.Logger
	mu     sync.RWMutex
	rooms  map[domain.RoomID][]*memorySubscription
	closed bool
}

type memorySubscription struct {
	bus      *MemoryBus
	room     domain.RoomID
	payloads chan []byte
	done     chan struct{}
	once     sync.Once
}

func NewMemoryBus(log *slog.Logger) *MemoryBus {
	return &MemoryBus{
		log:   log,
		rooms: make(map[domain.RoomID][]*memorySubscription),
	}
}

func (b *MemoryBus) Publish(room domain.RoomID, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errors.ErrStoreUnavailable
	}

	for _, sub := range b.rooms[room] {
		select {
		case sub.payloads <- payload:
		case <-sub.done:
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(room domain.RoomID, handler func(payload []byte)) (contract.Subscription, error) {
	sub := &memorySubscription{
		bus:      b,
		room:     room,
		payloads: make(chan []byte, memorySubscriberBuffer),
		done:     make(chan struct{}),
	}

	b.mu.Lock()
	b.rooms[room] = append(b.rooms[room], sub)
	b.mu.Unlock()

	go func() {
		for {
			select {
			case payload := <-sub.payloads:
				handler(payload)
			case <-sub.done:
				return
			}
		}
	}()
	return sub, nil
}

// SubscriberCount reports live subscriptions for a room. Probe for tests
// and the debug inspector.
func (b *MemoryBus) SubscriberCount(room domain.RoomID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[room])
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for room, subs := range b.rooms {
		for _, sub := range subs {
			sub.stop()
		}
		delete(b.rooms, room)
	}
	return nil
}

func (s *memorySubscription) Unsubscribe() error {
	s.stop()

	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	subs := s.bus.rooms[s.room]
	for i, sub := range subs {
		if sub == s {
			s.bus.rooms[s.room] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(s.bus.rooms[s.room]) == 0 {
		delete(s.bus.rooms, s.room)
	}
	return nil
}

func (s *memorySubscription) stop() {
	s.once.Do(func() { close(s.done) })
}
