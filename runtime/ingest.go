package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/repositories"
)

// ContentFilter masks disallowed content. Filtering never rejects a
// message; rejection is the validator's job.
type ContentFilter interface {
	Censor(text string) string
}

// Pipeline is the only writer of chat content. It enforces, in order:
// validate, moderate, persist, publish, echo. A message is never
// published before its store write returned, so anything a session ever
// receives is already durable.
type Pipeline struct {
	log              *slog.Logger
	store            repositories.IMessageRepository
	bus              contract.Bus
	filter           ContentFilter
	events           chan event.DomainEvent
	maxContentLength int

	// Per-room guards keep the publish order identical to the persist
	// order when two sessions of the same room send concurrently.
	mu    sync.Mutex
	roomL map[domain.RoomID]*sync.Mutex
}

func NewPipeline(log *slog.Logger, store repositories.IMessageRepository, bus contract.Bus,
	filter ContentFilter, maxContentLength, eventBuffer int) *Pipeline {
	return &Pipeline{
		log:              log,
		store:            store,
		bus:              bus,
		filter:           filter,
		events:           make(chan event.DomainEvent, eventBuffer),
		maxContentLength: maxContentLength,
		roomL:            make(map[domain.RoomID]*sync.Mutex),
	}
}

// Ingest accepts one inbound chat payload. origin may be nil (REST
// sends); when set, the originating session receives the accepted
// message directly as a local echo while the bus-driven broadcast
// excludes it.
func (p *Pipeline) Ingest(ctx context.Context, origin contract.SessionSink,
	room domain.RoomID, author domain.UserID, content string) (domain.Message, error) {

	if content == "" {
		return domain.Message{}, errors.ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > p.maxContentLength {
		return domain.Message{}, errors.ErrContentTooLong
	}

	if p.filter != nil {
		content = p.filter.Censor(content)
	}

	lock := p.roomLock(room)
	lock.Lock()
	msg, err := p.store.Append(room, author, content)
	if err != nil {
		lock.Unlock()
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	env := domain.Envelope{Message: msg}
	if origin != nil {
		env.Origin = origin.ID().String()
	}
	payload, err := json.Marshal(env)
	if err != nil {
		lock.Unlock()
		return domain.Message{}, err
	}

	err = p.bus.Publish(room, payload)
	lock.Unlock()
	if err != nil {
		// The message is durable but nobody was told; the sender gets a
		// retryable failure and may resend (at-least-once semantics).
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	if origin != nil {
		if deliverErr := origin.Deliver(env.Frame()); deliverErr != nil {
			p.log.Warn("Local echo dropped", "room", room, "session", origin.ID(), "error", deliverErr)
		}
	}

	p.Dispatch(event.MessagePosted{Message: msg})
	return msg, nil
}

// Dispatch hands a domain event to the sink fanout without ever blocking
// the ingestion path; observational events are droppable.
func (p *Pipeline) Dispatch(e event.DomainEvent) {
	select {
	case p.events <- e:
	default:
		p.log.Warn("Event channel full, dropping event", "room", e.RoomID())
	}
}

// Events exposes the stream consumed by the sink fanout worker.
func (p *Pipeline) Events() <-chan event.DomainEvent {
	return p.events
}

func (p *Pipeline) roomLock(room domain.RoomID) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.roomL[room]
	if !ok {
		lock = &sync.Mutex{}
		p.roomL[room] = lock
	}
	return lock
}
