//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"github.com/google/uuid"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

// Worker doesn't protect itself. A worker runs until its context is
// canceled or its input closes; crash handling belongs to the supervisor.
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision, avoiding manual naming in the
// Worker interface.
func GetWorkerName(w any) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink consumes domain events off the fanout worker. A sink must
// honor ctx: the fanout bounds every Consume call with a timeout so one
// stuck sink cannot starve the others.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Subscription is a live room-bus subscription handle.
type Subscription interface {
	Unsubscribe() error
}

// Bus abstracts a shared channel per room so that delivery reaches
// sessions attached to any process. Delivery is at-least-once; ordering
// is preserved per subscription for a single publisher's sequential
// publishes.
type Bus interface {
	Publish(room domain.RoomID, payload []byte) error
	Subscribe(room domain.RoomID, handler func(payload []byte)) (Subscription, error)
	Close() error
}

// SessionSink is the registry's view of a live client session.
//
// Deliver must never block: it enqueues the envelope on the session's
// bounded outbound queue and reports ErrSlowConsumer when the queue is
// saturated, in which case the registry disconnects the session.
type SessionSink interface {
	ID() uuid.UUID
	User() domain.UserID
	Deliver(env domain.Envelope) error
	Kick()
}
