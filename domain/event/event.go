// Package event defines the domain events emitted by the ingestion
// pipeline and consumed by the sink fanout (projections, search index,
// telemetry). Events are observational: losing one never affects message
// durability or delivery.
package event

import (
	"time"

	"github.com/google/uuid"

	"chat-relay/domain"
)

type DomainEvent interface {
	RoomID() domain.RoomID
}

// MessagePosted is emitted after a message has been durably stored and
// published on the room bus.
type MessagePosted struct {
	Message domain.Message
}

func (e MessagePosted) RoomID() domain.RoomID {
	return e.Message.Room
}

// ParticipantJoined is emitted when a session completes its attach.
type ParticipantJoined struct {
	Room    domain.RoomID
	User    domain.UserID
	Session uuid.UUID
	At      time.Time
}

func (e ParticipantJoined) RoomID() domain.RoomID {
	return e.Room
}

// ParticipantLeft is emitted when a session is unregistered, whatever the
// exit path (explicit leave, transport close, slow-consumer kick).
type ParticipantLeft struct {
	Room    domain.RoomID
	User    domain.UserID
	Session uuid.UUID
	At      time.Time
}

func (e ParticipantLeft) RoomID() domain.RoomID {
	return e.Room
}
