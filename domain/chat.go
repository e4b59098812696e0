// Package domain contains core concepts of the chat system.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// RoomID identifies a room. Stable for the life of the room.
type RoomID int64

// UserID identifies an authenticated principal.
type UserID int64

// Message represents an immutable chat event. The ID is assigned by the
// message store on persist and is monotonically increasing; no other
// component computes ids.
type Message struct {
	ID        int64     `json:"id"`
	Room      RoomID    `json:"room_id"`
	Author    UserID    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Envelope is the single wire format shared by the room bus, the durable
// store and the outbound client frame, so that any process can republish
// a message without re-deriving fields.
//
// Origin carries the originating session handle and only travels on the
// bus: it lets a receiving process suppress the duplicate delivery to a
// sender that already got its local echo. It is stripped before the
// envelope reaches a client.
type Envelope struct {
	Message
	Origin string `json:"origin,omitempty"`
}

// Frame returns the client-facing copy of the envelope.
func (e Envelope) Frame() Envelope {
	e.Origin = ""
	return e
}
