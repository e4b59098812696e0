// Package runtime hosts the process-local fanout machinery: the
// connection registry, the ingestion pipeline and the supervised workers
// gluing them to sinks. It orchestrates without containing domain rules.
package runtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"chat-relay/contract"
	"chat-relay/domain"
)

// Registry tracks which sessions are attached to which room within this
// process and performs the local fanout. Cross-process awareness happens
// only through the room bus: the first session registered for a room
// subscribes the room's bus channel, the last one leaving releases it.
//
// Locking is two-level: the registry mutex only guards the room table,
// each room guards its own session set, so fanout in one room never
// serializes against unrelated rooms.
type Registry struct {
	log *slog.Logger
	bus contract.Bus

	mu    sync.RWMutex
	rooms map[domain.RoomID]*roomEntry
}

type roomEntry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]contract.SessionSink
	sub      contract.Subscription
}

func NewRegistry(log *slog.Logger, bus contract.Bus) *Registry {
	return &Registry{
		log:   log,
		bus:   bus,
		rooms: make(map[domain.RoomID]*roomEntry),
	}
}

// Register adds a session under a room; idempotent if already present.
// The first session of a room in this process triggers the bus subscribe.
func (r *Registry) Register(room domain.RoomID, session contract.SessionSink) error {
	r.mu.Lock()
	entry, ok := r.rooms[room]
	if !ok {
		entry = &roomEntry{sessions: make(map[uuid.UUID]contract.SessionSink)}
		r.rooms[room] = entry
	}
	entry.mu.Lock()
	r.mu.Unlock()
	defer entry.mu.Unlock()

	if _, dup := entry.sessions[session.ID()]; dup {
		return nil
	}
	entry.sessions[session.ID()] = session

	if entry.sub == nil {
		sub, err := r.bus.Subscribe(room, r.busHandler(room))
		if err != nil {
			delete(entry.sessions, session.ID())
			return fmt.Errorf("room %d bus subscribe: %w", room, err)
		}
		entry.sub = sub
	}

	r.log.Debug("Session registered", "room", room, "session", session.ID(), "local", len(entry.sessions))
	return nil
}

// Unregister removes a session; when the room's local set becomes empty
// the bus subscription is released.
func (r *Registry) Unregister(room domain.RoomID, session contract.SessionSink) {
	r.mu.Lock()
	entry, ok := r.rooms[room]
	if !ok {
		r.mu.Unlock()
		return
	}

	entry.mu.Lock()
	if _, present := entry.sessions[session.ID()]; !present {
		entry.mu.Unlock()
		r.mu.Unlock()
		return
	}
	delete(entry.sessions, session.ID())

	var sub contract.Subscription
	if len(entry.sessions) == 0 {
		sub = entry.sub
		entry.sub = nil
		delete(r.rooms, room)
	}
	remaining := len(entry.sessions)
	entry.mu.Unlock()
	r.mu.Unlock()

	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			r.log.Warn("Room channel release failed", "room", room, "error", err)
		} else {
			r.log.Debug("Room channel released", "room", room)
		}
	}
	r.log.Debug("Session unregistered", "room", room, "session", session.ID(), "local", remaining)
}

// BroadcastLocal delivers an envelope to every session registered under
// the room except excluding. Delivery is non-blocking per recipient: a
// session whose outbound queue is saturated gets disconnected and its
// siblings are unaffected. Broadcasting to a room with no local sessions
// is a no-op.
func (r *Registry) BroadcastLocal(room domain.RoomID, env domain.Envelope, excluding uuid.UUID) {
	r.mu.RLock()
	entry, ok := r.rooms[room]
	r.mu.RUnlock()
	if !ok {
		return
	}

	entry.mu.RLock()
	targets := make([]contract.SessionSink, 0, len(entry.sessions))
	for id, session := range entry.sessions {
		if id == excluding {
			continue
		}
		targets = append(targets, session)
	}
	entry.mu.RUnlock()

	frame := env.Frame()
	var stalled []contract.SessionSink
	for _, session := range targets {
		if err := session.Deliver(frame); err != nil {
			stalled = append(stalled, session)
		}
	}

	for _, session := range stalled {
		r.log.Warn("Disconnecting slow consumer", "room", room, "session", session.ID(), "user", session.User())
		r.Unregister(room, session)
		session.Kick()
	}
}

// busHandler pumps one room's bus deliveries into the local fanout. The
// envelope's origin is excluded again here: the originating session
// already received its local echo, and the bus round-trip must not race
// a duplicate to it.
func (r *Registry) busHandler(room domain.RoomID) func(payload []byte) {
	return func(payload []byte) {
		var env domain.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			r.log.Warn("Dropping malformed bus payload", "room", room, "error", err)
			return
		}

		var origin uuid.UUID
		if env.Origin != "" {
			parsed, err := uuid.Parse(env.Origin)
			if err == nil {
				origin = parsed
			}
		}
		r.BroadcastLocal(room, env, origin)
	}
}

// RoomCount and SessionCount are probes for tests and telemetry.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) SessionCount(room domain.RoomID) int {
	r.mu.RLock()
	entry, ok := r.rooms[room]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return len(entry.sessions)
}
