package test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"github.com/stretchr/testify/require"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/moderation"
	"chat-relay/projection"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/bus"
	"chat-relay/runtime/workers"
)

type integrationConfig struct {
	// Set NATS_URL to run the broker-backed scenario against a live
	// server, e.g. NATS_URL=nats://127.0.0.1:4222.
	NatsURL string `envconfig:"NATS_URL"`
}

type memorySession struct {
	id uuid.UUID

	mu       sync.Mutex
	received []domain.Envelope
}

func newMemorySession() *memorySession {
	return &memorySession{id: uuid.New()}
}

func (s *memorySession) ID() uuid.UUID       { return s.id }
func (s *memorySession) User() domain.UserID { return 0 }
func (s *memorySession) Kick()               {}

func (s *memorySession) Deliver(env domain.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, env)
	return nil
}

func (s *memorySession) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func runScenario(t *testing.T, roomBus contract.Bus) {
	ctx := context.Background()
	req := require.New(t)
	log := slog.Default()

	// Reduced to 16 Mo for testing (avoid gigabytes of preallocation)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	messages, err := repositories.NewMessageRepository(db, log, nil)
	req.NoError(err)
	t.Cleanup(func() { _ = messages.Close() })

	filter, err := moderation.NewFilter('*')
	req.NoError(err)

	registry := runtime.NewRegistry(log, roomBus)
	pipeline := runtime.NewPipeline(log, messages, roomBus, filter, 2000, 64)
	timeline := projection.NewTimeline(50)

	supervisor := workers.NewSupervisor(log)
	supervisor.Add(workers.NewEventFanout(log, pipeline.Events(), time.Second, timeline))
	runCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	go supervisor.Run(runCtx)
	t.Cleanup(supervisor.Stop)

	// Given alice and bob attached to the same room
	roomID := domain.RoomID(1)
	alice := newMemorySession()
	bob := newMemorySession()
	req.NoError(registry.Register(roomID, alice))
	req.NoError(registry.Register(roomID, bob))

	// When alice sends a message through the full pipeline
	sent, err := pipeline.Ingest(ctx, alice, roomID, 1, "hello everyone")
	req.NoError(err)

	// Then bob receives it over the bus roundtrip
	req.Eventually(func() bool { return bob.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	// And alice got exactly one copy, her local echo
	time.Sleep(100 * time.Millisecond)
	req.Equal(1, alice.count())

	// And the message was durable before anyone saw it
	stored, _, err := messages.ListByRoom(roomID, nil)
	req.NoError(err)
	req.Len(stored, 1)
	req.Equal(sent.ID, stored[0].ID)

	// And the timeline projection caught up
	req.Eventually(func() bool {
		return len(timeline.Recent(roomID, 10)) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func Test_Scenario_MemoryBus(t *testing.T) {
	roomBus := bus.NewMemoryBus(slog.Default())
	t.Cleanup(func() { _ = roomBus.Close() })
	runScenario(t, roomBus)
}

func Test_Scenario_Nats(t *testing.T) {
	var config integrationConfig
	require.NoError(t, envconfig.Process("", &config))
	if config.NatsURL == "" {
		t.Skip("NATS_URL not set, skipping broker-backed scenario")
	}

	roomBus, err := bus.ConnectNats(config.NatsURL, "chat-relay-test", slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = roomBus.Close() })
	runScenario(t, roomBus)
}
