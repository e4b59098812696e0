package bus

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-relay/domain"
)

func TestMemoryBus_Delivers_In_Publish_Order(t *testing.T) {
	req := require.New(t)
	b := NewMemoryBus(slog.Default())
	roomID := domain.RoomID(1)

	var mu sync.Mutex
	var got []string
	_, err := b.Subscribe(roomID, func(payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, string(payload))
	})
	req.NoError(err)

	// When one publisher sends a sequence
	for i := 0; i < 50; i++ {
		req.NoError(b.Publish(roomID, []byte(fmt.Sprintf("m%d", i))))
	}

	// Then the subscription observes the exact sequence
	req.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 50
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i, payload := range got {
		req.Equal(fmt.Sprintf("m%d", i), payload)
	}
}

func TestMemoryBus_Rooms_Are_Isolated(t *testing.T) {
	req := require.New(t)
	b := NewMemoryBus(slog.Default())

	received := make(chan []byte, 1)
	_, err := b.Subscribe(domain.RoomID(1), func(payload []byte) { received <- payload })
	req.NoError(err)

	// When a message goes to another room
	req.NoError(b.Publish(domain.RoomID(2), []byte("elsewhere")))

	// Then the room 1 subscription never sees it
	select {
	case <-received:
		t.Fatal("message leaked across rooms")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBus_Unsubscribe_Stops_Delivery(t *testing.T) {
	req := require.New(t)
	b := NewMemoryBus(slog.Default())
	roomID := domain.RoomID(1)

	received := make(chan []byte, 8)
	sub, err := b.Subscribe(roomID, func(payload []byte) { received <- payload })
	req.NoError(err)
	req.Equal(1, b.SubscriberCount(roomID))

	req.NoError(sub.Unsubscribe())

	// Then the channel is released and publishes go nowhere
	req.Zero(b.SubscriberCount(roomID))
	req.NoError(b.Publish(roomID, []byte("late")))
	select {
	case <-received:
		t.Fatal("delivery after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBus_Publish_After_Close_Fails(t *testing.T) {
	req := require.New(t)
	b := NewMemoryBus(slog.Default())
	_, err := b.Subscribe(domain.RoomID(1), func([]byte) {})
	req.NoError(err)

	req.NoError(b.Close())

	req.Error(b.Publish(domain.RoomID(1), []byte("x")))
}
