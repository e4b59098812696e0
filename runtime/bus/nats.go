package bus

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"chat-relay/contract"
	"chat-relay/domain"
)

// subjectPrefix mirrors the room channel naming of the wire contract:
// a fixed prefix plus the numeric room id.
const subjectPrefix = "room."

// NatsBus adapts a NATS connection to the room bus contract. One NATS
// subscription per subscribed room per process; NATS dispatches the
// callbacks of one subscription sequentially, which preserves a single
// publisher's publish order end to end.
type NatsBus struct {
	nc  *nats.Conn
	log *slog.Logger
}

type natsSubscription struct {
	sub *nats.Subscription
}

// ConnectNats dials the broker with infinite reconnects; a chat node
// must ride out short broker restarts without dropping its sessions.
func ConnectNats(url, name string, log *slog.Logger) (*NatsBus, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	log.Info("Connected to NATS", "url", nc.ConnectedUrl())
	return &NatsBus{nc: nc, log: log}, nil
}

func subject(room domain.RoomID) string {
	return fmt.Sprintf("%s%d", subjectPrefix, room)
}

func (b *NatsBus) Publish(room domain.RoomID, payload []byte) error {
	return b.nc.Publish(subject(room), payload)
}

func (b *NatsBus) Subscribe(room domain.RoomID, handler func(payload []byte)) (contract.Subscription, error) {
	sub, err := b.nc.Subscribe(subject(room), func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject(room), err)
	}
	b.log.Debug("Subscribed room channel", "subject", subject(room))
	return natsSubscription{sub: sub}, nil
}

// Close drains the connection so in-flight deliveries finish before the
// process exits.
func (b *NatsBus) Close() error {
	return b.nc.Drain()
}

func (s natsSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}
