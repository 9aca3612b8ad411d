package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/depowered/culvertvision/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream. Consumers
// are ephemeral and start at new messages, so each tail sees live events only.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber connects to NATS for consuming pipeline events.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

func (s *Subscriber) SubscribeTileEvents(ctx context.Context, handler func(ctx context.Context, ev domain.TileEvent) error) error {
	return s.subscribe(subjectTile+".>", func(data []byte) error {
		var ev domain.TileEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		return handler(ctx, ev)
	})
}

func (s *Subscriber) SubscribeRunSummaries(ctx context.Context, handler func(ctx context.Context, sum domain.RunSummary) error) error {
	return s.subscribe(subjectRun+".>", func(data []byte) error {
		var sum domain.RunSummary
		if err := json.Unmarshal(data, &sum); err != nil {
			return err
		}
		return handler(ctx, sum)
	})
}

func (s *Subscriber) subscribe(subject string, handle func([]byte) error) error {
	sub, err := s.js.Subscribe(subject, func(msg *nats.Msg) {
		if err := handle(msg.Data); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
