package nats

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"wealthadvisor-ai/pkg/events"
)

type EventHandler func(ctx context.Context, event events.Event) error

type Subscriber struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	log      *zap.Logger
	contexts []jetstream.ConsumeContext
}

func NewSubscriber(url string, log *zap.Logger) (*Subscriber, error) {
	if log == nil {
		log = zap.NewNop()
	}
	nc, js, err := connect(url)
	if err != nil {
		return nil, err
	}
	return &Subscriber{nc: nc, js: js, log: log.Named("nats")}, nil
}

// Subscribe attaches a durable consumer for one event type. Handler errors
// are redelivered; undecodable messages are terminated.
func (s *Subscriber) Subscribe(ctx context.Context, eventType, durable string, handler EventHandler) error {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       durable,
		FilterSubject: Subject(eventType),
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    5,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		if err := Handle(ctx, msg.Data(), handler); err != nil {
			if errors.Is(err, events.ErrMalformedEvent) {
				s.log.Error("dropping malformed event", zap.String("subject", msg.Subject()), zap.Error(err))
				_ = msg.Term()
				return
			}
			s.log.Warn("handler failed, will retry", zap.String("subject", msg.Subject()), zap.Error(err))
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	s.contexts = append(s.contexts, cc)

	s.log.Info("subscribed", zap.String("subject", Subject(eventType)), zap.String("durable", durable))
	return nil
}

// Handle decodes one message body and runs handler on it.
func Handle(ctx context.Context, data []byte, handler EventHandler) error {
	event, err := events.Decode(data)
	if err != nil {
		return err
	}
	return handler(ctx, event)
}

func (s *Subscriber) Close() {
	for _, cc := range s.contexts {
		cc.Stop()
	}
	if s.nc != nil {
		s.nc.Close()
	}
}
