// Package nats carries advisor events across services on a JetStream stream.
package nats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"wealthadvisor-ai/pkg/events"
)

const (
	StreamName    = "ADVISOR"
	subjectPrefix = "advisor."
)

// Subject maps an event type such as CA_ESCALATION to advisor.ca_escalation.
func Subject(eventType string) string {
	return subjectPrefix + strings.ToLower(eventType)
}

func connect(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return nc, js, nil
}

type Publisher struct {
	nc  *nats.Conn
	js  jetstream.JetStream
	log *zap.Logger
}

var _ events.Publisher = (*Publisher)(nil)

// NewPublisher connects and makes sure the stream exists. A stream error is
// only logged; the stream may be managed elsewhere.
func NewPublisher(url string, log *zap.Logger) (*Publisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	nc, js, err := connect(url)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{subjectPrefix + ">"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    30 * 24 * time.Hour,
	})
	if err != nil {
		log.Warn("failed to ensure stream", zap.String("stream", StreamName), zap.Error(err))
	}

	return &Publisher{nc: nc, js: js, log: log.Named("nats")}, nil
}

func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	data, err := events.Encode(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	subject := Subject(event.EventType())
	// Msg ID lets JetStream drop duplicates inside its window.
	if _, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.EventID())); err != nil {
		return fmt.Errorf("failed to publish event to subject %s: %w", subject, err)
	}
	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
