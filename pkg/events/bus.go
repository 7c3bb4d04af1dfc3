package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Bus is the in-process event bus. Topics are event types.
type Bus struct {
	pubSub *gochannel.GoChannel
}

var _ Publisher = (*Bus)(nil)

func NewBus() *Bus {
	return &Bus{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			watermill.NewStdLogger(false, false),
		),
	}
}

func (b *Bus) Publish(ctx context.Context, event Event) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}
	msg := message.NewMessage(event.EventID(), payload)
	msg.SetContext(ctx)
	if err := b.pubSub.Publish(event.EventType(), msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.EventType(), err)
	}
	return nil
}

// Subscribe returns a channel closed when ctx ends or the bus closes.
func (b *Bus) Subscribe(ctx context.Context, eventType string) (<-chan *message.Message, error) {
	return b.pubSub.Subscribe(ctx, eventType)
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}
