package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types carried on the in-process bus and on NATS.
const (
	TypeEscalation     = "CA_ESCALATION"
	TypeFeedback       = "FEEDBACK_RECORDED"
	TypeReviewDecision = "CA_REVIEW_DECISION"
	TypeRLHFRun        = "RLHF_RUN_COMPLETED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventID is unique per occurrence; consumers use it to drop duplicates.
	EventID() string
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

type BaseEvent struct {
	ID         string
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventID() string                 { return e.ID }
func (e BaseEvent) EventType() string               { return e.Type }
func (e BaseEvent) Payload() map[string]interface{} { return e.Data }
func (e BaseEvent) Timestamp() time.Time            { return e.OccurredAt }

// New builds an event from any JSON-encodable payload struct.
func New(eventType string, payload any) (BaseEvent, error) {
	data, err := toMap(payload)
	if err != nil {
		return BaseEvent{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return BaseEvent{ID: uuid.NewString(), Type: eventType, Data: data, OccurredAt: time.Now().UTC()}, nil
}

func toMap(v any) (map[string]interface{}, error) {
	if m, ok := v.(map[string]interface{}); ok {
		return m, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Bind decodes the event payload into v.
func Bind(e Event, v any) error {
	raw, err := json.Marshal(e.Payload())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

type envelope struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}

var ErrMalformedEvent = errors.New("events: malformed event")

// Encode produces the wire form shared by the bus and NATS.
func Encode(e Event) ([]byte, error) {
	return json.Marshal(envelope{ID: e.EventID(), Type: e.EventType(), OccurredAt: e.Timestamp(), Data: e.Payload()})
}

func Decode(raw []byte) (BaseEvent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return BaseEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.Type == "" {
		return BaseEvent{}, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	}
	return BaseEvent{ID: env.ID, Type: env.Type, Data: env.Data, OccurredAt: env.OccurredAt}, nil
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Fanout publishes to every target and joins their errors. Nil targets are
// skipped.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
