package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type escalation struct {
	ReviewID   string  `json:"review_id"`
	Confidence float64 `json:"confidence"`
}

func TestEncodeDecode(t *testing.T) {
	ev, err := New(TypeEscalation, escalation{ReviewID: "rev_1", Confidence: 0.2})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.EventID())

	raw, err := Encode(ev)
	require.NoError(t, err)
	back, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, back.ID)
	assert.Equal(t, TypeEscalation, back.EventType())
	assert.True(t, ev.OccurredAt.Equal(back.OccurredAt))

	var payload escalation
	require.NoError(t, Bind(back, &payload))
	assert.Equal(t, escalation{ReviewID: "rev_1", Confidence: 0.2}, payload)
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode([]byte("nope"))
	assert.ErrorIs(t, err, ErrMalformedEvent)
	_, err = Decode([]byte(`{"id":"x","data":{}}`))
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

type recorder struct {
	got []Event
	err error
}

func (r *recorder) Publish(_ context.Context, e Event) error {
	r.got = append(r.got, e)
	return r.err
}

func TestFanout(t *testing.T) {
	ok, failing := &recorder{}, &recorder{err: errors.New("nats down")}
	ev, _ := New(TypeFeedback, map[string]interface{}{"signal": "thumbs_up"})

	err := Fanout{ok, nil, failing}.Publish(context.Background(), ev)
	assert.ErrorContains(t, err, "nats down")
	assert.Len(t, ok.got, 1)
	assert.Len(t, failing.got, 1)
}

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus()
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := bus.Subscribe(ctx, TypeEscalation)
	require.NoError(t, err)

	ev, _ := New(TypeEscalation, escalation{ReviewID: "rev_9"})
	require.NoError(t, bus.Publish(context.Background(), ev))

	select {
	case msg := <-msgs:
		got, err := Decode(msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, ev.ID, got.ID)
		assert.Equal(t, "rev_9", got.Data["review_id"])
		msg.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}
