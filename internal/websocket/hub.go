package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"wealthadvisor-ai/internal/pkg/logger"
)

// ReviewChannel is the Redis channel that fans review events out to every
// server instance.
const ReviewChannel = "ca_review_events"

type envelope struct {
	Origin  string          `json:"origin"`
	Message json.RawMessage `json:"message"`
}

// Hub pushes review events to connected reviewers. Reviewers may hold
// several connections at once.
type Hub struct {
	clients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Optional; without it events reach only this instance's clients.
	rdb    *redis.Client
	origin string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rdb:        rdb,
		origin:     uuid.NewString(),
		logger:     log,
	}
}

// Start subscribes to the Redis channel, when configured, and runs the
// registration loop until ctx is done.
func (h *Hub) Start(ctx context.Context) error {
	if h.rdb != nil {
		pubsub := h.rdb.Subscribe(ctx, ReviewChannel)
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			return fmt.Errorf("subscribe %s: %w", ReviewChannel, err)
		}
		go h.relay(ctx, pubsub)
	}
	go h.run(ctx)
	return nil
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[client.ReviewerID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.ReviewerID] = set
			}
			set[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("Hub", "Reviewer connected", map[string]interface{}{"reviewer_id": client.ReviewerID})
		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[client.ReviewerID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.Send)
	if len(set) == 0 {
		delete(h.clients, client.ReviewerID)
		h.logger.Info("Hub", "Reviewer disconnected", map[string]interface{}{"reviewer_id": client.ReviewerID})
	}
}

// Broadcast sends {type, data} to every local reviewer and to the other
// instances through Redis.
func (h *Hub) Broadcast(ctx context.Context, eventType string, data any) error {
	msg, err := json.Marshal(map[string]interface{}{"type": eventType, "data": data})
	if err != nil {
		return err
	}
	h.deliver(msg)

	if h.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(envelope{Origin: h.origin, Message: msg})
	if err != nil {
		return err
	}
	return h.rdb.Publish(ctx, ReviewChannel, payload).Err()
}

// deliver drops clients whose buffers are full rather than blocking.
func (h *Hub) deliver(msg []byte) {
	var slow []*Client
	h.mu.RLock()
	for _, set := range h.clients {
		for client := range set {
			select {
			case client.Send <- msg:
			default:
				slow = append(slow, client)
			}
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{"reviewer_id": client.ReviewerID})
		h.remove(client)
	}
}

func (h *Hub) relay(ctx context.Context, pubsub *redis.PubSub) {
	defer pubsub.Close()
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				h.logger.Warn("Hub", "Malformed review event from Redis", map[string]interface{}{"error": err.Error()})
				continue
			}
			if env.Origin == h.origin {
				continue
			}
			h.deliver(env.Message)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}
