package service

import (
	"context"
	"sync"
)

// sessionTurns runs at most one query turn per session at a time. Waiters
// are admitted in the order they arrived.
type sessionTurns struct {
	mu    sync.Mutex
	slots map[string]*turnSlot
}

type turnSlot struct {
	held chan struct{}
	refs int
}

func newSessionTurns() *sessionTurns {
	return &sessionTurns{slots: make(map[string]*turnSlot)}
}

// acquire blocks until the session's turn is free or ctx is done. The
// returned func releases the turn and must be called exactly once.
func (t *sessionTurns) acquire(ctx context.Context, sessionID string) (func(), error) {
	t.mu.Lock()
	slot, ok := t.slots[sessionID]
	if !ok {
		slot = &turnSlot{held: make(chan struct{}, 1)}
		t.slots[sessionID] = slot
	}
	slot.refs++
	t.mu.Unlock()

	select {
	case slot.held <- struct{}{}:
		return func() {
			<-slot.held
			t.drop(sessionID, slot)
		}, nil
	case <-ctx.Done():
		t.drop(sessionID, slot)
		return nil, ctx.Err()
	}
}

func (t *sessionTurns) drop(sessionID string, slot *turnSlot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(t.slots, sessionID)
	}
}

func (t *sessionTurns) active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}
