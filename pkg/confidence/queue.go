package confidence

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"wealthadvisor-ai/pkg/utils"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusEdited   = "edited"
)

const (
	DefaultQueueSize = 500
	maxStoredAnswer  = 500
)

var (
	ErrNotFound        = errors.New("review item not found")
	ErrInvalidStatus   = errors.New("invalid review status")
	ErrAlreadyReviewed = errors.New("review item already decided")
)

// ReviewItem is an escalated answer waiting for a chartered accountant.
type ReviewItem struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	SessionID  string    `json:"session_id,omitempty"`
	Query      string    `json:"query"`
	Answer     string    `json:"answer"`
	Reason     string    `json:"reason"`
	Confidence float64   `json:"confidence"`
	Action     string    `json:"action,omitempty"`
	Intent     string    `json:"intent,omitempty"`
	Status     string    `json:"status"`
	ReviewerID string    `json:"reviewer_id,omitempty"`
	Correction string    `json:"correction,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// ReviewQueue keeps the most recent escalations; the oldest are dropped once
// it is full.
type ReviewQueue struct {
	mu    sync.RWMutex
	items *utils.Ring[ReviewItem]
	now   func() time.Time
}

func NewReviewQueue(size int) *ReviewQueue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &ReviewQueue{items: utils.NewRing[ReviewItem](size), now: time.Now}
}

// Add stores item as pending, filling in the id and timestamp, and returns
// the stored copy.
func (q *ReviewQueue) Add(item ReviewItem) ReviewItem {
	if item.ID == "" {
		item.ID = "rev_" + uuid.NewString()
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = q.now().UTC()
	}
	item.Answer = truncateRunes(item.Answer, maxStoredAnswer)
	item.Status = StatusPending

	q.mu.Lock()
	q.items.Push(item)
	q.mu.Unlock()
	return item
}

// List returns up to limit items, newest first. limit <= 0 means all.
func (q *ReviewQueue) List(limit int) []ReviewItem {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.items.Newest(limit)
}

func (q *ReviewQueue) Get(id string) (ReviewItem, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, it := range q.items.Newest(0) {
		if it.ID == id {
			return it, true
		}
	}
	return ReviewItem{}, false
}

func (q *ReviewQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.items.Len()
}

func ValidDecision(status string) bool {
	return status == StatusApproved || status == StatusRejected || status == StatusEdited
}

// UpdateStatus records a reviewer decision. Only pending items can be
// decided, and an edit must carry a correction.
func (q *ReviewQueue) UpdateStatus(id, status, reviewerID, correction string) (ReviewItem, error) {
	if !ValidDecision(status) || (status == StatusEdited && correction == "") {
		return ReviewItem{}, ErrInvalidStatus
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var (
		updated ReviewItem
		decided bool
	)
	found := q.items.Update(
		func(it ReviewItem) bool { return it.ID == id },
		func(it *ReviewItem) {
			if it.Status != StatusPending {
				decided = true
				return
			}
			it.Status = status
			it.ReviewerID = reviewerID
			it.Correction = correction
			it.UpdatedAt = q.now().UTC()
			updated = *it
		},
	)
	switch {
	case !found:
		return ReviewItem{}, ErrNotFound
	case decided:
		return ReviewItem{}, ErrAlreadyReviewed
	}
	return updated, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
