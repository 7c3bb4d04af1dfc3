package memory

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"wealthadvisor-ai/pkg/utils"
)

const DefaultWindowSize = 5

type Exchange struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type SessionInfo struct {
	SessionID     string    `json:"session_id"`
	WindowSize    int       `json:"window_size"`
	ExchangeCount int       `json:"exchange_count"`
	MessageCount  int       `json:"message_count"`
	CreatedAt     time.Time `json:"created_at"`
	LastAccessed  time.Time `json:"last_accessed"`
	AgeSeconds    float64   `json:"age_seconds"`
}

// SessionState is one conversation's bounded history. Appends are serialized
// by mu; an entry marked dead has been evicted and must not be written to.
type SessionState struct {
	id        string
	createdAt time.Time
	lastNanos atomic.Int64

	mu        sync.Mutex
	exchanges *utils.Ring[Exchange]
	dead      bool
}

func (s *SessionState) ID() string { return s.id }

// Exchanges returns the retained exchanges, oldest first.
func (s *SessionState) Exchanges() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchanges.Items()
}

func (s *SessionState) lastAccessed() time.Time {
	return time.Unix(0, s.lastNanos.Load())
}

// SessionMemory keeps one SessionState per session id in a go-cache store.
// Items never expire on their own; idle sessions are removed by EvictStale,
// which MaybeSweep runs on a sampled fraction of calls.
type SessionMemory struct {
	store *cache.Cache
	// storeMu orders session creation against removal.
	storeMu    sync.Mutex
	windowSize int
	maxIdle    time.Duration
	sweepProb  float64
	log        *zap.Logger

	now  func() time.Time
	roll func() float64

	evicted atomic.Int64
}

type Option func(*SessionMemory)

func WithClock(now func() time.Time) Option {
	return func(m *SessionMemory) { m.now = now }
}

// WithRoll replaces the sweep sampler. Used by tests.
func WithRoll(roll func() float64) Option {
	return func(m *SessionMemory) { m.roll = roll }
}

func NewSessionMemory(windowSize int, maxIdle time.Duration, sweepProb float64, log *zap.Logger, opts ...Option) *SessionMemory {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if maxIdle <= 0 {
		maxIdle = time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	m := &SessionMemory{
		store:      cache.New(cache.NoExpiration, 0),
		windowSize: windowSize,
		maxIdle:    maxIdle,
		sweepProb:  sweepProb,
		log:        log.Named("session_memory"),
		now:        time.Now,
		roll:       rand.Float64,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.store.OnEvicted(func(string, interface{}) { m.evicted.Add(1) })
	return m
}

// Get returns the session, creating it on first reference, and marks it accessed.
func (m *SessionMemory) Get(sessionID string) *SessionState {
	for {
		if x, found := m.store.Get(sessionID); found {
			s := x.(*SessionState)
			s.lastNanos.Store(m.now().UnixNano())
			return s
		}
		s := &SessionState{
			id:        sessionID,
			createdAt: m.now(),
			exchanges: utils.NewRing[Exchange](m.windowSize),
		}
		s.lastNanos.Store(s.createdAt.UnixNano())
		m.storeMu.Lock()
		err := m.store.Add(sessionID, s, cache.NoExpiration)
		m.storeMu.Unlock()
		if err == nil {
			m.log.Info("new session created", zap.String("session_id", sessionID), zap.Int("window", m.windowSize))
			return s
		}
		// Lost a creation race; read the winner.
	}
}

// Lookup reports a session's metadata without creating or touching it.
func (m *SessionMemory) Lookup(sessionID string) (SessionInfo, bool) {
	x, found := m.store.Get(sessionID)
	if !found {
		return SessionInfo{}, false
	}
	return m.info(x.(*SessionState)), true
}

func (m *SessionMemory) info(s *SessionState) SessionInfo {
	s.mu.Lock()
	n := s.exchanges.Len()
	s.mu.Unlock()
	last := s.lastAccessed()
	age := m.now().Sub(last).Seconds()
	return SessionInfo{
		SessionID:     s.id,
		WindowSize:    m.windowSize,
		ExchangeCount: n,
		MessageCount:  2 * n,
		CreatedAt:     s.createdAt,
		LastAccessed:  last,
		AgeSeconds:    float64(int64(age*10)) / 10,
	}
}

func (m *SessionMemory) Exchanges(sessionID string) []Exchange {
	return m.Get(sessionID).Exchanges()
}

// Append records one exchange; beyond the window the oldest is dropped.
// If the session is evicted concurrently the append goes to a fresh session.
func (m *SessionMemory) Append(sessionID, question, answer string) {
	for {
		s := m.Get(sessionID)
		s.mu.Lock()
		if s.dead {
			s.mu.Unlock()
			continue
		}
		s.exchanges.Push(Exchange{Question: question, Answer: answer})
		s.mu.Unlock()
		return
	}
}

// Clear removes a session. It reports whether the session existed.
func (m *SessionMemory) Clear(sessionID string) bool {
	for {
		x, found := m.store.Get(sessionID)
		if !found {
			return false
		}
		s := x.(*SessionState)
		s.mu.Lock()
		removed := !s.dead && m.removeIfCurrent(sessionID, s)
		if removed {
			s.dead = true
		}
		s.mu.Unlock()
		if removed {
			m.log.Info("session cleared", zap.String("session_id", sessionID))
			return true
		}
		// Evicted or replaced in the meantime; look again.
	}
}

// removeIfCurrent deletes the entry only while it still holds s.
func (m *SessionMemory) removeIfCurrent(sessionID string, s *SessionState) bool {
	m.storeMu.Lock()
	defer m.storeMu.Unlock()
	x, found := m.store.Get(sessionID)
	if !found || x.(*SessionState) != s {
		return false
	}
	m.store.Delete(sessionID)
	return true
}

// EvictStale removes sessions idle for longer than maxAge and returns how many went.
func (m *SessionMemory) EvictStale(maxAge time.Duration) int {
	now := m.now()
	removed := 0
	for id, item := range m.store.Items() {
		s := item.Object.(*SessionState)
		s.mu.Lock()
		if !s.dead && now.Sub(s.lastAccessed()) > maxAge && m.removeIfCurrent(id, s) {
			s.dead = true
			removed++
		}
		s.mu.Unlock()
	}
	if removed > 0 {
		m.log.Info("evicted stale sessions", zap.Int("count", removed))
	}
	return removed
}

// MaybeSweep runs EvictStale with the configured idle age on a sampled
// fraction of calls. It returns the number evicted, or -1 if it did not run.
func (m *SessionMemory) MaybeSweep() int {
	if m.roll() >= m.sweepProb {
		return -1
	}
	return m.EvictStale(m.maxIdle)
}

func (m *SessionMemory) ActiveCount() int {
	return m.store.ItemCount()
}

// EvictedTotal counts every session removed so far, cleared or stale.
func (m *SessionMemory) EvictedTotal() int64 {
	return m.evicted.Load()
}

func (m *SessionMemory) WindowSize() int {
	return m.windowSize
}
