package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newMemory(t *testing.T, opts ...Option) *SessionMemory {
	t.Helper()
	return NewSessionMemory(5, time.Hour, 0.01, nil, opts...)
}

func TestGet_CreatesEmptySession(t *testing.T) {
	m := newMemory(t)

	_, found := m.Lookup("brand-new")
	assert.False(t, found)

	s := m.Get("brand-new")
	assert.Equal(t, "brand-new", s.ID())
	assert.Empty(t, s.Exchanges())
	assert.Equal(t, 1, m.ActiveCount())

	info, found := m.Lookup("brand-new")
	require.True(t, found)
	assert.Equal(t, 0, info.ExchangeCount)
	assert.Equal(t, 5, info.WindowSize)
}

func TestAppend_KeepsLastWindowOldestFirst(t *testing.T) {
	m := newMemory(t)
	for i := 1; i <= 6; i++ {
		m.Append("s1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	got := m.Exchanges("s1")
	require.Len(t, got, 5)
	for i, ex := range got {
		assert.Equal(t, fmt.Sprintf("q%d", i+2), ex.Question)
		assert.Equal(t, fmt.Sprintf("a%d", i+2), ex.Answer)
	}

	info, _ := m.Lookup("s1")
	assert.Equal(t, 10, info.MessageCount)
}

func TestAppend_ConcurrentSameSessionLosesNothing(t *testing.T) {
	m := NewSessionMemory(1000, time.Hour, 0, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Append("shared", fmt.Sprintf("q%d", i), "a")
		}(i)
	}
	wg.Wait()
	assert.Len(t, m.Exchanges("shared"), 50)
}

func TestClear(t *testing.T) {
	m := newMemory(t)
	m.Append("s1", "q", "a")

	assert.True(t, m.Clear("s1"))
	assert.False(t, m.Clear("s1"))
	_, found := m.Lookup("s1")
	assert.False(t, found)
	assert.EqualValues(t, 1, m.EvictedTotal())

	// A cleared id starts over.
	assert.Empty(t, m.Exchanges("s1"))
}

func TestEvictStale(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)}
	m := newMemory(t, WithClock(clock.Now))

	m.Get("old")
	clock.Advance(50 * time.Minute)
	m.Get("fresh")
	clock.Advance(20 * time.Minute)

	assert.Equal(t, 1, m.EvictStale(time.Hour))
	_, found := m.Lookup("old")
	assert.False(t, found)
	_, found = m.Lookup("fresh")
	assert.True(t, found)
	assert.Equal(t, 1, m.ActiveCount())
}

func TestMaybeSweep_Sampled(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	roll := 0.5
	m := newMemory(t, WithClock(clock.Now), WithRoll(func() float64 { return roll }))

	m.Get("idle")
	clock.Advance(2 * time.Hour)

	assert.Equal(t, -1, m.MaybeSweep())
	assert.Equal(t, 1, m.ActiveCount())

	roll = 0.001
	assert.Equal(t, 1, m.MaybeSweep())
	assert.Equal(t, 0, m.ActiveCount())
}

func TestAppendAfterEvictionLandsInNewSession(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := newMemory(t, WithClock(clock.Now))

	m.Append("s1", "q1", "a1")
	clock.Advance(2 * time.Hour)
	require.Equal(t, 1, m.EvictStale(time.Hour))

	m.Append("s1", "q2", "a2")
	assert.Equal(t, []Exchange{{Question: "q2", Answer: "a2"}}, m.Exchanges("s1"))
}

func TestSweepRunsAlongsideReads(t *testing.T) {
	m := NewSessionMemory(5, time.Nanosecond, 1, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			for j := 0; j < 100; j++ {
				m.Append(id, "q", "a")
				_ = m.Exchanges(id)
				m.MaybeSweep()
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, m.ActiveCount(), 8)
}

func TestClearLeavesRecreatedSessionAlone(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := newMemory(t, WithClock(clock.Now))

	old := m.Get("s1")
	clock.Advance(2 * time.Hour)
	require.Equal(t, 1, m.EvictStale(time.Hour))
	m.Append("s1", "q2", "a2")
	current := m.Get("s1")
	require.NotSame(t, old, current)

	// A removal still holding the evicted state must not touch its successor.
	assert.False(t, m.removeIfCurrent("s1", old))
	assert.Equal(t, []Exchange{{Question: "q2", Answer: "a2"}}, m.Exchanges("s1"))

	assert.True(t, m.Clear("s1"))
	assert.True(t, current.dead)
	assert.False(t, m.Clear("s1"))
	assert.Zero(t, m.ActiveCount())
}

func TestClearRacingRecreation(t *testing.T) {
	m := newMemory(t)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				m.Append("s1", "q", "a")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				m.Clear("s1")
			}
		}()
	}
	wg.Wait()

	// Whatever survived is live and reachable.
	if x, found := m.store.Get("s1"); found {
		assert.False(t, x.(*SessionState).dead)
	}
	assert.LessOrEqual(t, m.ActiveCount(), 1)
}
