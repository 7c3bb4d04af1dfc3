package bandit

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	RatingUp   = "up"
	RatingDown = "down"
)

// sessionState remembers the last decision so later feedback can be
// attributed to it.
type sessionState struct {
	mu            sync.Mutex
	exchangeCount int
	feedbackSum   float64
	feedbackCount int
	lastAction    int
	lastIntent    string
	lastContext   []float64
}

func (s *sessionState) avgFeedback() float64 {
	if s.feedbackCount == 0 {
		return 0
	}
	return s.feedbackSum / float64(s.feedbackCount)
}

type StrategyResult struct {
	Action        string             `json:"action"`
	ActionIdx     int                `json:"action_idx"`
	UCBScores     map[string]float64 `json:"ucb_scores"`
	ContextVector []float64          `json:"context_vector"`
}

// StrategySelector wraps a Bandit with per-session attribution state.
type StrategySelector struct {
	bandit   *Bandit
	sessions *cache.Cache
	mu       sync.Mutex
	log      *zap.Logger
}

// NewStrategySelector keeps attribution state for idle sessions up to ttl.
func NewStrategySelector(b *Bandit, ttl time.Duration, log *zap.Logger) *StrategySelector {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &StrategySelector{
		bandit:   b,
		sessions: cache.New(ttl, ttl/2),
		log:      log.Named("strategy"),
	}
}

func (s *StrategySelector) Bandit() *Bandit { return s.bandit }

func (s *StrategySelector) state(sessionID string, create bool) (*sessionState, bool) {
	if v, ok := s.sessions.Get(sessionID); ok {
		s.sessions.SetDefault(sessionID, v)
		return v.(*sessionState), true
	}
	if !create {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.sessions.Get(sessionID); ok {
		return v.(*sessionState), true
	}
	st := &sessionState{lastAction: -1}
	s.sessions.SetDefault(sessionID, st)
	return st, true
}

// SelectStrategy proposes an arm and commits it as the session's decision.
func (s *StrategySelector) SelectStrategy(sessionID string, labels Labels) (StrategyResult, error) {
	res, err := s.Propose(sessionID, labels)
	if err != nil {
		return StrategyResult{}, err
	}
	s.Commit(sessionID, labels.Intent, res)
	return res, nil
}

// Propose builds the context vector for the session's next exchange and asks
// the bandit for an arm. Session state is left untouched until Commit.
func (s *StrategySelector) Propose(sessionID string, labels Labels) (StrategyResult, error) {
	exchanges, avg := 1, 0.0
	if st, ok := s.state(sessionID, false); ok {
		st.mu.Lock()
		exchanges = st.exchangeCount + 1
		avg = st.avgFeedback()
		st.mu.Unlock()
	}

	x := ContextVector(labels, exchanges, avg)
	sel, err := s.bandit.Select(x)
	if err != nil {
		return StrategyResult{}, err
	}

	s.log.Debug("strategy selected",
		zap.String("session_id", sessionID),
		zap.String("action", sel.Action),
		zap.Any("ucb", sel.Scores))

	return StrategyResult{
		Action:        sel.Action,
		ActionIdx:     sel.Index,
		UCBScores:     sel.Scores,
		ContextVector: x,
	}, nil
}

// Commit counts the exchange and makes res the decision later feedback is
// attributed to.
func (s *StrategySelector) Commit(sessionID, intent string, res StrategyResult) {
	st, _ := s.state(sessionID, true)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.exchangeCount++
	st.lastAction = res.ActionIdx
	st.lastIntent = intent
	st.lastContext = res.ContextVector
}

// RecordFeedback rewards the session's last selection with +1 for "up" and
// -1 otherwise. It reports false without touching the bandit when the
// session has no selection to attribute.
func (s *StrategySelector) RecordFeedback(sessionID, rating string) (bool, error) {
	st, ok := s.state(sessionID, false)
	if !ok {
		s.log.Warn("no strategy state to update", zap.String("session_id", sessionID))
		return false, nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.lastAction < 0 || st.lastContext == nil {
		s.log.Warn("no strategy state to update", zap.String("session_id", sessionID))
		return false, nil
	}

	reward := -1.0
	if rating == RatingUp {
		reward = 1.0
	}
	if err := s.bandit.Update(st.lastAction, st.lastContext, reward); err != nil {
		return false, err
	}
	st.feedbackSum += reward
	st.feedbackCount++

	s.log.Info("strategy feedback applied",
		zap.String("session_id", sessionID),
		zap.String("action", Actions[st.lastAction]),
		zap.Float64("reward", reward),
		zap.Float64("avg_feedback", st.avgFeedback()))
	return true, nil
}

// Decision is the last selection made for a session.
type Decision struct {
	Action string
	Intent string
}

// LastDecision reports the session's most recent selection, if any.
func (s *StrategySelector) LastDecision(sessionID string) (Decision, bool) {
	st, ok := s.state(sessionID, false)
	if !ok {
		return Decision{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.lastAction < 0 {
		return Decision{}, false
	}
	return Decision{Action: Actions[st.lastAction], Intent: st.lastIntent}, true
}

// Forget drops attribution state for a session.
func (s *StrategySelector) Forget(sessionID string) {
	s.sessions.Delete(sessionID)
}
