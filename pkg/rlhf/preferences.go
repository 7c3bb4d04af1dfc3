package rlhf

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const neutralPreference = 0.5

// Preference counts how often answers to one normalised query were liked.
type Preference struct {
	QueryHash   string    `json:"query_hash"`
	Positive    int       `json:"positive"`
	Negative    int       `json:"negative"`
	LastUpdated time.Time `json:"last_updated"`
}

func (p Preference) Score() float64 {
	total := p.Positive + p.Negative
	if total == 0 {
		return neutralPreference
	}
	return float64(p.Positive) / float64(total)
}

// QueryKey is the hex SHA-256 of the lower-cased query.
func QueryKey(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(query)))
	return hex.EncodeToString(sum[:])
}

type PreferenceStore struct {
	path  string
	mu    sync.RWMutex
	prefs map[string]Preference
	now   func() time.Time
}

func OpenPreferences(path string, log *zap.Logger) *PreferenceStore {
	if log == nil {
		log = zap.NewNop()
	}
	s := &PreferenceStore{path: path, prefs: make(map[string]Preference), now: time.Now}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s
	}
	if err == nil {
		err = json.Unmarshal(raw, &s.prefs)
	}
	if err != nil {
		log.Warn("retrieval preferences unreadable, starting fresh", zap.String("path", path), zap.Error(err))
		s.prefs = make(map[string]Preference)
	}
	return s
}

// Score is the liked share for query, 0.5 when there is no history.
func (s *PreferenceStore) Score(query string) float64 {
	p, ok := s.Lookup(query)
	if !ok {
		return neutralPreference
	}
	return p.Score()
}

func (s *PreferenceStore) Lookup(query string) (Preference, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prefs[QueryKey(query)]
	return p, ok
}

// Apply counts each record as positive when its reward is above zero and
// persists the table.
func (s *PreferenceStore) Apply(records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]Preference, len(s.prefs))
	for k, v := range s.prefs {
		next[k] = v
	}
	now := s.now().UTC().Truncate(time.Second)
	for _, rec := range records {
		key := QueryKey(rec.Query)
		p := next[key]
		p.QueryHash = key
		if rec.Reward > 0 {
			p.Positive++
		} else {
			p.Negative++
		}
		p.LastUpdated = now
		next[key] = p
	}

	if err := writeJSONAtomic(s.path, next); err != nil {
		return fmt.Errorf("persist retrieval preferences: %w", err)
	}
	s.prefs = next
	return nil
}

func (s *PreferenceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.prefs)
}
