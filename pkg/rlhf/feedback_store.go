package rlhf

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const maxStoredAnswer = 500

// Record is one line of the feedback log. TS is unix seconds.
type Record struct {
	ID         string  `json:"id"`
	TS         float64 `json:"ts"`
	SessionID  string  `json:"session_id"`
	Query      string  `json:"query"`
	Answer     string  `json:"answer"`
	Action     string  `json:"action"`
	Intent     string  `json:"intent"`
	Signal     Signal  `json:"signal"`
	Reward     float64 `json:"reward"`
	UserID     string  `json:"user_id,omitempty"`
	ReviewerID string  `json:"reviewer_id,omitempty"`
	Correction string  `json:"correction,omitempty"`
}

func (r Record) Time() time.Time {
	sec, frac := int64(r.TS), r.TS-float64(int64(r.TS))
	return time.Unix(sec, int64(frac*1e9))
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// FeedbackStore is an append-only JSONL log.
type FeedbackStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
	log  *zap.Logger
}

func NewFeedbackStore(path string, log *zap.Logger) *FeedbackStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &FeedbackStore{path: path, now: time.Now, log: log.Named("feedback")}
}

// Record fills in id, timestamp and reward, appends the line and returns
// the stored record.
func (s *FeedbackStore) Record(rec Record) (Record, error) {
	if _, err := ParseSignal(string(rec.Signal)); err != nil {
		return Record{}, err
	}
	now := s.now()
	rec.TS = unixSeconds(now)
	sum := sha256.Sum256([]byte(rec.SessionID + rec.Query + strconv.FormatFloat(rec.TS, 'f', -1, 64)))
	rec.ID = hex.EncodeToString(sum[:])[:16]
	rec.Reward = rec.Signal.Reward()
	if r := []rune(rec.Answer); len(r) > maxStoredAnswer {
		rec.Answer = string(r[:maxStoredAnswer])
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return Record{}, err
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return Record{}, fmt.Errorf("create feedback dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return Record{}, fmt.Errorf("open feedback log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return Record{}, fmt.Errorf("append feedback: %w", err)
	}
	return rec, nil
}

// LoadSince returns records at or after since. Malformed lines are skipped.
func (s *FeedbackStore) LoadSince(since time.Time) ([]Record, error) {
	return s.load(unixSeconds(since))
}

func (s *FeedbackStore) LoadAll() ([]Record, error) {
	return s.load(0)
}

func (s *FeedbackStore) load(since float64) ([]Record, error) {
	s.mu.Lock()
	raw, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read feedback log: %w", err)
	}

	var (
		out     []Record
		skipped int
	)
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			skipped++
			continue
		}
		if _, err := ParseSignal(string(rec.Signal)); err != nil {
			skipped++
			continue
		}
		if rec.TS >= since {
			out = append(out, rec)
		}
	}
	if skipped > 0 {
		s.log.Warn("skipped malformed feedback lines", zap.Int("count", skipped))
	}
	return out, sc.Err()
}
