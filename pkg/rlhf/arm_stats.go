package rlhf

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ArmStats is the batch running average for one strategy. It is separate
// from the online bandit matrices.
type ArmStats struct {
	Arm         string  `json:"arm"`
	NSamples    int     `json:"n_samples"`
	TotalReward float64 `json:"total_reward"`
	AvgReward   float64 `json:"avg_reward"`
}

type ArmUpdate struct {
	NNew      int     `json:"n_new"`
	AvgBefore float64 `json:"avg_before"`
	AvgAfter  float64 `json:"avg_after"`
	Delta     float64 `json:"delta"`
}

type Ranking struct {
	Arm       string  `json:"arm"`
	AvgReward float64 `json:"avg_reward"`
	NSamples  int     `json:"n_samples"`
}

type ArmStatsStore struct {
	path  string
	order []string
	mu    sync.RWMutex
	arms  map[string]*ArmStats
}

// OpenArmStats loads path; a missing or unreadable file starts every arm at
// zero. Arms in the file that are not in arms are dropped.
func OpenArmStats(path string, arms []string, log *zap.Logger) *ArmStatsStore {
	if log == nil {
		log = zap.NewNop()
	}
	s := &ArmStatsStore{path: path, order: append([]string(nil), arms...), arms: make(map[string]*ArmStats)}
	for _, a := range arms {
		s.arms[a] = &ArmStats{Arm: a}
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s
	case err != nil:
		log.Warn("arm stats unreadable, starting fresh", zap.String("path", path), zap.Error(err))
		return s
	}
	var stored map[string]ArmStats
	if err := json.Unmarshal(raw, &stored); err != nil {
		log.Warn("arm stats corrupt, starting fresh", zap.String("path", path), zap.Error(err))
		return s
	}
	for name, st := range stored {
		if cur, ok := s.arms[name]; ok {
			*cur = st
			cur.Arm = name
		}
	}
	return s
}

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

// Apply folds discounted rewards per arm into the running averages and
// persists the result. Unknown arms are ignored.
func (s *ArmStatsStore) Apply(rewards map[string][]float64) (map[string]ArmUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]ArmStats, len(s.arms))
	for k, v := range s.arms {
		next[k] = *v
	}

	changes := make(map[string]ArmUpdate)
	for arm, rs := range rewards {
		st, ok := next[arm]
		if !ok || len(rs) == 0 {
			continue
		}
		before := st.AvgReward
		for _, r := range rs {
			st.TotalReward += r
		}
		st.NSamples += len(rs)
		st.AvgReward = st.TotalReward / float64(max(1, st.NSamples))
		next[arm] = st
		changes[arm] = ArmUpdate{
			NNew:      len(rs),
			AvgBefore: round4(before),
			AvgAfter:  round4(st.AvgReward),
			Delta:     round4(st.AvgReward - before),
		}
	}

	if err := writeJSONAtomic(s.path, next); err != nil {
		return nil, fmt.Errorf("persist arm stats: %w", err)
	}
	for k, v := range next {
		*s.arms[k] = v
	}
	return changes, nil
}

// Rankings orders arms by average reward, best first. Equal averages keep
// the configured arm order.
func (s *ArmStatsStore) Rankings() []Ranking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Ranking, 0, len(s.order))
	for _, name := range s.order {
		st := s.arms[name]
		out = append(out, Ranking{Arm: name, AvgReward: round4(st.AvgReward), NSamples: st.NSamples})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AvgReward > out[j].AvgReward })
	return out
}

func (s *ArmStatsStore) Get(arm string) (ArmStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.arms[arm]
	if !ok {
		return ArmStats{}, false
	}
	return *st, true
}
