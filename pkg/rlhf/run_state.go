package rlhf

import (
	"encoding/json"
	"errors"
	"os"
	"time"

	"go.uber.org/zap"
)

// runState is the watermark of the newest feedback folded in by a run.
// Default runs skip records at or before it.
type runState struct {
	LastProcessedTS float64 `json:"last_processed_ts"`
	LastRunAt       string  `json:"last_run_at,omitempty"`
}

func loadRunState(path string, log *zap.Logger) runState {
	var st runState
	if path == "" {
		return st
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return st
	}
	if err == nil {
		err = json.Unmarshal(raw, &st)
	}
	if err != nil {
		log.Warn("rlhf run state unreadable, reprocessing the lookback window", zap.String("path", path), zap.Error(err))
		return runState{}
	}
	return st
}

// advance moves the watermark to the newest record and persists it.
func (p *Pipeline) advance(records []Record, now time.Time) error {
	next := p.state
	for _, rec := range records {
		if rec.TS > next.LastProcessedTS {
			next.LastProcessedTS = rec.TS
		}
	}
	next.LastRunAt = now.UTC().Format(time.RFC3339)
	if p.statePath != "" {
		if err := writeJSONAtomic(p.statePath, next); err != nil {
			return err
		}
	}
	p.state = next
	return nil
}

func (p *Pipeline) unprocessed(records []Record) []Record {
	out := records[:0]
	for _, rec := range records {
		if rec.TS > p.state.LastProcessedTS {
			out = append(out, rec)
		}
	}
	return out
}

// LastProcessed is the timestamp of the newest feedback already folded in.
func (p *Pipeline) LastProcessed() (time.Time, bool) {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.state.LastProcessedTS == 0 {
		return time.Time{}, false
	}
	return Record{TS: p.state.LastProcessedTS}.Time(), true
}
