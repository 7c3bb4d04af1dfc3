package rlhf

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"wealthadvisor-ai/pkg/bandit"
)

const (
	StatusSuccess       = "success"
	StatusNoNewFeedback = "no_new_feedback"

	DefaultLookback = 7 * 24 * time.Hour
)

var ErrRunInProgress = errors.New("rlhf: a run is already in progress")

type Report struct {
	Status            string               `json:"status"`
	RecordsProcessed  int                  `json:"records_processed"`
	RunAt             string               `json:"run_at,omitempty"`
	PeriodStart       string               `json:"period_start,omitempty"`
	SignalBreakdown   map[string]int       `json:"signal_breakdown,omitempty"`
	AvgRewardByIntent map[string]float64   `json:"avg_reward_by_intent,omitempty"`
	ArmUpdates        map[string]ArmUpdate `json:"arm_updates,omitempty"`
	TopArmRanking     []Ranking            `json:"top_arm_ranking,omitempty"`
	ReportPath        string               `json:"-"`
}

// Paths locates the pipeline's files. RunState defaults to rlhf_state.json
// next to ArmStats.
type Paths struct {
	FeedbackLog string
	ArmStats    string
	Preferences string
	ReportsDir  string
	RunState    string
}

type Option func(*Pipeline)

func WithGamma(g float64) Option {
	return func(p *Pipeline) {
		if g > 0 && g <= 1 {
			p.gamma = g
		}
	}
}

func WithLookback(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.lookback = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
		p.feedback.now = now
		p.prefs.now = now
	}
}

func WithArms(arms []string) Option {
	return func(p *Pipeline) { p.arms = arms }
}

// Pipeline owns the feedback log and the two batch-learned tables.
type Pipeline struct {
	feedback   *FeedbackStore
	armStats   *ArmStatsStore
	prefs      *PreferenceStore
	reportsDir string
	statePath  string
	state      runState
	arms       []string
	gamma      float64
	lookback   time.Duration
	now        func() time.Time
	runMu      sync.Mutex
	log        *zap.Logger
}

func NewPipeline(paths Paths, log *zap.Logger, opts ...Option) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("rlhf")
	p := &Pipeline{
		feedback:   NewFeedbackStore(paths.FeedbackLog, log),
		prefs:      OpenPreferences(paths.Preferences, log),
		reportsDir: paths.ReportsDir,
		statePath:  paths.RunState,
		arms:       bandit.Actions,
		gamma:      DefaultGamma,
		lookback:   DefaultLookback,
		now:        time.Now,
		log:        log,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.armStats = OpenArmStats(paths.ArmStats, p.arms, log)
	if p.statePath == "" && paths.ArmStats != "" {
		p.statePath = filepath.Join(filepath.Dir(paths.ArmStats), "rlhf_state.json")
	}
	p.state = loadRunState(p.statePath, log)
	return p
}

func (p *Pipeline) FeedbackLog() *FeedbackStore { return p.feedback }

func (p *Pipeline) Preferences() *PreferenceStore { return p.prefs }

func (p *Pipeline) ArmStats() *ArmStatsStore { return p.armStats }

// PreferenceScore is the liked share of past answers to query.
func (p *Pipeline) PreferenceScore(query string) float64 {
	return p.prefs.Score(query)
}

// Run folds feedback newer than since into the arm statistics and
// preferences. Without since it takes the lookback window minus anything an
// earlier run already folded in; an explicit since reprocesses its window
// as given. An empty window changes nothing.
//
// Preferences are written before arm statistics and the watermark last, so
// a run that fails part way is retried in full and may count the
// preferences of that window twice.
func (p *Pipeline) Run(ctx context.Context, since *time.Time) (Report, error) {
	if !p.runMu.TryLock() {
		return Report{}, ErrRunInProgress
	}
	defer p.runMu.Unlock()

	now := p.now()
	cutoff := now.Add(-p.lookback)
	if since != nil {
		cutoff = *since
	}

	records, err := p.feedback.LoadSince(cutoff)
	if err != nil {
		return Report{}, err
	}
	if since == nil {
		records = p.unprocessed(records)
	}
	p.log.Info("loaded feedback", zap.Time("since", cutoff), zap.Int("records", len(records)))
	if len(records) == 0 {
		return Report{Status: StatusNoNewFeedback}, nil
	}
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	perArm := make(map[string][]float64)
	perIntent := make(map[string][]float64)
	breakdown := make(map[string]int)
	for _, rec := range records {
		r := Discount(rec.Signal.Reward(), now.Sub(rec.Time()), p.gamma)
		perArm[rec.Action] = append(perArm[rec.Action], r)
		perIntent[rec.Intent] = append(perIntent[rec.Intent], r)
		breakdown[string(rec.Signal)]++
	}

	if err := p.prefs.Apply(records); err != nil {
		return Report{}, err
	}
	updates, err := p.armStats.Apply(perArm)
	if err != nil {
		return Report{}, err
	}
	if err := p.advance(records, now); err != nil {
		return Report{}, fmt.Errorf("persist run state: %w", err)
	}

	byIntent := make(map[string]float64, len(perIntent))
	for in, rs := range perIntent {
		var sum float64
		for _, r := range rs {
			sum += r
		}
		byIntent[in] = math.Round(sum/float64(len(rs))*10000) / 10000
	}

	report := Report{
		Status:            StatusSuccess,
		RecordsProcessed:  len(records),
		RunAt:             now.UTC().Format(time.RFC3339),
		PeriodStart:       cutoff.UTC().Format(time.RFC3339),
		SignalBreakdown:   breakdown,
		AvgRewardByIntent: byIntent,
		ArmUpdates:        updates,
		TopArmRanking:     p.armStats.Rankings(),
	}
	report.ReportPath = filepath.Join(p.reportsDir, fmt.Sprintf("rlhf_%d.json", now.Unix()))
	if err := writeJSONAtomic(report.ReportPath, report); err != nil {
		return report, fmt.Errorf("persist report: %w", err)
	}
	p.log.Info("rlhf run complete",
		zap.Int("records", len(records)),
		zap.Int("arms_updated", len(updates)),
		zap.String("report", report.ReportPath),
	)
	return report, nil
}

type FeedbackRequest struct {
	SessionID string
	Query     string
	Answer    string
	Action    string
	Intent    string
	Signal    string
	UserID    string
}

type FeedbackResponse struct {
	Recorded bool    `json:"recorded"`
	ID       string  `json:"id,omitempty"`
	Reward   float64 `json:"reward,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// Feedback records an end-user rating, applying defaults for missing fields.
func (p *Pipeline) Feedback(req FeedbackRequest) FeedbackResponse {
	rec, err := p.feedback.Record(Record{
		SessionID: orDefault(req.SessionID, "anon"),
		Query:     req.Query,
		Answer:    req.Answer,
		Action:    orDefault(req.Action, bandit.FullPipeline),
		Intent:    orDefault(req.Intent, "general"),
		Signal:    Signal(orDefault(req.Signal, string(ThumbsUp))),
		UserID:    req.UserID,
	})
	if err != nil {
		return FeedbackResponse{Recorded: false, Error: err.Error()}
	}
	return FeedbackResponse{Recorded: true, ID: rec.ID, Reward: rec.Reward}
}

// RecordReview logs a reviewer decision as a reward signal.
func (p *Pipeline) RecordReview(rec Record) (Record, error) {
	return p.feedback.Record(rec)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
