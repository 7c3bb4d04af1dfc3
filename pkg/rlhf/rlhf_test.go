package rlhf

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthadvisor-ai/pkg/bandit"
)

var epoch = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func testPaths(t *testing.T) Paths {
	dir := t.TempDir()
	return Paths{
		FeedbackLog: filepath.Join(dir, "feedback_store.jsonl"),
		ArmStats:    filepath.Join(dir, "rl_arm_stats.json"),
		Preferences: filepath.Join(dir, "retrieval_prefs.json"),
		ReportsDir:  filepath.Join(dir, "rlhf_reports"),
	}
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestDiscount(t *testing.T) {
	day := 24 * time.Hour
	assert.InDelta(t, 1.0, Discount(1, 0, 0.9), 1e-12)
	assert.InDelta(t, 1.0, Discount(1, 3*day, 0.9), 1e-12, "under a week counts as one")
	assert.InDelta(t, 0.9, Discount(1, 14*day, 0.9), 1e-12)
	assert.InDelta(t, 0.81, Discount(1, 21*day, 0.9), 1e-12)
	assert.InDelta(t, -0.45, Discount(-0.5, 14*day, 0.9), 1e-12)
	assert.InDelta(t, 1.5, Discount(1.5, -time.Hour, 0.9), 1e-12)
}

func TestParseSignal(t *testing.T) {
	s, err := ParseSignal("ca_corrected")
	require.NoError(t, err)
	assert.Equal(t, 1.5, s.Reward())

	_, err = ParseSignal("meh")
	assert.Error(t, err)
}

func TestFeedbackStore_RecordAndLoadSince(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fb", "log.jsonl")
	s := NewFeedbackStore(path, nil)
	s.now = fixedClock(epoch)

	first, err := s.Record(Record{SessionID: "s1", Query: "q1", Signal: ThumbsDown})
	require.NoError(t, err)
	assert.Len(t, first.ID, 16)
	assert.Equal(t, -0.5, first.Reward)
	assert.WithinDuration(t, epoch, first.Time(), time.Millisecond)

	s.now = fixedClock(epoch.Add(time.Hour))
	_, err = s.Record(Record{SessionID: "s1", Query: "q2", Signal: ThumbsUp})
	require.NoError(t, err)

	_, err = s.Record(Record{SessionID: "s1", Query: "q3", Signal: "meh"})
	assert.Error(t, err)

	recent, err := s.LoadSince(epoch.Add(30 * time.Minute))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "q2", recent[0].Query)

	all, err := s.LoadAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFeedbackStore_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	content := `{"id":"a","ts":1700000000,"session_id":"s","query":"q","signal":"thumbs_up","reward":1}
not json at all
{"id":"b","ts":1700000001,"session_id":"s","query":"q","signal":"shrug","reward":0}

`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	recs, err := NewFeedbackStore(path, nil).LoadAll()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a", recs[0].ID)
}

func TestFeedbackStore_MissingFile(t *testing.T) {
	recs, err := NewFeedbackStore(filepath.Join(t.TempDir(), "none.jsonl"), nil).LoadAll()
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestPipeline_FeedbackDefaults(t *testing.T) {
	p := NewPipeline(testPaths(t), nil, WithClock(fixedClock(epoch)))

	resp := p.Feedback(FeedbackRequest{Query: "What is the 80C limit?", Answer: "₹1.5 lakh"})
	require.True(t, resp.Recorded)
	assert.Len(t, resp.ID, 16)
	assert.Equal(t, 1.0, resp.Reward)

	recs, err := p.FeedbackLog().LoadAll()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "anon", recs[0].SessionID)
	assert.Equal(t, bandit.FullPipeline, recs[0].Action)
	assert.Equal(t, "general", recs[0].Intent)
	assert.Equal(t, ThumbsUp, recs[0].Signal)

	bad := p.Feedback(FeedbackRequest{Query: "q", Signal: "meh"})
	assert.False(t, bad.Recorded)
	assert.NotEmpty(t, bad.Error)
}

func TestPipeline_Run(t *testing.T) {
	paths := testPaths(t)
	p := NewPipeline(paths, nil, WithClock(fixedClock(epoch)))

	for _, req := range []FeedbackRequest{
		{SessionID: "s1", Query: "What is STCG?", Intent: "tax", Action: bandit.FullPipeline, Signal: string(ThumbsUp)},
		{SessionID: "s2", Query: "what is stcg?", Intent: "tax", Action: bandit.FullPipeline, Signal: string(ThumbsDown)},
		{SessionID: "s3", Query: "Section 80C limit", Intent: "tax", Action: bandit.IntentBoosted, Signal: string(CAApproved)},
	} {
		require.True(t, p.Feedback(req).Recorded)
	}

	report, err := p.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, report.Status)
	assert.Equal(t, 3, report.RecordsProcessed)
	assert.Equal(t, map[string]int{"thumbs_up": 1, "thumbs_down": 1, "ca_approved": 1}, report.SignalBreakdown)
	assert.Equal(t, map[string]float64{"tax": 0.6667}, report.AvgRewardByIntent)
	assert.Equal(t, ArmUpdate{NNew: 2, AvgBefore: 0, AvgAfter: 0.25, Delta: 0.25}, report.ArmUpdates[bandit.FullPipeline])
	assert.Equal(t, ArmUpdate{NNew: 1, AvgBefore: 0, AvgAfter: 1.5, Delta: 1.5}, report.ArmUpdates[bandit.IntentBoosted])
	assert.Equal(t, epoch.Format(time.RFC3339), report.RunAt)
	assert.Equal(t, epoch.Add(-DefaultLookback).Format(time.RFC3339), report.PeriodStart)

	require.Len(t, report.TopArmRanking, len(bandit.Actions))
	assert.Equal(t, bandit.IntentBoosted, report.TopArmRanking[0].Arm)
	assert.Equal(t, bandit.FullPipeline, report.TopArmRanking[1].Arm)
	assert.Equal(t, bandit.RetrievalOnly, report.TopArmRanking[2].Arm, "ties keep arm order")

	assert.Equal(t, 0.5, p.PreferenceScore("WHAT IS STCG?"))
	assert.Equal(t, 1.0, p.PreferenceScore("section 80c limit"))
	assert.Equal(t, 0.5, p.PreferenceScore("never asked"))
	pref, ok := p.Preferences().Lookup("What is STCG?")
	require.True(t, ok)
	assert.Equal(t, 1, pref.Positive)
	assert.Equal(t, 1, pref.Negative)

	raw, err := os.ReadFile(filepath.Join(paths.ReportsDir, "rlhf_1741597200.json"))
	require.NoError(t, err)
	var onDisk map[string]any
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, "success", onDisk["status"])
	assert.EqualValues(t, 3, onDisk["records_processed"])

	// Stores reload from disk.
	reopened := NewPipeline(paths, nil, WithClock(fixedClock(epoch)))
	st, ok := reopened.ArmStats().Get(bandit.IntentBoosted)
	require.True(t, ok)
	assert.Equal(t, 1, st.NSamples)
	assert.InDelta(t, 1.5, st.AvgReward, 1e-12)
	assert.Equal(t, 1.0, reopened.PreferenceScore("Section 80C limit"))
}

func TestPipeline_RunWithoutFeedbackChangesNothing(t *testing.T) {
	paths := testPaths(t)
	p := NewPipeline(paths, nil, WithClock(fixedClock(epoch)))

	for range 2 {
		report, err := p.Run(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, StatusNoNewFeedback, report.Status)
		assert.Zero(t, report.RecordsProcessed)
	}

	raw, err := json.Marshal(Report{Status: StatusNoNewFeedback})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"no_new_feedback","records_processed":0}`, string(raw))

	assert.NoFileExists(t, paths.ArmStats)
	assert.NoFileExists(t, paths.Preferences)
	assert.NoDirExists(t, paths.ReportsDir)
}

func TestPipeline_RunSinceExcludesOlderFeedback(t *testing.T) {
	paths := testPaths(t)
	p := NewPipeline(paths, nil, WithClock(fixedClock(epoch)))
	require.True(t, p.Feedback(FeedbackRequest{Query: "q"}).Recorded)

	later := epoch.Add(time.Minute)
	report, err := p.Run(context.Background(), &later)
	require.NoError(t, err)
	assert.Equal(t, StatusNoNewFeedback, report.Status)
	assert.NoFileExists(t, paths.ArmStats)
}

func TestPipeline_DiscountsOldFeedback(t *testing.T) {
	paths := testPaths(t)
	p := NewPipeline(paths, nil, WithClock(fixedClock(epoch)))
	require.True(t, p.Feedback(FeedbackRequest{Query: "q", Action: bandit.EntityFocused}).Recorded)

	later := NewPipeline(paths, nil, WithClock(fixedClock(epoch.Add(14*24*time.Hour))))
	since := epoch.Add(-time.Hour)
	report, err := later.Run(context.Background(), &since)
	require.NoError(t, err)
	assert.Equal(t, 0.9, report.ArmUpdates[bandit.EntityFocused].AvgAfter)
}

func TestPipeline_UnknownArmSkipped(t *testing.T) {
	p := NewPipeline(testPaths(t), nil, WithClock(fixedClock(epoch)))
	require.True(t, p.Feedback(FeedbackRequest{Query: "q", Action: "mystery_arm"}).Recorded)

	report, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.RecordsProcessed)
	assert.Empty(t, report.ArmUpdates)
	assert.Len(t, report.TopArmRanking, len(bandit.Actions))
	_, ok := p.ArmStats().Get("mystery_arm")
	assert.False(t, ok)
}

func TestPipeline_RunLock(t *testing.T) {
	p := NewPipeline(testPaths(t), nil, WithClock(fixedClock(epoch)))
	p.runMu.Lock()
	_, err := p.Run(context.Background(), nil)
	p.runMu.Unlock()
	assert.ErrorIs(t, err, ErrRunInProgress)

	_, err = p.Run(context.Background(), nil)
	assert.NoError(t, err)
}

func TestArmStats_CorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0o644))

	s := OpenArmStats(path, bandit.Actions, nil)
	st, ok := s.Get(bandit.RetrievalOnly)
	require.True(t, ok)
	assert.Zero(t, st.NSamples)

	up, err := s.Apply(map[string][]float64{bandit.RetrievalOnly: {1, 0.5}})
	require.NoError(t, err)
	assert.Equal(t, 0.75, up[bandit.RetrievalOnly].AvgAfter)

	again := OpenArmStats(path, bandit.Actions, nil)
	st, _ = again.Get(bandit.RetrievalOnly)
	assert.Equal(t, 2, st.NSamples)
	assert.InDelta(t, 1.5, st.TotalReward, 1e-12)
}

func TestPipeline_RerunSkipsProcessedFeedback(t *testing.T) {
	paths := testPaths(t)
	p := NewPipeline(paths, nil, WithClock(fixedClock(epoch)))
	_, ok := p.LastProcessed()
	assert.False(t, ok)

	require.True(t, p.Feedback(FeedbackRequest{Query: "What is STCG?", Action: bandit.IntentBoosted}).Recorded)
	report, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.RecordsProcessed)
	last, ok := p.LastProcessed()
	require.True(t, ok)
	assert.WithinDuration(t, epoch, last, time.Millisecond)

	report, err = p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusNoNewFeedback, report.Status)
	st, _ := p.ArmStats().Get(bandit.IntentBoosted)
	assert.Equal(t, 1, st.NSamples)
	pref, _ := p.Preferences().Lookup("What is STCG?")
	assert.Equal(t, 1, pref.Positive)

	// The watermark survives a restart; only newer feedback is folded in.
	later := NewPipeline(paths, nil, WithClock(fixedClock(epoch.Add(time.Minute))))
	require.True(t, later.Feedback(FeedbackRequest{Query: "What is STCG?", Action: bandit.IntentBoosted, Signal: string(ThumbsDown)}).Recorded)
	report, err = later.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.RecordsProcessed)
	st, _ = later.ArmStats().Get(bandit.IntentBoosted)
	assert.Equal(t, 2, st.NSamples)
	pref, _ = later.Preferences().Lookup("What is STCG?")
	assert.Equal(t, 1, pref.Positive)
	assert.Equal(t, 1, pref.Negative)
	assert.FileExists(t, filepath.Join(filepath.Dir(paths.ArmStats), "rlhf_state.json"))

	// An explicit window is reprocessed as asked.
	since := epoch.Add(-time.Hour)
	report, err = later.Run(context.Background(), &since)
	require.NoError(t, err)
	assert.Equal(t, 2, report.RecordsProcessed)
}
