package evaluation

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrievalEval(t *testing.T) {
	e := RetrievalEval{Retrieved: []string{"A", "B", "C", "D"}, Relevant: []string{"B", "D", "E"}}

	assert.Equal(t, 0.5, e.PrecisionAtK())
	assert.Equal(t, 0.6667, e.RecallAtK())
	assert.Equal(t, 0.5714, e.F1AtK())
	assert.Equal(t, 0.5, e.ReciprocalRank())
	assert.Equal(t, 0.4982, e.NDCGAtK())
	assert.Equal(t, 0.0, e.HitRate())
}

func TestRetrievalEval_EdgeCases(t *testing.T) {
	empty := RetrievalEval{Relevant: []string{"A"}}
	assert.Zero(t, empty.PrecisionAtK())
	assert.Zero(t, empty.ReciprocalRank())
	assert.Zero(t, empty.HitRate())

	perfect := RetrievalEval{Retrieved: []string{"A", "B"}, Relevant: []string{"A", "B"}}
	assert.Equal(t, 0.5, perfect.PrecisionAtK(), "precision divides by k")
	assert.Equal(t, 1.0, perfect.RecallAtK())
	assert.Equal(t, 1.0, perfect.NDCGAtK())
	assert.Equal(t, 1.0, perfect.HitRate())

	late := RetrievalEval{Retrieved: []string{"x", "x", "x", "x", "A"}, Relevant: []string{"A"}}
	assert.Zero(t, late.RecallAtK())
	assert.Equal(t, 0.2, late.ReciprocalRank(), "rank counts beyond k")
}

func TestTextMetrics(t *testing.T) {
	assert.Equal(t, 0.6667, BLEU1("the cat sat", "The cat is here"))
	assert.Zero(t, BLEU1("", "anything"))
	assert.Equal(t, 0.8333, RougeL("the cat sat on the mat", "the cat is on the mat"))
	assert.Zero(t, RougeL("words", ""))
}

func TestFaithfulness(t *testing.T) {
	ctx := []string{"Short term gains: STCG under section 111A is taxed at 20%"}
	assert.Equal(t, 0.5, Faithfulness("STCG under section 111A is 20%. Bananas are yellow.", ctx))
	assert.Equal(t, 1.0, Faithfulness("stcg under SECTION 111A applies", ctx))
	assert.Zero(t, Faithfulness("...", ctx))
}

func TestStore_RecordAndAggregate(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "metrics", "evaluation_metrics.jsonl")
	col := NewCollector()
	s := NewStore(nil, WithLogPath(logPath), WithCollector(col), WithWindow(2))

	s.Record(Observation{Intent: "tax", Answer: "x", Latency: Latency{TotalMs: 999}})
	withTruth := s.Record(Observation{
		Intent:          "tax",
		RetrievedTitles: []string{"A", "B", "C", "D"},
		RelevantTitles:  []string{"B", "D", "E"},
		Answer:          "the cat sat",
		Reference:       "the cat is here",
		Latency:         Latency{EmbedMs: 10, RetrieveMs: 20, LLMMs: 70, TotalMs: 100, CachedEmbedding: true},
	})
	s.Record(Observation{Intent: "budget", Answer: "y", Latency: Latency{TotalMs: 300}})

	require.NotNil(t, withTruth.Retrieval)
	require.NotNil(t, withTruth.Response.BLEU1)
	assert.Equal(t, 0.6667, *withTruth.Response.BLEU1)

	agg := s.Aggregate()
	assert.EqualValues(t, 3, agg.TotalQueries)
	assert.Equal(t, 2, agg.WindowSize)
	assert.Equal(t, 1, agg.Retrieval.SampleCount)
	assert.Equal(t, 0.5, agg.Retrieval.PrecisionAtK)
	assert.Equal(t, 2, agg.Response.SampleCount)
	assert.Equal(t, 200.0, agg.LatencyMs.TotalAvg)
	assert.Equal(t, 0.5, agg.LatencyMs.CacheHitRate)
	assert.Equal(t, map[string]int{"tax": 1, "budget": 1}, agg.IntentDistribution)

	f, err := os.Open(logPath)
	require.NoError(t, err)
	defer f.Close()
	var lines int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		lines++
	}
	assert.Equal(t, 3, lines)

	assert.Equal(t, 4, testutil.CollectAndCount(col.stage))
}

func TestStore_EmptyAggregate(t *testing.T) {
	agg := NewStore(nil).Aggregate()
	assert.Zero(t, agg.TotalQueries)
	assert.Zero(t, agg.LatencyMs.CacheHitRate)
}

func TestStore_LogFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	s := NewStore(nil, WithLogPath(filepath.Join(blocker, "metrics.jsonl")))
	s.Record(Observation{Intent: "tax", Answer: "a"})
	assert.EqualValues(t, 1, s.Aggregate().TotalQueries)
}

func TestCollector(t *testing.T) {
	c := NewCollector()
	c.ObserveQuery("tax", "full_pipeline")
	c.ObserveQuery("tax", "full_pipeline")
	c.ObserveEscalation()
	c.ObserveCache(true)
	c.ObserveCache(false)
	c.ObserveCache(true)
	c.ObserveFeedback("thumbs_up")
	c.ObserveStage(StageLLM, 250*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.queries.WithLabelValues("tax", "full_pipeline")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.escalations))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.cache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cache.WithLabelValues("miss")))

	families, err := c.Registry().Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["wealthadvisor_queries_total"])
	assert.True(t, names["wealthadvisor_stage_duration_seconds"])
}
