package confidence

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"wealthadvisor-ai/pkg/hallucination"
)

const (
	stcgQuery   = "What is STCG tax rate on equity shares?"
	stcgCorrect = "Under Section 111A, Short-Term Capital Gains on equity shares and equity mutual funds are taxed at 20% (post-Budget 2024) if STT has been paid and shares are held for less than 12 months."
	stcgWrong   = "STCG on equity is 15%."
)

func newTestGate(opts ...Option) *Gate {
	return NewGate(hallucination.New(hallucination.DefaultThreshold), NewReviewQueue(10), opts...)
}

func TestEvaluate_CorrectAnswerServedWithStandardDisclaimer(t *testing.T) {
	g := newTestGate()
	res, err := g.Evaluate(Request{Query: stcgQuery, Answer: stcgCorrect, Category: "capital_gains", IntentConfidence: 0.88})
	require.NoError(t, err)

	assert.InDelta(t, 0.7443, res.Confidence, 1e-9)
	assert.GreaterOrEqual(t, res.Confidence, DefaultDisclaimerThreshold)
	assert.False(t, res.EscalateToCA)
	assert.False(t, res.AddDisclaimer)
	assert.Equal(t, DisclaimerStandard, res.Disclaimer)
	assert.Empty(t, res.EscalationReason)
	require.NotNil(t, res.Hallucination)
	assert.False(t, res.Hallucination.IsHallucination)
	assert.Equal(t, 0.0, res.Components["hallucination_penalty"])
	assert.Zero(t, g.Queue().Len())
}

func TestEvaluate_WrongRateEscalates(t *testing.T) {
	var heard []ReviewItem
	g := newTestGate(WithEscalationListener(func(it ReviewItem) { heard = append(heard, it) }))

	res, err := g.Evaluate(Request{
		Query: stcgQuery, Answer: stcgWrong, Category: "capital_gains", IntentConfidence: 0.88,
		SessionID: "s1", Action: "full_pipeline", Intent: "tax",
	})
	require.NoError(t, err)

	assert.True(t, res.EscalateToCA)
	assert.True(t, res.AddDisclaimer)
	assert.Equal(t, DisclaimerEscalated, res.Disclaimer)
	assert.True(t, strings.HasPrefix(res.EscalationReason, "Hallucination detected (confidence 1.00): 1 potential issue(s)"))
	assert.Equal(t, -0.4, res.Components["hallucination_penalty"])
	assert.InDelta(t, 0.2002, res.Confidence, 1e-9)

	items := g.Queue().List(0)
	require.Len(t, items, 1)
	assert.Equal(t, res.ReviewID, items[0].ID)
	assert.Equal(t, StatusPending, items[0].Status)
	assert.Equal(t, "s1", items[0].SessionID)
	assert.Equal(t, "full_pipeline", items[0].Action)
	require.Len(t, heard, 1)
	assert.Equal(t, res.ReviewID, heard[0].ID)
}

func TestEvaluate_LowConfidenceEscalates(t *testing.T) {
	g := newTestGate()
	res, err := g.Evaluate(Request{Query: "I received a scrutiny notice", Answer: "I don't know.", IntentConfidence: 0.1})
	require.NoError(t, err)

	assert.InDelta(t, 0.25, res.Confidence, 1e-9)
	assert.True(t, res.EscalateToCA)
	assert.Equal(t, "Low confidence score 0.25 — complex or uncertain query", res.EscalationReason)
	assert.Equal(t, 0.4, res.Components["complexity_penalty"])
	assert.Equal(t, 1, g.Queue().Len())
}

func TestEvaluate_EnhancedDisclaimerBand(t *testing.T) {
	g := newTestGate()
	res, err := g.Evaluate(Request{Query: stcgQuery, Answer: stcgCorrect, Category: "capital_gains", IntentConfidence: 0.2})
	require.NoError(t, err)

	assert.InDelta(t, 0.6083, res.Confidence, 1e-9)
	assert.False(t, res.EscalateToCA)
	assert.True(t, res.AddDisclaimer)
	assert.Equal(t, DisclaimerEnhanced, res.Disclaimer)
}

func TestEvaluate_Thresholds(t *testing.T) {
	g := newTestGate(WithThresholds(0.7, 0.8))
	res, err := g.Evaluate(Request{Query: stcgQuery, Answer: stcgCorrect, Category: "capital_gains", IntentConfidence: 0.2})
	require.NoError(t, err)
	assert.True(t, res.EscalateToCA)
}

func TestEvaluate_MissingFields(t *testing.T) {
	g := newTestGate()
	_, err := g.Evaluate(Request{Query: " ", Answer: "x"})
	assert.ErrorIs(t, err, ErrMissingField)
	_, err = g.Evaluate(Request{Query: "q", Answer: ""})
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestEvaluate_MalformedSignals(t *testing.T) {
	g := newTestGate()
	res, err := g.Evaluate(Request{
		Query:            "q",
		Answer:           "a",
		Retrieval:        &RetrievalSignals{TopSimilarity: math.NaN(), AvgSimilarity: math.Inf(1), NumChunks: -3},
		IntentConfidence: math.NaN(),
	})
	require.NoError(t, err)
	assert.False(t, math.IsNaN(res.Confidence))
	assert.InDelta(t, 0.3, res.Components["retrieval"], 1e-9)
	assert.Equal(t, 0.0, res.Components["intent"])
}

func TestRetrievalScore(t *testing.T) {
	assert.Equal(t, 0.5, RetrievalScore(nil))
	s := &RetrievalSignals{TopSimilarity: 0.9, AvgSimilarity: 0.7, ChunkDiversity: 0.4, NumChunks: 2}
	assert.InDelta(t, 0.36+0.21+0.06+0.075, RetrievalScore(s), 1e-9)
}

func TestLengthScore(t *testing.T) {
	assert.Equal(t, 0.2, LengthScore("short answer"))
	assert.Equal(t, 0.6, LengthScore(strings.Repeat("word ", 30)))
	assert.Equal(t, 1.0, LengthScore(strings.Repeat("word ", 100)))
	assert.Equal(t, 0.8, LengthScore(strings.Repeat("word ", 600)))
}

const stcgWrongLTCGRight = "Short-term gains matter. STCG on equity is 15%. LTCG on equity is 12.5% above the exemption."

func TestEvaluate_WrongRateWithoutCategoryEscalates(t *testing.T) {
	g := newTestGate()
	res, err := g.Evaluate(Request{Query: stcgQuery, Answer: stcgWrongLTCGRight, IntentConfidence: 0.88})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Hallucination.FactsChecked)
	assert.True(t, res.Hallucination.IsHallucination)
	assert.True(t, res.EscalateToCA)
	assert.Equal(t, DisclaimerEscalated, res.Disclaimer)
	assert.Equal(t, 1, g.Queue().Len())
}

func TestEvaluate_HighSeverityBelowThresholdStillEscalates(t *testing.T) {
	// A lenient detector: one failure out of two checked facts is not a hallucination.
	g := NewGate(hallucination.New(0.6), NewReviewQueue(10))
	res, err := g.Evaluate(Request{Query: stcgQuery, Answer: stcgWrongLTCGRight, Category: "capital_gains", IntentConfidence: 0.88})
	require.NoError(t, err)

	require.False(t, res.Hallucination.IsHallucination)
	require.True(t, res.Hallucination.NeedsCAReview)
	assert.Equal(t, 0.0, res.Components["hallucination_penalty"])
	assert.True(t, res.EscalateToCA)
	assert.True(t, strings.HasPrefix(res.EscalationReason, "Mandatory CA review (stcg_111a_rate): "))
	assert.Equal(t, DisclaimerEscalated, res.Disclaimer)
	require.Len(t, g.Queue().List(0), 1)
	assert.Equal(t, res.ReviewID, g.Queue().List(0)[0].ID)
}

func TestEvaluate_HallucinationAlwaysEscalates(t *testing.T) {
	g := NewGate(hallucination.New(hallucination.DefaultThreshold), nil)
	fragments := []string{
		"STCG on equity is 15%.", "LTCG under 112A is 10%.", "Section 80C allows ₹1,50,000.",
		"Consult a CA professional.", "FY 2024 rules apply.", "Form 16 is issued by employers.",
	}
	rapid.Check(t, func(t *rapid.T) {
		parts := rapid.SliceOfN(rapid.SampledFrom(fragments), 1, 6).Draw(t, "parts")
		req := Request{
			Query:            rapid.SampledFrom([]string{stcgQuery, "tell me about tax", "appeal to tribunal"}).Draw(t, "query"),
			Answer:           strings.Join(parts, " "),
			Category:         rapid.SampledFrom([]string{"", "capital_gains", "tds"}).Draw(t, "category"),
			IntentConfidence: rapid.Float64Range(0, 1).Draw(t, "intent"),
			Retrieval: &RetrievalSignals{
				TopSimilarity:  rapid.Float64Range(0, 1).Draw(t, "top"),
				AvgSimilarity:  rapid.Float64Range(0, 1).Draw(t, "avg"),
				ChunkDiversity: rapid.Float64Range(0, 1).Draw(t, "div"),
				NumChunks:      rapid.IntRange(0, 8).Draw(t, "n"),
			},
		}
		res, err := g.Evaluate(req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Hallucination.IsHallucination && !res.EscalateToCA {
			t.Fatalf("hallucination not escalated: %+v", res)
		}
		if res.Hallucination.NeedsCAReview && !res.EscalateToCA {
			t.Fatalf("high severity finding not escalated: %+v", res)
		}
		if res.Confidence < 0 || res.Confidence > 1 {
			t.Fatalf("confidence out of range: %v", res.Confidence)
		}
	})
}
