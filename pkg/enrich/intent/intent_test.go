package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"wealthadvisor-ai/pkg/llm/llmtest"
)

func TestLexicon(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name       string
		text       string
		intent     string
		confidence float64
	}{
		{"empty defaults to budget", "   ", Budget, 0.25},
		{"no hits ties to first intent", "hello there", Budget, 0},
		{"tax", "How do I claim my tax refund?", Tax, 1},
		{"investment", "Should I invest in an index fund or a stock portfolio?", Investment, 1},
		{"split", "Budget for groceries or invest in stock?", Budget, 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Lexicon{}.Classify(ctx, tc.text)
			assert.Equal(t, tc.intent, got.Intent)
			assert.InDelta(t, tc.confidence, got.Confidence, 1e-9)
			assert.Equal(t, MethodKeyword, got.Method)
		})
	}
}

func TestKeywordScoresSumToOne(t *testing.T) {
	scores := KeywordScores("emergency fund versus paying off the monthly budget")
	var total float64
	for _, v := range scores {
		total += v
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestModelBacked_FusesWithPrior(t *testing.T) {
	fake := &llmtest.Fake{Reply: "```json\n{\"budget\":0.1,\"investment\":0.1,\"tax\":0.7,\"savings\":0.1}\n```"}
	c := NewModelBacked(fake, nil)

	got := c.Classify(context.Background(), "What is my monthly budget?")
	assert.Equal(t, Tax, got.Intent)
	assert.InDelta(t, 0.56, got.Confidence, 1e-9)
	assert.InDelta(t, 0.28, got.Scores[Budget], 1e-9)
	assert.Equal(t, MethodModel, got.Method)
	assert.Contains(t, fake.LastPrompt(), "What is my monthly budget?")
}

func TestModelBacked_RuntimeErrorFallsBack(t *testing.T) {
	c := NewModelBacked(&llmtest.Fake{Err: errors.New("timeout")}, nil)
	got := c.Classify(context.Background(), "How do I claim my tax refund?")
	assert.Equal(t, Tax, got.Intent)
	assert.Equal(t, MethodKeyword, got.Method)

	c = NewModelBacked(&llmtest.Fake{Reply: "I think it's about taxes"}, nil)
	got = c.Classify(context.Background(), "How do I claim my tax refund?")
	assert.Equal(t, MethodKeyword, got.Method)
}

func TestNew_SelectsImplementation(t *testing.T) {
	ctx := context.Background()
	assert.IsType(t, Lexicon{}, New(ctx, nil, nil))
	assert.IsType(t, Lexicon{}, New(ctx, &llmtest.Fake{Err: errors.New("down")}, nil))
	assert.IsType(t, &ModelBacked{}, New(ctx, &llmtest.Fake{Reply: "OK"}, nil))
}
