package sentiment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"wealthadvisor-ai/pkg/llm/llmtest"
)

func TestLexicon_StyleDecisions(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name     string
		text     string
		polarity string
		anxiety  string
		urgency  string
		conf     string
		style    string
	}{
		{"anxious beginner", "I'm scared and worried about my debt, I don't know what to do", Negative, LevelHigh, LevelLow, LevelLow, StyleReassure},
		{"deadline", "I need to file my return before the deadline this week", Positive, LevelLow, LevelHigh, LevelHigh, StyleUrgent},
		{"upbeat", "I'm excited to grow my portfolio and achieve my goal", Positive, LevelLow, LevelLow, LevelHigh, StyleEncourage},
		{"expert", "Compare index funds and bonds", Neutral, LevelLow, LevelLow, LevelHigh, StyleConcise},
		{"empty", "  ", Neutral, LevelLow, LevelLow, LevelHigh, StyleBalanced},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Lexicon{}.Analyze(ctx, tc.text)
			assert.Equal(t, tc.polarity, got.Polarity)
			assert.Equal(t, tc.anxiety, got.AnxietyLevel)
			assert.Equal(t, tc.urgency, got.UrgencyLevel)
			assert.Equal(t, tc.conf, got.ConfidenceLevel)
			assert.Equal(t, tc.style, got.ResponseStyle)
			assert.Equal(t, MethodLexicon, got.Method)
		})
	}
}

func TestLexiconPolarity(t *testing.T) {
	label, score := LexiconPolarity("worried about debt but excited about growth")
	assert.Equal(t, Neutral, label)
	assert.InDelta(t, 0.0, score, 1e-9)

	label, score = LexiconPolarity("great growth, a small loss")
	assert.Equal(t, Positive, label)
	assert.InDelta(t, 0.333, score, 1e-9)
}

func TestChooseStyle_Priority(t *testing.T) {
	// Anxiety outranks urgency, urgency outranks positive tone.
	assert.Equal(t, StyleReassure, ChooseStyle(Positive, LevelHigh, LevelHigh, LevelHigh))
	assert.Equal(t, StyleUrgent, ChooseStyle(Positive, LevelMedium, LevelHigh, LevelHigh))
	assert.Equal(t, StyleEncourage, ChooseStyle(Positive, LevelLow, LevelMedium, LevelHigh))
	assert.Equal(t, StyleBalanced, ChooseStyle(Neutral, LevelLow, LevelLow, LevelMedium))
}

func TestStyleFor(t *testing.T) {
	assert.Equal(t, 3, StyleFor(StyleReassure).MaxBulletPoints)
	assert.Equal(t, "Great question! ", StyleFor(StyleEncourage).TonePrefix)
	assert.Equal(t, StyleFor(StyleBalanced), StyleFor("unknown"))
}

func TestModelBacked(t *testing.T) {
	ctx := context.Background()

	a := NewModelBacked(&llmtest.Fake{Reply: `{"label": "NEGATIVE", "score": 0.9}`}, nil)
	got := a.Analyze(ctx, "Compare index funds and bonds")
	assert.Equal(t, Negative, got.Polarity)
	assert.InDelta(t, -0.9, got.PolarityScore, 1e-9)
	assert.Equal(t, MethodModel, got.Method)
	assert.Equal(t, StyleConcise, got.ResponseStyle)

	a = NewModelBacked(&llmtest.Fake{Err: errors.New("boom")}, nil)
	got = a.Analyze(ctx, "I'm excited to grow my portfolio")
	assert.Equal(t, MethodLexicon, got.Method)
	assert.Equal(t, Positive, got.Polarity)

	a = NewModelBacked(&llmtest.Fake{Reply: `{"label": "mixed", "score": 0.5}`}, nil)
	assert.Equal(t, MethodLexicon, a.Analyze(ctx, "hello").Method)
}

func TestNew_SelectsImplementation(t *testing.T) {
	ctx := context.Background()
	assert.IsType(t, Lexicon{}, New(ctx, nil, nil))
	assert.IsType(t, Lexicon{}, New(ctx, &llmtest.Fake{Err: errors.New("down")}, nil))
	assert.IsType(t, &ModelBacked{}, New(ctx, &llmtest.Fake{Reply: "OK"}, nil))
}
