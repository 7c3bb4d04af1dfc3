// Package sentiment scores tone, anxiety, urgency and self-confidence in a
// question and maps them to a response style.
package sentiment

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"wealthadvisor-ai/pkg/llm"
)

const (
	Positive = "positive"
	Neutral  = "neutral"
	Negative = "negative"

	LevelHigh   = "high"
	LevelMedium = "medium"
	LevelLow    = "low"

	MethodModel   = "model"
	MethodLexicon = "lexicon"
)

type Result struct {
	Polarity        string             `json:"polarity"`
	PolarityScore   float64            `json:"polarity_score"`
	AnxietyLevel    string             `json:"anxiety_level"`
	UrgencyLevel    string             `json:"urgency_level"`
	ConfidenceLevel string             `json:"confidence_level"`
	ResponseStyle   string             `json:"response_style"`
	Method          string             `json:"method"`
	RawScores       map[string]float64 `json:"raw_scores"`
}

func (r Result) Style() Style {
	return StyleFor(r.ResponseStyle)
}

type Analyzer interface {
	Analyze(ctx context.Context, text string) Result
}

var (
	positiveLexicon = []string{
		"excited", "great", "wonderful", "optimistic", "confident", "happy",
		"growth", "profit", "gain", "return", "opportunity", "bullish",
		"ahead", "plan", "goal", "achieve", "improve", "learn",
		"interested", "curious", "ready",
	}
	negativeLexicon = []string{
		"worried", "anxious", "scared", "afraid", "stressed", "confused",
		"loss", "debt", "broke", "struggling", "problem", "help", "panic",
		"crash", "recession", "inflation", "layoff", "fired", "bankrupt",
		"overwhelmed", "desperate", "stuck",
	}
	anxietyLexicon = []string{
		"scared", "terrified", "panic", "anxious", "anxiety", "worried",
		"nervous", "overwhelmed", "hopeless", "desperate", "can't afford",
		"cannot afford", "running out", "losing money", "in trouble",
		"bad decision", "made a mistake", "emergency",
	}
	urgencyLexicon = []string{
		"asap", "immediately", "right now", "urgent", "deadline", "soon",
		"this week", "today", "by tomorrow", "before april", "before filing",
		"running out of time", "need to know now", "quickly", "fast",
	}
	lowConfidenceLexicon = []string{
		"don't know", "do not know", "confused", "not sure", "unsure",
		"no idea", "beginner", "newbie", "just starting", "never invested",
		"first time", "what is", "can you explain", "help me understand",
		"i don't understand", "what does", "what are",
	}
	highConfidenceLexicon = []string{
		"i know", "i understand", "i already", "i have been", "experienced",
		"advanced", "i want to optimize", "compare", "which is better",
		"tax-loss harvest", "backdoor roth", "asset location",
	}
)

func countHits(lower string, lexicon []string) int {
	n := 0
	for _, term := range lexicon {
		if strings.Contains(lower, term) {
			n++
		}
	}
	return n
}

func bucket(hits int) string {
	switch {
	case hits >= 2:
		return LevelHigh
	case hits == 1:
		return LevelMedium
	default:
		return LevelLow
	}
}

// LexiconPolarity scores (pos-neg)/(pos+neg); beyond ±0.1 is positive/negative.
func LexiconPolarity(text string) (string, float64) {
	lower := strings.ToLower(text)
	pos := countHits(lower, positiveLexicon)
	neg := countHits(lower, negativeLexicon)
	total := pos + neg
	if total == 0 {
		total = 1
	}
	score := math.Round(float64(pos-neg)/float64(total)*1000) / 1000
	return polarityLabel(score), score
}

func polarityLabel(score float64) string {
	switch {
	case score > 0.1:
		return Positive
	case score < -0.1:
		return Negative
	default:
		return Neutral
	}
}

func emptyResult() Result {
	return Result{
		Polarity:        Neutral,
		AnxietyLevel:    LevelLow,
		UrgencyLevel:    LevelLow,
		ConfidenceLevel: LevelHigh,
		ResponseStyle:   StyleBalanced,
		Method:          MethodLexicon,
		RawScores:       map[string]float64{},
	}
}

// assemble adds the lexicon-only signals to a polarity reading.
func assemble(text, polarity string, polarityScore float64, method string) Result {
	lower := strings.ToLower(text)
	anxietyHits := countHits(lower, anxietyLexicon)
	urgencyHits := countHits(lower, urgencyLexicon)
	lowHits := countHits(lower, lowConfidenceLexicon)
	highHits := countHits(lower, highConfidenceLexicon)

	confidence := LevelHigh
	if lowHits > highHits {
		confidence = LevelLow
	}
	anxiety, urgency := bucket(anxietyHits), bucket(urgencyHits)

	return Result{
		Polarity:        polarity,
		PolarityScore:   polarityScore,
		AnxietyLevel:    anxiety,
		UrgencyLevel:    urgency,
		ConfidenceLevel: confidence,
		ResponseStyle:   ChooseStyle(polarity, anxiety, urgency, confidence),
		Method:          method,
		RawScores: map[string]float64{
			"polarity_score":       polarityScore,
			"anxiety_hits":         float64(anxietyHits),
			"urgency_hits":         float64(urgencyHits),
			"low_confidence_hits":  float64(lowHits),
			"high_confidence_hits": float64(highHits),
		},
	}
}

type Lexicon struct{}

func (Lexicon) Analyze(_ context.Context, text string) Result {
	if strings.TrimSpace(text) == "" {
		return emptyResult()
	}
	polarity, score := LexiconPolarity(text)
	return assemble(text, polarity, score, MethodLexicon)
}

// ModelBacked takes polarity from the generation model; the other signals
// always come from the lexicons.
type ModelBacked struct {
	provider llm.LLMProvider
	log      *zap.Logger
}

func NewModelBacked(p llm.LLMProvider, log *zap.Logger) *ModelBacked {
	if log == nil {
		log = zap.NewNop()
	}
	return &ModelBacked{provider: p, log: log.Named("sentiment")}
}

const polarityPrompt = `Classify the financial sentiment of the user's message as positive, negative or neutral, with a probability.
Respond with ONLY valid JSON of the form {"label": "negative", "score": 0.87}.

Message: %s`

func (m *ModelBacked) Analyze(ctx context.Context, text string) Result {
	if strings.TrimSpace(text) == "" {
		return emptyResult()
	}
	polarity, score, err := m.modelPolarity(ctx, text)
	if err != nil {
		m.log.Warn("model inference failed, falling back to lexicon", zap.Error(err))
		polarity, score = LexiconPolarity(text)
		return assemble(text, polarity, score, MethodLexicon)
	}
	return assemble(text, polarity, score, MethodModel)
}

func (m *ModelBacked) modelPolarity(ctx context.Context, text string) (string, float64, error) {
	if len(text) > 512 {
		text = text[:512]
	}
	reply, err := m.provider.Generate(ctx, fmt.Sprintf(polarityPrompt, text), llm.WithTemperature(0.1), llm.WithMaxTokens(40))
	if err != nil {
		return "", 0, err
	}
	var out struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	}
	if err := llm.DecodeJSON(reply, &out); err != nil {
		return "", 0, err
	}
	label := strings.ToLower(out.Label)
	switch {
	case strings.Contains(label, Positive):
		return Positive, out.Score, nil
	case strings.Contains(label, Negative):
		return Negative, -out.Score, nil
	case strings.Contains(label, Neutral):
		return Neutral, 0, nil
	default:
		return "", 0, fmt.Errorf("unknown sentiment label %q", out.Label)
	}
}

func New(ctx context.Context, p llm.LLMProvider, log *zap.Logger) Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	if p == nil {
		return Lexicon{}
	}
	if err := llm.Probe(ctx, p); err != nil {
		log.Warn("sentiment model unavailable, using lexicon fallback", zap.Error(err))
		return Lexicon{}
	}
	return NewModelBacked(p, log)
}
