// Package intent labels a finance question as budget, investment, tax or savings.
package intent

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"wealthadvisor-ai/pkg/llm"
)

const (
	Budget     = "budget"
	Investment = "investment"
	Tax        = "tax"
	Savings    = "savings"

	MethodModel   = "model"
	MethodKeyword = "keyword_fallback"
)

// Intents is the label order. Argmax ties resolve to the earliest entry.
var Intents = []string{Budget, Investment, Tax, Savings}

type Result struct {
	Intent     string             `json:"intent"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"all_scores"`
	Method     string             `json:"method"`
}

type Classifier interface {
	Classify(ctx context.Context, text string) Result
}

var keywordPriors = map[string][]string{
	Budget: {
		"budget", "spend", "spending", "expense", "50/30/20", "50 30 20",
		"allocat", "monthly", "cost", "afford", "cash flow", "track",
		"categories", "needs", "wants", "bills", "utilities", "groceries",
	},
	Investment: {
		"invest", "stock", "etf", "index fund", "portfolio", "return",
		"equity", "bond", "mutual fund", "asset allocation", "rebalance",
		"dividend", "brokerage", "crypto", "bitcoin", "vanguard", "fidelity",
		"reit", "s&p", "dca", "dollar cost", "risk",
	},
	Tax: {
		"tax", "irs", "deduct", "refund", "w-2", "1099", "capital gain",
		"write off", "filing", "april 15", "tax bracket", "withholding",
		"roth conversion", "tax loss harvest", "estimated tax", "agi",
		"adjusted gross income", "schedule", "form",
	},
	Savings: {
		"save", "saving", "emergency fund", "high yield", "hysa",
		"interest rate", "cd", "certificate of deposit", "401k", "ira",
		"roth", "retirement", "compound", "automatic", "goal",
		"sinking fund", "rainy day", "nest egg",
	},
}

// KeywordScores counts substring hits per intent, normalised by the total.
// With no hits every score is 0.
func KeywordScores(text string) map[string]float64 {
	lower := strings.ToLower(text)
	scores := make(map[string]float64, len(Intents))
	var total float64
	for _, in := range Intents {
		hits := 0
		for _, kw := range keywordPriors[in] {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		scores[in] = float64(hits)
		total += float64(hits)
	}
	if total == 0 {
		total = 1
	}
	for k := range scores {
		scores[k] /= total
	}
	return scores
}

func emptyResult() Result {
	return Result{Intent: Budget, Confidence: 0.25, Scores: map[string]float64{}, Method: MethodKeyword}
}

func argmaxResult(scores map[string]float64, method string) Result {
	best := Intents[0]
	for _, in := range Intents[1:] {
		if scores[in] > scores[best] {
			best = in
		}
	}
	rounded := make(map[string]float64, len(scores))
	for k, v := range scores {
		rounded[k] = round4(v)
	}
	return Result{Intent: best, Confidence: round4(scores[best]), Scores: rounded, Method: method}
}

// Lexicon classifies from keyword priors alone.
type Lexicon struct{}

func (Lexicon) Classify(_ context.Context, text string) Result {
	if strings.TrimSpace(text) == "" {
		return emptyResult()
	}
	return argmaxResult(KeywordScores(text), MethodKeyword)
}

// ModelBacked asks the generation model for zero-shot label probabilities and
// fuses them 0.8/0.2 with the keyword prior. Model errors fall back to the
// keyword prior for that request.
type ModelBacked struct {
	provider llm.LLMProvider
	log      *zap.Logger
}

func NewModelBacked(p llm.LLMProvider, log *zap.Logger) *ModelBacked {
	if log == nil {
		log = zap.NewNop()
	}
	return &ModelBacked{provider: p, log: log.Named("intent")}
}

const zeroShotPrompt = `Classify the user's question into these categories and give a probability for each:
- budget: budget and spending management
- investment: investment and portfolio management
- tax: tax planning and filing
- savings: savings and retirement planning

Respond with ONLY valid JSON of the form {"budget": 0.1, "investment": 0.2, "tax": 0.6, "savings": 0.1}.

Question: %s`

func (m *ModelBacked) Classify(ctx context.Context, text string) Result {
	if strings.TrimSpace(text) == "" {
		return emptyResult()
	}
	prior := KeywordScores(text)

	modelScores, err := m.modelScores(ctx, text)
	if err != nil {
		m.log.Warn("model inference failed, falling back to keywords", zap.Error(err))
		return argmaxResult(prior, MethodKeyword)
	}

	fused := make(map[string]float64, len(Intents))
	for _, in := range Intents {
		fused[in] = 0.8*modelScores[in] + 0.2*prior[in]
	}
	return argmaxResult(fused, MethodModel)
}

func (m *ModelBacked) modelScores(ctx context.Context, text string) (map[string]float64, error) {
	reply, err := m.provider.Generate(ctx, fmt.Sprintf(zeroShotPrompt, text), llm.WithTemperature(0.1), llm.WithMaxTokens(80))
	if err != nil {
		return nil, err
	}
	var raw map[string]float64
	if err := llm.DecodeJSON(reply, &raw); err != nil {
		return nil, err
	}
	scores := make(map[string]float64, len(Intents))
	var total float64
	for _, in := range Intents {
		v := raw[in]
		if v < 0 || math.IsNaN(v) {
			v = 0
		}
		scores[in] = v
		total += v
	}
	if total == 0 {
		return nil, fmt.Errorf("model returned no usable scores")
	}
	for k := range scores {
		scores[k] /= total
	}
	return scores, nil
}

// New returns the model-backed classifier when p answers a probe, else the
// lexicon. The choice is made once.
func New(ctx context.Context, p llm.LLMProvider, log *zap.Logger) Classifier {
	if log == nil {
		log = zap.NewNop()
	}
	if p == nil {
		return Lexicon{}
	}
	if err := llm.Probe(ctx, p); err != nil {
		log.Warn("intent model unavailable, using keyword fallback", zap.Error(err))
		return Lexicon{}
	}
	return NewModelBacked(p, log)
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
