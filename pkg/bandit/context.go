package bandit

import "math"

// ContextDim is 4 intent slots, 4 sentiment signals and 3 session features
// (length, feedback, bias).
const ContextDim = 11

const (
	RetrievalOnly    = "retrieval_only"
	IntentBoosted    = "intent_boosted"
	SentimentAdapted = "sentiment_adapted"
	EntityFocused    = "entity_focused"
	FullPipeline     = "full_pipeline"
)

// Actions in index order, cheapest first.
var Actions = []string{RetrievalOnly, IntentBoosted, SentimentAdapted, EntityFocused, FullPipeline}

// Labels are the enrichment outputs the context vector is built from.
type Labels struct {
	Intent     string `json:"intent"`
	Anxiety    string `json:"anxiety_level"`
	Urgency    string `json:"urgency_level"`
	Confidence string `json:"confidence_level"`
	Polarity   string `json:"polarity"`
}

var (
	intentSlot = map[string]int{"budget": 0, "investment": 1, "tax": 2, "savings": 3}
	levelValue = map[string]float64{"high": 1, "medium": 0.5, "low": 0}
	polarValue = map[string]float64{"positive": 1, "neutral": 0.5, "negative": 0}
)

// ContextVector encodes labels plus session statistics. avgFeedback is the
// session's mean rating in [-1, 1]. Unknown intents use the budget slot and
// unknown polarity counts as neutral.
func ContextVector(l Labels, exchangeCount int, avgFeedback float64) []float64 {
	x := make([]float64, ContextDim)
	x[intentSlot[l.Intent]] = 1

	x[4] = levelValue[l.Anxiety]
	x[5] = levelValue[l.Urgency]
	if l.Confidence == "high" {
		x[6] = 1
	}
	if p, ok := polarValue[l.Polarity]; ok {
		x[7] = p
	} else {
		x[7] = 0.5
	}

	x[8] = math.Min(float64(exchangeCount)/10, 1)
	x[9] = (avgFeedback + 1) / 2
	x[10] = 1
	return x
}
