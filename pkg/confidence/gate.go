// Package confidence scores generated answers and decides whether to serve
// them, serve them with a stronger disclaimer, or escalate to a CA.
package confidence

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"wealthadvisor-ai/pkg/hallucination"
)

const (
	DefaultEscalateThreshold   = 0.50
	DefaultDisclaimerThreshold = 0.65
	hallucinationPenalty       = -0.4
	maxReasonExplanation       = 200
)

const (
	DisclaimerEscalated = "⚠️ This answer has been flagged for human CA review. " +
		"Please verify with a qualified Chartered Accountant before acting. " +
		"Tax laws are subject to change — always check CBDT/GST Council notifications."
	DisclaimerEnhanced = "ℹ️ This answer involves complex tax considerations. " +
		"For personalised advice, consult a qualified CA or tax professional. " +
		"Information is based on FY 2024-25 rules — verify current applicability."
	DisclaimerStandard = "This information is for general guidance only. " +
		"Tax laws change; verify with official sources (incometax.gov.in, gst.gov.in)."
)

var ErrMissingField = errors.New("query and answer are required")

var weights = []struct {
	name   string
	weight float64
}{
	{"retrieval", 0.30},
	{"intent", 0.20},
	{"answer_quality", 0.25},
	{"length_score", 0.10},
	{"complexity_penalty", 0.15},
}

type Request struct {
	Query            string
	Answer           string
	Category         string
	Retrieval        *RetrievalSignals
	IntentConfidence float64

	// Attribution carried onto the review item when escalated.
	SessionID string
	Action    string
	Intent    string
}

type Result struct {
	Confidence       float64               `json:"confidence"`
	EscalateToCA     bool                  `json:"escalate_to_ca"`
	AddDisclaimer    bool                  `json:"add_disclaimer"`
	Disclaimer       string                `json:"disclaimer"`
	EscalationReason string                `json:"escalation_reason,omitempty"`
	Components       map[string]float64    `json:"components"`
	Hallucination    *hallucination.Result `json:"hallucination"`
	ProcessingMs     float64               `json:"processing_ms"`
	ReviewID         string                `json:"review_id,omitempty"`
}

type Option func(*Gate)

func WithThresholds(escalate, disclaimer float64) Option {
	return func(g *Gate) {
		if escalate > 0 {
			g.escalate = escalate
		}
		if disclaimer > 0 {
			g.disclaimer = disclaimer
		}
	}
}

// WithEscalationListener is called synchronously with every enqueued item.
func WithEscalationListener(fn func(ReviewItem)) Option {
	return func(g *Gate) { g.onEscalate = fn }
}

func WithLogger(log *zap.Logger) Option {
	return func(g *Gate) {
		if log != nil {
			g.log = log
		}
	}
}

type Gate struct {
	detector   *hallucination.Detector
	queue      *ReviewQueue
	escalate   float64
	disclaimer float64
	onEscalate func(ReviewItem)
	log        *zap.Logger
}

func NewGate(detector *hallucination.Detector, queue *ReviewQueue, opts ...Option) *Gate {
	g := &Gate{
		detector:   detector,
		queue:      queue,
		escalate:   DefaultEscalateThreshold,
		disclaimer: DefaultDisclaimerThreshold,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.Named("confidence")
	return g
}

func (g *Gate) Queue() *ReviewQueue { return g.queue }

func (g *Gate) Detector() *hallucination.Detector { return g.detector }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

// Evaluate scores an answer. The only error is a blank query or answer.
func (g *Gate) Evaluate(req Request) (Result, error) {
	start := time.Now()
	if strings.TrimSpace(req.Query) == "" || strings.TrimSpace(req.Answer) == "" {
		return Result{}, ErrMissingField
	}

	components := map[string]float64{
		"retrieval":          RetrievalScore(req.Retrieval),
		"intent":             clamp01(req.IntentConfidence),
		"complexity_penalty": ComplexityMultiplier(req.Query, req.Answer),
		"answer_quality":     AnswerQuality(req.Answer),
		"length_score":       LengthScore(req.Answer),
	}

	hall := g.detector.Check(req.Answer, req.Category)
	components["hallucination_penalty"] = 0
	if hall.IsHallucination {
		components["hallucination_penalty"] = hallucinationPenalty
	}

	var base float64
	for _, w := range weights {
		base += w.weight * components[w.name]
	}
	confidence := clamp01(base + components["hallucination_penalty"])

	res := Result{
		Confidence:    round4(confidence),
		AddDisclaimer: confidence < g.disclaimer,
		Hallucination: &hall,
		Components:    make(map[string]float64, len(components)),
	}
	for k, v := range components {
		res.Components[k] = round4(v)
	}

	switch {
	case hall.IsHallucination:
		res.EscalateToCA = true
		res.EscalationReason = fmt.Sprintf("Hallucination detected (confidence %.2f): %s",
			hall.Confidence, truncateRunes(hall.Explanation, maxReasonExplanation))
	case hall.NeedsCAReview:
		// A high or critical finding is reviewed whatever the score.
		res.EscalateToCA = true
		res.EscalationReason = fmt.Sprintf("Mandatory CA review (%s): %s",
			hall.Findings[0].FactKey, truncateRunes(hall.Explanation, maxReasonExplanation))
	case confidence < g.escalate:
		res.EscalateToCA = true
		res.EscalationReason = fmt.Sprintf("Low confidence score %.2f — complex or uncertain query", confidence)
	}

	switch {
	case res.EscalateToCA:
		res.Disclaimer = DisclaimerEscalated
	case confidence < g.disclaimer:
		res.Disclaimer = DisclaimerEnhanced
	default:
		res.Disclaimer = DisclaimerStandard
	}

	if res.EscalateToCA && g.queue != nil {
		item := g.queue.Add(ReviewItem{
			SessionID:  req.SessionID,
			Query:      req.Query,
			Answer:     req.Answer,
			Reason:     res.EscalationReason,
			Confidence: res.Confidence,
			Action:     req.Action,
			Intent:     req.Intent,
		})
		res.ReviewID = item.ID
		g.log.Info("answer escalated for CA review",
			zap.String("review_id", item.ID),
			zap.Float64("confidence", res.Confidence),
			zap.Bool("hallucination", hall.IsHallucination))
		if g.onEscalate != nil {
			g.onEscalate(item)
		}
	}

	res.ProcessingMs = math.Round(float64(time.Since(start).Microseconds())/10) / 100
	return res, nil
}
