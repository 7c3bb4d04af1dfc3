// Package enrich runs the intent, sentiment and entity stages over a
// question and bundles their output.
package enrich

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"wealthadvisor-ai/pkg/bandit"
	"wealthadvisor-ai/pkg/enrich/entity"
	"wealthadvisor-ai/pkg/enrich/intent"
	"wealthadvisor-ai/pkg/enrich/sentiment"
	"wealthadvisor-ai/pkg/llm"
)

// Context is the immutable result of one enrichment pass.
type Context struct {
	Intent    intent.Result    `json:"intent"`
	Sentiment sentiment.Result `json:"sentiment"`
	Entities  entity.Result    `json:"entities"`
}

func (c Context) Labels() bandit.Labels {
	return bandit.Labels{
		Intent:     c.Intent.Intent,
		Anxiety:    c.Sentiment.AnxietyLevel,
		Urgency:    c.Sentiment.UrgencyLevel,
		Confidence: c.Sentiment.ConfidenceLevel,
		Polarity:   c.Sentiment.Polarity,
	}
}

type Enricher struct {
	intent    intent.Classifier
	sentiment sentiment.Analyzer
	entities  entity.Extractor
}

func NewEnricher(i intent.Classifier, s sentiment.Analyzer, e entity.Extractor) *Enricher {
	return &Enricher{intent: i, sentiment: s, entities: e}
}

// New builds all three stages. With a nil provider every stage uses its
// lexicon; otherwise the provider is probed once and shared.
func New(ctx context.Context, p llm.LLMProvider, log *zap.Logger) *Enricher {
	if log == nil {
		log = zap.NewNop()
	}
	if p != nil {
		p = &onceProber{LLMProvider: p}
	}
	return NewEnricher(
		intent.New(ctx, p, log),
		sentiment.New(ctx, p, log),
		entity.New(ctx, p, log),
	)
}

// Enrich runs the stages in parallel. Stages degrade internally, so the only
// error is a cancelled context.
func (e *Enricher) Enrich(ctx context.Context, text string) (Context, error) {
	var out Context
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		out.Intent = e.intent.Classify(gctx, text)
		return nil
	})
	g.Go(func() error {
		out.Sentiment = e.sentiment.Analyze(gctx, text)
		return nil
	})
	g.Go(func() error {
		out.Entities = e.entities.Extract(gctx, text)
		return nil
	})

	if err := g.Wait(); err != nil {
		return Context{}, err
	}
	if err := ctx.Err(); err != nil {
		return Context{}, err
	}
	return out, nil
}

// onceProber caches the first probe so the three factories share one check.
type onceProber struct {
	llm.LLMProvider
	once sync.Once
	err  error
}

func (o *onceProber) Ping(ctx context.Context) error {
	o.once.Do(func() {
		o.err = llm.Probe(ctx, o.LLMProvider)
	})
	return o.err
}
