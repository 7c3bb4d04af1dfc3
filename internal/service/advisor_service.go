package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"wealthadvisor-ai/internal/config"
	"wealthadvisor-ai/internal/constant"
	"wealthadvisor-ai/internal/dto"
	"wealthadvisor-ai/internal/pkg/logger"
	"wealthadvisor-ai/internal/repository/memory"
	"wealthadvisor-ai/pkg/bandit"
	"wealthadvisor-ai/pkg/confidence"
	"wealthadvisor-ai/pkg/embedding/cache"
	"wealthadvisor-ai/pkg/enrich"
	"wealthadvisor-ai/pkg/evaluation"
	"wealthadvisor-ai/pkg/events"
	"wealthadvisor-ai/pkg/llm"
	"wealthadvisor-ai/pkg/rlhf"
	"wealthadvisor-ai/pkg/vectorindex"
)

const (
	intentCategoryBoost = 0.10
	entityMentionBoost  = 0.05
	maxEntityBoost      = 0.15
	minDislikedLambda   = 0.3
)

// QueryEmbedder embeds a question and reports whether a cache tier served it.
type QueryEmbedder interface {
	Lookup(ctx context.Context, text string) ([]float32, bool, error)
}

type IAdvisorService interface {
	Query(ctx context.Context, req *dto.QueryRequest) (*dto.QueryResponse, error)
	SessionInfo(ctx context.Context, sessionId string) (*dto.SessionInfoResponse, error)
	ClearSession(ctx context.Context, sessionId string) (*dto.ClearSessionResponse, error)
	Feedback(ctx context.Context, req *dto.ChatFeedbackRequest) (*dto.ChatFeedbackResponse, error)
	Metrics(ctx context.Context) (*dto.MetricsResponse, error)
}

// AdvisorDependencies are the collaborators of one query turn. Publisher,
// CacheStats and RLHF may be nil.
type AdvisorDependencies struct {
	Memory     *memory.SessionMemory
	Enricher   *enrich.Enricher
	Selector   *bandit.StrategySelector
	Embedder   QueryEmbedder
	Retriever  vectorindex.Retriever
	LLM        llm.LLMProvider
	Gate       *confidence.Gate
	RLHF       *rlhf.Pipeline
	Evaluation *evaluation.Store
	Publisher  events.Publisher
	CacheStats func() cache.Stats
}

type advisorService struct {
	deps     AdvisorDependencies
	params   vectorindex.Params
	timeouts config.TimeoutConfig
	genOpts  []llm.Option
	turns    *sessionTurns
	logger   logger.ILogger
}

func NewAdvisorService(deps AdvisorDependencies, cfg *config.Config, log logger.ILogger) IAdvisorService {
	return &advisorService{
		deps: deps,
		params: vectorindex.Params{
			K:          cfg.Retrieval.K,
			FetchK:     cfg.Retrieval.FetchK,
			LambdaMult: cfg.Retrieval.LambdaMult,
		}.Normalized(),
		timeouts: cfg.Timeouts,
		genOpts: []llm.Option{
			llm.WithTemperature(cfg.Ai.LLMTemperature),
			llm.WithMaxTokens(cfg.Ai.LLMMaxTokens),
		},
		turns:  newSessionTurns(),
		logger: log,
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func msSince(t time.Time) float64 {
	return math.Round(float64(time.Since(t).Microseconds())/10) / 100
}

// Query answers one question. Turns on the same session run one at a time in
// arrival order. Memory and strategy attribution are only updated after a
// successful generation; a failed or cancelled turn leaves the session
// untouched.
func (s *advisorService) Query(ctx context.Context, req *dto.QueryRequest) (*dto.QueryResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "question is required")
	}
	if !s.deps.Retriever.Ready() {
		return nil, fiber.NewError(fiber.StatusServiceUnavailable, "knowledge base is not ready")
	}

	ctx, cancel := withTimeout(ctx, s.timeouts.Request)
	defer cancel()
	start := time.Now()

	release, err := s.turns.acquire(ctx, req.SessionId)
	if err != nil {
		return nil, err
	}
	defer release()

	s.deps.Memory.MaybeSweep()
	history := s.deps.Memory.Exchanges(req.SessionId)

	enriched, err := s.deps.Enricher.Enrich(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("enrich question: %w", err)
	}

	strategy, err := s.deps.Selector.Propose(req.SessionId, enriched.Labels())
	if err != nil {
		return nil, fmt.Errorf("select strategy: %w", err)
	}

	embedStart := time.Now()
	embedCtx, cancelEmbed := withTimeout(ctx, s.timeouts.Embedding)
	vec, cached, err := s.deps.Embedder.Lookup(embedCtx, question)
	cancelEmbed()
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	embedMs := msSince(embedStart)

	retrieveStart := time.Now()
	retrieveCtx, cancelRetrieve := withTimeout(ctx, s.timeouts.Retrieval)
	results, err := s.deps.Retriever.Retrieve(retrieveCtx, vec, s.retrievalParams(strategy.Action, enriched, question))
	cancelRetrieve()
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	retrieveMs := msSince(retrieveStart)

	prompt := buildPrompt(question, history, results, styleFor(strategy.Action, enriched))

	genStart := time.Now()
	genCtx, cancelGen := withTimeout(ctx, s.timeouts.Generation)
	answer, err := s.deps.LLM.Generate(genCtx, prompt, s.genOpts...)
	cancelGen()
	if err != nil {
		s.logger.Error("ADVISOR", "Generation failed", map[string]interface{}{
			"session_id": req.SessionId,
			"strategy":   strategy.Action,
			"error":      err.Error(),
		})
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	answer = strings.TrimSpace(answer)
	llmMs := msSince(genStart)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	verdict, err := s.deps.Gate.Evaluate(confidence.Request{
		Query:            question,
		Answer:           answer,
		Retrieval:        retrievalSignals(question, results),
		IntentConfidence: enriched.Intent.Confidence,
		SessionID:        req.SessionId,
		Action:           strategy.Action,
		Intent:           enriched.Intent.Intent,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate answer: %w", err)
	}
	served := answer
	if verdict.Disclaimer != "" {
		served = answer + "\n\n" + verdict.Disclaimer
	}

	if verdict.EscalateToCA {
		publishEscalation(ctx, s.deps.Publisher, s.deps.Gate.Queue(), verdict, s.logger)
	}

	s.record(req, enriched, strategy.Action, results, answer, evaluation.Latency{
		EmbedMs:         embedMs,
		RetrieveMs:      retrieveMs,
		LLMMs:           llmMs,
		TotalMs:         msSince(start),
		CachedEmbedding: cached,
	}, verdict.EscalateToCA)

	s.deps.Selector.Commit(req.SessionId, enriched.Intent.Intent, strategy)
	s.deps.Memory.Append(req.SessionId, question, served)

	s.logger.Info("ADVISOR", "Query answered", map[string]interface{}{
		"session_id": req.SessionId,
		"intent":     enriched.Intent.Intent,
		"strategy":   strategy.Action,
		"confidence": verdict.Confidence,
		"escalated":  verdict.EscalateToCA,
		"chunks":     len(results),
	})

	return &dto.QueryResponse{
		Answer:        served,
		Sources:       sourcesFrom(results),
		SessionId:     req.SessionId,
		Strategy:      strategy.Action,
		Intent:        enriched.Intent.Intent,
		Confidence:    verdict.Confidence,
		EscalatedToCA: verdict.EscalateToCA,
		ReviewId:      verdict.ReviewID,
	}, nil
}

// retrievalParams modulates MMR for the chosen arm. A query users disliked
// before gets a lower lambda so the retrieved set is more diverse.
func (s *advisorService) retrievalParams(action string, e enrich.Context, question string) vectorindex.Params {
	p := s.params

	if s.deps.RLHF != nil {
		if pref, ok := s.deps.RLHF.Preferences().Lookup(question); ok {
			if score := pref.Score(); score < 0.5 {
				p.LambdaMult = math.Max(minDislikedLambda, p.LambdaMult-(0.5-score))
			}
		}
	}

	boostIntent := action == bandit.IntentBoosted || action == bandit.FullPipeline
	boostEntities := (action == bandit.EntityFocused || action == bandit.FullPipeline) && !e.Entities.Empty()
	if !boostIntent && !boostEntities {
		return p
	}

	categories := map[string]bool{}
	if boostIntent {
		for _, c := range constant.IntentCategories[e.Intent.Intent] {
			categories[c] = true
		}
	}
	entities := e.Entities
	p.Boost = func(c vectorindex.Chunk) float64 {
		var b float64
		if categories[c.Metadata.Category] {
			b += intentCategoryBoost
		}
		if boostEntities {
			b += math.Min(maxEntityBoost, entityMentionBoost*float64(entities.Mentions(c.Content)))
		}
		return b
	}
	return p
}

func (s *advisorService) record(req *dto.QueryRequest, e enrich.Context, action string, results []vectorindex.Result, answer string, lat evaluation.Latency, escalated bool) {
	if s.deps.Evaluation == nil {
		return
	}
	titles := make([]string, len(results))
	chunks := make([]string, len(results))
	for i, r := range results {
		titles[i] = r.Metadata.Title
		chunks[i] = r.Content
	}
	s.deps.Evaluation.Record(evaluation.Observation{
		Query:           req.Question,
		SessionID:       req.SessionId,
		Intent:          e.Intent.Intent,
		RetrievedTitles: titles,
		RelevantTitles:  req.RelevantTitles,
		Answer:          answer,
		Reference:       req.Reference,
		ContextChunks:   chunks,
		Latency:         lat,
	})
	if c := s.deps.Evaluation.Collector(); c != nil {
		c.ObserveQuery(e.Intent.Intent, action)
		if escalated {
			c.ObserveEscalation()
		}
	}
}

func (s *advisorService) SessionInfo(ctx context.Context, sessionId string) (*dto.SessionInfoResponse, error) {
	info, ok := s.deps.Memory.Lookup(sessionId)
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	return &dto.SessionInfoResponse{
		SessionId:     info.SessionID,
		WindowSize:    info.WindowSize,
		ExchangeCount: info.ExchangeCount,
		MessageCount:  info.MessageCount,
		CreatedAt:     info.CreatedAt,
		LastAccessed:  info.LastAccessed,
		AgeSeconds:    info.AgeSeconds,
	}, nil
}

// ClearSession drops the conversation window and the bandit attribution state.
func (s *advisorService) ClearSession(ctx context.Context, sessionId string) (*dto.ClearSessionResponse, error) {
	cleared := s.deps.Memory.Clear(sessionId)
	s.deps.Selector.Forget(sessionId)
	return &dto.ClearSessionResponse{SessionId: sessionId, Cleared: cleared}, nil
}

// Feedback applies a live bandit update for the session's last strategy and
// appends the rating to the RLHF log.
func (s *advisorService) Feedback(ctx context.Context, req *dto.ChatFeedbackRequest) (*dto.ChatFeedbackResponse, error) {
	decision, hasDecision := s.deps.Selector.LastDecision(req.SessionId)

	updated, err := s.deps.Selector.RecordFeedback(req.SessionId, req.Rating)
	if err != nil {
		return nil, fmt.Errorf("update bandit: %w", err)
	}
	res := &dto.ChatFeedbackResponse{SessionId: req.SessionId, BanditUpdated: updated}

	signal := rlhf.ThumbsDown
	if req.Rating == bandit.RatingUp {
		signal = rlhf.ThumbsUp
	}
	if c := s.collector(); c != nil {
		c.ObserveFeedback(string(signal))
	}
	if s.deps.RLHF == nil || !hasDecision {
		return res, nil
	}

	fb := s.deps.RLHF.Feedback(rlhf.FeedbackRequest{
		SessionID: req.SessionId,
		Query:     req.Query,
		Answer:    req.Answer,
		Action:    decision.Action,
		Intent:    decision.Intent,
		Signal:    string(signal),
		UserID:    req.UserId,
	})
	if !fb.Recorded {
		s.logger.Warn("ADVISOR", "Feedback not logged", map[string]interface{}{"session_id": req.SessionId, "error": fb.Error})
		return res, nil
	}
	res.Recorded = true
	res.FeedbackId = fb.ID
	res.Reward = fb.Reward

	publish(ctx, s.deps.Publisher, events.TypeFeedback, map[string]interface{}{
		"feedback_id": fb.ID,
		"session_id":  req.SessionId,
		"action":      decision.Action,
		"intent":      decision.Intent,
		"signal":      string(signal),
		"reward":      fb.Reward,
	}, s.logger)
	return res, nil
}

func (s *advisorService) collector() *evaluation.Collector {
	if s.deps.Evaluation == nil {
		return nil
	}
	return s.deps.Evaluation.Collector()
}

func (s *advisorService) Metrics(ctx context.Context) (*dto.MetricsResponse, error) {
	res := &dto.MetricsResponse{
		ActiveSessions: s.deps.Memory.ActiveCount(),
		EvictedTotal:   s.deps.Memory.EvictedTotal(),
		ReviewQueueLen: s.deps.Gate.Queue().Len(),
	}
	if s.deps.Evaluation != nil {
		res.Evaluation = s.deps.Evaluation.Aggregate()
	}
	if s.deps.CacheStats != nil {
		stats := s.deps.CacheStats()
		res.EmbeddingCache = &stats
	}
	return res, nil
}
