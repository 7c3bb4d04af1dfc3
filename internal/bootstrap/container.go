package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"wealthadvisor-ai/internal/config"
	"wealthadvisor-ai/internal/controller"
	"wealthadvisor-ai/internal/handler"
	"wealthadvisor-ai/internal/knowledge"
	"wealthadvisor-ai/internal/pkg/logger"
	"wealthadvisor-ai/internal/pkg/serverutils"
	"wealthadvisor-ai/internal/repository/contract"
	"wealthadvisor-ai/internal/repository/implementation"
	"wealthadvisor-ai/internal/repository/memory"
	"wealthadvisor-ai/internal/service"
	"wealthadvisor-ai/internal/websocket"
	"wealthadvisor-ai/pkg/bandit"
	"wealthadvisor-ai/pkg/confidence"
	"wealthadvisor-ai/pkg/embedding/cache"
	"wealthadvisor-ai/pkg/enrich"
	"wealthadvisor-ai/pkg/evaluation"
	"wealthadvisor-ai/pkg/events"
	"wealthadvisor-ai/pkg/hallucination"
	"wealthadvisor-ai/pkg/llm"
	pktNats "wealthadvisor-ai/pkg/nats"
	"wealthadvisor-ai/pkg/vectorindex"
)

const (
	BackendFile     = "file"
	BackendPgvector = "pgvector"
)

type Container struct {
	Config *config.Config
	Logger logger.ILogger

	// Controllers
	ChatController     controller.IChatController
	StrategyController controller.IStrategyController
	ScoreController    controller.IScoreController
	ReviewController   controller.IReviewController
	RLHFController     controller.IRLHFController
	MetricsController  controller.IMetricsController

	// Background services, started by Start
	ConsumerService service.IConsumerService
	Scheduler       *service.RLHFScheduler
	WebSocketHub    *websocket.Hub

	Collector *evaluation.Collector

	retriever   vectorindex.Retriever
	loadIndex   func(ctx context.Context) error
	bus         *events.Bus
	natsPub     *pktNats.Publisher
	natsSub     *pktNats.Subscriber
	rdb         *redis.Client
	db          *gorm.DB
	bandit      *bandit.Bandit
	embeddings  *cache.Cache
	reviewFeedL *logger.ZapLogger
}

func NewContainer(cfg *config.Config, sysLogger logger.ILogger) (*Container, error) {
	c := &Container{Config: cfg, Logger: sysLogger}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	// 1. Infrastructure
	c.Collector = evaluation.NewCollector()
	c.rdb = OpenRedis(cfg, sysLogger)

	db, err := OpenDatabase(cfg, sysLogger)
	if err != nil {
		if cfg.Retrieval.Backend == BackendPgvector {
			return nil, fmt.Errorf("pgvector backend needs the database: %w", err)
		}
		sysLogger.Warn("BOOTSTRAP", "Database unavailable, review audit disabled", map[string]interface{}{"error": err.Error()})
	}
	c.db = db

	var auditRepo contract.ReviewAuditRepository
	if db != nil {
		auditRepo = implementation.NewReviewAuditRepository(db)
	}

	// 2. Event bus. NATS is optional; the in-process bus always runs.
	c.bus = events.NewBus()
	publisher := events.Fanout{c.bus}
	if cfg.App.NatsURL != "" {
		pub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger.Zap())
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS publisher", map[string]interface{}{"error": err.Error()})
		} else {
			c.natsPub = pub
			publisher = append(publisher, pub)
		}
		sub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger.Zap())
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS subscriber", map[string]interface{}{"error": err.Error()})
		} else {
			c.natsSub = sub
		}
	}

	// 3. Models
	embeddings, err := NewEmbeddingCache(cfg, c.rdb, c.Collector, sysLogger)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	c.embeddings = embeddings

	llmProvider, err := NewLLM(cfg, sysLogger)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}

	var enrichProvider llm.LLMProvider
	if cfg.Ai.EnrichWithModel {
		enrichProvider = llmProvider
	}
	enricher := enrich.New(context.Background(), enrichProvider, sysLogger.Zap())

	// 4. Retrieval backend
	corpus := knowledge.CorpusFunc(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	switch cfg.Retrieval.Backend {
	case BackendPgvector:
		if db == nil {
			return nil, fmt.Errorf("pgvector backend needs DB_CONNECTION")
		}
		r := service.NewPgvectorRetriever(implementation.NewKnowledgeChunkRepository(db), sysLogger)
		c.retriever = r
		c.loadIndex = func(ctx context.Context) error {
			return r.Sync(ctx, corpus, embeddings, cfg.Retrieval.ForceRebuild)
		}
	case BackendFile, "":
		holder := vectorindex.NewHolder(cfg.Storage.IndexPath, sysLogger.Zap())
		c.retriever = holder
		c.loadIndex = func(ctx context.Context) error {
			_, err := holder.LoadOrBuild(ctx, corpus, embeddings, cfg.Retrieval.ForceRebuild)
			return err
		}
	default:
		return nil, fmt.Errorf("unsupported index backend: %s", cfg.Retrieval.Backend)
	}

	// 5. Learning and gating
	b, err := bandit.Open(cfg.Storage.BanditWeightsPath, cfg.Bandit.Alpha,
		bandit.WithLogger(sysLogger.Zap()),
		bandit.WithResetOnCorrupt(cfg.Bandit.ResetOnCorrupt))
	if err != nil {
		return nil, fmt.Errorf("open bandit: %w", err)
	}
	c.bandit = b
	selector := bandit.NewStrategySelector(b, cfg.Session.MaxIdle, sysLogger.Zap())

	gate := confidence.NewGate(
		hallucination.New(cfg.Gate.HallucinationThreshold),
		confidence.NewReviewQueue(cfg.Gate.ReviewQueueSize),
		confidence.WithThresholds(cfg.Gate.EscalateThreshold, cfg.Gate.DisclaimerThreshold),
		confidence.WithLogger(sysLogger.Zap()),
	)

	pipeline := NewRLHFPipeline(cfg, sysLogger)
	store := evaluation.NewStore(sysLogger.Zap(),
		evaluation.WithLogPath(cfg.Storage.MetricsLogPath),
		evaluation.WithCollector(c.Collector))

	sessions := memory.NewSessionMemory(cfg.Session.WindowSize, cfg.Session.MaxIdle, cfg.Session.SweepProbability, sysLogger.Zap())

	// 6. Services
	advisorService := service.NewAdvisorService(service.AdvisorDependencies{
		Memory:     sessions,
		Enricher:   enricher,
		Selector:   selector,
		Embedder:   embeddings,
		Retriever:  c.retriever,
		LLM:        llmProvider,
		Gate:       gate,
		RLHF:       pipeline,
		Evaluation: store,
		Publisher:  publisher,
		CacheStats: embeddings.Stats,
	}, cfg, sysLogger)
	strategyService := service.NewStrategyService(selector, pipeline.ArmStats())
	scoringService := service.NewScoringService(gate, publisher, c.Collector, sysLogger)
	reviewService := service.NewReviewService(gate.Queue(), auditRepo, pipeline, publisher, c.Collector, sysLogger)
	rlhfService := service.NewRLHFService(pipeline, publisher, c.Collector, sysLogger)

	// 7. Reviewer feed
	c.reviewFeedL = logger.NewIsolatedLogger(cfg.App.ReviewLogFilePath)
	c.WebSocketHub = websocket.NewHub(c.rdb, c.reviewFeedL)
	c.ConsumerService = service.NewConsumerService(c.bus, auditRepo, c.WebSocketHub, reviewService, sysLogger)
	if cfg.RLHF.SchedulerEnabled {
		c.Scheduler = service.NewRLHFScheduler(rlhfService, cfg.RLHF.ScheduleInterval, sysLogger)
	}

	// 8. Controllers
	auth := reviewerAuth(cfg, sysLogger)
	limiter := serverutils.NewRateLimiter(cfg.App.RateLimitRPS, cfg.App.RateLimitBurst).Middleware()
	c.ChatController = controller.NewChatController(advisorService, limiter)
	c.StrategyController = controller.NewStrategyController(strategyService)
	c.ScoreController = controller.NewScoreController(scoringService)
	c.ReviewController = controller.NewReviewController(reviewService, handler.NewReviewFeedHandler(c.WebSocketHub, c.reviewFeedL), auth)
	c.RLHFController = controller.NewRLHFController(rlhfService, auth)
	c.MetricsController = controller.NewMetricsController(advisorService)

	ok = true
	return c, nil
}

// reviewerAuth refuses every reviewer request when no secret is configured.
func reviewerAuth(cfg *config.Config, log logger.ILogger) fiber.Handler {
	if cfg.App.JwtSecret == "" {
		log.Warn("BOOTSTRAP", "JWT_SECRET is not set, reviewer endpoints are disabled", nil)
		return func(ctx *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusServiceUnavailable, "reviewer authentication is not configured")
		}
	}
	return serverutils.JwtMiddleware(cfg.App.JwtSecret)
}

// Start launches the background work. The index loads asynchronously; the
// chat endpoint answers 503 until it is ready.
func (c *Container) Start(ctx context.Context) error {
	if err := c.WebSocketHub.Start(ctx); err != nil {
		return fmt.Errorf("start review feed: %w", err)
	}
	if err := c.ConsumerService.Consume(ctx); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	if c.natsSub != nil {
		durable := "review-decisions"
		if host, err := os.Hostname(); err == nil {
			durable += "-" + host
		}
		if err := c.natsSub.Subscribe(ctx, events.TypeReviewDecision, durable, c.ConsumerService.HandleExternalDecision); err != nil {
			c.Logger.Warn("BOOTSTRAP", "Failed to subscribe to external review decisions", map[string]interface{}{"error": err.Error()})
		}
	}
	if c.Scheduler != nil {
		c.Scheduler.Start(ctx)
	}

	go func() {
		if err := c.loadIndex(ctx); err != nil {
			c.Logger.Error("BOOTSTRAP", "Knowledge base failed to load", map[string]interface{}{"error": err.Error()})
			return
		}
		c.Logger.Info("BOOTSTRAP", "Knowledge base ready", nil)
	}()
	return nil
}

func (c *Container) Ready() bool {
	return c.retriever != nil && c.retriever.Ready()
}

// Close releases connections in reverse order of creation. Safe on a
// partially built container.
func (c *Container) Close() {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.natsSub != nil {
		c.natsSub.Close()
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.bus != nil {
		if err := c.bus.Close(); err != nil {
			c.Logger.Warn("BOOTSTRAP", "Failed to close event bus", map[string]interface{}{"error": err.Error()})
		}
	}
	if c.rdb != nil {
		c.rdb.Close()
	}
	if c.db != nil {
		if sqlDB, err := c.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if c.reviewFeedL != nil {
		_ = c.reviewFeedL.Sync()
	}
}
