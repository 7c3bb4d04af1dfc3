package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"wealthadvisor-ai/internal/config"
	"wealthadvisor-ai/internal/model"
	"wealthadvisor-ai/internal/pkg/logger"
	"wealthadvisor-ai/pkg/database"
	"wealthadvisor-ai/pkg/embedding"
	"wealthadvisor-ai/pkg/embedding/cache"
	"wealthadvisor-ai/pkg/embedding/jina"
	"wealthadvisor-ai/pkg/llm"
	"wealthadvisor-ai/pkg/llm/factory"
	"wealthadvisor-ai/pkg/rlhf"
)

// OpenRedis returns nil when no URL is configured or the server does not
// answer; every Redis-backed feature has a local fallback.
func OpenRedis(cfg *config.Config, log logger.ILogger) *redis.Client {
	if cfg.App.RedisURL == "" {
		return nil
	}
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Warn("BOOTSTRAP", "Failed to parse Redis URL, using it as an address", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("BOOTSTRAP", "Redis unavailable, continuing without it", map[string]interface{}{"error": err.Error()})
		rdb.Close()
		return nil
	}
	return rdb
}

// OpenDatabase connects and migrates. It returns nil, nil when no connection
// string is configured.
func OpenDatabase(cfg *config.Config, log logger.ILogger) (*gorm.DB, error) {
	if cfg.Database.Connection == "" {
		return nil, nil
	}
	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, log.Zap())
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, cfg.Retrieval.Backend == BackendPgvector); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates the review audit table and, with pgvector, the knowledge
// chunk table.
func Migrate(db *gorm.DB, withVector bool) error {
	if err := db.AutoMigrate(&model.ReviewAudit{}); err != nil {
		return fmt.Errorf("migrate review audits: %w", err)
	}
	if !withVector {
		return nil
	}
	if err := database.EnableVector(db); err != nil {
		return fmt.Errorf("enable pgvector: %w", err)
	}
	if err := db.AutoMigrate(&model.KnowledgeChunk{}); err != nil {
		return fmt.Errorf("migrate knowledge chunks: %w", err)
	}
	return nil
}

func NewEmbeddingProvider(cfg *config.Config, log logger.ILogger) (embedding.Provider, error) {
	switch cfg.Ai.EmbeddingProvider {
	case "ollama", "":
		log.Info("BOOTSTRAP", "Using embedding provider OLLAMA", map[string]interface{}{"model": cfg.Ai.OllamaModel})
		return embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel), nil
	case "jina":
		if cfg.Keys.Jina == "" {
			return nil, fmt.Errorf("jina embedding provider requires JINA_API_KEY")
		}
		log.Info("BOOTSTRAP", "Using embedding provider JINA", nil)
		return jina.NewJinaProvider(cfg.Keys.Jina), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Ai.EmbeddingProvider)
	}
}

// NewEmbeddingCache puts the disk cache (and Redis, when given) in front of
// the configured provider. observer may be nil.
func NewEmbeddingCache(cfg *config.Config, rdb *redis.Client, observer cache.Observer, log logger.ILogger) (*cache.Cache, error) {
	provider, err := NewEmbeddingProvider(cfg, log)
	if err != nil {
		return nil, err
	}
	var opts []cache.Option
	if rdb != nil {
		opts = append(opts, cache.WithRedis(rdb, cfg.App.EmbeddingRedisTTL))
	}
	if observer != nil {
		opts = append(opts, cache.WithObserver(observer))
	}
	return cache.New(cfg.Storage.EmbeddingCacheDir, provider, log.Zap(), opts...)
}

func NewLLM(cfg *config.Config, log logger.ILogger) (llm.LLMProvider, error) {
	baseURL := cfg.Ai.LLMBaseURL
	if baseURL == "" && cfg.Ai.LLMProvider != "huggingface" {
		baseURL = cfg.Ai.OllamaBaseURL
	}
	p, err := factory.NewLLMProvider(factory.Settings{
		Provider:    cfg.Ai.LLMProvider,
		Model:       cfg.Ai.LLMModel,
		BaseURL:     baseURL,
		APIKey:      cfg.Keys.HuggingFace,
		Temperature: cfg.Ai.LLMTemperature,
	})
	if err != nil {
		return nil, err
	}
	log.Info("BOOTSTRAP", "Using LLM provider", map[string]interface{}{"provider": cfg.Ai.LLMProvider, "model": cfg.Ai.LLMModel})
	return llm.NewRateLimited(p, cfg.Ai.LLMRateLimitRPS, cfg.Ai.LLMRateLimitBurst), nil
}

func NewRLHFPipeline(cfg *config.Config, log logger.ILogger) *rlhf.Pipeline {
	return rlhf.NewPipeline(rlhf.Paths{
		FeedbackLog: cfg.Storage.FeedbackLogPath,
		ArmStats:    cfg.Storage.ArmStatsPath,
		Preferences: cfg.Storage.PreferencesPath,
		ReportsDir:  cfg.Storage.ReportsDir,
	}, log.Zap(), rlhf.WithGamma(cfg.RLHF.Gamma), rlhf.WithLookback(cfg.RLHF.Lookback))
}
