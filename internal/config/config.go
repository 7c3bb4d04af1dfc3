package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Keys      APIKeys
	Ai        AIConfig
	Storage   StorageConfig
	Retrieval RetrievalConfig
	Session   SessionConfig
	Bandit    BanditConfig
	Gate      GateConfig
	RLHF      RLHFConfig
	Timeouts  TimeoutConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	ReviewLogFilePath  string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	EmbeddingRedisTTL  time.Duration
	JwtSecret          string
	RateLimitRPS       float64
	RateLimitBurst     int
}

type DatabaseConfig struct {
	// Empty disables the review audit table and the pgvector backend.
	Connection string
}

type APIKeys struct {
	Jina        string
	HuggingFace string
}

type AIConfig struct {
	EmbeddingProvider string // "ollama" or "jina"
	OllamaBaseURL     string
	OllamaModel       string // embedding model
	LLMProvider       string // "ollama" or "huggingface"
	LLMModel          string
	LLMBaseURL        string
	LLMTemperature    float64
	LLMMaxTokens      int
	LLMRateLimitRPS   float64
	LLMRateLimitBurst int
	// Model-backed enrichment (zero-shot through the LLM). Disabled means lexicon only.
	EnrichWithModel bool
}

type StorageConfig struct {
	DataDir           string
	IndexPath         string
	EmbeddingCacheDir string
	BanditWeightsPath string
	ArmStatsPath      string
	PreferencesPath   string
	FeedbackLogPath   string
	ReportsDir        string
	MetricsLogPath    string
}

type RetrievalConfig struct {
	Backend      string // "file" or "pgvector"
	K            int
	FetchK       int
	LambdaMult   float64
	ChunkSize    int
	ChunkOverlap int
	ForceRebuild bool
}

type SessionConfig struct {
	WindowSize       int
	MaxIdle          time.Duration
	SweepProbability float64
}

type BanditConfig struct {
	Alpha          float64
	ResetOnCorrupt bool
}

type GateConfig struct {
	EscalateThreshold      float64
	DisclaimerThreshold    float64
	HallucinationThreshold float64
	ReviewQueueSize        int
}

type RLHFConfig struct {
	Gamma            float64
	Lookback         time.Duration
	ScheduleInterval time.Duration
	SchedulerEnabled bool
}

type TimeoutConfig struct {
	Embedding  time.Duration
	Retrieval  time.Duration
	Generation time.Duration
	Request    time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	dataDir := getEnv("DATA_DIR", "./data")

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "5001"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			ReviewLogFilePath:  getEnv("REVIEW_LOG_FILE_PATH", "logs/review_feed.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			EmbeddingRedisTTL:  getEnvAsDuration("EMBEDDING_REDIS_TTL", 30*24*time.Hour),
			JwtSecret:          getEnv("JWT_SECRET", ""),
			RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
			RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			Jina:        getEnv("JINA_API_KEY", ""),
			HuggingFace: getEnv("HUGGINGFACE_API_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
			LLMTemperature:    getEnvAsFloat("LLM_TEMPERATURE", 0.3),
			LLMMaxTokens:      getEnvAsInt("LLM_MAX_TOKENS", 512),
			LLMRateLimitRPS:   getEnvAsFloat("LLM_RATE_LIMIT_RPS", 2),
			LLMRateLimitBurst: getEnvAsInt("LLM_RATE_LIMIT_BURST", 4),
			EnrichWithModel:   getEnvAsBool("ENRICH_WITH_MODEL", false),
		},
		Storage: StorageConfig{
			DataDir:           dataDir,
			IndexPath:         getEnv("VECTOR_INDEX_PATH", dataDir+"/vector_index"),
			EmbeddingCacheDir: getEnv("EMBEDDING_CACHE_PATH", dataDir+"/embedding_cache"),
			BanditWeightsPath: getEnv("RL_WEIGHTS_PATH", dataDir+"/rl_weights.bin"),
			ArmStatsPath:      getEnv("RL_ARM_STATS_FILE", dataDir+"/rl_arm_stats.json"),
			PreferencesPath:   getEnv("RETRIEVAL_PREFS_FILE", dataDir+"/retrieval_prefs.json"),
			FeedbackLogPath:   getEnv("FEEDBACK_FILE", dataDir+"/feedback_store.jsonl"),
			ReportsDir:        getEnv("REPORTS_DIR", dataDir+"/rlhf_reports"),
			MetricsLogPath:    getEnv("METRICS_LOG_PATH", dataDir+"/evaluation_metrics.jsonl"),
		},
		Retrieval: RetrievalConfig{
			Backend:      getEnv("INDEX_BACKEND", "file"),
			K:            getEnvAsInt("RETRIEVAL_K", 4),
			FetchK:       getEnvAsInt("RETRIEVAL_FETCH_K", 20),
			LambdaMult:   getEnvAsFloat("RETRIEVAL_LAMBDA_MULT", 0.7),
			ChunkSize:    getEnvAsInt("CHUNK_SIZE", 512),
			ChunkOverlap: getEnvAsInt("CHUNK_OVERLAP", 64),
			ForceRebuild: getEnvAsBool("INDEX_FORCE_REBUILD", false),
		},
		Session: SessionConfig{
			WindowSize:       getEnvAsInt("MEMORY_WINDOW_SIZE", 5),
			MaxIdle:          getEnvAsDuration("SESSION_MAX_IDLE", time.Hour),
			SweepProbability: getEnvAsFloat("SESSION_SWEEP_PROBABILITY", 0.01),
		},
		Bandit: BanditConfig{
			Alpha:          getEnvAsFloat("RL_ALPHA", 0.5),
			ResetOnCorrupt: getEnvAsBool("BANDIT_RESET_ON_CORRUPT", false),
		},
		Gate: GateConfig{
			EscalateThreshold:      getEnvAsFloat("ESCALATE_THRESHOLD", 0.50),
			DisclaimerThreshold:    getEnvAsFloat("DISCLAIMER_THRESHOLD", 0.65),
			HallucinationThreshold: getEnvAsFloat("HALLUCINATION_THRESHOLD", 0.3),
			ReviewQueueSize:        getEnvAsInt("CA_REVIEW_QUEUE_SIZE", 500),
		},
		RLHF: RLHFConfig{
			Gamma:            getEnvAsFloat("RLHF_GAMMA", 0.9),
			Lookback:         getEnvAsDuration("RLHF_LOOKBACK", 7*24*time.Hour),
			ScheduleInterval: getEnvAsDuration("RLHF_SCHEDULE_INTERVAL", 7*24*time.Hour),
			SchedulerEnabled: getEnvAsBool("RLHF_SCHEDULER_ENABLED", true),
		},
		Timeouts: TimeoutConfig{
			Embedding:  getEnvAsDuration("EMBEDDING_TIMEOUT", 10*time.Second),
			Retrieval:  getEnvAsDuration("RETRIEVAL_TIMEOUT", 5*time.Second),
			Generation: getEnvAsDuration("GENERATION_TIMEOUT", 60*time.Second),
			Request:    getEnvAsDuration("REQUEST_TIMEOUT", 90*time.Second),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
