package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// RerankMode selects the reranking strategy applied after fusion
type RerankMode string

const (
	RerankDisabled  RerankMode = "disabled"
	RerankHeuristic RerankMode = "heuristic"
	RerankModel     RerankMode = "model"
)

// Config holds all runtime configuration. It is loaded once at startup and
// passed explicitly; nothing reads the environment after Load returns.
type Config struct {
	Env string

	// Security
	MetricsRequireAuth bool

	// Backing services
	DatabaseURL string
	RedisURL    string

	// Object store
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string

	// Providers
	EmbeddingProviderKey string
	LLMProviderKey       string
	EmbeddingModel       string
	LLMModel             string
	EmbeddingBaseURL     string
	LLMBaseURL           string
	FakeLLM              bool
	FakeEmbeddings       bool

	// Limits and tuning
	MaxUploadBytes    int64
	MaxContextChars   int
	EnableHybrid      bool
	RRFK              int
	RerankMode        RerankMode
	TopKDefault       int
	TopKMax           int
	JobTimeout        time.Duration
	WorkerConcurrency int

	// Retry policy for external calls
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration

	// Embedding cache and rate limit
	EmbeddingCacheTTL     time.Duration
	EmbeddingCacheSize    int
	EmbeddingRatePerSec   float64
	EmbeddingBatchSize    int

	// Retrieval language allowlist for sparse search
	FTSLanguageAllowlist []string
	DefaultFTSLanguage   string

	// Listen addresses
	APIAddr string
}

// Defaults mirrored from the deployment manifests
const (
	defaultMaxUploadBytes  = 25 << 20
	defaultMaxContextChars = 12000
	defaultRRFK            = 60
	defaultTopK            = 5
	defaultTopKMax         = 50
	defaultJobTimeout      = 10 * time.Minute
)

// Load reads configuration from the environment, optionally seeded from a
// .env file. In production it fails fast on insecure defaults.
func Load() (*Config, error) {
	// Missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg := &Config{
		Env:                  getenv("APP_ENV", "development"),
		MetricsRequireAuth:   getbool("METRICS_REQUIRE_AUTH", false),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisURL:             getenv("REDIS_URL", "redis://localhost:6379/0"),
		S3Endpoint:           os.Getenv("S3_ENDPOINT_URL"),
		S3Bucket:             getenv("S3_BUCKET", "quill-documents"),
		S3AccessKey:          os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:          os.Getenv("S3_SECRET_KEY"),
		S3Region:             getenv("S3_REGION", "us-east-1"),
		EmbeddingProviderKey: os.Getenv("EMBEDDING_PROVIDER_KEY"),
		LLMProviderKey:       os.Getenv("LLM_PROVIDER_KEY"),
		EmbeddingModel:       getenv("EMBEDDING_MODEL", "text-embedding-3-small"),
		LLMModel:             getenv("LLM_MODEL", "gpt-4o-mini"),
		EmbeddingBaseURL:     os.Getenv("EMBEDDING_BASE_URL"),
		LLMBaseURL:           os.Getenv("LLM_BASE_URL"),
		FakeLLM:              getbool("FAKE_LLM", false),
		FakeEmbeddings:       getbool("FAKE_EMBEDDINGS", false),
		MaxUploadBytes:       getint64("MAX_UPLOAD_BYTES", defaultMaxUploadBytes),
		MaxContextChars:      getint("MAX_CONTEXT_CHARS", defaultMaxContextChars),
		EnableHybrid:         getbool("ENABLE_HYBRID_SEARCH", true),
		RRFK:                 getint("RRF_K", defaultRRFK),
		RerankMode:           RerankMode(getenv("RERANK_MODE", string(RerankHeuristic))),
		TopKDefault:          defaultTopK,
		TopKMax:              defaultTopKMax,
		JobTimeout:           getduration("JOB_TIMEOUT", defaultJobTimeout),
		WorkerConcurrency:    getint("WORKER_CONCURRENCY", 4),
		RetryMaxAttempts:     getint("RETRY_MAX_ATTEMPTS", 4),
		RetryBaseDelay:       getdurationSeconds("RETRY_BASE_DELAY_S", time.Second),
		RetryMaxDelay:        getdurationSeconds("RETRY_MAX_DELAY_S", 30*time.Second),
		EmbeddingCacheTTL:    getdurationSeconds("EMBEDDING_CACHE_TTL_SECONDS", 15*time.Minute),
		EmbeddingCacheSize:   getint("EMBEDDING_CACHE_SIZE", 4096),
		EmbeddingRatePerSec:  getfloat("EMBEDDING_RATE_PER_SEC", 10),
		EmbeddingBatchSize:   getint("EMBEDDING_BATCH_SIZE", 16),
		FTSLanguageAllowlist: getlist("FTS_LANGUAGE_ALLOWLIST", []string{"spanish", "english", "simple"}),
		DefaultFTSLanguage:   getenv("DEFAULT_FTS_LANGUAGE", "spanish"),
		APIAddr:              getenv("API_ADDR", ":8080"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Production reports whether the service runs with production hardening
func (c *Config) Production() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.RRFK <= 0 {
		return fmt.Errorf("RRF_K must be positive, got %d", c.RRFK)
	}
	if c.MaxContextChars <= 0 {
		return fmt.Errorf("MAX_CONTEXT_CHARS must be positive, got %d", c.MaxContextChars)
	}
	switch c.RerankMode {
	case RerankDisabled, RerankHeuristic, RerankModel:
	default:
		return fmt.Errorf("unknown RERANK_MODE %q", c.RerankMode)
	}
	for _, lang := range c.FTSLanguageAllowlist {
		switch lang {
		case "spanish", "english", "simple":
		default:
			return fmt.Errorf("unsupported FTS language %q in allowlist", lang)
		}
	}
	if !c.LanguageAllowed(c.DefaultFTSLanguage) {
		return fmt.Errorf("DEFAULT_FTS_LANGUAGE %q is not in the allowlist", c.DefaultFTSLanguage)
	}

	if !c.Production() {
		return nil
	}

	// Production fail-fast on insecure defaults.
	if !c.MetricsRequireAuth {
		return fmt.Errorf("METRICS_REQUIRE_AUTH must be true in production")
	}
	return nil
}

// LanguageAllowed reports whether lang is a permitted FTS configuration
func (c *Config) LanguageAllowed(lang string) bool {
	for _, l := range c.FTSLanguageAllowlist {
		if l == lang {
			return true
		}
	}
	return false
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getbool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getint(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getint64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getfloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getduration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// getdurationSeconds parses keys whose unit is whole seconds (the _S and
// _SECONDS environment variables).
func getdurationSeconds(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return time.Duration(n * float64(time.Second))
}

func getlist(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
