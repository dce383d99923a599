package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port         string
	AllowOrigins string
	LogLevel     string
	LogFormat    string

	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	AIProvider       string
	OpenAIKey        string
	OpenAIBaseURL    string
	OpenAILlmModel   string
	OpenAIEmbedModel string
	GeminiKey        string
	GeminiModel      string
	GeminiEmbedModel string

	ReqTimeoutSec      int
	BreakerFailures    int
	BreakerCooldownSec int

	RedisAddr          string
	EmbedCacheTTLHours int

	UploadDir         string
	MaxUploadMB       int64
	RejectFutureDates bool

	TextThreshold     float64
	SemanticThreshold float64

	JWTSecret   string
	JWTTTLHours int
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func atof(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func atob(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func Load() *Config {
	return &Config{
		Port:         getenv("PORT", "8080"),
		AllowOrigins: getenv("ALLOW_ORIGINS", "*"),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		LogFormat:    strings.ToLower(getenv("LOG_FORMAT", "json")),

		DatabaseURL: getenv("DATABASE_URL", ""),
		DBHost:      getenv("DB_HOST", "localhost"),
		DBPort:      getenv("DB_PORT", "5432"),
		DBUser:      getenv("DB_USER", "postgres"),
		DBPassword:  getenv("DB_PASSWORD", ""),
		DBName:      getenv("DB_NAME", "bookkeeping"),
		DBSSLMode:   getenv("DB_SSLMODE", "disable"),

		AIProvider:       strings.ToLower(getenv("AI_PROVIDER", "")),
		OpenAIKey:        getenv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAILlmModel:   getenv("OPENAI_LLM_MODEL", "gpt-4o-mini"),
		OpenAIEmbedModel: getenv("OPENAI_EMBED_MODEL", "text-embedding-3-small"),
		GeminiKey:        getenv("GEMINI_API_KEY", ""),
		GeminiModel:      getenv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiEmbedModel: getenv("GEMINI_EMBED_MODEL", "text-embedding-004"),

		ReqTimeoutSec:      atoi("REQUEST_TIMEOUT_SECONDS", 30),
		BreakerFailures:    atoi("AI_BREAKER_FAILURES", 5),
		BreakerCooldownSec: atoi("AI_BREAKER_COOLDOWN_SECONDS", 30),

		RedisAddr:          getenv("REDIS_ADDR", ""),
		EmbedCacheTTLHours: atoi("EMBED_CACHE_TTL_HOURS", 168),

		UploadDir:         getenv("UPLOAD_DIR", os.TempDir()),
		MaxUploadMB:       int64(atoi("MAX_UPLOAD_MB", 15)),
		RejectFutureDates: atob("REJECT_FUTURE_DATES", false),

		TextThreshold:     atof("TEXT_SIMILARITY_THRESHOLD", 0.70),
		SemanticThreshold: atof("SEMANTIC_SIMILARITY_THRESHOLD", 0.95),

		JWTSecret:   getenv("JWT_SECRET", ""),
		JWTTTLHours: atoi("JWT_TTL_HOURS", 24),
	}
}

func (c *Config) Validate() error {
	switch c.AIProvider {
	case "", "openai", "gemini":
	default:
		return fmt.Errorf("unknown AI_PROVIDER %q", c.AIProvider)
	}
	if c.TextThreshold <= 0 || c.TextThreshold > 1 {
		return fmt.Errorf("TEXT_SIMILARITY_THRESHOLD must be in (0,1], got %v", c.TextThreshold)
	}
	if c.SemanticThreshold <= 0 || c.SemanticThreshold > 1 {
		return fmt.Errorf("SEMANTIC_SIMILARITY_THRESHOLD must be in (0,1], got %v", c.SemanticThreshold)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

// DSN builds the postgres connection string. DATABASE_URL wins when set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.ReqTimeoutSec) * time.Second
}

func (c *Config) EmbedCacheTTL() time.Duration {
	return time.Duration(c.EmbedCacheTTLHours) * time.Hour
}

func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB * 1024 * 1024
}
