package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// app config, loaded from the environment
type Config struct {
	Port        string
	CORSOrigins []string

	// interview flow
	MaxRounds            int
	CountOpeningQuestion bool
	QuestionThreshold    float64
	AnswerThreshold      float64
	FollowupRatio        float64
	ProviderTimeout      time.Duration

	// agents
	AgentProvider  string // dify | gemini | openai
	ReportProvider string
	AgentRateLimit float64
	AgentBurst     int
	DifyURL        string
	DifyKeys       map[string]string // role -> key, "summarizer" included

	// embeddings
	EmbeddingBaseURL string
	EmbeddingModel   string
	EmbeddingAPIKey  string

	// voice
	ElevenAPIKey string
	VoiceIDs     map[string]string // role -> voice id, "DEFAULT" included
	TTSModel     string
	STTModel     string

	// storage and events
	DBDriver      string // postgres | sqlite
	DatabaseDSN   string
	SQLitePath    string
	RedisAddr     string
	EventsChannel string

	// auth
	JWTSecret string

	// housekeeping
	JanitorSchedule    string
	SessionIdleTimeout time.Duration
	SessionRetention   time.Duration
	ReportCacheTTL     time.Duration
}

// loads configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		CORSOrigins: splitList(getEnvOrDefault("CORS_ORIGINS", "http://localhost:5173")),

		MaxRounds:            getEnvInt("MAX_ROUNDS", 5),
		CountOpeningQuestion: getEnvBool("COUNT_OPENING_QUESTION", true),
		QuestionThreshold:    getEnvFloat("QUESTION_DUP_THRESHOLD", 0.85),
		AnswerThreshold:      getEnvFloat("ANSWER_DUP_THRESHOLD", 0.88),
		FollowupRatio:        getEnvFloat("FOLLOWUP_RATIO", 0.6),
		ProviderTimeout:      getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),

		AgentProvider:  strings.ToLower(getEnvOrDefault("AGENT_PROVIDER", "dify")),
		ReportProvider: strings.ToLower(getEnvOrDefault("REPORT_PROVIDER", "gemini")),
		AgentRateLimit: getEnvFloat("AGENT_RATE_LIMIT", 5),
		AgentBurst:     getEnvInt("AGENT_RATE_BURST", 10),
		DifyURL:        getEnvOrDefault("DIFY_API_URL", "https://api.dify.ai/v1"),
		DifyKeys: map[string]string{
			"A":          os.Getenv("DIFY_AGENT_A_API_KEY"),
			"B":          os.Getenv("DIFY_AGENT_B_API_KEY"),
			"C":          os.Getenv("DIFY_AGENT_C_API_KEY"),
			"summarizer": os.Getenv("DIFY_SUMMARY_API_KEY"),
		},

		EmbeddingBaseURL: os.Getenv("EMBEDDING_BASE_URL"),
		EmbeddingModel:   getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingAPIKey:  os.Getenv("OPENAI_API_KEY"),

		ElevenAPIKey: os.Getenv("ELEVEN_API_KEY"),
		VoiceIDs: map[string]string{
			"A":       os.Getenv("VOICE_ID_A"),
			"B":       os.Getenv("VOICE_ID_B"),
			"C":       os.Getenv("VOICE_ID_C"),
			"DEFAULT": os.Getenv("VOICE_ID_DEFAULT"),
		},
		TTSModel: getEnvOrDefault("ELEVEN_TTS_MODEL", "eleven_multilingual_v2"),
		STTModel: getEnvOrDefault("ELEVEN_STT_MODEL", "scribe_v1"),

		DBDriver:      strings.ToLower(getEnvOrDefault("DB_DRIVER", "postgres")),
		DatabaseDSN:   postgresDSN(),
		SQLitePath:    getEnvOrDefault("SQLITE_PATH", "interview.db"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		EventsChannel: getEnvOrDefault("EVENTS_CHANNEL", "interview_ended"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		JanitorSchedule:    getEnvOrDefault("JANITOR_SCHEDULE", "@every 5m"),
		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		SessionRetention:   getEnvDuration("SESSION_RETENTION", 2*time.Hour),
		ReportCacheTTL:     getEnvDuration("REPORT_CACHE_TTL", 15*time.Minute),
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

var supportedProviders = map[string]bool{"dify": true, "gemini": true, "openai": true}

func validateConfig(config *Config) error {
	var errs []error
	if config.MaxRounds < 1 {
		errs = append(errs, fmt.Errorf("MAX_ROUNDS must be at least 1, got %d", config.MaxRounds))
	}
	if !inUnitRange(config.QuestionThreshold) || !inUnitRange(config.AnswerThreshold) {
		errs = append(errs, errors.New("duplicate thresholds must be within (0, 1]"))
	}
	if config.FollowupRatio < 0 || config.FollowupRatio > 1 {
		errs = append(errs, errors.New("FOLLOWUP_RATIO must be within [0, 1]"))
	}
	if config.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("PROVIDER_TIMEOUT must be positive"))
	}
	if !supportedProviders[config.AgentProvider] {
		errs = append(errs, fmt.Errorf("unsupported agent provider: %s. Currently supported: dify, gemini, openai", config.AgentProvider))
	}
	if !supportedProviders[config.ReportProvider] {
		errs = append(errs, fmt.Errorf("unsupported report provider: %s. Currently supported: dify, gemini, openai", config.ReportProvider))
	}
	if config.AgentProvider == "dify" {
		for _, role := range []string{"A", "B", "C"} {
			if config.DifyKeys[role] == "" {
				errs = append(errs, fmt.Errorf("DIFY_AGENT_%s_API_KEY is required for the dify agent provider", role))
			}
		}
	}
	if config.ReportProvider == "dify" && config.DifyKeys["summarizer"] == "" {
		errs = append(errs, errors.New("DIFY_SUMMARY_API_KEY is required for the dify report provider"))
	}
	if config.DBDriver != "postgres" && config.DBDriver != "sqlite" {
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER: %s", config.DBDriver))
	}
	return errors.Join(errs...)
}

func inUnitRange(v float64) bool {
	return v > 0 && v <= 1
}

func postgresDSN() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		getEnvOrDefault("POSTGRES_HOST", "localhost"),
		getEnvOrDefault("POSTGRES_USER", "postgres"),
		getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
		getEnvOrDefault("POSTGRES_DB", "postgres"),
		getEnvOrDefault("POSTGRES_PORT", "5432"),
		getEnvOrDefault("POSTGRES_SSLMODE", "disable"))
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
