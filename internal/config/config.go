package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	LogFormat      string
	WorkerCount    int
	UseMemoryQueue bool

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Remote emotion classifier (HF inference style endpoint)
	EmotionModelURL     string
	EmotionModelToken   string
	EmotionModelTimeout time.Duration

	// Reasoning model (OpenAI-compatible chat completions)
	ReasonerAPIKey  string
	ReasonerBaseURL string
	ReasonerModel   string
	ReasonerTimeout time.Duration

	// Transcript encryption secret; transcripts are stored sealed.
	TranscriptSecret string
	TranscriptTTL    time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", true),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		EmotionModelURL:     getEnv("EMOTION_MODEL_URL", ""),
		EmotionModelToken:   getEnv("EMOTION_MODEL_TOKEN", ""),
		EmotionModelTimeout: getEnvAsDuration("EMOTION_MODEL_TIMEOUT", 8*time.Second),

		ReasonerAPIKey:  getEnv("REASONER_API_KEY", ""),
		ReasonerBaseURL: getEnv("REASONER_BASE_URL", ""),
		ReasonerModel:   getEnv("REASONER_MODEL", "gpt-4o-mini"),
		ReasonerTimeout: getEnvAsDuration("REASONER_TIMEOUT", 10*time.Second),

		TranscriptSecret: getEnv("TRANSCRIPT_SECRET", ""),
		TranscriptTTL:    getEnvAsDuration("TRANSCRIPT_TTL", 7*24*time.Hour),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
