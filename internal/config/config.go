package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Response generator configuration. Provider is one of "openai", "gemini"
	// or "none"; with "none" the engine runs entirely on local templates.
	GeneratorProvider string
	GeneratorTimeout  time.Duration
	OpenAIAPIKey      string
	OpenAIModel       string
	GeminiAPIKey      string
	GeminiModel       string

	// Fusion tuning. MismatchThreshold is the minimum facial confidence
	// before a verbal/facial mismatch is surfaced; TrendWindow is the number
	// of recent snapshots considered for the emotion trend.
	MismatchThreshold float64
	TrendWindow       int

	// Prompt context window: how many prior turns are sent to the generator.
	HistoryWindow int

	// Optional overrides for the embedded lexicon and template packs.
	LexiconPath   string
	TemplatesPath string

	// Face/emotion model collaborator. Empty URL selects the degraded
	// static estimator.
	VisionModelURL     string
	VisionModelTimeout time.Duration

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		GeneratorProvider: strings.ToLower(strings.TrimSpace(getEnv("GENERATOR_PROVIDER", "none"))),
		GeneratorTimeout:  getEnvAsDuration("GENERATOR_TIMEOUT", 10*time.Second),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		MismatchThreshold: getEnvAsFloat("MISMATCH_THRESHOLD", 0.6),
		TrendWindow:       getEnvAsInt("TREND_WINDOW", 5),
		HistoryWindow:     getEnvAsInt("HISTORY_WINDOW", 10),

		LexiconPath:   getEnv("LEXICON_PATH", ""),
		TemplatesPath: getEnv("TEMPLATES_PATH", ""),

		VisionModelURL:     getEnv("VISION_MODEL_URL", ""),
		VisionModelTimeout: getEnvAsDuration("VISION_MODEL_TIMEOUT", 5*time.Second),

		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
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
