// Package config loads engine configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"strings"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Forecast provider
	ForecastURL string

	// Outcome predictor (empty provider = deterministic fallback only)
	LLMProvider     string
	LLMModel        string
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string

	// Notifications (no brokers = log-only notifier)
	KafkaBrokers []string
	KafkaTopic   string

	// Window scoring tuning overrides (optional YAML file)
	TuningFile string

	// Nearby-order discovery
	DefaultRadiusKm float64

	// HTTP server
	ServerPort string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "miteguard"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "engine"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		ForecastURL: getEnv("MITEGUARD_FORECAST_URL", "http://localhost:9090"),

		LLMProvider:     getEnv("MITEGUARD_LLM_PROVIDER", ""),
		LLMModel:        getEnv("MITEGUARD_LLM_MODEL", "llama3"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),

		KafkaBrokers: splitList(getEnv("MITEGUARD_KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("MITEGUARD_KAFKA_TOPIC", "miteguard.notifications"),

		TuningFile: getEnv("MITEGUARD_TUNING_FILE", ""),

		DefaultRadiusKm: 10,

		ServerPort: getEnv("MITEGUARD_SERVER_PORT", "8486"),

		LogFile:  getEnv("MITEGUARD_LOG_FILE", "/tmp/miteguard.log"),
		LogLevel: parseLogLevel(getEnv("MITEGUARD_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
