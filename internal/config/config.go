package config

import (
	"tableflow/maitre/pkg/config"
)

// Retrieval holds the hybrid retrieval tuning knobs. Every threshold is
// overridable from the environment so operators can tune recall without a
// redeploy.
type Retrieval struct {
	TopK            int
	DirectThreshold float64
	HydeTrigger     float64
	HydeThreshold   float64
}

// Config stores environment configuration for Maitre.
type Config struct {
	Port               string
	DatabaseURL        string
	MaxHistoryMessages int
	AgentMaxSteps      int
	HydeMaxTokens      int
	HydeTemperature    float64
	EmbedMaxChars      int
	EmbedBatchSize     int
	Retrieval          Retrieval
}

// LoadConfig loads the Maitre configuration from environment variables.
func LoadConfig() Config {
	return Config{
		Port:               config.GetEnv("PORT", "18030"),
		DatabaseURL:        config.RequireEnv("DATABASE_URL"),
		MaxHistoryMessages: config.GetEnvInt("MAITRE_MAX_HISTORY_MESSAGES", 6),
		AgentMaxSteps:      config.GetEnvInt("AGENT_MAX_STEPS", 5),
		HydeMaxTokens:      config.GetEnvInt("HYDE_MAX_TOKENS", 120),
		HydeTemperature:    config.GetEnvFloat("HYDE_TEMPERATURE", 0.1),
		EmbedMaxChars:      config.GetEnvInt("EMBED_MAX_CHARS", 8000),
		EmbedBatchSize:     config.GetEnvInt("EMBED_BATCH_SIZE", 100),
		Retrieval: Retrieval{
			TopK:            config.GetEnvInt("RETRIEVAL_TOP_K", 5),
			DirectThreshold: config.GetEnvFloat("RETRIEVAL_DIRECT_THRESHOLD", 0.65),
			HydeTrigger:     config.GetEnvFloat("RETRIEVAL_HYDE_TRIGGER", 0.70),
			HydeThreshold:   config.GetEnvFloat("RETRIEVAL_HYDE_THRESHOLD", 0.55),
		},
	}
}
