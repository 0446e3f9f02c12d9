// Package config loads runtime settings from the environment with sensible
// local-development defaults.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every runtime setting of the analysis service.
type Config struct {
	Port     string
	LogLevel string

	AllowedOrigins []string

	LLMDisabled         bool
	LLMModel            string
	LLMMaxTokens        int64
	LLMTemperature      float64
	LLMInputTokenPrice  float64
	LLMOutputTokenPrice float64

	AnomalyZThreshold float64
	AnomalyIQRFactor  float64

	CacheTTL     time.Duration
	CacheMaxCost int64
}

// Load reads the environment. Every key has a default, so an empty
// environment yields a working local configuration with the LLM enabled.
func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8111")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:1234,http://127.0.0.1:1234")

	v.SetDefault("LLM_DISABLED", false)
	v.SetDefault("LLM_MODEL", "claude-3-haiku-20240307")
	v.SetDefault("LLM_MAX_TOKENS", 700)
	v.SetDefault("LLM_TEMPERATURE", 0.25)
	v.SetDefault("LLM_INPUT_TOKEN_PRICE", 0.00000025)
	v.SetDefault("LLM_OUTPUT_TOKEN_PRICE", 0.00000125)

	v.SetDefault("ANOMALY_Z_THRESHOLD", 2.0)
	v.SetDefault("ANOMALY_IQR_FACTOR", 1.5)

	v.SetDefault("CACHE_TTL", "15m")
	v.SetDefault("CACHE_MAX_COST", 64<<20)

	return &Config{
		Port:     v.GetString("PORT"),
		LogLevel: v.GetString("LOG_LEVEL"),

		AllowedOrigins: splitOrigins(v.GetString("ALLOWED_ORIGINS")),

		LLMDisabled:         v.GetBool("LLM_DISABLED"),
		LLMModel:            v.GetString("LLM_MODEL"),
		LLMMaxTokens:        v.GetInt64("LLM_MAX_TOKENS"),
		LLMTemperature:      v.GetFloat64("LLM_TEMPERATURE"),
		LLMInputTokenPrice:  v.GetFloat64("LLM_INPUT_TOKEN_PRICE"),
		LLMOutputTokenPrice: v.GetFloat64("LLM_OUTPUT_TOKEN_PRICE"),

		AnomalyZThreshold: v.GetFloat64("ANOMALY_Z_THRESHOLD"),
		AnomalyIQRFactor:  v.GetFloat64("ANOMALY_IQR_FACTOR"),

		CacheTTL:     v.GetDuration("CACHE_TTL"),
		CacheMaxCost: v.GetInt64("CACHE_MAX_COST"),
	}
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
