// Package config loads engine configuration from environment variables
// with sensible defaults. Every tuning knob the tier store and the
// distillation engine use lives here rather than as scattered constants.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all memory engine configuration.
type Config struct {
	// DBPath is the SQLite database location.
	DBPath string `mapstructure:"db_path"`

	// Tier TTLs. STM entries expire quickly, ITM entries get a sliding
	// window renewed on access, LTM never expires.
	STMTTL time.Duration `mapstructure:"stm_ttl"`
	ITMTTL time.Duration `mapstructure:"itm_ttl"`

	// Promotion criteria evaluated by the distillation engine. A memory
	// qualifies for LTM when |emotional_weight| > EmotionalWeightMin,
	// confidence_score > ConfidenceMin, it is valid, and it either
	// succeeded or was accessed at least AccessCountMin times.
	EmotionalWeightMin float64 `mapstructure:"emotional_weight_min"`
	ConfidenceMin      float64 `mapstructure:"confidence_min"`
	AccessCountMin     int     `mapstructure:"access_count_min"`

	// DistillConfidenceMin is the aggregate confidence a reflection group
	// must clear before it is synthesized into distilled knowledge.
	DistillConfidenceMin float64 `mapstructure:"distill_confidence_min"`

	// MinGroupSize is the smallest reflection group worth distilling.
	MinGroupSize int `mapstructure:"min_group_size"`

	// MinSimilarity is the similarity floor for search results.
	MinSimilarity float64 `mapstructure:"min_similarity"`

	// MaxListLimit caps list/search page sizes regardless of what the
	// caller asks for.
	MaxListLimit int `mapstructure:"max_list_limit"`

	// MaxContextPerTier caps the per-tier slice of a context view.
	MaxContextPerTier int `mapstructure:"max_context_per_tier"`

	// RunBudget is the wall-clock budget for one distillation run.
	RunBudget time.Duration `mapstructure:"run_budget"`

	// EmbedTimeout bounds a single embedding call.
	EmbedTimeout time.Duration `mapstructure:"embed_timeout"`

	// EmbedConcurrency bounds parallel embedding calls during batch work.
	EmbedConcurrency int `mapstructure:"embed_concurrency"`

	// Embedding provider selection: "ollama", "openai", or "mock".
	EmbedProvider string `mapstructure:"embed_provider"`
	EmbedModel    string `mapstructure:"embed_model"`
	EmbedBaseURL  string `mapstructure:"embed_base_url"`
	EmbedAPIKey   string `mapstructure:"embed_api_key"`
	EmbedDims     int    `mapstructure:"embed_dims"`
}

// Load reads configuration from MNEMO_* environment variables, falling
// back to defaults for anything unset.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("mnemo")
	v.AutomaticEnv()

	v.SetDefault("db_path", "")
	v.SetDefault("stm_ttl", time.Hour)
	v.SetDefault("itm_ttl", 7*24*time.Hour)
	v.SetDefault("emotional_weight_min", 0.3)
	v.SetDefault("confidence_min", 0.7)
	v.SetDefault("access_count_min", 3)
	v.SetDefault("distill_confidence_min", 0.6)
	v.SetDefault("min_group_size", 2)
	v.SetDefault("min_similarity", 0.25)
	v.SetDefault("max_list_limit", 100)
	v.SetDefault("max_context_per_tier", 20)
	v.SetDefault("run_budget", 10*time.Minute)
	v.SetDefault("embed_timeout", 30*time.Second)
	v.SetDefault("embed_concurrency", 4)
	v.SetDefault("embed_provider", "mock")
	v.SetDefault("embed_model", "")
	v.SetDefault("embed_base_url", "")
	v.SetDefault("embed_api_key", "")
	v.SetDefault("embed_dims", 0)

	// AutomaticEnv alone does not surface env values through Unmarshal,
	// so bind each key explicitly.
	for _, key := range []string{
		"db_path", "stm_ttl", "itm_ttl",
		"emotional_weight_min", "confidence_min", "access_count_min",
		"distill_confidence_min", "min_group_size",
		"min_similarity", "max_list_limit", "max_context_per_tier",
		"run_budget", "embed_timeout", "embed_concurrency",
		"embed_provider", "embed_model", "embed_base_url",
		"embed_api_key", "embed_dims",
	} {
		v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without consulting the
// environment. Tests use this to pin thresholds.
func Default() *Config {
	return &Config{
		STMTTL:               time.Hour,
		ITMTTL:               7 * 24 * time.Hour,
		EmotionalWeightMin:   0.3,
		ConfidenceMin:        0.7,
		AccessCountMin:       3,
		DistillConfidenceMin: 0.6,
		MinGroupSize:         2,
		MinSimilarity:        0.25,
		MaxListLimit:         100,
		MaxContextPerTier:    20,
		RunBudget:            10 * time.Minute,
		EmbedTimeout:         30 * time.Second,
		EmbedConcurrency:     4,
		EmbedProvider:        "mock",
	}
}
