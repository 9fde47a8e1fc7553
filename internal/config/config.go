// Package config loads service configuration from a YAML file with
// environment-variable overrides for credentials.
package config

import (
	"fmt"
	"os"
	"strings"

	yaml "gopkg.in/yaml.v2"
)

// Config holds everything the service needs at startup.
type Config struct {
	// LLM provider: "gemini" (default) or "anthropic".
	LLMProvider string `yaml:"llm_provider"`
	LLMModel    string `yaml:"llm_model"`

	// APIKeys is the rotation pool. The ANTHROPIC_API_KEY / GEMINI_API_KEY
	// environment variables are appended when set.
	APIKeys []string `yaml:"api_keys"`

	// RequestsPerSecond and MaxConcurrent bound the shared LLM channel.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxConcurrent     int     `yaml:"max_concurrent"`

	// CachePath enables the persistent bolt response cache when set;
	// empty means in-memory only.
	CachePath string `yaml:"cache_path"`

	// BigQuery history/audit store. Empty project disables both the
	// statistical anomaly check and audit writes.
	BigQueryProject string `yaml:"bigquery_project"`
	BigQueryDataset string `yaml:"bigquery_dataset"`

	// RawOutputBucket enables GCS archival of degraded raw model output.
	RawOutputBucket string `yaml:"raw_output_bucket"`

	// LargeAmountThreshold overrides the anomaly ceiling (VND).
	LargeAmountThreshold float64 `yaml:"large_amount_threshold"`
}

// Defaults applied when the file leaves fields unset.
const (
	DefaultProvider          = "gemini"
	DefaultGeminiModel       = "gemini-2.5-flash"
	DefaultAnthropicModel    = "claude-sonnet-4-5-20250929"
	DefaultRequestsPerSecond = 2.0
	DefaultMaxConcurrent     = 4
)

// Load reads path (optional) and applies env overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LLMProvider == "" {
		c.LLMProvider = DefaultProvider
	}
	if c.LLMModel == "" {
		if c.LLMProvider == "anthropic" {
			c.LLMModel = DefaultAnthropicModel
		} else {
			c.LLMModel = DefaultGeminiModel
		}
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}

	envKey := os.Getenv("GEMINI_API_KEY")
	if c.LLMProvider == "anthropic" {
		envKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if envKey != "" && !containsKey(c.APIKeys, envKey) {
		c.APIKeys = append(c.APIKeys, envKey)
	}
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if strings.TrimSpace(k) == key {
			return true
		}
	}
	return false
}
