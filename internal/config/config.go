package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Provider kinds.
const (
	KindLocal = "local"
	KindCloud = "cloud"
)

// Cost models.
const (
	CostFree         = "free"
	CostPerToken     = "per_token"
	CostSubscription = "subscription"
)

type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Database  DatabaseConfig   `mapstructure:"database"`
	Redis     RedisConfig      `mapstructure:"redis"`
	RateLimit RateLimitConfig  `mapstructure:"rate_limit"`
	Health    HealthConfig     `mapstructure:"health"`
	Dispatch  DispatchConfig   `mapstructure:"dispatch"`
	Providers []ProviderConfig `mapstructure:"providers"`
}

type ServerConfig struct {
	Port    string   `mapstructure:"port"`
	Env     string   `mapstructure:"env"`
	APIKeys []string `mapstructure:"api_keys"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type HealthConfig struct {
	IntervalSeconds     float64 `mapstructure:"interval_seconds"`
	ProbeTimeoutSeconds float64 `mapstructure:"probe_timeout_seconds"`
	FailureThreshold    int     `mapstructure:"failure_threshold"`
}

type DispatchConfig struct {
	AttemptTimeoutSeconds float64 `mapstructure:"attempt_timeout_seconds"`
}

// ProviderConfig declares one inference backend.
type ProviderConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Type        string `mapstructure:"type" validate:"required"` // adapter type: ollama, groq, openai, anthropic
	Kind        string `mapstructure:"kind" validate:"required,oneof=local cloud"`
	DisplayName string `mapstructure:"display_name"`
	Description string `mapstructure:"description"`
	SetupURL    string `mapstructure:"setup_url"`
	Endpoint    string `mapstructure:"endpoint"`

	CostModel          string `mapstructure:"cost_model" validate:"required,oneof=free per_token subscription"`
	Credential         string `mapstructure:"credential"`
	RequiresCredential bool   `mapstructure:"requires_credential"`
	Priority           int    `mapstructure:"priority"`
	Enabled            bool   `mapstructure:"enabled"`

	Models []ModelConfig `mapstructure:"models"`
}

// ModelConfig is a statically declared model for providers whose list-models
// endpoint reports no capability or cost metadata.
type ModelConfig struct {
	Name               string   `mapstructure:"name"`
	ContextLength      int      `mapstructure:"context_length"`
	Capabilities       []string `mapstructure:"capabilities"`
	CostPer1KTokensUSD float64  `mapstructure:"cost_per_1k_tokens_usd"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	}

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("database.dsn", "file:relay.db?cache=shared&mode=rwc&_journal_mode=WAL&_busy_timeout=5000")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("health.interval_seconds", 30.0)
	v.SetDefault("health.probe_timeout_seconds", 5.0)
	v.SetDefault("health.failure_threshold", 3)
	v.SetDefault("dispatch.attempt_timeout_seconds", 30.0)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if len(cfg.Providers) == 0 {
		cfg.Providers = DefaultProviders()
	}

	// Resolve credentials declared as ENV:VAR_NAME
	for i, p := range cfg.Providers {
		if strings.HasPrefix(p.Credential, "ENV:") {
			envVar := strings.TrimPrefix(p.Credential, "ENV:")
			val := os.Getenv(envVar)
			if val == "" {
				val = v.GetString(envVar)
			}
			cfg.Providers[i].Credential = val
		}
	}

	return &cfg, nil
}
