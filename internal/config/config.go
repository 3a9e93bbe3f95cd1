// Package config loads application configuration from viper.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the assistant.
type Config struct {
	Server    ServerConfig
	Session   SessionConfig
	Fraud     FraudConfig
	Limits    LimitsConfig
	Auth      AuthConfig
	Ledger    LedgerConfig
	LLM       LLMConfig
	Retrieval RetrievalConfig
	Audit     AuditConfig
}

// ServerConfig configures the HTTP gateway.
type ServerConfig struct {
	Host            string
	Port            int
	RatePerMinute   int
	ShutdownTimeout time.Duration
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SessionConfig configures session lifecycle.
type SessionConfig struct {
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

// FraudConfig configures the velocity-based fraud scorer.
type FraudConfig struct {
	AmountThreshold decimal.Decimal
	VelocityWindow  time.Duration
	VelocityLimit   int
}

// LimitsConfig configures per-kind transaction caps.
type LimitsConfig struct {
	TransferMax decimal.Decimal
	BillMax     decimal.Decimal
}

// AuthConfig configures JWT issuance and verification.
type AuthConfig struct {
	JWTSecret   string
	TokenExpiry time.Duration
}

// LedgerConfig configures the core banking client.
type LedgerConfig struct {
	Timeout time.Duration
}

// LLMConfig configures the delegated classifier and text generator.
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	MaxRetries  int
	RetryDelay  time.Duration
	Timeout     time.Duration
}

// Enabled reports whether a delegate LLM is configured.
func (c LLMConfig) Enabled() bool {
	return c.APIKey != ""
}

// RetrievalConfig configures the knowledge base.
type RetrievalConfig struct {
	DBPath string
	TopK   int
}

// AuditConfig configures audit persistence.
type AuditConfig struct {
	FilePath   string
	DBPath     string
	MaxSizeMB  int
	MaxBackups int
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_minute", 100)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("session.idle_timeout", "30m")
	v.SetDefault("session.sweep_interval", "5m")

	v.SetDefault("fraud.velocity_limit", 3)
	v.SetDefault("fraud.velocity_window", "1h")
	v.SetDefault("fraud.amount_threshold", "10000")

	v.SetDefault("limits.transfer_max", "50000")
	v.SetDefault("limits.bill_max", "20000")

	v.SetDefault("auth.jwt_secret", "dev-secret-key-change-in-production")
	v.SetDefault("auth.token_expiry", "30m")

	v.SetDefault("ledger.timeout", "10s")

	v.SetDefault("llm.base_url", "https://api.mistral.ai/v1")
	v.SetDefault("llm.model", "mistral-large-latest")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", "1s")
	v.SetDefault("llm.timeout", "30s")

	v.SetDefault("retrieval.db_path", "data/knowledge.db")
	v.SetDefault("retrieval.top_k", 5)

	v.SetDefault("audit.file_path", "logs/audit.log")
	v.SetDefault("audit.db_path", "")
	v.SetDefault("audit.max_size_mb", 50)
	v.SetDefault("audit.max_backups", 10)
}

// Load builds a Config from v, applying defaults for unset keys.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	amountThreshold, err := decimal.NewFromString(v.GetString("fraud.amount_threshold"))
	if err != nil {
		return nil, fmt.Errorf("invalid fraud.amount_threshold: %w", err)
	}
	transferMax, err := decimal.NewFromString(v.GetString("limits.transfer_max"))
	if err != nil {
		return nil, fmt.Errorf("invalid limits.transfer_max: %w", err)
	}
	billMax, err := decimal.NewFromString(v.GetString("limits.bill_max"))
	if err != nil {
		return nil, fmt.Errorf("invalid limits.bill_max: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			RatePerMinute:   v.GetInt("server.rate_per_minute"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Session: SessionConfig{
			IdleTimeout:   v.GetDuration("session.idle_timeout"),
			SweepInterval: v.GetDuration("session.sweep_interval"),
		},
		Fraud: FraudConfig{
			VelocityLimit:   v.GetInt("fraud.velocity_limit"),
			VelocityWindow:  v.GetDuration("fraud.velocity_window"),
			AmountThreshold: amountThreshold,
		},
		Limits: LimitsConfig{
			TransferMax: transferMax,
			BillMax:     billMax,
		},
		Auth: AuthConfig{
			JWTSecret:   v.GetString("auth.jwt_secret"),
			TokenExpiry: v.GetDuration("auth.token_expiry"),
		},
		Ledger: LedgerConfig{
			Timeout: v.GetDuration("ledger.timeout"),
		},
		LLM: LLMConfig{
			APIKey:      v.GetString("llm.api_key"),
			BaseURL:     v.GetString("llm.base_url"),
			Model:       v.GetString("llm.model"),
			Temperature: v.GetFloat64("llm.temperature"),
			MaxTokens:   v.GetInt("llm.max_tokens"),
			MaxRetries:  v.GetInt("llm.max_retries"),
			RetryDelay:  v.GetDuration("llm.retry_delay"),
			Timeout:     v.GetDuration("llm.timeout"),
		},
		Retrieval: RetrievalConfig{
			DBPath: v.GetString("retrieval.db_path"),
			TopK:   v.GetInt("retrieval.top_k"),
		},
		Audit: AuditConfig{
			FilePath:   v.GetString("audit.file_path"),
			DBPath:     v.GetString("audit.db_path"),
			MaxSizeMB:  v.GetInt("audit.max_size_mb"),
			MaxBackups: v.GetInt("audit.max_backups"),
		},
	}

	if cfg.Session.IdleTimeout <= 0 {
		return nil, fmt.Errorf("session.idle_timeout must be positive")
	}
	if cfg.Fraud.VelocityLimit <= 0 {
		return nil, fmt.Errorf("fraud.velocity_limit must be positive")
	}

	return cfg, nil
}
