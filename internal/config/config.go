// Package config provides configuration utilities for the application.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/reclaimhub/wastex/internal/common"
)

// Config is the full configuration surface consumed by the core.
type Config struct {
	Database DatabaseConfig
	Ledger   LedgerConfig
	AI       AIConfig
	Match    MatchConfig
	Server   ServerConfig
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	// Path to the sqlite file. Empty selects the ephemeral in-memory
	// backend — an explicit choice, not a fallback.
	Path string
}

// LedgerConfig holds the registry gateway settings.
type LedgerConfig struct {
	Endpoint           string
	Contract           string
	OperatorAddress    string
	OperatorCredential string
	Timeout            time.Duration
}

// AIConfig holds the classifier and embedder service settings.
type AIConfig struct {
	ClassifierURL string
	EmbedderURL   string
	APIKey        string
	Dimensions    int
	Timeout       time.Duration
}

// MatchConfig holds the matching engine tuning knobs.
type MatchConfig struct {
	Threshold float64
	Boost     float64
	Ceiling   float64
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Addr      string
	JWTSecret string
	TokenTTL  time.Duration
}

// SetDefaults registers every tunable with its default value.
func SetDefaults() {
	viper.SetDefault("database.path", "")
	viper.SetDefault("ledger.endpoint", "")
	viper.SetDefault("ledger.contract", "")
	viper.SetDefault("ledger.operator_address", "")
	viper.SetDefault("ledger.operator_credential", "")
	viper.SetDefault("ledger.timeout", "60s")
	viper.SetDefault("ai.classifier_url", "")
	viper.SetDefault("ai.embedder_url", "")
	viper.SetDefault("ai.api_key", "")
	viper.SetDefault("ai.dimensions", 384)
	viper.SetDefault("ai.timeout", "15s")
	viper.SetDefault("match.threshold", 0.45)
	viper.SetDefault("match.boost", 0.2)
	viper.SetDefault("match.ceiling", 0.99)
	viper.SetDefault("server.addr", ":8000")
	viper.SetDefault("server.jwt_secret", "")
	viper.SetDefault("server.token_ttl", "24h")
}

// Load reads the configuration from viper's current state.
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Path: ExpandPath(viper.GetString("database.path")),
		},
		Ledger: LedgerConfig{
			Endpoint:           viper.GetString("ledger.endpoint"),
			Contract:           viper.GetString("ledger.contract"),
			OperatorAddress:    viper.GetString("ledger.operator_address"),
			OperatorCredential: viper.GetString("ledger.operator_credential"),
			Timeout:            viper.GetDuration("ledger.timeout"),
		},
		AI: AIConfig{
			ClassifierURL: viper.GetString("ai.classifier_url"),
			EmbedderURL:   viper.GetString("ai.embedder_url"),
			APIKey:        viper.GetString("ai.api_key"),
			Dimensions:    viper.GetInt("ai.dimensions"),
			Timeout:       viper.GetDuration("ai.timeout"),
		},
		Match: MatchConfig{
			Threshold: viper.GetFloat64("match.threshold"),
			Boost:     viper.GetFloat64("match.boost"),
			Ceiling:   viper.GetFloat64("match.ceiling"),
		},
		Server: ServerConfig{
			Addr:      viper.GetString("server.addr"),
			JWTSecret: viper.GetString("server.jwt_secret"),
			TokenTTL:  viper.GetDuration("server.token_ttl"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Match.Threshold < 0 || c.Match.Threshold >= 1 {
		return fmt.Errorf("%w: match.threshold must be in [0, 1)", common.ErrInvalidConfig)
	}
	if c.Match.Ceiling <= 0 || c.Match.Ceiling >= 1 {
		return fmt.Errorf("%w: match.ceiling must be in (0, 1)", common.ErrInvalidConfig)
	}
	if c.Match.Boost < 0 {
		return fmt.Errorf("%w: match.boost cannot be negative", common.ErrInvalidConfig)
	}
	return nil
}
