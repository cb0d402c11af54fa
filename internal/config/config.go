// Package config loads application configuration from config.yaml and
// LEADENRICH_* environment variables, and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Orbis     OrbisConfig     `yaml:"orbis" mapstructure:"orbis"`
	Research  ResearchConfig  `yaml:"research" mapstructure:"research"`
	Match     MatchConfig     `yaml:"match" mapstructure:"match"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CacheConfig configures the stage-result cache.
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend         string `yaml:"backend" mapstructure:"backend"`
	RedisURL        string `yaml:"redis_url" mapstructure:"redis_url"`
	KeyPrefix       string `yaml:"key_prefix" mapstructure:"key_prefix"`
	MatchTTLHours   int    `yaml:"match_ttl_hours" mapstructure:"match_ttl_hours"`
	DetailsTTLHours int    `yaml:"details_ttl_hours" mapstructure:"details_ttl_hours"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// OrbisConfig holds directory API settings.
type OrbisConfig struct {
	Key     string  `yaml:"key" mapstructure:"key"`
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	RPS     float64 `yaml:"rps" mapstructure:"rps"`
}

// ResearchConfig tunes the research stage.
type ResearchConfig struct {
	MaxTokens        int64 `yaml:"max_tokens" mapstructure:"max_tokens"`
	WebSearchMaxUses int   `yaml:"web_search_max_uses" mapstructure:"web_search_max_uses"`
	TimeoutSecs      int   `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// MatchConfig tunes the match stage.
type MatchConfig struct {
	// PolicyPath points to an optional YAML match policy; empty uses the
	// compiled-in defaults.
	PolicyPath     string  `yaml:"policy_path" mapstructure:"policy_path"`
	ScoreLimit     float64 `yaml:"score_limit" mapstructure:"score_limit"`
	FetchThreshold string  `yaml:"fetch_threshold" mapstructure:"fetch_threshold"`
}

// PipelineConfig bounds a single lead's run.
type PipelineConfig struct {
	LeadTimeoutSecs int `yaml:"lead_timeout_secs" mapstructure:"lead_timeout_secs"`
}

// BatchConfig bounds batch runs.
type BatchConfig struct {
	MaxConcurrentLeads int `yaml:"max_concurrent_leads" mapstructure:"max_concurrent_leads"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads config.yaml (optional) plus LEADENRICH_* env overrides.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadenrich.db")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.key_prefix", "leadenrich")
	v.SetDefault("cache.match_ttl_hours", 24)
	v.SetDefault("cache.details_ttl_hours", 24)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5")
	v.SetDefault("orbis.base_url", "https://api.bvdinfo.com/v1/orbis")
	v.SetDefault("orbis.rps", 5)
	v.SetDefault("research.max_tokens", 4096)
	v.SetDefault("research.web_search_max_uses", 6)
	v.SetDefault("research.timeout_secs", 90)
	v.SetDefault("match.score_limit", 0.7)
	v.SetDefault("match.fetch_threshold", "medium")
	v.SetDefault("pipeline.lead_timeout_secs", 180)
	v.SetDefault("batch.max_concurrent_leads", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
