// Package config loads the engine configuration from YAML, a .env file and
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/coordinate"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/lane"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/orchestrator"
)

// #region types

// Config holds all configuration for the engine and its entrypoints.
type Config struct {
	Storage      StorageConfig      `yaml:"storage"`
	Generation   GenerationConfig   `yaml:"generation"`
	Embeddings   EmbeddingsConfig   `yaml:"embeddings"`
	Pressure     PressureConfig     `yaml:"pressure"`
	Stall        StallConfig        `yaml:"stall"`
	Recall       RecallConfig       `yaml:"recall"`
	Lane         LaneConfig         `yaml:"lane"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// StorageConfig selects the persistence collaborator.
type StorageConfig struct {
	Driver      string `yaml:"driver"` // "sqlite", "redis" or "memory"
	Path        string `yaml:"path"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisPass   string `yaml:"redis_password"`
	RedisDB     int    `yaml:"redis_db"`
	RedisPrefix string `yaml:"redis_prefix"`
	TTLSeconds  int    `yaml:"ttl_seconds"` // 0 keeps redis keys forever
	DistLock    bool   `yaml:"distributed_lock"`
}

// GenerationConfig selects the text generator.
type GenerationConfig struct {
	Backend        string   `yaml:"backend"` // "grpc", "openai" or "none"
	Addr           string   `yaml:"addr"`
	APIKey         string   `yaml:"api_key"`
	BaseURL        string   `yaml:"base_url"`
	Model          string   `yaml:"model"`
	Temperature    *float32 `yaml:"temperature"` // nil means unset; 0 is a valid setting
	MaxTokens      int      `yaml:"max_tokens"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Timeout returns the per-call generation deadline.
func (g GenerationConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// EmbeddingsConfig enables embedding rerank in recall.
type EmbeddingsConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Model     string  `yaml:"model"`
	Threshold float32 `yaml:"threshold"`
}

// PressureConfig holds the Q-code bias table and the repeat penalty.
type PressureConfig struct {
	QBias         map[string]int `yaml:"qcode_bias"`
	RepeatPenalty *int           `yaml:"repeat_penalty"` // nil means unset
}

// StallConfig holds the stall streak thresholds.
type StallConfig struct {
	SoftStreak int `yaml:"soft_streak"`
	HardStreak int `yaml:"hard_streak"`
	StreakCap  int `yaml:"streak_cap"`
}

// RecallConfig bounds the recall gate.
type RecallConfig struct {
	MinLineRunes int `yaml:"min_line_runes"`
	MaxKeywords  int `yaml:"max_keywords"`
	ScanLimit    int `yaml:"scan_limit"`
}

// LaneConfig picks the lane strategy.
type LaneConfig struct {
	Strategy    string `yaml:"strategy"` // "conservative" or "strict"
	SentinelKey string `yaml:"sentinel_key"`
}

// OrchestratorConfig holds pipeline-level knobs.
type OrchestratorConfig struct {
	UpsertAttempts int `yaml:"upsert_attempts"`
	DigestSize     int `yaml:"digest_size"`
}

// MetricsConfig holds the Prometheus listener address.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// #endregion types

// #region load

// Load reads configuration from a YAML file and fills defaults. An empty
// path yields the defaults alone.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads .env (if present), the YAML file, then applies
// environment overrides and validates the result.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("POLICY_DB"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("POLICY_REDIS_ADDR"); v != "" {
		cfg.Storage.RedisAddr = v
		if os.Getenv("POLICY_DB") == "" {
			cfg.Storage.Driver = "redis"
		}
	}
	if v := os.Getenv("POLICY_GEN_BACKEND"); v != "" {
		cfg.Generation.Backend = v
	}
	if v := os.Getenv("POLICY_GEN_ADDR"); v != "" {
		cfg.Generation.Addr = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Generation.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Generation.BaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.Generation.Model = v
	}
	if v := os.Getenv("POLICY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("POLICY_LOG_JSON"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Logging.JSON = b
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// #endregion load

// #region defaults

func (c *Config) applyDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "policy.db"
	}
	if c.Storage.RedisAddr == "" {
		c.Storage.RedisAddr = "localhost:6379"
	}
	if c.Storage.RedisPrefix == "" {
		c.Storage.RedisPrefix = "policy:conv:"
	}

	if c.Generation.Backend == "" {
		c.Generation.Backend = "none"
	}
	if c.Generation.Addr == "" {
		c.Generation.Addr = "localhost:50051"
	}
	if c.Generation.Model == "" {
		c.Generation.Model = "gpt-4o-mini"
	}
	if c.Generation.Temperature == nil {
		c.Generation.Temperature = ptr[float32](0.7)
	}
	if c.Generation.MaxTokens == 0 {
		c.Generation.MaxTokens = 512
	}
	if c.Generation.TimeoutSeconds == 0 {
		c.Generation.TimeoutSeconds = 30
	}

	if c.Embeddings.Model == "" {
		c.Embeddings.Model = "text-embedding-3-small"
	}

	if c.Pressure.QBias == nil {
		c.Pressure.QBias = map[string]int{"Q2": 1, "Q5": 1, "Q1": -1, "Q4": -1}
	}
	if c.Pressure.RepeatPenalty == nil {
		c.Pressure.RepeatPenalty = ptr(1)
	}

	if c.Stall.SoftStreak == 0 {
		c.Stall.SoftStreak = 2
	}
	if c.Stall.HardStreak == 0 {
		c.Stall.HardStreak = 3
	}
	if c.Stall.StreakCap == 0 {
		c.Stall.StreakCap = 6
	}

	if c.Lane.Strategy == "" {
		c.Lane.Strategy = lane.Conservative{}.Name()
	}
	if c.Lane.SentinelKey == "" {
		c.Lane.SentinelKey = lane.DefaultRouterConfig().SentinelKey
	}

	if c.Orchestrator.UpsertAttempts == 0 {
		c.Orchestrator.UpsertAttempts = 2
	}

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9464"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func ptr[T any](v T) *T { return &v }

// #endregion defaults

// #region validate

// Validate rejects unknown drivers, backends, strategies and Q-codes.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "sqlite", "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q: want sqlite, redis or memory", c.Storage.Driver))
	}
	switch c.Generation.Backend {
	case "grpc", "openai", "none":
	default:
		errs = append(errs, fmt.Errorf("generation.backend %q: want grpc, openai or none", c.Generation.Backend))
	}
	if c.Generation.Backend == "openai" && c.Generation.APIKey == "" && c.Generation.BaseURL == "" {
		errs = append(errs, errors.New("generation.backend openai needs an api key or a base url"))
	}
	if _, err := lane.StrategyByName(c.Lane.Strategy); err != nil {
		errs = append(errs, fmt.Errorf("lane.strategy: %w", err))
	}
	for q := range c.Pressure.QBias {
		if !coordinate.QCode(q).Valid() {
			errs = append(errs, fmt.Errorf("pressure.qcode_bias: unknown q-code %q", q))
		}
	}
	if t := c.Generation.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("generation.temperature %.2f: want 0 to 2", *t))
	}
	if p := c.Pressure.RepeatPenalty; p != nil && *p < 0 {
		errs = append(errs, fmt.Errorf("pressure.repeat_penalty %d: must not be negative", *p))
	}
	if c.Stall.SoftStreak > c.Stall.HardStreak {
		errs = append(errs, fmt.Errorf("stall: soft_streak %d exceeds hard_streak %d", c.Stall.SoftStreak, c.Stall.HardStreak))
	}
	return errors.Join(errs...)
}

// #endregion validate

// #region engine

// Engine converts the tunables into the orchestrator configuration.
func (c *Config) Engine() orchestrator.Config {
	out := orchestrator.DefaultConfig()

	if c.Pressure.RepeatPenalty != nil {
		out.Pressure.RepeatPenalty = *c.Pressure.RepeatPenalty
	}
	out.Pressure.QBias = make(map[coordinate.QCode]int, len(c.Pressure.QBias))
	for q, v := range c.Pressure.QBias {
		out.Pressure.QBias[coordinate.QCode(q)] = v
	}

	out.Stall.SoftStreak = c.Stall.SoftStreak
	out.Stall.HardStreak = c.Stall.HardStreak
	out.Stall.StreakCap = c.Stall.StreakCap

	if c.Recall.MinLineRunes > 0 {
		out.Recall.MinLineRunes = c.Recall.MinLineRunes
	}
	if c.Recall.MaxKeywords > 0 {
		out.Recall.MaxKeywords = c.Recall.MaxKeywords
	}
	if c.Recall.ScanLimit > 0 {
		out.Recall.ScanLimit = c.Recall.ScanLimit
	}
	if c.Embeddings.Threshold > 0 {
		out.Recall.RerankThreshold = c.Embeddings.Threshold
	}

	out.Strategy = c.Lane.Strategy
	out.Router.SentinelKey = c.Lane.SentinelKey

	out.UpsertAttempts = c.Orchestrator.UpsertAttempts
	if c.Orchestrator.DigestSize > 0 {
		out.DigestSize = c.Orchestrator.DigestSize
	}
	if c.Generation.Temperature != nil {
		out.Temperature = *c.Generation.Temperature
	}
	out.MaxTokens = c.Generation.MaxTokens
	return out
}

// RedisTTL returns the key expiry for the redis store.
func (s StorageConfig) RedisTTL() time.Duration {
	return time.Duration(s.TTLSeconds) * time.Second
}

// #endregion engine
