package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/coordinate"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: redis
  redis_addr: "cache:6379"
  ttl_seconds: 3600

generation:
  backend: grpc
  addr: "codec:50051"
  temperature: 0.3

pressure:
  qcode_bias:
    Q2: 2
    Q1: -2

stall:
  soft_streak: 3
  hard_streak: 4

lane:
  strategy: strict
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Storage.Driver)
	assert.Equal(t, "cache:6379", cfg.Storage.RedisAddr)
	assert.Equal(t, "1h0m0s", cfg.Storage.RedisTTL().String())
	assert.Equal(t, "grpc", cfg.Generation.Backend)
	require.NotNil(t, cfg.Generation.Temperature)
	assert.InDelta(t, 0.3, *cfg.Generation.Temperature, 1e-6)
	assert.Equal(t, 512, cfg.Generation.MaxTokens, "default fills unset field")
	assert.Equal(t, 2, cfg.Pressure.QBias["Q2"])
	assert.Equal(t, "strict", cfg.Lane.Strategy)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EmptyPathGivesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "none", cfg.Generation.Backend)
	assert.Equal(t, "conservative", cfg.Lane.Strategy)
	assert.Equal(t, 2, cfg.Stall.SoftStreak)
	assert.Equal(t, 3, cfg.Stall.HardStreak)
	assert.Equal(t, 1, cfg.Pressure.QBias["Q5"])
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "storage: [unterminated"))
	assert.Error(t, err)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	path := writeConfig(t, "generation:\n  backend: grpc\n")
	t.Setenv("POLICY_DB", "/tmp/override.db")
	t.Setenv("POLICY_GEN_BACKEND", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "local-model")
	t.Setenv("POLICY_LOG_LEVEL", "debug")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override.db", cfg.Storage.Path)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "openai", cfg.Generation.Backend)
	assert.Equal(t, "sk-test", cfg.Generation.APIKey)
	assert.Equal(t, "local-model", cfg.Generation.Model)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnv_RedisAddrSwitchesDriver(t *testing.T) {
	t.Setenv("POLICY_REDIS_ADDR", "redis:6380")
	cfg, err := LoadFromEnv("")
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Storage.Driver)
	assert.Equal(t, "redis:6380", cfg.Storage.RedisAddr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"bad driver", func(c *Config) { c.Storage.Driver = "postgres" }, false},
		{"bad backend", func(c *Config) { c.Generation.Backend = "carrier-pigeon" }, false},
		{"openai without credentials", func(c *Config) { c.Generation.Backend = "openai" }, false},
		{"openai with base url", func(c *Config) {
			c.Generation.Backend = "openai"
			c.Generation.BaseURL = "http://localhost:8080/v1"
		}, true},
		{"bad strategy", func(c *Config) { c.Lane.Strategy = "reckless" }, false},
		{"bad qcode", func(c *Config) { c.Pressure.QBias["Q9"] = 1 }, false},
		{"soft above hard", func(c *Config) { c.Stall.SoftStreak = 5 }, false},
		{"negative repeat penalty", func(c *Config) { c.Pressure.RepeatPenalty = ptr(-1) }, false},
		{"zero repeat penalty", func(c *Config) { c.Pressure.RepeatPenalty = ptr(0) }, true},
		{"temperature above range", func(c *Config) { c.Generation.Temperature = ptr[float32](3) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			if tt.ok {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestLoad_ExplicitZeroesAreKept(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
generation:
  temperature: 0
pressure:
  repeat_penalty: 0
`))
	require.NoError(t, err)
	require.NotNil(t, cfg.Generation.Temperature)
	assert.Zero(t, *cfg.Generation.Temperature)
	require.NotNil(t, cfg.Pressure.RepeatPenalty)
	assert.Zero(t, *cfg.Pressure.RepeatPenalty)

	ec := cfg.Engine()
	assert.Zero(t, ec.Temperature)
	assert.Zero(t, ec.Pressure.RepeatPenalty)

	defaults, err := Load("")
	require.NoError(t, err)
	assert.InDelta(t, 0.7, *defaults.Generation.Temperature, 1e-6)
	assert.Equal(t, 1, *defaults.Pressure.RepeatPenalty)
}

func TestEngine(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
pressure:
  qcode_bias:
    Q3: 1
  repeat_penalty: 2
stall:
  hard_streak: 5
recall:
  max_keywords: 2
orchestrator:
  upsert_attempts: 3
generation:
  max_tokens: 128
`))
	require.NoError(t, err)

	ec := cfg.Engine()
	assert.Equal(t, map[coordinate.QCode]int{coordinate.Q3: 1}, ec.Pressure.QBias)
	assert.Equal(t, 2, ec.Pressure.RepeatPenalty)
	assert.Equal(t, 5, ec.Stall.HardStreak)
	assert.Equal(t, 2, ec.Recall.MaxKeywords)
	assert.Equal(t, 3, ec.UpsertAttempts)
	assert.Equal(t, 128, ec.MaxTokens)
	assert.Equal(t, "conservative", ec.Strategy)
	assert.Equal(t, "SUN", ec.Router.SentinelKey)
}
