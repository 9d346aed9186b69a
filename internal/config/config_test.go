package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/realty-ai/internal/cost"
	"github.com/sells-group/realty-ai/internal/model"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "realty.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 60, cfg.Server.RatePerMinute)
	assert.Equal(t, 60*time.Second, cfg.Provider.Timeout())
	assert.False(t, cfg.Provider.Configured())
	assert.Empty(t, cfg.Cache.RedisURL)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL())
	assert.Equal(t, 5*time.Minute, cfg.Cache.FallbackTTL())
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 5, cfg.Circuit.FailureThreshold)
	assert.Equal(t, 5, cfg.Batch.MaxConcurrentLeads)
	assert.InDelta(t, 0.1, cfg.Tracing.SampleRatio, 0.0001)
	assert.InDelta(t, 0.15, cfg.Pricing["gpt-4o-mini"].Input, 0.0001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
provider:
  kind: Anthropic
  api_key: sk-ant-yaml
  timeout_secs: 20
store:
  driver: postgres
  database_url: postgres://localhost/realty
  pool:
    max_conns: 4
log:
  level: debug
  format: console
server:
  port: 9090
pricing:
  my-finetune:
    input: 1
    output: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(4), cfg.Store.Pool.MaxConns)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 20*time.Second, cfg.Provider.Timeout())
	assert.True(t, cfg.Provider.Configured())
	assert.Equal(t, model.ProviderConfig{Provider: model.ProviderAnthropic, Credential: "sk-ant-yaml"}, cfg.Provider.Call())
	assert.InDelta(t, 2, cfg.Pricing["my-finetune"].Output, 0.0001)
	assert.Contains(t, cfg.Pricing, "gpt-4o-mini")
	// Defaults still apply for unset values
	assert.Equal(t, 5, cfg.Batch.MaxConcurrentLeads)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("REALTY_STORE_DRIVER", "sqlite")
	t.Setenv("REALTY_LOG_LEVEL", "warn")
	t.Setenv("REALTY_PROVIDER_API_KEY", "sk-env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "sk-env", cfg.Provider.APIKey)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("REALTY_SERVER_PORT=3000\n"), 0o600))
	t.Setenv("REALTY_SERVER_PORT", "")
	os.Unsetenv("REALTY_SERVER_PORT") //nolint:errcheck

	require.NoError(t, LoadDotEnv(path))
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	chdirTemp(t)
	t.Setenv("REALTY_PROVIDER_KIND", "cohere")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider.kind")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Store:   StoreConfig{Driver: "sqlite"},
			Server:  ServerConfig{Port: 8080},
			Tracing: TracingConfig{SampleRatio: 0.5},
		}
	}

	assert.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"ratio", func(c *Config) { c.Tracing.SampleRatio = 2 }, "sample_ratio"},
		{"negative input rate", func(c *Config) {
			c.Pricing = cost.Rates{"gpt-4o-mini": {Input: -0.15, Output: 0.60}}
		}, "pricing.gpt-4o-mini"},
		{"negative output rate", func(c *Config) {
			c.Pricing = cost.Rates{"local": {Output: -1}}
		}, "pricing.local"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
