package config

import (
	"errors"
	"io/fs"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/realty-ai/internal/cost"
	"github.com/sells-group/realty-ai/internal/db"
	"github.com/sells-group/realty-ai/internal/model"
	"github.com/sells-group/realty-ai/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider" mapstructure:"provider"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Retry    RetryConfig    `yaml:"retry" mapstructure:"retry"`
	Circuit  CircuitConfig  `yaml:"circuit" mapstructure:"circuit"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Pricing  cost.Rates     `yaml:"pricing" mapstructure:"pricing"`
	Tracing  TracingConfig  `yaml:"tracing" mapstructure:"tracing"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ProviderConfig is the process-wide provider used when a tenant has no
// settings of its own.
type ProviderConfig struct {
	Kind        string `yaml:"kind" mapstructure:"kind"`
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	Model       string `yaml:"model" mapstructure:"model"`
	Endpoint    string `yaml:"endpoint" mapstructure:"endpoint"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Call converts the section into a call configuration.
func (p ProviderConfig) Call() model.ProviderConfig {
	kind, _ := model.ParseProviderKind(p.Kind)
	return model.ProviderConfig{
		Provider:   kind,
		Credential: p.APIKey,
		Model:      p.Model,
		Endpoint:   p.Endpoint,
	}
}

// Configured reports whether a default provider was set at all.
func (p ProviderConfig) Configured() bool {
	return p.Kind != "" && p.APIKey != ""
}

// Timeout returns the upstream call timeout.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSecs) * time.Second
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string        `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string        `yaml:"database_url" mapstructure:"database_url"`
	Pool        db.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// CacheConfig configures the Redis result cache. An empty URL disables it.
type CacheConfig struct {
	RedisURL        string `yaml:"redis_url" mapstructure:"redis_url"`
	TTLHours        int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
	FallbackTTLMins int    `yaml:"fallback_ttl_mins" mapstructure:"fallback_ttl_mins"`
}

// TTL returns the entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// FallbackTTL returns the lifetime of cached fallback results. Zero means
// fallbacks are not cached.
func (c CacheConfig) FallbackTTL() time.Duration {
	return time.Duration(c.FallbackTTLMins) * time.Minute
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RatePerMinute  int      `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
	RateBurst      int      `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// RetryConfig configures retries of transient upstream failures.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// Policy converts the section into a resilience.RetryConfig.
func (r RetryConfig) Policy() resilience.RetryConfig {
	return resilience.NewRetryConfig(r.MaxAttempts, r.InitialBackoffMs, r.MaxBackoffMs)
}

// CircuitConfig configures the per-provider circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// BatchConfig configures batch lead scoring.
type BatchConfig struct {
	MaxConcurrentLeads int `yaml:"max_concurrent_leads" mapstructure:"max_concurrent_leads"`
}

// TracingConfig configures span sampling.
type TracingConfig struct {
	SampleRatio float64 `yaml:"sample_ratio" mapstructure:"sample_ratio"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// LoadDotEnv loads variables from path into the process environment without
// overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return eris.Wrapf(err, "config: load %s", path)
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("REALTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("provider.kind", "")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.model", "")
	v.SetDefault("provider.endpoint", "")
	v.SetDefault("provider.timeout_secs", 60)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "realty.db")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl_hours", 24)
	v.SetDefault("cache.fallback_ttl_mins", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_per_minute", 60)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)
	v.SetDefault("batch.max_concurrent_leads", 5)
	v.SetDefault("tracing.sample_ratio", 0.1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.Pricing = withDefaultRates(cfg.Pricing)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// withDefaultRates fills models missing from rates with list pricing.
func withDefaultRates(rates cost.Rates) cost.Rates {
	out := cost.DefaultRates()
	for m, r := range rates {
		out[m] = r
	}
	return out
}

// Validate checks values that would otherwise fail later at first use.
func (c *Config) Validate() error {
	if c.Provider.Kind != "" {
		if _, ok := model.ParseProviderKind(c.Provider.Kind); !ok {
			return eris.Errorf("config: provider.kind %q is not one of %v", c.Provider.Kind, model.ProviderKinds)
		}
	}
	switch strings.ToLower(c.Store.Driver) {
	case "sqlite", "postgres", "postgresql":
	default:
		return eris.Errorf("config: store.driver %q is not sqlite or postgres", c.Store.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return eris.Errorf("config: tracing.sample_ratio %v not in [0,1]", c.Tracing.SampleRatio)
	}
	for _, name := range slices.Sorted(maps.Keys(c.Pricing)) {
		if r := c.Pricing[name]; r.Input < 0 || r.Output < 0 {
			return eris.Errorf("config: pricing.%s rates must not be negative", name)
		}
	}
	return nil
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
