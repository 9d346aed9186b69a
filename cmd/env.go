package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/realty-ai/internal/cache"
	"github.com/sells-group/realty-ai/internal/cost"
	"github.com/sells-group/realty-ai/internal/engine"
	"github.com/sells-group/realty-ai/internal/leadscore"
	"github.com/sells-group/realty-ai/internal/model"
	"github.com/sells-group/realty-ai/internal/provider"
	"github.com/sells-group/realty-ai/internal/resilience"
	"github.com/sells-group/realty-ai/internal/store"
	"github.com/sells-group/realty-ai/internal/valuation"
)

// appEnv holds the store, cache and engine shared by the commands.
type appEnv struct {
	Store  store.Store
	Cache  *cache.Cache
	Engine *engine.Engine
}

// Close releases resources held by the environment.
func (ae *appEnv) Close() {
	if err := ae.Cache.Close(); err != nil {
		zap.L().Debug("close cache", zap.Error(err))
	}
	if ae.Store != nil {
		_ = ae.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	dsn := cfg.Store.DatabaseURL
	if dsn == "" && cfg.Store.Driver == "sqlite" {
		dsn = "realty.db"
	}
	st, err := store.Open(ctx, cfg.Store.Driver, dsn, cfg.Store.Pool)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

// initEngine opens and migrates the store, connects the optional cache and
// builds the Engine. Callers should defer env.Close().
func initEngine(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	c, err := cache.New(cfg.Cache.RedisURL, cfg.Cache.TTL())
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if c == nil {
		zap.L().Debug("REALTY_CACHE_REDIS_URL not set, result cache disabled")
	} else if err := c.Ping(ctx); err != nil {
		zap.L().Warn("redis unreachable, cache lookups will miss", zap.Error(err))
	}

	factory := provider.NewFactory(provider.WithTimeout(cfg.Provider.Timeout()))
	costs := cost.NewCalculator(cfg.Pricing)

	var fallback model.ProviderConfig
	if cfg.Provider.Configured() {
		fallback = cfg.Provider.Call()
		zap.L().Info("default provider configured", zap.Object("provider", fallback))
	}

	eng := engine.New(engine.Options{
		Valuations:  valuation.NewService(factory, costs),
		Leads:       leadscore.NewService(factory, costs),
		Store:       st,
		Cache:       c,
		FallbackTTL: cfg.Cache.FallbackTTL(),
		Retry:       cfg.Retry.Policy(),
		Circuit:     resilience.NewCircuitBreakerConfig(cfg.Circuit.FailureThreshold, cfg.Circuit.ResetTimeoutSecs),
		Default:     fallback,
	})

	return &appEnv{Store: st, Cache: c, Engine: eng}, nil
}
