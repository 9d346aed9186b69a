// Package engine runs valuations and lead scores on behalf of a tenant. It
// wraps the single-call services with tenant provider lookup, the result
// cache, in-flight deduplication, retries, circuit breaking and persistence.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/realty-ai/internal/cache"
	"github.com/sells-group/realty-ai/internal/leadscore"
	"github.com/sells-group/realty-ai/internal/metrics"
	"github.com/sells-group/realty-ai/internal/model"
	"github.com/sells-group/realty-ai/internal/provider"
	"github.com/sells-group/realty-ai/internal/resilience"
	"github.com/sells-group/realty-ai/internal/store"
	"github.com/sells-group/realty-ai/internal/validate"
	"github.com/sells-group/realty-ai/internal/valuation"
)

const (
	kindValuation = "valuation"
	kindLeadScore = "lead_score"
)

// saveRetry rides out short write-lock contention in the store.
var saveRetry = resilience.RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: 50 * time.Millisecond,
	MaxBackoff:     500 * time.Millisecond,
	JitterFraction: 0.25,
}

// Options configures New. Store is required; everything else has a usable
// zero value.
type Options struct {
	Valuations *valuation.Service
	Leads      *leadscore.Service
	Store      store.Store
	Cache      *cache.Cache
	Retry      resilience.RetryConfig
	Circuit    resilience.CircuitBreakerConfig

	// FallbackTTL is how long fallback results stay cached. Zero or less
	// leaves them uncached so the next identical request asks again.
	FallbackTTL time.Duration

	// Default is used for tenants without saved settings. A zero value
	// means such tenants get a ConfigError.
	Default model.ProviderConfig
}

// Engine is safe for concurrent use.
type Engine struct {
	valuations  *valuation.Service
	leads       *leadscore.Service
	store       store.Store
	cache       *cache.Cache
	fallbackTTL time.Duration
	retry       resilience.RetryConfig
	breakers    *resilience.Breakers
	fallback    model.ProviderConfig
	group       singleflight.Group
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.Valuations == nil {
		opts.Valuations = valuation.NewService(provider.NewFactory(), nil)
	}
	if opts.Leads == nil {
		opts.Leads = leadscore.NewService(provider.NewFactory(), nil)
	}
	circuit := opts.Circuit
	if circuit.FailureThreshold == 0 {
		circuit = resilience.DefaultCircuitBreakerConfig()
	}
	circuit.OnStateChange = observeCircuit(circuit.OnStateChange)

	return &Engine{
		valuations:  opts.Valuations,
		leads:       opts.Leads,
		store:       opts.Store,
		cache:       opts.Cache,
		fallbackTTL: opts.FallbackTTL,
		retry:       opts.Retry,
		breakers:    resilience.NewBreakers(circuit),
		fallback:    opts.Default,
	}
}

// ProviderFor resolves the provider configuration for tenantID: its saved
// settings, else the process default.
func (e *Engine) ProviderFor(ctx context.Context, tenantID string) (model.ProviderConfig, error) {
	ts, err := e.store.GetTenantSettings(ctx, tenantID)
	if err != nil {
		return model.ProviderConfig{}, eris.Wrap(err, "engine: load tenant settings")
	}
	if ts != nil {
		return ts.ProviderConfig(), nil
	}
	if e.fallback.Provider == "" {
		return model.ProviderConfig{}, &model.ConfigError{Field: "provider", Reason: "no provider configured for tenant " + tenantID}
	}
	return e.fallback, nil
}

// Settings returns the saved settings for tenantID, or nil.
func (e *Engine) Settings(ctx context.Context, tenantID string) (*model.TenantSettings, error) {
	return e.store.GetTenantSettings(ctx, tenantID)
}

// SaveSettings validates and stores settings. Invalid settings yield a
// *model.ConfigError and are not stored.
func (e *Engine) SaveSettings(ctx context.Context, settings *model.TenantSettings) error {
	kind, _ := model.ParseProviderKind(string(settings.Provider))
	settings.Provider = kind
	if err := settings.ProviderConfig().Validate(); err != nil {
		return err
	}
	if err := e.persist(ctx, "tenant settings", func(ctx context.Context) error {
		return e.store.UpsertTenantSettings(ctx, settings)
	}); err != nil {
		return err
	}
	zap.L().Info("engine: tenant provider updated",
		zap.String("tenant_id", settings.TenantID),
		zap.Object("provider", settings.ProviderConfig()),
	)
	return nil
}

// Valuate values req for tenantID and records the outcome.
func (e *Engine) Valuate(ctx context.Context, tenantID string, req model.ValuationRequest) (model.ValuationResult, error) {
	if err := req.Validate(); err != nil {
		return model.ValuationResult{}, err
	}
	cfg, err := e.ProviderFor(ctx, tenantID)
	if err != nil {
		return model.ValuationResult{}, err
	}

	res, err := run(ctx, e, kindValuation, tenantID, cfg, req, validate.IsFallbackValuation, func(ctx context.Context) (model.ValuationResult, error) {
		return e.valuations.Valuate(ctx, req, cfg)
	})
	if err != nil {
		return model.ValuationResult{}, err
	}

	rec := &model.ValuationRecord{
		TenantID: tenantID,
		Request:  req,
		Result:   res,
		Provider: cfg.Provider,
		Model:    provider.ModelFor(cfg),
	}
	if err := e.persist(ctx, kindValuation, func(ctx context.Context) error {
		return e.store.SaveValuation(ctx, rec)
	}); err != nil {
		zap.L().Error("engine: save valuation", zap.String("tenant_id", tenantID), zap.Error(err))
	}
	return res, nil
}

// ScoreLead scores req for tenantID and records the outcome under leadID,
// which may be empty.
func (e *Engine) ScoreLead(ctx context.Context, tenantID, leadID string, req model.LeadScoringRequest) (model.LeadScoringResult, error) {
	cfg, err := e.ProviderFor(ctx, tenantID)
	if err != nil {
		return model.LeadScoringResult{}, err
	}
	res, err := e.scoreLead(ctx, tenantID, cfg, req)
	if err != nil {
		return model.LeadScoringResult{}, err
	}

	rec := &model.LeadScoreRecord{
		TenantID: tenantID,
		LeadID:   leadID,
		Request:  req,
		Result:   res,
		Provider: cfg.Provider,
		Model:    provider.ModelFor(cfg),
	}
	if err := e.persist(ctx, kindLeadScore, func(ctx context.Context) error {
		return e.store.SaveLeadScore(ctx, rec)
	}); err != nil {
		zap.L().Error("engine: save lead score", zap.String("tenant_id", tenantID), zap.Error(err))
	}
	return res, nil
}

func (e *Engine) scoreLead(ctx context.Context, tenantID string, cfg model.ProviderConfig, req model.LeadScoringRequest) (model.LeadScoringResult, error) {
	return run(ctx, e, kindLeadScore, tenantID, cfg, req, validate.IsFallbackLeadScore, func(ctx context.Context) (model.LeadScoringResult, error) {
		return e.leads.Score(ctx, req, cfg)
	})
}

// ValuationHistory lists recent valuations for tenantID, newest first.
func (e *Engine) ValuationHistory(ctx context.Context, tenantID string, limit int) ([]model.ValuationRecord, error) {
	return e.store.ListValuations(ctx, tenantID, limit)
}

// LeadHistory lists recent scores of leadID for tenantID, newest first.
func (e *Engine) LeadHistory(ctx context.Context, tenantID, leadID string, limit int) ([]model.LeadScoreRecord, error) {
	return e.store.ListLeadScores(ctx, tenantID, leadID, limit)
}

// CircuitStates reports every breaker the engine has opened so far.
func (e *Engine) CircuitStates() map[string]resilience.CircuitState {
	return e.breakers.States()
}

// run answers from the cache when possible. Otherwise identical concurrent
// requests share one upstream call, made through the provider's breaker with
// retries on transient failures. The shared call is detached from any single
// caller's cancellation; each caller stops waiting when its own ctx is done.
func run[T any](ctx context.Context, e *Engine, kind, tenantID string, cfg model.ProviderConfig, req any, isFallback func(T) bool, call func(context.Context) (T, error)) (T, error) {
	var zero T
	key, err := cache.Key(kind, tenantID, cfg, req)
	if err != nil {
		return zero, err
	}

	var cached T
	if e.cache.Get(ctx, kind, key, &cached) {
		return cached, nil
	}

	ch := e.group.DoChan(key, func() (any, error) {
		// Each attempt is bounded by the provider deadline and the retry
		// policy bounds the attempts.
		sharedCtx := context.WithoutCancel(ctx)
		retry := e.retry
		retry.OnRetry = resilience.RetryLogger(kind,
			zap.String("tenant_id", tenantID),
			zap.String("provider", string(cfg.Provider)),
		)
		breaker := e.breakers.Get(breakerName(cfg))
		res, err := resilience.ExecuteVal(sharedCtx, breaker, func(ctx context.Context) (T, error) {
			return resilience.DoVal(ctx, retry, call)
		})
		if err != nil {
			return nil, err
		}
		e.remember(sharedCtx, kind, key, res, isFallback(res))
		return res, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		if r.Shared {
			zap.L().Debug("engine: shared in-flight result", zap.String("kind", kind), zap.String("tenant_id", tenantID))
		}
		return r.Val.(T), nil
	}
}

// remember caches v under key. Fallbacks are kept for fallbackTTL only, or not
// at all when it is unset.
func (e *Engine) remember(ctx context.Context, kind, key string, v any, fallback bool) {
	var ttl time.Duration
	if fallback {
		if e.fallbackTTL <= 0 {
			return
		}
		ttl = e.fallbackTTL
	}
	if err := e.cache.SetTTL(ctx, key, v, ttl); err != nil {
		zap.L().Warn("engine: cache set", zap.String("kind", kind), zap.Error(err))
	}
}

// persist runs a store write, retrying transient conflicts.
func (e *Engine) persist(ctx context.Context, what string, fn func(context.Context) error) error {
	retry := saveRetry
	retry.OnRetry = resilience.RetryLogger("save " + what)
	return resilience.Do(ctx, retry, fn)
}

// breakerName separates custom endpoints so one unhealthy self-hosted server
// does not open the circuit for another.
func breakerName(cfg model.ProviderConfig) string {
	if cfg.Provider == model.ProviderCustom {
		return string(cfg.Provider) + ":" + cfg.Endpoint
	}
	return string(cfg.Provider)
}

func observeCircuit(next func(name string, from, to resilience.CircuitState)) func(name string, from, to resilience.CircuitState) {
	return func(name string, from, to resilience.CircuitState) {
		kind, _, _ := strings.Cut(name, ":")
		metrics.CircuitState.WithLabelValues(metrics.ProviderLabel(model.ProviderKind(kind))).Set(float64(to))
		zap.L().Warn("engine: circuit state changed",
			zap.String("breaker", name),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
		if next != nil {
			next(name, from, to)
		}
	}
}
