// Package valuation estimates property values through a configured model
// provider. The service performs exactly one upstream call per request and
// never retries; retry, caching and rate limiting belong to the caller.
package valuation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sells-group/realty-ai/internal/cost"
	"github.com/sells-group/realty-ai/internal/metrics"
	"github.com/sells-group/realty-ai/internal/model"
	"github.com/sells-group/realty-ai/internal/observability"
	"github.com/sells-group/realty-ai/internal/prompt"
	"github.com/sells-group/realty-ai/internal/provider"
	"github.com/sells-group/realty-ai/internal/validate"
)

const kind = "valuation"

const tracerName = "github.com/sells-group/realty-ai/internal/valuation"

// Service runs valuations.
type Service struct {
	providers provider.Factory
	costs     *cost.Calculator
}

// NewService creates a Service. A nil calculator uses cost.DefaultRates.
func NewService(providers provider.Factory, costs *cost.Calculator) *Service {
	if costs == nil {
		costs = cost.NewCalculator(cost.DefaultRates())
	}
	return &Service{providers: providers, costs: costs}
}

// Valuate estimates the value of the property described by req using the
// provider in cfg.
//
// Errors are one of *model.RequestError (req unusable), *model.ConfigError
// (cfg unusable) or *provider.UpstreamError (the upstream call failed), each
// returned as produced. Output that cannot be decoded is replaced by
// validate.FallbackValuation and is not an error.
func (s *Service) Valuate(ctx context.Context, req model.ValuationRequest, cfg model.ProviderConfig) (model.ValuationResult, error) {
	label := metrics.ProviderLabel(cfg.Provider)
	ctx, span := otel.Tracer(tracerName).Start(ctx, "valuation.Valuate", trace.WithAttributes(
		attribute.String("provider", label),
		attribute.String("market", req.Market),
	))
	defer span.End()

	if err := req.Validate(); err != nil {
		metrics.RecordCompletion(kind, label, metrics.OutcomeInvalid)
		observability.Fail(span, err)
		return model.ValuationResult{}, err
	}

	p, err := s.providers(cfg)
	if err != nil {
		metrics.RecordCompletion(kind, label, metrics.OutcomeConfigError)
		observability.Fail(span, err)
		zap.L().Warn("valuation: provider config rejected",
			zap.Object("provider", cfg),
			zap.Error(err),
		)
		return model.ValuationResult{}, err
	}

	system, user := prompt.Valuation(req)

	start := time.Now()
	c, err := p.Complete(ctx, system, user)
	metrics.ObserveUpstream(kind, label, time.Since(start))
	if err != nil {
		metrics.RecordCompletion(kind, label, metrics.OutcomeUpstreamError)
		observability.Fail(span, err)
		zap.L().Error("valuation: upstream call failed",
			zap.Object("provider", cfg),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return model.ValuationResult{}, err
	}

	usd := s.costs.Log(kind, label, c.Model, c.Usage.InputTokens, c.Usage.OutputTokens)
	metrics.AddCost(label, provider.ModelFor(cfg), usd)

	res, ok := validate.Valuation(c.Text)
	span.SetAttributes(
		attribute.String("model", c.Model),
		attribute.Bool("fallback", !ok),
	)
	if !ok {
		metrics.RecordCompletion(kind, label, metrics.OutcomeFallback)
		zap.L().Warn("valuation: served fallback estimate",
			zap.String("provider", label),
			zap.String("model", c.Model),
			zap.String("location", req.Location),
		)
		return res, nil
	}

	metrics.RecordCompletion(kind, label, metrics.OutcomeOK)
	return res, nil
}
