// Package leadscore rates inbound leads through a configured model provider.
package leadscore

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

const (
	kind       = "lead_score"
	tracerName = "github.com/sells-group/realty-ai/internal/leadscore"
)

// Service scores leads. It is safe for concurrent use.
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

// Score rates req with the provider in cfg. Any request, including the empty
// one, is accepted. Errors are *model.ConfigError or *provider.UpstreamError,
// returned as produced; undecodable output yields validate.FallbackLeadScore.
func (s *Service) Score(ctx context.Context, req model.LeadScoringRequest, cfg model.ProviderConfig) (model.LeadScoringResult, error) {
	label := metrics.ProviderLabel(cfg.Provider)
	ctx, span := otel.Tracer(tracerName).Start(ctx, "leadscore.Score", trace.WithAttributes(
		attribute.String("provider", label),
		attribute.Bool("empty_request", req.IsEmpty()),
	))
	defer span.End()

	p, err := s.providers(cfg)
	if err != nil {
		metrics.RecordCompletion(kind, label, metrics.OutcomeConfigError)
		observability.Fail(span, err)
		zap.L().Warn("leadscore: provider config rejected",
			zap.Object("provider", cfg),
			zap.Error(err),
		)
		return model.LeadScoringResult{}, err
	}

	system, user := prompt.LeadScore(req)

	start := time.Now()
	c, err := p.Complete(ctx, system, user)
	metrics.ObserveUpstream(kind, label, time.Since(start))
	if err != nil {
		metrics.RecordCompletion(kind, label, metrics.OutcomeUpstreamError)
		observability.Fail(span, err)
		zap.L().Error("leadscore: upstream call failed",
			zap.Object("provider", cfg),
			zap.Error(err),
		)
		return model.LeadScoringResult{}, err
	}

	usd := s.costs.Log(kind, label, c.Model, c.Usage.InputTokens, c.Usage.OutputTokens)
	metrics.AddCost(label, provider.ModelFor(cfg), usd)

	res, ok := validate.LeadScore(c.Text)
	span.SetAttributes(
		attribute.String("model", c.Model),
		attribute.Bool("fallback", !ok),
		attribute.String("priority", string(res.Priority)),
	)
	outcome := metrics.OutcomeOK
	if !ok {
		outcome = metrics.OutcomeFallback
		zap.L().Warn("leadscore: served fallback score",
			zap.String("provider", label),
			zap.String("model", c.Model),
		)
	}
	metrics.RecordCompletion(kind, label, outcome)
	return res, nil
}
