package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/realty-ai/internal/model"
	"github.com/sells-group/realty-ai/internal/provider"
)

// LeadInput is one lead in a batch. LeadID is optional.
type LeadInput struct {
	LeadID string `json:"leadId,omitempty"`
	model.LeadScoringRequest
}

// LeadOutput is the outcome for one LeadInput. Exactly one of Result and
// Error is set.
type LeadOutput struct {
	LeadID string                   `json:"leadId,omitempty"`
	Result *model.LeadScoringResult `json:"result,omitempty"`
	Error  string                   `json:"error,omitempty"`
}

// ScoreLeads scores inputs for tenantID with at most concurrency calls in
// flight. Outputs are in input order. A failure scoring one lead is reported
// in its output and does not stop the batch; only a provider lookup failure
// or ctx cancellation fails the whole call. Successful scores are saved in
// one bulk write.
func (e *Engine) ScoreLeads(ctx context.Context, tenantID string, inputs []LeadInput, concurrency int) ([]LeadOutput, error) {
	cfg, err := e.ProviderFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	out := make([]LeadOutput, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, in := range inputs {
		g.Go(func() error {
			out[i].LeadID = in.LeadID
			res, err := e.scoreLead(gctx, tenantID, cfg, in.LeadScoringRequest)
			if err != nil {
				if errors.Is(err, context.Canceled) && ctx.Err() != nil {
					return ctx.Err()
				}
				out[i].Error = err.Error()
				zap.L().Warn("engine: batch lead failed",
					zap.Int("index", i),
					zap.String("lead_id", in.LeadID),
					zap.Error(err),
				)
				return nil
			}
			out[i].Result = &res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	recs := make([]model.LeadScoreRecord, 0, len(inputs))
	for i, o := range out {
		if o.Result == nil {
			continue
		}
		recs = append(recs, model.LeadScoreRecord{
			TenantID: tenantID,
			LeadID:   o.LeadID,
			Request:  inputs[i].LeadScoringRequest,
			Result:   *o.Result,
			Provider: cfg.Provider,
			Model:    provider.ModelFor(cfg),
		})
	}
	if err := e.persist(ctx, "lead scores", func(ctx context.Context) error {
		_, err := e.store.SaveLeadScores(ctx, recs)
		return err
	}); err != nil {
		zap.L().Error("engine: save batch lead scores", zap.Int("count", len(recs)), zap.Error(err))
	}

	zap.L().Info("engine: batch scored",
		zap.String("tenant_id", tenantID),
		zap.Int("leads", len(inputs)),
		zap.Int("scored", len(recs)),
	)
	return out, nil
}
