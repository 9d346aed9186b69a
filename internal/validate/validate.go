// Package validate turns raw model output into typed results. Decoding
// failures never reach callers of Valuation or LeadScore: they receive the
// fixed fallback result instead.
package validate

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/realty-ai/internal/model"
	"github.com/sells-group/realty-ai/internal/schema"
)

// DecodeValuation parses raw model output into a ValuationResult, returning
// an error if the text is not JSON or does not match the valuation schema.
func DecodeValuation(raw string) (model.ValuationResult, error) {
	var out model.ValuationResult
	data, err := checked(raw, schema.Valuation, nil)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, eris.Wrap(err, "validate: decode valuation")
	}
	if out.Comparables == nil {
		out.Comparables = []model.Comparable{}
	}
	if out.MarketInsights == nil {
		out.MarketInsights = []string{}
	}
	return out, nil
}

// DecodeLeadScore parses raw model output into a LeadScoringResult. Priority
// is matched case-insensitively.
func DecodeLeadScore(raw string) (model.LeadScoringResult, error) {
	var out model.LeadScoringResult
	data, err := checked(raw, schema.LeadScore, normalizePriority)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, eris.Wrap(err, "validate: decode lead score")
	}
	if out.Factors == nil {
		out.Factors = map[string]float64{}
	}
	if out.Recommendations == nil {
		out.Recommendations = []string{}
	}
	return out, nil
}

// Valuation is the total form of DecodeValuation. ok is false when the
// fallback was substituted.
func Valuation(raw string) (res model.ValuationResult, ok bool) {
	res, err := DecodeValuation(raw)
	if err != nil {
		zap.L().Warn("validate: valuation output rejected, using fallback",
			zap.Error(err),
			zap.Int("raw_len", len(raw)),
		)
		return FallbackValuation(), false
	}
	return res, true
}

// LeadScore is the total form of DecodeLeadScore. ok is false when the
// fallback was substituted.
func LeadScore(raw string) (res model.LeadScoringResult, ok bool) {
	res, err := DecodeLeadScore(raw)
	if err != nil {
		zap.L().Warn("validate: lead score output rejected, using fallback",
			zap.Error(err),
			zap.Int("raw_len", len(raw)),
		)
		return FallbackLeadScore(), false
	}
	return res, true
}

// checked cleans raw, validates it against the named schema and returns the
// (possibly normalized) JSON bytes ready for typed decoding.
func checked(raw string, name schema.Name, normalize func(map[string]any)) ([]byte, error) {
	cleaned := cleanJSON(raw)
	if cleaned == "" {
		return nil, eris.New("validate: empty output")
	}

	var doc any
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, eris.Wrap(err, "validate: parse json")
	}
	if obj, ok := doc.(map[string]any); ok && normalize != nil {
		normalize(obj)
	}
	if err := schema.Validate(name, doc); err != nil {
		return nil, err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, eris.Wrap(err, "validate: re-encode")
	}
	return data, nil
}

func normalizePriority(obj map[string]any) {
	if p, ok := obj["priority"].(string); ok {
		obj["priority"] = strings.ToLower(strings.TrimSpace(p))
	}
}

// cleanJSON strips markdown code fences and any prose around the outermost
// JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
