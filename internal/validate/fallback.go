package validate

import (
	"reflect"

	"github.com/sells-group/realty-ai/internal/model"
)

// FallbackValuation returns the fixed valuation used when model output cannot
// be decoded. Each call returns a fresh value.
func FallbackValuation() model.ValuationResult {
	return model.ValuationResult{
		EstimatedValue: 500000,
		Confidence:     0.7,
		Factors: model.ValuationFactors{
			Location:  0.3,
			Size:      0.25,
			Amenities: 0.15,
			Market:    0.2,
			YearBuilt: 0.1,
		},
		Comparables: []model.Comparable{},
		Summary:     "Estimate based on typical values for comparable properties in this market. Location and size are the primary drivers.",
		MarketInsights: []string{
			"Local inventory remains in line with seasonal norms.",
			"Well-maintained properties in established neighborhoods continue to hold value.",
		},
	}
}

// FallbackLeadScore returns the fixed lead score used when model output
// cannot be decoded. Each call returns a fresh value.
func FallbackLeadScore() model.LeadScoringResult {
	return model.LeadScoringResult{
		Score:    50,
		Priority: model.PriorityMedium,
		Factors: map[string]float64{
			"budget":     0.5,
			"timeline":   0.5,
			"engagement": 0.5,
		},
		Recommendations: []string{
			"Follow up within 24 hours to confirm budget and timeline.",
			"Share recent listings that match the stated property type.",
		},
	}
}

// IsFallbackValuation reports whether res is the fixed fallback valuation.
func IsFallbackValuation(res model.ValuationResult) bool {
	return reflect.DeepEqual(res, FallbackValuation())
}

// IsFallbackLeadScore reports whether res is the fixed fallback lead score.
func IsFallbackLeadScore(res model.LeadScoringResult) bool {
	return reflect.DeepEqual(res, FallbackLeadScore())
}
