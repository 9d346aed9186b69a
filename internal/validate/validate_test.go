package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/realty-ai/internal/model"
)

const miamiJSON = `{"estimatedValue":820000,"confidence":0.89,"factors":{"location":0.4,"size":0.3,"amenities":0.1,"market":0.15,"yearBuilt":0.05},"comparables":[],"summary":"Strong beachfront demand.","marketInsights":["Inventory is tight."]}`

func miamiResult() model.ValuationResult {
	return model.ValuationResult{
		EstimatedValue: 820000,
		Confidence:     0.89,
		Factors: model.ValuationFactors{
			Location:  0.4,
			Size:      0.3,
			Amenities: 0.1,
			Market:    0.15,
			YearBuilt: 0.05,
		},
		Comparables:    []model.Comparable{},
		Summary:        "Strong beachfront demand.",
		MarketInsights: []string{"Inventory is tight."},
	}
}

func TestValuation_RoundTrip(t *testing.T) {
	t.Parallel()

	got, ok := Valuation(miamiJSON)
	assert.True(t, ok)
	assert.Equal(t, miamiResult(), got)
}

func TestValuation_Comparables(t *testing.T) {
	t.Parallel()

	raw := `{"estimatedValue":410000,"confidence":0.6,"comparables":[{"address":"12 Elm St","price":405000,"similarity":0.82,"distanceKm":0.4}]}`
	got, ok := Valuation(raw)
	require.True(t, ok)
	require.Len(t, got.Comparables, 1)
	assert.Equal(t, model.Comparable{Address: "12 Elm St", Price: 405000, Similarity: 0.82, DistanceKm: 0.4}, got.Comparables[0])
	assert.Equal(t, []string{}, got.MarketInsights)
}

func TestValuation_CleansWrappedOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{"json fence", "```json\n" + miamiJSON + "\n```"},
		{"bare fence", "```\n" + miamiJSON + "\n```"},
		{"leading prose", "Here is the valuation:\n" + miamiJSON},
		{"trailing prose", miamiJSON + "\nLet me know if you need more."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Valuation(tt.raw)
			assert.True(t, ok)
			assert.Equal(t, miamiResult(), got)
		})
	}
}

func TestValuation_Fallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{"refusal", "I cannot provide a valuation."},
		{"empty", ""},
		{"whitespace", "   \n "},
		{"truncated", `{"estimatedValue":820000,"confidence":`},
		{"wrong type", `{"estimatedValue":"lots","confidence":0.9}`},
		{"missing confidence", `{"estimatedValue":820000}`},
		{"array", `[1,2,3]`},
		{"null", "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Valuation(tt.raw)
			assert.False(t, ok)
			assert.Equal(t, FallbackValuation(), got)
			assert.Equal(t, 500000.0, got.EstimatedValue)
			assert.Equal(t, 0.7, got.Confidence)
		})
	}
}

func TestIsFallback(t *testing.T) {
	t.Parallel()

	assert.True(t, IsFallbackValuation(FallbackValuation()))
	decoded, ok := Valuation(`{"estimatedValue":820000,"confidence":0.89}`)
	require.True(t, ok)
	assert.False(t, IsFallbackValuation(decoded))

	assert.True(t, IsFallbackLeadScore(FallbackLeadScore()))
	scored, ok := LeadScore(`{"score":50,"priority":"medium"}`)
	require.True(t, ok)
	assert.False(t, IsFallbackLeadScore(scored))
}

func TestDecodeValuation_Error(t *testing.T) {
	t.Parallel()

	_, err := DecodeValuation("I cannot provide a valuation.")
	assert.Error(t, err)
}

func TestFallbackValuation_Fresh(t *testing.T) {
	t.Parallel()

	a := FallbackValuation()
	a.MarketInsights[0] = "mutated"
	a.Comparables = append(a.Comparables, model.Comparable{Address: "x"})

	b := FallbackValuation()
	assert.NotEqual(t, "mutated", b.MarketInsights[0])
	assert.Empty(t, b.Comparables)
	assert.NotEmpty(t, b.Summary)
}

func TestLeadScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raw    string
		wantOK bool
		want   model.LeadScoringResult
	}{
		{
			name:   "valid",
			raw:    `{"score":82,"priority":"high","factors":{"budget":0.9,"timeline":0.7},"recommendations":["Call today"]}`,
			wantOK: true,
			want: model.LeadScoringResult{
				Score:           82,
				Priority:        model.PriorityHigh,
				Factors:         map[string]float64{"budget": 0.9, "timeline": 0.7},
				Recommendations: []string{"Call today"},
			},
		},
		{
			name:   "priority case folded",
			raw:    "```json\n{\"score\":20,\"priority\":\"Low\"}\n```",
			wantOK: true,
			want: model.LeadScoringResult{
				Score:           20,
				Priority:        model.PriorityLow,
				Factors:         map[string]float64{},
				Recommendations: []string{},
			},
		},
		{
			name: "unknown priority",
			raw:  `{"score":82,"priority":"urgent"}`,
			want: FallbackLeadScore(),
		},
		{
			name: "prose",
			raw:  "This lead looks promising!",
			want: FallbackLeadScore(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := LeadScore(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFallbackLeadScore(t *testing.T) {
	t.Parallel()

	fb := FallbackLeadScore()
	assert.Equal(t, 50.0, fb.Score)
	assert.Equal(t, model.PriorityMedium, fb.Priority)
	assert.NotEmpty(t, fb.Recommendations)

	fb.Factors["budget"] = 1
	assert.Equal(t, 0.5, FallbackLeadScore().Factors["budget"])
}

func TestCleanJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"text {\"a\":1} text", `{"a":1}`},
		{"no json here", "no json here"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanJSON(tt.in), "input %q", tt.in)
	}
}
