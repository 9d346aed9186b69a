// Package cost attributes a dollar amount to each model completion.
package cost

import (
	"sort"
	"strings"

	"go.uber.org/zap"
)

// ModelRate holds token pricing in USD per million tokens.
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Rates maps a model id (or id prefix) to its pricing.
type Rates map[string]ModelRate

// Calculator computes costs for completions.
type Calculator struct {
	rates Rates
	keys  []string // longest first
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	keys := make([]string, 0, len(rates))
	for k := range rates {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return &Calculator{rates: rates, keys: keys}
}

// Rate finds the pricing for model. Dated snapshots such as
// "gpt-4o-mini-2024-07-18" match their family key by prefix.
func (c *Calculator) Rate(model string) (ModelRate, bool) {
	if r, ok := c.rates[model]; ok {
		return r, true
	}
	for _, k := range c.keys {
		if strings.HasPrefix(model, k) {
			return c.rates[k], true
		}
	}
	return ModelRate{}, false
}

// Completion returns the USD cost of one completion, or 0 for unknown models.
func (c *Calculator) Completion(model string, input, output int64) float64 {
	rate, ok := c.Rate(model)
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// Log records token usage and the estimated cost for one completion.
func (c *Calculator) Log(kind, provider, model string, input, output int64) float64 {
	usd := c.Completion(model, input, output)
	zap.L().Info("cost attribution",
		zap.String("kind", kind),
		zap.String("provider", provider),
		zap.String("model", model),
		zap.Int64("input_tokens", input),
		zap.Int64("output_tokens", output),
		zap.Float64("estimated_cost_usd", usd),
	)
	return usd
}

// DefaultRates returns list pricing for the default model of each hosted
// provider and its common siblings.
func DefaultRates() Rates {
	return Rates{
		"gpt-4o-mini":                {Input: 0.15, Output: 0.60},
		"gpt-4o":                     {Input: 2.50, Output: 10.00},
		"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
		"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
		"gemini-2.5-flash":           {Input: 0.30, Output: 2.50},
		"gemini-2.5-pro":             {Input: 1.25, Output: 10.00},
	}
}
