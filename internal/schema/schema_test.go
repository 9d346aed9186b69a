package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestSource_ListsResultFields(t *testing.T) {
	t.Parallel()

	src := MustSource(Valuation)
	for _, field := range []string{"estimatedValue", "confidence", "factors", "comparables", "summary", "marketInsights"} {
		assert.Contains(t, src, field)
	}

	src = MustSource(LeadScore)
	for _, field := range []string{"score", "priority", "factors", "recommendations"} {
		assert.Contains(t, src, field)
	}
}

func TestSource_Unknown(t *testing.T) {
	t.Parallel()

	_, err := Source(Name("missing"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		schema  Name
		doc     string
		wantErr bool
	}{
		{
			name:   "valuation full",
			schema: Valuation,
			doc:    `{"estimatedValue":820000,"confidence":0.89,"factors":{"location":0.4},"comparables":[],"summary":"ok","marketInsights":["a"]}`,
		},
		{
			name:   "valuation headline only",
			schema: Valuation,
			doc:    `{"estimatedValue":1,"confidence":0.5}`,
		},
		{
			name:    "valuation missing confidence",
			schema:  Valuation,
			doc:     `{"estimatedValue":1}`,
			wantErr: true,
		},
		{
			name:    "valuation string value",
			schema:  Valuation,
			doc:     `{"estimatedValue":"a lot","confidence":0.5}`,
			wantErr: true,
		},
		{
			name:    "valuation array root",
			schema:  Valuation,
			doc:     `[1,2,3]`,
			wantErr: true,
		},
		{
			name:    "valuation bad comparable",
			schema:  Valuation,
			doc:     `{"estimatedValue":1,"confidence":0.5,"comparables":[{"price":"cheap"}]}`,
			wantErr: true,
		},
		{
			name:   "lead ok",
			schema: LeadScore,
			doc:    `{"score":72,"priority":"high","factors":{"budget":0.8},"recommendations":["call"]}`,
		},
		{
			name:    "lead bad priority",
			schema:  LeadScore,
			doc:     `{"score":72,"priority":"urgent"}`,
			wantErr: true,
		},
		{
			name:    "lead non-numeric factor",
			schema:  LeadScore,
			doc:     `{"score":72,"priority":"low","factors":{"budget":"high"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tt.schema, decode(t, tt.doc))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_UnknownName(t *testing.T) {
	t.Parallel()

	err := Validate(Name("nope"), map[string]any{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown schema")
}
