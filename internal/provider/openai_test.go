package provider

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/realty-ai/internal/model"
)

func newTestOpenAI(t *testing.T, url string) Provider {
	t.Helper()
	p, err := New(
		model.ProviderConfig{Provider: model.ProviderOpenAI, Credential: "test-key"},
		WithBaseURL(model.ProviderOpenAI, url+"/v1"),
	)
	require.NoError(t, err)
	return p
}

func TestOpenAI_Complete(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := chatServer(t, http.StatusOK, chatOK, &body)
	p := newTestOpenAI(t, srv.URL)

	c, err := p.Complete(context.Background(), testSystem, testUser)
	require.NoError(t, err)
	assert.Equal(t, `{"estimatedValue":820000}`, c.Text)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", c.Model)
	assert.Equal(t, Usage{InputTokens: 300, OutputTokens: 120}, c.Usage)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.InDelta(t, 0.7, body["temperature"], 0.0001)
	assert.InDelta(t, 2000, body["max_tokens"], 0)

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, testSystem, msgs[0].(map[string]any)["content"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
	assert.Equal(t, testUser, msgs[1].(map[string]any)["content"])
}

func TestOpenAI_NoChoices(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, http.StatusOK, `{"id":"x","model":"gpt-4o-mini","choices":[],"usage":{}}`, nil)
	p := newTestOpenAI(t, srv.URL)

	c, err := p.Complete(context.Background(), testSystem, testUser)
	require.NoError(t, err)
	assert.Empty(t, c.Text)
}

func TestOpenAI_HTTPErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		reason Reason
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`, ReasonUnauthorized},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached","type":"requests"}}`, ReasonRateLimited},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"The server had an error","type":"server_error"}}`, ReasonServerError},
		{"non-json body", http.StatusBadGateway, `<html>bad gateway</html>`, ReasonServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := chatServer(t, tt.status, tt.body, nil)
			p := newTestOpenAI(t, srv.URL)

			_, err := p.Complete(context.Background(), testSystem, testUser)
			require.Error(t, err)
			var ue *UpstreamError
			require.True(t, errors.As(err, &ue))
			assert.Equal(t, model.ProviderOpenAI, ue.Provider)
			assert.Equal(t, tt.status, ue.StatusCode)
			assert.Equal(t, tt.reason, ue.Reason)
			assert.NotContains(t, err.Error(), "test-key")
		})
	}
}

func TestOpenAI_Transport(t *testing.T) {
	t.Parallel()

	p := newTestOpenAI(t, "http://127.0.0.1:1")
	_, err := p.Complete(context.Background(), testSystem, testUser)
	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, 0, ue.StatusCode)
	assert.Equal(t, ReasonTransport, ue.Reason)
	assert.True(t, ue.Transient())
}

func TestChatRequest_NoSystem(t *testing.T) {
	t.Parallel()

	req := chatRequest("m", "", "hi")
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
}
