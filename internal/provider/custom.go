package provider

import (
	"context"
	"errors"

	"github.com/sells-group/realty-ai/internal/model"
	"github.com/sells-group/realty-ai/pkg/chatcompletion"
)

// customProvider targets a self-hosted OpenAI-compatible server at
// ProviderConfig.Endpoint.
type customProvider struct {
	client chatcompletion.Client
	model  string
}

func newCustom(cfg model.ProviderConfig, o options) *customProvider {
	// The call deadline governs; the client's own limit must not undercut it.
	opts := []chatcompletion.Option{chatcompletion.WithTimeout(o.timeout)}
	if cfg.Model != "" {
		opts = append(opts, chatcompletion.WithModel(cfg.Model))
	}
	if o.httpClient != nil {
		opts = append(opts, chatcompletion.WithHTTPClient(o.httpClient))
	}
	return &customProvider{
		client: chatcompletion.NewClient(cfg.Endpoint, cfg.Credential, opts...),
		model:  cfg.Model,
	}
}

func (p *customProvider) Kind() model.ProviderKind { return model.ProviderCustom }

func (p *customProvider) Complete(ctx context.Context, system, user string) (*Completion, error) {
	temp := Temperature
	maxTokens := MaxOutputTokens

	msgs := make([]chatcompletion.Message, 0, 2)
	if system != "" {
		msgs = append(msgs, chatcompletion.Message{Role: "system", Content: system})
	}
	msgs = append(msgs, chatcompletion.Message{Role: "user", Content: user})

	resp, err := p.client.ChatCompletion(ctx, chatcompletion.ChatCompletionRequest{
		Messages:    msgs,
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		var se *chatcompletion.StatusError
		status := 0
		if errors.As(err, &se) {
			status = se.StatusCode
		}
		return nil, upstreamError(model.ProviderCustom, status, err)
	}

	modelName := resp.Model
	if modelName == "" {
		modelName = p.model
	}
	return &Completion{
		Text:  resp.Text(),
		Model: modelName,
		Usage: Usage{
			InputTokens:  int64(resp.Usage.PromptTokens),
			OutputTokens: int64(resp.Usage.CompletionTokens),
		},
	}, nil
}
