package provider

import (
	"context"

	"github.com/sells-group/realty-ai/internal/model"
	"github.com/sells-group/realty-ai/pkg/anthropic"
)

// anthropicProvider speaks the messages shape: the system prompt is a
// top-level field, messages carry only the user turn, completion under
// content[0].text. The SDK sets the anthropic-version header.
type anthropicProvider struct {
	client anthropic.Client
	model  string
}

func newAnthropic(cfg model.ProviderConfig, o options) *anthropicProvider {
	var opts []anthropic.Option
	if u := o.baseURLs[model.ProviderAnthropic]; u != "" {
		opts = append(opts, anthropic.WithBaseURL(u))
	}
	if o.httpClient != nil {
		opts = append(opts, anthropic.WithHTTPClient(o.httpClient))
	}
	return &anthropicProvider{client: anthropic.NewClient(cfg.Credential, opts...), model: cfg.Model}
}

func (p *anthropicProvider) Kind() model.ProviderKind { return model.ProviderAnthropic }

func (p *anthropicProvider) Complete(ctx context.Context, system, user string) (*Completion, error) {
	temp := Temperature
	req := anthropic.MessageRequest{
		Model:       p.model,
		MaxTokens:   MaxOutputTokens,
		Messages:    []anthropic.Message{{Role: "user", Content: user}},
		Temperature: &temp,
	}
	if system != "" {
		req.System = anthropic.CachedSystem(system)
	}

	resp, err := p.client.CreateMessage(ctx, req)
	if err != nil {
		return nil, upstreamError(model.ProviderAnthropic, anthropic.StatusCode(err), err)
	}

	return &Completion{
		Text:  resp.Text(),
		Model: resp.Model,
		Usage: Usage{
			InputTokens:  resp.Usage.InputTokens + resp.Usage.CacheCreationInputTokens + resp.Usage.CacheReadInputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}, nil
}
