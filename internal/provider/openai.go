package provider

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sells-group/realty-ai/internal/model"
)

// openAIProvider speaks the chat-completions shape: system and user turns in
// one messages array, completion under choices[0].message.content.
type openAIProvider struct {
	client *openai.Client
	model  string
}

func newOpenAI(cfg model.ProviderConfig, o options) *openAIProvider {
	oc := openai.DefaultConfig(cfg.Credential)
	if u := o.baseURLs[model.ProviderOpenAI]; u != "" {
		oc.BaseURL = u
	}
	if o.httpClient != nil {
		oc.HTTPClient = o.httpClient
	}
	return &openAIProvider{client: openai.NewClientWithConfig(oc), model: cfg.Model}
}

func (p *openAIProvider) Kind() model.ProviderKind { return model.ProviderOpenAI }

func (p *openAIProvider) Complete(ctx context.Context, system, user string) (*Completion, error) {
	resp, err := p.client.CreateChatCompletion(ctx, chatRequest(p.model, system, user))
	if err != nil {
		return nil, upstreamError(model.ProviderOpenAI, openAIStatus(err), err)
	}
	return chatCompletion(resp), nil
}

func chatRequest(modelName, system, user string) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})
	return openai.ChatCompletionRequest{
		Model:       modelName,
		Messages:    msgs,
		Temperature: Temperature,
		MaxTokens:   MaxOutputTokens,
	}
}

func chatCompletion(resp openai.ChatCompletionResponse) *Completion {
	c := &Completion{
		Model: resp.Model,
		Usage: Usage{
			InputTokens:  int64(resp.Usage.PromptTokens),
			OutputTokens: int64(resp.Usage.CompletionTokens),
		},
	}
	if len(resp.Choices) > 0 {
		c.Text = resp.Choices[0].Message.Content
	}
	return c
}

// openAIStatus extracts the HTTP status from a go-openai error, or 0.
func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
