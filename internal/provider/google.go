package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/sells-group/realty-ai/internal/model"
)

// googleProvider speaks the Gemini generateContent shape: system instruction
// as its own content, completion under candidates[0].content.parts.
type googleProvider struct {
	client *genai.Client
	model  string
}

func newGoogle(cfg model.ProviderConfig, o options) (*googleProvider, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.Credential,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: o.baseURLs[model.ProviderGoogle],
		},
	}
	if o.httpClient != nil {
		cc.HTTPClient = o.httpClient
	}
	// NewClient performs no network I/O for the Gemini API backend.
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, eris.Wrap(err, "provider: create google client")
	}
	return &googleProvider{client: client, model: cfg.Model}, nil
}

func (p *googleProvider) Kind() model.ProviderKind { return model.ProviderGoogle }

func (p *googleProvider) Complete(ctx context.Context, system, user string) (*Completion, error) {
	gc := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](Temperature),
		MaxOutputTokens: MaxOutputTokens,
	}
	if strings.TrimSpace(system) != "" {
		gc.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	res, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(user), gc)
	if err != nil {
		return nil, upstreamError(model.ProviderGoogle, googleStatus(err), err)
	}
	return googleCompletion(res, p.model), nil
}

func googleCompletion(res *genai.GenerateContentResponse, modelName string) *Completion {
	c := &Completion{Model: modelName}
	if res == nil {
		return c
	}
	if res.ModelVersion != "" {
		c.Model = res.ModelVersion
	}
	if res.UsageMetadata != nil {
		c.Usage = Usage{
			InputTokens:  int64(res.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(res.UsageMetadata.CandidatesTokenCount),
		}
	}
	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return c
	}
	var b strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	c.Text = b.String()
	return c
}

// googleStatus extracts the HTTP status from a genai error, or 0.
func googleStatus(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code
	}
	return 0
}
