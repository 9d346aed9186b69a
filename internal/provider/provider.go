// Package provider sends a rendered prompt to an upstream model API and
// returns the raw completion text. Each provider shape lives in its own file;
// New selects one from the ProviderConfig.
package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/sells-group/realty-ai/internal/model"
)

const (
	// Temperature is fixed for every provider.
	Temperature = 0.7
	// MaxOutputTokens caps the completion length for every provider.
	MaxOutputTokens = 2000
	// DefaultTimeout bounds a single upstream call.
	DefaultTimeout = 60 * time.Second
)

// DefaultModels is used when ProviderConfig.Model is empty. The custom
// provider has no default; the server decides.
var DefaultModels = map[model.ProviderKind]string{
	model.ProviderOpenAI:    "gpt-4o-mini",
	model.ProviderAnthropic: "claude-sonnet-4-5-20250929",
	model.ProviderGoogle:    "gemini-2.5-flash",
}

// ModelFor returns the model a call with cfg requests: cfg.Model, else the
// provider default. It is empty for a custom provider without a model.
func ModelFor(cfg model.ProviderConfig) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	return DefaultModels[cfg.Provider]
}

// Usage reports token consumption for one completion.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Completion is the raw result of one upstream call. Text may be empty when
// the upstream answered successfully without content.
type Completion struct {
	Text  string
	Model string
	Usage Usage
}

// Provider performs a single completion. Implementations do not retry.
type Provider interface {
	Kind() model.ProviderKind
	Complete(ctx context.Context, system, user string) (*Completion, error)
}

// Factory builds a Provider for a configuration. New is the production
// factory; tests substitute their own.
type Factory func(cfg model.ProviderConfig) (Provider, error)

// Option configures New.
type Option func(*options)

type options struct {
	timeout    time.Duration
	httpClient *http.Client
	baseURLs   map[model.ProviderKind]string
}

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithHTTPClient sets the http.Client used by every provider shape.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithBaseURL points a hosted provider at a different API root, such as a
// proxy or a test server. The custom provider always uses
// ProviderConfig.Endpoint.
func WithBaseURL(kind model.ProviderKind, url string) Option {
	return func(o *options) {
		o.baseURLs[kind] = url
	}
}

// New validates cfg and returns the matching Provider wrapped with the call
// timeout. A *model.ConfigError is returned before any network activity when
// cfg is unusable.
func New(cfg model.ProviderConfig, opts ...Option) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{
		timeout:  DefaultTimeout,
		baseURLs: make(map[model.ProviderKind]string),
	}
	for _, fn := range opts {
		fn(&o)
	}
	cfg.Model = ModelFor(cfg)

	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case model.ProviderOpenAI:
		p = newOpenAI(cfg, o)
	case model.ProviderAnthropic:
		p = newAnthropic(cfg, o)
	case model.ProviderCustom:
		p = newCustom(cfg, o)
	case model.ProviderGoogle:
		p, err = newGoogle(cfg, o)
	}
	if err != nil {
		return nil, err
	}
	return &deadline{Provider: p, timeout: o.timeout}, nil
}

// NewFactory returns a Factory that applies opts to every provider it builds.
func NewFactory(opts ...Option) Factory {
	return func(cfg model.ProviderConfig) (Provider, error) {
		return New(cfg, opts...)
	}
}

// deadline bounds every Complete call.
type deadline struct {
	Provider
	timeout time.Duration
}

func (d *deadline) Complete(ctx context.Context, system, user string) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.Provider.Complete(ctx, system, user)
}
